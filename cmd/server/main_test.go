package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/DanceEntry/internal/auth"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", "testdata-missing.env"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestTemplateCommand(t *testing.T) {
	out, err := execute(t, "template", "entries")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "\ufeffemail,name,team_name"))

	_, err = execute(t, "template", "nope")
	assert.Error(t, err)
}

func TestTokenCommand(t *testing.T) {
	const secret = "cli-test-secret-cli-test-secret-00"
	t.Setenv("AUTH_JWT_SECRET", secret)

	out, err := execute(t, "token",
		"--user", "6f1c2b9e-0d5a-4b7e-9a53-3f1e2d4c5b6a",
		"--email", "admin@example.com",
		"--role", "admin")
	require.NoError(t, err)

	id, err := auth.NewVerifier(secret).Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "6f1c2b9e-0d5a-4b7e-9a53-3f1e2d4c5b6a", id.UserID.String())
	assert.Equal(t, "admin@example.com", id.Email)
}

func TestTokenCommand_Rejections(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "cli-test-secret-cli-test-secret-00")

	_, err := execute(t, "token", "--role", "owner")
	assert.Error(t, err)

	_, err = execute(t, "token", "--user", "not-a-uuid")
	assert.Error(t, err)

	_, err = execute(t, "token", "--email", "")
	assert.Error(t, err)
}

func TestMigrateCommand_UnknownAction(t *testing.T) {
	_, err := execute(t, "migrate", "sideways", "extra")
	assert.Error(t, err)
}
