package sections

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/DanceEntry/internal/core"
)

func TestRegisteredSections(t *testing.T) {
	var keys []string
	for _, def := range core.All() {
		keys = append(keys, def.Info.Key)
	}
	assert.Equal(t, []string{
		"basic_info", "preliminary_info", "semifinals_info", "finals_info",
		"program_info", "sns_info", "requests_info",
	}, keys)
}

func TestSectionsAreConsistent(t *testing.T) {
	for _, def := range core.All() {
		t.Run(def.Info.Key, func(t *testing.T) {
			assert.Equal(t, def.Info.Key, def.Info.Table)
			assert.Equal(t, def.Info.Key+"_done", def.Info.DoneColumn)
			require.Len(t, def.Info.Sample, len(def.Info.Columns))

			// The sample row must be a valid payload.
			payload := make(map[string]any, len(def.Info.Columns))
			for i, col := range def.Info.Columns {
				payload[col] = def.Info.Sample[i]
			}
			_, _, err := core.ValidateSection(def, payload)
			assert.NoError(t, err)
		})
	}
}

func TestRequiredForSubmit(t *testing.T) {
	var required []string
	for _, def := range core.All() {
		if def.Info.RequiredForSubmit {
			required = append(required, def.Info.Key)
		}
	}
	assert.Equal(t, []string{"basic_info", "preliminary_info", "sns_info"}, required)
}

func TestEntriesTemplateImports(t *testing.T) {
	text, err := core.TemplateCSV(core.EntriesTemplate)
	require.NoError(t, err)

	plan, err := core.ParseImport(text)
	require.NoError(t, err)
	assert.Len(t, plan.Rows, 1)
	assert.Empty(t, plan.Invalid)
	assert.Equal(t, "team", plan.Rows[0].Data["category"])
}
