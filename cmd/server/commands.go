package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/DanceEntry/internal/auth"
	"github.com/JonMunkholm/DanceEntry/internal/core"
	"github.com/JonMunkholm/DanceEntry/internal/database"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate [up|down|status]",
		Short: "Manage schema migrations",
		Long: `Apply, roll back or list the embedded schema migrations.

  up      - Apply every pending migration (default)
  down    - Roll back the newest migrations (--steps, default 1)
  status  - List applied migrations`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "up"
			if len(args) == 1 {
				action = args[0]
			}
			steps, _ := cmd.Flags().GetInt("steps")

			_, pool, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer pool.Close()
			ctx := cmd.Context()

			switch action {
			case "up":
				n, err := database.Migrate(ctx, pool)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
			case "down":
				n, err := database.Rollback(ctx, pool, steps)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", n)
			case "status":
				all, err := database.Migrations()
				if err != nil {
					return err
				}
				applied, err := database.Status(ctx, pool)
				if err != nil {
					return err
				}
				done := make(map[int]bool, len(applied))
				for _, a := range applied {
					fmt.Fprintf(cmd.OutOrStdout(), "%04d_%s\tapplied %s\n", a.Version, a.Name, a.AppliedAt.Format(time.RFC3339))
					done[a.Version] = true
				}
				for _, m := range database.Pending(all, done) {
					fmt.Fprintf(cmd.OutOrStdout(), "%04d_%s\tpending\n", m.Version, m.Name)
				}
			default:
				return fmt.Errorf("unknown migrate action %q", action)
			}
			return nil
		},
	}
	cmd.Flags().Int("steps", 1, "Number of migrations to roll back")
	return cmd
}

func newImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Bulk-create entries from a CSV file",
		Long: `Bulk-create entries from a CSV file in the entries template format.

Each valid row creates or reuses the user with that email and creates an
entry with its basic information. Rows fail independently; the summary is
printed as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, pool, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer pool.Close()

			service, err := newService(cfg, pool)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open import file: %w", err)
			}
			defer f.Close()

			result, err := service.ImportEntries(cmd.Context(), core.System, f, cfg.Upload.MaxImportSize)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
}

func newTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development access token",
		Long: `Mint an HS256 access token signed with AUTH_JWT_SECRET.

The role claim is informational only: the server reads roles from the
users table. Use this against local environments.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loadEnv(cmd)
			secret := os.Getenv("AUTH_JWT_SECRET")
			if secret == "" {
				return fmt.Errorf("AUTH_JWT_SECRET is not set")
			}

			rawID, _ := cmd.Flags().GetString("user")
			email, _ := cmd.Flags().GetString("email")
			role, _ := cmd.Flags().GetString("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			id := uuid.New()
			if rawID != "" {
				parsed, err := uuid.Parse(rawID)
				if err != nil {
					return fmt.Errorf("invalid --user: %w", err)
				}
				id = parsed
			}
			if !strings.Contains(email, "@") {
				return fmt.Errorf("invalid --email %q", email)
			}
			if !auth.Role(role).Valid() {
				return fmt.Errorf("invalid --role %q", role)
			}

			token, err := auth.Issue(secret, id, email, auth.Role(role), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("user", "", "User id (default: random)")
	cmd.Flags().String("email", "dev@example.com", "Email claim")
	cmd.Flags().String("role", string(auth.RoleParticipant), "Role claim: participant or admin")
	cmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	return cmd
}

func newTemplateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "template <kind>",
		Short: "Print a CSV template",
		Long: "Print the CSV template of one kind to stdout. Kinds: " + strconv.Quote(core.EntriesTemplate) +
			" for the bulk import, or a section key.",
		Args: cobra.ExactArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return core.TemplateKinds(), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := core.TemplateCSV(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), text)
			return err
		},
	}
}
