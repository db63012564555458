package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"procurement/internal/app"
	"procurement/internal/auth"
	"procurement/internal/config"
	"procurement/internal/logging"
	"procurement/internal/repository"
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "procurement",
		Short:         "Procurement request approval service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	SetupCLI(rootCmd)
	return rootCmd
}

func SetupCLI(rootCmd *cobra.Command) {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the SLA escalator",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.NewApp()
			if err != nil {
				return err
			}
			a.Run()
			return nil
		},
	}

	migrateCmd := &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or revert database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd, args[0])
		},
	}

	escalateCmd := &cobra.Command{
		Use:   "escalate",
		Short: "Send SLA reminders for overdue approval steps once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.NewApp()
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.Service().Escalate(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent %d SLA reminder(s)\n", n)
			return nil
		},
	}

	templateCmd := &cobra.Command{
		Use:   "template",
		Short: "Manage approval workflow templates",
	}
	templateImportCmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Create or replace workflow templates from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("could not read template file: %w", err)
			}

			a, err := app.NewApp()
			if err != nil {
				return err
			}
			defer a.Close()

			templates, err := a.Service().ImportTemplates(cmd.Context(), data)
			if err != nil {
				return err
			}
			for _, tmpl := range templates {
				marker := ""
				if tmpl.IsDefault {
					marker = " (default)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported template '%s' with %d step(s)%s, ID %s\n", tmpl.Name, len(tmpl.Steps), marker, tmpl.Id)
			}
			return nil
		},
	}
	templateCmd.AddCommand(templateImportCmd)

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Dashboard bearer tokens",
	}
	tokenIssueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a dashboard bearer token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			userId, _ := cmd.Flags().GetString("user-id")
			username, _ := cmd.Flags().GetString("username")
			isAdmin, _ := cmd.Flags().GetBool("admin")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			if userId == "" && username == "" {
				return errors.New("one of --user-id or --username is required")
			}

			cfg, err := config.NewConfig()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is not set")
			}

			tok, err := auth.NewAuthenticator(cfg.JWTSecret).GenerateToken(userId, username, isAdmin, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	tokenIssueCmd.Flags().String("user-id", "", "Linked user id of the approver")
	tokenIssueCmd.Flags().String("username", "", "Approver or administrator name")
	tokenIssueCmd.Flags().Bool("admin", false, "Grant administrator rights")
	tokenIssueCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	tokenCmd.AddCommand(tokenIssueCmd)

	rootCmd.AddCommand(serveCmd, migrateCmd, escalateCmd, templateCmd, tokenCmd)
}

func migrate(cmd *cobra.Command, direction string) error {
	cfg, err := config.NewPostgresConfig()
	if err != nil {
		return err
	}
	cfg.AutoMigrateUp = "false"
	cfg.AutoMigrateDown = "false"

	repo, err := repository.NewRepository(nil, cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	switch direction {
	case "up":
		err = repo.MigrateUp()
	case "down":
		err = repo.MigrateDown()
	}
	if err != nil {
		return err
	}

	logging.GetLogger().Infof("Migrations applied: %s", direction)
	fmt.Fprintf(cmd.OutOrStdout(), "Migrations %s applied successfully\n", direction)
	return nil
}

// Execute runs the root command with a context cancelled on interrupt.
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	return NewRootCmd().ExecuteContext(ctx)
}
