package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/masterfloor/erp/internal/config"
	"github.com/masterfloor/erp/internal/database"
	"github.com/masterfloor/erp/internal/logging"
	"github.com/masterfloor/erp/internal/web"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// CLI flags
var (
	configPath string
	verbosity  int

	port        int
	bind        string
	allowSubnet string
)

// app is what every subcommand works with once PersistentPreRunE has run.
var app struct {
	cfg  *config.Config
	conn *database.Connector
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "erp",
		Short:         "ERP - Partner, supplier and product data service",
		Long:          `ERP manages the partner, supplier, product and user records of a flooring business over MySQL or SQLite.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logging.Apply(cfg.Log, verbosity)
			app.cfg = cfg
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ./erp.yaml, env ERP_*)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v debug, -vv trace)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run migrations and serve the JSON API",
		RunE:  runServe,
	}
	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP server port (overrides server.port)")
	serveCmd.Flags().StringVarP(&bind, "bind", "b", "", "IP address to bind to (overrides server.bind)")
	serveCmd.Flags().StringVarP(&allowSubnet, "allow-subnet", "a", "", "CIDR subnet allowed to connect (overrides server.allowed_subnet)")

	rootCmd.AddCommand(
		serveCmd,
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply pending schema migrations",
			RunE: withDB(func(ctx context.Context, cmd *cobra.Command, args []string) error {
				if err := app.conn.Migrate(ctx); err != nil {
					return err
				}
				v, err := app.conn.SchemaVersion(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("schema version %d\n", v)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Insert the default roles, partner types and product types into empty tables",
			RunE: withDB(func(ctx context.Context, cmd *cobra.Command, args []string) error {
				return database.NewLookupStore(app.conn).EnsureBaseData(ctx)
			}),
		},
		loginCmd(),
		registerCmd(),
		partnerCmd(),
		supplierCmd(),
		productCmd(),
		userCmd(),
		&cobra.Command{
			Use:               "version",
			Short:             "Show version information",
			PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("erp %s (commit: %s, built: %s)\n", version, commit, date)
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// withDB connects before fn and disconnects after it. The context is
// cancelled on SIGINT or SIGTERM.
func withDB(fn func(ctx context.Context, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		app.conn = database.NewConnector(app.cfg.Database)
		if err := app.conn.Connect(ctx); err != nil {
			return err
		}
		defer func() {
			if err := app.conn.Disconnect(); err != nil {
				log.Warn().Err(err).Msg("Failed to close database connection")
			}
		}()

		return fn(ctx, cmd, args)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	if port != 0 {
		app.cfg.Server.Port = port
	}
	if bind != "" {
		app.cfg.Server.Bind = bind
	}
	if allowSubnet != "" {
		app.cfg.Server.AllowedSubnet = allowSubnet
	}
	if err := app.cfg.Validate(); err != nil {
		return err
	}

	bindAll := app.cfg.Server.Bind == "" || app.cfg.Server.Bind == "0.0.0.0" || app.cfg.Server.Bind == "::"
	if bindAll && app.cfg.Server.AllowedSubnet == "" {
		log.Warn().Msg("Server is accessible from all interfaces without subnet restrictions. Consider using --bind or --allow-subnet for security.")
	}

	log.Info().
		Str("version", version).
		Str("driver", app.cfg.Database.Driver).
		Int("port", app.cfg.Server.Port).
		Str("bind", app.cfg.Server.Bind).
		Str("allow_subnet", app.cfg.Server.AllowedSubnet).
		Msg("Starting ERP")

	return withDB(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		if err := app.conn.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
		if err := database.NewLookupStore(app.conn).EnsureBaseData(ctx); err != nil {
			return fmt.Errorf("failed to seed reference data: %w", err)
		}

		server := web.NewServer(app.conn, app.cfg)
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("server error: %w", err)
		}

		log.Info().Msg("ERP stopped")
		return nil
	})(cmd, args)
}
