package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/foliohq/folio/internal/config"
	"github.com/foliohq/folio/internal/relay"
	"github.com/foliohq/folio/internal/server"
	"github.com/foliohq/folio/internal/service"
)

const banner = `
 ___ ___  _    ___ ___
| __/ _ \| |  |_ _/ _ \
| _| (_) | |__ | | (_) |
|_| \___/|____|___\___/
`

func newServeCmd() *cobra.Command {
	var (
		port   int
		host   string
		driver string
		dsn    string
		dev    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the folio API server",
		Long:  "Start the HTTP server that exposes the public portfolio API and the authenticated admin API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, host, port, driver, dsn, dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "", "HTTP listen host")
	cmd.Flags().StringVar(&driver, "driver", "", "storage driver: sqlite, postgres, or file")
	cmd.Flags().StringVar(&dsn, "dsn", "", "postgres connection string")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (verbose logging)")

	return cmd
}

// applyServerEnv layers the listen address viper resolved over the loaded
// config. viper sees both the config file and the FOLIO_SERVER_HOST and
// FOLIO_SERVER_PORT environment variables, with env taking precedence.
func applyServerEnv(cfg *config.Config) {
	if v := viper.GetString("server.host"); v != "" {
		cfg.Server.Host = v
	}
	if v := viper.GetInt("server.port"); v > 0 {
		cfg.Server.Port = v
	}
}

func runServe(cmd *cobra.Command, host string, port int, driver, dsn string, dev bool) error {
	fmt.Print(banner)
	fmt.Println()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	applyServerEnv(&cfg)

	// Flags win over env and the config file.
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = host
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = port
	}
	if cmd.Flags().Changed("driver") {
		cfg.Storage.Driver = driver
	}
	if cmd.Flags().Changed("dsn") {
		cfg.Storage.DSN = dsn
	}

	logger := newLogger(cfg.Logging.Level, dev)

	st, err := openStore(cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	logger.Info("store initialized", "driver", cfg.Storage.Driver)

	secret := viper.GetString("auth.jwt_secret")
	if secret == "" {
		secret = cfg.Auth.JWTSecret
	}
	if secret == "" {
		st.Close()
		return fmt.Errorf("auth.jwt_secret is not set (set it in folio.yaml or via FOLIO_AUTH_JWT_SECRET)")
	}

	authSvc, err := service.NewAuthService(st, secret, cfg.Auth.JWTExpiryDuration(), logger)
	if err != nil {
		st.Close()
		return fmt.Errorf("init auth service: %w", err)
	}

	contactRelay := relay.New(cfg.Contact.WebhookURL, logger)
	if contactRelay == nil {
		logger.Warn("contact webhook not configured - submissions will be dropped")
	}

	hasAdmin, err := st.HasAnyAdmin(context.Background())
	if err != nil {
		logger.Warn("failed to check for admin", "error", err)
	}
	if !hasAdmin {
		logger.Warn("no admin account found - run: folio admin create")
	}

	srvCfg := server.Config{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ShutdownTimeout:   cfg.Server.ShutdownTimeoutDuration(),
		CORSOrigins:       cfg.Server.CORSOrigins,
		ContactRatePerMin: cfg.Contact.RatePerMinute,
		ContactMinFill:    time.Duration(cfg.Contact.MinFillMs) * time.Millisecond,
	}

	srv := server.New(srvCfg, st, authSvc, contactRelay, logger)

	fmt.Printf("→ Folio %s\n", versionString())
	fmt.Printf("→ Listening on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ Public API: http://%s:%d/api/public/projects\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ Health:     http://%s:%d/health\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()

	return srv.ListenAndServe()
}
