// catq is a command line client for a catalog server: it builds and runs
// search queries, inspects the entity schema, and moves data in and out via
// dump files and spreadsheets.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"catalog-query-api/internal/config"
	"catalog-query-api/pkg/client"
)

// Set using -ldflags
var version = "dev"

var (
	configPath  string
	section     string
	flagURL     string
	flagAuth    string
	flagUser    string
	flagPass    string
	flagTimeout time.Duration
	insecure    bool
)

func main() {
	cobra.EnableCommandSorting = false
	rootCmd := &cobra.Command{
		Use:           "catq",
		Short:         "catalog query client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath,
		"config", ".", "directory holding catalog.yaml")
	rootCmd.PersistentFlags().StringVarP(&section,
		"section", "s", "main", "config section to use")
	rootCmd.PersistentFlags().StringVar(&flagURL,
		"url", "", "catalog server URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagAuth,
		"auth", "", "authentication plugin (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&flagUser,
		"user", "u", "", "username (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&flagPass,
		"password", "p", "", "password (overrides config)")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout,
		"timeout", 0, "request timeout (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&insecure,
		"insecure", false, "skip TLS certificate verification")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(schemaCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(dumpCmd())
	rootCmd.AddCommand(ingestCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatalf("[CATQ] %v", err)
	}
}

// settings resolves the connection profile: config file first, then flags.
func settings() (config.Settings, error) {
	cfg, err := config.Load(configPath, section)
	if err != nil {
		if flagURL == "" {
			return cfg, err
		}
		// No usable config file, but the URL flag is enough to connect.
		cfg = config.DefaultSettings()
	}
	if flagURL != "" {
		cfg.URL = flagURL
	}
	if flagAuth != "" {
		cfg.Auth = flagAuth
	}
	if flagUser != "" {
		cfg.Username = flagUser
	}
	if flagPass != "" {
		cfg.Password = flagPass
	}
	if flagTimeout > 0 {
		cfg.Timeout = flagTimeout
	}
	if insecure {
		cfg.Insecure = true
	}
	return cfg, nil
}

// connect builds a client from the resolved settings and logs in. The caller
// owns the session and should defer Logout.
func connect(ctx context.Context) (*client.Client, config.Settings, error) {
	cfg, err := settings()
	if err != nil {
		return nil, cfg, err
	}
	c, err := client.New(cfg.ClientConfig())
	if err != nil {
		return nil, cfg, err
	}
	if err := c.Login(ctx, cfg.Auth, cfg.Username, cfg.Password); err != nil {
		return nil, cfg, err
	}
	return c, cfg, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show client and server versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("catq %s\n", version)
			cfg, err := settings()
			if err != nil {
				// No server configured; the client version is still useful.
				return nil
			}
			c, err := client.New(cfg.ClientConfig())
			if err != nil {
				return err
			}
			v, err := c.Version(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("server %s (%s)\n", v, cfg.URL)
			return nil
		},
	}
}
