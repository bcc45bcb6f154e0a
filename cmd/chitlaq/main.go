package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	clientcmd "github.com/ChitLaq/ChitLaq-sub005/internal/cmd/client"
	serverrun "github.com/ChitLaq/ChitLaq-sub005/internal/cmd/server"
	cfgpkg "github.com/ChitLaq/ChitLaq-sub005/internal/config"
	httpserver "github.com/ChitLaq/ChitLaq-sub005/internal/server/http"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "chitlaq",
		Short: "ChitLaq event engine CLI",
		Long:  "ChitLaq distributes social events to subscribed users in real time. This CLI manages the server and basic operations.",
	}

	// server start
	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the chitlaq server",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			dataDir, _ := cmd.Flags().GetString("data-dir")
			httpAddr, _ := cmd.Flags().GetString("http")
			fsyncMode, _ := cmd.Flags().GetString("fsync")
			logLevel, _ := cmd.Flags().GetString("log-level")
			logFormat, _ := cmd.Flags().GetString("log-format")

			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return err
			}
			cfgpkg.FromEnv(&cfg)
			if dataDir != "" {
				cfg.DataDir = dataDir
			}
			if httpAddr != "" {
				cfg.HTTPAddr = httpAddr
			}
			if fsyncMode != "" {
				cfg.Fsync = fsyncMode
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if logFormat != "" {
				cfg.LogFormat = logFormat
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := serverrun.Run(ctx, serverrun.Options{Config: cfg}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			// brief delay to allow logs flush
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	}
	serverStartCmd.Flags().String("config", "", "Path to JSON config file")
	serverStartCmd.Flags().String("data-dir", "", "Data directory (if not specified, uses OS-specific application data directory)")
	serverStartCmd.Flags().String("http", "", "HTTP listen address (default :8580)")
	serverStartCmd.Flags().String("fsync", "", "Fsync mode: always|interval|never")
	serverStartCmd.Flags().String("log-level", os.Getenv("CHITLAQ_LOG_LEVEL"), "Log level: debug|info|warn|error")
	serverStartCmd.Flags().String("log-format", os.Getenv("CHITLAQ_LOG_FORMAT"), "Log format: text|json (default text)")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	// token mint (operator convenience; needs the shared secret)
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a JWT for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user-id")
			secret, _ := cmd.Flags().GetString("secret")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if secret == "" {
				secret = os.Getenv("CHITLAQ_JWT_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("--secret or CHITLAQ_JWT_SECRET is required")
			}
			token, err := httpserver.NewJWTAuth(secret).GenerateToken(userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	tokenCmd.Flags().String("user-id", "", "User id to embed in the token")
	tokenCmd.Flags().String("secret", "", "HMAC secret (defaults to CHITLAQ_JWT_SECRET)")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	rootCmd.AddCommand(tokenCmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the chitlaq version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
	rootCmd.AddCommand(versionCmd)

	// client commands
	rootCmd.AddCommand(clientcmd.Commands(apiURL)...)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func apiURL() string {
	if v := os.Getenv("CHITLAQ_HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:8580"
}
