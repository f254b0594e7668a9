package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/arlo/taskmill/internal/app"
	"github.com/arlo/taskmill/internal/auth"
	"github.com/arlo/taskmill/internal/config"
	"github.com/arlo/taskmill/internal/db"
	"github.com/arlo/taskmill/internal/genai"
	"github.com/arlo/taskmill/internal/web"
)

var Version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:     "taskmill",
		Short:   "Taskmill - task management server with AI-assisted planning",
		Version: Version,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to config file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Addr = addr
			}

			secret := cfg.Auth.JWTSecret
			if secret == "" {
				// Ephemeral secret: sessions will not survive a restart.
				buf := make([]byte, 32)
				if _, err := rand.Read(buf); err != nil {
					return err
				}
				secret = hex.EncodeToString(buf)
				log.Println("warning: auth.jwt_secret not configured, using an ephemeral secret")
			}

			application, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer application.Close()

			ttl := time.Duration(cfg.Auth.TokenTTLHours) * time.Hour
			authManager := auth.NewManager(secret, ttl)
			generator := genai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)

			server := web.NewServer(application.DB, authManager, generator)
			log.Printf("taskmill v%s listening on %s (db: %s)", Version, cfg.Addr, cfg.DBPath)
			return server.Run(cfg.Addr)
		},
	}

	cmd.Flags().String("addr", "", "Listen address (overrides config)")

	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			database, err := db.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer database.Close()
			fmt.Printf("database at %s is up to date\n", cfg.DBPath)
			return nil
		},
	}
}
