package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"rag-chatbot/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Auth.JWTSecret == "" {
			return errors.New("auth.jwt_secret (RAG_JWT_SECRET) is required to serve")
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if cfg.LogLevel != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}
		router := server.NewRouter(server.RouterConfig{
			Server:    cfg.Server,
			JWTSecret: cfg.Auth.JWTSecret,
			MaxBytes:  cfg.Upload.MaxBytes,
			Handlers:  server.NewHandlers(a.docs, a.rag, a.store, cfg.Upload.MaxBytes),
		})
		return server.Run(ctx, cfg.Server.Addr, router)
	},
}

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for an owner (development use)",
	RunE: func(cmd *cobra.Command, args []string) error {
		tok, err := server.IssueToken(cfg.Auth.JWTSecret, ownerID, tokenTTL)
		if err != nil {
			return err
		}
		cmd.Println(tok)
		return nil
	},
}

func init() {
	requireOwner(tokenCmd)
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(serveCmd, tokenCmd)
}
