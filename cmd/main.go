package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"rag-chatbot/internal/config"
)

const defaultConfigPath = "./configs/config.yaml"

var (
	configPath string
	ownerID    string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "rag-chatbot",
	Short: "Document question answering over your own uploads",
	Long: `Uploads documents, indexes them into a vector store and answers
questions grounded in the most relevant chunks.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		setupLogging(cfg.LogLevel)
		log.Debug().Interface("config", cfg.Masked()).Msg("Loaded config")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to the YAML config file")
}

func setupLogging(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()
}

// requireOwner is shared by every command that acts on one user's data.
func requireOwner(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&ownerID, "owner", "o", "", "owner (user) id")
	_ = cmd.MarkFlagRequired("owner")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
