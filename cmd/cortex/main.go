package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "cortex",
	Short: "Real-time cognitive response pipeline",
	Long: "cortex turns raw utterances into streamed responses: ingress\n" +
		"classification, parallel context gathering, an intuition fast path,\n" +
		"and streaming deliberation with mid-response tool results.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging(viper.GetString("log-level"))
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	pf.String("db", "", "sqlite database path for episodic memory (empty for in-memory)")
	pf.String("model", "gpt-4o-mini", "OpenAI model for deliberation")
	pf.String("openai-api-key", "", "OpenAI API key (scripted offline generator when empty)")

	for _, name := range []string{"log-level", "db", "model", "openai-api-key"} {
		if err := viper.BindPFlag(name, pf.Lookup(name)); err != nil {
			panic(err)
		}
	}
	viper.SetEnvPrefix("CORTEX")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(newChatCommand())
	rootCmd.AddCommand(newToolsCommand())
}

func initLogging(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
