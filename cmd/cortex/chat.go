package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/voxhollow/cortex/pkg/deliberation"
	"github.com/voxhollow/cortex/pkg/events"
	"github.com/voxhollow/cortex/pkg/gather"
	"github.com/voxhollow/cortex/pkg/memory"
	"github.com/voxhollow/cortex/pkg/pipeline"
	"github.com/voxhollow/cortex/pkg/tools"
	"github.com/voxhollow/cortex/pkg/worldmodel"
)

type runtime struct {
	pipeline *pipeline.Pipeline
	bus      *events.Bus
	close    func()
}

func newChatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive REPL against the full pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			ctx := cmd.Context()
			const sessionID = "local"

			fmt.Println("cortex chat (ctrl-d to exit)")
			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					break
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}

				result := rt.pipeline.Handle(ctx, sessionID, line)
				if result.Rejection != nil {
					log.Debug().Str("reason", string(result.Rejection.Reason)).Msg("utterance rejected")
					continue
				}
				for item := range result.Stream {
					fmt.Print(item.Text)
				}
				fmt.Println()
			}
			return scanner.Err()
		},
	}
}

func buildRuntime() (*runtime, error) {
	var store memory.Store
	var closeStore func()
	if dbPath := viper.GetString("db"); dbPath != "" {
		s, err := memory.NewSQLiteStore(dbPath)
		if err != nil {
			return nil, errors.Wrap(err, "open episodic store")
		}
		store = s
		closeStore = func() {
			if err := s.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close episodic store")
			}
		}
	} else {
		store = memory.NewInMemoryStore()
		closeStore = func() {}
	}

	world := worldmodel.NewStaticModel(map[string]any{
		"host":     hostname(),
		"channels": []string{"cli"},
	})

	bus, err := events.NewBus(events.WithLogger(events.NewWatermillLogger(log.Logger)))
	if err != nil {
		closeStore()
		return nil, errors.Wrap(err, "start event bus")
	}

	registry := tools.NewInMemoryRegistry()
	if err := registerBuiltinTools(registry, store, world); err != nil {
		closeStore()
		_ = bus.Close()
		return nil, err
	}
	executor := tools.NewExecutor(registry)

	var gen deliberation.Generator
	if apiKey := viper.GetString("openai-api-key"); apiKey != "" {
		gen = deliberation.NewChainGenerator(
			deliberation.NewOpenAIGenerator(apiKey, viper.GetString("model")),
			offlineGenerator(),
		)
	} else {
		log.Info().Msg("no API key configured, using offline generator")
		gen = offlineGenerator()
	}

	engine := deliberation.NewEngine(gen,
		deliberation.WithInvoker(executor),
		deliberation.WithStore(store),
		deliberation.WithEventSource(bus),
	)
	aggregator := gather.NewAggregator(store, world)
	p := pipeline.New(aggregator, engine,
		pipeline.WithStore(store),
		pipeline.WithBus(bus),
	)

	// Consolidation failures are worth seeing on the console.
	go func() {
		for err := range p.Errors() {
			log.Warn().Err(err).Msg("consolidation error")
		}
	}()

	return &runtime{
		pipeline: p,
		bus:      bus,
		close: func() {
			p.Close()
			if err := bus.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close event bus")
			}
			closeStore()
		},
	}, nil
}

func offlineGenerator() deliberation.Generator {
	return deliberation.NewScriptedGenerator(
		"I'm running without a language model right now. ",
		"I can still check devices and search the knowledge base for you.",
	)
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
