package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/voxhollow/cortex/pkg/memory"
	"github.com/voxhollow/cortex/pkg/tools"
	"github.com/voxhollow/cortex/pkg/worldmodel"
)

type queryArgs struct {
	Query string `json:"query" jsonschema:"description=Free-text query extracted from the conversation"`
}

func registerBuiltinTools(registry tools.Registry, store memory.Store, world worldmodel.Model) error {
	defs := []tools.Definition{
		{
			Name:        "device_status",
			Description: "Report the current status of known devices and sensors",
			Parameters:  tools.SchemaFor(queryArgs{}),
			Run: func(ctx context.Context, args map[string]any) (any, error) {
				snap := world.Cached()
				if len(snap.Facts) == 0 {
					return "no devices registered", nil
				}
				parts := make([]string, 0, len(snap.Facts))
				for k, v := range snap.Facts {
					parts = append(parts, fmt.Sprintf("%s=%v", k, v))
				}
				return strings.Join(parts, ", "), nil
			},
		},
		{
			Name:        "knowledge_search",
			Description: "Search stored memories and knowledge for a topic",
			Parameters:  tools.SchemaFor(queryArgs{}),
			Run: func(ctx context.Context, args map[string]any) (any, error) {
				query, _ := args["query"].(string)
				hits, err := store.RecallSemantic(ctx, query, 3)
				if err != nil {
					return nil, err
				}
				if len(hits) == 0 {
					return "nothing relevant found", nil
				}
				parts := make([]string, 0, len(hits))
				for _, h := range hits {
					parts = append(parts, h.Content)
				}
				return strings.Join(parts, "; "), nil
			},
		},
	}
	for _, def := range defs {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

func newToolsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the registered tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := tools.NewInMemoryRegistry()
			store := memory.NewInMemoryStore()
			world := worldmodel.NewStaticModel(nil)
			if err := registerBuiltinTools(registry, store, world); err != nil {
				return err
			}
			for _, def := range registry.List() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", def.Name, def.Description)
			}
			return nil
		},
	}
}
