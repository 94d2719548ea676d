package cmd

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/fablekit/lorekit/internal/lore"
)

// sceneOptions holds CLI flags for scene.
type sceneOptions struct {
	campaignID string
	sessionID  string
	input      string
	entities   []string
	packs      []string
	invalidate bool
}

func newSceneCmd() *cobra.Command {
	var opts sceneOptions

	cmd := &cobra.Command{
		Use:   "scene <location-id>",
		Short: "Materialize categorized scene lore for a location",
		Long: `Retrieve lore for a scene and materialize it into the scene cache:
atmosphere, NPC briefings, discoverable items, and thread connections.
A cached scene is returned as-is until it is invalidated.

The scene is keyed by (campaign, location). Output is the categorized
scene-lore JSON.

Examples:
  lorekit scene neon_dragon --campaign c1
  lorekit scene neon_dragon --campaign c1 --input "ask viktor about the shipment"
  lorekit scene neon_dragon --campaign c1 --invalidate`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScene(cmd.Context(), cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.campaignID, "campaign", "default", "Campaign the scene belongs to")
	cmd.Flags().StringVar(&opts.sessionID, "session", "", "Session id (generated when empty)")
	cmd.Flags().StringVar(&opts.input, "input", "", "Player input to mine for keywords")
	cmd.Flags().StringSliceVarP(&opts.entities, "entity", "e", nil, "Present entity ids (repeatable)")
	cmd.Flags().StringSliceVarP(&opts.packs, "pack", "p", nil, "Restrict retrieval to these packs (repeatable)")
	cmd.Flags().BoolVar(&opts.invalidate, "invalidate", false, "Drop the cached scene instead of materializing")
	return cmd
}

func runScene(ctx context.Context, cmd *cobra.Command, locationID string, opts sceneOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	cache := a.sceneCache()
	if opts.invalidate {
		return cache.Invalidate(ctx, locationID, opts.campaignID)
	}

	// A cached scene short-circuits retrieval entirely.
	if cached, ok, err := cache.Get(ctx, locationID, opts.campaignID); err != nil {
		return err
	} else if ok {
		return writeSceneLore(cmd, cached)
	}

	r, err := a.retriever()
	if err != nil {
		return err
	}
	if err := r.RefreshManifest(ctx); err != nil {
		return err
	}

	entities := make([]lore.EntityState, 0, len(opts.entities))
	for _, id := range opts.entities {
		entities = append(entities, lore.EntityState{ID: id})
	}

	scene := lore.SceneState{LocationID: locationID, PlayerInput: opts.input}
	result, err := r.RetrieveForScene(ctx, scene, entities, nil, opts.packs)
	if err != nil {
		return err
	}

	sceneLore, err := cache.Materialize(ctx, result, locationID, opts.sessionID, opts.campaignID)
	if err != nil {
		return err
	}
	return writeSceneLore(cmd, sceneLore)
}

func writeSceneLore(cmd *cobra.Command, sl *lore.SceneLore) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(sl)
}
