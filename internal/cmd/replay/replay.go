// Package replay parses replay command flags and rebuilds projections from
// the journal, verifying hashes and determinism along the way.
package replay

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/ashfield-games/greatwork/internal/engine/event"
	"github.com/ashfield-games/greatwork/internal/engine/orders"
	"github.com/ashfield-games/greatwork/internal/platform/cmd"
	"github.com/ashfield-games/greatwork/internal/storage"
	"github.com/ashfield-games/greatwork/internal/storage/sqlite"
	"github.com/ashfield-games/greatwork/internal/tuning"
)

// Config holds replay command configuration.
type Config struct {
	DBPath     string `env:"GREATWORK_REPLAY_DB_PATH" envDefault:"data/campaign.db"`
	CampaignID string `env:"GREATWORK_REPLAY_CAMPAIGN"`
	TuningPath string `env:"GREATWORK_REPLAY_TUNING_PATH"`
	UntilSeq   uint64 `env:"GREATWORK_REPLAY_UNTIL_SEQ"`
	SkipVerify bool   `env:"GREATWORK_REPLAY_SKIP_VERIFY"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := cmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The campaign SQLite database path")
	fs.StringVar(&cfg.CampaignID, "campaign", cfg.CampaignID, "The campaign to replay")
	fs.StringVar(&cfg.TuningPath, "tuning-path", cfg.TuningPath, "Tuning YAML path (defaults when empty)")
	fs.Uint64Var(&cfg.UntilSeq, "until-seq", cfg.UntilSeq, "Stop replay after this sequence number (full journal when zero)")
	fs.BoolVar(&cfg.SkipVerify, "skip-verify", cfg.SkipVerify, "Skip per-event hash verification")
	if err := cmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run replays the campaign journal into a scratch store and checks that the
// rebuilt timeline agrees with the live projections.
func Run(ctx context.Context, cfg Config) error {
	if strings.TrimSpace(cfg.CampaignID) == "" {
		return fmt.Errorf("campaign id is required")
	}
	return cmd.RunWithTelemetry(ctx, cmd.ServiceReplay, func(ctx context.Context) error {
		constants := tuning.Defaults()
		if cfg.TuningPath != "" {
			loaded, err := tuning.Load(cfg.TuningPath)
			if err != nil {
				return fmt.Errorf("load tuning: %w", err)
			}
			constants = loaded
		}

		source, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer func() {
			if err := source.Close(); err != nil {
				log.Printf("close store: %v", err)
			}
		}()

		scratchDir, err := os.MkdirTemp("", "greatwork-replay-*")
		if err != nil {
			return fmt.Errorf("scratch dir: %w", err)
		}
		defer os.RemoveAll(scratchDir)
		scratch, err := sqlite.Open(filepath.Join(scratchDir, "replay.db"))
		if err != nil {
			return fmt.Errorf("open scratch store: %w", err)
		}
		defer func() {
			if err := scratch.Close(); err != nil {
				log.Printf("close scratch store: %v", err)
			}
		}()

		live, err := source.GetTimeline(ctx, cfg.CampaignID)
		if err != nil {
			return fmt.Errorf("live timeline: %w", err)
		}
		// The genesis row (campaign id, seed, starting year) predates the
		// journal, so seed the scratch store with it before replaying.
		genesis := live
		if year, ok, err := genesisYear(ctx, source, cfg.CampaignID); err != nil {
			return fmt.Errorf("genesis year: %w", err)
		} else if ok {
			genesis.CurrentYear = year
		}
		genesis.LastTickAt = time.Time{}
		if err := scratch.PutTimeline(ctx, genesis); err != nil {
			return fmt.Errorf("seed scratch timeline: %w", err)
		}

		applier := storage.Applier{
			Players:          scratch,
			Scholars:         scratch,
			Theories:         scratch,
			Expeditions:      scratch,
			Orders:           scratch,
			Offers:           scratch,
			Timelines:        scratch,
			FeelingDecayRate: constants.FeelingDecayRate,
		}
		lastSeq, err := storage.ReplayCampaignWith(ctx, source, applier, cfg.CampaignID, storage.ReplayOptions{
			UntilSeq:     cfg.UntilSeq,
			VerifyHashes: !cfg.SkipVerify,
		})
		if err != nil {
			return fmt.Errorf("replay: %w", err)
		}
		log.Printf("replayed %d events for campaign %s", lastSeq, cfg.CampaignID)

		// A partial replay cannot be compared against the live projections.
		if cfg.UntilSeq != 0 {
			return nil
		}
		rebuilt, err := scratch.GetTimeline(ctx, cfg.CampaignID)
		if err != nil {
			return fmt.Errorf("rebuilt timeline: %w", err)
		}
		if rebuilt.CurrentYear != live.CurrentYear {
			return fmt.Errorf("replay divergence: rebuilt year %d, live year %d",
				rebuilt.CurrentYear, live.CurrentYear)
		}
		if err := compareProjections(ctx, source, scratch, cfg.CampaignID); err != nil {
			return err
		}
		log.Printf("projections converged at year %d", rebuilt.CurrentYear)
		return nil
	})
}

// compareProjections checks the rebuilt projection rows against the live
// store, row by row. Any mismatch is a determinism defect in the apply path.
func compareProjections(ctx context.Context, live, rebuilt *sqlite.Store, campaignID string) error {
	livePlayers, err := live.ListPlayers(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("live players: %w", err)
	}
	rebuiltPlayers, err := rebuilt.ListPlayers(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("rebuilt players: %w", err)
	}
	if !reflect.DeepEqual(livePlayers, rebuiltPlayers) {
		return fmt.Errorf("replay divergence: players (live %d rows, rebuilt %d rows)",
			len(livePlayers), len(rebuiltPlayers))
	}

	liveScholars, err := live.ListScholars(ctx, campaignID, false)
	if err != nil {
		return fmt.Errorf("live scholars: %w", err)
	}
	rebuiltScholars, err := rebuilt.ListScholars(ctx, campaignID, false)
	if err != nil {
		return fmt.Errorf("rebuilt scholars: %w", err)
	}
	if !reflect.DeepEqual(liveScholars, rebuiltScholars) {
		return fmt.Errorf("replay divergence: scholars (live %d rows, rebuilt %d rows)",
			len(liveScholars), len(rebuiltScholars))
	}

	statuses := []orders.Status{
		orders.StatusPending, orders.StatusActive, orders.StatusCompleted,
		orders.StatusCancelled, orders.StatusFailed,
	}
	for _, status := range statuses {
		liveOrders, err := live.ListOrdersByStatus(ctx, campaignID, status)
		if err != nil {
			return fmt.Errorf("live %s orders: %w", status, err)
		}
		rebuiltOrders, err := rebuilt.ListOrdersByStatus(ctx, campaignID, status)
		if err != nil {
			return fmt.Errorf("rebuilt %s orders: %w", status, err)
		}
		if !reflect.DeepEqual(liveOrders, rebuiltOrders) {
			return fmt.Errorf("replay divergence: %s orders (live %d rows, rebuilt %d rows)",
				status, len(liveOrders), len(rebuiltOrders))
		}
	}
	return nil
}

// genesisYear finds the starting year from the first timeline advance in the
// journal. It reports false when the campaign has never ticked.
func genesisYear(ctx context.Context, events storage.EventStore, campaignID string) (int, bool, error) {
	var after uint64
	for {
		page, err := events.ListEvents(ctx, campaignID, after, 200)
		if err != nil {
			return 0, false, err
		}
		if len(page) == 0 {
			return 0, false, nil
		}
		for _, evt := range page {
			after = evt.Seq
			if evt.Type != event.TypeTimelineAdvanced {
				continue
			}
			var payload event.TimelineAdvancedPayload
			if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
				return 0, false, fmt.Errorf("decode seq %d: %w", evt.Seq, err)
			}
			return payload.FromYear, true, nil
		}
	}
}
