// Package digest parses digest command flags and runs campaign ticks.
package digest

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ashfield-games/greatwork/internal/archive"
	digestengine "github.com/ashfield-games/greatwork/internal/engine/digest"
	"github.com/ashfield-games/greatwork/internal/platform/cmd"
	"github.com/ashfield-games/greatwork/internal/press"
	"github.com/ashfield-games/greatwork/internal/service"
	"github.com/ashfield-games/greatwork/internal/storage/sqlite"
	"github.com/ashfield-games/greatwork/internal/telemetry"
	"github.com/ashfield-games/greatwork/internal/tuning"
)

// Config holds digest command configuration.
type Config struct {
	DBPath     string        `env:"GREATWORK_DIGEST_DB_PATH" envDefault:"data/campaign.db"`
	CampaignID string        `env:"GREATWORK_DIGEST_CAMPAIGN"`
	TuningPath string        `env:"GREATWORK_DIGEST_TUNING_PATH"`
	ArchiveDir string        `env:"GREATWORK_DIGEST_ARCHIVE_DIR"`
	Interval   time.Duration `env:"GREATWORK_DIGEST_INTERVAL"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := cmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The campaign SQLite database path")
	fs.StringVar(&cfg.CampaignID, "campaign", cfg.CampaignID, "The campaign to tick")
	fs.StringVar(&cfg.TuningPath, "tuning-path", cfg.TuningPath, "Tuning YAML path (defaults when empty)")
	fs.StringVar(&cfg.ArchiveDir, "archive-dir", cfg.ArchiveDir, "Journal archive directory (disabled when empty)")
	fs.DurationVar(&cfg.Interval, "interval", cfg.Interval, "Tick interval (run a single tick when zero)")
	if err := cmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes digest ticks until the context ends or, with no interval, once.
func Run(ctx context.Context, cfg Config) error {
	if strings.TrimSpace(cfg.CampaignID) == "" {
		return fmt.Errorf("campaign id is required")
	}
	return cmd.RunWithTelemetry(ctx, cmd.ServiceDigest, func(ctx context.Context) error {
		constants := tuning.Defaults()
		if cfg.TuningPath != "" {
			loaded, err := tuning.Load(cfg.TuningPath)
			if err != nil {
				return fmt.Errorf("load tuning: %w", err)
			}
			constants = loaded
		}

		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Printf("close store: %v", err)
			}
		}()

		registry, err := service.NewEventRegistry()
		if err != nil {
			return fmt.Errorf("event registry: %w", err)
		}
		engine, err := digestengine.New(store, registry, constants)
		if err != nil {
			return fmt.Errorf("new engine: %w", err)
		}
		engine.SetLogger(log.Default())

		emitter := telemetry.NewEmitter(store)
		desk := press.NewDesk(nil)
		desk.SetLogger(log.Default())
		var exporter *archive.Exporter
		if cfg.ArchiveDir != "" {
			exporter = archive.NewExporter(cfg.ArchiveDir)
			defer func() {
				if err := exporter.Close(); err != nil {
					log.Printf("close archive: %v", err)
				}
			}()
		}

		tick := func() error {
			report, err := engine.RunTick(ctx, cfg.CampaignID, time.Now())
			if err != nil {
				return err
			}
			// Collaborators run after the tick commits. Their failures are
			// operational, not journal-affecting, so log and move on.
			if err := emitter.EmitTick(ctx, report); err != nil {
				log.Printf("telemetry: %v", err)
			}
			if exporter != nil {
				if err := exporter.ExportEvents(report.Events); err != nil {
					log.Printf("archive: %v", err)
				}
			}
			for _, draft := range desk.Drafts(ctx, report.Events) {
				log.Printf("press: %s (%s)", draft.Headline, draft.EventType)
			}
			return nil
		}

		if cfg.Interval <= 0 {
			return tick()
		}
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()
		for {
			if err := tick(); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})
}
