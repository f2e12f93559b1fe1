// Package sqlite provides the SQLite-backed campaign store.
//
// One database file holds one or more campaigns: the append-only event
// journal plus every projection table. The journal is authoritative;
// projections are rebuilt from it by replay.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ashfield-games/greatwork/internal/engine/event"
	"github.com/ashfield-games/greatwork/internal/engine/expedition"
	"github.com/ashfield-games/greatwork/internal/engine/offer"
	"github.com/ashfield-games/greatwork/internal/engine/orders"
	"github.com/ashfield-games/greatwork/internal/engine/player"
	"github.com/ashfield-games/greatwork/internal/engine/scholar"
	"github.com/ashfield-games/greatwork/internal/engine/theory"
	"github.com/ashfield-games/greatwork/internal/platform/storage/sqlitemigrate"
	"github.com/ashfield-games/greatwork/internal/storage"
	"github.com/ashfield-games/greatwork/internal/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed campaign persistence.
type Store struct {
	sqlDB *sql.DB
}

var _ storage.Store = (*Store)(nil)

// Open opens a campaign SQLite store and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready() error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// AppendEvent assigns the next sequence number and content hash inside one
// transaction, then persists the event.
func (s *Store) AppendEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	if err := s.ready(); err != nil {
		return event.Event{}, err
	}
	if strings.TrimSpace(evt.CampaignID) == "" {
		return event.Event{}, fmt.Errorf("campaign id is required")
	}
	if !evt.Type.IsValid() {
		return event.Event{}, fmt.Errorf("event type is required")
	}
	if evt.Timestamp.IsZero() {
		return event.Event{}, fmt.Errorf("event timestamp is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return event.Event{}, fmt.Errorf("begin append transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var lastSeq uint64
	row := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM events WHERE campaign_id = ?`, evt.CampaignID)
	if err := row.Scan(&lastSeq); err != nil {
		return event.Event{}, fmt.Errorf("read latest seq: %w", err)
	}

	evt.Seq = lastSeq + 1
	evt.Hash = event.EventHash(evt)

	_, err = tx.ExecContext(ctx, `
INSERT INTO events (
	campaign_id, seq, hash, ts, type, actor_type, actor_id, entity_type, entity_id, payload_json
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		evt.CampaignID,
		evt.Seq,
		evt.Hash,
		evt.Timestamp.UTC().UnixMilli(),
		string(evt.Type),
		string(evt.ActorType),
		evt.ActorID,
		evt.EntityType,
		evt.EntityID,
		string(evt.PayloadJSON),
	)
	if err != nil {
		return event.Event{}, fmt.Errorf("append event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return event.Event{}, fmt.Errorf("commit append: %w", err)
	}
	return evt, nil
}

// ListEvents returns up to limit events with Seq > afterSeq in journal order.
func (s *Store) ListEvents(ctx context.Context, campaignID string, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT campaign_id, seq, hash, ts, type, actor_type, actor_id, entity_type, entity_id, payload_json
FROM events
WHERE campaign_id = ? AND seq > ?
ORDER BY seq
LIMIT ?
`, campaignID, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var evt event.Event
		var ts int64
		var typ, actorType, payload string
		if err := rows.Scan(
			&evt.CampaignID, &evt.Seq, &evt.Hash, &ts, &typ,
			&actorType, &evt.ActorID, &evt.EntityType, &evt.EntityID, &payload,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		evt.Timestamp = time.UnixMilli(ts).UTC()
		evt.Type = event.Type(typ)
		evt.ActorType = event.ActorType(actorType)
		evt.PayloadJSON = []byte(payload)
		events = append(events, evt)
	}
	return events, rows.Err()
}

// LatestSeq returns the highest assigned sequence number, 0 when empty.
func (s *Store) LatestSeq(ctx context.Context, campaignID string) (uint64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	var seq uint64
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM events WHERE campaign_id = ?`, campaignID)
	if err := row.Scan(&seq); err != nil {
		return 0, fmt.Errorf("read latest seq: %w", err)
	}
	return seq, nil
}

// LatestSeqOfType returns the highest sequence carrying the given event type.
func (s *Store) LatestSeqOfType(ctx context.Context, campaignID string, typ event.Type) (uint64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	var seq uint64
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM events WHERE campaign_id = ? AND type = ?`,
		campaignID, string(typ))
	if err := row.Scan(&seq); err != nil {
		return 0, fmt.Errorf("read latest seq of %s: %w", typ, err)
	}
	return seq, nil
}

// CountEventsOfType counts events of the given type with Seq > afterSeq.
func (s *Store) CountEventsOfType(ctx context.Context, campaignID string, typ event.Type, afterSeq uint64) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	var count int
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE campaign_id = ? AND type = ? AND seq > ?`,
		campaignID, string(typ), afterSeq)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s events: %w", typ, err)
	}
	return count, nil
}

// PutPlayer upserts a player projection.
func (s *Store) PutPlayer(ctx context.Context, campaignID string, p player.Player) error {
	if err := s.ready(); err != nil {
		return err
	}
	influenceJSON, err := json.Marshal(p.Influence)
	if err != nil {
		return fmt.Errorf("marshal influence: %w", err)
	}
	cooldownsJSON, err := json.Marshal(p.Cooldowns)
	if err != nil {
		return fmt.Errorf("marshal cooldowns: %w", err)
	}
	debtsJSON, err := json.Marshal(p.Debts)
	if err != nil {
		return fmt.Errorf("marshal debts: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO players (campaign_id, id, reputation, influence_json, cooldowns_json, debts_json, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (campaign_id, id) DO UPDATE SET
	reputation = excluded.reputation,
	influence_json = excluded.influence_json,
	cooldowns_json = excluded.cooldowns_json,
	debts_json = excluded.debts_json
`,
		campaignID, p.ID, p.Reputation,
		string(influenceJSON), string(cooldownsJSON), string(debtsJSON),
		p.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put player: %w", err)
	}
	return nil
}

// GetPlayer loads one player projection.
func (s *Store) GetPlayer(ctx context.Context, campaignID, playerID string) (player.Player, error) {
	if err := s.ready(); err != nil {
		return player.Player{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, reputation, influence_json, cooldowns_json, debts_json, created_at
FROM players
WHERE campaign_id = ? AND id = ?
`, campaignID, playerID)
	return scanPlayer(row)
}

// ListPlayers returns all players in a campaign ordered by creation then id.
func (s *Store) ListPlayers(ctx context.Context, campaignID string) ([]player.Player, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, reputation, influence_json, cooldowns_json, debts_json, created_at
FROM players
WHERE campaign_id = ?
ORDER BY created_at, id
`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var players []player.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row rowScanner) (player.Player, error) {
	var p player.Player
	var influenceJSON, cooldownsJSON, debtsJSON string
	var createdAt int64
	if err := row.Scan(&p.ID, &p.Reputation, &influenceJSON, &cooldownsJSON, &debtsJSON, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return player.Player{}, storage.ErrNotFound
		}
		return player.Player{}, fmt.Errorf("scan player: %w", err)
	}
	if err := json.Unmarshal([]byte(influenceJSON), &p.Influence); err != nil {
		return player.Player{}, fmt.Errorf("decode influence: %w", err)
	}
	if err := json.Unmarshal([]byte(cooldownsJSON), &p.Cooldowns); err != nil {
		return player.Player{}, fmt.Errorf("decode cooldowns: %w", err)
	}
	if err := json.Unmarshal([]byte(debtsJSON), &p.Debts); err != nil {
		return player.Player{}, fmt.Errorf("decode debts: %w", err)
	}
	p.CreatedAt = time.UnixMilli(createdAt).UTC()
	return p, nil
}

// PutScholar upserts a scholar projection.
func (s *Store) PutScholar(ctx context.Context, campaignID string, sch scholar.Scholar) error {
	if err := s.ready(); err != nil {
		return err
	}
	statsJSON, err := json.Marshal(sch.Stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	memoryJSON, err := json.Marshal(sch.Memory)
	if err != nil {
		return fmt.Errorf("marshal memory: %w", err)
	}

	retired := 0
	if sch.Retired {
		retired = 1
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO scholars (campaign_id, id, name, archetype, tier, stats_json, memory_json, retired, promoted_year, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (campaign_id, id) DO UPDATE SET
	name = excluded.name,
	archetype = excluded.archetype,
	tier = excluded.tier,
	stats_json = excluded.stats_json,
	memory_json = excluded.memory_json,
	retired = excluded.retired,
	promoted_year = excluded.promoted_year
`,
		campaignID, sch.ID, sch.Name, sch.Archetype, sch.Tier.String(),
		string(statsJSON), string(memoryJSON), retired, sch.PromotedYear,
		sch.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put scholar: %w", err)
	}
	return nil
}

// GetScholar loads one scholar projection.
func (s *Store) GetScholar(ctx context.Context, campaignID, scholarID string) (scholar.Scholar, error) {
	if err := s.ready(); err != nil {
		return scholar.Scholar{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, name, archetype, tier, stats_json, memory_json, retired, promoted_year, created_at
FROM scholars
WHERE campaign_id = ? AND id = ?
`, campaignID, scholarID)
	return scanScholar(row)
}

// ListScholars returns scholars ordered by creation then id.
func (s *Store) ListScholars(ctx context.Context, campaignID string, activeOnly bool) ([]scholar.Scholar, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	query := `
SELECT id, name, archetype, tier, stats_json, memory_json, retired, promoted_year, created_at
FROM scholars
WHERE campaign_id = ?`
	if activeOnly {
		query += ` AND retired = 0`
	}
	query += `
ORDER BY created_at, id`

	rows, err := s.sqlDB.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list scholars: %w", err)
	}
	defer rows.Close()

	var scholars []scholar.Scholar
	for rows.Next() {
		sch, err := scanScholar(rows)
		if err != nil {
			return nil, err
		}
		scholars = append(scholars, sch)
	}
	return scholars, rows.Err()
}

// CountActiveScholars counts unretired scholars.
func (s *Store) CountActiveScholars(ctx context.Context, campaignID string) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	var count int
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scholars WHERE campaign_id = ? AND retired = 0`, campaignID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count scholars: %w", err)
	}
	return count, nil
}

func scanScholar(row rowScanner) (scholar.Scholar, error) {
	var sch scholar.Scholar
	var tier, statsJSON, memoryJSON string
	var retired int
	var createdAt int64
	if err := row.Scan(&sch.ID, &sch.Name, &sch.Archetype, &tier, &statsJSON, &memoryJSON, &retired, &sch.PromotedYear, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return scholar.Scholar{}, storage.ErrNotFound
		}
		return scholar.Scholar{}, fmt.Errorf("scan scholar: %w", err)
	}
	parsed, ok := scholar.ParseTier(tier)
	if !ok {
		return scholar.Scholar{}, fmt.Errorf("unknown scholar tier %q", tier)
	}
	sch.Tier = parsed
	if err := json.Unmarshal([]byte(statsJSON), &sch.Stats); err != nil {
		return scholar.Scholar{}, fmt.Errorf("decode stats: %w", err)
	}
	if err := json.Unmarshal([]byte(memoryJSON), &sch.Memory); err != nil {
		return scholar.Scholar{}, fmt.Errorf("decode memory: %w", err)
	}
	sch.Retired = retired != 0
	sch.CreatedAt = time.UnixMilli(createdAt).UTC()
	return sch, nil
}

// PutTheory upserts a theory projection.
func (s *Store) PutTheory(ctx context.Context, campaignID string, t theory.Theory) error {
	if err := s.ready(); err != nil {
		return err
	}
	supportersJSON, err := json.Marshal(t.Supporters)
	if err != nil {
		return fmt.Errorf("marshal supporters: %w", err)
	}
	var resolvedAt int64
	if !t.ResolvedAt.IsZero() {
		resolvedAt = t.ResolvedAt.UTC().UnixMilli()
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO theories (campaign_id, id, player_id, claim, confidence, supporters_json, deadline, submitted_at, outcome, resolved_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (campaign_id, id) DO UPDATE SET
	outcome = excluded.outcome,
	resolved_at = excluded.resolved_at
`,
		campaignID, t.ID, t.PlayerID, t.Claim, string(t.Confidence),
		string(supportersJSON), t.Deadline.UTC().UnixMilli(), t.SubmittedAt.UTC().UnixMilli(),
		string(t.Outcome), resolvedAt,
	)
	if err != nil {
		return fmt.Errorf("put theory: %w", err)
	}
	return nil
}

// GetTheory loads one theory projection.
func (s *Store) GetTheory(ctx context.Context, campaignID, theoryID string) (theory.Theory, error) {
	if err := s.ready(); err != nil {
		return theory.Theory{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, player_id, claim, confidence, supporters_json, deadline, submitted_at, outcome, resolved_at
FROM theories
WHERE campaign_id = ? AND id = ?
`, campaignID, theoryID)
	return scanTheory(row)
}

// ListOpenTheories returns unresolved theories ordered by deadline then id.
func (s *Store) ListOpenTheories(ctx context.Context, campaignID string) ([]theory.Theory, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, player_id, claim, confidence, supporters_json, deadline, submitted_at, outcome, resolved_at
FROM theories
WHERE campaign_id = ? AND outcome = ''
ORDER BY deadline, id
`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list open theories: %w", err)
	}
	defer rows.Close()

	var theories []theory.Theory
	for rows.Next() {
		t, err := scanTheory(rows)
		if err != nil {
			return nil, err
		}
		theories = append(theories, t)
	}
	return theories, rows.Err()
}

func scanTheory(row rowScanner) (theory.Theory, error) {
	var t theory.Theory
	var confidence, supportersJSON, outcome string
	var deadline, submittedAt, resolvedAt int64
	if err := row.Scan(&t.ID, &t.PlayerID, &t.Claim, &confidence, &supportersJSON, &deadline, &submittedAt, &outcome, &resolvedAt); err != nil {
		if err == sql.ErrNoRows {
			return theory.Theory{}, storage.ErrNotFound
		}
		return theory.Theory{}, fmt.Errorf("scan theory: %w", err)
	}
	t.Confidence = theory.Confidence(confidence)
	if err := json.Unmarshal([]byte(supportersJSON), &t.Supporters); err != nil {
		return theory.Theory{}, fmt.Errorf("decode supporters: %w", err)
	}
	t.Deadline = time.UnixMilli(deadline).UTC()
	t.SubmittedAt = time.UnixMilli(submittedAt).UTC()
	t.Outcome = theory.Outcome(outcome)
	if resolvedAt != 0 {
		t.ResolvedAt = time.UnixMilli(resolvedAt).UTC()
	}
	return t, nil
}

// PutExpedition upserts an expedition projection.
func (s *Store) PutExpedition(ctx context.Context, campaignID string, e expedition.Expedition) error {
	if err := s.ready(); err != nil {
		return err
	}
	teamJSON, err := json.Marshal(e.Team)
	if err != nil {
		return fmt.Errorf("marshal team: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO expeditions (campaign_id, id, player_id, type, team_json, prep_depth, funding, status, launched_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (campaign_id, id) DO UPDATE SET
	status = excluded.status
`,
		campaignID, e.ID, e.PlayerID, string(e.Type), string(teamJSON),
		e.PrepDepth, string(e.Funding), string(e.Status),
		e.LaunchedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put expedition: %w", err)
	}
	return nil
}

// GetExpedition loads one expedition projection.
func (s *Store) GetExpedition(ctx context.Context, campaignID, expeditionID string) (expedition.Expedition, error) {
	if err := s.ready(); err != nil {
		return expedition.Expedition{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, player_id, type, team_json, prep_depth, funding, status, launched_at
FROM expeditions
WHERE campaign_id = ? AND id = ?
`, campaignID, expeditionID)
	return scanExpedition(row)
}

// ListQueuedExpeditions returns unresolved expeditions in launch order.
func (s *Store) ListQueuedExpeditions(ctx context.Context, campaignID string) ([]expedition.Expedition, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, player_id, type, team_json, prep_depth, funding, status, launched_at
FROM expeditions
WHERE campaign_id = ? AND status = ?
ORDER BY launched_at, id
`, campaignID, string(expedition.StatusQueued))
	if err != nil {
		return nil, fmt.Errorf("list queued expeditions: %w", err)
	}
	defer rows.Close()

	var expeditions []expedition.Expedition
	for rows.Next() {
		e, err := scanExpedition(rows)
		if err != nil {
			return nil, err
		}
		expeditions = append(expeditions, e)
	}
	return expeditions, rows.Err()
}

func scanExpedition(row rowScanner) (expedition.Expedition, error) {
	var e expedition.Expedition
	var tier, teamJSON, funding, status string
	var launchedAt int64
	if err := row.Scan(&e.ID, &e.PlayerID, &tier, &teamJSON, &e.PrepDepth, &funding, &status, &launchedAt); err != nil {
		if err == sql.ErrNoRows {
			return expedition.Expedition{}, storage.ErrNotFound
		}
		return expedition.Expedition{}, fmt.Errorf("scan expedition: %w", err)
	}
	e.Type = expedition.Tier(tier)
	if err := json.Unmarshal([]byte(teamJSON), &e.Team); err != nil {
		return expedition.Expedition{}, fmt.Errorf("decode team: %w", err)
	}
	e.Funding = expedition.Funding(funding)
	e.Status = expedition.Status(status)
	e.LaunchedAt = time.UnixMilli(launchedAt).UTC()
	return e, nil
}

// PutOrder upserts a dispatcher order. Insertion order is preserved across
// updates, so the due-order tie-break stays stable.
func (s *Store) PutOrder(ctx context.Context, campaignID string, o orders.Order) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO orders (campaign_id, id, order_type, actor_id, subject_id, payload_json, scheduled_at, status, attempts, result, reason, source_table, source_id, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (campaign_id, id) DO UPDATE SET
	status = excluded.status,
	attempts = excluded.attempts,
	result = excluded.result,
	reason = excluded.reason
`,
		campaignID, o.ID, o.OrderType, o.ActorID, o.SubjectID, string(o.Payload),
		o.ScheduledAt.UTC().UnixMilli(), string(o.Status), o.Attempts,
		o.Result, o.Reason, o.SourceTable, o.SourceID,
		o.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put order: %w", err)
	}
	return nil
}

// GetOrder loads one order.
func (s *Store) GetOrder(ctx context.Context, campaignID, orderID string) (orders.Order, error) {
	if err := s.ready(); err != nil {
		return orders.Order{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, order_type, actor_id, subject_id, payload_json, scheduled_at, status, attempts, result, reason, source_table, source_id, created_at
FROM orders
WHERE campaign_id = ? AND id = ?
`, campaignID, orderID)
	return scanOrder(row)
}

// DueOrders returns pending orders with scheduled_at <= now, ordered by
// scheduled_at then insertion order.
func (s *Store) DueOrders(ctx context.Context, campaignID string, now time.Time) ([]orders.Order, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, order_type, actor_id, subject_id, payload_json, scheduled_at, status, attempts, result, reason, source_table, source_id, created_at
FROM orders
WHERE campaign_id = ? AND status = ? AND scheduled_at <= ?
ORDER BY scheduled_at, row_id
`, campaignID, string(orders.StatusPending), now.UTC().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("list due orders: %w", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

// ListOrdersByStatus returns orders in one status, oldest first.
func (s *Store) ListOrdersByStatus(ctx context.Context, campaignID string, status orders.Status) ([]orders.Order, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, order_type, actor_id, subject_id, payload_json, scheduled_at, status, attempts, result, reason, source_table, source_id, created_at
FROM orders
WHERE campaign_id = ? AND status = ?
ORDER BY scheduled_at, row_id
`, campaignID, string(status))
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

func collectOrders(rows *sql.Rows) ([]orders.Order, error) {
	var result []orders.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

func scanOrder(row rowScanner) (orders.Order, error) {
	var o orders.Order
	var payload, status string
	var scheduledAt, createdAt int64
	if err := row.Scan(&o.ID, &o.OrderType, &o.ActorID, &o.SubjectID, &payload, &scheduledAt, &status, &o.Attempts, &o.Result, &o.Reason, &o.SourceTable, &o.SourceID, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return orders.Order{}, storage.ErrNotFound
		}
		return orders.Order{}, fmt.Errorf("scan order: %w", err)
	}
	if payload != "" {
		o.Payload = []byte(payload)
	}
	o.ScheduledAt = time.UnixMilli(scheduledAt).UTC()
	o.Status = orders.Status(status)
	o.CreatedAt = time.UnixMilli(createdAt).UTC()
	return o, nil
}

// PutOffer upserts a negotiation projection.
func (s *Store) PutOffer(ctx context.Context, campaignID string, o offer.Offer) error {
	if err := s.ready(); err != nil {
		return err
	}
	termsJSON, err := json.Marshal(o.Terms)
	if err != nil {
		return fmt.Errorf("marshal terms: %w", err)
	}
	counterJSON, err := json.Marshal(o.Counter)
	if err != nil {
		return fmt.Errorf("marshal counter terms: %w", err)
	}
	var resolvedAt int64
	if !o.ResolvedAt.IsZero() {
		resolvedAt = o.ResolvedAt.UTC().UnixMilli()
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO offers (campaign_id, id, actor_id, scholar_id, terms_json, counter_json, state, rounds, outcome, created_at, resolved_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (campaign_id, id) DO UPDATE SET
	counter_json = excluded.counter_json,
	state = excluded.state,
	rounds = excluded.rounds,
	outcome = excluded.outcome,
	resolved_at = excluded.resolved_at
`,
		campaignID, o.ID, o.ActorID, o.ScholarID,
		string(termsJSON), string(counterJSON), string(o.State), o.Rounds,
		string(o.Outcome), o.CreatedAt.UTC().UnixMilli(), resolvedAt,
	)
	if err != nil {
		return fmt.Errorf("put offer: %w", err)
	}
	return nil
}

// GetOffer loads one negotiation projection.
func (s *Store) GetOffer(ctx context.Context, campaignID, offerID string) (offer.Offer, error) {
	if err := s.ready(); err != nil {
		return offer.Offer{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, actor_id, scholar_id, terms_json, counter_json, state, rounds, outcome, created_at, resolved_at
FROM offers
WHERE campaign_id = ? AND id = ?
`, campaignID, offerID)
	return scanOffer(row)
}

// ListOpenOffers returns unresolved negotiations oldest first.
func (s *Store) ListOpenOffers(ctx context.Context, campaignID string) ([]offer.Offer, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, actor_id, scholar_id, terms_json, counter_json, state, rounds, outcome, created_at, resolved_at
FROM offers
WHERE campaign_id = ? AND state IN (?, ?)
ORDER BY created_at, id
`, campaignID, string(offer.StateOpen), string(offer.StateCountered))
	if err != nil {
		return nil, fmt.Errorf("list open offers: %w", err)
	}
	defer rows.Close()

	var offers []offer.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, o)
	}
	return offers, rows.Err()
}

func scanOffer(row rowScanner) (offer.Offer, error) {
	var o offer.Offer
	var termsJSON, counterJSON, state, outcome string
	var createdAt, resolvedAt int64
	if err := row.Scan(&o.ID, &o.ActorID, &o.ScholarID, &termsJSON, &counterJSON, &state, &o.Rounds, &outcome, &createdAt, &resolvedAt); err != nil {
		if err == sql.ErrNoRows {
			return offer.Offer{}, storage.ErrNotFound
		}
		return offer.Offer{}, fmt.Errorf("scan offer: %w", err)
	}
	if err := json.Unmarshal([]byte(termsJSON), &o.Terms); err != nil {
		return offer.Offer{}, fmt.Errorf("decode terms: %w", err)
	}
	if counterJSON != "" {
		if err := json.Unmarshal([]byte(counterJSON), &o.Counter); err != nil {
			return offer.Offer{}, fmt.Errorf("decode counter terms: %w", err)
		}
	}
	o.State = offer.State(state)
	o.Outcome = offer.State(outcome)
	o.CreatedAt = time.UnixMilli(createdAt).UTC()
	if resolvedAt != 0 {
		o.ResolvedAt = time.UnixMilli(resolvedAt).UTC()
	}
	return o, nil
}

// PutTimeline upserts the per-campaign clock.
func (s *Store) PutTimeline(ctx context.Context, t storage.Timeline) error {
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(t.CampaignID) == "" {
		return fmt.Errorf("campaign id is required")
	}
	var lastTickAt int64
	if !t.LastTickAt.IsZero() {
		lastTickAt = t.LastTickAt.UTC().UnixMilli()
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO campaign_timeline (campaign_id, seed, current_year, last_tick_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (campaign_id) DO UPDATE SET
	seed = excluded.seed,
	current_year = excluded.current_year,
	last_tick_at = excluded.last_tick_at
`,
		t.CampaignID, t.Seed, t.CurrentYear, lastTickAt,
	)
	if err != nil {
		return fmt.Errorf("put timeline: %w", err)
	}
	return nil
}

// GetTimeline loads the per-campaign clock.
func (s *Store) GetTimeline(ctx context.Context, campaignID string) (storage.Timeline, error) {
	if err := s.ready(); err != nil {
		return storage.Timeline{}, err
	}
	var t storage.Timeline
	var lastTickAt int64
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT campaign_id, seed, current_year, last_tick_at
FROM campaign_timeline
WHERE campaign_id = ?
`, campaignID)
	if err := row.Scan(&t.CampaignID, &t.Seed, &t.CurrentYear, &lastTickAt); err != nil {
		if err == sql.ErrNoRows {
			return storage.Timeline{}, storage.ErrNotFound
		}
		return storage.Timeline{}, fmt.Errorf("scan timeline: %w", err)
	}
	if lastTickAt != 0 {
		t.LastTickAt = time.UnixMilli(lastTickAt).UTC()
	}
	return t, nil
}

// RecordTick persists one tick summary.
func (s *Store) RecordTick(ctx context.Context, record storage.TickRecord) error {
	if err := s.ready(); err != nil {
		return err
	}
	bandJSON, err := json.Marshal(record.BandCounts)
	if err != nil {
		return fmt.Errorf("marshal band counts: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO telemetry_ticks (campaign_id, ticked_at, year, orders_processed, orders_failed, orders_cancelled, expeditions, band_counts_json, events_appended, duration_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		record.CampaignID, record.TickedAt.UTC().UnixMilli(), record.Year,
		record.OrdersProcessed, record.OrdersFailed, record.OrdersCancelled,
		record.Expeditions, string(bandJSON), record.EventsAppended,
		record.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("record tick: %w", err)
	}
	return nil
}

// ListTicks lists newest-first tick summaries.
func (s *Store) ListTicks(ctx context.Context, campaignID string, limit int) ([]storage.TickRecord, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT campaign_id, ticked_at, year, orders_processed, orders_failed, orders_cancelled, expeditions, band_counts_json, events_appended, duration_ms
FROM telemetry_ticks
WHERE campaign_id = ?
ORDER BY ticked_at DESC, id DESC
LIMIT ?
`, campaignID, limit)
	if err != nil {
		return nil, fmt.Errorf("list ticks: %w", err)
	}
	defer rows.Close()

	var records []storage.TickRecord
	for rows.Next() {
		var record storage.TickRecord
		var tickedAt, durationMs int64
		var bandJSON string
		if err := rows.Scan(&record.CampaignID, &tickedAt, &record.Year, &record.OrdersProcessed, &record.OrdersFailed, &record.OrdersCancelled, &record.Expeditions, &bandJSON, &record.EventsAppended, &durationMs); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		record.TickedAt = time.UnixMilli(tickedAt).UTC()
		if err := json.Unmarshal([]byte(bandJSON), &record.BandCounts); err != nil {
			return nil, fmt.Errorf("decode band counts: %w", err)
		}
		record.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, record)
	}
	return records, rows.Err()
}
