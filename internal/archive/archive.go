// Package archive exports the campaign journal to compressed JSONL segments
// for offline audit. Export runs after a tick commits and never feeds back
// into the journal.
package archive

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/ashfield-games/greatwork/internal/engine/event"
)

// Record is the archived form of one journal event. The payload is embedded
// as raw JSON so archived lines stay readable without the schema registry.
type Record struct {
	CampaignID  string          `json:"campaign_id"`
	Seq         uint64          `json:"seq"`
	Hash        string          `json:"hash"`
	TimestampMs int64           `json:"timestamp_ms"`
	Type        string          `json:"type"`
	ActorType   string          `json:"actor_type"`
	ActorID     string          `json:"actor_id,omitempty"`
	EntityType  string          `json:"entity_type,omitempty"`
	EntityID    string          `json:"entity_id,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// Exporter appends journal events to rotating zstd-compressed JSONL files.
// Segments rotate per campaign and per UTC day of the event timestamp.
type Exporter struct {
	baseDir string

	mu         sync.Mutex
	curSegment string
	f          *os.File
	enc        *zstd.Encoder
	w          *bufio.Writer
}

// NewExporter creates an exporter rooted at baseDir. Directories are created
// lazily on first write.
func NewExporter(baseDir string) *Exporter {
	return &Exporter{baseDir: baseDir}
}

// ExportEvents appends the given events in order. Events must already carry
// their journal identity (Seq and Hash).
func (e *Exporter) ExportEvents(events []event.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, evt := range events {
		segment := fmt.Sprintf("%s-%s", evt.CampaignID, evt.Timestamp.UTC().Format("2006-01-02"))
		if segment != e.curSegment {
			if err := e.rotateLocked(segment); err != nil {
				return err
			}
		}
		b, err := json.Marshal(Record{
			CampaignID:  evt.CampaignID,
			Seq:         evt.Seq,
			Hash:        evt.Hash,
			TimestampMs: evt.Timestamp.UTC().UnixMilli(),
			Type:        string(evt.Type),
			ActorType:   string(evt.ActorType),
			ActorID:     evt.ActorID,
			EntityType:  evt.EntityType,
			EntityID:    evt.EntityID,
			Payload:     json.RawMessage(evt.PayloadJSON),
		})
		if err != nil {
			return fmt.Errorf("marshal event seq %d: %w", evt.Seq, err)
		}
		if _, err := e.w.Write(b); err != nil {
			return err
		}
		if err := e.w.WriteByte('\n'); err != nil {
			return err
		}
	}
	if e.w != nil {
		return e.w.Flush()
	}
	return nil
}

// Close flushes and closes the current segment.
func (e *Exporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closeLocked()
}

func (e *Exporter) rotateLocked(segment string) error {
	if err := e.closeLocked(); err != nil {
		return err
	}
	path := e.segmentPath(segment)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	e.f = f
	e.enc = enc
	e.w = bufio.NewWriterSize(enc, 64*1024)
	e.curSegment = segment
	return nil
}

func (e *Exporter) closeLocked() error {
	var encErr error
	if e.w != nil {
		_ = e.w.Flush()
	}
	if e.enc != nil {
		encErr = e.enc.Close()
		e.enc = nil
	}
	if e.f != nil {
		_ = e.f.Close()
		e.f = nil
	}
	e.w = nil
	e.curSegment = ""
	return encErr
}

func (e *Exporter) segmentPath(segment string) string {
	return filepath.Join(e.baseDir, fmt.Sprintf("journal-%s.jsonl.zst", segment))
}
