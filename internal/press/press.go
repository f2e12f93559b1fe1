// Package press turns journal events into player-facing digest copy. Drafts
// are built from templates after a tick commits; an optional enhancer can
// rewrite them, and any enhancer failure falls back to the template text.
package press

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ashfield-games/greatwork/internal/engine/event"
	"github.com/ashfield-games/greatwork/internal/engine/expedition"
	"github.com/ashfield-games/greatwork/internal/engine/offer"
	"github.com/ashfield-games/greatwork/internal/engine/scholar"
	"github.com/ashfield-games/greatwork/internal/engine/theory"
)

// Draft is one digest item ready for delivery.
type Draft struct {
	// EventSeq ties the draft back to its journal event.
	EventSeq uint64
	// EventType is the journal event type the draft covers.
	EventType event.Type
	Headline  string
	Body      string
	// Deltas surfaces notable numeric changes, keyed by a short label.
	Deltas map[string]int
}

// Enhancer rewrites a template draft, e.g. through a narrative model. It must
// return the improved draft or an error; it never sees the journal.
type Enhancer interface {
	Enhance(ctx context.Context, draft Draft) (Draft, error)
}

// Desk builds digest drafts from journal events.
type Desk struct {
	enhancer Enhancer
	timeout  time.Duration
	logger   *log.Logger
}

// NewDesk creates a desk. The enhancer may be nil, in which case template
// drafts are returned as-is.
func NewDesk(enhancer Enhancer) *Desk {
	return &Desk{enhancer: enhancer, timeout: 5 * time.Second}
}

// SetLogger directs enhancer failure diagnostics to the given logger.
func (d *Desk) SetLogger(logger *log.Logger) {
	d.logger = logger
}

// SetTimeout bounds each enhancement call.
func (d *Desk) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		d.timeout = timeout
	}
}

// Drafts builds one draft per newsworthy event, in journal order. Events
// without a template are skipped. Enhancement failures keep the template
// draft; drafting never returns an error for a single bad payload, it skips
// the event and logs.
func (d *Desk) Drafts(ctx context.Context, events []event.Event) []Draft {
	var drafts []Draft
	for _, evt := range events {
		draft, ok, err := templateDraft(evt)
		if err != nil {
			d.logf("press: draft seq %d: %v", evt.Seq, err)
			continue
		}
		if !ok {
			continue
		}
		drafts = append(drafts, d.enhance(ctx, draft))
	}
	return drafts
}

func (d *Desk) enhance(ctx context.Context, draft Draft) Draft {
	if d.enhancer == nil {
		return draft
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	enhanced, err := d.enhancer.Enhance(ctx, draft)
	if err != nil {
		d.logf("press: enhance seq %d: %v", draft.EventSeq, err)
		return draft
	}
	// The enhancer rewrites copy, not provenance.
	enhanced.EventSeq = draft.EventSeq
	enhanced.EventType = draft.EventType
	if strings.TrimSpace(enhanced.Headline) == "" {
		enhanced.Headline = draft.Headline
	}
	if strings.TrimSpace(enhanced.Body) == "" {
		enhanced.Body = draft.Body
	}
	return enhanced
}

func (d *Desk) logf(format string, args ...any) {
	if d.logger != nil {
		d.logger.Printf(format, args...)
	}
}

// bandHeadlines map expedition bands to digest headlines.
var bandHeadlines = map[string]string{
	string(expedition.BandFailure):  "Expedition Returns Empty-Handed",
	string(expedition.BandPartial):  "Modest Finds Reported",
	string(expedition.BandSolid):    "Significant Discovery Announced",
	string(expedition.BandLandmark): "Landmark Discovery Rewrites the Record",
}

func templateDraft(evt event.Event) (Draft, bool, error) {
	switch evt.Type {
	case event.TypeExpeditionResolved:
		var payload expedition.ResolvedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return Draft{}, false, err
		}
		headline, ok := bandHeadlines[payload.Band]
		if !ok {
			headline = "Expedition Concludes"
		}
		body := fmt.Sprintf("Expedition %s concluded with a score of %d.",
			payload.ExpeditionID, payload.Score)
		if payload.DomainTag != "" {
			body += fmt.Sprintf(" The findings open the field of %s.", payload.DomainTag)
		}
		deltas := map[string]int{"score": payload.Score}
		for _, effect := range payload.Effects {
			if effect.Kind == expedition.EffectInfluenceDelta && effect.Influence != nil {
				deltas["influence:"+effect.Influence.Faction] += effect.Influence.Delta
			}
		}
		return Draft{
			EventSeq:  evt.Seq,
			EventType: evt.Type,
			Headline:  headline,
			Body:      body,
			Deltas:    deltas,
		}, true, nil

	case event.TypeTheoryResolved:
		var payload theory.ResolvedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return Draft{}, false, err
		}
		headline := "Theory Judged"
		switch theory.Outcome(payload.Outcome) {
		case theory.OutcomeVindicated:
			headline = "Bold Claim Vindicated"
		case theory.OutcomeRefuted:
			headline = "Published Theory Refuted"
		case theory.OutcomeExpired:
			headline = "Theory Lapses Unjudged"
		}
		body := fmt.Sprintf("Theory %s closed as %s.", payload.TheoryID, payload.Outcome)
		if payload.Reason != "" {
			body += " " + payload.Reason + "."
		}
		return Draft{EventSeq: evt.Seq, EventType: evt.Type, Headline: headline, Body: body}, true, nil

	case event.TypeScholarRetired:
		var payload scholar.RetiredPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return Draft{}, false, err
		}
		headline := "Scholar Leaves the Roster"
		if strings.HasPrefix(payload.Reason, "defected") {
			headline = "Defection Shakes the Institute"
		}
		return Draft{
			EventSeq:  evt.Seq,
			EventType: evt.Type,
			Headline:  headline,
			Body:      fmt.Sprintf("Scholar %s retires: %s.", payload.ScholarID, payload.Reason),
		}, true, nil

	case event.TypeScholarSpawned:
		var payload scholar.SpawnedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return Draft{}, false, err
		}
		// Roster refills are bookkeeping, not news.
		if payload.Origin != "sidecast" {
			return Draft{}, false, nil
		}
		return Draft{
			EventSeq:  evt.Seq,
			EventType: evt.Type,
			Headline:  "Unexpected Talent Emerges",
			Body: fmt.Sprintf("%s joins the roster as %s after distinguishing themselves in the field.",
				payload.Name, payload.Tier),
		}, true, nil

	case event.TypeOfferResolved:
		var payload offer.ResolvedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return Draft{}, false, err
		}
		headline := "Negotiation Concludes"
		if offer.State(payload.Outcome) == offer.StateAccepted {
			headline = "Poaching Bid Succeeds"
		}
		return Draft{
			EventSeq:  evt.Seq,
			EventType: evt.Type,
			Headline:  headline,
			Body:      fmt.Sprintf("Offer %s settled as %s.", payload.OfferID, payload.Outcome),
		}, true, nil
	}
	return Draft{}, false, nil
}
