package event

// TimelineAdvancedPayload captures the payload for timeline.advanced events.
type TimelineAdvancedPayload struct {
	FromYear     int `json:"from_year"`
	ToYear       int `json:"to_year"`
	ElapsedYears int `json:"elapsed_years"`
}

// TickCompletedPayload captures the payload for digest.tick_completed events.
// Counts cover everything the tick did, for digest and reporting consumers.
type TickCompletedPayload struct {
	Year            int            `json:"year"`
	OrdersProcessed int            `json:"orders_processed"`
	OrdersFailed    int            `json:"orders_failed"`
	OrdersCancelled int            `json:"orders_cancelled"`
	Expeditions     int            `json:"expeditions"`
	BandCounts      map[string]int `json:"band_counts,omitempty"`
	EventsAppended  int            `json:"events_appended"`
	DurationMs      int64          `json:"duration_ms"`
}

const timelineAdvancedSchema = `{
	"type": "object",
	"properties": {
		"from_year": {"type": "integer"},
		"to_year": {"type": "integer"},
		"elapsed_years": {"type": "integer", "minimum": 0},
		"schema_version": {"type": "string"}
	},
	"required": ["from_year", "to_year", "elapsed_years"],
	"additionalProperties": false
}`

const tickCompletedSchema = `{
	"type": "object",
	"properties": {
		"year": {"type": "integer"},
		"orders_processed": {"type": "integer", "minimum": 0},
		"orders_failed": {"type": "integer", "minimum": 0},
		"orders_cancelled": {"type": "integer", "minimum": 0},
		"expeditions": {"type": "integer", "minimum": 0},
		"band_counts": {
			"type": "object",
			"additionalProperties": {"type": "integer", "minimum": 0}
		},
		"events_appended": {"type": "integer", "minimum": 0},
		"duration_ms": {"type": "integer", "minimum": 0},
		"schema_version": {"type": "string"}
	},
	"required": ["year", "orders_processed", "orders_failed", "orders_cancelled", "expeditions", "events_appended", "duration_ms"],
	"additionalProperties": false
}`

// RegisterCoreEvents registers the timeline and digest event definitions that
// belong to the engine itself rather than a domain package.
func RegisterCoreEvents(registry *Registry) error {
	definitions := []Definition{
		{Type: TypeTimelineAdvanced, Addressing: AddressingPolicyNone, Schema: timelineAdvancedSchema},
		{Type: TypeDigestTickCompleted, Addressing: AddressingPolicyNone, Schema: tickCompletedSchema},
	}
	for _, definition := range definitions {
		if err := registry.Register(definition); err != nil {
			return err
		}
	}
	return nil
}
