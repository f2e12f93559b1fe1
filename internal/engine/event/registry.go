package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	// ErrTypeUnknown indicates an event type with no registered definition.
	ErrTypeUnknown = errors.New("event type is not registered")
	// ErrTypeAlreadyRegistered indicates a duplicate definition.
	ErrTypeAlreadyRegistered = errors.New("event type already registered")
	// ErrTypeRequired indicates a definition or event without a type.
	ErrTypeRequired = errors.New("event type is required")
	// ErrCampaignIDRequired indicates an event without a campaign id.
	ErrCampaignIDRequired = errors.New("campaign id is required")
	// ErrActorTypeInvalid indicates an unrecognized actor type.
	ErrActorTypeInvalid = errors.New("actor type is invalid")
	// ErrActorIDRequired indicates a player or admin event without an actor id.
	ErrActorIDRequired = errors.New("actor id is required")
	// ErrEntityTypeRequired indicates a missing entity type on an addressed event.
	ErrEntityTypeRequired = errors.New("entity type is required")
	// ErrEntityIDRequired indicates a missing entity id on an addressed event.
	ErrEntityIDRequired = errors.New("entity id is required")
	// ErrPayloadInvalid indicates a payload that is not valid JSON.
	ErrPayloadInvalid = errors.New("payload is not valid JSON")
	// ErrPayloadSchema indicates a payload that fails its type's versioned schema.
	ErrPayloadSchema = errors.New("payload does not match event schema")
	// ErrSchemaRequired indicates a definition without a payload schema.
	ErrSchemaRequired = errors.New("payload schema is required")
)

// AddressingPolicy controls which envelope fields an event type must carry.
type AddressingPolicy string

const (
	// AddressingPolicyNone requires only a campaign id.
	AddressingPolicyNone AddressingPolicy = "none"
	// AddressingPolicyEntityTarget requires entity type and id.
	AddressingPolicyEntityTarget AddressingPolicy = "entity_target"
)

// Definition declares one event type's contract.
type Definition struct {
	// Type is the event type being defined.
	Type Type
	// Addressing selects the envelope fields ValidateForAppend requires.
	// Defaults to AddressingPolicyEntityTarget.
	Addressing AddressingPolicy
	// SchemaVersion is the version tag of the payload schema, e.g. "1".
	// Payloads carrying a different "schema_version" property are rejected
	// rather than best-effort parsed.
	SchemaVersion string
	// Schema is the JSON Schema source the payload must satisfy. Compiled
	// once at registration; registration fails on an invalid schema.
	Schema string
	// ValidatePayload optionally applies domain checks beyond the schema.
	// It receives the canonicalized payload.
	ValidatePayload func(raw json.RawMessage) error

	compiled *jsonschema.Schema
}

// Registry holds the closed set of event definitions for one engine build.
type Registry struct {
	mu          sync.RWMutex
	definitions map[Type]Definition
}

// NewRegistry creates an empty event registry.
func NewRegistry() *Registry {
	return &Registry{definitions: make(map[Type]Definition)}
}

// Register adds a definition to the registry, compiling its payload schema.
func (r *Registry) Register(definition Definition) error {
	if r == nil {
		return errors.New("event registry is required")
	}
	if !definition.Type.IsValid() {
		return ErrTypeRequired
	}
	if definition.Addressing == "" {
		definition.Addressing = AddressingPolicyEntityTarget
	}
	if definition.Addressing != AddressingPolicyNone && definition.Addressing != AddressingPolicyEntityTarget {
		return fmt.Errorf("addressing policy %q is invalid", definition.Addressing)
	}
	if strings.TrimSpace(definition.Schema) == "" {
		return fmt.Errorf("%w: %s", ErrSchemaRequired, definition.Type)
	}
	if strings.TrimSpace(definition.SchemaVersion) == "" {
		definition.SchemaVersion = "1"
	}

	compiled, err := jsonschema.CompileString(string(definition.Type)+".schema.json", definition.Schema)
	if err != nil {
		return fmt.Errorf("compile schema for %s: %w", definition.Type, err)
	}
	definition.compiled = compiled

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.definitions == nil {
		r.definitions = make(map[Type]Definition)
	}
	if _, exists := r.definitions[definition.Type]; exists {
		return fmt.Errorf("%w: %s", ErrTypeAlreadyRegistered, definition.Type)
	}
	r.definitions[definition.Type] = definition
	return nil
}

// ValidateForAppend checks an event against its registered definition,
// canonicalizes the payload JSON, and returns the normalized event. The
// returned event is what storage must persist.
func (r *Registry) ValidateForAppend(evt Event) (Event, error) {
	if r == nil {
		return Event{}, errors.New("event registry is required")
	}
	if !evt.Type.IsValid() {
		return Event{}, ErrTypeRequired
	}
	if strings.TrimSpace(evt.CampaignID) == "" {
		return Event{}, ErrCampaignIDRequired
	}

	r.mu.RLock()
	definition, ok := r.definitions[evt.Type]
	r.mu.RUnlock()
	if !ok {
		return Event{}, fmt.Errorf("%w: %s", ErrTypeUnknown, evt.Type)
	}

	switch evt.ActorType {
	case ActorTypeSystem:
	case ActorTypePlayer, ActorTypeAdmin:
		if strings.TrimSpace(evt.ActorID) == "" {
			return Event{}, ErrActorIDRequired
		}
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrActorTypeInvalid, evt.ActorType)
	}

	if definition.Addressing == AddressingPolicyEntityTarget {
		if strings.TrimSpace(evt.EntityType) == "" {
			return Event{}, fmt.Errorf("%w: %s", ErrEntityTypeRequired, evt.Type)
		}
		if strings.TrimSpace(evt.EntityID) == "" {
			return Event{}, fmt.Errorf("%w: %s", ErrEntityIDRequired, evt.Type)
		}
	}

	canonical, decoded, err := canonicalizePayload(evt.PayloadJSON)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrPayloadInvalid, err)
	}
	evt.PayloadJSON = canonical

	if version, ok := payloadSchemaVersion(decoded); ok && version != definition.SchemaVersion {
		return Event{}, fmt.Errorf("%w: %s schema_version %q, want %q",
			ErrPayloadSchema, evt.Type, version, definition.SchemaVersion)
	}
	if err := definition.compiled.Validate(decoded); err != nil {
		return Event{}, fmt.Errorf("%w: %s: %v", ErrPayloadSchema, evt.Type, err)
	}
	if definition.ValidatePayload != nil {
		if err := definition.ValidatePayload(evt.PayloadJSON); err != nil {
			return Event{}, fmt.Errorf("%w: %s: %v", ErrPayloadSchema, evt.Type, err)
		}
	}

	return evt, nil
}

// Definition returns the registered definition for the given type.
func (r *Registry) Definition(t Type) (Definition, bool) {
	if r == nil {
		return Definition{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	definition, ok := r.definitions[t]
	return definition, ok
}

// ListTypes returns the sorted registered event types.
func (r *Registry) ListTypes() []Type {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]Type, 0, len(r.definitions))
	for t := range r.definitions {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// canonicalizePayload re-encodes payload JSON with sorted object keys so that
// hashing and replay comparisons are stable. Empty payloads normalize to {}.
func canonicalizePayload(raw []byte) ([]byte, any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}
	var decoded any
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&decoded); err != nil {
		return nil, nil, err
	}
	canonical, err := json.Marshal(decoded)
	if err != nil {
		return nil, nil, err
	}
	return canonical, decoded, nil
}

// payloadSchemaVersion extracts the optional "schema_version" property.
func payloadSchemaVersion(decoded any) (string, bool) {
	object, ok := decoded.(map[string]any)
	if !ok {
		return "", false
	}
	value, ok := object["schema_version"]
	if !ok {
		return "", false
	}
	version, ok := value.(string)
	return version, ok
}
