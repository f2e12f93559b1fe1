// Package orders models delayed actions and their dispatcher state machine.
//
// An order is a unit of future work: mentorship activations, conference
// resolutions, negotiation steps, deadline reminders. The digest tick drains
// due orders through a handler registry keyed by order type, so new order
// types are additive and never require dispatcher changes.
package orders

import (
	"encoding/json"
	"time"

	"github.com/ashfield-games/greatwork/internal/platform/errors"
)

// Status is the order lifecycle state.
type Status string

const (
	// StatusPending means the order awaits its scheduled time.
	StatusPending Status = "pending"
	// StatusActive means a handler has picked the order up.
	StatusActive Status = "active"
	// StatusCompleted is the successful terminal state.
	StatusCompleted Status = "completed"
	// StatusCancelled is the administrative terminal state.
	StatusCancelled Status = "cancelled"
	// StatusFailed means the handler exhausted its retry budget.
	StatusFailed Status = "failed"
)

// IsTerminal reports whether the status permits no further transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// Built-in order types drained by the digest tick.
const (
	TypeMentorshipActivation = "mentorship_activation"
	TypeConferenceResolution = "conference_resolution"
	TypeNegotiationStep      = "negotiation_step"
	TypeDeadlineReminder     = "deadline_reminder"
	TypeTheoryDeadline       = "theory_deadline"
)

// Order is one scheduled unit of future work.
type Order struct {
	ID          string
	OrderType   string
	ActorID     string
	SubjectID   string
	Payload     json.RawMessage
	ScheduledAt time.Time
	Status      Status
	Attempts    int
	Result      string
	Reason      string
	// SourceTable and SourceID point at the record that queued this order,
	// for audit.
	SourceTable string
	SourceID    string
	CreatedAt   time.Time
}

// New builds a pending order.
func New(orderID, orderType, actorID, subjectID string, payload json.RawMessage, scheduledAt, createdAt time.Time) (Order, error) {
	if orderType == "" {
		return Order{}, errors.New(errors.CodeOrderTypeUnknown, "order type must not be empty")
	}
	return Order{
		ID:          orderID,
		OrderType:   orderType,
		ActorID:     actorID,
		SubjectID:   subjectID,
		Payload:     payload,
		ScheduledAt: scheduledAt.UTC(),
		Status:      StatusPending,
		CreatedAt:   createdAt.UTC(),
	}, nil
}

// Activate transitions a pending order to active and counts the attempt.
func (o *Order) Activate() error {
	if o.Status.IsTerminal() {
		return terminalError(o)
	}
	if o.Status == StatusActive {
		return errors.WithMetadata(errors.CodeOrderAlreadyActive, "order already active",
			map[string]string{"order_id": o.ID})
	}
	o.Status = StatusActive
	o.Attempts++
	return nil
}

// Release returns a failed attempt's order to pending so a later tick can
// retry it. Releasing an already pending order is a no-op.
func (o *Order) Release() error {
	if o.Status == StatusPending {
		return nil
	}
	if o.Status.IsTerminal() {
		return terminalError(o)
	}
	o.Status = StatusPending
	return nil
}

// Complete transitions an active order to completed. Completing an already
// completed order is an idempotent no-op; completing any other terminal order
// is rejected.
func (o *Order) Complete(result string) error {
	if o.Status == StatusCompleted {
		return nil
	}
	if o.Status.IsTerminal() {
		return terminalError(o)
	}
	o.Status = StatusCompleted
	o.Result = result
	return nil
}

// Cancel transitions a pending or active order to cancelled. Cancelling any
// terminal order, including an already cancelled one, is an idempotent no-op.
func (o *Order) Cancel(reason string) {
	if o.Status.IsTerminal() {
		return
	}
	o.Status = StatusCancelled
	o.Reason = reason
}

// Fail marks an active order failed after its retry budget is spent.
func (o *Order) Fail(diagnostic string) error {
	if o.Status == StatusFailed {
		return nil
	}
	if o.Status.IsTerminal() {
		return terminalError(o)
	}
	o.Status = StatusFailed
	o.Reason = diagnostic
	return nil
}

// Retryable reports whether the order may be attempted again under the given
// budget.
func (o Order) Retryable(maxAttempts int) bool {
	return !o.Status.IsTerminal() && o.Attempts < maxAttempts
}

func terminalError(o *Order) error {
	return errors.WithMetadata(errors.CodeOrderTerminal, "order is terminal",
		map[string]string{"order_id": o.ID, "status": string(o.Status)})
}
