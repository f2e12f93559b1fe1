package orders

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ashfield-games/greatwork/internal/platform/errors"
)

// Result is a handler's successful outcome, recorded on the completed order.
type Result struct {
	// Note is a short human-readable summary for the digest report.
	Note string
	// FollowUps are orders the handler wants queued for later ticks.
	FollowUps []Order
}

// Handler processes one due order of a registered type.
type Handler interface {
	Handle(ctx context.Context, order Order) (Result, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, order Order) (Result, error)

// Handle calls the function.
func (f HandlerFunc) Handle(ctx context.Context, order Order) (Result, error) {
	return f(ctx, order)
}

// Registry maps order types to their handlers. Order types are open-ended:
// registering a new type is the only change a new order kind requires.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a handler to an order type. Re-registering a type is
// rejected so two subsystems cannot silently compete for the same orders.
func (r *Registry) Register(orderType string, handler Handler) error {
	if strings.TrimSpace(orderType) == "" {
		return errors.New(errors.CodeOrderTypeUnknown, "order type must not be empty")
	}
	if handler == nil {
		return fmt.Errorf("handler for %s is required", orderType)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[orderType]; exists {
		return fmt.Errorf("order type %s already registered", orderType)
	}
	r.handlers[orderType] = handler
	return nil
}

// Handler looks up the handler for an order type.
func (r *Registry) Handler(orderType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[orderType]
	return handler, ok
}

// Dispatch routes an order to its registered handler.
func (r *Registry) Dispatch(ctx context.Context, order Order) (Result, error) {
	handler, ok := r.Handler(order.OrderType)
	if !ok {
		return Result{}, errors.WithMetadata(errors.CodeOrderTypeUnknown, "no handler for order type",
			map[string]string{"order_id": order.ID, "order_type": order.OrderType})
	}
	return handler.Handle(ctx, order)
}

// Types lists registered order types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for orderType := range r.handlers {
		types = append(types, orderType)
	}
	sort.Strings(types)
	return types
}
