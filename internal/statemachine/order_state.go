package statemachine

import (
	"errors"
	"fmt"

	"github.com/atarasov/supplyhub/internal/models"
)

var ErrInvalidTransition = errors.New("invalid transition")

// Actors that can move an order between states.
const (
	ActorRestaurant = "restaurant"
	ActorSupplier   = "supplier"
	ActorSystem     = "system"
)

// Transition is one legal edge of the order status graph and who may take it.
type Transition struct {
	From  models.OrderStatus
	To    models.OrderStatus
	Actor string
}

var validTransitions = []Transition{
	// Supplier accepts the order.
	{From: models.OrderPending, To: models.OrderProcessing, Actor: ActorSupplier},
	// Either side may cancel while the order is still pending.
	{From: models.OrderPending, To: models.OrderCancelled, Actor: ActorSupplier},
	{From: models.OrderPending, To: models.OrderCancelled, Actor: ActorRestaurant},
	// Supplier fulfils the order.
	{From: models.OrderProcessing, To: models.OrderCompleted, Actor: ActorSupplier},
	// In-flight cancellation, including payment failure handled by the system.
	{From: models.OrderProcessing, To: models.OrderCancelled, Actor: ActorSupplier},
	{From: models.OrderProcessing, To: models.OrderCancelled, Actor: ActorRestaurant},
	{From: models.OrderProcessing, To: models.OrderCancelled, Actor: ActorSystem},
}

type transitionKey struct {
	From  models.OrderStatus
	To    models.OrderStatus
	Actor string
}

var transitionMap = func() map[transitionKey]bool {
	m := make(map[transitionKey]bool)
	for _, t := range validTransitions {
		m[transitionKey{t.From, t.To, t.Actor}] = true
	}
	return m
}()

// CanTransition reports whether actor may move an order from -> to.
func CanTransition(from, to models.OrderStatus, actor string) error {
	if transitionMap[transitionKey{From: from, To: to, Actor: actor}] {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s is not allowed for actor %q (valid: %v)",
		ErrInvalidTransition, from, to, actor, ValidTransitionsFrom(from))
}

// ValidTransitionsFrom returns all reachable next states from a given state,
// regardless of actor.
func ValidTransitionsFrom(status models.OrderStatus) []models.OrderStatus {
	var nexts []models.OrderStatus
	seen := map[models.OrderStatus]bool{}
	for _, t := range validTransitions {
		if t.From == status && !seen[t.To] {
			nexts = append(nexts, t.To)
			seen[t.To] = true
		}
	}
	return nexts
}

// CanTransitionPayment validates a payment-status change. Payment may only
// move while the order itself is processing.
func CanTransitionPayment(orderStatus models.OrderStatus, from, to models.PaymentStatus) error {
	if orderStatus != models.OrderProcessing {
		return fmt.Errorf("%w: payment status may change only while order is processing (order is %s)",
			ErrInvalidTransition, orderStatus)
	}
	switch {
	case from == models.PaymentPending && to == models.PaymentCompleted,
		from == models.PaymentPending && to == models.PaymentFailed,
		// a failed charge may be retried
		from == models.PaymentFailed && to == models.PaymentCompleted,
		from == models.PaymentFailed && to == models.PaymentFailed:
		return nil
	}
	return fmt.Errorf("%w: payment %s -> %s", ErrInvalidTransition, from, to)
}

// GetAllTransitions returns the full state machine for documentation.
func GetAllTransitions() []Transition {
	return validTransitions
}
