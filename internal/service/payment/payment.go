package payment

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"sync"
	"time"
)

var (
	ErrValidation = errors.New("validation")
	// ErrDeclined is a gateway decline, not a caller mistake; the order
	// stays payable and the charge may be retried.
	ErrDeclined = errors.New("payment declined")
)

// Gateway is the boundary a certified payment client would slot into
// without touching the order lifecycle.
type Gateway interface {
	Charge(ctx context.Context, card Card, amount float64) (string, error)
}

type Card struct {
	Number string `json:"card_number"`
	Expiry string `json:"expiry_date"` // MM/YY
	CVV    string `json:"cvv"`
	Holder string `json:"name"`
}

// testCard always succeeds, whatever the failure rate.
const testCard = "4111111111111111"

var (
	cardRe   = regexp.MustCompile(`^\d{16}$`)
	cvvRe    = regexp.MustCompile(`^\d{3}$`)
	expiryRe = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)
)

// StubGateway simulates an external gateway: validates card details, then
// declines with a configurable probability. No money moves anywhere.
type StubGateway struct {
	FailureRate float64

	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

func NewStubGateway(failureRate float64, seed int64) *StubGateway {
	return &StubGateway{
		FailureRate: failureRate,
		rnd:         rand.New(rand.NewSource(seed)),
		now:         time.Now,
	}
}

func (g *StubGateway) Charge(ctx context.Context, card Card, amount float64) (string, error) {
	if err := validate(card, amount, g.clock()); err != nil {
		return "", err
	}

	if card.Number == testCard {
		return g.txnID(), nil
	}

	g.mu.Lock()
	roll := g.rnd.Float64()
	g.mu.Unlock()

	if roll < g.FailureRate {
		return "", ErrDeclined
	}
	return g.txnID(), nil
}

func validate(card Card, amount float64, now time.Time) error {
	if !cardRe.MatchString(card.Number) {
		return fmt.Errorf("%w: card number must be 16 digits", ErrValidation)
	}
	if !cvvRe.MatchString(card.CVV) {
		return fmt.Errorf("%w: cvv must be 3 digits", ErrValidation)
	}
	if !expiryRe.MatchString(card.Expiry) {
		return fmt.Errorf("%w: expiry must be MM/YY", ErrValidation)
	}
	if expired(card.Expiry, now) {
		return fmt.Errorf("%w: card expired", ErrValidation)
	}
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be > 0", ErrValidation)
	}
	return nil
}

func expired(expiry string, now time.Time) bool {
	var month, year int
	fmt.Sscanf(expiry, "%02d/%02d", &month, &year)
	year += 2000
	// Valid through the last day of the stated month.
	end := time.Date(year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC)
	return !now.Before(end)
}

func (g *StubGateway) txnID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fmt.Sprintf("txn_%09x", g.rnd.Int63n(1<<36))
}

func (g *StubGateway) clock() time.Time {
	if g.now != nil {
		return g.now()
	}
	return time.Now()
}
