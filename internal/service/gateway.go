package service

import (
	"context"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"
)

// DefaultSuccessRate is the share of simulated payments that succeed.
const DefaultSuccessRate = 0.9

// PaymentProof is the card data submitted with a verify call.  It is only
// checked for shape and never stored.
type PaymentProof struct {
	CardNumber string `json:"card_number"`
	Expiry     string `json:"expiry"`
	CVV        string `json:"cvv"`
}

// ProofValidator checks the syntactic shape of a payment proof.  It
// returns a *ValidationError naming the bad field.
type ProofValidator interface {
	Validate(p PaymentProof) error
}

// PaymentGateway decides whether a well formed payment goes through.
type PaymentGateway interface {
	Charge(ctx context.Context, reservationID string, amount float64, p PaymentProof) (bool, error)
}

var (
	cardNumberRe = regexp.MustCompile(`^\d{16}$`)
	expiryRe     = regexp.MustCompile(`^\d{2}/\d{2}$`)
	cvvRe        = regexp.MustCompile(`^\d{3,4}$`)
)

// CardValidator accepts 16 digit card numbers (spaces ignored), MM/YY
// expiry and a 3 or 4 digit CVV.
type CardValidator struct{}

func (CardValidator) Validate(p PaymentProof) error {
	if !cardNumberRe.MatchString(strings.ReplaceAll(p.CardNumber, " ", "")) {
		return invalid("card_number", "card number invalid")
	}
	if !expiryRe.MatchString(p.Expiry) {
		return invalid("expiry", "expiry must be MM/YY")
	}
	if !cvvRe.MatchString(p.CVV) {
		return invalid("cvv", "cvv invalid")
	}
	return nil
}

// SimulatedGateway approves a fixed share of payments at random.
type SimulatedGateway struct {
	rate float64

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSimulatedGateway returns a gateway approving roughly rate of all
// charges.  rate is clamped to [0, 1].
func NewSimulatedGateway(rate float64) *SimulatedGateway {
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	return &SimulatedGateway{rate: rate, rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (g *SimulatedGateway) Charge(ctx context.Context, _ string, _ float64, _ PaymentProof) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rnd.Float64() < g.rate, nil
}

// GatewayFunc adapts a plain function to PaymentGateway.
type GatewayFunc func(ctx context.Context, reservationID string, amount float64, p PaymentProof) (bool, error)

func (f GatewayFunc) Charge(ctx context.Context, reservationID string, amount float64, p PaymentProof) (bool, error) {
	return f(ctx, reservationID, amount, p)
}
