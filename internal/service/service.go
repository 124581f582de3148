// Package service holds the reservation core: pricing, admission, the
// payment state machine and the derived availability view.  It talks to
// storage only through the Catalog and ReservationStore interfaces.
package service

import (
	"time"

	"github.com/iliyamo/charge-slot-reservation/internal/clock"
)

const (
	// PaymentWindow is how long a pending reservation waits for payment.
	PaymentWindow = 5 * time.Minute
	// RefundCutoff is the minimum lead time for a full refund.
	RefundCutoff = 10 * time.Minute

	defaultLookAhead = 2 * time.Hour
)

// Service implements the reservation operations.  It is safe for
// concurrent use; all coordination happens in the store.
type Service struct {
	catalog   Catalog
	store     ReservationStore
	clock     clock.Clock
	gateway   PaymentGateway
	validator ProofValidator
	events    EventPublisher
	loc       *time.Location
	lookAhead time.Duration
}

// Option customises a Service.
type Option func(*Service)

// New wires a Service.  Without options it uses a 90% simulated gateway,
// the card validator, no event publishing, UTC for peak hours and a two
// hour look-ahead for the availability view.
func New(catalog Catalog, store ReservationStore, clk clock.Clock, opts ...Option) *Service {
	s := &Service{
		catalog:   catalog,
		store:     store,
		clock:     clk,
		gateway:   NewSimulatedGateway(DefaultSuccessRate),
		validator: CardValidator{},
		events:    NopPublisher{},
		loc:       time.UTC,
		lookAhead: defaultLookAhead,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// now is the service time at the millisecond precision the stores keep.
func (s *Service) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Millisecond)
}

// WithGateway sets the payment decision strategy.
func WithGateway(g PaymentGateway) Option {
	return func(s *Service) {
		if g != nil {
			s.gateway = g
		}
	}
}

// WithValidator sets the payment proof validator.
func WithValidator(v ProofValidator) Option {
	return func(s *Service) {
		if v != nil {
			s.validator = v
		}
	}
}

// WithPublisher sets the event sink.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

// WithLocation sets the time zone used to decide peak hours.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLookAhead sets how far ahead a reservation marks a connector booked.
func WithLookAhead(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.lookAhead = d
		}
	}
}
