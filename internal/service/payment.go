package service

import (
	"context"
	"time"

	"github.com/iliyamo/charge-slot-reservation/internal/model"
)

// RefundPolicy labels the outcome of CancelActive.
type RefundPolicy string

const (
	FullRefund RefundPolicy = "full_refund"
	NoRefund   RefundPolicy = "no_refund"
)

// VerifyInput carries the token issued at reservation time and the card
// data to charge.
type VerifyInput struct {
	ReservationID string
	Token         string
	Proof         PaymentProof
}

// CancelResult is the cancelled reservation and the refund owed.
type CancelResult struct {
	Reservation  model.Reservation
	RefundAmount float64
	Policy       RefundPolicy
}

// IsExpired reports whether r is still pending after its payment deadline.
// The deadline instant itself is not expired.
func IsExpired(r model.Reservation, now time.Time) bool {
	return r.IsExpired(now)
}

func expire(r *model.Reservation, now time.Time) {
	r.State = model.ReservationCancelled
	r.PaymentState = model.PaymentExpired
	r.UpdatedAt = now
}

// Verify settles a pending reservation.  Checks run in order: the
// reservation must exist and be pending, the deadline must not have
// passed, the token must match and the proof must be well formed.  A
// missed deadline is persisted as cancelled/expired before ErrExpired is
// returned.  The gateway is consulted without holding the reservation;
// its outcome is stored only if the reservation is still pending with the
// same token.  A declined charge is persisted as cancelled/failed and
// returned together with ErrPaymentDeclined.
func (s *Service) Verify(ctx context.Context, in VerifyInput) (model.Reservation, error) {
	now := s.now()
	cur, err := s.store.Get(ctx, in.ReservationID)
	if err != nil {
		return model.Reservation{}, err
	}
	if cur.State != model.ReservationPending {
		return model.Reservation{}, ErrAlreadyProcessed
	}
	if IsExpired(cur, now) {
		return s.expireForVerify(ctx, in.ReservationID, now)
	}
	if in.Token != cur.PaymentToken {
		return model.Reservation{}, ErrInvalidToken
	}
	if err := s.validator.Validate(in.Proof); err != nil {
		return model.Reservation{}, err
	}

	ok, err := s.gateway.Charge(ctx, cur.ID, cur.Amount, in.Proof)
	if err != nil {
		return model.Reservation{}, err
	}

	var outcome error
	evt := EventBooked
	res, err := s.store.Update(ctx, in.ReservationID, func(r *model.Reservation) error {
		if r.State != model.ReservationPending || r.PaymentToken != cur.PaymentToken {
			return ErrAlreadyProcessed
		}
		if ok {
			r.State = model.ReservationBooked
			r.PaymentState = model.PaymentSuccess
		} else {
			r.State = model.ReservationCancelled
			r.PaymentState = model.PaymentFailed
			outcome, evt = ErrPaymentDeclined, EventPaymentFailed
		}
		r.UpdatedAt = now
		return nil
	})
	if err != nil {
		return model.Reservation{}, err
	}
	s.publish(ctx, evt, res, 0)
	return res, outcome
}

// expireForVerify stores the expiry of a reservation found past its
// deadline and reports ErrExpired.  If another caller settled it first the
// verify is already processed.
func (s *Service) expireForVerify(ctx context.Context, id string, now time.Time) (model.Reservation, error) {
	res, err := s.store.Update(ctx, id, func(r *model.Reservation) error {
		if !IsExpired(*r, now) {
			return ErrAlreadyProcessed
		}
		expire(r, now)
		return nil
	})
	if err != nil {
		return model.Reservation{}, err
	}
	s.publish(ctx, EventExpired, res, 0)
	return model.Reservation{}, ErrExpired
}

// CancelPending abandons a reservation that has not been paid.  Anything
// other than pending yields ErrInvalidState.
func (s *Service) CancelPending(ctx context.Context, id string) (model.Reservation, error) {
	now := s.now()
	res, err := s.store.Update(ctx, id, func(r *model.Reservation) error {
		if r.State != model.ReservationPending {
			return ErrInvalidState
		}
		expire(r, now)
		return nil
	})
	if err != nil {
		return model.Reservation{}, err
	}
	s.publish(ctx, EventExpired, res, 0)
	return res, nil
}

// CancelActive cancels any reservation that is not already cancelled.  The
// full amount is refunded when the start is at least ten minutes away,
// nothing otherwise.  The payment state is left as it was.  A pending
// reservation past its payment deadline is expired instead and
// ErrInvalidState is returned.
func (s *Service) CancelActive(ctx context.Context, id string) (CancelResult, error) {
	now := s.now()
	var out CancelResult
	expired := false
	res, err := s.store.Update(ctx, id, func(r *model.Reservation) error {
		if r.State == model.ReservationCancelled {
			return ErrInvalidState
		}
		if IsExpired(*r, now) {
			expire(r, now)
			expired = true
			return nil
		}
		out.RefundAmount, out.Policy = 0, NoRefund
		if r.StartTime.Sub(now) >= RefundCutoff {
			out.RefundAmount, out.Policy = r.Amount, FullRefund
		}
		r.State = model.ReservationCancelled
		r.UpdatedAt = now
		return nil
	})
	if err != nil {
		return CancelResult{}, err
	}
	if expired {
		s.publish(ctx, EventExpired, res, 0)
		return CancelResult{}, ErrInvalidState
	}
	out.Reservation = res
	s.publish(ctx, EventCancelled, res, out.RefundAmount)
	return out, nil
}

// Get returns a reservation, expiring it first when it is pending past its
// deadline.
func (s *Service) Get(ctx context.Context, id string) (model.Reservation, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Reservation{}, err
	}
	if !IsExpired(r, s.now()) {
		return r, nil
	}
	return s.expireOne(ctx, id)
}

// expireOne applies the lazy expiry under the store lock.  Another caller
// may have settled the reservation in the meantime, in which case the
// stored value is returned unchanged.
func (s *Service) expireOne(ctx context.Context, id string) (model.Reservation, error) {
	now := s.now()
	changed := false
	res, err := s.store.Update(ctx, id, func(r *model.Reservation) error {
		if IsExpired(*r, now) {
			expire(r, now)
			changed = true
		}
		return nil
	})
	if err != nil {
		return model.Reservation{}, err
	}
	if changed {
		s.publish(ctx, EventExpired, res, 0)
	}
	return res, nil
}

// OwnerOf returns the user that holds reservation id.  It does not apply
// lazy expiry, so an ownership check before Verify leaves the expiry
// report to Verify itself.
func (s *Service) OwnerOf(ctx context.Context, id string) (string, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return r.UserID, nil
}
