package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/charge-slot-reservation/internal/model"
	"github.com/iliyamo/charge-slot-reservation/internal/queue"
)

func TestVerify(t *testing.T) {
	ctx := context.Background()

	t.Run("success books the reservation", func(t *testing.T) {
		f := newFixture(t)
		r := f.reserve(t, "C1", at(12, 0), at(13, 0))
		f.clock.Advance(PaymentWindow - time.Second)

		got, err := f.svc.Verify(ctx, VerifyInput{ReservationID: r.ID, Token: r.PaymentToken, Proof: goodProof})
		require.NoError(t, err)
		assert.Equal(t, model.ReservationBooked, got.State)
		assert.Equal(t, model.PaymentSuccess, got.PaymentState)
		assert.Equal(t, r.Amount, got.Amount)
		assert.Equal(t, []queue.EventType{EventCreated, EventBooked}, f.events.types())
	})

	t.Run("decline cancels with failed payment", func(t *testing.T) {
		f := newFixture(t, WithGateway(approve(false)))
		r := f.reserve(t, "C1", at(12, 0), at(13, 0))

		got, err := f.svc.Verify(ctx, VerifyInput{ReservationID: r.ID, Token: r.PaymentToken, Proof: goodProof})
		assert.ErrorIs(t, err, ErrPaymentDeclined)
		assert.Equal(t, model.ReservationCancelled, got.State)
		assert.Equal(t, model.PaymentFailed, got.PaymentState)

		// the slot is free again
		f.reserve(t, "C1", at(12, 0), at(13, 0))
	})

	t.Run("deadline passed expires then reports", func(t *testing.T) {
		f := newFixture(t)
		r := f.reserve(t, "C1", at(12, 0), at(13, 0))
		f.clock.Advance(PaymentWindow + time.Second)

		_, err := f.svc.Verify(ctx, VerifyInput{ReservationID: r.ID, Token: r.PaymentToken, Proof: goodProof})
		assert.ErrorIs(t, err, ErrExpired)

		stored, err := f.store.Get(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ReservationCancelled, stored.State)
		assert.Equal(t, model.PaymentExpired, stored.PaymentState)

		_, err = f.svc.CancelPending(ctx, r.ID)
		assert.ErrorIs(t, err, ErrInvalidState)
		_, err = f.svc.Verify(ctx, VerifyInput{ReservationID: r.ID, Token: r.PaymentToken, Proof: goodProof})
		assert.ErrorIs(t, err, ErrAlreadyProcessed)
	})

	t.Run("wrong token leaves reservation pending", func(t *testing.T) {
		f := newFixture(t)
		r := f.reserve(t, "C1", at(12, 0), at(13, 0))

		_, err := f.svc.Verify(ctx, VerifyInput{ReservationID: r.ID, Token: "PAY_WRONG", Proof: goodProof})
		assert.ErrorIs(t, err, ErrInvalidToken)

		stored, err := f.store.Get(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ReservationPending, stored.State)
	})

	t.Run("malformed proof names the field", func(t *testing.T) {
		f := newFixture(t)
		r := f.reserve(t, "C1", at(12, 0), at(13, 0))

		bad := goodProof
		bad.CVV = "12"
		_, err := f.svc.Verify(ctx, VerifyInput{ReservationID: r.ID, Token: r.PaymentToken, Proof: bad})
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "cvv", ve.Field)

		stored, _ := f.store.Get(ctx, r.ID)
		assert.Equal(t, model.ReservationPending, stored.State)
	})

	t.Run("unknown reservation", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Verify(ctx, VerifyInput{ReservationID: "missing", Token: "x", Proof: goodProof})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("second verify is already processed", func(t *testing.T) {
		f := newFixture(t)
		r := f.reserve(t, "C1", at(12, 0), at(13, 0))
		_, err := f.svc.Verify(ctx, VerifyInput{ReservationID: r.ID, Token: r.PaymentToken, Proof: goodProof})
		require.NoError(t, err)
		_, err = f.svc.Verify(ctx, VerifyInput{ReservationID: r.ID, Token: r.PaymentToken, Proof: goodProof})
		assert.ErrorIs(t, err, ErrAlreadyProcessed)
	})

	t.Run("gateway error writes nothing", func(t *testing.T) {
		boom := errors.New("gateway down")
		f := newFixture(t, WithGateway(GatewayFunc(func(context.Context, string, float64, PaymentProof) (bool, error) {
			return false, boom
		})))
		r := f.reserve(t, "C1", at(12, 0), at(13, 0))
		_, err := f.svc.Verify(ctx, VerifyInput{ReservationID: r.ID, Token: r.PaymentToken, Proof: goodProof})
		assert.ErrorIs(t, err, boom)
		stored, _ := f.store.Get(ctx, r.ID)
		assert.Equal(t, model.ReservationPending, stored.State)
	})
}

func TestVerifyChargesOutsideStoreWrite(t *testing.T) {
	ctx := context.Background()

	t.Run("admissions proceed while the gateway is deciding", func(t *testing.T) {
		var f *fixture
		f = newFixture(t, WithGateway(GatewayFunc(func(context.Context, string, float64, PaymentProof) (bool, error) {
			done := make(chan error, 1)
			go func() {
				_, err := f.svc.TryReserve(ctx, ReserveInput{UserID: "user-2", ConnectorID: "C2", Start: at(12, 0), End: at(13, 0)})
				done <- err
			}()
			select {
			case err := <-done:
				assert.NoError(t, err)
			case <-time.After(2 * time.Second):
				t.Error("admission blocked behind the payment gateway")
			}
			return true, nil
		})))
		r := f.reserve(t, "C1", at(12, 0), at(13, 0))

		got, err := f.svc.Verify(ctx, VerifyInput{ReservationID: r.ID, Token: r.PaymentToken, Proof: goodProof})
		require.NoError(t, err)
		assert.Equal(t, model.ReservationBooked, got.State)
	})

	t.Run("reservation settled during the charge is not overwritten", func(t *testing.T) {
		var f *fixture
		var id string
		f = newFixture(t, WithGateway(GatewayFunc(func(context.Context, string, float64, PaymentProof) (bool, error) {
			_, err := f.svc.CancelPending(ctx, id)
			assert.NoError(t, err)
			return true, nil
		})))
		r := f.reserve(t, "C1", at(12, 0), at(13, 0))
		id = r.ID

		_, err := f.svc.Verify(ctx, VerifyInput{ReservationID: r.ID, Token: r.PaymentToken, Proof: goodProof})
		assert.ErrorIs(t, err, ErrAlreadyProcessed)

		stored, err := f.store.Get(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ReservationCancelled, stored.State)
		assert.Equal(t, model.PaymentExpired, stored.PaymentState)
	})
}

func TestCancelPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r := f.reserve(t, "C1", at(12, 0), at(13, 0))
	got, err := f.svc.CancelPending(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCancelled, got.State)
	assert.Equal(t, model.PaymentExpired, got.PaymentState)

	_, err = f.svc.CancelPending(ctx, r.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	booked := f.reserve(t, "C1", at(12, 0), at(13, 0))
	_, err = f.svc.Verify(ctx, VerifyInput{ReservationID: booked.ID, Token: booked.PaymentToken, Proof: goodProof})
	require.NoError(t, err)
	_, err = f.svc.CancelPending(ctx, booked.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = f.svc.CancelPending(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelActiveRefundBoundary(t *testing.T) {
	ctx := context.Background()

	book := func(t *testing.T) (*fixture, model.Reservation) {
		f := newFixture(t)
		r := f.reserve(t, "C1", at(12, 0), at(13, 0))
		r, err := f.svc.Verify(ctx, VerifyInput{ReservationID: r.ID, Token: r.PaymentToken, Proof: goodProof})
		require.NoError(t, err)
		return f, r
	}

	t.Run("exactly ten minutes refunds in full", func(t *testing.T) {
		f, r := book(t)
		f.clock.Set(r.StartTime.Add(-RefundCutoff))

		res, err := f.svc.CancelActive(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, FullRefund, res.Policy)
		assert.Equal(t, r.Amount, res.RefundAmount)
		assert.Equal(t, model.ReservationCancelled, res.Reservation.State)
		assert.Equal(t, model.PaymentSuccess, res.Reservation.PaymentState)
	})

	t.Run("9.99 minutes refunds nothing", func(t *testing.T) {
		f, r := book(t)
		f.clock.Set(r.StartTime.Add(-9*time.Minute - 59400*time.Millisecond))

		res, err := f.svc.CancelActive(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, NoRefund, res.Policy)
		assert.Zero(t, res.RefundAmount)
	})

	t.Run("already cancelled", func(t *testing.T) {
		f, r := book(t)
		_, err := f.svc.CancelActive(ctx, r.ID)
		require.NoError(t, err)
		_, err = f.svc.CancelActive(ctx, r.ID)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("pending keeps its payment state", func(t *testing.T) {
		f := newFixture(t)
		r := f.reserve(t, "C1", at(12, 0), at(13, 0))
		res, err := f.svc.CancelActive(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ReservationCancelled, res.Reservation.State)
		assert.Equal(t, model.PaymentPending, res.Reservation.PaymentState)
		assert.Equal(t, FullRefund, res.Policy)

		events := f.events.types()
		assert.Equal(t, EventCancelled, events[len(events)-1])
	})

	t.Run("pending past its deadline expires without refund", func(t *testing.T) {
		f := newFixture(t)
		r := f.reserve(t, "C1", at(12, 0), at(13, 0))
		f.clock.Advance(PaymentWindow + time.Second)

		res, err := f.svc.CancelActive(ctx, r.ID)
		assert.ErrorIs(t, err, ErrInvalidState)
		assert.Zero(t, res.RefundAmount)

		stored, err := f.store.Get(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ReservationCancelled, stored.State)
		assert.Equal(t, model.PaymentExpired, stored.PaymentState)

		events := f.events.types()
		assert.Equal(t, EventExpired, events[len(events)-1])
		assert.NotContains(t, events, EventCancelled)
	})
}

func TestGetAppliesLazyExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r := f.reserve(t, "C1", at(12, 0), at(13, 0))
	got, err := f.svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationPending, got.State)

	f.clock.Advance(PaymentWindow + time.Second)
	got, err = f.svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCancelled, got.State)
	assert.Equal(t, model.PaymentExpired, got.PaymentState)
	assert.Contains(t, f.events.types(), EventExpired)

	_, err = f.svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIsExpired(t *testing.T) {
	r := model.Reservation{State: model.ReservationPending, PaymentDeadline: t0}
	assert.False(t, IsExpired(r, t0.Add(-time.Second)))
	assert.False(t, IsExpired(r, t0))
	assert.True(t, IsExpired(r, t0.Add(time.Second)))

	r.State = model.ReservationBooked
	assert.False(t, IsExpired(r, t0.Add(time.Hour)))
}
