package boltstore

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/charge-slot-reservation/internal/model"
	"github.com/iliyamo/charge-slot-reservation/internal/repository"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	require.NoError(t, s.PutStation(ctx, model.Station{ID: "S1", Name: "Central", BaseRate: 10, OpenTime: "06:00", CloseTime: "23:00"}))
	require.NoError(t, s.PutConnector(ctx, model.Connector{ID: "C1", StationID: "S1", CapacityKW: 60, Type: model.ConnectorCCS}))
	require.NoError(t, s.PutConnector(ctx, model.Connector{ID: "C2", StationID: "S1", CapacityKW: 22, Type: model.ConnectorType2}))
	return s
}

var base = time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

func pending(id, connector string, start, end time.Time, deadline time.Time) *model.Reservation {
	return &model.Reservation{
		ID: id, StationID: "S1", ConnectorID: connector, UserID: "u1",
		StartTime: start, EndTime: end, Amount: 12.5,
		State: model.ReservationPending, PaymentState: model.PaymentPending,
		PaymentDeadline: deadline, PaymentToken: "PAY_" + id,
		CreatedAt: base, UpdatedAt: base,
	}
}

func TestCatalog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	st, err := s.GetStation(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, "Central", st.Name)

	cs, err := s.ListConnectors(ctx, "S1")
	require.NoError(t, err)
	require.Len(t, cs, 2)
	assert.Equal(t, "C1", cs[0].ID)

	_, err = s.GetConnector(ctx, "nope")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	err = s.PutConnector(ctx, model.Connector{ID: "C9", StationID: "missing"})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestInsertIfNoOverlap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	deadline := base.Add(5 * time.Minute)

	require.NoError(t, s.InsertIfNoOverlap(ctx, pending("r1", "C1", base, base.Add(time.Hour), deadline), base))

	// half-open intervals: touching is fine
	require.NoError(t, s.InsertIfNoOverlap(ctx, pending("r2", "C1", base.Add(time.Hour), base.Add(2*time.Hour), deadline), base))

	err := s.InsertIfNoOverlap(ctx, pending("r3", "C1", base.Add(30*time.Minute), base.Add(90*time.Minute), deadline), base)
	var ce *repository.ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 2, ce.Count)
	assert.ErrorIs(t, err, repository.ErrConflict)

	// other connector is independent
	require.NoError(t, s.InsertIfNoOverlap(ctx, pending("r4", "C2", base, base.Add(time.Hour), deadline), base))

	err = s.InsertIfNoOverlap(ctx, pending("r5", "C404", base, base.Add(time.Hour), deadline), base)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestInsertExpiresStalePending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertIfNoOverlap(ctx, pending("old", "C1", base, base.Add(time.Hour), base.Add(5*time.Minute)), base))

	later := base.Add(6 * time.Minute)
	require.NoError(t, s.InsertIfNoOverlap(ctx, pending("new", "C1", base, base.Add(time.Hour), later.Add(5*time.Minute)), later))

	old, err := s.Get(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCancelled, old.State)
	assert.Equal(t, model.PaymentExpired, old.PaymentState)
}

func TestConcurrentAdmission(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	deadline := base.Add(5 * time.Minute)

	const n = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, conflicts := 0, 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := "r" + string(rune('a'+i))
			err := s.InsertIfNoOverlap(ctx, pending(id, "C1", base.Add(time.Duration(i)*time.Minute), base.Add(time.Hour), deadline), base)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if errors.Is(err, repository.ErrConflict) {
				conflicts++
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflicts)

	active, err := s.FindOverlapping(ctx, "C1", base, base.Add(time.Hour), "")
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestUpdateKeepsImmutableFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertIfNoOverlap(ctx, pending("r1", "C1", base, base.Add(time.Hour), base.Add(5*time.Minute)), base))

	got, err := s.Update(ctx, "r1", func(r *model.Reservation) error {
		r.State = model.ReservationBooked
		r.PaymentState = model.PaymentSuccess
		r.Amount = 999
		r.UpdatedAt = base.Add(time.Minute)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, model.ReservationBooked, got.State)
	assert.Equal(t, 12.5, got.Amount)

	stored, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentSuccess, stored.PaymentState)
	assert.Equal(t, 12.5, stored.Amount)

	boom := errors.New("boom")
	_, err = s.Update(ctx, "r1", func(r *model.Reservation) error {
		r.State = model.ReservationCancelled
		return boom
	})
	assert.ErrorIs(t, err, boom)
	stored, _ = s.Get(ctx, "r1")
	assert.Equal(t, model.ReservationBooked, stored.State)

	_, err = s.Update(ctx, "missing", func(*model.Reservation) error { return nil })
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestListsAndExpirePending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r1 := pending("r1", "C1", base, base.Add(time.Hour), base.Add(5*time.Minute))
	r2 := pending("r2", "C2", base.Add(3*time.Hour), base.Add(4*time.Hour), base.Add(5*time.Minute))
	r2.CreatedAt = base.Add(time.Second)
	require.NoError(t, s.InsertIfNoOverlap(ctx, r1, base))
	require.NoError(t, s.InsertIfNoOverlap(ctx, r2, base))

	mine, err := s.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "r2", mine[0].ID)

	none, err := s.ListByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)

	window, err := s.ListByStation(ctx, "S1", repository.ReservationFilter{
		States:    repository.ActiveStates,
		StartFrom: base,
		StartTo:   base.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, "r1", window[0].ID)

	n, err := s.ExpirePending(ctx, base.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, n, "deadline instant is still payable")

	n, err = s.ExpirePending(ctx, base.Add(6*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	cancelled, err := s.ListByStation(ctx, "S1", repository.ReservationFilter{States: []model.ReservationState{model.ReservationCancelled}})
	require.NoError(t, err)
	assert.Len(t, cancelled, 2)
}
