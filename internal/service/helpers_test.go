package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/charge-slot-reservation/internal/clock"
	"github.com/iliyamo/charge-slot-reservation/internal/model"
	"github.com/iliyamo/charge-slot-reservation/internal/queue"
	"github.com/iliyamo/charge-slot-reservation/internal/repository/boltstore"
)

// t0 is the instant every test clock starts at.
var t0 = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.ReservationEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []queue.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]queue.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

func approve(ok bool) PaymentGateway {
	return GatewayFunc(func(context.Context, string, float64, PaymentProof) (bool, error) { return ok, nil })
}

var goodProof = PaymentProof{CardNumber: "4111 1111 1111 1111", Expiry: "12/29", CVV: "123"}

type fixture struct {
	svc    *Service
	store  *boltstore.Store
	clock  *clock.Manual
	events *recordingPublisher
}

// newFixture seeds station S1 (base rate 10) with connectors C1 (22 kW)
// and C2 (50 kW), and station S2 with connector D1.
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	st, err := boltstore.Open(filepath.Join(t.TempDir(), "svc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	require.NoError(t, st.PutStation(ctx, model.Station{ID: "S1", Name: "Harbour", BaseRate: 10}))
	require.NoError(t, st.PutStation(ctx, model.Station{ID: "S2", Name: "Airport", BaseRate: 12}))
	require.NoError(t, st.PutConnector(ctx, model.Connector{ID: "C1", StationID: "S1", CapacityKW: 22, Type: model.ConnectorType2}))
	require.NoError(t, st.PutConnector(ctx, model.Connector{ID: "C2", StationID: "S1", CapacityKW: 50, Type: model.ConnectorCCS}))
	require.NoError(t, st.PutConnector(ctx, model.Connector{ID: "D1", StationID: "S2", CapacityKW: 7, Type: model.ConnectorType2}))

	clk := clock.NewManual(t0)
	pub := &recordingPublisher{}
	all := append([]Option{WithGateway(approve(true)), WithPublisher(pub)}, opts...)
	return &fixture{
		svc:    New(st, st, clk, all...),
		store:  st,
		clock:  clk,
		events: pub,
	}
}

func (f *fixture) reserve(t *testing.T, connector string, start, end time.Time) model.Reservation {
	t.Helper()
	r, err := f.svc.TryReserve(context.Background(), ReserveInput{UserID: "user-1", ConnectorID: connector, Start: start, End: end})
	require.NoError(t, err)
	return r
}

func at(hour, min int) time.Time {
	return time.Date(t0.Year(), t0.Month(), t0.Day(), hour, min, 0, 0, time.UTC)
}
