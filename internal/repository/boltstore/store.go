// Package boltstore provides a BoltDB-backed catalog and reservation store.
//
// BoltDB is an embedded key/value store that keeps all data in a single
// file, so a station controller can run without a database server.  Bolt
// allows one read-write transaction at a time; every admission and state
// transition runs inside db.Update, which makes check-then-insert atomic
// without any extra locking.
//
// Layout:
//   stations/<id>                 -> JSON station
//   connectors/<id>               -> JSON connector
//   reservations/<id>             -> JSON reservation
//   by_connector/<connector>/<id> -> empty (secondary index)
package boltstore

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	bolt "github.com/boltdb/bolt"

	"github.com/iliyamo/charge-slot-reservation/internal/model"
	"github.com/iliyamo/charge-slot-reservation/internal/repository"
)

var (
	bucketStations     = []byte("stations")
	bucketConnectors   = []byte("connectors")
	bucketReservations = []byte("reservations")
	bucketByConnector  = []byte("by_connector")
)

// Store wraps a BoltDB database and implements the same catalog and
// reservation contract as the MySQL repositories.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) a BoltDB database at path and ensures the
// buckets exist.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketStations, bucketConnectors, bucketReservations, bucketByConnector} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the database file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

type stationRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	BaseRate  float64   `json:"base_rate"`
	OpenTime  string    `json:"open_time"`
	CloseTime string    `json:"close_time"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type connectorRecord struct {
	ID         string    `json:"id"`
	StationID  string    `json:"station_id"`
	CapacityKW float64   `json:"capacity_kw"`
	Type       string    `json:"connector_type"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type reservationRecord struct {
	ID              string    `json:"id"`
	StationID       string    `json:"station_id"`
	ConnectorID     string    `json:"connector_id"`
	UserID          string    `json:"user_id"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	Amount          float64   `json:"amount"`
	State           string    `json:"reservation_state"`
	PaymentState    string    `json:"payment_state"`
	PaymentDeadline time.Time `json:"payment_deadline"`
	PaymentToken    string    `json:"payment_token"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toReservation(r reservationRecord) model.Reservation {
	return model.Reservation{
		ID:              r.ID,
		StationID:       r.StationID,
		ConnectorID:     r.ConnectorID,
		UserID:          r.UserID,
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		Amount:          r.Amount,
		State:           model.ReservationState(r.State),
		PaymentState:    model.PaymentState(r.PaymentState),
		PaymentDeadline: r.PaymentDeadline,
		PaymentToken:    r.PaymentToken,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func fromReservation(r model.Reservation) reservationRecord {
	return reservationRecord{
		ID:              r.ID,
		StationID:       r.StationID,
		ConnectorID:     r.ConnectorID,
		UserID:          r.UserID,
		StartTime:       r.StartTime.UTC(),
		EndTime:         r.EndTime.UTC(),
		Amount:          r.Amount,
		State:           string(r.State),
		PaymentState:    string(r.PaymentState),
		PaymentDeadline: r.PaymentDeadline.UTC(),
		PaymentToken:    r.PaymentToken,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

// ---- Catalog ----

// PutStation inserts or replaces a station.
func (s *Store) PutStation(ctx context.Context, st model.Station) error {
	now := time.Now().UTC()
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStations)
		rec := stationRecord{
			ID: st.ID, Name: st.Name, Lat: st.Lat, Lng: st.Lng, BaseRate: st.BaseRate,
			OpenTime: st.OpenTime, CloseTime: st.CloseTime, CreatedAt: now, UpdatedAt: now,
		}
		if v := b.Get([]byte(st.ID)); v != nil {
			var prev stationRecord
			if err := json.Unmarshal(v, &prev); err == nil {
				rec.CreatedAt = prev.CreatedAt
			}
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(st.ID), data)
	})
}

// PutConnector inserts or replaces a connector.  The station must exist.
func (s *Store) PutConnector(ctx context.Context, c model.Connector) error {
	now := time.Now().UTC()
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketStations).Get([]byte(c.StationID)) == nil {
			return repository.ErrNotFound
		}
		b := tx.Bucket(bucketConnectors)
		rec := connectorRecord{
			ID: c.ID, StationID: c.StationID, CapacityKW: c.CapacityKW, Type: string(c.Type),
			CreatedAt: now, UpdatedAt: now,
		}
		if v := b.Get([]byte(c.ID)); v != nil {
			var prev connectorRecord
			if err := json.Unmarshal(v, &prev); err == nil {
				rec.CreatedAt = prev.CreatedAt
			}
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(c.ID), data)
	})
}

// GetStation returns a station by id or repository.ErrNotFound.
func (s *Store) GetStation(ctx context.Context, id string) (model.Station, error) {
	var st model.Station
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketStations).Get([]byte(id))
		if v == nil {
			return repository.ErrNotFound
		}
		var rec stationRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		st = model.Station(rec)
		return nil
	})
	return st, err
}

// GetConnector returns a connector by id or repository.ErrNotFound.
func (s *Store) GetConnector(ctx context.Context, id string) (model.Connector, error) {
	var c model.Connector
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketConnectors).Get([]byte(id))
		if v == nil {
			return repository.ErrNotFound
		}
		var rec connectorRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		c = model.Connector{
			ID: rec.ID, StationID: rec.StationID, CapacityKW: rec.CapacityKW,
			Type: model.ConnectorType(rec.Type), CreatedAt: rec.CreatedAt, UpdatedAt: rec.UpdatedAt,
		}
		return nil
	})
	return c, err
}

// ListStations returns all stations ordered by name.
func (s *Store) ListStations(ctx context.Context) ([]model.Station, error) {
	out := make([]model.Station, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketStations).ForEach(func(_, v []byte) error {
			var rec stationRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			out = append(out, model.Station(rec))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ListConnectors returns the connectors of a station ordered by id.
func (s *Store) ListConnectors(ctx context.Context, stationID string) ([]model.Connector, error) {
	out := make([]model.Connector, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketConnectors).ForEach(func(_, v []byte) error {
			var rec connectorRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if rec.StationID != stationID {
				return nil
			}
			out = append(out, model.Connector{
				ID: rec.ID, StationID: rec.StationID, CapacityKW: rec.CapacityKW,
				Type: model.ConnectorType(rec.Type), CreatedAt: rec.CreatedAt, UpdatedAt: rec.UpdatedAt,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	// bolt iterates keys in byte order, so out is already sorted by id
	return out, nil
}

// ---- Reservations ----

func getReservation(tx *bolt.Tx, id string) (reservationRecord, error) {
	var rec reservationRecord
	v := tx.Bucket(bucketReservations).Get([]byte(id))
	if v == nil {
		return rec, repository.ErrNotFound
	}
	err := json.Unmarshal(v, &rec)
	return rec, err
}

func putReservation(tx *bolt.Tx, rec reservationRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketReservations).Put([]byte(rec.ID), data)
}

// connectorReservations loads every reservation indexed under connectorID.
func connectorReservations(tx *bolt.Tx, connectorID string) ([]reservationRecord, error) {
	idx := tx.Bucket(bucketByConnector).Bucket([]byte(connectorID))
	if idx == nil {
		return nil, nil
	}
	var out []reservationRecord
	err := idx.ForEach(func(k, _ []byte) error {
		rec, err := getReservation(tx, string(k))
		if err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

func activeOverlap(rec reservationRecord, start, end time.Time) bool {
	r := toReservation(rec)
	return r.Active() && r.Overlaps(start, end)
}

// FindOverlapping returns the active reservations on a connector whose
// interval intersects [start, end), ordered by start time.
func (s *Store) FindOverlapping(ctx context.Context, connectorID string, start, end time.Time, excludeID string) ([]model.Reservation, error) {
	out := make([]model.Reservation, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		recs, err := connectorReservations(tx, connectorID)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			if rec.ID == excludeID || !activeOverlap(rec, start, end) {
				continue
			}
			out = append(out, toReservation(rec))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// InsertIfNoOverlap admits res inside a single read-write transaction:
// stale pending overlaps (deadline before now) are expired, remaining
// active overlaps produce a *repository.ConflictError and otherwise res is
// stored and indexed.
func (s *Store) InsertIfNoOverlap(ctx context.Context, res *model.Reservation, now time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketConnectors).Get([]byte(res.ConnectorID)) == nil {
			return repository.ErrNotFound
		}
		recs, err := connectorReservations(tx, res.ConnectorID)
		if err != nil {
			return err
		}
		conflicts := 0
		for _, rec := range recs {
			if !activeOverlap(rec, res.StartTime, res.EndTime) {
				continue
			}
			if toReservation(rec).IsExpired(now) {
				rec.State = string(model.ReservationCancelled)
				rec.PaymentState = string(model.PaymentExpired)
				rec.UpdatedAt = now.UTC()
				if err := putReservation(tx, rec); err != nil {
					return err
				}
				continue
			}
			conflicts++
		}
		if conflicts > 0 {
			return &repository.ConflictError{Count: conflicts}
		}
		if err := putReservation(tx, fromReservation(*res)); err != nil {
			return err
		}
		idx, err := tx.Bucket(bucketByConnector).CreateBucketIfNotExists([]byte(res.ConnectorID))
		if err != nil {
			return err
		}
		return idx.Put([]byte(res.ID), []byte{})
	})
}

// Get returns a reservation by id or repository.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (model.Reservation, error) {
	var out model.Reservation
	err := s.db.View(func(tx *bolt.Tx) error {
		rec, err := getReservation(tx, id)
		if err != nil {
			return err
		}
		out = toReservation(rec)
		return nil
	})
	return out, err
}

// Update hands a copy of the stored reservation to mutate and persists its
// state fields when mutate returns nil.  Identity, interval, amount,
// deadline and token are immutable and any change to them is discarded.
func (s *Store) Update(ctx context.Context, id string, mutate func(*model.Reservation) error) (model.Reservation, error) {
	var out model.Reservation
	err := s.db.Update(func(tx *bolt.Tx) error {
		rec, err := getReservation(tx, id)
		if err != nil {
			return err
		}
		cur := toReservation(rec)
		next := cur
		if err := mutate(&next); err != nil {
			return err
		}
		cur.State = next.State
		cur.PaymentState = next.PaymentState
		cur.UpdatedAt = next.UpdatedAt
		if err := putReservation(tx, fromReservation(cur)); err != nil {
			return err
		}
		out = cur
		return nil
	})
	if err != nil {
		return model.Reservation{}, err
	}
	return out, nil
}

func (s *Store) scan(match func(reservationRecord) bool) ([]model.Reservation, error) {
	out := make([]model.Reservation, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketReservations).ForEach(func(_, v []byte) error {
			var rec reservationRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if match(rec) {
				out = append(out, toReservation(rec))
			}
			return nil
		})
	})
	return out, err
}

// ListByUser returns all reservations of a user, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]model.Reservation, error) {
	out, err := s.scan(func(rec reservationRecord) bool { return rec.UserID == userID })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ListByStation returns the reservations of a station matching f ordered
// by start time.
func (s *Store) ListByStation(ctx context.Context, stationID string, f repository.ReservationFilter) ([]model.Reservation, error) {
	out, err := s.scan(func(rec reservationRecord) bool {
		return rec.StationID == stationID && f.Match(toReservation(rec))
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// ExpirePending moves every pending reservation whose deadline is before
// now to cancelled/expired and returns how many changed.
func (s *Store) ExpirePending(ctx context.Context, now time.Time) (int, error) {
	n := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReservations)
		var stale []reservationRecord
		err := b.ForEach(func(_, v []byte) error {
			var rec reservationRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if toReservation(rec).IsExpired(now) {
				stale = append(stale, rec)
			}
			return nil
		})
		if err != nil {
			return err
		}
		// mutating a bucket inside ForEach is not allowed, so write afterwards
		for _, rec := range stale {
			rec.State = string(model.ReservationCancelled)
			rec.PaymentState = string(model.PaymentExpired)
			rec.UpdatedAt = now.UTC()
			if err := putReservation(tx, rec); err != nil {
				return err
			}
		}
		n = len(stale)
		return nil
	})
	return n, err
}
