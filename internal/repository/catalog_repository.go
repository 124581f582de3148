package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/charge-slot-reservation/internal/model"
)

// CatalogRepo reads stations and connectors.  The catalog itself is
// maintained elsewhere; PutStation and PutConnector exist for seeding.
type CatalogRepo struct {
	db *sql.DB
}

// NewCatalogRepo returns a new CatalogRepo bound to the given database.
func NewCatalogRepo(db *sql.DB) *CatalogRepo { return &CatalogRepo{db: db} }

const stationCols = `id, name, lat, lng, base_rate, open_time, close_time, created_at, updated_at`

func scanStation(row interface{ Scan(...any) error }) (model.Station, error) {
	var s model.Station
	err := row.Scan(&s.ID, &s.Name, &s.Lat, &s.Lng, &s.BaseRate, &s.OpenTime, &s.CloseTime, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

const connectorCols = `id, station_id, capacity_kw, connector_type, created_at, updated_at`

func scanConnector(row interface{ Scan(...any) error }) (model.Connector, error) {
	var c model.Connector
	var typ string
	if err := row.Scan(&c.ID, &c.StationID, &c.CapacityKW, &typ, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return model.Connector{}, err
	}
	c.Type = model.ConnectorType(typ)
	return c, nil
}

// GetStation returns a station by id or ErrNotFound.
func (r *CatalogRepo) GetStation(ctx context.Context, id string) (model.Station, error) {
	s, err := scanStation(r.db.QueryRowContext(ctx, `SELECT `+stationCols+` FROM stations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Station{}, ErrNotFound
	}
	if err != nil {
		return model.Station{}, fmt.Errorf("get station: %w", err)
	}
	return s, nil
}

// GetConnector returns a connector by id or ErrNotFound.
func (r *CatalogRepo) GetConnector(ctx context.Context, id string) (model.Connector, error) {
	c, err := scanConnector(r.db.QueryRowContext(ctx, `SELECT `+connectorCols+` FROM connectors WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Connector{}, ErrNotFound
	}
	if err != nil {
		return model.Connector{}, fmt.Errorf("get connector: %w", err)
	}
	return c, nil
}

// ListStations returns all stations ordered by name.
func (r *CatalogRepo) ListStations(ctx context.Context) ([]model.Station, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+stationCols+` FROM stations ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list stations: %w", err)
	}
	defer rows.Close()
	out := make([]model.Station, 0)
	for rows.Next() {
		s, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListConnectors returns the connectors of a station ordered by id.
func (r *CatalogRepo) ListConnectors(ctx context.Context, stationID string) ([]model.Connector, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+connectorCols+` FROM connectors WHERE station_id = ? ORDER BY id`, stationID)
	if err != nil {
		return nil, fmt.Errorf("list connectors: %w", err)
	}
	defer rows.Close()
	out := make([]model.Connector, 0)
	for rows.Next() {
		c, err := scanConnector(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// PutStation inserts or replaces a station.
func (r *CatalogRepo) PutStation(ctx context.Context, s model.Station) error {
	const q = `INSERT INTO stations (id, name, lat, lng, base_rate, open_time, close_time)
               VALUES (?, ?, ?, ?, ?, ?, ?)
               ON DUPLICATE KEY UPDATE name = VALUES(name), lat = VALUES(lat), lng = VALUES(lng),
                   base_rate = VALUES(base_rate), open_time = VALUES(open_time), close_time = VALUES(close_time)`
	_, err := r.db.ExecContext(ctx, q, s.ID, s.Name, s.Lat, s.Lng, s.BaseRate, s.OpenTime, s.CloseTime)
	return err
}

// PutConnector inserts or replaces a connector.  The station must exist.
func (r *CatalogRepo) PutConnector(ctx context.Context, c model.Connector) error {
	const q = `INSERT INTO connectors (id, station_id, capacity_kw, connector_type)
               VALUES (?, ?, ?, ?)
               ON DUPLICATE KEY UPDATE station_id = VALUES(station_id), capacity_kw = VALUES(capacity_kw),
                   connector_type = VALUES(connector_type)`
	_, err := r.db.ExecContext(ctx, q, c.ID, c.StationID, c.CapacityKW, string(c.Type))
	return err
}
