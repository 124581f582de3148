package model

import "time"

// ConnectorType names the physical plug standard of a connector.
type ConnectorType string

const (
	ConnectorCCS     ConnectorType = "CCS"
	ConnectorType2   ConnectorType = "Type2"
	ConnectorCHAdeMO ConnectorType = "CHAdeMO"
)

// ConnectorStatus is the displayed occupancy of a connector.  It is a
// projection of the reservation set and is never persisted.
type ConnectorStatus string

const (
	ConnectorFree   ConnectorStatus = "free"
	ConnectorBooked ConnectorStatus = "booked"
	ConnectorInUse  ConnectorStatus = "in_use"
)

// Connector is a single chargeable outlet at a station and the unit of
// mutual exclusion for reservations.
//
// Fields:
//  ID         – primary key identifier.
//  StationID  – station the connector belongs to.
//  CapacityKW – rated power in kilowatts.
//  Type       – plug standard.
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last update timestamp.
type Connector struct {
	ID         string        // connectors.id
	StationID  string        // connectors.station_id
	CapacityKW float64       // connectors.capacity_kw
	Type       ConnectorType // connectors.connector_type
	CreatedAt  time.Time     // connectors.created_at
	UpdatedAt  time.Time     // connectors.updated_at
}
