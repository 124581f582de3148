package model

import "time"

// Station represents a charging site that hosts one or more connectors.
// BaseRate is the per-hour price every connector at the station starts
// from before capacity, peak and demand surcharges are added.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – display name of the station.
//  Lat, Lng  – geographic position (used by clients only).
//  BaseRate  – base price per hour in currency units.
//  OpenTime  – opening time of day ("HH:MM").
//  CloseTime – closing time of day ("HH:MM").
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Station struct {
	ID        string    // stations.id
	Name      string    // stations.name
	Lat       float64   // stations.lat
	Lng       float64   // stations.lng
	BaseRate  float64   // stations.base_rate
	OpenTime  string    // stations.open_time
	CloseTime string    // stations.close_time
	CreatedAt time.Time // stations.created_at
	UpdatedAt time.Time // stations.updated_at
}
