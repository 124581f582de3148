// Package store opens the persistence backend selected by STORE_DRIVER and
// hands the reservation core its catalog and reservation store.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/iliyamo/charge-slot-reservation/internal/config"
	"github.com/iliyamo/charge-slot-reservation/internal/database"
	"github.com/iliyamo/charge-slot-reservation/internal/model"
	"github.com/iliyamo/charge-slot-reservation/internal/repository"
	"github.com/iliyamo/charge-slot-reservation/internal/repository/boltstore"
	"github.com/iliyamo/charge-slot-reservation/internal/service"
)

// Catalog is the read side used by the service plus the writes used for
// seeding.
type Catalog interface {
	service.Catalog
	PutStation(ctx context.Context, s model.Station) error
	PutConnector(ctx context.Context, c model.Connector) error
}

// Stores bundles an opened backend.  Close releases it.
type Stores struct {
	Catalog      Catalog
	Reservations service.ReservationStore
	Close        func() error
}

// Open connects to MySQL (running migrations) or opens the Bolt file,
// depending on cfg.StoreDriver.
func Open(ctx context.Context, cfg config.Config) (*Stores, error) {
	switch cfg.StoreDriver {
	case config.DriverBolt:
		if dir := filepath.Dir(cfg.BoltPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create bolt dir: %w", err)
			}
		}
		bs, err := boltstore.Open(cfg.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("open bolt %s: %w", cfg.BoltPath, err)
		}
		return &Stores{Catalog: bs, Reservations: bs, Close: bs.Close}, nil

	case config.DriverMySQL:
		db, err := database.Open(database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName))
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return &Stores{
			Catalog:      repository.NewCatalogRepo(db),
			Reservations: repository.NewReservationRepo(db),
			Close:        db.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
