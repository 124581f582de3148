// Command seed loads a station catalog into the configured store and can
// mint development access tokens.
//
//	seed -file cmd/seed/catalog.example.json
//	seed -token -user alice -role CUSTOMER
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/iliyamo/charge-slot-reservation/internal/config"
	"github.com/iliyamo/charge-slot-reservation/internal/model"
	"github.com/iliyamo/charge-slot-reservation/internal/store"
	"github.com/iliyamo/charge-slot-reservation/internal/utils"
)

type catalogFile struct {
	Stations []stationEntry `json:"stations"`
}

type stationEntry struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Lat        float64          `json:"lat"`
	Lng        float64          `json:"lng"`
	BaseRate   float64          `json:"base_rate"`
	OpenTime   string           `json:"open_time"`
	CloseTime  string           `json:"close_time"`
	Connectors []connectorEntry `json:"connectors"`
}

type connectorEntry struct {
	ID         string  `json:"id"`
	CapacityKW float64 `json:"capacity_kw"`
	Type       string  `json:"type"`
}

// readCatalog decodes and sanity-checks a catalog file.
func readCatalog(r io.Reader) ([]model.Station, []model.Connector, error) {
	var f catalogFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, nil, fmt.Errorf("decode catalog: %w", err)
	}
	var stations []model.Station
	var conns []model.Connector
	seen := map[string]bool{}
	for _, s := range f.Stations {
		if s.ID == "" || s.BaseRate <= 0 {
			return nil, nil, fmt.Errorf("station %q: id and positive base_rate required", s.ID)
		}
		stations = append(stations, model.Station{
			ID: s.ID, Name: s.Name, Lat: s.Lat, Lng: s.Lng,
			BaseRate: s.BaseRate, OpenTime: s.OpenTime, CloseTime: s.CloseTime,
		})
		for _, c := range s.Connectors {
			if c.ID == "" || c.CapacityKW <= 0 {
				return nil, nil, fmt.Errorf("connector %q: id and positive capacity_kw required", c.ID)
			}
			if seen[c.ID] {
				return nil, nil, fmt.Errorf("connector %q listed twice", c.ID)
			}
			seen[c.ID] = true
			t := model.ConnectorType(c.Type)
			switch t {
			case model.ConnectorCCS, model.ConnectorType2, model.ConnectorCHAdeMO:
			default:
				return nil, nil, fmt.Errorf("connector %q: unknown type %q", c.ID, c.Type)
			}
			conns = append(conns, model.Connector{ID: c.ID, StationID: s.ID, CapacityKW: c.CapacityKW, Type: t})
		}
	}
	return stations, conns, nil
}

func main() {
	file := flag.String("file", "cmd/seed/catalog.example.json", "catalog JSON to load")
	token := flag.Bool("token", false, "print an access token instead of seeding")
	user := flag.String("user", "dev-user", "token subject")
	role := flag.String("role", utils.RoleCustomer, "token role (CUSTOMER or OPERATOR)")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	config.LoadDotEnv()
	cfg := config.Load()

	if *token {
		tok, err := utils.NewAccessToken(cfg.JWTSecret, *user, *role, *ttl)
		if err != nil {
			log.Fatalf("mint token: %v", err)
		}
		fmt.Println(tok.Token)
		return
	}

	fh, err := os.Open(*file)
	if err != nil {
		log.Fatalf("open catalog: %v", err)
	}
	defer fh.Close()
	stations, conns, err := readCatalog(fh)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	st, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	for _, s := range stations {
		if err := st.Catalog.PutStation(ctx, s); err != nil {
			log.Fatalf("put station %s: %v", s.ID, err)
		}
	}
	for _, c := range conns {
		if err := st.Catalog.PutConnector(ctx, c); err != nil {
			log.Fatalf("put connector %s: %v", c.ID, err)
		}
	}
	log.Printf("seeded %d stations and %d connectors into %s store", len(stations), len(conns), cfg.StoreDriver)
}
