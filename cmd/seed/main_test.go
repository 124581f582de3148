package main

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/charge-slot-reservation/internal/model"
)

func TestReadExampleCatalog(t *testing.T) {
	fh, err := os.Open("catalog.example.json")
	require.NoError(t, err)
	defer fh.Close()

	stations, conns, err := readCatalog(fh)
	require.NoError(t, err)
	assert.Len(t, stations, 2)
	assert.Len(t, conns, 5)
	assert.Equal(t, "st-harbour", conns[0].StationID)
	assert.Equal(t, model.ConnectorType2, conns[0].Type)
}

func TestReadCatalogRejects(t *testing.T) {
	tests := map[string]string{
		"unknown field":   `{"stations":[{"id":"s","base_rate":1,"colour":"red"}]}`,
		"zero base rate":  `{"stations":[{"id":"s","base_rate":0}]}`,
		"bad type":        `{"stations":[{"id":"s","base_rate":1,"connectors":[{"id":"c","capacity_kw":7,"type":"Tesla"}]}]}`,
		"zero capacity":   `{"stations":[{"id":"s","base_rate":1,"connectors":[{"id":"c","capacity_kw":0,"type":"CCS"}]}]}`,
		"duplicate conn":  `{"stations":[{"id":"s","base_rate":1,"connectors":[{"id":"c","capacity_kw":7,"type":"CCS"},{"id":"c","capacity_kw":7,"type":"CCS"}]}]}`,
		"not json at all": `stations`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := readCatalog(strings.NewReader(body))
			assert.Error(t, err)
		})
	}
}
