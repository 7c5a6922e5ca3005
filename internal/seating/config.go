package seating

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrConfig reports a malformed seating configuration file: structural
// problems or bound violations discovered at load time. Configuration
// failures are fatal at startup and never occur mid-loop.
var ErrConfig = errors.New("invalid seating configuration")

// maxConfigBytes bounds seating config reads. Layout files are a few KB at
// most; anything larger is a wrong file.
const maxConfigBytes = 1 << 20

// configFile is the on-disk schema:
// {"seats":[{"id":"...","bounds":{"xMin":..,"xMax":..,"yMin":..,"yMax":..}}]}
type configFile struct {
	Seats []configSeat `json:"seats"`
}

type configSeat struct {
	ID     string  `json:"id"`
	Bounds *Bounds `json:"bounds"`
}

// Parse builds a Layout from raw configuration JSON. Every seat must carry a
// non-empty id and bounds with xMin<xMax and yMin<yMax.
func Parse(data []byte) (*Layout, error) {
	var cfg configFile
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if len(cfg.Seats) == 0 {
		return nil, fmt.Errorf("%w: missing or empty 'seats' field", ErrConfig)
	}
	regions := make([]Region, 0, len(cfg.Seats))
	for i, seat := range cfg.Seats {
		if seat.ID == "" {
			return nil, fmt.Errorf("%w: seat %d missing 'id'", ErrConfig, i)
		}
		if seat.Bounds == nil {
			return nil, fmt.Errorf("%w: seat %q missing 'bounds'", ErrConfig, seat.ID)
		}
		b := *seat.Bounds
		if b.XMin >= b.XMax || b.YMin >= b.YMax {
			return nil, fmt.Errorf("%w: seat %q has non-positive bounds", ErrConfig, seat.ID)
		}
		regions = append(regions, Region{SeatID: seat.ID, Bounds: b})
	}
	layout, err := NewLayout(regions)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return layout, nil
}

// LoadFile reads and parses a seating configuration file. The path must have
// a .json extension and the file must be under the size cap.
func LoadFile(path string) (*Layout, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("%w: config file must have .json extension, got %q", ErrConfig, ext)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if info.Size() > maxConfigBytes {
		return nil, fmt.Errorf("%w: config file too large: %d bytes (max %d)", ErrConfig, info.Size(), maxConfigBytes)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return Parse(data)
}

// Marshal renders the layout back into the configuration schema, preserving
// seat order. Parse(Marshal(l)) reproduces the same ids and bounds.
func Marshal(l *Layout) ([]byte, error) {
	cfg := configFile{Seats: make([]configSeat, 0, l.Len())}
	for _, r := range l.Regions() {
		b := r.Bounds
		cfg.Seats = append(cfg.Seats, configSeat{ID: r.SeatID, Bounds: &b})
	}
	return json.MarshalIndent(cfg, "", "  ")
}
