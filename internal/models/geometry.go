package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// SRIDWGS84 is the spatial reference used for every stored geometry.
const SRIDWGS84 = 4326

// MultiPolygon is a parcel boundary in GeoJSON coordinate order:
// [polygons][rings][points][lon,lat]. Single polygons coming from the feature
// service are promoted to a one-member MultiPolygon so storage uses one column type.
type MultiPolygon struct {
	Coordinates [][][][2]float64
	SRID        int
}

// geoJSONGeometry accepts both Polygon and MultiPolygon payloads.
type geoJSONGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// ParseGeoJSONBoundary decodes a GeoJSON Polygon or MultiPolygon geometry.
func ParseGeoJSONBoundary(data []byte) (*MultiPolygon, error) {
	var geom geoJSONGeometry
	if err := json.Unmarshal(data, &geom); err != nil {
		return nil, fmt.Errorf("failed to unmarshal boundary geometry: %w", err)
	}

	mp := &MultiPolygon{SRID: SRIDWGS84}

	switch geom.Type {
	case "MultiPolygon":
		if err := json.Unmarshal(geom.Coordinates, &mp.Coordinates); err != nil {
			return nil, fmt.Errorf("failed to unmarshal multipolygon coordinates: %w", err)
		}
	case "Polygon":
		var rings [][][2]float64
		if err := json.Unmarshal(geom.Coordinates, &rings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal polygon coordinates: %w", err)
		}
		mp.Coordinates = [][][][2]float64{rings}
	default:
		return nil, fmt.Errorf("expected Polygon or MultiPolygon type, got %q", geom.Type)
	}

	return mp, nil
}

// Scan implements sql.Scanner for boundaries selected with ST_AsGeoJSON.
func (mp *MultiPolygon) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("failed to scan MultiPolygon: expected []byte or string, got %T", value)
	}

	parsed, err := ParseGeoJSONBoundary(data)
	if err != nil {
		return err
	}
	*mp = *parsed
	return nil
}

// Value implements driver.Valuer. It returns a GeoJSON string for use with
// ST_GeomFromGeoJSON, or nil for an empty boundary.
func (mp MultiPolygon) Value() (driver.Value, error) {
	if len(mp.Coordinates) == 0 {
		return nil, nil
	}

	geoJSON, err := mp.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal multipolygon to GeoJSON: %w", err)
	}
	return string(geoJSON), nil
}

// MarshalJSON renders the boundary as a GeoJSON MultiPolygon.
func (mp MultiPolygon) MarshalJSON() ([]byte, error) {
	geom := struct {
		Type        string           `json:"type"`
		Coordinates [][][][2]float64 `json:"coordinates"`
	}{
		Type:        "MultiPolygon",
		Coordinates: mp.Coordinates,
	}
	return json.Marshal(geom)
}

// UnmarshalJSON accepts GeoJSON Polygon or MultiPolygon input.
func (mp *MultiPolygon) UnmarshalJSON(data []byte) error {
	parsed, err := ParseGeoJSONBoundary(data)
	if err != nil {
		return err
	}
	*mp = *parsed
	return nil
}

// IsEmpty reports whether the boundary has no polygons.
func (mp *MultiPolygon) IsEmpty() bool {
	return mp == nil || len(mp.Coordinates) == 0
}
