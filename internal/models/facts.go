package models

import (
	"strconv"
	"strings"
)

// GeocodeResult is the first address match returned by the geocoding service.
type GeocodeResult struct {
	AddressName       string  `json:"address_name"`
	LegalDistrictCode string  `json:"legal_district_code"`
	MainLotNumber     string  `json:"main_lot_number"`
	SubLotNumber      string  `json:"sub_lot_number,omitempty"`
	Region1           string  `json:"region_1"`
	Region2           string  `json:"region_2"`
	Region3           string  `json:"region_3"`
	Latitude          float64 `json:"latitude"`
	Longitude         float64 `json:"longitude"`
	IsMountainLot     bool    `json:"is_mountain_lot"`
}

// ParcelNumber derives the PNU for this geocode result.
func (g GeocodeResult) ParcelNumber() (ParcelNumber, error) {
	return BuildParcelNumber(g.LegalDistrictCode, g.IsMountainLot, g.MainLotNumber, g.SubLotNumber)
}

// LandFact holds land-ledger attributes. Any field may be absent.
type LandFact struct {
	AreaSquareMeters     *float64 `json:"area_square_meters,omitempty"`
	OfficialLandPriceKRW *int64   `json:"official_land_price_krw,omitempty"`
	LandCategory         string   `json:"land_category,omitempty"`
	OwnershipType        string   `json:"ownership_type,omitempty"`
}

// BuildingFact holds building-ledger attributes for the main structure on a parcel.
type BuildingFact struct {
	TotalFloorAreaSquareMeters *float64 `json:"total_floor_area_square_meters,omitempty"`
	MainUseCategory            string   `json:"main_use_category,omitempty"`
	ApprovalDate               string   `json:"approval_date,omitempty"`
	StructureType              string   `json:"structure_type,omitempty"`
	IsViolatingStructure       bool     `json:"is_violating_structure"`
}

// ParcelFeatureFact holds GIS parcel characteristics (road frontage, shape, terrain)
// and, when the feature service returns it, the parcel boundary.
type ParcelFeatureFact struct {
	Boundary     *MultiPolygon `json:"boundary,omitempty"`
	RoadSideType string        `json:"road_side_type,omitempty"`
	ShapeType    string        `json:"shape_type,omitempty"`
	TerrainType  string        `json:"terrain_type,omitempty"`
}

// FactSource records where a fact in a FactBundle came from.
type FactSource string

const (
	// FactSourceLive means the value came from the external registry.
	FactSourceLive FactSource = "live"
	// FactSourceNoRecord means the registry answered but had no entry for the parcel.
	FactSourceNoRecord FactSource = "no_record"
	// FactSourceUnavailable means the registry failed or rejected the request.
	FactSourceUnavailable FactSource = "unavailable"
	// FactSourceCredentialMissing means no credential was configured for the registry.
	FactSourceCredentialMissing FactSource = "credential_missing"
)

// Placeholder texts substituted for facts that could not be fetched.
const (
	PlaceholderInferenceNeeded   = "추론 필요"
	PlaceholderNoRecord          = "등록 정보 없음"
	PlaceholderCredentialMissing = "키 미설정"
	PlaceholderFieldMissing      = "정보없음"
)

// IsLive reports whether the fact came from a live registry response.
func (s FactSource) IsLive() bool {
	return s == FactSourceLive
}

// Placeholder returns the text shown for a field with no value from this source.
// For a live source it marks a field the registry left blank.
func (s FactSource) Placeholder() string {
	switch s {
	case FactSourceLive:
		return PlaceholderFieldMissing
	case FactSourceNoRecord:
		return PlaceholderNoRecord
	case FactSourceCredentialMissing:
		return PlaceholderCredentialMissing
	default:
		return PlaceholderInferenceNeeded
	}
}

// Text returns v, or the placeholder for s when v is blank.
func (s FactSource) Text(v string) string {
	if strings.TrimSpace(v) == "" {
		return s.Placeholder()
	}
	return v
}

// Float formats v followed by unit, or returns the placeholder for s when v is nil.
func (s FactSource) Float(v *float64, unit string) string {
	if v == nil {
		return s.Placeholder()
	}
	return strconv.FormatFloat(*v, 'f', -1, 64) + unit
}

// Int formats v followed by unit, or returns the placeholder for s when v is nil.
func (s FactSource) Int(v *int64, unit string) string {
	if v == nil {
		return s.Placeholder()
	}
	return strconv.FormatInt(*v, 10) + unit
}

// Flag renders b for a live source; otherwise the flag is unknown and the placeholder is returned.
func (s FactSource) Flag(b bool) string {
	if !s.IsLive() {
		return s.Placeholder()
	}
	return YesNo(b)
}

// FactValue returns *v unformatted, or the placeholder for s when v is nil.
func FactValue[T float64 | int64](v *T, s FactSource) interface{} {
	if v == nil {
		return s.Placeholder()
	}
	return *v
}

// YesNo renders a flag in Korean.
func YesNo(b bool) string {
	if b {
		return "예"
	}
	return "아니오"
}

// SourceTag lists the origin of each fact in a bundle.
type SourceTag struct {
	Land     FactSource `json:"land"`
	Building FactSource `json:"building"`
	Feature  FactSource `json:"feature"`
}

// AllLive reports whether every fact came from a live source.
func (t SourceTag) AllLive() bool {
	return t.Land.IsLive() && t.Building.IsLive() && t.Feature.IsLive()
}

// FactBundle is the complete, read-only input to report generation.
// Every fact is always present; missing data is represented by placeholder values
// and recorded in Sources.
type FactBundle struct {
	Address  string            `json:"address"`
	PNU      ParcelNumber      `json:"pnu"`
	Location GeocodeResult     `json:"location"`
	Land     LandFact          `json:"land"`
	Building BuildingFact      `json:"building"`
	Feature  ParcelFeatureFact `json:"feature"`
	Sources  SourceTag         `json:"sources"`
}

// Report is the generated analysis text for a FactBundle.
type Report struct {
	Provider string `json:"provider"`
	Text     string `json:"text"`
	Fallback bool   `json:"fallback"`
}
