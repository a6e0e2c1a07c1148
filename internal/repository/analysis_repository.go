package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stwalsh4118/parcelbrief/internal/database"
	"github.com/stwalsh4118/parcelbrief/internal/models"
)

// Maximum number of analyses returned from a nearby query
const maxNearbyResults = 20

// AnalysisRepository defines the data access operations for the analysis history.
type AnalysisRepository interface {
	// Save inserts a finished analysis. Records are never updated.
	Save(ctx context.Context, analysis *models.ParcelAnalysis) error

	// FindByID returns the analysis with the given ID.
	// Returns nil, nil if no analysis is found (not an error).
	FindByID(ctx context.Context, id uuid.UUID) (*models.ParcelAnalysis, error)

	// FindByPoint returns the most recent analysis whose parcel boundary contains the point.
	// Returns nil, nil if no analysis is found (not an error).
	FindByPoint(ctx context.Context, lat, lng float64) (*models.ParcelAnalysis, error)

	// FindNearby returns analyses whose geocoded location lies within radiusMeters
	// of the point, closest first. Returns an empty slice if none are found.
	FindNearby(ctx context.Context, lat, lng float64, radiusMeters int) ([]models.ParcelAnalysisWithDistance, error)
}

// analysisRepository is the PostGIS implementation of AnalysisRepository.
type analysisRepository struct {
	db *database.Database
}

// NewAnalysisRepository creates a new instance of AnalysisRepository.
func NewAnalysisRepository(db *database.Database) AnalysisRepository {
	return &analysisRepository{
		db: db,
	}
}

// Save stores the facts and report as JSONB alongside indexed geometry columns.
//
// Note: PostGIS functions expect (longitude, latitude) order, not (lat, lng).
func (r *analysisRepository) Save(ctx context.Context, analysis *models.ParcelAnalysis) error {
	facts, err := json.Marshal(analysis.Facts)
	if err != nil {
		return fmt.Errorf("failed to encode facts for analysis %s: %w", analysis.ID, err)
	}
	report, err := json.Marshal(analysis.Report)
	if err != nil {
		return fmt.Errorf("failed to encode report for analysis %s: %w", analysis.ID, err)
	}

	var boundary interface{}
	if b := analysis.Facts.Feature.Boundary; !b.IsEmpty() {
		boundary, err = b.Value()
		if err != nil {
			return fmt.Errorf("failed to encode boundary for analysis %s: %w", analysis.ID, err)
		}
	}

	query := `
		INSERT INTO parcel_analyses (id, address, pnu, location, boundary, facts, report, created_at)
		VALUES (
			$1, $2, $3,
			ST_SetSRID(ST_MakePoint($4, $5), 4326),
			ST_Multi(ST_SetSRID(ST_GeomFromGeoJSON($6::text), 4326)),
			$7, $8, $9
		)
	`

	loc := analysis.Facts.Location
	_, err = r.db.Pool.Exec(ctx, query,
		analysis.ID,
		analysis.Facts.Address,
		string(analysis.Facts.PNU),
		loc.Longitude,
		loc.Latitude,
		boundary,
		facts,
		report,
		analysis.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert analysis %s: %w", analysis.ID, err)
	}

	return nil
}

const selectAnalysis = `
	SELECT id, facts, report, created_at
	FROM parcel_analyses
`

func (r *analysisRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.ParcelAnalysis, error) {
	row := r.db.Pool.QueryRow(ctx, selectAnalysis+` WHERE id = $1`, id)

	analysis, err := scanAnalysis(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query analysis %s: %w", id, err)
	}
	return analysis, nil
}

// FindByPoint uses ST_Contains on the stored boundary; the GiST index is used automatically.
func (r *analysisRepository) FindByPoint(ctx context.Context, lat, lng float64) (*models.ParcelAnalysis, error) {
	query := selectAnalysis + `
		WHERE boundary IS NOT NULL
		  AND ST_Contains(boundary, ST_SetSRID(ST_MakePoint($1, $2), 4326))
		ORDER BY created_at DESC
		LIMIT 1
	`

	analysis, err := scanAnalysis(r.db.Pool.QueryRow(ctx, query, lng, lat))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query analysis at point (lat=%f, lng=%f): %w", lat, lng, err)
	}
	return analysis, nil
}

// FindNearby uses ST_DWithin with geography casting so the radius is in meters.
func (r *analysisRepository) FindNearby(ctx context.Context, lat, lng float64, radiusMeters int) ([]models.ParcelAnalysisWithDistance, error) {
	query := `
		SELECT
			id, facts, report, created_at,
			ST_Distance(
				location::geography,
				ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography
			) AS distance_meters
		FROM parcel_analyses
		WHERE ST_DWithin(
			location::geography,
			ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography,
			$3
		)
		ORDER BY distance_meters, created_at DESC
		LIMIT $4
	`

	rows, err := r.db.Pool.Query(ctx, query, lng, lat, radiusMeters, maxNearbyResults)
	if err != nil {
		return nil, fmt.Errorf("failed to query nearby analyses (lat=%f, lng=%f, radius=%d): %w",
			lat, lng, radiusMeters, err)
	}
	defer rows.Close()

	results := []models.ParcelAnalysisWithDistance{}

	for rows.Next() {
		var (
			analysis      models.ParcelAnalysis
			facts, report []byte
			distance      float64
		)
		if err := rows.Scan(&analysis.ID, &facts, &report, &analysis.CreatedAt, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan analysis row: %w", err)
		}
		if err := decodeAnalysis(&analysis, facts, report); err != nil {
			return nil, err
		}
		results = append(results, models.ParcelAnalysisWithDistance{
			Analysis: analysis,
			Distance: distance,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analysis rows: %w", err)
	}

	return results, nil
}

func scanAnalysis(row pgx.Row) (*models.ParcelAnalysis, error) {
	var (
		analysis      models.ParcelAnalysis
		facts, report []byte
	)
	if err := row.Scan(&analysis.ID, &facts, &report, &analysis.CreatedAt); err != nil {
		return nil, err
	}
	if err := decodeAnalysis(&analysis, facts, report); err != nil {
		return nil, err
	}
	return &analysis, nil
}

func decodeAnalysis(analysis *models.ParcelAnalysis, facts, report []byte) error {
	if err := json.Unmarshal(facts, &analysis.Facts); err != nil {
		return fmt.Errorf("failed to decode facts for analysis %s: %w", analysis.ID, err)
	}
	if err := json.Unmarshal(report, &analysis.Report); err != nil {
		return fmt.Errorf("failed to decode report for analysis %s: %w", analysis.ID, err)
	}
	return nil
}
