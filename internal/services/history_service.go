package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stwalsh4118/parcelbrief/internal/logger"
	"github.com/stwalsh4118/parcelbrief/internal/models"
	"github.com/stwalsh4118/parcelbrief/internal/repository"
)

// Coordinate validation constants
const (
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0
)

// Radius validation constants
const (
	MinRadiusMeters = 1
	MaxRadiusMeters = 5000
)

// Service-level errors
var (
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrAnalysisNotFound   = errors.New("analysis not found")
	ErrInvalidRadius      = errors.New("radius must be between 1 and 5000 meters")
)

// HistoryService reads back recorded analyses. It is never used by the
// pipeline itself, so a stored analysis is never served as a fresh report.
type HistoryService interface {
	// GetAnalysis returns the analysis with the given ID.
	// Returns ErrAnalysisNotFound if no such analysis was recorded.
	GetAnalysis(ctx context.Context, id uuid.UUID) (*models.ParcelAnalysis, error)

	// GetAnalysisAtPoint returns the latest analysis whose parcel boundary contains the point.
	// Returns ErrInvalidCoordinates if coordinates are out of valid range.
	// Returns ErrAnalysisNotFound if no analysed parcel covers the point.
	GetAnalysisAtPoint(ctx context.Context, lat, lng float64) (*models.ParcelAnalysis, error)

	// GetNearbyAnalyses returns analyses located within the radius of the point, closest first.
	// Returns ErrInvalidCoordinates or ErrInvalidRadius for out-of-range input.
	// Returns empty slice if nothing is found (not an error).
	GetNearbyAnalyses(ctx context.Context, lat, lng float64, radiusMeters int) ([]models.ParcelAnalysisWithDistance, error)
}

type historyService struct {
	repo repository.AnalysisRepository
	log  *logger.Logger
}

// NewHistoryService creates a new instance of HistoryService.
func NewHistoryService(repo repository.AnalysisRepository, log *logger.Logger) HistoryService {
	return &historyService{
		repo: repo,
		log:  log.WithComponent("history"),
	}
}

func (s *historyService) GetAnalysis(ctx context.Context, id uuid.UUID) (*models.ParcelAnalysis, error) {
	analysis, err := s.repo.FindByID(ctx, id)
	if err != nil {
		s.log.Error("Failed to query analysis", err, map[string]interface{}{
			"analysis_id": id.String(),
		})
		return nil, fmt.Errorf("failed to query analysis: %w", err)
	}

	// Repository returns nil, nil when nothing is found
	if analysis == nil {
		return nil, ErrAnalysisNotFound
	}

	return analysis, nil
}

func (s *historyService) GetAnalysisAtPoint(ctx context.Context, lat, lng float64) (*models.ParcelAnalysis, error) {
	if err := s.validateCoordinates(lat, lng); err != nil {
		return nil, err
	}

	s.log.Info("Querying analysis at point", map[string]interface{}{
		"lat": lat,
		"lng": lng,
	})

	analysis, err := s.repo.FindByPoint(ctx, lat, lng)
	if err != nil {
		s.log.Error("Failed to query analysis at point", err, map[string]interface{}{
			"lat": lat,
			"lng": lng,
		})
		return nil, fmt.Errorf("failed to query analysis: %w", err)
	}

	if analysis == nil {
		s.log.Debug("No analysis found at point", map[string]interface{}{
			"lat": lat,
			"lng": lng,
		})
		return nil, ErrAnalysisNotFound
	}

	return analysis, nil
}

func (s *historyService) GetNearbyAnalyses(ctx context.Context, lat, lng float64, radiusMeters int) ([]models.ParcelAnalysisWithDistance, error) {
	if err := s.validateCoordinates(lat, lng); err != nil {
		return nil, err
	}

	if radiusMeters < MinRadiusMeters || radiusMeters > MaxRadiusMeters {
		s.log.Warn("Invalid radius provided", map[string]interface{}{
			"lat":    lat,
			"lng":    lng,
			"radius": radiusMeters,
		})
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRadius, radiusMeters)
	}

	analyses, err := s.repo.FindNearby(ctx, lat, lng, radiusMeters)
	if err != nil {
		s.log.Error("Failed to query nearby analyses", err, map[string]interface{}{
			"lat":    lat,
			"lng":    lng,
			"radius": radiusMeters,
		})
		return nil, fmt.Errorf("failed to query nearby analyses: %w", err)
	}

	s.log.Info("Nearby analyses found", map[string]interface{}{
		"lat":    lat,
		"lng":    lng,
		"radius": radiusMeters,
		"count":  len(analyses),
	})

	return analyses, nil
}

func (s *historyService) validateCoordinates(lat, lng float64) error {
	if lat < MinLatitude || lat > MaxLatitude {
		s.log.Warn("Invalid latitude provided", map[string]interface{}{
			"lat": lat,
			"lng": lng,
		})
		return fmt.Errorf("%w: latitude must be between %f and %f, got %f",
			ErrInvalidCoordinates, MinLatitude, MaxLatitude, lat)
	}

	if lng < MinLongitude || lng > MaxLongitude {
		s.log.Warn("Invalid longitude provided", map[string]interface{}{
			"lat": lat,
			"lng": lng,
		})
		return fmt.Errorf("%w: longitude must be between %f and %f, got %f",
			ErrInvalidCoordinates, MinLongitude, MaxLongitude, lng)
	}

	return nil
}
