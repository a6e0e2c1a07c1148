package services

import (
	"context"
	"fmt"
	"time"

	"github.com/stwalsh4118/parcelbrief/internal/geocoder"
	"github.com/stwalsh4118/parcelbrief/internal/logger"
	"github.com/stwalsh4118/parcelbrief/internal/models"
	"github.com/stwalsh4118/parcelbrief/internal/registry"
	"github.com/stwalsh4118/parcelbrief/internal/report"
	"github.com/stwalsh4118/parcelbrief/internal/repository"
	"golang.org/x/sync/errgroup"
)

// ResolvedParcel is a geocoded address together with its parcel number.
type ResolvedParcel struct {
	Location models.GeocodeResult `json:"location"`
	PNU      models.ParcelNumber  `json:"pnu"`
}

// AnalysisResult is the outcome of one pipeline run.
// Stored is true only when the run was written to the analysis history.
type AnalysisResult struct {
	Analysis *models.ParcelAnalysis
	Stored   bool
}

// AnalysisService runs the address-to-report pipeline.
type AnalysisService interface {
	// ResolveParcel geocodes the address and derives its PNU.
	// Returns an error wrapping geocoder.ErrAddressNotFound, geocoder.ErrServiceUnavailable
	// or geocoder.ErrCredentialMissing when the address cannot be resolved.
	ResolveParcel(ctx context.Context, address string) (*ResolvedParcel, error)

	// Analyze runs the full pipeline for one address. Only geocoding failures
	// are returned as errors; registry and report failures degrade into
	// placeholders and fallback text.
	Analyze(ctx context.Context, address string) (*AnalysisResult, error)
}

// Sources groups the registry adapters queried for every parcel.
type Sources struct {
	Land     registry.LandLedger
	Building registry.BuildingLedger
	Feature  registry.FeatureService
}

type analysisService struct {
	geocoder  geocoder.Geocoder
	sources   Sources
	requester report.Requester
	history   repository.AnalysisRepository
	log       *logger.Logger
}

// NewAnalysisService creates a new instance of AnalysisService.
// history may be nil, in which case nothing is recorded.
func NewAnalysisService(
	geo geocoder.Geocoder,
	sources Sources,
	requester report.Requester,
	history repository.AnalysisRepository,
	log *logger.Logger,
) AnalysisService {
	return &analysisService{
		geocoder:  geo,
		sources:   sources,
		requester: requester,
		history:   history,
		log:       log.WithComponent("pipeline"),
	}
}

func (s *analysisService) ResolveParcel(ctx context.Context, address string) (*ResolvedParcel, error) {
	log := s.log.FromContext(ctx)

	location, err := s.geocoder.Geocode(ctx, address)
	if err != nil {
		log.Warn("Failed to geocode address", map[string]interface{}{
			"address": address,
			"error":   err.Error(),
		})
		return nil, fmt.Errorf("failed to geocode %q: %w", address, err)
	}

	pnu, err := location.ParcelNumber()
	if err != nil {
		log.Warn("Geocode result does not form a parcel number", map[string]interface{}{
			"address":  address,
			"b_code":   location.LegalDistrictCode,
			"main_lot": location.MainLotNumber,
			"sub_lot":  location.SubLotNumber,
			"error":    err.Error(),
		})
		return nil, fmt.Errorf("%w: %v", geocoder.ErrAddressNotFound, err)
	}

	log.Info("Address resolved", map[string]interface{}{
		"address": address,
		"pnu":     pnu.String(),
	})

	return &ResolvedParcel{Location: *location, PNU: pnu}, nil
}

func (s *analysisService) Analyze(ctx context.Context, address string) (*AnalysisResult, error) {
	start := time.Now()
	log := s.log.FromContext(ctx)

	resolved, err := s.ResolveParcel(ctx, address)
	if err != nil {
		return nil, err
	}

	land, building, feature := s.fetchFacts(ctx, resolved.PNU)
	bundle := AggregateFacts(address, resolved.PNU, resolved.Location, land, building, feature)

	rep := s.requester.RequestReport(ctx, address, bundle)
	analysis := models.NewParcelAnalysis(bundle, rep)

	result := &AnalysisResult{Analysis: analysis}
	if s.history != nil {
		if err := s.history.Save(ctx, analysis); err != nil {
			log.Error("Failed to record analysis history", err, map[string]interface{}{
				"analysis_id": analysis.ID.String(),
				"pnu":         bundle.PNU.String(),
			})
		} else {
			result.Stored = true
		}
	}

	log.Info("Analysis completed", map[string]interface{}{
		"analysis_id":     analysis.ID.String(),
		"pnu":             bundle.PNU.String(),
		"land_source":     string(bundle.Sources.Land),
		"building_source": string(bundle.Sources.Building),
		"feature_source":  string(bundle.Sources.Feature),
		"report_fallback": rep.Fallback,
		"stored":          result.Stored,
		"duration_ms":     time.Since(start).Milliseconds(),
	})

	return result, nil
}

// fetchFacts queries the three registries concurrently. Fetches never fail;
// each outcome is carried in its Result.
func (s *analysisService) fetchFacts(ctx context.Context, pnu models.ParcelNumber) (
	registry.Result[models.LandFact],
	registry.Result[models.BuildingFact],
	registry.Result[models.ParcelFeatureFact],
) {
	var (
		g        errgroup.Group
		land     registry.Result[models.LandFact]
		building registry.Result[models.BuildingFact]
		feature  registry.Result[models.ParcelFeatureFact]
	)

	g.Go(func() error {
		land = s.sources.Land.Fetch(ctx, pnu)
		return nil
	})
	g.Go(func() error {
		building = s.sources.Building.Fetch(ctx, pnu)
		return nil
	})
	g.Go(func() error {
		feature = s.sources.Feature.Fetch(ctx, pnu)
		return nil
	})
	// Fetch outcomes travel in each Result; the goroutines never return an error.
	_ = g.Wait()

	return land, building, feature
}
