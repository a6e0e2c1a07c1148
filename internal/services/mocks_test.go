package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stwalsh4118/parcelbrief/internal/models"
	"github.com/stwalsh4118/parcelbrief/internal/registry"
)

// MockGeocoder is a mock implementation of geocoder.Geocoder for testing
type MockGeocoder struct {
	mock.Mock
}

func (m *MockGeocoder) Geocode(ctx context.Context, address string) (*models.GeocodeResult, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GeocodeResult), args.Error(1)
}

type MockLandLedger struct {
	mock.Mock
}

func (m *MockLandLedger) Fetch(ctx context.Context, pnu models.ParcelNumber) registry.Result[models.LandFact] {
	args := m.Called(ctx, pnu)
	return args.Get(0).(registry.Result[models.LandFact])
}

type MockBuildingLedger struct {
	mock.Mock
}

func (m *MockBuildingLedger) Fetch(ctx context.Context, pnu models.ParcelNumber) registry.Result[models.BuildingFact] {
	args := m.Called(ctx, pnu)
	return args.Get(0).(registry.Result[models.BuildingFact])
}

type MockFeatureService struct {
	mock.Mock
}

func (m *MockFeatureService) Fetch(ctx context.Context, pnu models.ParcelNumber) registry.Result[models.ParcelFeatureFact] {
	args := m.Called(ctx, pnu)
	return args.Get(0).(registry.Result[models.ParcelFeatureFact])
}

// MockRequester is a mock implementation of report.Requester for testing
type MockRequester struct {
	mock.Mock
}

func (m *MockRequester) RequestReport(ctx context.Context, address string, bundle models.FactBundle) models.Report {
	args := m.Called(ctx, address, bundle)
	return args.Get(0).(models.Report)
}

// MockAnalysisRepository is a mock implementation of repository.AnalysisRepository for testing
type MockAnalysisRepository struct {
	mock.Mock
}

func (m *MockAnalysisRepository) Save(ctx context.Context, analysis *models.ParcelAnalysis) error {
	args := m.Called(ctx, analysis)
	return args.Error(0)
}

func (m *MockAnalysisRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.ParcelAnalysis, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ParcelAnalysis), args.Error(1)
}

func (m *MockAnalysisRepository) FindByPoint(ctx context.Context, lat, lng float64) (*models.ParcelAnalysis, error) {
	args := m.Called(ctx, lat, lng)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ParcelAnalysis), args.Error(1)
}

func (m *MockAnalysisRepository) FindNearby(ctx context.Context, lat, lng float64, radiusMeters int) ([]models.ParcelAnalysisWithDistance, error) {
	args := m.Called(ctx, lat, lng, radiusMeters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ParcelAnalysisWithDistance), args.Error(1)
}
