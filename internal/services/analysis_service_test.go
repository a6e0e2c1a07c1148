package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/parcelbrief/internal/geocoder"
	"github.com/stwalsh4118/parcelbrief/internal/logger"
	"github.com/stwalsh4118/parcelbrief/internal/models"
	"github.com/stwalsh4118/parcelbrief/internal/registry"
	"go.uber.org/goleak"
)

const dosaRiAddress = "경기도 김포시 통진읍 도사리 163-1"

type pipelineMocks struct {
	geo      *MockGeocoder
	land     *MockLandLedger
	building *MockBuildingLedger
	feature  *MockFeatureService
	report   *MockRequester
	history  *MockAnalysisRepository
}

func newPipelineMocks() *pipelineMocks {
	return &pipelineMocks{
		geo:      new(MockGeocoder),
		land:     new(MockLandLedger),
		building: new(MockBuildingLedger),
		feature:  new(MockFeatureService),
		report:   new(MockRequester),
		history:  new(MockAnalysisRepository),
	}
}

func (m *pipelineMocks) service(withHistory bool) AnalysisService {
	sources := Sources{Land: m.land, Building: m.building, Feature: m.feature}
	if withHistory {
		return NewAnalysisService(m.geo, sources, m.report, m.history, logger.New("test"))
	}
	return NewAnalysisService(m.geo, sources, m.report, nil, logger.New("test"))
}

// The genai client imports opencensus, whose view worker starts at init.
var ignoreLibraryGoroutines = []goleak.Option{
	goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
}

func TestAnalyze_EndToEnd(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreLibraryGoroutines...)

	m := newPipelineMocks()
	loc := dosaRiLocation()
	m.geo.On("Geocode", mock.Anything, dosaRiAddress).Return(&loc, nil)
	m.land.On("Fetch", mock.Anything, dosaRiPNU).Return(liveLand())
	m.building.On("Fetch", mock.Anything, dosaRiPNU).Return(liveBuilding())
	m.feature.On("Fetch", mock.Anything, dosaRiPNU).Return(liveFeature())
	m.report.On("RequestReport", mock.Anything, dosaRiAddress, mock.MatchedBy(func(b models.FactBundle) bool {
		return b.PNU == dosaRiPNU && b.Sources.AllLive()
	})).Return(models.Report{Provider: "gemini", Text: "## 종합 의견"})
	m.history.On("Save", mock.Anything, mock.AnythingOfType("*models.ParcelAnalysis")).Return(nil)

	result, err := m.service(true).Analyze(context.Background(), dosaRiAddress)
	require.NoError(t, err)

	assert.True(t, result.Stored)
	assert.Equal(t, dosaRiPNU, result.Analysis.Facts.PNU)
	assert.Equal(t, "답", result.Analysis.Facts.Land.LandCategory)
	assert.Equal(t, "단독주택", result.Analysis.Facts.Building.MainUseCategory)
	assert.Equal(t, "평지", result.Analysis.Facts.Feature.TerrainType)
	assert.Equal(t, "## 종합 의견", result.Analysis.Report.Text)
	assert.NotEmpty(t, result.Analysis.ID)

	m.geo.AssertExpectations(t)
	m.land.AssertExpectations(t)
	m.building.AssertExpectations(t)
	m.feature.AssertExpectations(t)
	m.report.AssertExpectations(t)
	m.history.AssertExpectations(t)
}

func TestAnalyze_DegradedSources(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreLibraryGoroutines...)

	m := newPipelineMocks()
	loc := dosaRiLocation()
	m.geo.On("Geocode", mock.Anything, dosaRiAddress).Return(&loc, nil)
	m.land.On("Fetch", mock.Anything, dosaRiPNU).
		Return(registry.Result[models.LandFact]{Status: registry.StatusEmpty, Err: registry.ErrNoRecord})
	m.building.On("Fetch", mock.Anything, dosaRiPNU).
		Return(registry.Result[models.BuildingFact]{
			Status: registry.StatusError,
			Err:    fmt.Errorf("%w: building_ledger", registry.ErrSourceUnavailable),
		})
	m.feature.On("Fetch", mock.Anything, dosaRiPNU).Return(liveFeature())

	var sent models.FactBundle
	m.report.On("RequestReport", mock.Anything, dosaRiAddress, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(2).(models.FactBundle) }).
		Return(models.Report{Provider: "gemini", Text: "fallback", Fallback: true})

	result, err := m.service(false).Analyze(context.Background(), dosaRiAddress)
	require.NoError(t, err)

	assert.False(t, result.Stored)
	assert.True(t, result.Analysis.Report.Fallback)

	assert.Equal(t, models.PlaceholderNoRecord, sent.Land.LandCategory)
	assert.Equal(t, models.PlaceholderInferenceNeeded, sent.Building.MainUseCategory)
	assert.Equal(t, "세로한면(가)", sent.Feature.RoadSideType)
	assert.Equal(t, models.SourceTag{
		Land:     models.FactSourceNoRecord,
		Building: models.FactSourceUnavailable,
		Feature:  models.FactSourceLive,
	}, sent.Sources)
	assert.Equal(t, sent, result.Analysis.Facts)
}

func TestAnalyze_GeocodeFailureStopsPipeline(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"not found", geocoder.ErrAddressNotFound},
		{"unavailable", geocoder.ErrServiceUnavailable},
		{"credential missing", geocoder.ErrCredentialMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newPipelineMocks()
			m.geo.On("Geocode", mock.Anything, "없는 주소").Return(nil, tt.err)

			result, err := m.service(true).Analyze(context.Background(), "없는 주소")

			assert.Nil(t, result)
			assert.ErrorIs(t, err, tt.err)
			m.land.AssertNotCalled(t, "Fetch")
			m.building.AssertNotCalled(t, "Fetch")
			m.feature.AssertNotCalled(t, "Fetch")
			m.report.AssertNotCalled(t, "RequestReport")
			m.history.AssertNotCalled(t, "Save")
		})
	}
}

func TestAnalyze_HistoryFailureIsNotFatal(t *testing.T) {
	m := newPipelineMocks()
	loc := dosaRiLocation()
	m.geo.On("Geocode", mock.Anything, dosaRiAddress).Return(&loc, nil)
	m.land.On("Fetch", mock.Anything, dosaRiPNU).Return(liveLand())
	m.building.On("Fetch", mock.Anything, dosaRiPNU).Return(liveBuilding())
	m.feature.On("Fetch", mock.Anything, dosaRiPNU).Return(liveFeature())
	m.report.On("RequestReport", mock.Anything, dosaRiAddress, mock.Anything).
		Return(models.Report{Provider: "gemini", Text: "ok"})
	m.history.On("Save", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	result, err := m.service(true).Analyze(context.Background(), dosaRiAddress)
	require.NoError(t, err)

	assert.False(t, result.Stored)
	assert.Equal(t, "ok", result.Analysis.Report.Text)
}

func TestAnalyze_FetchesRunConcurrently(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreLibraryGoroutines...)

	m := newPipelineMocks()
	loc := dosaRiLocation()
	m.geo.On("Geocode", mock.Anything, dosaRiAddress).Return(&loc, nil)

	var arrived sync.WaitGroup
	arrived.Add(3)
	allArrived := make(chan struct{})
	go func() {
		arrived.Wait()
		close(allArrived)
	}()

	var mu sync.Mutex
	timedOut := false
	barrier := func(mock.Arguments) {
		arrived.Done()
		select {
		case <-allArrived:
		case <-time.After(2 * time.Second):
			mu.Lock()
			timedOut = true
			mu.Unlock()
		}
	}

	m.land.On("Fetch", mock.Anything, dosaRiPNU).Run(barrier).Return(liveLand())
	m.building.On("Fetch", mock.Anything, dosaRiPNU).Run(barrier).Return(liveBuilding())
	m.feature.On("Fetch", mock.Anything, dosaRiPNU).Run(barrier).Return(liveFeature())
	m.report.On("RequestReport", mock.Anything, dosaRiAddress, mock.Anything).
		Return(models.Report{Provider: "gemini", Text: "ok"})

	_, err := m.service(false).Analyze(context.Background(), dosaRiAddress)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.False(t, timedOut, "registry fetches did not overlap")
}

func TestResolveParcel(t *testing.T) {
	t.Run("builds the parcel number", func(t *testing.T) {
		m := newPipelineMocks()
		loc := dosaRiLocation()
		m.geo.On("Geocode", mock.Anything, dosaRiAddress).Return(&loc, nil)

		resolved, err := m.service(false).ResolveParcel(context.Background(), dosaRiAddress)
		require.NoError(t, err)

		assert.Equal(t, dosaRiPNU, resolved.PNU)
		assert.Equal(t, 37.6952, resolved.Location.Latitude)
	})

	t.Run("mountain lot", func(t *testing.T) {
		m := newPipelineMocks()
		loc := models.GeocodeResult{
			LegalDistrictCode: "4276025021",
			MainLotNumber:     "1",
			IsMountainLot:     true,
		}
		m.geo.On("Geocode", mock.Anything, "산1").Return(&loc, nil)

		resolved, err := m.service(false).ResolveParcel(context.Background(), "산1")
		require.NoError(t, err)

		assert.Equal(t, models.ParcelNumber("4276025021200010000"), resolved.PNU)
	})

	t.Run("unusable lot number", func(t *testing.T) {
		m := newPipelineMocks()
		loc := models.GeocodeResult{LegalDistrictCode: "4157025123", MainLotNumber: "12345"}
		m.geo.On("Geocode", mock.Anything, "bad").Return(&loc, nil)

		resolved, err := m.service(false).ResolveParcel(context.Background(), "bad")

		assert.Nil(t, resolved)
		assert.ErrorIs(t, err, geocoder.ErrAddressNotFound)
	})
}
