package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/parcelbrief/internal/geocoder"
	"github.com/stwalsh4118/parcelbrief/internal/models"
	"github.com/stwalsh4118/parcelbrief/internal/services"
	"github.com/xuri/excelize/v2"
)

type fakePipeline struct {
	address  string
	analysis *models.ParcelAnalysis
	err      error
}

func (f *fakePipeline) ResolveParcel(_ context.Context, address string) (*services.ResolvedParcel, error) {
	f.address = address
	if f.err != nil {
		return nil, f.err
	}
	return &services.ResolvedParcel{PNU: f.analysis.Facts.PNU, Location: f.analysis.Facts.Location}, nil
}

func (f *fakePipeline) Analyze(_ context.Context, address string) (*services.AnalysisResult, error) {
	f.address = address
	if f.err != nil {
		return nil, f.err
	}
	return &services.AnalysisResult{Analysis: f.analysis}, nil
}

func dosaRi() *models.ParcelAnalysis {
	return models.NewParcelAnalysis(models.FactBundle{
		Address: "도사리 163-1",
		PNU:     "4157025123101630001",
		Location: models.GeocodeResult{
			AddressName:       "경기 김포시 통진읍 도사리 163-1",
			LegalDistrictCode: "4157025123",
			Latitude:          37.6952,
			Longitude:         126.5554,
		},
		Land: models.LandFact{LandCategory: "답"},
		Sources: models.SourceTag{
			Land:     models.FactSourceLive,
			Building: models.FactSourceNoRecord,
			Feature:  models.FactSourceUnavailable,
		},
	}, models.Report{Provider: "gemini", Text: "## 종합 의견\n보통"})
}

func run(t *testing.T, pipeline *fakePipeline, args ...string) (string, error) {
	t.Helper()

	cleaned := false
	build := func(context.Context) (services.AnalysisService, func(), error) {
		return pipeline, func() { cleaned = true }, nil
	}

	root := newRootCmd(build)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)

	err := root.Execute()
	if err == nil {
		assert.True(t, cleaned, "pipeline cleanup should run")
	}
	return out.String(), err
}

func TestAnalyze_Text(t *testing.T) {
	pipeline := &fakePipeline{analysis: dosaRi()}

	out, err := run(t, pipeline, "analyze", "도사리", "163-1")
	require.NoError(t, err)

	assert.Equal(t, "도사리 163-1", pipeline.address)
	assert.Contains(t, out, "도사리 163-1 (PNU 4157025123101630001)")
	assert.Contains(t, out, "토지대장=live 건축물대장=no_record 토지특성=unavailable")
	assert.Contains(t, out, "## 종합 의견")
}

func TestAnalyze_JSON(t *testing.T) {
	pipeline := &fakePipeline{analysis: dosaRi()}

	out, err := run(t, pipeline, "analyze", "--format", "json", "도사리 163-1")
	require.NoError(t, err)

	var decoded models.ParcelAnalysis
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, models.ParcelNumber("4157025123101630001"), decoded.Facts.PNU)
	assert.Equal(t, "답", decoded.Facts.Land.LandCategory)
	assert.Equal(t, pipeline.analysis.ID, decoded.ID)
}

func TestAnalyze_HTML(t *testing.T) {
	out, err := run(t, &fakePipeline{analysis: dosaRi()}, "analyze", "-f", "html", "도사리 163-1")
	require.NoError(t, err)

	assert.Contains(t, out, "<h2>종합 의견</h2>")
}

func TestAnalyze_WritesWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facts.xlsx")

	_, err := run(t, &fakePipeline{analysis: dosaRi()}, "analyze", "--xlsx", path, "도사리 163-1")
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	value, err := f.GetCellValue("Facts", "C3")
	require.NoError(t, err)
	assert.Equal(t, "4157025123101630001", value)
}

func TestAnalyze_Errors(t *testing.T) {
	t.Run("unknown format", func(t *testing.T) {
		_, err := run(t, &fakePipeline{analysis: dosaRi()}, "analyze", "--format", "pdf", "도사리")
		assert.ErrorContains(t, err, `unknown format "pdf"`)
	})

	t.Run("missing address", func(t *testing.T) {
		_, err := run(t, &fakePipeline{analysis: dosaRi()}, "analyze")
		assert.Error(t, err)
	})

	t.Run("address not found", func(t *testing.T) {
		_, err := run(t, &fakePipeline{err: geocoder.ErrAddressNotFound}, "analyze", "없는 주소")
		assert.EqualError(t, err, `no parcel found for "없는 주소"`)
	})

	t.Run("geocoder key missing", func(t *testing.T) {
		_, err := run(t, &fakePipeline{err: geocoder.ErrCredentialMissing}, "analyze", "도사리")
		assert.EqualError(t, err, "KAKAO_REST_API_KEY is not set")
	})

	t.Run("factory failure", func(t *testing.T) {
		root := newRootCmd(func(context.Context) (services.AnalysisService, func(), error) {
			return nil, nil, errors.New("configuration validation failed")
		})
		root.SetOut(&bytes.Buffer{})
		root.SetErr(&bytes.Buffer{})
		root.SetArgs([]string{"analyze", "도사리"})

		assert.ErrorContains(t, root.Execute(), "configuration validation failed")
	})
}

func TestResolve(t *testing.T) {
	out, err := run(t, &fakePipeline{analysis: dosaRi()}, "resolve", "도사리 163-1")
	require.NoError(t, err)

	assert.Contains(t, out, "PNU       4157025123101630001")
	assert.Contains(t, out, "좌표      37.695200, 126.555400")
	assert.Contains(t, out, "산지      false")
}

func TestWriteWorkbook_BadPath(t *testing.T) {
	err := writeWorkbook(filepath.Join(t.TempDir(), "missing", "facts.xlsx"), dosaRi())
	assert.ErrorContains(t, err, "failed to create")
}
