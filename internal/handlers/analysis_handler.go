package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	apierrors "github.com/stwalsh4118/parcelbrief/internal/errors"
	"github.com/stwalsh4118/parcelbrief/internal/export"
	"github.com/stwalsh4118/parcelbrief/internal/geocoder"
	"github.com/stwalsh4118/parcelbrief/internal/middleware"
	"github.com/stwalsh4118/parcelbrief/internal/models"
	"github.com/stwalsh4118/parcelbrief/internal/report"
	"github.com/stwalsh4118/parcelbrief/internal/services"
)

// Response formats accepted by the analysis endpoint.
const (
	FormatJSON = "json"
	FormatHTML = "html"
	FormatText = "text"
)

const (
	defaultRadiusMeters = 1000
	xlsxContentType     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// AnalysisHandler handles analysis and parcel resolution HTTP requests.
type AnalysisHandler struct {
	analysis services.AnalysisService
	history  services.HistoryService
}

// NewAnalysisHandler creates a new AnalysisHandler instance.
// history is nil when analysis history is disabled.
func NewAnalysisHandler(analysis services.AnalysisService, history services.HistoryService) *AnalysisHandler {
	return &AnalysisHandler{
		analysis: analysis,
		history:  history,
	}
}

// AnalyzeRequest represents the body of the analysis endpoint.
type AnalyzeRequest struct {
	Address string `json:"address" binding:"required"`
	Format  string `json:"format" binding:"omitempty,oneof=text json html"`
}

// ResolveRequest represents the query parameters for the resolve endpoint.
type ResolveRequest struct {
	Address string `form:"address" binding:"required"`
}

// AtPointRequest represents the query parameters for the at-point endpoint.
type AtPointRequest struct {
	Lat float64 `form:"lat" binding:"required,min=-90,max=90"`
	Lng float64 `form:"lng" binding:"required,min=-180,max=180"`
}

// NearbyRequest represents the query parameters for the nearby endpoint.
type NearbyRequest struct {
	Lat    float64 `form:"lat" binding:"required,min=-90,max=90"`
	Lng    float64 `form:"lng" binding:"required,min=-180,max=180"`
	Radius int     `form:"radius" binding:"omitempty,min=1,max=5000"`
}

// AnalysisResponse is the full result of one analysis.
type AnalysisResponse struct {
	CreatedAt time.Time                `json:"created_at"`
	Report    ReportData               `json:"report"`
	Location  models.GeocodeResult     `json:"location"`
	Land      models.LandFact          `json:"land"`
	Building  models.BuildingFact      `json:"building"`
	Feature   models.ParcelFeatureFact `json:"feature"`
	Sources   models.SourceTag         `json:"sources"`
	ID        string                   `json:"id"`
	Address   string                   `json:"address"`
	PNU       string                   `json:"pnu"`
	Stored    bool                     `json:"stored"`
}

// ReportData is the generated report. HTML is only set when requested.
type ReportData struct {
	Provider string `json:"provider"`
	Markdown string `json:"markdown"`
	HTML     string `json:"html,omitempty"`
	Fallback bool   `json:"fallback"`
}

// NearbyResponse represents the response for the nearby endpoint.
type NearbyResponse struct {
	Analyses []AnalysisSummary `json:"analyses"`
	Count    int               `json:"count"`
}

// AnalysisSummary is a recorded analysis with its distance from the query point.
type AnalysisSummary struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
	Address   string    `json:"address"`
	PNU       string    `json:"pnu"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Distance  float64   `json:"distance_meters"`
}

// Analyze handles POST /api/v1/analyses.
// It runs the full pipeline for the address in the request body.
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	log := middleware.GetLogger(c)

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}
	if req.Format == "" {
		req.Format = FormatJSON
	}

	if log != nil {
		log.Info("Processing analysis request", map[string]interface{}{
			"address": req.Address,
			"format":  req.Format,
		})
	}

	result, err := h.analysis.Analyze(c.Request.Context(), req.Address)
	if err != nil {
		writeGeocodeError(c, req.Address, err)
		return
	}

	if req.Format == FormatText {
		c.String(http.StatusOK, result.Analysis.Report.Text)
		return
	}

	response := mapAnalysisToDTO(result.Analysis, result.Stored)
	if req.Format == FormatHTML {
		html, err := report.RenderHTML(result.Analysis.Report.Text)
		if err != nil {
			apierrors.InternalServerError(c, "Failed to render report", err)
			return
		}
		response.Report.HTML = html
	}

	c.JSON(http.StatusOK, response)
}

// Resolve handles GET /api/v1/parcels/resolve.
// It geocodes the address and returns its parcel number without fetching facts.
func (h *AnalysisHandler) Resolve(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid query parameters", nil)
		return
	}

	resolved, err := h.analysis.ResolveParcel(c.Request.Context(), req.Address)
	if err != nil {
		writeGeocodeError(c, req.Address, err)
		return
	}

	c.JSON(http.StatusOK, resolved)
}

// Get handles GET /api/v1/analyses/:id.
func (h *AnalysisHandler) Get(c *gin.Context) {
	analysis, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, mapAnalysisToDTO(analysis, true))
}

// FactSheet handles GET /api/v1/analyses/:id/facts.xlsx.
func (h *AnalysisHandler) FactSheet(c *gin.Context) {
	analysis, ok := h.lookup(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteFactSheet(&buf, analysis); err != nil {
		apierrors.InternalServerError(c, "Failed to build fact sheet", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(analysis)))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// AtPoint handles GET /api/v1/analyses/at-point.
// It returns the latest recorded analysis whose parcel contains the point.
func (h *AnalysisHandler) AtPoint(c *gin.Context) {
	if h.history == nil {
		historyDisabled(c)
		return
	}

	var req AtPointRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid query parameters", nil)
		return
	}

	analysis, err := h.history.GetAnalysisAtPoint(c.Request.Context(), req.Lat, req.Lng)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCoordinates) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		if errors.Is(err, services.ErrAnalysisNotFound) {
			apierrors.NotFound(c, "No analysed parcel at this location")
			return
		}
		apierrors.InternalServerError(c, "Failed to query analysis history", err)
		return
	}

	c.JSON(http.StatusOK, mapAnalysisToDTO(analysis, true))
}

// Nearby handles GET /api/v1/analyses/nearby.
// It lists recorded analyses within the radius of the point, closest first.
func (h *AnalysisHandler) Nearby(c *gin.Context) {
	if h.history == nil {
		historyDisabled(c)
		return
	}

	var req NearbyRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid query parameters", nil)
		return
	}

	if req.Radius == 0 {
		req.Radius = defaultRadiusMeters
	}

	analyses, err := h.history.GetNearbyAnalyses(c.Request.Context(), req.Lat, req.Lng, req.Radius)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCoordinates) || errors.Is(err, services.ErrInvalidRadius) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		apierrors.InternalServerError(c, "Failed to query nearby analyses", err)
		return
	}

	summaries := make([]AnalysisSummary, 0, len(analyses))
	for _, a := range analyses {
		summaries = append(summaries, mapSummaryToDTO(&a))
	}

	c.JSON(http.StatusOK, NearbyResponse{
		Analyses: summaries,
		Count:    len(summaries),
	})
}

// lookup resolves the :id parameter to a recorded analysis, writing the
// error response itself when it cannot.
func (h *AnalysisHandler) lookup(c *gin.Context) (*models.ParcelAnalysis, bool) {
	if h.history == nil {
		historyDisabled(c)
		return nil, false
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apierrors.BadRequest(c, "Invalid analysis ID", map[string]interface{}{
			"id": c.Param("id"),
		})
		return nil, false
	}

	analysis, err := h.history.GetAnalysis(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrAnalysisNotFound) {
			apierrors.NotFound(c, "Analysis not found")
			return nil, false
		}
		apierrors.InternalServerError(c, "Failed to query analysis history", err)
		return nil, false
	}

	return analysis, true
}

func historyDisabled(c *gin.Context) {
	apierrors.NotFound(c, "analysis history is disabled")
}

// writeGeocodeError maps pipeline errors to responses. Only geocoding can fail
// a pipeline run.
func writeGeocodeError(c *gin.Context, address string, err error) {
	switch {
	case errors.Is(err, geocoder.ErrAddressNotFound):
		apierrors.AddressNotFound(c, address)
	case errors.Is(err, geocoder.ErrCredentialMissing):
		apierrors.ServiceUnavailable(c, "Geocoding is not configured", err)
	case errors.Is(err, geocoder.ErrServiceUnavailable):
		apierrors.ServiceUnavailable(c, "Geocoding service is unavailable", err)
	default:
		apierrors.InternalServerError(c, "Failed to analyse address", err)
	}
}

// mapAnalysisToDTO flattens an analysis into the API response shape.
func mapAnalysisToDTO(a *models.ParcelAnalysis, stored bool) AnalysisResponse {
	f := a.Facts
	return AnalysisResponse{
		ID:        a.ID.String(),
		Stored:    stored,
		Address:   f.Address,
		PNU:       f.PNU.String(),
		Location:  f.Location,
		Land:      f.Land,
		Building:  f.Building,
		Feature:   f.Feature,
		Sources:   f.Sources,
		CreatedAt: a.CreatedAt,
		Report: ReportData{
			Provider: a.Report.Provider,
			Markdown: a.Report.Text,
			Fallback: a.Report.Fallback,
		},
	}
}

func mapSummaryToDTO(a *models.ParcelAnalysisWithDistance) AnalysisSummary {
	f := a.Analysis.Facts
	return AnalysisSummary{
		ID:        a.Analysis.ID.String(),
		Address:   f.Address,
		PNU:       f.PNU.String(),
		Latitude:  f.Location.Latitude,
		Longitude: f.Location.Longitude,
		Distance:  a.Distance,
		CreatedAt: a.Analysis.CreatedAt,
	}
}
