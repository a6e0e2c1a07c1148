package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/stwalsh4118/parcelbrief/internal/config"
	"github.com/stwalsh4118/parcelbrief/internal/logger"
	"github.com/stwalsh4118/parcelbrief/internal/models"
	"github.com/tidwall/gjson"
)

// V-World response.status values
const (
	vworldStatusOK       = "OK"
	vworldStatusNotFound = "NOT_FOUND"
)

// FeatureService fetches GIS parcel characteristics and the parcel boundary.
type FeatureService interface {
	Fetch(ctx context.Context, pnu models.ParcelNumber) Result[models.ParcelFeatureFact]
}

type featureService struct {
	baseURL string
	apiKey  string
	domain  string
	dataset string
	http    *http.Client
	log     *logger.Logger
}

// NewFeatureService creates a FeatureService for the V-World data API.
func NewFeatureService(cfg config.FeatureConfig, log *logger.Logger) FeatureService {
	return &featureService{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		domain:  cfg.Domain,
		dataset: cfg.Dataset,
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     log.WithComponent("feature_service"),
	}
}

// Fetch tries each credential variant like the ledgers do. A rejected attempt
// moves on to the next variant; a transport failure ends the loop.
func (f *featureService) Fetch(ctx context.Context, pnu models.ParcelNumber) Result[models.ParcelFeatureFact] {
	variants := CredentialVariants(f.apiKey)
	if len(variants) == 0 {
		return failure[models.ParcelFeatureFact](ErrCredentialMissing)
	}

	params := url.Values{}
	params.Set("service", "data")
	params.Set("version", "2.0")
	params.Set("request", "getfeature")
	params.Set("format", "json")
	params.Set("size", "1")
	params.Set("data", f.dataset)
	params.Set("attrfilter", "pnu:like:"+pnu.String())
	params.Set("geometry", "true")
	params.Set("attribute", "true")
	params.Set("crs", "EPSG:4326")
	if f.domain != "" {
		params.Set("domain", f.domain)
	}

	var lastRejection string
	for _, cred := range variants {
		status, body, err := httpGet(ctx, f.http, f.baseURL+"?"+params.Encode()+"&key="+cred.Encoded)
		if err != nil {
			f.log.Warn("Feature request failed", map[string]interface{}{
				"pnu":        pnu.String(),
				"credential": cred.Name,
				"error":      err.Error(),
			})
			return failure[models.ParcelFeatureFact](fmt.Errorf("%w: feature_service: %v", ErrSourceUnavailable, err))
		}

		resp, detail := featureResponse(status, body)
		if detail != "" {
			lastRejection = detail
			f.log.Debug("Feature service rejected credential variant", map[string]interface{}{
				"pnu":        pnu.String(),
				"credential": cred.Name,
				"detail":     detail,
			})
			continue
		}

		return f.featureResult(pnu, resp)
	}

	return f.rejected(pnu, lastRejection)
}

// featureResponse returns the V-World response object, or a rejection detail
// when the body is not a usable answer.
func featureResponse(status int, body []byte) (gjson.Result, string) {
	if status < 200 || status > 299 {
		return gjson.Result{}, fmt.Sprintf("status %d", status)
	}
	if sniffBody(body) != bodyJSON || !gjson.ValidBytes(body) {
		return gjson.Result{}, "body is not JSON"
	}

	resp := gjson.GetBytes(body, "response")
	switch code := resp.Get("status").String(); code {
	case vworldStatusOK, vworldStatusNotFound:
		return resp, ""
	default:
		if text := resp.Get("error.text").String(); text != "" {
			return gjson.Result{}, text
		}
		return gjson.Result{}, fmt.Sprintf("response status %q", code)
	}
}

func (f *featureService) featureResult(pnu models.ParcelNumber, resp gjson.Result) Result[models.ParcelFeatureFact] {
	if resp.Get("status").String() == vworldStatusNotFound {
		f.log.Info("Feature service has no record", map[string]interface{}{"pnu": pnu.String()})
		return empty[models.ParcelFeatureFact](ErrNoRecord)
	}

	feature := resp.Get("result.featureCollection.features.0")
	if !feature.Exists() {
		return empty[models.ParcelFeatureFact](ErrNoRecord)
	}

	props := feature.Get("properties")
	fact := &models.ParcelFeatureFact{
		RoadSideType: props.Get("road_side_nm").String(),
		ShapeType:    props.Get("lad_shpe_nm").String(),
		TerrainType:  props.Get("lad_hght_nm").String(),
	}

	if geom := feature.Get("geometry"); geom.IsObject() {
		boundary, err := models.ParseGeoJSONBoundary([]byte(geom.Raw))
		if err != nil {
			f.log.Warn("Ignoring unparseable parcel boundary", map[string]interface{}{
				"pnu":   pnu.String(),
				"error": err.Error(),
			})
		} else {
			fact.Boundary = boundary
		}
	}

	f.log.Debug("Feature fetched", map[string]interface{}{
		"pnu":          pnu.String(),
		"has_boundary": fact.Boundary != nil,
	})

	return success(fact)
}

func (f *featureService) rejected(pnu models.ParcelNumber, detail string) Result[models.ParcelFeatureFact] {
	f.log.Warn("Feature service rejected request", map[string]interface{}{
		"pnu":    pnu.String(),
		"detail": detail,
	})
	return failure[models.ParcelFeatureFact](fmt.Errorf("%w: feature_service: %s", ErrSourceRejected, detail))
}
