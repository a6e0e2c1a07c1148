package geocoder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/stwalsh4118/parcelbrief/internal/config"
	"github.com/stwalsh4118/parcelbrief/internal/logger"
	"github.com/stwalsh4118/parcelbrief/internal/models"
)

const (
	searchPath      = "/v2/local/search/address.json"
	maxResponseSize = 1 << 20
)

var (
	// ErrAddressNotFound is returned when the address resolves to no lot address.
	ErrAddressNotFound = errors.New("address not found")
	// ErrServiceUnavailable is returned when the geocoding service cannot be reached
	// or answers with something other than an address search result.
	ErrServiceUnavailable = errors.New("geocoding service unavailable")
	// ErrCredentialMissing is returned when no Kakao REST API key is configured.
	ErrCredentialMissing = errors.New("geocoding credential missing")
)

// Geocoder resolves a free-form Korean address to its first lot-address match.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*models.GeocodeResult, error)
}

// kakaoResponse is the subset of the Kakao Local address search response we read.
type kakaoResponse struct {
	Documents []struct {
		Address *kakaoAddress `json:"address"`
	} `json:"documents"`
	Meta struct {
		TotalCount int `json:"total_count"`
	} `json:"meta"`
}

// kakaoAddress is the lot-number (jibun) address block of a search document.
type kakaoAddress struct {
	AddressName   string `json:"address_name"`
	BCode         string `json:"b_code"`
	MainAddressNo string `json:"main_address_no"`
	SubAddressNo  string `json:"sub_address_no"`
	MountainYN    string `json:"mountain_yn"`
	Region1       string `json:"region_1depth_name"`
	Region2       string `json:"region_2depth_name"`
	Region3       string `json:"region_3depth_name"`
	X             string `json:"x"` // longitude
	Y             string `json:"y"` // latitude
}

type kakaoGeocoder struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     *logger.Logger
}

// NewKakaoGeocoder creates a Geocoder backed by the Kakao Local API.
func NewKakaoGeocoder(cfg config.GeocoderConfig, log *logger.Logger) Geocoder {
	return &kakaoGeocoder{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
		log:     log.WithComponent("geocoder"),
	}
}

// Geocode returns the first document's lot address. Ambiguous addresses are
// not disambiguated.
func (g *kakaoGeocoder) Geocode(ctx context.Context, address string) (*models.GeocodeResult, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("%w: empty address", ErrAddressNotFound)
	}
	if g.apiKey == "" {
		return nil, ErrCredentialMissing
	}

	params := url.Values{}
	params.Set("query", address)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+searchPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrServiceUnavailable, err)
	}
	req.Header.Set("Authorization", "KakaoAK "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			g.log.Warn("Geocoding timed out", map[string]interface{}{"address": address})
			return nil, fmt.Errorf("%w: request timed out", ErrAddressNotFound)
		}
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrServiceUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		g.log.Warn("Geocoding returned non-success status", map[string]interface{}{
			"address": address,
			"status":  resp.StatusCode,
		})
		return nil, fmt.Errorf("%w: status %d", ErrAddressNotFound, resp.StatusCode)
	}

	var result kakaoResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", ErrServiceUnavailable, err)
	}

	if len(result.Documents) == 0 {
		return nil, fmt.Errorf("%w: no candidates for %q", ErrAddressNotFound, address)
	}

	doc := result.Documents[0].Address
	if doc == nil || doc.BCode == "" || doc.MainAddressNo == "" {
		return nil, fmt.Errorf("%w: first candidate has no lot address", ErrAddressNotFound)
	}

	lng, errX := strconv.ParseFloat(doc.X, 64)
	lat, errY := strconv.ParseFloat(doc.Y, 64)
	if errX != nil || errY != nil {
		return nil, fmt.Errorf("%w: invalid coordinates %q,%q", ErrAddressNotFound, doc.X, doc.Y)
	}

	geocoded := &models.GeocodeResult{
		AddressName:       doc.AddressName,
		LegalDistrictCode: doc.BCode,
		MainLotNumber:     doc.MainAddressNo,
		SubLotNumber:      doc.SubAddressNo,
		Region1:           doc.Region1,
		Region2:           doc.Region2,
		Region3:           doc.Region3,
		Latitude:          lat,
		Longitude:         lng,
		IsMountainLot:     strings.EqualFold(doc.MountainYN, "Y"),
	}

	g.log.Debug("Address geocoded", map[string]interface{}{
		"address":    address,
		"candidates": len(result.Documents),
		"b_code":     geocoded.LegalDistrictCode,
	})

	return geocoded, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
