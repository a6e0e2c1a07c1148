package registry

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/stwalsh4118/parcelbrief/internal/config"
	"github.com/stwalsh4118/parcelbrief/internal/logger"
	"github.com/stwalsh4118/parcelbrief/internal/models"
)

// LandLedger fetches land-ledger attributes (category, area, official price).
type LandLedger interface {
	Fetch(ctx context.Context, pnu models.ParcelNumber) Result[models.LandFact]
}

type landLedger struct {
	client *ledgerClient
}

// NewLandLedger creates a LandLedger for the data.go.kr LandInfoService.
func NewLandLedger(cfg config.RegistryConfig, log *logger.Logger) LandLedger {
	return &landLedger{
		client: &ledgerClient{
			source:  "land_ledger",
			baseURL: cfg.LandURL,
			rawKey:  cfg.LandKey,
			http:    &http.Client{Timeout: cfg.Timeout},
			log:     log.WithComponent("land_ledger"),
		},
	}
}

func (l *landLedger) Fetch(ctx context.Context, pnu models.ParcelNumber) Result[models.LandFact] {
	params := url.Values{}
	params.Set("pnu", pnu.String())
	params.Set("numOfRows", "1")
	params.Set("pageNo", "1")

	records, err := l.client.fetchRecords(ctx, params)
	if err != nil {
		return resultFor[models.LandFact](err)
	}

	return success(landFactFrom(records[0]))
}

func landFactFrom(rec record) *models.LandFact {
	fact := &models.LandFact{
		LandCategory:  rec["lndcgrCodeNm"],
		OwnershipType: rec["posesnSeCodeNm"],
	}
	if area, ok := parseFloat(rec["lndpclAr"]); ok {
		fact.AreaSquareMeters = &area
	}
	if price, ok := parseInt(rec["pblntfPclnd"]); ok {
		fact.OfficialLandPriceKRW = &price
	}
	return fact
}

// parseFloat accepts registry numerics such as "1,234.5".
func parseFloat(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseInt(s string) (int64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ok := parseFloat(s)
		if !ok {
			return 0, false
		}
		return int64(f), true
	}
	return v, true
}
