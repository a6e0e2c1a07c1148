package registry

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/stwalsh4118/parcelbrief/internal/config"
	"github.com/stwalsh4118/parcelbrief/internal/logger"
	"github.com/stwalsh4118/parcelbrief/internal/models"
)

// Building register plot codes (platGbCd)
const (
	plotCodeNormal   = "0"
	plotCodeMountain = "1"
)

const mainBuildingLabel = "주건축물"

// violationElement is the title-register element flagging an illegal structure.
const violationElement = "violBldYn"

// BuildingLedger fetches building-register title records for a parcel.
type BuildingLedger interface {
	Fetch(ctx context.Context, pnu models.ParcelNumber) Result[models.BuildingFact]
}

type buildingLedger struct {
	client *ledgerClient
}

// NewBuildingLedger creates a BuildingLedger for the data.go.kr BldRgstHubService.
func NewBuildingLedger(cfg config.RegistryConfig, log *logger.Logger) BuildingLedger {
	return &buildingLedger{
		client: &ledgerClient{
			source:  "building_ledger",
			baseURL: cfg.BuildingURL,
			rawKey:  cfg.BuildingKey,
			http:    &http.Client{Timeout: cfg.Timeout},
			log:     log.WithComponent("building_ledger"),
		},
	}
}

// Fetch queries by sigungu/bjdong code and lot numbers derived from the PNU.
func (b *buildingLedger) Fetch(ctx context.Context, pnu models.ParcelNumber) Result[models.BuildingFact] {
	parts, err := pnu.Parts()
	if err != nil {
		return failure[models.BuildingFact](err)
	}

	plot := plotCodeNormal
	if parts.IsMountainLot {
		plot = plotCodeMountain
	}

	params := url.Values{}
	params.Set("sigunguCd", pnu.SigunguCode())
	params.Set("bjdongCd", pnu.BjdongCode())
	params.Set("platGbCd", plot)
	params.Set("bun", parts.MainLotNumber)
	params.Set("ji", parts.SubLotNumber)
	params.Set("numOfRows", "10")
	params.Set("pageNo", "1")

	records, err := b.client.fetchRecords(ctx, params)
	if err != nil {
		return resultFor[models.BuildingFact](err)
	}

	return success(buildingFactFrom(mainBuilding(records)))
}

// mainBuilding picks the main structure among the title records, falling back
// to the one with the largest floor area.
func mainBuilding(records []record) record {
	best := records[0]
	bestArea, _ := parseFloat(best["totArea"])
	for _, rec := range records {
		if rec["mainAtchGbCdNm"] == mainBuildingLabel {
			return rec
		}
		if area, ok := parseFloat(rec["totArea"]); ok && area > bestArea {
			best, bestArea = rec, area
		}
	}
	return best
}

func buildingFactFrom(rec record) *models.BuildingFact {
	fact := &models.BuildingFact{
		MainUseCategory:      rec["mainPurpsCdNm"],
		ApprovalDate:         formatApprovalDate(rec["useAprDay"]),
		StructureType:        rec["strctCdNm"],
		IsViolatingStructure: isYes(rec[violationElement]),
	}
	if area, ok := parseFloat(rec["totArea"]); ok {
		fact.TotalFloorAreaSquareMeters = &area
	}
	return fact
}

// formatApprovalDate turns YYYYMMDD into YYYY-MM-DD and leaves anything else as is.
func formatApprovalDate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) != 8 {
		return s
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return s
		}
	}
	return s[:4] + "-" + s[4:6] + "-" + s[6:]
}

func isYes(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "Y", "1", "TRUE":
		return true
	}
	return false
}
