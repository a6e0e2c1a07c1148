// Package export writes analysis results to spreadsheet files.
package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/stwalsh4118/parcelbrief/internal/models"
	"github.com/xuri/excelize/v2"
)

// Sheet names in the generated workbook.
const (
	FactSheet   = "Facts"
	ReportSheet = "Report"
)

var factHeader = []interface{}{"구분", "항목", "값", "출처"}

// WriteFactSheet writes the facts of an analysis, one field per row, and the
// report text to an xlsx workbook.
func WriteFactSheet(w io.Writer, analysis *models.ParcelAnalysis) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", FactSheet); err != nil {
		return fmt.Errorf("failed to name fact sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	rows := append([][]interface{}{factHeader}, factRows(analysis.Facts)...)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(FactSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write fact row %d: %w", i+1, err)
		}
	}
	if err := f.SetCellStyle(FactSheet, "A1", "D1", bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}
	if err := f.SetColWidth(FactSheet, "B", "C", 28); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}

	if _, err := f.NewSheet(ReportSheet); err != nil {
		return fmt.Errorf("failed to create report sheet: %w", err)
	}
	reportRows := [][]interface{}{
		{"분석 ID", analysis.ID.String()},
		{"생성 시각", analysis.CreatedAt.Format("2006-01-02 15:04:05 MST")},
		{"모델", analysis.Report.Provider},
		{"대체 문구", models.YesNo(analysis.Report.Fallback)},
	}
	for _, line := range strings.Split(analysis.Report.Text, "\n") {
		reportRows = append(reportRows, []interface{}{"", line})
	}
	for i, row := range reportRows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(ReportSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write report row %d: %w", i+1, err)
		}
	}
	if err := f.SetColWidth(ReportSheet, "B", "B", 100); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func factRows(b models.FactBundle) [][]interface{} {
	loc := b.Location
	land, bld, feat := b.Land, b.Building, b.Feature
	ls, bs, fs := b.Sources.Land, b.Sources.Building, b.Sources.Feature

	return [][]interface{}{
		{"필지", "주소", b.Address, ""},
		{"필지", "PNU", b.PNU.String(), ""},
		{"필지", "지번 주소", loc.AddressName, ""},
		{"필지", "위도", loc.Latitude, ""},
		{"필지", "경도", loc.Longitude, ""},
		{"필지", "산지 여부", models.YesNo(loc.IsMountainLot), ""},
		{"토지대장", "지목", ls.Text(land.LandCategory), string(ls)},
		{"토지대장", "면적(㎡)", models.FactValue(land.AreaSquareMeters, ls), string(ls)},
		{"토지대장", "개별공시지가(원/㎡)", models.FactValue(land.OfficialLandPriceKRW, ls), string(ls)},
		{"토지대장", "소유 구분", ls.Text(land.OwnershipType), string(ls)},
		{"건축물대장", "주용도", bs.Text(bld.MainUseCategory), string(bs)},
		{"건축물대장", "연면적(㎡)", models.FactValue(bld.TotalFloorAreaSquareMeters, bs), string(bs)},
		{"건축물대장", "사용승인일", bs.Text(bld.ApprovalDate), string(bs)},
		{"건축물대장", "구조", bs.Text(bld.StructureType), string(bs)},
		{"건축물대장", "위반건축물", bs.Flag(bld.IsViolatingStructure), string(bs)},
		{"토지특성", "도로접면", fs.Text(feat.RoadSideType), string(fs)},
		{"토지특성", "형상", fs.Text(feat.ShapeType), string(fs)},
		{"토지특성", "지세", fs.Text(feat.TerrainType), string(fs)},
	}
}

// FileName suggests a download name for an analysis workbook.
func FileName(analysis *models.ParcelAnalysis) string {
	return "parcel-" + analysis.Facts.PNU.String() + "-" + strconv.FormatInt(analysis.CreatedAt.Unix(), 10) + ".xlsx"
}
