package report

import (
	"fmt"
	"strings"

	"github.com/stwalsh4118/parcelbrief/internal/models"
)

const systemPrompt = "당신은 한국 토지 투자 분석 전문가입니다. 제공된 공공 데이터 팩트만 근거로 삼고, " +
	"'추론 필요', '등록 정보 없음', '키 미설정'으로 표시된 항목은 사실처럼 단정하지 말고 추정임을 밝히세요."

// BuildPrompt renders every field of the bundle, placeholders included, into
// the report request.
func BuildPrompt(address string, bundle models.FactBundle) string {
	var p strings.Builder

	p.WriteString("다음 필지에 대한 토지 투자 분석 보고서를 마크다운으로 작성하세요.\n")
	p.WriteString("구성: 1) 필지 개요 2) 토지 이용 및 가치 평가 3) 건축물 현황 4) 리스크 요인 5) 종합 의견\n\n")

	fmt.Fprintf(&p, "주소: %s\n", address)
	fmt.Fprintf(&p, "필지고유번호(PNU): %s\n", bundle.PNU)
	loc := bundle.Location
	fmt.Fprintf(&p, "행정구역: %s\n", strings.TrimSpace(strings.Join([]string{loc.Region1, loc.Region2, loc.Region3}, " ")))
	fmt.Fprintf(&p, "좌표: 위도 %.6f, 경도 %.6f\n", loc.Latitude, loc.Longitude)
	fmt.Fprintf(&p, "산지 여부: %s\n\n", models.YesNo(loc.IsMountainLot))

	land := bundle.Land
	landSrc := bundle.Sources.Land
	fmt.Fprintf(&p, "[토지대장] (출처: %s)\n", sourceLabel(landSrc))
	fmt.Fprintf(&p, "- 지목: %s\n", landSrc.Text(land.LandCategory))
	fmt.Fprintf(&p, "- 면적: %s\n", landSrc.Float(land.AreaSquareMeters, "㎡"))
	fmt.Fprintf(&p, "- 개별공시지가: %s\n", landSrc.Int(land.OfficialLandPriceKRW, "원/㎡"))
	fmt.Fprintf(&p, "- 소유 구분: %s\n\n", landSrc.Text(land.OwnershipType))

	bld := bundle.Building
	bldSrc := bundle.Sources.Building
	fmt.Fprintf(&p, "[건축물대장] (출처: %s)\n", sourceLabel(bldSrc))
	fmt.Fprintf(&p, "- 주용도: %s\n", bldSrc.Text(bld.MainUseCategory))
	fmt.Fprintf(&p, "- 연면적: %s\n", bldSrc.Float(bld.TotalFloorAreaSquareMeters, "㎡"))
	fmt.Fprintf(&p, "- 사용승인일: %s\n", bldSrc.Text(bld.ApprovalDate))
	fmt.Fprintf(&p, "- 구조: %s\n", bldSrc.Text(bld.StructureType))
	fmt.Fprintf(&p, "- 위반건축물: %s\n\n", bldSrc.Flag(bld.IsViolatingStructure))

	feat := bundle.Feature
	featSrc := bundle.Sources.Feature
	fmt.Fprintf(&p, "[토지특성] (출처: %s)\n", sourceLabel(featSrc))
	fmt.Fprintf(&p, "- 도로접면: %s\n", featSrc.Text(feat.RoadSideType))
	fmt.Fprintf(&p, "- 형상: %s\n", featSrc.Text(feat.ShapeType))
	fmt.Fprintf(&p, "- 지세: %s\n", featSrc.Text(feat.TerrainType))

	return p.String()
}

func sourceLabel(s models.FactSource) string {
	switch s {
	case models.FactSourceLive:
		return "공공데이터 실시간 조회"
	case models.FactSourceNoRecord:
		return "등록 정보 없음"
	case models.FactSourceCredentialMissing:
		return "인증키 미설정"
	default:
		return "조회 실패, 추정 필요"
	}
}
