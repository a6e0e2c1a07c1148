package services

import (
	"errors"

	"github.com/stwalsh4118/parcelbrief/internal/models"
	"github.com/stwalsh4118/parcelbrief/internal/registry"
)

// AggregateFacts merges the three registry results into a FactBundle.
//
// A successful result contributes its fact unchanged. Any other result yields a
// placeholder fact whose text fields name why the value is missing, and the
// matching source tag records the same reason. The bundle always has every fact.
func AggregateFacts(
	address string,
	pnu models.ParcelNumber,
	location models.GeocodeResult,
	land registry.Result[models.LandFact],
	building registry.Result[models.BuildingFact],
	feature registry.Result[models.ParcelFeatureFact],
) models.FactBundle {
	bundle := models.FactBundle{
		Address:  address,
		PNU:      pnu,
		Location: location,
		Sources: models.SourceTag{
			Land:     sourceFor(land.Status, land.Err),
			Building: sourceFor(building.Status, building.Err),
			Feature:  sourceFor(feature.Status, feature.Err),
		},
	}

	if land.Status == registry.StatusSuccess && land.Fact != nil {
		bundle.Land = *land.Fact
	} else {
		bundle.Land = placeholderLand(bundle.Sources.Land)
	}

	if building.Status == registry.StatusSuccess && building.Fact != nil {
		bundle.Building = *building.Fact
	} else {
		bundle.Building = placeholderBuilding(bundle.Sources.Building)
	}

	if feature.Status == registry.StatusSuccess && feature.Fact != nil {
		bundle.Feature = *feature.Fact
	} else {
		bundle.Feature = placeholderFeature(bundle.Sources.Feature)
	}

	return bundle
}

// sourceFor maps a fetch outcome to its source tag.
func sourceFor(status registry.Status, err error) models.FactSource {
	switch {
	case status == registry.StatusSuccess:
		return models.FactSourceLive
	case errors.Is(err, registry.ErrCredentialMissing):
		return models.FactSourceCredentialMissing
	case status == registry.StatusEmpty, errors.Is(err, registry.ErrNoRecord):
		return models.FactSourceNoRecord
	default:
		return models.FactSourceUnavailable
	}
}

// Numeric fields stay nil in placeholders; only text fields carry the marker.

func placeholderLand(src models.FactSource) models.LandFact {
	text := src.Placeholder()
	return models.LandFact{
		LandCategory:  text,
		OwnershipType: text,
	}
}

func placeholderBuilding(src models.FactSource) models.BuildingFact {
	text := src.Placeholder()
	return models.BuildingFact{
		MainUseCategory: text,
		ApprovalDate:    text,
		StructureType:   text,
	}
}

func placeholderFeature(src models.FactSource) models.ParcelFeatureFact {
	text := src.Placeholder()
	return models.ParcelFeatureFact{
		RoadSideType: text,
		ShapeType:    text,
		TerrainType:  text,
	}
}
