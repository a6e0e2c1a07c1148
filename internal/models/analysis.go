package models

import (
	"time"

	"github.com/google/uuid"
)

// ParcelAnalysis is one completed pipeline run as kept in the analysis history.
// History is write-once and is never consulted when producing a new report.
type ParcelAnalysis struct {
	CreatedAt time.Time  `json:"created_at"`
	Facts     FactBundle `json:"facts"`
	Report    Report     `json:"report"`
	ID        uuid.UUID  `json:"id"`
}

// NewParcelAnalysis stamps a new history record for a finished run.
func NewParcelAnalysis(facts FactBundle, report Report) *ParcelAnalysis {
	return &ParcelAnalysis{
		ID:        uuid.New(),
		Facts:     facts,
		Report:    report,
		CreatedAt: time.Now().UTC(),
	}
}

// ParcelAnalysisWithDistance pairs a history record with its distance from a query point.
type ParcelAnalysisWithDistance struct {
	Analysis ParcelAnalysis
	Distance float64 // meters
}
