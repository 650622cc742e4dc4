package query

import (
	"fmt"

	"gatekeeper-hq/gatekeeper/pkg/evidence"
	"gatekeeper-hq/gatekeeper/pkg/policy/engine"
)

const (
	// DefaultLimit is applied when a query sets no limit.
	DefaultLimit = 100

	// MaxLimit is the largest accepted limit.
	MaxLimit = 10000
)

// ValidSortFields contains the fields that can be used for sorting.
var ValidSortFields = map[string]bool{
	"evaluated_at": true,
	"recorded_at":  true,
	"risk_score":   true,
}

// ValidSortOrders contains the valid sort orders.
var ValidSortOrders = map[string]bool{
	"asc":  true,
	"desc": true,
}

// ValidStatuses contains the overall statuses a record can have.
var ValidStatuses = map[string]bool{
	engine.StatusBlock:     true,
	engine.StatusWarn:      true,
	engine.StatusCompliant: true,
}

// Validate returns a *evidence.QueryError for the first invalid parameter.
func Validate(q *evidence.Query) error {
	if q.Limit < 0 {
		return evidence.NewQueryError(q, fmt.Errorf("limit must be >= 0, got %d", q.Limit))
	}
	if q.Limit > MaxLimit {
		return evidence.NewQueryError(q, fmt.Errorf("limit must be <= %d, got %d", MaxLimit, q.Limit))
	}
	if q.Offset < 0 {
		return evidence.NewQueryError(q, fmt.Errorf("offset must be >= 0, got %d", q.Offset))
	}

	if q.SortBy != "" && !ValidSortFields[q.SortBy] {
		return evidence.NewQueryError(q, fmt.Errorf("invalid sort field: %s", q.SortBy))
	}
	if q.SortOrder != "" && !ValidSortOrders[q.SortOrder] {
		return evidence.NewQueryError(q, fmt.Errorf("invalid sort order: %s (must be 'asc' or 'desc')", q.SortOrder))
	}

	if q.StartTime != nil && q.EndTime != nil && q.StartTime.After(*q.EndTime) {
		return evidence.NewQueryError(q, fmt.Errorf("start_time must be before end_time"))
	}

	if q.OverallStatus != "" && !ValidStatuses[q.OverallStatus] {
		return evidence.NewQueryError(q, fmt.Errorf("invalid status: %s (must be BLOCK, WARN or COMPLIANT)", q.OverallStatus))
	}

	if q.MinRiskScore != nil && (*q.MinRiskScore < 0 || *q.MinRiskScore > 100) {
		return evidence.NewQueryError(q, fmt.Errorf("min_risk_score must be between 0 and 100, got %d", *q.MinRiskScore))
	}

	return nil
}

// ApplyDefaults fills limit and sorting.
func ApplyDefaults(q *evidence.Query) {
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if q.SortBy == "" {
		q.SortBy = "evaluated_at"
	}
	if q.SortOrder == "" {
		q.SortOrder = "desc"
	}
}
