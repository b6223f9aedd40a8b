package domain

import "time"

// Epic is the definition record for a top-level unit of work.
type Epic struct {
	ID                      EpicID           `json:"id"`
	Title                   string           `json:"title"`
	Status                  EpicStatus       `json:"status"`
	PlanReviewStatus        ReviewGateStatus `json:"plan_review_status"`
	PlanReviewedAt          *time.Time       `json:"plan_reviewed_at"`
	CompletionReviewStatus  ReviewGateStatus `json:"completion_review_status"`
	CompletionReviewedAt    *time.Time       `json:"completion_reviewed_at"`
	BranchName              *string          `json:"branch_name"`
	DependsOnEpics          []EpicID         `json:"depends_on_epics"`
	SpecPath                string           `json:"spec_path"`
	DefaultImpl             *string          `json:"default_impl"`
	DefaultReview           *string          `json:"default_review"`
	DefaultSync             *string          `json:"default_sync"`
	CreatedAt               time.Time        `json:"created_at"`
	UpdatedAt               time.Time        `json:"updated_at"`
}

// DependsOnEpic reports whether the epic lists dep as a dependency.
func (e *Epic) DependsOnEpic(dep EpicID) bool {
	for _, d := range e.DependsOnEpics {
		if d == dep {
			return true
		}
	}
	return false
}
