package domain

import "time"

// Goal statuses.
const (
	GoalStatusActive    = "active"
	GoalStatusCompleted = "completed"
	GoalStatusPaused    = "paused"
)

// Goal is a savings target.
type Goal struct {
	ID                  string  `json:"goal_id"`
	Name                string  `json:"name"`
	Description         string  `json:"description,omitempty"`
	Category            string  `json:"category,omitempty"`
	Priority            string  `json:"priority,omitempty"`
	TargetAmount        float64 `json:"target_amount"`
	CurrentAmount       float64 `json:"current_amount"`
	MonthlyContribution float64 `json:"monthly_contribution"`
	Deadline            string  `json:"deadline,omitempty"`
	Status              string  `json:"status"`
}

// ProgressPercentage is current/target*100, or 0 when the target is not positive.
// It may exceed 100.
func (g Goal) ProgressPercentage() float64 {
	if g.TargetAmount <= 0 {
		return 0
	}
	return g.CurrentAmount / g.TargetAmount * 100
}

// Remaining is the amount still to be saved. It is negative once the goal is exceeded.
func (g Goal) Remaining() float64 {
	return g.TargetAmount - g.CurrentAmount
}

// DeadlineTime parses Deadline. ok is false when there is no usable deadline.
func (g Goal) DeadlineTime() (t time.Time, ok bool) {
	if g.Deadline == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, g.Deadline)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// IsActive reports whether the goal is still being funded.
func (g Goal) IsActive() bool {
	return g.Status == GoalStatusActive
}
