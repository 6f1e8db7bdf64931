package tasks

// Priority is the display classification derived from a task's score.
type Priority string

const (
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
	PriorityUnscored Priority = "unscored"
)

// Score thresholds, inclusive lower bounds.
const (
	HighThreshold   = 7.0
	MediumThreshold = 4.0
)

// Classify maps a score to its priority. A nil score is unscored.
func Classify(score *float64) Priority {
	switch {
	case score == nil:
		return PriorityUnscored
	case *score >= HighThreshold:
		return PriorityHigh
	case *score >= MediumThreshold:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// DisplayName returns a human-readable name for the priority.
func (p Priority) DisplayName() string {
	switch p {
	case PriorityHigh:
		return "High"
	case PriorityMedium:
		return "Medium"
	case PriorityLow:
		return "Low"
	case PriorityUnscored:
		return "Unscored"
	default:
		return string(p)
	}
}

func (p Priority) String() string {
	return string(p)
}
