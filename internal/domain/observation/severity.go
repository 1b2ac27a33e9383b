package observation

import "fmt"

// ThreadSeverity is the four-level scale produced by scene analysis.
type ThreadSeverity string

const (
	ThreadSeverityInfo   ThreadSeverity = "info"
	ThreadSeverityLow    ThreadSeverity = "low"
	ThreadSeverityMedium ThreadSeverity = "medium"
	ThreadSeverityHigh   ThreadSeverity = "high"
)

// ActivitySeverity is the coarser three-level scale used by the activity feed.
type ActivitySeverity string

const (
	ActivitySeverityInfo     ActivitySeverity = "info"
	ActivitySeverityWarning  ActivitySeverity = "warning"
	ActivitySeverityCritical ActivitySeverity = "critical"
)

func ParseThreadSeverity(value string) (ThreadSeverity, error) {
	switch ThreadSeverity(value) {
	case ThreadSeverityInfo, ThreadSeverityLow, ThreadSeverityMedium, ThreadSeverityHigh:
		return ThreadSeverity(value), nil
	default:
		return "", fmt.Errorf("unknown thread severity %q", value)
	}
}

func (s ThreadSeverity) Valid() bool {
	_, err := ParseThreadSeverity(string(s))
	return err == nil
}

func ParseActivitySeverity(value string) (ActivitySeverity, error) {
	switch ActivitySeverity(value) {
	case ActivitySeverityInfo, ActivitySeverityWarning, ActivitySeverityCritical:
		return ActivitySeverity(value), nil
	default:
		return "", fmt.Errorf("unknown activity severity %q", value)
	}
}

// MapSeverity projects a thread severity onto the activity scale.
//
// high is always critical and medium always warning. A low thread is
// promoted to warning only when draw exceeds 0.7, so roughly 30% of low
// threads surface as warnings. draw must be in [0, 1).
func MapSeverity(severity ThreadSeverity, draw float64) ActivitySeverity {
	switch severity {
	case ThreadSeverityHigh:
		return ActivitySeverityCritical
	case ThreadSeverityMedium:
		return ActivitySeverityWarning
	case ThreadSeverityLow:
		if draw > 0.7 {
			return ActivitySeverityWarning
		}
		return ActivitySeverityInfo
	default:
		return ActivitySeverityInfo
	}
}
