package observation

import (
	"fmt"
	"time"
)

// TimeOfCapture carries the clock facts the fallback generator and the
// analyzer prompt depend on. Keeping it a plain value makes both pure
// functions of their inputs.
type TimeOfCapture struct {
	Hour    int
	Minute  int
	Weekend bool
}

// TimeOfCaptureAt derives the capture context from a wall-clock instant.
func TimeOfCaptureAt(t time.Time) TimeOfCapture {
	weekday := t.Weekday()
	return TimeOfCapture{
		Hour:    t.Hour(),
		Minute:  t.Minute(),
		Weekend: weekday == time.Saturday || weekday == time.Sunday,
	}
}

func (t TimeOfCapture) MorningRush() bool { return t.Hour >= 7 && t.Hour <= 9 }
func (t TimeOfCapture) EveningRush() bool { return t.Hour >= 16 && t.Hour <= 18 }
func (t TimeOfCapture) RushHour() bool    { return t.MorningRush() || t.EveningRush() }
func (t TimeOfCapture) LateNight() bool   { return t.Hour >= 22 || t.Hour <= 5 }

// PartOfDay returns morning/afternoon/evening for the prompt's time context.
func (t TimeOfCapture) PartOfDay() string {
	switch {
	case t.Hour < 12:
		return "morning"
	case t.Hour < 18:
		return "afternoon"
	default:
		return "evening"
	}
}

// Context renders the natural-language time context used in prompts, for
// example "morning on weekday at 8:30".
func (t TimeOfCapture) Context() string {
	day := "weekday"
	if t.Weekend {
		day = "weekend"
	}
	return fmt.Sprintf("%s on %s at %d:%02d", t.PartOfDay(), day, t.Hour, t.Minute)
}

// Bucket is the 5-minute variation bucket appended to fallback titles so
// repeated cycles within the same bucket share a suffix and cycles in
// different buckets do not collide.
func (t TimeOfCapture) Bucket() string {
	return fmt.Sprintf("%d:%d", t.Hour, t.Minute/5)
}

// FallbackAnalysis produces a synthetic scene assessment without any network
// call. It is deterministic given (time, draw): the same tuple yields the
// same severity and the same template family.
//
// draw must be in [0, 1). Severity is picked from a candidate distribution
// weighted by time window: weekday rush hours bias toward medium/low, late
// night allows the occasional medium, everything else is mostly info.
func FallbackAnalysis(camera Camera, at TimeOfCapture, draw float64) Analysis {
	severity := fallbackSeverity(at, draw)

	needsAttention := severity == ThreadSeverityMedium || severity == ThreadSeverityHigh
	if severity == ThreadSeverityLow && draw > 0.7 {
		needsAttention = true
	}

	title, content := fallbackTemplate(camera, at, severity)

	return Analysis{
		Title:          fmt.Sprintf("%s (%s)", title, at.Bucket()),
		Content:        content,
		Severity:       severity,
		NeedsAttention: needsAttention,
		Fallback:       true,
	}
}

func fallbackSeverity(at TimeOfCapture, draw float64) ThreadSeverity {
	switch {
	case at.RushHour() && at.Weekend:
		if draw < 0.2 {
			return ThreadSeverityLow
		}
		return ThreadSeverityInfo
	case at.RushHour():
		if draw < 0.3 {
			return ThreadSeverityMedium
		}
		if draw < 0.6 {
			return ThreadSeverityLow
		}
		return ThreadSeverityInfo
	case at.LateNight():
		if draw < 0.1 {
			return ThreadSeverityMedium
		}
		if draw < 0.2 {
			return ThreadSeverityLow
		}
		return ThreadSeverityInfo
	default:
		if draw < 0.05 {
			return ThreadSeverityMedium
		}
		if draw < 0.2 {
			return ThreadSeverityLow
		}
		return ThreadSeverityInfo
	}
}

func fallbackTemplate(camera Camera, at TimeOfCapture, severity ThreadSeverity) (string, string) {
	name := camera.Name()
	location := camera.Location()

	switch severity {
	case ThreadSeverityMedium:
		switch {
		case at.MorningRush():
			return "Heavy Morning Rush Hour Traffic",
				fmt.Sprintf("Significantly congested traffic observed at %s in %s. Vehicle movement is slow with potential for delays. No accidents visible, but traffic density is high. Commuters should consider alternate routes.", name, location)
		case at.EveningRush():
			return "Congested Evening Commute",
				fmt.Sprintf("Heavy traffic conditions during evening rush hour at %s. Vehicles moving at reduced speeds with congestion building. No incidents detected but conditions may deteriorate. Monitor situation advised.", name)
		default:
			return "Unexpected Traffic Congestion",
				fmt.Sprintf("Unusual traffic congestion observed at %s in %s outside normal rush hours. Vehicles moving slowly. Possible construction or event impact. Situation requires monitoring.", name, location)
		}
	case ThreadSeverityLow:
		switch {
		case at.MorningRush():
			return "Moderate Morning Traffic",
				fmt.Sprintf("Morning commute shows moderate traffic at %s. Some slowdowns observed but vehicles maintaining steady movement. No incidents detected. Typical weekday morning conditions.", name)
		case at.EveningRush():
			return "Building Evening Traffic",
				fmt.Sprintf("Evening traffic building at %s in %s. Moderate vehicle density with occasional slowdowns. No incidents detected, but traffic volume increasing as expected for this time.", name, location)
		case at.LateNight():
			return "Light Night Traffic with Minor Concerns",
				fmt.Sprintf("Light traffic during night hours at %s. Few vehicles present. Visibility appears reduced - possible fog or light precipitation. Drivers should exercise caution.", name)
		default:
			return "Minor Traffic Slowdown",
				fmt.Sprintf("Slight traffic slowdown observed at %s in %s. Vehicles moving slightly below normal speeds. No incidents detected, but traffic flow not optimal. Situation being monitored.", name, location)
		}
	default:
		switch {
		case at.MorningRush():
			return "Normal Morning Traffic Flow",
				fmt.Sprintf("Morning traffic flowing normally at %s. Expected vehicle density for this time of day. No congestion or incidents detected. Good commuting conditions.", name)
		case at.EveningRush():
			return "Regular Evening Traffic",
				fmt.Sprintf("Evening traffic at %s in %s moving at expected pace. Normal vehicle count for this time. No incidents or significant congestion detected.", name, location)
		case at.LateNight():
			return "Clear Night Traffic Conditions",
				fmt.Sprintf("Minimal traffic during night hours at %s. Few vehicles on the road. No safety concerns detected. Normal night-time traffic pattern.", name)
		default:
			return "Normal Traffic Conditions",
				fmt.Sprintf("Traffic flowing normally at %s in %s. Vehicle density and speeds as expected for this time of day. No incidents or concerns detected.", name, location)
		}
	}
}
