package attribution

import (
	"regexp"
	"strings"
)

// Expectation is what a correct identification of one injected fault looks like.
type Expectation struct {
	Key       string // result column, e.g. "CSS_ID"
	TrueFault string
	Match     Matcher
	// Settles marks faults whose effective onset is when the truth panel angle
	// stops moving rather than the logged injection time.
	Settles bool
}

var (
	sensorListPattern = regexp.MustCompile(`\[\s*(\d+)`)
	wheelPattern      = regexp.MustCompile(`RW(\d+)`)
)

// MapFaultEvent maps a fault log entry to the result column and label matcher
// it is scored against.
func MapFaultEvent(event FaultEvent) (Expectation, bool) {
	msg := event.Message
	switch event.Name {
	case "cssSignal":
		sensor := firstGroup(sensorListPattern, msg)
		idx := "[" + sensor + "]"
		switch {
		case strings.Contains(msg, "CSSFAULT_STUCK_MAX"):
			return Expectation{Key: "CSS_ID", TrueFault: "CSSFAULT_STUCK_MAX_sensor_" + sensor, Match: MatchAll("Stuck", "Max", idx)}, true
		case strings.Contains(msg, "CSSFAULT_STUCK_RAND"):
			return Expectation{Key: "CSS_ID", TrueFault: "CSSFAULT_STUCK_RAND_sensor_" + sensor, Match: MatchAll("Stuck", idx)}, true
		case strings.Contains(msg, "CSSFAULT_STUCK_CURRENT"):
			return Expectation{Key: "CSS_ID", TrueFault: "CSSFAULT_STUCK_CURRENT_sensor_" + sensor, Match: MatchAll("Stuck", idx)}, true
		case strings.Contains(msg, "CSSFAULT_OFF"):
			return Expectation{Key: "CSS_ID", TrueFault: "CSSFAULT_OFF_sensor_" + sensor, Match: MatchAll("Off", idx)}, true
		case strings.Contains(msg, "CSSFAULT_RAND"):
			return Expectation{Key: "CSS_ID", TrueFault: "CSSFAULT_RAND_sensor_" + sensor, Match: MatchAll("CSS", "Random", idx)}, true
		}
	case "RwEncoder":
		wheel := firstGroup(wheelPattern, msg)
		idx := "[" + wheel + "]"
		switch {
		case strings.Contains(msg, "SIGNAL_STUCK"):
			return Expectation{Key: "RW_ENCODER_ID", TrueFault: "SIGNAL_STUCK_wheel_" + wheel, Match: MatchAll("Stuck", idx)}, true
		case strings.Contains(msg, "SIGNAL_OFF"):
			return Expectation{Key: "RW_ENCODER_ID", TrueFault: "SIGNAL_OFF_wheel_" + wheel, Match: MatchAll("Off", idx)}, true
		}
	case "RwFriction":
		for _, factor := range []string{"10x", "5x"} {
			if strings.Contains(msg, factor) {
				return Expectation{Key: "RW_FRICTION_ID", TrueFault: "FRICTION_" + factor, Match: MatchAll("Friction", factor)}, true
			}
		}
	case "deployment":
		return Expectation{Key: "PANEL_DEPLOY_ID", TrueFault: "PanelDeploymentFault", Match: MatchAll("Panel", "Deployment"), Settles: true}, true
	case "panelAng":
		return Expectation{Key: "PANEL_ANGLE_ID", TrueFault: "PanelAngleFault", Match: MatchAll("Panel", "Stuck")}, true
	case "panelEfficiency":
		return Expectation{Key: "PANEL_EFF_ID", TrueFault: "PanelEfficiencyFault", Match: MatchAll("Panel", "Efficiency")}, true
	case "batteryCapacity":
		return Expectation{Key: "BATTERY_CAP_ID", TrueFault: "BatteryCapacityFault", Match: MatchAll("Battery", "Decreased")}, true
	case "powerSink":
		return Expectation{Key: "POWER_SINK_ID", TrueFault: "PowerSinkFault", Match: MatchAll("Power Sink")}, true
	}
	return Expectation{}, false
}

func firstGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
