package simdb

import (
	"math"
	"strconv"
	"strings"

	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/measurement"
)

// Namer turns a fault simulation directory name into a hypothesis label.
// Directory names are dot separated: "<Marker>.<kind>.<value parts>.<index>".
type Namer func(dir string) string

// NamerFor returns the label namer of a built-in family; unknown families
// use the directory name unchanged.
func NamerFor(family measurement.Family) Namer {
	switch family.Slug {
	case "css":
		return NameCSSMode
	case "rw_encoder":
		return NameRWEncoderMode
	case "rw_friction":
		return NameRWFrictionMode
	case "panel_deployment":
		return NamePanelDeploymentMode
	case "panel_angle":
		return NamePanelAngleMode
	case "panel_efficiency":
		return NamePanelEfficiencyMode
	case "battery_capacity":
		return NameBatteryCapacityMode
	case "power_sink":
		return NamePowerSinkMode
	default:
		return func(dir string) string { return dir }
	}
}

// NameCSSMode names "CssSignalFault.CSSFAULT_OFF.3" as "CSS[3] Is Off" and
// "CssSignalFault.CSSFAULT_STUCK_CURRENT.0.5.2" as "CSS[2] Stuck near 0.5".
func NameCSSMode(dir string) string {
	parts := strings.Split(dir, ".")
	if len(parts) < 3 {
		return dir
	}
	sensor := parts[len(parts)-1]
	kind := parts[1]

	var fault string
	switch {
	case strings.Contains(kind, "MAX"):
		fault = "Stuck at Max Value"
	case strings.Contains(kind, "RAND"):
		fault = "Providing Random Values"
	case strings.Contains(kind, "OFF"):
		fault = "Is Off"
	case strings.Contains(kind, "STUCK"):
		if len(parts) < 5 {
			return dir
		}
		return "CSS[" + sensor + "] Stuck near " + parts[2] + "." + parts[3]
	default:
		return dir
	}
	return "CSS[" + sensor + "] " + fault
}

// NameRWEncoderMode names "RwEncoderFault.SIGNAL_OFF.2" as "RW[2] Is Off".
func NameRWEncoderMode(dir string) string {
	parts := strings.Split(dir, ".")
	if len(parts) < 3 {
		return dir
	}
	wheel := parts[len(parts)-1]
	switch {
	case strings.Contains(parts[1], "OFF"):
		return "RW[" + wheel + "] Is Off"
	case strings.Contains(parts[1], "STUCK"):
		return "RW[" + wheel + "] Is Stuck"
	default:
		return dir
	}
}

// NameRWFrictionMode names "RwFrictionFault.10x.1" as "RW[1] Friction increased by 10x".
func NameRWFrictionMode(dir string) string {
	parts := strings.Split(dir, ".")
	if len(parts) < 3 {
		return dir
	}
	return "RW[" + parts[len(parts)-1] + "] Friction increased by " + parts[1]
}

// NamePanelDeploymentMode names "PanelDeploymentFault.0.5" as
// "Panel Deployment Stuck near 50.0%".
func NamePanelDeploymentMode(dir string) string {
	pct, ok := trailingPercent(dir)
	if !ok {
		return dir
	}
	return "Panel Deployment Stuck near " + pct + "%"
}

// NamePanelAngleMode names "PanelAngleFault.stuck.0.3" as
// "Panel Angle Stuck near 0.3 [rad]". A "negative" kind negates the value and a
// single trailing part is taken as an integral value.
func NamePanelAngleMode(dir string) string {
	parts := strings.Split(dir, ".")
	var value string
	switch {
	case len(parts) >= 4 && strings.Contains(parts[1], "negative"):
		value = "-" + parts[len(parts)-2] + "." + parts[len(parts)-1]
	case len(parts) == 3:
		value = parts[2]
	case len(parts) >= 4:
		value = parts[len(parts)-2] + "." + parts[len(parts)-1]
	default:
		return dir
	}
	return "Panel Angle Stuck near " + value + " [rad]"
}

// NamePanelEfficiencyMode names "PanelEfficiencyFault.0.7" as
// "Panel Efficiency Decreased to 70%". Directories without a value are the
// 70% case of the reference database.
func NamePanelEfficiencyMode(dir string) string {
	pct, ok := trailingPercent(dir)
	if !ok {
		return "Panel Efficiency Decreased to 70%"
	}
	return "Panel Efficiency Decreased to " + strings.TrimSuffix(pct, ".0") + "%"
}

// NameBatteryCapacityMode labels every battery capacity simulation alike.
func NameBatteryCapacityMode(string) string {
	return "Battery Capacity Decreased"
}

// NamePowerSinkMode names "PowerSinkFault.1.5" as
// "Power Sink is approximately 150.0% of nominal".
func NamePowerSinkMode(dir string) string {
	pct, ok := trailingPercent(dir)
	if !ok {
		return dir
	}
	return "Power Sink is approximately " + pct + "% of nominal"
}

// trailingPercent reads the last two dot separated parts as a fraction and
// formats it as a percentage rounded to one decimal.
func trailingPercent(dir string) (string, bool) {
	parts := strings.Split(dir, ".")
	if len(parts) < 3 {
		return "", false
	}
	v, err := strconv.ParseFloat(parts[len(parts)-2]+"."+parts[len(parts)-1], 64)
	if err != nil {
		return "", false
	}
	return strconv.FormatFloat(math.Round(v*1000)/10, 'f', 1, 64), true
}
