package measurement

import "fmt"

// DefaultNoiseScale is the diagonal measurement noise used unless a family overrides it.
const DefaultNoiseScale = 0.1

func indexed(format string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf(format, i+1)
	}
	return out
}

// Builtin returns the fault families of the spacecraft digital twin, in the
// order an all-families run processes them.
func Builtin() []Family {
	return []Family{
		{
			Slug:       "css",
			Name:       "CSS",
			Key:        "CSS_ID",
			DirMarker:  "CssSignalFault",
			Columns:    indexed("CSS Cos Values  %d [-]", 8),
			NoiseScale: DefaultNoiseScale,
		},
		{
			Slug:      "rw_encoder",
			Name:      "RW Encoder",
			Key:       "RW_ENCODER_ID",
			DirMarker: "RwEncoderFault",
			Columns:   indexed("RW Omega  %d [rad/s]", 4),
			// wheel speeds span hundreds of rad/s
			NoiseScale: 250,
		},
		{
			Slug:      "rw_friction",
			Name:      "RW Friction",
			Key:       "RW_FRICTION_ID",
			DirMarker: "RwFrictionFault",
			Columns:   indexed("RW Torque  %d [Nm]", 4),
			// friction changes move the torque by tiny amounts
			NoiseScale: 1e-20,
		},
		{
			Slug:       "panel_deployment",
			Name:       "Panel Deployment",
			Key:        "PANEL_DEPLOY_ID",
			DirMarker:  "PanelDeploymentFault",
			Columns:    []string{"Panel Angle [rad]", "Panel Angle Rate [rad/s]"},
			NoiseScale: DefaultNoiseScale,
		},
		{
			Slug:       "panel_angle",
			Name:       "Panel Angle",
			Key:        "PANEL_ANGLE_ID",
			DirMarker:  "PanelAngleFault",
			Columns:    []string{"Panel Angle [rad]"},
			NoiseScale: DefaultNoiseScale,
		},
		{
			Slug:       "panel_efficiency",
			Name:       "Panel Efficiency",
			Key:        "PANEL_EFF_ID",
			DirMarker:  "PanelEfficiencyFault",
			Columns:    []string{"Supply Power [W]"},
			NoiseScale: 1e-10,
		},
		{
			Slug:       "battery_capacity",
			Name:       "Battery Capacity",
			Key:        "BATTERY_CAP_ID",
			DirMarker:  "BatteryCapacity",
			Columns:    []string{"Stored Energy [Ws]"},
			NoiseScale: DefaultNoiseScale,
		},
		{
			Slug:       "power_sink",
			Name:       "Power Sink",
			Key:        "POWER_SINK_ID",
			DirMarker:  "PowerSinkFault",
			Columns:    []string{"Net Power [W]"},
			NoiseScale: DefaultNoiseScale,
		},
	}
}
