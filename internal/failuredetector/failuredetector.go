// Package failuredetector aggregates roll/pitch/altitude/ESC/motor/
// imbalance/external fault flags, per spec §4.4. Roll/pitch, altitude
// loss and external failure each have their own types.Hysteresis
// debouncer; the ESC, motor and imbalanced-prop flags are evaluated
// per tick without a debounce. The debouncers mirror the
// per-condition debounce pattern the teacher's link/battery handling
// hints at (tiiuae-communication_link missionengine/internal/flypx4)
// generalized from "is this mission result fresh" into "has this
// fault held long enough to act on".
package failuredetector

import (
	"time"

	"github.com/tiiuae/flightcore/internal/types"
)

// Config holds per-fault debounce intervals and thresholds.
type Config struct {
	TiltThresholdDeg      float64
	TiltDebounce          time.Duration
	AltLossRateThreshold  float64
	AltLossDebounce       time.Duration
	ESCSpoolUpWindow      time.Duration
	MotorFailureAction    types.FailsafeAction
}

// Inputs are the raw per-tick sensor/actuator readings the detector
// evaluates.
type Inputs struct {
	TiltAngleDeg      float64
	AltitudeLossRate  float64
	ExternalFailure   bool
	ESCArmed          bool
	TimeSinceArm      time.Duration
	MotorFailureMask  uint32
	ImbalancedPropMetric float64
	ImbalancedPropThreshold float64
}

// Flags is the debounced output, published as failure_detector_status
// (§6).
type Flags struct {
	RollPitchExceeded bool
	AltitudeLossExceeded bool
	ExternalFailure   bool
	ESCFailure        bool
	MotorFailure      bool
	MotorFailureChanged bool // one-shot edge, §4.4
	ImbalancedProp    bool // single-shot advisory, §4.4
}

// Detector owns the debouncers for each fault category.
type Detector struct {
	cfg Config

	tilt     *types.Hysteresis
	altLoss  *types.Hysteresis
	external *types.Hysteresis
	esc      *types.Hysteresis

	lastMotorMask       uint32
	motorFailureLatched bool
	imbalancedPropFired bool
}

// New creates a Detector with the given configuration.
func New(cfg Config) *Detector {
	return &Detector{
		cfg:      cfg,
		tilt:     types.NewHysteresis(cfg.TiltDebounce),
		altLoss:  types.NewHysteresis(cfg.AltLossDebounce),
		external: types.NewHysteresis(200 * time.Millisecond),
		esc:      types.NewHysteresis(0),
	}
}

// Evaluate runs one detector tick and returns the debounced flags.
func (d *Detector) Evaluate(in Inputs, now time.Time) Flags {
	var f Flags

	f.RollPitchExceeded = d.tilt.SetStateAndUpdate(in.TiltAngleDeg > d.cfg.TiltThresholdDeg, now)
	f.AltitudeLossExceeded = d.altLoss.SetStateAndUpdate(in.AltitudeLossRate > d.cfg.AltLossRateThreshold, now)
	f.ExternalFailure = d.external.SetStateAndUpdate(in.ExternalFailure, now)

	escShouldHaveResponded := in.TimeSinceArm <= d.cfg.ESCSpoolUpWindow
	f.ESCFailure = escShouldHaveResponded && !in.ESCArmed

	f.MotorFailure = in.MotorFailureMask != 0
	if in.MotorFailureMask != d.lastMotorMask {
		f.MotorFailureChanged = true
		d.lastMotorMask = in.MotorFailureMask
		d.motorFailureLatched = f.MotorFailure
	}

	if in.ImbalancedPropMetric > in.ImbalancedPropThreshold && !d.imbalancedPropFired {
		f.ImbalancedProp = true
		d.imbalancedPropFired = true
	}

	return f
}

// MotorFailureAction returns the configured action for the motor
// failure edge (§4.4): AUTO_LOITER / AUTO_LAND / AUTO_RTL / TERMINATE.
func (d *Detector) MotorFailureAction() types.FailsafeAction {
	return d.cfg.MotorFailureAction
}
