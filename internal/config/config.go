// Package config loads the YAML parameter snapshot that stands in for
// the external persistent parameter store named in spec §1. The YAML
// handling — gopkg.in/yaml.v3, unmarshal into a plain map plus a
// typed struct — is grounded on the teacher's device-config handling
// (tiiuae-communication_link communicationlink/commands/commands.go,
// the "Got config" MQTT subscription handler that does
// yaml.Unmarshal(msg.Payload(), &yamlConfig)).
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Params is the parameter snapshot consumed by the failsafe resolver,
// monitors, and state machines. Field names track the PX4 parameter
// names the spec references (COM_DL_LOSS_T etc.) so operators
// migrating from the original configuration recognize them.
type Params struct {
	ComDLLossT        float64 `yaml:"com_dl_loss_t"`         // seconds, GCS data-link loss threshold
	ComRCLossT        float64 `yaml:"com_rc_loss_t"`         // seconds, RC loss threshold
	ComDisarmLand     float64 `yaml:"com_disarm_land"`       // seconds, auto-disarm-on-land delay
	ComKillDisarmT    float64 `yaml:"com_kill_disarm_t"`     // seconds; not read by the Loop: the kill-switch disarm delay is fixed at 5s in monitors.NewAutoDisarm
	ComOBLAct         string  `yaml:"com_obl_act"`           // offboard-loss action
	ComOBLRCAct       string  `yaml:"com_obl_rc_act"`        // offboard-loss-with-RC action
	ComLowBatAct      string  `yaml:"com_low_bat_act"`
	ComCriticalBatAct string  `yaml:"com_critical_bat_act"`
	ComRCInAutoAct    bool    `yaml:"com_rc_in_auto_act"` // RC-loss except-while-auto mask
	NavDLLActT        string  `yaml:"nav_dll_act"`        // data-link-loss action
	NavRCLAct         string  `yaml:"nav_rcl_act"`        // RC-loss action
	GFAction          string  `yaml:"gf_action"`
	WindWarnMS        float64 `yaml:"wind_warn_ms"`
	WindMaxMS         float64 `yaml:"wind_max_ms"`
	ComFlightTimeMax  float64 `yaml:"com_flight_time_max"` // seconds, 0 disables
	CBFlightTerm      bool    `yaml:"cbrk_flightterm"`     // circuit breaker
	RefreshHomeInAir  bool    `yaml:"com_home_in_air"`

	ComLkdownTko float64 `yaml:"com_lkdown_tko"`  // seconds, early-takeoff critical-failure lockdown window
	ComOffbLossT float64 `yaml:"com_offb_loss_t"` // seconds, offboard control signal loss threshold
	ComQcAct     string  `yaml:"com_qc_act"`      // VTOL quadchute action
}

// Default returns the conservative default snapshot used before any
// parameter file is loaded.
func Default() Params {
	return Params{
		ComDLLossT:        10,
		ComRCLossT:        0.5,
		ComDisarmLand:     2,
		ComKillDisarmT:    5,
		ComOBLAct:         "hold",
		ComOBLRCAct:       "rtl",
		ComLowBatAct:      "warn",
		ComCriticalBatAct: "rtl",
		ComRCInAutoAct:    true,
		NavDLLActT:        "rtl",
		NavRCLAct:         "rtl",
		GFAction:          "none",
		WindWarnMS:        10,
		WindMaxMS:         15,
		ComFlightTimeMax:  0,
		ComLkdownTko:      5,
		ComOffbLossT:      0.5,
		ComQcAct:          "rtl",
	}
}

// Load reads a YAML parameter file, overlaying it onto Default().
// It is called by the composition root at startup and by Watcher when
// it reloads the parameter file.
func Load(path string) (Params, error) {
	p := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return p, errors.WithMessagef(err, "reading parameter file %s", path)
	}
	if err := yaml.Unmarshal(b, &p); err != nil {
		return p, errors.WithMessagef(err, "parsing parameter file %s", path)
	}
	return p, nil
}

// Watcher re-reads a parameter file on demand but refuses to do so
// while armed, enforcing spec §5's "Parameter snapshots are only
// re-read while disarmed" rule and §4.7's "update parameters if
// changed (only when disarmed)" tick step.
type Watcher struct {
	path    string
	modTime time.Time
	current Params
}

// NewWatcher creates a Watcher for path, with the given initial
// snapshot (typically from Load at startup).
func NewWatcher(path string, initial Params) *Watcher {
	return &Watcher{path: path, current: initial}
}

// Current returns the last-loaded snapshot.
func (w *Watcher) Current() Params { return w.current }

// PollAndReload checks the file's mtime and reloads if it changed and
// armed is false. Returns true if a reload happened.
func (w *Watcher) PollAndReload(armed bool) (bool, error) {
	if armed {
		return false, nil
	}
	info, err := os.Stat(w.path)
	if err != nil {
		return false, errors.WithMessage(err, "statting parameter file")
	}
	if !info.ModTime().After(w.modTime) {
		return false, nil
	}
	p, err := Load(w.path)
	if err != nil {
		return false, err
	}
	w.current = p
	w.modTime = info.ModTime()
	return true, nil
}
