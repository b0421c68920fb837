package monitors

import (
	"time"

	"github.com/tiiuae/flightcore/internal/types"
)

// AutoDisarm owns the two hysteresis timers of spec §4.6: landed-for-
// N-seconds and kill-switch-engaged-for-5-seconds.
type AutoDisarm struct {
	landedFor  *types.Hysteresis
	killFor    *types.Hysteresis

	haveTakenOffSinceArming bool
}

// NewAutoDisarm creates the watchdog with the configured
// landed-disarm delay. The kill-switch delay is fixed at 5s per spec.
func NewAutoDisarm(landedDisarmDelay time.Duration) *AutoDisarm {
	return &AutoDisarm{
		landedFor: types.NewHysteresis(landedDisarmDelay),
		killFor:   types.NewHysteresis(5 * time.Second),
	}
}

// NoteTakeoff must be called once per flight when the vehicle leaves
// the ground, so the landed-disarm rule only fires after a real
// flight (§8 invariant 5 references "_have_taken_off_since_arming").
func (a *AutoDisarm) NoteTakeoff() { a.haveTakenOffSinceArming = true }

// NoteDisarmed resets per-flight state.
func (a *AutoDisarm) NoteDisarmed() { a.haveTakenOffSinceArming = false }

// EvaluateLanded reports whether auto-disarm-on-land should fire:
// landed has held continuously for the configured delay and the
// vehicle has taken off since arming (§8 invariant 5).
func (a *AutoDisarm) EvaluateLanded(landed bool, now time.Time) bool {
	debounced := a.landedFor.SetStateAndUpdate(landed, now)
	return debounced && a.haveTakenOffSinceArming
}

// EvaluateKillSwitch reports whether the kill switch has held engaged
// for 5s continuously.
func (a *AutoDisarm) EvaluateKillSwitch(engaged bool, now time.Time) bool {
	return a.killFor.SetStateAndUpdate(engaged, now)
}
