package commander

import (
	"time"

	"github.com/tiiuae/flightcore/internal/armstate"
	"github.com/tiiuae/flightcore/internal/types"
)

// handleAction routes an ActionRequest — the compact RC_STICK/
// RC_SWITCH/RC_BUTTON/RC_MODE_SLOT intents named in spec §3/§4.9 — to
// the arm or main state machine. Unlike vehicle commands, action
// requests never produce an ACK; they are operator intent captured
// from manual_control_setpoint-derived switches rather than a
// protocol-level command.
func (l *Loop) handleAction(a types.ActionRequest, now time.Time) {
	switch a.Action {
	case types.ActionArm:
		l.armM.TryArm(armstate.Gates{
			ChecksPass:                l.checksPass(),
			PreArmChecksPass:          l.checksPass(),
			Landed:                    l.vehicle.Landed,
			SourceIsRC:                true,
			SourceInManualModeContext: l.mainStateOrZero() == types.MainStateManual,
			GeofenceActionIsRTL:       parseGeofenceAction(l.params.Current().GFAction) == types.GeofenceActionRTL,
			HomeValid:                 l.homeMgr.Current().Valid,
		}, now)
	case types.ActionDisarm:
		if r, _ := l.armM.TryDisarm(armstate.Gates{Landed: l.vehicle.Landed}); r == types.TransitionChanged {
			l.autoDisarm.NoteDisarmed()
		}
	case types.ActionToggle:
		if l.armM.State() == types.ArmingStateArmed {
			l.handleAction(types.ActionRequest{Action: types.ActionDisarm}, now)
		} else {
			l.handleAction(types.ActionRequest{Action: types.ActionArm}, now)
		}
	case types.ActionKill:
		l.killSwitchEngaged = true
	case types.ActionUnkill:
		l.killSwitchEngaged = false
	case types.ActionSwitchMode:
		if a.HasMode {
			l.mainM.Try(a.Mode, l.mainConditions(false, now))
			l.everChangedMode = true
		}
	}
}
