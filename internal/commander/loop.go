// Package commander implements the Commander Loop, Command Dispatcher,
// and Action Dispatcher of spec §4.7/§4.9. The loop itself is the
// cooperative single-threaded tick function the teacher's task
// scheduler shape anticipates (missionengine/internal/taskrunner),
// generalized here from "run N mission tasks per tick" to "advance the
// arm/main state machines, failsafe resolver, and monitors per tick,
// then publish whatever changed."
package commander

import (
	"time"

	"github.com/tiiuae/flightcore/internal/armstate"
	"github.com/tiiuae/flightcore/internal/bus"
	"github.com/tiiuae/flightcore/internal/config"
	"github.com/tiiuae/flightcore/internal/failuredetector"
	"github.com/tiiuae/flightcore/internal/geofence"
	"github.com/tiiuae/flightcore/internal/home"
	"github.com/tiiuae/flightcore/internal/mainstate"
	"github.com/tiiuae/flightcore/internal/monitors"
	"github.com/tiiuae/flightcore/internal/navigator"
	"github.com/tiiuae/flightcore/internal/navigator/modes"
	"github.com/tiiuae/flightcore/internal/tune"
	"github.com/tiiuae/flightcore/internal/types"
)

const publishPeriod = 500 * time.Millisecond

// VehicleSnapshot is the cached view of the estimator/land-detector
// topics the loop consults each tick (spec §6 inputs
// vehicle_local_position, vehicle_global_position, vehicle_land_detected,
// vehicle_status_flags). The transport layer calls UpdateVehicle
// whenever a fresher sample arrives; the loop itself never subscribes
// directly.
type VehicleSnapshot struct {
	Lat, Lon, Alt       float64
	HeadingRad          float64
	GroundSpeedMS       float64
	ClimbRateMS         float64
	TiltAngleDeg        float64
	Landed              bool
	MaybeLanded         bool
	GroundContact       bool
	GlobalPositionValid bool
	LocalPositionValid  bool
	AltitudeValid       bool
	VehicleType         types.VehicleType

	// VTOL fields, populated from vtol_vehicle_status for VehicleTypeVTOL
	// airframes only; zero value for every other vehicle type.
	VTOLInTransition       bool
	VTOLIsFixedWing        bool
	VTOLQuadchuteRequested bool
}

// PowerButtonEvent is the minimal record an interrupt-context power
// button callback is allowed to enqueue (spec §9: "An in-IRQ callback
// is not allowed to publish complex state; it only enqueues a minimal
// event record that the main loop consumes on the next tick").
type PowerButtonEvent struct {
	LongPress bool
}

// Loop owns every supervisory subsystem and the bus topics it
// publishes to. There is exactly one Loop per vehicle, built once by
// the composition root — no package-level globals (spec §9).
type Loop struct {
	bus *bus.Bus

	armM    *armstate.Machine
	mainM   *mainstate.Machine
	homeMgr *home.Manager

	linkMon    *monitors.LinkMonitor
	batMon     *monitors.BatteryMonitor
	windMon    *monitors.WindMonitor
	fenceMon   *monitors.GeofenceMonitor
	autoDisarm *monitors.AutoDisarm
	failDet    *failuredetector.Detector

	nav *navigator.Navigator

	params      *config.Watcher
	tuneLimiter *tune.RateLimiter

	bootTime time.Time

	sysID, compID         uint8
	parachuteComponentID  uint8

	vehicle VehicleSnapshot

	cmdQueue         []types.VehicleCommand
	actionQueue      []types.ActionRequest
	powerButtonQueue []PowerButtonEvent

	forceFailsafeCommanded bool
	lockdownCommanded      bool
	killSwitchEngaged      bool
	shutdownRequested      bool
	shutdownFinalized      bool
	highLatencyMode        bool
	parachuteCommanded     bool

	calibrationBusy bool
	flightUUID      string
	wasLanded       bool

	armedTime  time.Time
	takeoffTime time.Time

	lastMissionRes types.MissionResult

	haveOffboardSignal bool
	lastOffboardSignal time.Time

	lastPublish  time.Time
	havePublished bool
	lastArmed    types.ActuatorArmed
	lastStatus   types.VehicleStatus
	lastFlags    types.StatusFlags
	lastCmdrSt   types.CommanderState
	lastDetFlags failuredetector.Flags

	mission modes.MissionSource

	pendingBatteryLevel types.BatteryWarning
	pendingBatteryLow   bool
	pendingWindSpeed    float64

	fence           geofence.Fence
	rtlType         types.RTLType
	everChangedMode bool

	returnAltitude   float64
	loiterRadius     float32
	acceptanceRadius float32
	takeoffAltitude  float64
	fixedWingRadius  float64
	isRotary         bool
}

// New constructs a Loop with every subsystem wired from cfg. bootTime
// anchors the home/in-air holdoffs.
func New(b *bus.Bus, cfg config.Params, bootTime time.Time, sysID, compID, parachuteComponentID uint8) *Loop {
	l := &Loop{
		bus:         b,
		armM:        armstate.New(bootTime),
		mainM:       mainstate.New(),
		homeMgr:     home.New(home.Config{RefreshInAir: cfg.RefreshHomeInAir}),
		linkMon: monitors.NewLinkMonitor(map[monitors.LinkRole]time.Duration{
			monitors.LinkRoleGCS: time.Duration(cfg.ComDLLossT * float64(time.Second)),
			monitors.LinkRoleRC:  time.Duration(cfg.ComRCLossT * float64(time.Second)),
		}),
		batMon:      monitors.NewBatteryMonitor(),
		windMon:     monitors.NewWindMonitor(cfg.WindWarnMS, cfg.WindMaxMS),
		autoDisarm:  monitors.NewAutoDisarm(time.Duration(cfg.ComDisarmLand * float64(time.Second))),
		failDet:     failuredetector.New(failuredetector.Config{}),
		params:      config.NewWatcher("", cfg),
		tuneLimiter: tune.NewRateLimiter(2 * time.Second),
		bootTime:    bootTime,
		sysID:       sysID,
		compID:      compID,
		parachuteComponentID: parachuteComponentID,
		returnAltitude:   50,
		loiterRadius:     80,
		acceptanceRadius: 10,
		takeoffAltitude:  10,
		fixedWingRadius:  60,
		isRotary:         true,
	}
	l.fenceMon = monitors.NewGeofenceMonitor(geofence.Fence{}, monitors.GeofenceMonitorConfig{
		Interval:           1 * time.Second,
		IsRotary:           l.isRotary,
		FixedWingRadius:    l.fixedWingRadius,
		MaxHorizontalDecel: 3,
		MaxVerticalDecel:   2,
	})
	l.nav = navigator.New()
	return l
}

// mainConditions assembles the Conditions the main state machine
// checks a requested transition against, from the cached vehicle
// snapshot and home manager. OffboardSignalRecent reflects whether an
// offboard_control_mode sample has arrived within the configured
// com_offb_loss_t window (spec §4.2's OFFBOARD entry gate).
func (l *Loop) mainConditions(requestIsHighLevelSource bool, now time.Time) mainstate.Conditions {
	offboardTimeout := time.Duration(l.params.Current().ComOffbLossT * float64(time.Second))
	return mainstate.Conditions{
		GlobalPositionValid:      l.vehicle.GlobalPositionValid,
		LocalPositionValid:       l.vehicle.LocalPositionValid,
		AltitudeValid:            l.vehicle.AltitudeValid,
		HomePositionValid:        l.homeMgr.Current().Valid,
		OffboardSignalRecent:     l.haveOffboardSignal && now.Sub(l.lastOffboardSignal) <= offboardTimeout,
		VehicleType:              l.vehicle.VehicleType,
		NeverChangedModeSinceBoot: !l.everChangedMode,
		RequestIsHighLevelSource: requestIsHighLevelSource,
	}
}

// SetMission wires the mission-item source (dataman, an external
// collaborator per spec §1) the Mission/RTL modes read from.
func (l *Loop) SetMission(m modes.MissionSource) { l.mission = m }

// SetFence replaces the loaded geofence polygon (e.g. after
// internal/fenceupdate syncs a new fence.json).
func (l *Loop) SetFence(f geofence.Fence) {
	l.fence = f
	l.fenceMon.SetFence(f)
}

// SetRTLType selects which return-to-launch sub-strategy the RTL mode
// resolves to (spec §4.8).
func (l *Loop) SetRTLType(t types.RTLType) { l.rtlType = t }

// FlightUUID returns the identifier generated for the flight currently
// in progress, empty if disarmed. A fresh random UUID (google/uuid, the
// library already in the domain stack for per-message telemetry ids)
// is generated on each arming edge and cleared on disarm. It is held in
// memory only: it is not a counter, and nothing is incremented or
// persisted on landing.
func (l *Loop) FlightUUID() string { return l.flightUUID }

// UpdateVehicle caches the latest estimator/land-detector snapshot.
func (l *Loop) UpdateVehicle(v VehicleSnapshot) { l.vehicle = v }

// VehiclePosition returns the cached lat/lon/alt, for collaborators
// (e.g. internal/telemetry) that need it without reaching into
// VehicleSnapshot directly.
func (l *Loop) VehiclePosition() (lat, lon, alt float64) {
	return l.vehicle.Lat, l.vehicle.Lon, l.vehicle.Alt
}

// HighLatencyMode reports whether CONTROL_HIGH_LATENCY most recently
// requested the degraded telemetry rate (SPEC_FULL §12 item 4).
func (l *Loop) HighLatencyMode() bool { return l.highLatencyMode }

// Bus returns the topic bus this Loop publishes to, so a transport
// layer can read re-emitted vehicle_command records (e.g. the
// parachute release) without the Loop importing a transport package.
func (l *Loop) Bus() *bus.Bus { return l.bus }

// Heartbeat records a link heartbeat for role.
func (l *Loop) Heartbeat(role monitors.LinkRole, now time.Time) { l.linkMon.Heartbeat(role, now) }

// UpdateBattery caches the latest battery_status sample.
func (l *Loop) UpdateBattery(level types.BatteryWarning, lowRemainingTime bool) {
	l.pendingBatteryLevel = level
	l.pendingBatteryLow = lowRemainingTime
}

// UpdateWind caches the latest wind-estimate sample.
func (l *Loop) UpdateWind(speedMS float64) { l.pendingWindSpeed = speedMS }

// UpdateOffboardControlMode records that an offboard_control_mode
// sample arrived at now — the recency signal both the OFFBOARD entry
// gate (mainConditions) and the offboard-link-loss failsafe input
// consume (spec §4.2, §4.3 rule 8).
func (l *Loop) UpdateOffboardControlMode(now time.Time) {
	l.haveOffboardSignal = true
	l.lastOffboardSignal = now
}

// SubmitCommand enqueues a vehicle_command for the next tick to
// process (spec §4.7: "process at most one pending vehicle command").
func (l *Loop) SubmitCommand(cmd types.VehicleCommand) { l.cmdQueue = append(l.cmdQueue, cmd) }

// SubmitAction enqueues an action_request for the next tick.
func (l *Loop) SubmitAction(a types.ActionRequest) { l.actionQueue = append(l.actionQueue, a) }

// EnqueuePowerButtonEvent is the only operation the power-button
// interrupt context may call (spec §9).
func (l *Loop) EnqueuePowerButtonEvent(e PowerButtonEvent) {
	l.powerButtonQueue = append(l.powerButtonQueue, e)
}

// Outputs is everything the loop may publish in one tick, mirroring
// spec §6's output list. Every field is filled on every tick (Ack is
// nil when no command was processed this tick), so Published reports
// whether this tick published the records, either because something
// changed or because the periodic window elapsed.
type Outputs struct {
	Armed      types.ActuatorArmed
	Status     types.VehicleStatus
	Flags      types.StatusFlags
	CmdrState  types.CommanderState
	DetFlags   failuredetector.Flags
	NavState   types.NavigationState
	Triplet    types.PositionSetpointTriplet
	MissionRes types.MissionResult
	Ack        *types.VehicleCommandAck
	Tone       tune.ToneID
	LED        tune.LEDColor
	Published  bool

	// ShouldExit reports that the arming state machine has reached
	// SHUTDOWN (spec §5's should_exit / resource-release step). The
	// caller's scheduler loop observes this and stops calling Tick.
	ShouldExit bool
}
