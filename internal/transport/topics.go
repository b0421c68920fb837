// Wires every spec §6 input/output topic to a commander.Loop. Input
// handlers decode px4_msgs samples into Loop.UpdateVehicle/UpdateBattery/
// UpdateWind/SubmitCommand/SubmitAction calls; a fixed-rate driver runs
// Loop.Tick and republishes whatever it returns. Grounded on the
// teacher's communicationlink/telemetry.go (handleGPSMessages,
// handleLocalPosMessages, handleStatusMessages, handleBatteryMessages)
// and missionengine/internal/flypx4/px4.go's subscription/publisher
// pattern, generalized from "forward to MQTT" to "feed the
// supervisory core."
package transport

import (
	"context"
	"log"
	"math"
	"sync"
	"time"

	px4_msgs "github.com/tiiuae/rclgo-msgs/px4_msgs/msg"
	"github.com/tiiuae/rclgo/pkg/rclgo"

	"github.com/tiiuae/flightcore/internal/bus"
	"github.com/tiiuae/flightcore/internal/commander"
	"github.com/tiiuae/flightcore/internal/monitors"
	"github.com/tiiuae/flightcore/internal/types"
)

// Node owns the ROS2 subscriptions/publishers for one vehicle and the
// Loop they drive. There is one Node per vehicle, built by the
// composition root (no globals, spec §9).
type Node struct {
	loop *commander.Loop

	pubStatus    *rclgo.Publisher
	pubArmed     *rclgo.Publisher
	pubCtrlMode  *rclgo.Publisher
	pubCmdrState *rclgo.Publisher
	pubDetector  *rclgo.Publisher
	pubAck       *rclgo.Publisher
	pubCommand   *rclgo.Publisher
	pubTriplet   *rclgo.Publisher
	pubTune      *rclgo.Publisher
	pubLED       *rclgo.Publisher

	mu      sync.Mutex
	snap    commander.VehicleSnapshot
	gcsRole monitors.LinkRole

	cmdReader *bus.Reader
}

// New builds a Node bound to rosNode, with every output publisher
// opened eagerly so the first Tick can publish immediately.
func New(loop *commander.Loop, rosNode *rclgo.Node) (*Node, error) {
	n := &Node{loop: loop, gcsRole: monitors.LinkRoleGCS, cmdReader: loop.Bus().Topic("vehicle_command").NewReader()}

	pubs := []struct {
		dst         **rclgo.Publisher
		topic, kind string
	}{
		{&n.pubStatus, "vehicle_status", "px4_msgs/VehicleStatus"},
		{&n.pubArmed, "actuator_armed", "px4_msgs/ActuatorArmed"},
		{&n.pubCtrlMode, "vehicle_control_mode", "px4_msgs/VehicleControlMode"},
		{&n.pubCmdrState, "commander_state", "px4_msgs/CommanderState"},
		{&n.pubDetector, "failure_detector_status", "px4_msgs/FailureDetectorStatus"},
		{&n.pubAck, "vehicle_command_ack", "px4_msgs/VehicleCommandAck"},
		{&n.pubCommand, "vehicle_command", "px4_msgs/VehicleCommand"},
		{&n.pubTriplet, "position_setpoint_triplet", "px4_msgs/PositionSetpointTriplet"},
		{&n.pubTune, "tune_control", "px4_msgs/TuneControl"},
		{&n.pubLED, "led_control", "px4_msgs/LedControl"},
	}
	for _, p := range pubs {
		pub, err := newPublisher(rosNode, p.topic, p.kind)
		if err != nil {
			return nil, err
		}
		*p.dst = pub
	}

	return n, nil
}

// RegisterSubscriptions adds every spec §6 input topic this package
// handles to subs. The composition root calls subs.Open once all
// nodes/handlers are registered.
func (n *Node) RegisterSubscriptions(subs *Subscriptions) {
	subs.Add("vehicle_global_position", "px4_msgs/VehicleGlobalPosition", n.handleGlobalPosition)
	subs.Add("vehicle_local_position", "px4_msgs/VehicleLocalPosition", n.handleLocalPosition)
	subs.Add("vehicle_land_detected", "px4_msgs/VehicleLandDetected", n.handleLandDetected)
	subs.Add("battery_status", "px4_msgs/BatteryStatus", n.handleBattery)
	subs.Add("wind", "px4_msgs/Wind", n.handleWind)
	subs.Add("telemetry_status", "px4_msgs/TelemetryStatus", n.handleTelemetryStatus)
	subs.Add("vehicle_command", "px4_msgs/VehicleCommand", n.handleVehicleCommand)
	subs.Add("action_request", "px4_msgs/ActionRequest", n.handleActionRequest)
	subs.Add("power_button_state", "px4_msgs/PowerButtonState", n.handlePowerButton)
	subs.Add("offboard_control_mode", "px4_msgs/OffboardControlMode", n.handleOffboardControlMode)
	subs.Add("vtol_vehicle_status", "px4_msgs/VtolVehicleStatus", n.handleVtolVehicleStatus)
}

func (n *Node) handleGlobalPosition(s *rclgo.Subscription) {
	var m px4_msgs.VehicleGlobalPosition
	if _, err := s.TakeMessage(&m); err != nil {
		log.Printf("transport: take VehicleGlobalPosition failed: %v", err)
		return
	}
	n.mu.Lock()
	n.snap.Lat, n.snap.Lon, n.snap.Alt = m.Lat, m.Lon, m.Alt
	n.snap.GlobalPositionValid = true
	n.loop.UpdateVehicle(n.snap)
	n.mu.Unlock()
}

func (n *Node) handleLocalPosition(s *rclgo.Subscription) {
	var m px4_msgs.VehicleLocalPosition
	if _, err := s.TakeMessage(&m); err != nil {
		log.Printf("transport: take VehicleLocalPosition failed: %v", err)
		return
	}
	n.mu.Lock()
	n.snap.HeadingRad = float64(m.Heading)
	n.snap.GroundSpeedMS = math.Hypot(m.Vx, m.Vy)
	n.snap.ClimbRateMS = -m.Vz
	n.snap.LocalPositionValid = m.XyValid
	n.snap.AltitudeValid = m.ZValid
	n.loop.UpdateVehicle(n.snap)
	n.mu.Unlock()
}

func (n *Node) handleLandDetected(s *rclgo.Subscription) {
	var m px4_msgs.VehicleLandDetected
	if _, err := s.TakeMessage(&m); err != nil {
		log.Printf("transport: take VehicleLandDetected failed: %v", err)
		return
	}
	n.mu.Lock()
	n.snap.Landed = m.Landed
	n.snap.MaybeLanded = m.MaybeLanded
	n.snap.GroundContact = m.GroundContact
	n.loop.UpdateVehicle(n.snap)
	n.mu.Unlock()
}

func (n *Node) handleBattery(s *rclgo.Subscription) {
	var m px4_msgs.BatteryStatus
	if _, err := s.TakeMessage(&m); err != nil {
		log.Printf("transport: take BatteryStatus failed: %v", err)
		return
	}
	n.loop.UpdateBattery(batteryWarningFromStatus(m), m.TimeRemainingS > 0 && m.TimeRemainingS < 120)
}

func batteryWarningFromStatus(m px4_msgs.BatteryStatus) types.BatteryWarning {
	switch {
	case m.Remaining < 0.05:
		return types.BatteryWarningEmergency
	case m.Remaining < 0.10:
		return types.BatteryWarningCritical
	case m.Remaining < 0.20:
		return types.BatteryWarningLow
	default:
		return types.BatteryWarningNone
	}
}

// controlModeFlags derives the vehicle_control_mode boolean flags from
// the resolved main/nav state, mirroring PX4's own control_mode.cpp
// (manual/auto/offboard are mutually exclusive top-level control
// sources; termination is orthogonal and layered on top of whichever
// source is active).
func controlModeFlags(status types.VehicleStatus) (manual, auto, offboard, termination bool) {
	switch status.MainState {
	case types.MainStateManual, types.MainStateAcro, types.MainStateStab, types.MainStateAltctl, types.MainStatePosctl:
		manual = true
	case types.MainStateOffboard:
		offboard = true
	default:
		auto = true
	}
	termination = status.NavState == types.NavStateTermination
	return
}

func (n *Node) handleWind(s *rclgo.Subscription) {
	var m px4_msgs.Wind
	if _, err := s.TakeMessage(&m); err != nil {
		log.Printf("transport: take Wind failed: %v", err)
		return
	}
	n.loop.UpdateWind(math.Hypot(m.WindspeedNorth, m.WindspeedEast))
}

func (n *Node) handleTelemetryStatus(s *rclgo.Subscription) {
	var m px4_msgs.TelemetryStatus
	if _, err := s.TakeMessage(&m); err != nil {
		log.Printf("transport: take TelemetryStatus failed: %v", err)
		return
	}
	n.loop.Heartbeat(n.gcsRole, time.Now())
}

func (n *Node) handleVehicleCommand(s *rclgo.Subscription) {
	var m px4_msgs.VehicleCommand
	if _, err := s.TakeMessage(&m); err != nil {
		log.Printf("transport: take VehicleCommand failed: %v", err)
		return
	}
	n.loop.SubmitCommand(types.VehicleCommand{
		Command:         uint16(m.Command),
		Param1:          m.Param1,
		Param2:          m.Param2,
		Param3:          m.Param3,
		Param4:          m.Param4,
		Param5:          m.Param5,
		Param6:          m.Param6,
		Param7:          m.Param7,
		SourceSystem:    m.SourceSystem,
		SourceComponent: m.SourceComponent,
		TargetSystem:    m.TargetSystem,
		TargetComponent: m.TargetComponent,
		FromExternal:    m.FromExternal,
	})
}

func (n *Node) handleActionRequest(s *rclgo.Subscription) {
	var m px4_msgs.ActionRequest
	if _, err := s.TakeMessage(&m); err != nil {
		log.Printf("transport: take ActionRequest failed: %v", err)
		return
	}
	n.loop.SubmitAction(types.ActionRequest{
		Source:  types.ActionSource(m.Source),
		Action:  types.Action(m.Action),
		Mode:    types.MainState(m.Mode),
		HasMode: m.Mode != 0xFF,
	})
}

func (n *Node) handleOffboardControlMode(s *rclgo.Subscription) {
	var m px4_msgs.OffboardControlMode
	if _, err := s.TakeMessage(&m); err != nil {
		log.Printf("transport: take OffboardControlMode failed: %v", err)
		return
	}
	n.loop.UpdateOffboardControlMode(time.Now())
}

// handleVtolVehicleStatus caches the VTOL transition state for
// VehicleTypeVTOL airframes. VtolTransitionFailsafe mirrors PX4's
// forced-transition-to-MC flag, which is exactly the quadchute
// condition failsafe.Inputs.VTOLQuadchute names (spec §4.3 rule 12).
func (n *Node) handleVtolVehicleStatus(s *rclgo.Subscription) {
	var m px4_msgs.VtolVehicleStatus
	if _, err := s.TakeMessage(&m); err != nil {
		log.Printf("transport: take VtolVehicleStatus failed: %v", err)
		return
	}
	n.mu.Lock()
	n.snap.VTOLInTransition = m.VtolInTransMode
	n.snap.VTOLIsFixedWing = !m.VtolInRwMode
	n.snap.VTOLQuadchuteRequested = m.VtolTransitionFailsafe
	n.loop.UpdateVehicle(n.snap)
	n.mu.Unlock()
}

func (n *Node) handlePowerButton(s *rclgo.Subscription) {
	var m px4_msgs.PowerButtonState
	if _, err := s.TakeMessage(&m); err != nil {
		log.Printf("transport: take PowerButtonState failed: %v", err)
		return
	}
	n.loop.EnqueuePowerButtonEvent(commander.PowerButtonEvent{LongPress: m.Event == px4_msgs.PowerButtonStateReqShutdown})
}

// Run drives the Loop at rate and republishes whatever each Tick
// returns until ctx is cancelled or the arming state machine reaches
// SHUTDOWN. exited is closed on that latter path so the composition
// root can stop waiting on OS termination signals and unwind cleanly
// (spec §5's should_exit step); a nil exited is fine for callers that
// only ever cancel ctx.
func (n *Node) Run(ctx context.Context, rate time.Duration, exited chan<- struct{}) {
	ticker := time.NewTicker(rate)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			out := n.loop.Tick(now)
			n.publish(out)
			if out.ShouldExit {
				if exited != nil {
					close(exited)
				}
				return
			}
		}
	}
}

func (n *Node) publish(out commander.Outputs) {
	if !out.Published {
		return
	}

	status := px4_msgs.NewVehicleStatus()
	status.ArmingState = uint8(out.Status.ArmingState)
	status.NavState = uint8(out.Status.NavState)
	status.FailsafeActive = out.Status.FailsafeActive
	status.RcSignalLost = out.Status.RCSignalLost
	status.DataLinkLost = out.Status.DataLinkLost
	if err := n.pubStatus.Publish(status); err != nil {
		log.Printf("transport: publish vehicle_status failed: %v", err)
	}

	ctrlMode := px4_msgs.NewVehicleControlMode()
	ctrlMode.FlagArmed = out.Armed.Armed
	manual, auto, offboard, termination := controlModeFlags(out.Status)
	ctrlMode.FlagControlManualEnabled = manual
	ctrlMode.FlagControlAutoEnabled = auto
	ctrlMode.FlagControlOffboardEnabled = offboard
	ctrlMode.FlagControlTerminationEnabled = termination
	if err := n.pubCtrlMode.Publish(ctrlMode); err != nil {
		log.Printf("transport: publish vehicle_control_mode failed: %v", err)
	}

	armed := px4_msgs.NewActuatorArmed()
	armed.Armed = out.Armed.Armed
	armed.PreflightChecksPass = out.Armed.Prearmed
	armed.ReadyToArm = out.Armed.ReadyToArm
	armed.Lockdown = out.Armed.Lockdown
	armed.ManualLockdown = out.Armed.ManualLockdown
	armed.ForceFailsafe = out.Armed.ForceFailsafe
	if err := n.pubArmed.Publish(armed); err != nil {
		log.Printf("transport: publish actuator_armed failed: %v", err)
	}

	ack := px4_msgs.NewVehicleCommandAck()
	if out.Ack != nil {
		ack.Command = uint32(out.Ack.Command)
		ack.Result = uint8(out.Ack.Result)
		ack.TargetSystem = out.Ack.TargetSystem
		ack.TargetComponent = out.Ack.TargetComponent
		if err := n.pubAck.Publish(ack); err != nil {
			log.Printf("transport: publish vehicle_command_ack failed: %v", err)
		}
	}

	tune := px4_msgs.NewTuneControl()
	tune.TuneId = uint8(out.Tone)
	if err := n.pubTune.Publish(tune); err != nil {
		log.Printf("transport: publish tune_control failed: %v", err)
	}

	led := px4_msgs.NewLedControl()
	led.Color = uint8(out.LED)
	if err := n.pubLED.Publish(led); err != nil {
		log.Printf("transport: publish led_control failed: %v", err)
	}

	triplet := px4_msgs.NewPositionSetpointTriplet()
	triplet.Current.Lat = out.Triplet.Current.Lat
	triplet.Current.Lon = out.Triplet.Current.Lon
	triplet.Current.Alt = out.Triplet.Current.Alt
	triplet.Current.Valid = out.Triplet.Current.Valid
	triplet.Current.Type = uint8(out.Triplet.Current.Type)
	if err := n.pubTriplet.Publish(triplet); err != nil {
		log.Printf("transport: publish position_setpoint_triplet failed: %v", err)
	}

	cmdrState := px4_msgs.NewCommanderState()
	cmdrState.MainState = uint8(out.CmdrState.MainState)
	cmdrState.MainStateChanges = out.CmdrState.MainStateChanges
	if err := n.pubCmdrState.Publish(cmdrState); err != nil {
		log.Printf("transport: publish commander_state failed: %v", err)
	}

	det := px4_msgs.NewFailureDetectorStatus()
	det.FailDetectorRollPitchExceeded = out.DetFlags.RollPitchExceeded
	det.FailDetectorExtFailure = out.DetFlags.ExternalFailure
	det.FailDetectorEscFailure = out.DetFlags.ESCFailure
	det.FailDetectorMotorFailure = out.DetFlags.MotorFailure
	det.FailDetectorImbalancedProp = out.DetFlags.ImbalancedProp
	if err := n.pubDetector.Publish(det); err != nil {
		log.Printf("transport: publish failure_detector_status failed: %v", err)
	}

	n.publishReemittedCommands()
}

// publishReemittedCommands drains the Loop's internal vehicle_command
// bus topic (currently only the parachute-release re-emission) and
// forwards each generation onto the ROS2 vehicle_command topic.
func (n *Node) publishReemittedCommands() {
	v, changed, _ := n.cmdReader.Poll()
	if !changed || v == nil {
		return
	}
	cmd := v.(types.VehicleCommand)
	out := px4_msgs.NewVehicleCommand()
	out.Command = uint32(cmd.Command)
	out.TargetSystem = cmd.TargetSystem
	out.TargetComponent = cmd.TargetComponent
	if err := n.pubCommand.Publish(out); err != nil {
		log.Printf("transport: publish vehicle_command failed: %v", err)
	}
}
