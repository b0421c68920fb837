// Command commander is the composition root: it owns the bus, config
// watcher, fence syncer, commander.Loop, telemetry uplink and ROS2
// transport node, wiring them together exactly once with no
// package-level globals (spec §9). It also implements the CLI surface
// of spec §6: `start` boots the long-running daemon; every other verb
// is a short-lived client that publishes one vehicle_command onto the
// ROS2 bus the running daemon subscribes to and waits for its ACK —
// the same split the teacher's main.go draws between the long-running
// node process and its short MQTT-triggered command handlers.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	px4_msgs "github.com/tiiuae/rclgo-msgs/px4_msgs/msg"
	"github.com/tiiuae/rclgo/pkg/rclgo"

	"github.com/tiiuae/flightcore/internal/bus"
	"github.com/tiiuae/flightcore/internal/commander"
	"github.com/tiiuae/flightcore/internal/config"
	"github.com/tiiuae/flightcore/internal/fenceupdate"
	"github.com/tiiuae/flightcore/internal/telemetry"
	"github.com/tiiuae/flightcore/internal/transport"
)

var (
	flagSet        = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	deviceID       = flagSet.String("device_id", "", "The provisioned device id")
	paramFile      = flagSet.String("param_file", "/etc/flightcore/params.yaml", "Parameter snapshot file")
	fenceRepo      = flagSet.String("fence_repo", "", "Git-backed geofence repository URL")
	mqttBroker     = flagSet.String("mqtt_broker", "", "MQTT broker protocol, address and port")
	privateKeyPath = flagSet.String("private_key", "/enclave/rsa_private.pem", "MQTT session signing key")
	hil            = flagSet.Bool("h", false, "Run against a hardware-in-the-loop simulator instead of a real vehicle")
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	verb := os.Args[1]
	args := os.Args[2:]

	var err error
	switch verb {
	case "start":
		err = runDaemon(args)
	case "check":
		err = runClientCommand(commander.CmdRunPrearmChecks, 0, 0, 0)
	case "arm":
		err = runArm(args)
	case "disarm":
		err = runDisarm(args)
	case "takeoff":
		err = runClientCommand(commander.CmdNavTakeoff, 0, 0, 0)
	case "land":
		err = runClientCommand(commander.CmdNavLand, 0, 0, 0)
	case "transition":
		err = runClientCommand(commander.CmdDoVtolTransition, 0, 0, 0)
	case "mode":
		err = runMode(args)
	case "pair":
		err = runClientCommand(commander.CmdStartRxPair, 0, 0, 0)
	case "lockdown":
		err = runLockdown(args)
	case "set_ekf_origin":
		err = runSetEKFOrigin(args)
	case "poweroff":
		err = runClientCommand(commander.CmdPreflightRebootShutdown, 2, 0, 0)
	case "calibrate":
		err = runCalibrate(args)
	case "fencefile":
		err = runFenceFile(args)
	case "fake_traffic":
		err = runFakeTraffic(args)
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		log.Printf("%s: %v", verb, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: commander start [-h] | calibrate {gyro|mag[quick]|baro|accel[quick]|level|airspeed|esc} | "+
		"check | arm [-f] | disarm [-f] | takeoff | land | transition | mode <name> | pair | "+
		"lockdown {on|off} | set_ekf_origin lat lon alt | poweroff | fencefile <path> | fake_traffic")
}

// runDaemon boots the long-running supervisory core: bus, config
// watcher, fence syncer, Loop, telemetry uplink, and the ROS2
// transport node, then blocks until SIGINT/SIGTERM or until the loop
// reports that the arming state machine reached SHUTDOWN.
func runDaemon(args []string) error {
	flagSet.Parse(args)
	_ = *hil // HIL vs real vehicle only changes which ROS2 topics the launch file binds; the daemon itself is agnostic.

	terminationSignals := make(chan os.Signal, 1)
	signal.Notify(terminationSignals, syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	cfg, err := config.Load(*paramFile)
	if err != nil {
		log.Printf("using default parameters: %v", err)
		cfg = config.Default()
	}

	b := bus.New()
	bootTime := time.Now()
	const sysID, compID, parachuteComponentID = 1, 1, 161
	loop := commander.New(b, cfg, bootTime, sysID, compID, parachuteComponentID)

	if *fenceRepo != "" {
		syncer := fenceupdate.NewSyncer(fenceupdate.Source{
			RepoURL: *fenceRepo, PrivateKeyPath: *privateKeyPath, WorkDir: "/var/lib/flightcore/fence",
		})
		if err := syncer.EnsureKnownHosts(); err != nil {
			log.Printf("fence known_hosts: %v", err)
		} else if err := syncer.Pull(); err != nil {
			log.Printf("fence sync: %v", err)
		} else if f, err := syncer.LoadFence(); err != nil {
			log.Printf("fence load: %v", err)
		} else {
			loop.SetFence(f)
		}
	}

	rclArgs, err := rclgo.NewRCLArgs("")
	if err != nil {
		return err
	}
	rclContext, err := rclgo.NewContext(&wg, 0, rclArgs)
	if err != nil {
		return err
	}
	defer rclContext.Close()

	rosNode, err := rclContext.NewNode("commander", *deviceID)
	if err != nil {
		return err
	}

	node, err := transport.New(loop, rosNode)
	if err != nil {
		return err
	}

	subs := transport.NewSubscriptions(rosNode)
	node.RegisterSubscriptions(subs)
	if err := subs.Open(ctx); err != nil {
		return err
	}

	if *mqttBroker != "" || *deviceID != "" {
		tcfg := telemetry.DefaultConfig(*deviceID)
		if *mqttBroker != "" {
			tcfg.BrokerAddress = *mqttBroker
		}
		tcfg.PrivateKeyPath = *privateKeyPath
		uplink := telemetry.New(b, tcfg, loop.FlightUUID, loop.VehiclePosition)
		if err := uplink.Connect(); err != nil {
			log.Printf("telemetry: %v", err)
		} else {
			defer uplink.Disconnect()
			stop := make(chan struct{})
			wg.Add(1)
			go func() {
				defer wg.Done()
				uplink.Run(stop)
			}()
			go func() {
				<-ctx.Done()
				close(stop)
			}()
		}
	}

	exited := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		node.Run(ctx, 10*time.Millisecond, exited) // 100 Hz Commander Loop tick
	}()

	select {
	case <-terminationSignals:
		log.Printf("shutting down")
	case <-exited:
		log.Printf("arming state machine reached shutdown, exiting")
	}
	cancel()
	wg.Wait()
	log.Printf("bye")
	return nil
}

// runClientCommand opens a throwaway ROS2 node, publishes one
// VehicleCommand, and waits briefly for its ACK.
func runClientCommand(cmd uint16, p1, p2, p3 float32) error {
	return runClientCommandFull(cmd, p1, p2, p3, 0, 0, 0)
}

// runClientCommandFull is runClientCommand with all seven MAVLink
// command parameters, for verbs (e.g. calibrate accel) that need more
// than Param1-3.
func runClientCommandFull(cmd uint16, p1, p2, p3, p4, p5, p6 float32) error {
	var wg sync.WaitGroup
	rclArgs, err := rclgo.NewRCLArgs("")
	if err != nil {
		return err
	}
	rclContext, err := rclgo.NewContext(&wg, 0, rclArgs)
	if err != nil {
		return err
	}
	defer rclContext.Close()

	node, err := rclContext.NewNode("commander_cli", "cli")
	if err != nil {
		return err
	}

	pub, err := node.NewPublisher("vehicle_command", px4_msgs.NewVehicleCommand(), rclgo.NewDefaultPublisherOptions())
	if err != nil {
		return err
	}
	defer pub.Close()

	msg := px4_msgs.NewVehicleCommand()
	msg.Command = uint32(cmd)
	msg.Param1, msg.Param2, msg.Param3 = p1, p2, p3
	msg.Param4 = p4
	msg.Param5, msg.Param6 = float64(p5), float64(p6)
	msg.SourceSystem, msg.SourceComponent = 255, 1
	msg.TargetSystem, msg.TargetComponent = 1, 1

	return waitForAck(rclContext, node, pub, msg, cmd)
}

// waitForAck publishes msg and blocks briefly for a matching
// vehicle_command_ack, mapping its result onto the CLI's 0/1 exit
// code contract (spec §6).
func waitForAck(rclContext *rclgo.Context, node *rclgo.Node, pub *rclgo.Publisher, msg *px4_msgs.VehicleCommand, cmd uint16) error {
	ackCh := make(chan px4_msgs.VehicleCommandAck, 1)
	sub, err := node.NewSubscription("vehicle_command_ack", px4_msgs.NewVehicleCommandAck(), func(s *rclgo.Subscription) {
		var ack px4_msgs.VehicleCommandAck
		if _, err := s.TakeMessage(&ack); err == nil && ack.Command == uint32(cmd) {
			ackCh <- ack
		}
	})
	if err != nil {
		return err
	}
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	go sub.Spin(ctx, 3*time.Second)

	if err := pub.Publish(msg); err != nil {
		return err
	}

	select {
	case ack := <-ackCh:
		if ack.Result != 0 { // 0 == types.CommandAccepted
			return fmt.Errorf("command rejected (result=%d)", ack.Result)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("no ack received within timeout")
	}
}

func runArm(args []string) error {
	force := len(args) > 0 && args[0] == "-f"
	p2 := float32(0)
	if force {
		p2 = 21196
	}
	return runClientCommand(commander.CmdComponentArmDisarm, 1, p2, 0)
}

func runDisarm(args []string) error {
	force := len(args) > 0 && args[0] == "-f"
	p2 := float32(0)
	if force {
		p2 = 21196
	}
	return runClientCommand(commander.CmdComponentArmDisarm, 0, p2, 0)
}

func runMode(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: mode <name>")
	}
	mainMode, subMode := customModeFor(args[0])
	if mainMode == 0 {
		return fmt.Errorf("unknown mode %q", args[0])
	}
	return runClientCommand(commander.CmdDoSetMode, 0, mainMode, subMode)
}

func customModeFor(name string) (main, sub float32) {
	switch name {
	case "manual":
		return 1, 0
	case "altctl":
		return 2, 0
	case "posctl":
		return 3, 0
	case "takeoff":
		return 4, 2
	case "loiter":
		return 4, 3
	case "mission":
		return 4, 4
	case "rtl":
		return 4, 5
	case "land":
		return 4, 6
	case "follow":
		return 4, 8
	case "precland":
		return 4, 9
	case "acro":
		return 5, 0
	case "offboard":
		return 6, 0
	case "stabilized":
		return 7, 0
	case "orbit":
		return 8, 0
	default:
		return 0, 0
	}
}

func runLockdown(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: lockdown {on|off}")
	}
	switch args[0] {
	case "on":
		return runClientCommand(commander.CmdDoFlightTermination, 2.0, 0, 0)
	case "off":
		return runClientCommand(commander.CmdDoFlightTermination, 0, 0, 0)
	default:
		return fmt.Errorf("usage: lockdown {on|off}")
	}
}

func runSetEKFOrigin(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: set_ekf_origin lat lon alt")
	}
	lat, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return err
	}
	lon, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return err
	}
	alt, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return err
	}
	return runClientCommandWithLatLon(commander.CmdSetGPSGlobalOrigin, lat, lon, float32(alt))
}

func runClientCommandWithLatLon(cmd uint16, lat, lon float64, alt float32) error {
	var wg sync.WaitGroup
	rclArgs, err := rclgo.NewRCLArgs("")
	if err != nil {
		return err
	}
	rclContext, err := rclgo.NewContext(&wg, 0, rclArgs)
	if err != nil {
		return err
	}
	defer rclContext.Close()

	node, err := rclContext.NewNode("commander_cli", "cli")
	if err != nil {
		return err
	}
	pub, err := node.NewPublisher("vehicle_command", px4_msgs.NewVehicleCommand(), rclgo.NewDefaultPublisherOptions())
	if err != nil {
		return err
	}
	defer pub.Close()

	msg := px4_msgs.NewVehicleCommand()
	msg.Command = uint32(cmd)
	msg.Param5, msg.Param6, msg.Param7 = lat, lon, alt
	msg.SourceSystem, msg.SourceComponent = 255, 1
	msg.TargetSystem, msg.TargetComponent = 1, 1

	return waitForAck(rclContext, node, pub, msg, cmd)
}

func runCalibrate(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: calibrate {gyro|mag[quick]|baro|accel[quick]|level|airspeed|esc}")
	}
	switch args[0] {
	case "gyro":
		return runClientCommand(commander.CmdPreflightCalibration, 1, 0, 0)
	case "mag":
		return runClientCommand(commander.CmdPreflightCalibration, 0, 1, 0)
	case "magquick":
		return runClientCommand(commander.CmdFixedMagCalYaw, 0, 0, 0)
	case "baro":
		return runClientCommand(commander.CmdPreflightCalibration, 0, 0, 1)
	case "accel":
		return runClientCommandFull(commander.CmdPreflightCalibration, 0, 0, 0, 0, 1, 0)
	case "accelquick":
		return runClientCommandFull(commander.CmdPreflightCalibration, 0, 0, 0, 0, 4, 0)
	case "level":
		return runClientCommandFull(commander.CmdPreflightCalibration, 0, 0, 0, 0, 2, 0)
	case "airspeed":
		return runClientCommandFull(commander.CmdPreflightCalibration, 0, 0, 0, 0, 0, 1)
	case "esc":
		return runClientCommand(commander.CmdActuatorTest, 0, 0, 0)
	default:
		return fmt.Errorf("unknown calibration %q", args[0])
	}
}

// runFenceFile loads and validates the fence-repo/fence.json file under
// the given working directory, for operators who want to check a fence
// file before a flight. It does not pull from the fence repository and
// does not contact the running daemon.
func runFenceFile(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: fencefile <path>")
	}
	syncer := fenceupdate.NewSyncer(fenceupdate.Source{WorkDir: args[0]})
	_, err := syncer.LoadFence()
	return err
}

// runFakeTraffic publishes one synthetic transponder_report, used for
// bench-testing the ADS-B-derived collision advisory path without a
// real transponder attached.
func runFakeTraffic(args []string) error {
	var wg sync.WaitGroup
	rclArgs, err := rclgo.NewRCLArgs("")
	if err != nil {
		return err
	}
	rclContext, err := rclgo.NewContext(&wg, 0, rclArgs)
	if err != nil {
		return err
	}
	defer rclContext.Close()

	node, err := rclContext.NewNode("commander_cli", "cli")
	if err != nil {
		return err
	}
	pub, err := node.NewPublisher("transponder_report", px4_msgs.NewTransponderReport(), rclgo.NewDefaultPublisherOptions())
	if err != nil {
		return err
	}
	defer pub.Close()

	msg := px4_msgs.NewTransponderReport()
	msg.Icao = 0xABCDEF
	msg.Lat, msg.Lon, msg.Altitude = 0, 0, 100
	return pub.Publish(msg)
}
