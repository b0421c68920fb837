// Package telemetry uplinks the Commander Loop's published topics to a
// ground station over MQTT, generalizing the teacher's
// communicationlink/telemetry package (10 Hz GPS/status/battery
// uplink to GCP Cloud IoT Core) from "subscribe to individual ROS2
// topics" to "poll the bus readers the composition root hands us."
// Session auth follows the teacher's newMQTTClient exactly: an RS256
// JWT signed with the device's private key, used as the MQTT password.
package telemetry

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"sync"
	"time"

	jwt "github.com/dgrijalva/jwt-go"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/tiiuae/flightcore/internal/bus"
	"github.com/tiiuae/flightcore/internal/failuredetector"
	"github.com/tiiuae/flightcore/internal/types"
)

// Config carries everything needed to open and authenticate the MQTT
// session, mirroring the teacher's GCP Cloud IoT Core flag set.
type Config struct {
	DeviceID       string
	BrokerAddress  string
	PrivateKeyPath string
	ProjectID      string
	Region         string
	RegistryID     string
	Algorithm      string // "RS256" or "ES256"

	// Rate is the nominal publish interval. HighLatencyRate is
	// substituted while the loop's high-latency mode is active
	// (SPEC_FULL §12 item 4 — CONTROL_HIGH_LATENCY).
	Rate            time.Duration
	HighLatencyRate time.Duration
}

// DefaultConfig mirrors the teacher's GCP Cloud IoT Core constants.
func DefaultConfig(deviceID string) Config {
	return Config{
		DeviceID:        deviceID,
		BrokerAddress:   "ssl://mqtt.googleapis.com:8883",
		PrivateKeyPath:  "/enclave/rsa_private.pem",
		ProjectID:       "auto-fleet-mgnt",
		Region:          "europe-west1",
		RegistryID:      "fleet-registry",
		Algorithm:       "RS256",
		Rate:            100 * time.Millisecond,
		HighLatencyRate: 5 * time.Second,
	}
}

const (
	qos      = 1
	retain   = false
	username = "unused" // always this value against GCP Cloud IoT Core
)

// record is the JSON body published once per tick, shaped after the
// teacher's telemetry struct but widened to the supervisory core's own
// published topics.
type record struct {
	Timestamp int64  `json:"timestamp"`
	MessageID string `json:"message_id"`
	FlightID  string `json:"flight_id,omitempty"`

	Armed          bool   `json:"armed"`
	ArmingState    uint8  `json:"arming_state"`
	NavState       uint8  `json:"nav_state"`
	MainState      uint8  `json:"main_state"`
	FailsafeActive bool   `json:"failsafe_active"`
	DataLinkLost   bool   `json:"data_link_lost"`

	BatteryWarning uint8 `json:"battery_warning"`

	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt"`

	DetectorFlags uint32 `json:"detector_flags"`
}

// Uplink owns the MQTT client and the bus readers it polls. One Uplink
// per vehicle, owned by the composition root — no package-level
// client, matching spec §9's explicit-ownership rule.
type Uplink struct {
	cfg    Config
	client mqtt.Client

	armedReader  *bus.Reader
	statusReader *bus.Reader
	flagsReader  *bus.Reader
	detReader    *bus.Reader

	flightUUIDFunc func() string
	vehiclePos     func() (lat, lon, alt float64)

	mu          sync.Mutex
	highLatency bool
}

// New wires an Uplink to the topics the Commander Loop publishes.
// flightUUIDFunc and vehiclePos let the uplink read loop.FlightUUID and
// the cached vehicle snapshot without the telemetry package importing
// commander (which would create an import cycle the teacher's own
// package boundaries avoid).
func New(b *bus.Bus, cfg Config, flightUUIDFunc func() string, vehiclePos func() (float64, float64, float64)) *Uplink {
	return &Uplink{
		cfg:            cfg,
		armedReader:    b.Topic("actuator_armed").NewReader(),
		statusReader:   b.Topic("vehicle_status").NewReader(),
		flagsReader:    b.Topic("vehicle_status_flags").NewReader(),
		detReader:      b.Topic("failure_detector_status").NewReader(),
		flightUUIDFunc: flightUUIDFunc,
		vehiclePos:     vehiclePos,
	}
}

// Connect opens (and authenticates) the MQTT session. A connect
// attempt that times out is retried indefinitely, for a vehicle that
// may boot before the ground link is reachable; a connect error is
// returned without retrying.
func (u *Uplink) Connect() error {
	pass, err := u.signSessionToken()
	if err != nil {
		return fmt.Errorf("sign session token: %w", err)
	}

	clientID := fmt.Sprintf("projects/%s/locations/%s/registries/%s/devices/%s",
		u.cfg.ProjectID, u.cfg.Region, u.cfg.RegistryID, u.cfg.DeviceID)

	opts := mqtt.NewClientOptions().
		AddBroker(u.cfg.BrokerAddress).
		SetClientID(clientID).
		SetUsername(username).
		SetPassword(pass).
		SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12}).
		SetProtocolVersion(4)

	u.client = mqtt.NewClient(opts)

	for {
		tok := u.client.Connect()
		if !tok.WaitTimeout(5 * time.Second) {
			log.Printf("telemetry: connect timeout, retrying")
			continue
		}
		if err := tok.Error(); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		return nil
	}
}

// signSessionToken builds the RS256/ES256 JWT the teacher's
// newMQTTClient uses as the MQTT password, scoped to a 24h session.
func (u *Uplink) signSessionToken() (string, error) {
	keyData, err := ioutil.ReadFile(u.cfg.PrivateKeyPath)
	if err != nil {
		return "", err
	}

	var key interface{}
	switch u.cfg.Algorithm {
	case "ES256":
		key, err = jwt.ParseECPrivateKeyFromPEM(keyData)
	default:
		key, err = jwt.ParseRSAPrivateKeyFromPEM(keyData)
	}
	if err != nil {
		return "", err
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.GetSigningMethod(u.cfg.Algorithm), &jwt.StandardClaims{
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(24 * time.Hour).Unix(),
		Audience:  u.cfg.ProjectID,
	})
	return token.SignedString(key)
}

// Disconnect closes the MQTT session.
func (u *Uplink) Disconnect() {
	if u.client != nil {
		u.client.Disconnect(1000)
	}
}

// SetHighLatency switches the uplink's publish cadence between Rate
// and HighLatencyRate (SPEC_FULL §12 item 4). The Commander Loop calls
// this from its CONTROL_HIGH_LATENCY command handler.
func (u *Uplink) SetHighLatency(on bool) {
	u.mu.Lock()
	u.highLatency = on
	u.mu.Unlock()
}

func (u *Uplink) interval() time.Duration {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.highLatency && u.cfg.HighLatencyRate > 0 {
		return u.cfg.HighLatencyRate
	}
	return u.cfg.Rate
}

// Run publishes one record per interval tick until stop is closed,
// mirroring the teacher's startSendingTelemetry loop but driven by bus
// reader polls instead of ROS2 subscription callbacks.
func (u *Uplink) Run(stop <-chan struct{}) {
	topic := fmt.Sprintf("/devices/%s/events/telemetry", u.cfg.DeviceID)

	for {
		wait := time.After(u.interval())
		select {
		case <-stop:
			return
		case <-wait:
			rec := u.buildRecord()
			b, err := json.Marshal(rec)
			if err != nil {
				log.Printf("telemetry: marshal failed: %v", err)
				continue
			}
			if u.client != nil {
				u.client.Publish(topic, qos, retain, b)
			}
		}
	}
}

func (u *Uplink) buildRecord() record {
	rec := record{
		Timestamp: time.Now().UnixNano() / 1000,
		MessageID: uuid.NewString(),
	}

	if u.flightUUIDFunc != nil {
		rec.FlightID = u.flightUUIDFunc()
	}
	if u.vehiclePos != nil {
		rec.Lat, rec.Lon, rec.Alt = u.vehiclePos()
	}

	if v, _, _ := u.armedReader.Poll(); v != nil {
		armed := v.(types.ActuatorArmed)
		rec.Armed = armed.Armed
	}
	if v, _, _ := u.statusReader.Poll(); v != nil {
		status := v.(types.VehicleStatus)
		rec.ArmingState = uint8(status.ArmingState)
		rec.NavState = uint8(status.NavState)
		rec.MainState = uint8(status.MainState)
		rec.FailsafeActive = status.FailsafeActive
		rec.DataLinkLost = status.DataLinkLost
	}
	if v, _, _ := u.flagsReader.Poll(); v != nil {
		flags := v.(types.StatusFlags)
		rec.BatteryWarning = uint8(flags.BatteryWarning)
	}
	if v, _, _ := u.detReader.Poll(); v != nil {
		rec.DetectorFlags = detectorFlagBits(v.(failuredetector.Flags))
	}

	return rec
}

// detectorFlagBits packs failuredetector.Flags into a wire-friendly
// bitmask for the telemetry record.
func detectorFlagBits(f failuredetector.Flags) uint32 {
	var bits uint32
	if f.RollPitchExceeded {
		bits |= 1 << 0
	}
	if f.AltitudeLossExceeded {
		bits |= 1 << 1
	}
	if f.ExternalFailure {
		bits |= 1 << 2
	}
	if f.ESCFailure {
		bits |= 1 << 3
	}
	if f.MotorFailure {
		bits |= 1 << 4
	}
	if f.ImbalancedProp {
		bits |= 1 << 5
	}
	return bits
}
