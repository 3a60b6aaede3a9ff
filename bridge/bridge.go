package bridge

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/victorjacobs/go-infinity/homeassistant"
	"github.com/victorjacobs/go-infinity/infinity"
	"github.com/victorjacobs/go-infinity/schedule"
)

// ErrQueueFull reports that too many setpoint writes are already
// waiting. Each write occupies the bus for about half a minute, so the
// queue stays short on purpose.
var ErrQueueFull = errors.New("setpoint write queue is full")

// Bridge ties the thermostat to MQTT, the web API and the scheduler. All
// bus access goes through the manager; the bridge itself only tracks
// presentation state: pending optimistic setpoints, the panel's local
// HVAC mode and which schedule period was applied last.
type Bridge struct {
	manager *infinity.Manager
	store   *schedule.Store
	log     *zap.SugaredLogger

	writeQueue chan setpointJob

	mu             sync.Mutex
	climateTopics  *homeassistant.ClimateTopics
	optimisticHeat *int
	optimisticCool *int
	hvacMode       string
	lastApplied    string
	lastSnapshot   *Snapshot
}

func New(manager *infinity.Manager, store *schedule.Store, log *zap.SugaredLogger) (*Bridge, error) {
	b := newBridge(manager, store, log)

	snap, err := b.ReadSnapshot()
	if err != nil {
		return nil, fmt.Errorf("connecting to thermostat: %w", err)
	}
	if port := manager.PortName(); port != "" {
		b.log.Infof("Connected to %v", port)
	}
	if snap.Status.IndoorTemp == nil {
		b.log.Warnf("Thermostat not answering yet, starting with an empty cache")
	} else {
		b.log.Infof("Indoor temperature %v°F", *snap.Status.IndoorTemp)
	}

	go b.setpointWorker()

	return b, nil
}

func newBridge(manager *infinity.Manager, store *schedule.Store, log *zap.SugaredLogger) *Bridge {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Bridge{
		manager:    manager,
		store:      store,
		log:        log,
		hvacMode:   "heat_cool",
		writeQueue: make(chan setpointJob, 8),
	}
}

// ReadSnapshot polls status and energy in one bus transaction and
// remembers the result for the metrics collector.
func (b *Bridge) ReadSnapshot() (*Snapshot, error) {
	snap := &Snapshot{}
	err := b.manager.WithDevice(func(d *infinity.Device) error {
		var err error
		if snap.Status, err = d.GetStatus(); err != nil {
			return err
		}
		if snap.Daily, err = d.GetDailyEnergy(); err != nil {
			return err
		}
		snap.Yearly, err = d.GetYearlyEnergy()
		return err
	})
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.lastSnapshot = snap
	b.mu.Unlock()
	return snap, nil
}

// LastSnapshot returns the most recent successful poll, nil before the
// first one.
func (b *Bridge) LastSnapshot() *Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastSnapshot
}

// Store returns the schedule store backing the bridge.
func (b *Bridge) Store() *schedule.Store {
	return b.store
}

// BusStats passes transport counters through for metrics.
func (b *Bridge) BusStats() infinity.BusStats {
	return b.manager.BusStats()
}

// EffectiveSetpoints overlays pending optimistic writes onto the read
// setpoints, so callers see the target while the slow write runs.
func (b *Bridge) EffectiveSetpoints(status infinity.Status) (heat, cool *int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	heat, cool = status.HeatSetpoint, status.CoolSetpoint
	if b.optimisticHeat != nil {
		heat = b.optimisticHeat
	}
	if b.optimisticCool != nil {
		cool = b.optimisticCool
	}
	return heat, cool
}

// SetSetpointAsync queues a setpoint write and returns right away; the
// write itself occupies the bus for about half a minute. The target
// shows up in EffectiveSetpoints until the write settles and the next
// poll reads back the truth. done, when not nil, is called with the
// outcome.
func (b *Bridge) SetSetpointAsync(which string, target int, done func(verified bool, err error)) error {
	offset, err := setpointOffset(which, target)
	if err != nil {
		return err
	}

	b.mu.Lock()
	if which == "heat" {
		b.optimisticHeat = &target
	} else {
		b.optimisticCool = &target
	}
	b.mu.Unlock()

	select {
	case b.writeQueue <- setpointJob{which: which, target: target, offset: offset, done: done}:
		return nil
	default:
		b.clearOptimistic(which)
		return ErrQueueFull
	}
}

func (b *Bridge) setpointWorker() {
	for job := range b.writeQueue {
		b.handleSetpointJob(job)
	}
}

func (b *Bridge) handleSetpointJob(job setpointJob) {
	verified := false
	err := b.manager.WithDevice(func(d *infinity.Device) error {
		ok, err := d.SetSetpoint(job.target, job.offset)
		verified = ok
		return err
	})

	b.clearOptimistic(job.which)
	switch {
	case err != nil:
		b.log.Warnf("Setpoint write failed: %v", err)
	case !verified:
		b.log.Warnf("Could not confirm %v setpoint %v°F", job.which, job.target)
	default:
		b.log.Infof("Confirmed %v setpoint %v°F", job.which, job.target)
	}

	if _, err := b.ReadSnapshot(); err != nil {
		b.log.Warnf("Refresh after setpoint write failed: %v", err)
	}
	if job.done != nil {
		job.done(verified, err)
	}
}

// setpointOffset validates a setpoint command and maps it to its comfort
// profile byte.
func setpointOffset(which string, target int) (int, error) {
	switch which {
	case "heat":
		if target < infinity.HeatSetpointMin || target > infinity.HeatSetpointMax {
			return 0, fmt.Errorf("heat setpoint %v out of range %v-%v", target, infinity.HeatSetpointMin, infinity.HeatSetpointMax)
		}
		return infinity.HeatSetpointByte, nil
	case "cool":
		if target < infinity.CoolSetpointMin || target > infinity.CoolSetpointMax {
			return 0, fmt.Errorf("cool setpoint %v out of range %v-%v", target, infinity.CoolSetpointMin, infinity.CoolSetpointMax)
		}
		return infinity.CoolSetpointByte, nil
	default:
		return 0, fmt.Errorf("unknown setpoint %q", which)
	}
}

func (b *Bridge) clearOptimistic(which string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if which == "heat" {
		b.optimisticHeat = nil
	} else {
		b.optimisticCool = nil
	}
}

// SchedulerTick applies the scheduled period once; meant to run every
// minute. A period is applied when its label differs from the last one
// applied, so a manual change survives until the next period boundary.
func (b *Bridge) SchedulerTick(now time.Time) {
	sched := b.store.Get()
	if sched.Mode != schedule.ModeSchedule {
		return
	}
	period := schedule.ActivePeriod(sched, now)
	if period == nil {
		return
	}

	b.mu.Lock()
	last := b.lastApplied
	b.mu.Unlock()
	if period.Label == last {
		return
	}

	b.log.Infof("Schedule period %v: heat %v°F, cool %v°F", period.Label, period.Heat, period.Cool)
	if err := b.applySetpoint(period.Heat, infinity.HeatSetpointByte); err != nil {
		b.log.Warnf("Applying scheduled heat setpoint: %v", err)
	}
	if err := b.applySetpoint(period.Cool, infinity.CoolSetpointByte); err != nil {
		b.log.Warnf("Applying scheduled cool setpoint: %v", err)
	}

	b.mu.Lock()
	b.lastApplied = period.Label
	b.mu.Unlock()
}

func (b *Bridge) applySetpoint(target, offset int) error {
	return b.manager.WithDevice(func(d *infinity.Device) error {
		_, err := d.SetSetpoint(target, offset)
		return err
	})
}

// SetScheduleMode switches between manual and schedule control.
// Switching to schedule forces the active period to re-apply on the
// next tick.
func (b *Bridge) SetScheduleMode(mode string) error {
	if mode != schedule.ModeManual && mode != schedule.ModeSchedule {
		return fmt.Errorf("unknown schedule mode %q", mode)
	}
	if err := b.store.SetMode(mode); err != nil {
		return err
	}
	b.mu.Lock()
	b.lastApplied = ""
	b.mu.Unlock()
	return nil
}

// SwitchToManual leaves schedule mode so a manual setpoint does not get
// stomped on the next scheduler tick. No-op when already manual.
func (b *Bridge) SwitchToManual() error {
	if b.store.Get().Mode == schedule.ModeManual {
		return nil
	}
	b.log.Infof("Switching to manual mode")
	return b.SetScheduleMode(schedule.ModeManual)
}

// RegisterClimate publishes Home Assistant discovery for the thermostat
// and remembers the topics for Poll and SubscribeToCommands.
func (b *Bridge) RegisterClimate(mqttClient mqtt.Client) error {
	homeAssistantClient := homeassistant.NewClient(mqttClient)

	topics, err := homeAssistantClient.RegisterClimate()
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.climateTopics = topics
	b.mu.Unlock()
	return nil
}

func (b *Bridge) RegisterSensors(mqttClient mqtt.Client) error {
	homeAssistantClient := homeassistant.NewClient(mqttClient)

	for _, sensorConfig := range sensorDefinitions {
		if stateTopic, err := homeAssistantClient.RegisterSensor(sensorConfig.name, sensorConfig.class, sensorConfig.unit); err != nil {
			return err
		} else {
			b.log.Infof("Registered sensor %v", sensorConfig.name)
			sensorConfig.stateTopic = stateTopic
		}
	}

	return nil
}

// SubscribeToCommands listens for setpoint and mode commands from Home
// Assistant. Runs in the MQTT OnConnect handler so subscriptions come
// back after a reconnect.
func (b *Bridge) SubscribeToCommands(mqttClient mqtt.Client) {
	b.mu.Lock()
	topics := b.climateTopics
	b.mu.Unlock()
	if topics == nil {
		b.log.Warnf("Climate not registered yet, skipping command subscriptions")
		return
	}

	b.subscribeSetpoint(mqttClient, topics.HeatCommand, "heat")
	b.subscribeSetpoint(mqttClient, topics.CoolCommand, "cool")

	if t := mqttClient.Subscribe(topics.ModeCommand, 0, func(client mqtt.Client, msg mqtt.Message) {
		// The wall control owns the real operating mode. This only
		// changes what the panel shows.
		b.mu.Lock()
		b.hvacMode = string(msg.Payload())
		b.mu.Unlock()

		b.PublishClimate(client)
	}); t.Wait() && t.Error() != nil {
		b.log.Warnf("MQTT receive error: %v", t.Error())
	}
}

func (b *Bridge) subscribeSetpoint(mqttClient mqtt.Client, topic string, which string) {
	if t := mqttClient.Subscribe(topic, 0, func(client mqtt.Client, msg mqtt.Message) {
		payload := string(msg.Payload())
		value, err := strconv.ParseFloat(strings.TrimSpace(payload), 64)
		if err != nil {
			b.log.Warnf("Bad %v setpoint command %q", which, payload)
			return
		}
		target := int(math.Round(value))

		// A manual change from the panel takes the thermostat out of
		// schedule control.
		if err := b.SwitchToManual(); err != nil {
			b.log.Warnf("Switching to manual mode: %v", err)
		}

		if err := b.SetSetpointAsync(which, target, func(verified bool, err error) {
			b.PublishClimate(client)
		}); err != nil {
			b.log.Warnf("Setting %v setpoint: %v", which, err)
			return
		}

		b.PublishClimate(client)
	}); t.Wait() && t.Error() != nil {
		b.log.Warnf("MQTT receive error: %v", t.Error())
	}
}

// Poll reads a fresh snapshot and publishes sensor and climate state.
func (b *Bridge) Poll(mqttClient mqtt.Client) {
	snap, err := b.ReadSnapshot()
	if err != nil {
		b.log.Warnf("Poll failed: %v", err)
		b.publishAvailability(mqttClient, "offline")
		return
	}
	b.publishAvailability(mqttClient, "online")

	for _, sensorConfig := range sensorDefinitions {
		value := sensorConfig.get(snap)
		if value == nil || sensorConfig.stateTopic == "" {
			continue
		}

		if t := mqttClient.Publish(sensorConfig.stateTopic, 0, true, fmt.Sprintf("%v", value)); t.Wait() && t.Error() != nil {
			b.log.Warnf("MQTT publishing failed: %v", t.Error())
			continue
		}
	}

	b.PublishClimate(mqttClient)
}

// PublishClimate pushes climate state out from the last snapshot, with
// any pending optimistic setpoints on top.
func (b *Bridge) PublishClimate(mqttClient mqtt.Client) {
	b.mu.Lock()
	topics := b.climateTopics
	snap := b.lastSnapshot
	mode := b.hvacMode
	b.mu.Unlock()
	if topics == nil {
		return
	}

	var status infinity.Status
	if snap != nil {
		status = snap.Status
	}
	heat, cool := b.EffectiveSetpoints(status)

	publish := func(topic string, value *int) {
		if value == nil {
			return
		}
		if t := mqttClient.Publish(topic, 0, true, fmt.Sprintf("%v", *value)); t.Wait() && t.Error() != nil {
			b.log.Warnf("MQTT publishing failed: %v", t.Error())
		}
	}
	publish(topics.CurrentTemperature, status.IndoorTemp)
	publish(topics.HeatState, heat)
	publish(topics.CoolState, cool)

	if t := mqttClient.Publish(topics.ModeState, 0, true, mode); t.Wait() && t.Error() != nil {
		b.log.Warnf("MQTT publishing failed: %v", t.Error())
	}
}

func (b *Bridge) publishAvailability(mqttClient mqtt.Client, state string) {
	if t := mqttClient.Publish(homeassistant.AvailabilityTopic, 0, true, state); t.Wait() && t.Error() != nil {
		b.log.Warnf("MQTT publishing failed: %v", t.Error())
	}
}
