package bridge

import (
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victorjacobs/go-infinity/infinity"
	"github.com/victorjacobs/go-infinity/schedule"
)

// fakeBus serves register tables from a map keyed by device and table.
type fakeBus struct {
	mu     sync.Mutex
	tables map[string][]byte
	errs   map[string]error
	apply  bool
	reads  int
	writes int
}

func busKey(device uint16, table string) string {
	return fmt.Sprintf("%04x/%s", device, table)
}

func (f *fakeBus) ReadTable(device uint16, table string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	k := busKey(device, table)
	if err := f.errs[k]; err != nil {
		return nil, err
	}
	data := f.tables[k]
	if data == nil {
		return nil, nil
	}
	return append([]byte{}, data...), nil
}

func (f *fakeBus) WriteTable(device uint16, table string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if f.apply {
		f.tables[busKey(device, table)] = append([]byte{}, data...)
	}
	return nil
}

func (f *fakeBus) Close() error { return nil }

func (f *fakeBus) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func profileWith(heat, cool byte) []byte {
	profile := make([]byte, 30)
	for i := range profile {
		profile[i] = 0xEE
	}
	profile[infinity.HeatSetpointByte] = heat
	profile[infinity.CoolSetpointByte] = cool
	return profile
}

// statusTables is a bus where every read the bridge does has an answer.
func statusTables(heat, cool byte) map[string][]byte {
	zone := make([]byte, 64)
	zone[60] = 72
	outdoor := make([]byte, 36)
	outdoor[32] = 55
	yearly := make([]byte, 37)
	binary.BigEndian.PutUint16(yearly[3:], 1200)
	binary.BigEndian.PutUint16(yearly[7:], 300)
	binary.BigEndian.PutUint16(yearly[11:], 450)

	return map[string][]byte{
		busKey(infinity.Thermostat, infinity.TableThermostatZone): zone,
		busKey(infinity.HeatPump, infinity.TableOutdoorUnit):      outdoor,
		busKey(infinity.Thermostat, infinity.TableComfortProfile): profileWith(heat, cool),
		busKey(infinity.Thermostat, infinity.TableDailyEnergy):    {5, 3, 2, 1, 0, 0, 0, 0, 0, 0},
		busKey(infinity.Thermostat, infinity.TableYearlyEnergy):   yearly,
	}
}

func testManager(f *fakeBus) *infinity.Manager {
	return infinity.NewManager(func() (infinity.BusCloser, error) { return f, nil }, nil)
}

// testBridge builds a bridge without the background worker so tests run
// jobs synchronously.
func testBridge(t *testing.T, f *fakeBus) *Bridge {
	t.Helper()
	store := schedule.NewStore(filepath.Join(t.TempDir(), "schedule.json"))
	return newBridge(testManager(f), store, nil)
}

type fakeToken struct{}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return nil }

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

// fakeMqtt records published payloads and captures subscriptions so
// tests can push commands through them.
type fakeMqtt struct {
	mu        sync.Mutex
	published map[string][]string
	handlers  map[string]mqtt.MessageHandler
}

func newFakeMqtt() *fakeMqtt {
	return &fakeMqtt{
		published: map[string][]string{},
		handlers:  map[string]mqtt.MessageHandler{},
	}
}

func (f *fakeMqtt) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch p := payload.(type) {
	case []byte:
		f.published[topic] = append(f.published[topic], string(p))
	case string:
		f.published[topic] = append(f.published[topic], p)
	}
	return &fakeToken{}
}

func (f *fakeMqtt) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = callback
	return &fakeToken{}
}

// send delivers a message to the captured subscription handler.
func (f *fakeMqtt) send(topic, payload string) {
	f.mu.Lock()
	handler := f.handlers[topic]
	f.mu.Unlock()
	if handler != nil {
		handler(f, &fakeMessage{topic: topic, payload: []byte(payload)})
	}
}

// last returns the most recent payload published to topic.
func (f *fakeMqtt) last(topic string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	values := f.published[topic]
	if len(values) == 0 {
		return ""
	}
	return values[len(values)-1]
}

func (f *fakeMqtt) IsConnected() bool       { return true }
func (f *fakeMqtt) IsConnectionOpen() bool  { return true }
func (f *fakeMqtt) Connect() mqtt.Token     { return &fakeToken{} }
func (f *fakeMqtt) Disconnect(quiesce uint) {}
func (f *fakeMqtt) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	return &fakeToken{}
}
func (f *fakeMqtt) Unsubscribe(topics ...string) mqtt.Token             { return &fakeToken{} }
func (f *fakeMqtt) AddRoute(topic string, callback mqtt.MessageHandler) {}
func (f *fakeMqtt) OptionsReader() mqtt.ClientOptionsReader             { return mqtt.ClientOptionsReader{} }

func TestNew(t *testing.T) {
	f := &fakeBus{tables: statusTables(68, 75)}
	store := schedule.NewStore(filepath.Join(t.TempDir(), "schedule.json"))

	b, err := New(testManager(f), store, nil)
	require.NoError(t, err)

	snap := b.LastSnapshot()
	require.NotNil(t, snap)
	require.NotNil(t, snap.Status.IndoorTemp)
	assert.Equal(t, 72, *snap.Status.IndoorTemp)
}

func TestReadSnapshot(t *testing.T) {
	b := testBridge(t, &fakeBus{tables: statusTables(68, 75)})

	snap, err := b.ReadSnapshot()
	require.NoError(t, err)
	require.NotNil(t, snap.Status.HeatSetpoint)
	assert.Equal(t, 68, *snap.Status.HeatSetpoint)
	require.Len(t, snap.Daily, 1)
	assert.Equal(t, 5, snap.Daily[0].HPHeat)
	require.NotNil(t, snap.Yearly)
	assert.Equal(t, 1200, snap.Yearly.Current.HPHeat)
	assert.Equal(t, snap, b.LastSnapshot())
}

func TestReadSnapshotError(t *testing.T) {
	f := &fakeBus{
		tables: map[string][]byte{},
		errs: map[string]error{
			busKey(infinity.Thermostat, infinity.TableThermostatZone): errors.New("read: input/output error"),
		},
	}
	b := testBridge(t, f)

	_, err := b.ReadSnapshot()
	assert.Error(t, err)
	assert.Nil(t, b.LastSnapshot())
}

func TestSetSetpointAsync(t *testing.T) {
	// Profile already at the target, so the job settles immediately.
	b := testBridge(t, &fakeBus{tables: statusTables(70, 75)})

	var verified bool
	var jobErr error
	done := func(v bool, err error) { verified, jobErr = v, err }
	require.NoError(t, b.SetSetpointAsync("heat", 70, done))

	// Optimistic value is visible while the job is queued.
	heat, _ := b.EffectiveSetpoints(infinity.Status{})
	require.NotNil(t, heat)
	assert.Equal(t, 70, *heat)

	b.handleSetpointJob(<-b.writeQueue)

	assert.True(t, verified)
	assert.NoError(t, jobErr)
	heat, _ = b.EffectiveSetpoints(infinity.Status{})
	assert.Nil(t, heat, "optimistic value must clear after the write")
	assert.NotNil(t, b.LastSnapshot(), "worker refreshes the snapshot")
}

func TestSetSetpointAsyncValidates(t *testing.T) {
	b := testBridge(t, &fakeBus{tables: statusTables(68, 75)})

	assert.Error(t, b.SetSetpointAsync("heat", 100, nil))
	assert.Error(t, b.SetSetpointAsync("cool", 50, nil))
	assert.Error(t, b.SetSetpointAsync("fan", 70, nil))
	assert.Empty(t, b.writeQueue)

	heat, cool := b.EffectiveSetpoints(infinity.Status{})
	assert.Nil(t, heat)
	assert.Nil(t, cool)
}

func TestSetSetpointAsyncQueueFull(t *testing.T) {
	b := testBridge(t, &fakeBus{tables: statusTables(68, 75)})

	for i := 0; i < cap(b.writeQueue); i++ {
		require.NoError(t, b.SetSetpointAsync("heat", 70, nil))
	}
	err := b.SetSetpointAsync("heat", 71, nil)
	assert.Error(t, err)

	heat, _ := b.EffectiveSetpoints(infinity.Status{})
	assert.Nil(t, heat, "rejected job must not leave an optimistic value")
}

func TestSchedulerTick(t *testing.T) {
	// Monday noon, the default schedule says "home" with 68/75, and the
	// profile already matches, so the writes settle instantly.
	now := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)
	f := &fakeBus{tables: statusTables(68, 75)}
	b := testBridge(t, f)
	require.NoError(t, b.store.SetMode(schedule.ModeSchedule))

	b.SchedulerTick(now)

	b.mu.Lock()
	applied := b.lastApplied
	b.mu.Unlock()
	assert.Equal(t, "home", applied)

	// Same period again: nothing touches the bus.
	before := f.readCount()
	b.SchedulerTick(now.Add(time.Minute))
	assert.Equal(t, before, f.readCount())
}

func TestSchedulerTickManualMode(t *testing.T) {
	f := &fakeBus{tables: statusTables(68, 75)}
	b := testBridge(t, f)

	b.SchedulerTick(time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC))

	assert.Equal(t, 0, f.readCount())
	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Equal(t, "", b.lastApplied)
}

func TestSetScheduleModeForcesReapply(t *testing.T) {
	b := testBridge(t, &fakeBus{tables: statusTables(68, 75)})

	b.mu.Lock()
	b.lastApplied = "home"
	b.mu.Unlock()

	require.NoError(t, b.SetScheduleMode(schedule.ModeSchedule))
	assert.Equal(t, schedule.ModeSchedule, b.store.Get().Mode)
	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Equal(t, "", b.lastApplied)
}

func TestSetScheduleModeRejectsUnknown(t *testing.T) {
	b := testBridge(t, &fakeBus{tables: statusTables(68, 75)})
	assert.Error(t, b.SetScheduleMode("party"))
}

func TestSwitchToManual(t *testing.T) {
	b := testBridge(t, &fakeBus{tables: statusTables(68, 75)})
	require.NoError(t, b.store.SetMode(schedule.ModeSchedule))
	b.mu.Lock()
	b.lastApplied = "home"
	b.mu.Unlock()

	require.NoError(t, b.SwitchToManual())
	assert.Equal(t, schedule.ModeManual, b.store.Get().Mode)

	// Already manual: stays put.
	require.NoError(t, b.SwitchToManual())
	assert.Equal(t, schedule.ModeManual, b.store.Get().Mode)
}

func TestSetpointCommand(t *testing.T) {
	b := testBridge(t, &fakeBus{tables: statusTables(68, 75)})
	fm := newFakeMqtt()
	require.NoError(t, b.RegisterClimate(fm))
	require.NoError(t, b.store.SetMode(schedule.ModeSchedule))

	b.SubscribeToCommands(fm)
	fm.send("infinity/climate/heat/cmd", "68.0")

	assert.Equal(t, schedule.ModeManual, b.store.Get().Mode, "panel change leaves schedule mode")
	require.Len(t, b.writeQueue, 1)
	job := <-b.writeQueue
	assert.Equal(t, "heat", job.which)
	assert.Equal(t, 68, job.target)

	// Optimistic state went out immediately.
	assert.Equal(t, "68", fm.last("infinity/climate/heat/state"))
}

func TestSetpointCommandMalformed(t *testing.T) {
	b := testBridge(t, &fakeBus{tables: statusTables(68, 75)})
	fm := newFakeMqtt()
	require.NoError(t, b.RegisterClimate(fm))

	b.SubscribeToCommands(fm)
	fm.send("infinity/climate/heat/cmd", "toasty")

	assert.Empty(t, b.writeQueue)
}

func TestModeCommand(t *testing.T) {
	b := testBridge(t, &fakeBus{tables: statusTables(68, 75)})
	fm := newFakeMqtt()
	require.NoError(t, b.RegisterClimate(fm))

	b.SubscribeToCommands(fm)
	fm.send("infinity/climate/mode/cmd", "cool")

	b.mu.Lock()
	mode := b.hvacMode
	b.mu.Unlock()
	assert.Equal(t, "cool", mode)
	assert.Equal(t, "cool", fm.last("infinity/climate/mode/state"))
}

func TestPoll(t *testing.T) {
	b := testBridge(t, &fakeBus{tables: statusTables(68, 75)})
	fm := newFakeMqtt()
	require.NoError(t, b.RegisterClimate(fm))
	require.NoError(t, b.RegisterSensors(fm))

	b.Poll(fm)

	assert.Equal(t, "online", fm.last("infinity/available"))
	assert.Equal(t, "72", fm.last("infinity/temperature/infinity_indoor_temperature"))
	assert.Equal(t, "55", fm.last("infinity/temperature/infinity_outdoor_temperature"))
	assert.Equal(t, "11", fm.last("infinity/energy/infinity_energy_yesterday"))
	assert.Equal(t, "1200", fm.last("infinity/energy/infinity_hp_heat_ytd"))
	assert.Equal(t, "72", fm.last("infinity/climate/current_temperature"))
	assert.Equal(t, "68", fm.last("infinity/climate/heat/state"))
	assert.Equal(t, "75", fm.last("infinity/climate/cool/state"))
	assert.Equal(t, "heat_cool", fm.last("infinity/climate/mode/state"))
}

func TestPollReportsOffline(t *testing.T) {
	f := &fakeBus{
		tables: map[string][]byte{},
		errs: map[string]error{
			busKey(infinity.Thermostat, infinity.TableThermostatZone): errors.New("read: input/output error"),
		},
	}
	b := testBridge(t, f)
	fm := newFakeMqtt()
	require.NoError(t, b.RegisterClimate(fm))

	b.Poll(fm)

	assert.Equal(t, "offline", fm.last("infinity/available"))
}
