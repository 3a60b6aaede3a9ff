package homeassistant

import (
	"encoding/json"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/victorjacobs/go-infinity/config"
)

// AvailabilityTopic carries "online"/"offline" for every entity the
// bridge registers.
const AvailabilityTopic = config.TopicPrefix + "/available"

// infinityDevice groups all registered entities under one device in the
// Home Assistant UI.
var infinityDevice = deviceInfo{
	Identifiers:  []string{"infinity_touch"},
	Name:         "Carrier Infinity Touch",
	Manufacturer: "Carrier",
	Model:        "SYSTXCCITN01",
}

type Client struct {
	mqtt mqtt.Client
}

func NewClient(mqtt mqtt.Client) *Client {
	return &Client{
		mqtt: mqtt,
	}
}

// ClimateTopics is where the bridge publishes thermostat state and
// listens for commands after RegisterClimate.
type ClimateTopics struct {
	CurrentTemperature string
	HeatState          string
	HeatCommand        string
	CoolState          string
	CoolCommand        string
	ModeState          string
	ModeCommand        string
}

// RegisterClimate publishes MQTT discovery for the thermostat and
// returns the topics to serve it on.
func (h *Client) RegisterClimate() (*ClimateTopics, error) {
	topics := &ClimateTopics{
		CurrentTemperature: fmt.Sprintf("%v/climate/current_temperature", config.TopicPrefix),
		HeatState:          fmt.Sprintf("%v/climate/heat/state", config.TopicPrefix),
		HeatCommand:        fmt.Sprintf("%v/climate/heat/cmd", config.TopicPrefix),
		CoolState:          fmt.Sprintf("%v/climate/cool/state", config.TopicPrefix),
		CoolCommand:        fmt.Sprintf("%v/climate/cool/cmd", config.TopicPrefix),
		ModeState:          fmt.Sprintf("%v/climate/mode/state", config.TopicPrefix),
		ModeCommand:        fmt.Sprintf("%v/climate/mode/cmd", config.TopicPrefix),
	}

	climateConfiguration, _ := json.Marshal(climateConfiguration{
		UniqueId:                    "infinity_climate",
		Name:                        "Carrier Infinity",
		Device:                      infinityDevice,
		AvailabilityTopic:           AvailabilityTopic,
		CurrentTemperatureTopic:     topics.CurrentTemperature,
		TemperatureLowStateTopic:    topics.HeatState,
		TemperatureLowCommandTopic:  topics.HeatCommand,
		TemperatureHighStateTopic:   topics.CoolState,
		TemperatureHighCommandTopic: topics.CoolCommand,
		ModeStateTopic:              topics.ModeState,
		ModeCommandTopic:            topics.ModeCommand,
		Modes:                       []string{"off", "heat", "cool", "heat_cool"},
		MinTemp:                     55,
		MaxTemp:                     90,
		TempStep:                    1,
		TemperatureUnit:             "F",
	})

	if t := h.mqtt.Publish(config.HomeAssistantPrefix+"/climate/infinity/config", 0, true, climateConfiguration); t.Wait() && t.Error() != nil {
		return nil, t.Error()
	}

	return topics, nil
}

func (h *Client) RegisterSensor(name string, class string, unit string) (string, error) {
	uniqueId := strings.Replace(strings.ToLower(name), " ", "_", -1)

	var stateTopic string
	if class == "" {
		stateTopic = fmt.Sprintf("%v/%v", config.TopicPrefix, uniqueId)
	} else {
		stateTopic = fmt.Sprintf("%v/%v/%v", config.TopicPrefix, class, uniqueId)
	}

	sensorConfiguration, _ := json.Marshal(sensorConfiguration{
		UniqueId:          uniqueId,
		Name:              name,
		Device:            infinityDevice,
		AvailabilityTopic: AvailabilityTopic,
		DeviceClass:       class,
		StateTopic:        stateTopic,
		UnitOfMeasurement: unit,
	})

	configTopic := fmt.Sprintf("%v/sensor/%v/config", config.HomeAssistantPrefix, uniqueId)

	if t := h.mqtt.Publish(configTopic, 0, true, sensorConfiguration); t.Wait() && t.Error() != nil {
		return "", t.Error()
	}

	return stateTopic, nil
}
