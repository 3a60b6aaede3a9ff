package homeassistant

type deviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

type sensorConfiguration struct {
	UniqueId          string     `json:"unique_id"`
	Name              string     `json:"name"`
	Device            deviceInfo `json:"device"`
	AvailabilityTopic string     `json:"availability_topic"`
	DeviceClass       string     `json:"device_class,omitempty"`
	StateTopic        string     `json:"state_topic"`
	UnitOfMeasurement string     `json:"unit_of_measurement"`
}

type climateConfiguration struct {
	UniqueId                    string     `json:"unique_id"`
	Name                        string     `json:"name"`
	Device                      deviceInfo `json:"device"`
	AvailabilityTopic           string     `json:"availability_topic"`
	CurrentTemperatureTopic     string     `json:"current_temperature_topic"`
	TemperatureLowStateTopic    string     `json:"temperature_low_state_topic"`
	TemperatureLowCommandTopic  string     `json:"temperature_low_command_topic"`
	TemperatureHighStateTopic   string     `json:"temperature_high_state_topic"`
	TemperatureHighCommandTopic string     `json:"temperature_high_command_topic"`
	ModeStateTopic              string     `json:"mode_state_topic"`
	ModeCommandTopic            string     `json:"mode_command_topic"`
	Modes                       []string   `json:"modes"`
	MinTemp                     int        `json:"min_temp"`
	MaxTemp                     int        `json:"max_temp"`
	TempStep                    int        `json:"temp_step"`
	TemperatureUnit             string     `json:"temperature_unit"`
}
