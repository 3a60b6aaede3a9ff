package config

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const HomeAssistantPrefix = "homeassistant"
const TopicPrefix = "infinity"

type Configuration struct {
	// SerialPort is the RS-485 adapter device path. Empty means take the
	// first USB serial adapter found.
	SerialPort string `mapstructure:"serial_port" json:"serial_port"`
	// BaudRate of the bus, 38400 unless the installation is odd.
	BaudRate int `mapstructure:"baud_rate" json:"baud_rate"`
	// ScanInterval is the sensor poll interval in seconds.
	ScanInterval int `mapstructure:"scan_interval" json:"scan_interval"`
	// ScheduleFile is where the setpoint schedule is persisted.
	ScheduleFile string  `mapstructure:"schedule_file" json:"schedule_file"`
	Mqtt         Mqtt    `mapstructure:"mqtt" json:"mqtt"`
	HTTP         HTTP    `mapstructure:"http" json:"http"`
	Logging      Logging `mapstructure:"logging" json:"logging"`
}

type Mqtt struct {
	IpAddress string `mapstructure:"ip_address" json:"ip_address"`
	Username  string `mapstructure:"username" json:"username"`
	Password  string `mapstructure:"password" json:"password"`
}

type HTTP struct {
	Addr string `mapstructure:"addr" json:"addr"`
}

type Logging struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
	// File enables rotated logging to disk next to stdout when set.
	File string `mapstructure:"file" json:"file"`
}

func LoadConfiguration(filename string) (*Configuration, error) {
	v := viper.New()
	v.SetConfigFile(filename)
	v.SetDefault("baud_rate", 38400)
	v.SetDefault("scan_interval", 60)
	v.SetDefault("schedule_file", "schedule.json")
	v.SetDefault("http.addr", ":5050")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}
	configuration := &Configuration{}
	if err := v.Unmarshal(configuration); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	if configuration.Mqtt.IpAddress == "" {
		return nil, fmt.Errorf("configuration is missing mqtt.ip_address")
	}

	return configuration, nil
}

func (m *Mqtt) ClientOptions(log *zap.SugaredLogger) *mqtt.ClientOptions {
	return mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%v:1883", m.IpAddress)).
		SetUsername(m.Username).
		SetPassword(m.Password).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(client mqtt.Client, err error) {
			log.Warnf("MQTT connection lost: %v", err)
		}).
		SetReconnectingHandler(func(client mqtt.Client, opts *mqtt.ClientOptions) {
			log.Infof("MQTT reconnecting")
		})
}
