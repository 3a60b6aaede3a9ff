package main

import (
	"log"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/victorjacobs/go-infinity/bridge"
	"github.com/victorjacobs/go-infinity/config"
	"github.com/victorjacobs/go-infinity/homeassistant"
	"github.com/victorjacobs/go-infinity/infinity"
	"github.com/victorjacobs/go-infinity/logging"
	"github.com/victorjacobs/go-infinity/routes"
	"github.com/victorjacobs/go-infinity/schedule"
)

func main() {
	cfg, err := config.LoadConfiguration("infinity.json")
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
		return
	}

	logger := logging.New(cfg.Logging).Sugar()

	manager := infinity.NewManager(infinity.SerialOpener(cfg.SerialPort, cfg.BaudRate), logger)

	store := schedule.NewStore(cfg.ScheduleFile)
	if err := store.Load(); err != nil {
		logger.Warnf("Error loading schedule, using defaults: %v", err)
	}

	b, err := bridge.New(manager, store, logger)
	if err != nil {
		logger.Fatalf("Error setting up bridge: %v", err)
		return
	}

	mqttOpts := cfg.Mqtt.ClientOptions(logger)
	mqttOpts.SetWill(homeassistant.AvailabilityTopic, "offline", 0, true)
	// Discovery and subscriptions go in the ConnectHandler to make sure
	// they are set up again after a reconnect.
	mqttOpts.SetOnConnectHandler(func(client mqtt.Client) {
		if err := b.RegisterClimate(client); err != nil {
			logger.Warnf("Error registering climate entity: %v", err)
		}
		if err := b.RegisterSensors(client); err != nil {
			logger.Warnf("Error registering sensors: %v", err)
		}

		b.SubscribeToCommands(client)
	})

	mqttClient := mqtt.NewClient(mqttOpts)
	if t := mqttClient.Connect(); t.Wait() && t.Error() != nil {
		logger.Fatalf("MQTT connection error: %v", t.Error())
		return
	}

	// Sensors and climate state
	scanInterval := time.Duration(cfg.ScanInterval) * time.Second
	go loopSafely(logger, func() {
		b.Poll(mqttClient)

		time.Sleep(scanInterval)
	})

	// Scheduler
	go loopSafely(logger, func() {
		b.SchedulerTick(time.Now())

		time.Sleep(time.Minute)
	})

	// Start httprouter
	prometheus.MustRegister(bridge.NewCollector(b))

	router := httprouter.New()
	router.GET("/api/status", routes.Status(b))
	router.POST("/api/set", routes.Set(b))
	router.GET("/api/schedule", routes.ScheduleGet(b))
	router.POST("/api/schedule", routes.ScheduleSave(b))
	router.POST("/api/schedule/mode", routes.ScheduleMode(b))
	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	go loopSafely(logger, func() {
		if err := http.ListenAndServe(cfg.HTTP.Addr, router); err != nil {
			logger.Errorf("HTTP server error: %v", err)
			time.Sleep(time.Second)
		}
	})

	select {}
}
