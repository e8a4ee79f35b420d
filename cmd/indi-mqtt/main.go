package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"indiclient/pkg/client"
	"indiclient/pkg/indi"
	"indiclient/pkg/notify"
	"indiclient/pkg/transport"
)

// Config is the bridge's YAML configuration.
type Config struct {
	Broker    string `yaml:"broker"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	TopicRoot string `yaml:"topic_root"`
	Server    string `yaml:"server"`
}

func defaultConfig() Config {
	return Config{
		Broker:    "tcp://localhost:1883",
		TopicRoot: "indi",
		Server:    "indi:7624",
	}
}

func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %v", path, err)
	}
	return cfg, nil
}

// createMQTTClient initializes and connects a new MQTT client.
func createMQTTClient(cfg Config) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.SetClientID("indi-mqtt")
	opts.AddBroker(cfg.Broker)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)

	mqttClient := mqtt.NewClient(opts)
	if token := mqttClient.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %v", token.Error())
	}
	return mqttClient, nil
}

// bridge forwards parameter updates to MQTT and change requests back.
type bridge struct {
	cfg    Config
	mqtt   mqtt.Client
	client *client.Client
	logger log.FieldLogger
}

// paramMessage is the JSON payload published per parameter update.
type paramMessage struct {
	State  indi.PropertyState `json:"state"`
	Gen    uint64             `json:"gen"`
	Values map[string]any     `json:"values"`
}

func message(param indi.Parameter) paramMessage {
	msg := paramMessage{
		State:  param.Meta().State,
		Gen:    param.Meta().Gen,
		Values: map[string]any{},
	}
	switch p := param.(type) {
	case *indi.TextVector:
		for name, v := range p.Values {
			msg.Values[name] = v.Value
		}
	case *indi.NumberVector:
		for name, v := range p.Values {
			msg.Values[name] = v.Value.Value()
		}
	case *indi.SwitchVector:
		for name, v := range p.Values {
			msg.Values[name] = v.Value.Bool()
		}
	case *indi.LightVector:
		for name, v := range p.Values {
			msg.Values[name] = string(v.Value)
		}
	case *indi.BlobVector:
		for name, v := range p.Values {
			msg.Values[name] = v.Size
		}
	}
	return msg
}

// publish sends one parameter update to <root>/<device>/<parameter>.
func (b *bridge) publish(device string, param indi.Parameter) {
	payload, err := json.Marshal(message(param))
	if err != nil {
		b.logger.WithError(err).Warn("Failed to encode update")
		return
	}
	topic := fmt.Sprintf("%s/%s/%s", b.cfg.TopicRoot, device, param.Meta().Name)
	b.mqtt.Publish(topic, 0, true, payload)
}

// follow tracks the device table and publishes every parameter update.
func (b *bridge) follow(ctx context.Context, wg *sync.WaitGroup) {
	sub := b.client.Devices().Subscribe()
	defer sub.Unsubscribe()

	seen := map[*notify.Notify[indi.Parameter]]struct{}{}
	for {
		snap, err := sub.Next(ctx)
		if errors.Is(err, notify.ErrInvalidated) {
			continue
		}
		if err != nil {
			return
		}
		devices := snap.Value()
		snap.Release()

		for _, dev := range devices {
			for _, name := range dev.Names() {
				handle, ok := dev.Parameter(name)
				if !ok {
					continue
				}
				if _, watched := seen[handle]; watched {
					continue
				}
				seen[handle] = struct{}{}
				wg.Add(1)
				go func(device string, handle *notify.Notify[indi.Parameter]) {
					defer wg.Done()
					b.followParameter(ctx, device, handle)
				}(dev.Name(), handle)
			}
		}
	}
}

func (b *bridge) followParameter(ctx context.Context, device string, handle *notify.Notify[indi.Parameter]) {
	sub := handle.Subscribe()
	defer sub.Unsubscribe()
	for {
		snap, err := sub.Next(ctx)
		if errors.Is(err, notify.ErrInvalidated) {
			continue
		}
		if err != nil {
			return
		}
		param := snap.Value()
		snap.Release()
		b.publish(device, param)
	}
}

// handleSet processes <root>/<device>/<parameter>/set messages. The payload
// is a JSON object of element values; the request is sent without waiting for
// confirmation.
func (b *bridge) handleSet(ctx context.Context) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		parts := strings.Split(msg.Topic(), "/")
		if len(parts) < 4 {
			return
		}
		device, param := parts[len(parts)-3], parts[len(parts)-2]
		logger := b.logger.WithFields(log.Fields{"device": device, "parameter": param})

		var raw map[string]any
		if err := json.Unmarshal(msg.Payload(), &raw); err != nil {
			logger.WithError(err).Warn("Bad set payload")
			return
		}

		handle, err := b.client.Device(device).Parameter(ctx, param)
		if err != nil {
			logger.WithError(err).Warn("Unknown parameter")
			return
		}
		values, err := valuesFor(handle.Get(), raw)
		if err != nil {
			logger.WithError(err).Warn("Bad set values")
			return
		}
		if err := handle.Set(values); err != nil {
			logger.WithError(err).Warn("Failed to send change")
		}
	}
}

// valuesFor converts a JSON element map into typed values matching the
// parameter's kind.
func valuesFor(param indi.Parameter, raw map[string]any) (client.Values, error) {
	switch param.(type) {
	case *indi.TextVector:
		values := client.TextValues{}
		for name, v := range raw {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("element %s: want string, got %T", name, v)
			}
			values[name] = s
		}
		return values, nil

	case *indi.NumberVector:
		values := client.NumberValues{}
		for name, v := range raw {
			switch v := v.(type) {
			case float64:
				values[name] = indi.Decimal(v)
			case string:
				s, err := indi.ParseSexagesimal(v)
				if err != nil {
					return nil, fmt.Errorf("element %s: %v", name, err)
				}
				values[name] = s
			default:
				return nil, fmt.Errorf("element %s: want number, got %T", name, v)
			}
		}
		return values, nil

	case *indi.SwitchVector:
		values := client.SwitchValues{}
		for name, v := range raw {
			on, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("element %s: want bool, got %T", name, v)
			}
			values[name] = indi.SwitchFromBool(on)
		}
		return values, nil
	}
	return nil, fmt.Errorf("parameter %s is not settable", param.Meta().Name)
}

func run(c *cli.Context) error {
	if c.Bool("debug") {
		log.SetLevel(log.DebugLevel)
	}

	log.Info("INDI MQTT Bridge")

	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}
	if c.String("server") != "" {
		cfg.Server = c.String("server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mqttClient, err := createMQTTClient(cfg)
	if err != nil {
		return err
	}
	defer mqttClient.Disconnect(250)

	conn, err := transport.DialTCP(ctx, cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %v", cfg.Server, err)
	}

	b := &bridge{
		cfg:    cfg,
		mqtt:   mqttClient,
		client: client.New(conn, client.WithLogger(log.StandardLogger())),
		logger: log.WithField("component", "bridge"),
	}

	setTopic := fmt.Sprintf("%s/+/+/set", cfg.TopicRoot)
	if token := mqttClient.Subscribe(setTopic, 0, b.handleSet(ctx)); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to %s: %v", setTopic, token.Error())
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.follow(ctx, &wg)
	}()

	<-ctx.Done()

	log.Info("Shutting down...")
	if err := b.client.Close(); err != nil {
		log.Warnf("Close: %v", err)
	}
	wg.Wait()
	log.Info("Stopped")
	return nil
}

func main() {
	app := cli.App{
		Name:  "indi-mqtt",
		Usage: "Bridge INDI parameters to MQTT",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable debug logging",
				Value:   false,
				EnvVars: []string{"DEBUG"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
				EnvVars: []string{"INDI_MQTT_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Usage:   "INDI server address, overrides the configured one",
				EnvVars: []string{"INDI_SERVER"},
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
