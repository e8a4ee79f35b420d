package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"indiclient/pkg/client"
	"indiclient/pkg/indi"
	"indiclient/pkg/notify"
	"indiclient/pkg/transport"
)

// Config is the exporter's YAML configuration.
type Config struct {
	Listen string `yaml:"listen"`
	Server string `yaml:"server"`
}

func defaultConfig() Config {
	return Config{
		Listen: ":9624",
		Server: "indi:7624",
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

var (
	connectedGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "indi_connected",
		Help: "Whether the connection to the INDI server is up.",
	})
	valueGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "indi_parameter_value",
		Help: "Current value of a numeric or switch parameter element.",
	}, []string{"device", "parameter", "parameter_label", "value", "value_label"})
	stateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "indi_parameter_state",
		Help: "Parameter state, one series per state with the active one set to 1.",
	}, []string{"device", "parameter", "state"})
)

var allStates = []indi.PropertyState{
	indi.StateIdle, indi.StateOk, indi.StateBusy, indi.StateAlert,
}

// export publishes one parameter update to the gauges.
func export(device string, param indi.Parameter) {
	meta := param.Meta()
	for _, state := range allStates {
		v := 0.0
		if state == meta.State {
			v = 1.0
		}
		stateGauge.WithLabelValues(device, meta.Name, string(state)).Set(v)
	}

	switch p := param.(type) {
	case *indi.NumberVector:
		for name, v := range p.Values {
			valueGauge.WithLabelValues(device, meta.Name, meta.Label, name, v.Label).
				Set(v.Value.Value())
		}
	case *indi.SwitchVector:
		for name, v := range p.Values {
			set := 0.0
			if v.Value.Bool() {
				set = 1.0
			}
			valueGauge.WithLabelValues(device, meta.Name, meta.Label, name, v.Label).
				Set(set)
		}
	}
}

// drop removes every series of a deleted parameter.
func drop(device, parameter string) {
	valueGauge.DeletePartialMatch(prometheus.Labels{"device": device, "parameter": parameter})
	stateGauge.DeletePartialMatch(prometheus.Labels{"device": device, "parameter": parameter})
}

// follow tracks the device table and keeps the gauges current.
func follow(ctx context.Context, cl *client.Client, wg *sync.WaitGroup) {
	sub := cl.Devices().Subscribe()
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
					followParameter(ctx, device, handle)
				}(dev.Name(), handle)
			}
		}
	}
}

func followParameter(ctx context.Context, device string, handle *notify.Notify[indi.Parameter]) {
	var name string
	sub := handle.Subscribe()
	defer sub.Unsubscribe()

	for {
		snap, err := sub.Next(ctx)
		if errors.Is(err, notify.ErrInvalidated) {
			continue
		}
		if err != nil {
			if name != "" {
				drop(device, name)
			}
			return
		}
		param := snap.Value()
		snap.Release()
		name = param.Meta().Name
		export(device, param)
	}
}

func run(c *cli.Context) error {
	if c.Bool("debug") {
		log.SetLevel(log.DebugLevel)
	}

	log.Info("INDI Exporter")

	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}
	if c.String("server") != "" {
		cfg.Server = c.String("server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := transport.DialTCP(ctx, cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %v", cfg.Server, err)
	}

	cl := client.New(conn, client.WithLogger(log.StandardLogger()))
	connectedGauge.Set(1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		follow(ctx, cl, &wg)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		trackConnection(ctx, cl)
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: mux,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Debugf("Metrics listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", srv.Addr, err)
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx2); err != nil {
		return fmt.Errorf("server forced to shutdown: %v", err)
	}
	if err := cl.Close(); err != nil {
		log.Warnf("Close: %v", err)
	}

	wg.Wait()
	log.Info("Stopped")
	return nil
}

// trackConnection mirrors the client's connection flag into the gauge.
func trackConnection(ctx context.Context, cl *client.Client) {
	sub := cl.Connected().Subscribe()
	defer sub.Unsubscribe()
	for {
		snap, err := sub.Next(ctx)
		if errors.Is(err, notify.ErrInvalidated) {
			continue
		}
		if err != nil {
			connectedGauge.Set(0)
			return
		}
		up := snap.Value()
		snap.Release()
		if up {
			connectedGauge.Set(1)
		} else {
			connectedGauge.Set(0)
		}
	}
}

func main() {
	app := cli.App{
		Name:  "indi-exporter",
		Usage: "Export INDI parameters as Prometheus metrics",
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
				EnvVars: []string{"INDI_EXPORTER_CONFIG"},
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
