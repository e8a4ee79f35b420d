package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	log "github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v2"
	bolt "go.etcd.io/bbolt"

	"indiclient/pkg/client"
	"indiclient/pkg/indi"
	"indiclient/pkg/notify"
	"indiclient/pkg/settings"
	"indiclient/pkg/transport"
)

func run(c *cli.Context) error {
	if c.Bool("debug") {
		log.SetLevel(log.DebugLevel)
	}

	log.Info("INDI Watch")

	db, err := bolt.Open(c.String("db"), 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to open database: %v", err)
	}
	defer db.Close()

	store, err := settings.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create store: %v", err)
	}

	cfg, err := store.Get()
	if err != nil {
		return fmt.Errorf("failed to load settings: %v", err)
	}
	addr := cfg.ServerAddr
	if c.String("server") != "" {
		addr = c.String("server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := transport.DialTCP(ctx, addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %v", addr, err)
	}

	cl := client.New(conn, client.WithLogger(log.StandardLogger()))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		watchDevices(ctx, cl, &wg)
	}()

	<-ctx.Done()

	log.Info("Shutting down...")
	if err := cl.Close(); err != nil {
		log.Warnf("Close: %v", err)
	}
	wg.Wait()
	log.Info("Stopped")
	return nil
}

// watchDevices follows the device table and starts a watcher for every
// parameter as it is defined.
func watchDevices(ctx context.Context, cl *client.Client, wg *sync.WaitGroup) {
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
					watchParameter(ctx, device, handle)
				}(dev.Name(), handle)
			}
		}
	}
}

// watchParameter logs every update of one parameter until its stream ends.
func watchParameter(ctx context.Context, device string, handle *notify.Notify[indi.Parameter]) {
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

		log.WithFields(log.Fields{
			"device":    device,
			"parameter": param.Meta().Name,
			"state":     param.Meta().State,
			"gen":       param.Meta().Gen,
		}).Info(summarize(param))
	}
}

// summarize renders a parameter's element values on one line.
func summarize(param indi.Parameter) string {
	var parts []string
	switch p := param.(type) {
	case *indi.TextVector:
		for name, v := range p.Values {
			parts = append(parts, fmt.Sprintf("%s=%q", name, v.Value))
		}
	case *indi.NumberVector:
		for name, v := range p.Values {
			parts = append(parts, fmt.Sprintf("%s=%s", name, v.Value))
		}
	case *indi.SwitchVector:
		for name, v := range p.Values {
			parts = append(parts, fmt.Sprintf("%s=%s", name, v.Value))
		}
	case *indi.LightVector:
		for name, v := range p.Values {
			parts = append(parts, fmt.Sprintf("%s=%s", name, v.Value))
		}
	case *indi.BlobVector:
		for name, v := range p.Values {
			parts = append(parts, fmt.Sprintf("%s=%d bytes", name, v.Size))
		}
	}
	return strings.Join(parts, " ")
}

func main() {
	app := cli.App{
		Name:  "indi-watch",
		Usage: "Log every parameter update from an INDI server",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable debug logging",
				Value:   false,
				EnvVars: []string{"DEBUG"},
			},
			&cli.StringFlag{
				Name:    "db",
				Usage:   "Settings database path",
				Value:   "indi.db",
				EnvVars: []string{"INDI_DB"},
			},
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Usage:   "INDI server address, overrides the stored setting",
				EnvVars: []string{"INDI_SERVER"},
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
