// Package client maintains a live, reactive mirror of an INDI server's
// devices and implements the change-and-confirm protocol on top of it.
package client

import (
	"errors"
	"io"
	"maps"
	"net"
	"slices"
	"sync"

	log "github.com/sirupsen/logrus"
	xmaps "golang.org/x/exp/maps"

	"indiclient/pkg/indi"
	"indiclient/pkg/notify"
)

// ErrClientClosed is returned by Send once the connection is shut down.
var ErrClientClosed = errors.New("client: closed")

// Conn is a transport carrying whole commands in both directions. Read and
// Write must each be safe for one dedicated goroutine; Close unblocks both.
type Conn interface {
	Read() (indi.Command, error)
	Write(cmd indi.Command) error
	Close() error
}

// DeviceMap is the client's device table, keyed by device name. Committed
// maps are immutable; consumers may hold them after releasing the snapshot.
type DeviceMap map[string]*Device

// Client mirrors a server's device tree. A read loop folds incoming commands
// into reactive state; a write loop serializes outgoing commands.
type Client struct {
	log       log.FieldLogger
	conn      Conn
	devices   *notify.Notify[DeviceMap]
	connected *notify.Notify[bool]
	outgoing  chan indi.Command

	done     chan struct{}
	stopping sync.Once
	teardown sync.Once
	wg       sync.WaitGroup
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client's logger.
func WithLogger(logger log.FieldLogger) Option {
	return func(c *Client) { c.log = logger }
}

// New starts a client on conn and requests the server's property definitions.
func New(conn Conn, opts ...Option) *Client {
	c := &Client{
		conn:     conn,
		outgoing: make(chan indi.Command, 16),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = log.StandardLogger()
	}
	c.log = c.log.WithField("component", "client")
	c.devices = notify.New(DeviceMap{}, notify.WithLogger(c.log))
	c.connected = notify.New(true, notify.WithLogger(c.log))

	c.wg.Add(2)
	go c.readLoop()
	go c.writeLoop()

	if err := c.Send(&indi.GetProperties{Version: indi.ProtocolVersion}); err != nil {
		c.log.WithError(err).Error("Failed to request properties")
	}
	return c
}

// Devices returns the reactive device table.
func (c *Client) Devices() *notify.Notify[DeviceMap] { return c.devices }

// Connected returns a reactive flag that drops to false when the connection
// ends.
func (c *Client) Connected() *notify.Notify[bool] { return c.connected }

// DeviceNames returns the currently defined device names, sorted.
func (c *Client) DeviceNames() []string {
	names := xmaps.Keys(c.deviceMap())
	slices.Sort(names)
	return names
}

// Device returns a handle for operating on the named device. The device need
// not be defined yet; operations resolve it when used.
func (c *Client) Device(name string) *ActiveDevice {
	return &ActiveDevice{client: c, name: name}
}

// Send queues a command for the write loop. Once the client is shut down,
// locally or by a transport failure, Send returns ErrClientClosed instead of
// queueing into a channel nothing drains.
func (c *Client) Send(cmd indi.Command) error {
	if c.closing() {
		return ErrClientClosed
	}
	select {
	case c.outgoing <- cmd:
		return nil
	case <-c.done:
		return ErrClientClosed
	}
}

// Close shuts the connection down and waits for both loops to finish.
// Subscribers of the device table and its parameters observe the end of
// their streams.
func (c *Client) Close() error {
	c.stopping.Do(func() { close(c.done) })
	err := c.conn.Close()
	c.wg.Wait()
	return err
}

func (c *Client) readLoop() {
	defer c.wg.Done()
	defer c.close()
	for {
		cmd, err := c.conn.Read()
		if err != nil {
			var unknown *indi.UnknownTagError
			if errors.As(err, &unknown) {
				c.log.WithField("tag", unknown.Tag).Warn("Skipping unknown command")
				continue
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) && !c.closing() {
				c.log.WithError(err).Error("Connection lost")
			}
			return
		}
		c.handle(cmd)
	}
}

func (c *Client) writeLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case cmd := <-c.outgoing:
			if err := c.conn.Write(cmd); err != nil {
				if !c.closing() {
					c.log.WithError(err).Error("Failed to send command")
				}
				// A failed write ends the session: closing the
				// connection unblocks the read loop, which runs
				// the teardown so subscribers see the end of
				// their streams.
				c.stopping.Do(func() { close(c.done) })
				c.conn.Close()
				return
			}
		}
	}
}

// handle folds one incoming command into the device table. The read loop is
// the single writer of both the table and the parameter containers.
func (c *Client) handle(cmd indi.Command) {
	switch cmd := cmd.(type) {
	case indi.Definition:
		m := c.deviceMap()
		dev := m[cmd.DeviceName()]
		if dev == nil {
			dev = newDevice(cmd.DeviceName(), c.log)
		}
		if next := dev.define(cmd); next != dev || m[cmd.DeviceName()] == nil {
			c.storeDevice(m, next)
		}

	case indi.Update:
		dev := c.deviceMap()[cmd.DeviceName()]
		if dev == nil {
			c.log.WithField("device", cmd.DeviceName()).
				Warn("Update for unknown device")
			return
		}
		if err := dev.apply(cmd); err != nil {
			c.log.WithError(err).Warn("Dropping update")
		}

	case *indi.DelProperty:
		m := c.deviceMap()
		dev := m[cmd.Device]
		if dev == nil {
			c.log.WithField("device", cmd.Device).
				Warn("Delete for unknown device")
			return
		}
		next, err := dev.remove(cmd.Name)
		if err != nil {
			c.log.WithError(err).Warn("Dropping delete")
			return
		}
		clone := maps.Clone(m)
		if next == nil || next.empty() {
			if next != nil {
				next.closeAll()
			}
			delete(clone, cmd.Device)
		} else {
			clone[cmd.Device] = next
		}
		c.devices.Set(clone)

	case *indi.Message:
		c.log.WithField("device", cmd.Device).Info(cmd.Message)

	default:
		// new*/enableBLOB/getProperties are client-to-server only.
		c.log.WithField("device", cmd.DeviceName()).
			Warn("Ignoring client-bound command from server")
	}
}

func (c *Client) deviceMap() DeviceMap {
	return c.devices.Get()
}

func (c *Client) storeDevice(m DeviceMap, dev *Device) {
	clone := maps.Clone(m)
	clone[dev.Name()] = dev
	c.devices.Set(clone)
}

func (c *Client) closing() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// close ends every reactive stream after the read loop exits.
func (c *Client) close() {
	c.teardown.Do(func() {
		c.stopping.Do(func() { close(c.done) })
		for _, dev := range c.deviceMap() {
			dev.closeAll()
		}
		c.connected.Set(false)
		c.connected.Close()
		c.devices.Close()
	})
}
