package client

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indiclient/pkg/indi"
	"indiclient/pkg/notify"
	"indiclient/pkg/transport"
)

// fakeServer drives the server end of a net.Pipe.
type fakeServer struct {
	conn net.Conn
	enc  *indi.Encoder
	cmds chan indi.Command
}

func startClient(t *testing.T) (*Client, *fakeServer) {
	t.Helper()
	clientEnd, serverEnd := net.Pipe()

	srv := &fakeServer{
		conn: serverEnd,
		enc:  indi.NewEncoder(serverEnd),
		cmds: make(chan indi.Command, 16),
	}
	go func() {
		dec := indi.NewDecoder(serverEnd)
		for {
			cmd, err := dec.Next()
			if err != nil {
				close(srv.cmds)
				return
			}
			srv.cmds <- cmd
		}
	}()

	cl := New(transport.NewStreamConn(clientEnd))
	t.Cleanup(func() {
		cl.Close()
		serverEnd.Close()
	})

	// The client introduces itself with getProperties.
	first := srv.next(t)
	gp, ok := first.(*indi.GetProperties)
	require.True(t, ok)
	assert.Equal(t, indi.ProtocolVersion, gp.Version)

	return cl, srv
}

func (s *fakeServer) next(t *testing.T) indi.Command {
	t.Helper()
	select {
	case cmd, ok := <-s.cmds:
		require.True(t, ok, "server stream closed")
		return cmd
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client command")
		return nil
	}
}

func (s *fakeServer) send(t *testing.T, cmd indi.Command) {
	t.Helper()
	require.NoError(t, s.enc.Write(cmd))
}

func connectionDef() *indi.DefSwitchVector {
	return &indi.DefSwitchVector{
		Device: "CCD Simulator", Name: "CONNECTION", Label: "Connection",
		Group: "Main Control", State: indi.StateIdle, Perm: indi.PermReadWrite,
		Rule: indi.RuleOneOfMany,
		Switches: []indi.DefSwitch{
			{Name: "CONNECT", Label: "Connect", Value: indi.SwitchOff},
			{Name: "DISCONNECT", Label: "Disconnect", Value: indi.SwitchOn},
		},
	}
}

func TestClientFoldsDefinitionAndUpdate(t *testing.T) {
	cl, srv := startClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv.send(t, connectionDef())

	param, err := cl.Device("CCD Simulator").Parameter(ctx, "CONNECTION")
	require.NoError(t, err)

	sub := param.Subscribe()
	defer sub.Unsubscribe()

	snap, err := sub.Next(ctx)
	require.NoError(t, err)
	defined := snap.Value()
	snap.Release()

	vec, ok := defined.(*indi.SwitchVector)
	require.True(t, ok)
	assert.Equal(t, uint64(0), vec.Gen)
	assert.Equal(t, indi.RuleOneOfMany, vec.Rule)
	assert.Equal(t, indi.SwitchOff, vec.Values["CONNECT"].Value)

	srv.send(t, &indi.SetSwitchVector{
		Device: "CCD Simulator", Name: "CONNECTION", State: indi.StateOk,
		Switches: []indi.OneSwitch{
			{Name: "CONNECT", Value: indi.SwitchOn},
			{Name: "DISCONNECT", Value: indi.SwitchOff},
		},
	})

	snap, err = sub.Next(ctx)
	require.NoError(t, err)
	updated := snap.Value()
	snap.Release()

	vec = updated.(*indi.SwitchVector)
	assert.Equal(t, uint64(1), vec.Gen)
	assert.Equal(t, indi.StateOk, vec.State)
	assert.Equal(t, indi.SwitchOn, vec.Values["CONNECT"].Value)
	// Labels come from the definition, not the update.
	assert.Equal(t, "Connect", vec.Values["CONNECT"].Label)
}

func TestRedefinitionResetsGeneration(t *testing.T) {
	cl, srv := startClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv.send(t, connectionDef())
	param, err := cl.Device("CCD Simulator").Parameter(ctx, "CONNECTION")
	require.NoError(t, err)

	srv.send(t, &indi.SetSwitchVector{
		Device: "CCD Simulator", Name: "CONNECTION", State: indi.StateOk,
		Switches: []indi.OneSwitch{{Name: "CONNECT", Value: indi.SwitchOn}},
	})

	sub := param.Changes()
	defer sub.Unsubscribe()

	redef := connectionDef()
	redef.Label = "Connection (new)"
	srv.send(t, redef)

	got, err := notify.WaitFn(ctx, sub, 2*time.Second,
		func(p indi.Parameter) (indi.Parameter, bool, error) {
			return p, p.Meta().Label == "Connection (new)", nil
		})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got.Meta().Gen)
	assert.Equal(t, indi.SwitchOff, got.(*indi.SwitchVector).Values["CONNECT"].Value)
}

func TestParameterMissing(t *testing.T) {
	cl, srv := startClient(t)
	srv.send(t, connectionDef())

	tests := []struct {
		name      string
		device    string
		parameter string
	}{
		{name: "Unknown device", device: "Nope", parameter: "CONNECTION"},
		{name: "Unknown parameter", device: "CCD Simulator", parameter: "NOPE"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := cl.Device(tc.device).Parameter(context.Background(), tc.parameter)
			assert.ErrorIs(t, err, ErrParameterMissing)
		})
	}
}

func TestChangeShortCircuitsWhenEqual(t *testing.T) {
	cl, srv := startClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv.send(t, connectionDef())

	// DISCONNECT is already On; no command should go out.
	param, err := cl.Device("CCD Simulator").Change(ctx, "CONNECTION",
		SwitchValues{"DISCONNECT": indi.SwitchOn})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), param.Meta().Gen)

	// Anything the client had sent would arrive before the pipe closes.
	cl.Close()
	for cmd := range srv.cmds {
		_, sent := cmd.(*indi.NewSwitchVector)
		assert.False(t, sent, "no change command should have been sent")
	}
}

func TestChangeSendsAndConfirms(t *testing.T) {
	cl, srv := startClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv.send(t, connectionDef())

	type result struct {
		param indi.Parameter
		err   error
	}
	results := make(chan result, 1)
	go func() {
		p, err := cl.Device("CCD Simulator").Change(ctx, "CONNECTION",
			SwitchValues{"CONNECT": indi.SwitchOn, "DISCONNECT": indi.SwitchOff})
		results <- result{p, err}
	}()

	cmd := srv.next(t)
	nsv, ok := cmd.(*indi.NewSwitchVector)
	require.True(t, ok)
	assert.Equal(t, "CCD Simulator", nsv.Device)
	assert.Equal(t, "CONNECTION", nsv.Name)

	// Busy first, then the confirmation.
	srv.send(t, &indi.SetSwitchVector{
		Device: "CCD Simulator", Name: "CONNECTION", State: indi.StateBusy,
		Switches: []indi.OneSwitch{
			{Name: "CONNECT", Value: indi.SwitchOn},
			{Name: "DISCONNECT", Value: indi.SwitchOff},
		},
	})
	srv.send(t, &indi.SetSwitchVector{
		Device: "CCD Simulator", Name: "CONNECTION", State: indi.StateOk,
		Switches: []indi.OneSwitch{
			{Name: "CONNECT", Value: indi.SwitchOn},
			{Name: "DISCONNECT", Value: indi.SwitchOff},
		},
	})

	res := <-results
	require.NoError(t, res.err)
	assert.Equal(t, indi.StateOk, res.param.Meta().State)
	assert.Equal(t, uint64(2), res.param.Meta().Gen)
}

func TestChangeRejected(t *testing.T) {
	cl, srv := startClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv.send(t, connectionDef())

	errs := make(chan error, 1)
	go func() {
		_, err := cl.Device("CCD Simulator").Change(ctx, "CONNECTION",
			SwitchValues{"CONNECT": indi.SwitchOn})
		errs <- err
	}()

	require.IsType(t, &indi.NewSwitchVector{}, srv.next(t))
	srv.send(t, &indi.SetSwitchVector{
		Device: "CCD Simulator", Name: "CONNECTION", State: indi.StateAlert,
		Switches: []indi.OneSwitch{{Name: "CONNECT", Value: indi.SwitchOff}},
	})

	assert.ErrorIs(t, <-errs, ErrRejected)
}

func TestChangeTimesOutWithoutResponse(t *testing.T) {
	cl, srv := startClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	def := connectionDef()
	timeout := uint(1)
	def.Timeout = &timeout
	srv.send(t, def)

	_, err := cl.Device("CCD Simulator").Change(ctx, "CONNECTION",
		SwitchValues{"CONNECT": indi.SwitchOn})
	assert.ErrorIs(t, err, notify.ErrTimeout)
}

func TestChangeNumberPreservesBounds(t *testing.T) {
	cl, srv := startClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv.send(t, &indi.DefNumberVector{
		Device: "Telescope Simulator", Name: "EQUATORIAL_EOD_COORD",
		State: indi.StateIdle, Perm: indi.PermReadWrite,
		Numbers: []indi.DefNumber{
			{Name: "RA", Min: 0, Max: 24, Step: 0.5, Value: indi.Decimal(0)},
			{Name: "DEC", Min: -90, Max: 90, Value: indi.Decimal(0)},
		},
	})

	type result struct {
		param indi.Parameter
		err   error
	}
	results := make(chan result, 1)
	go func() {
		p, err := cl.Device("Telescope Simulator").Change(ctx, "EQUATORIAL_EOD_COORD",
			NumberValues{"DEC": indi.Sexagesimal{Hour: -10, Minute: 30, Second: 18, Parts: 3}})
		results <- result{p, err}
	}()

	cmd := srv.next(t)
	nnv, ok := cmd.(*indi.NewNumberVector)
	require.True(t, ok)
	require.Len(t, nnv.Numbers, 1)
	assert.Equal(t, "-10:30:18", nnv.Numbers[0].Value.String())

	// Confirm with the decimal form; equality is canonical.
	srv.send(t, &indi.SetNumberVector{
		Device: "Telescope Simulator", Name: "EQUATORIAL_EOD_COORD", State: indi.StateOk,
		Numbers: []indi.OneNumber{{Name: "DEC", Value: indi.Decimal(-10.505)}},
	})

	res := <-results
	require.NoError(t, res.err)
	vec := res.param.(*indi.NumberVector)
	assert.Equal(t, -10.505, vec.Values["DEC"].Value.Value())
	assert.Equal(t, -90.0, vec.Values["DEC"].Min)
	assert.Equal(t, 90.0, vec.Values["DEC"].Max)
	assert.Equal(t, 24.0, vec.Values["RA"].Max)
}

func TestDelPropertyRemovesParameter(t *testing.T) {
	cl, srv := startClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv.send(t, connectionDef())
	srv.send(t, &indi.DefTextVector{
		Device: "CCD Simulator", Name: "DRIVER_INFO",
		State: indi.StateIdle, Perm: indi.PermReadOnly,
		Texts: []indi.DefText{{Name: "NAME", Value: "indi_simulator_ccd"}},
	})

	param, err := cl.Device("CCD Simulator").Parameter(ctx, "DRIVER_INFO")
	require.NoError(t, err)
	sub := param.Subscribe()
	defer sub.Unsubscribe()

	srv.send(t, &indi.DelProperty{Device: "CCD Simulator", Name: "DRIVER_INFO"})

	_, err = notify.WaitFn(ctx, sub, 2*time.Second,
		func(indi.Parameter) (struct{}, bool, error) {
			return struct{}{}, false, nil
		})
	assert.ErrorIs(t, err, notify.ErrEndOfStream)

	// The sibling parameter is untouched.
	_, err = cl.Device("CCD Simulator").Parameter(ctx, "CONNECTION")
	assert.NoError(t, err)
}

func TestDelPropertyRemovesDevice(t *testing.T) {
	cl, srv := startClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv.send(t, connectionDef())
	_, err := cl.Device("CCD Simulator").Parameter(ctx, "CONNECTION")
	require.NoError(t, err)

	sub := cl.Devices().Changes()
	defer sub.Unsubscribe()

	srv.send(t, &indi.DelProperty{Device: "CCD Simulator"})

	_, err = notify.WaitFn(ctx, sub, 2*time.Second,
		func(m DeviceMap) (struct{}, bool, error) {
			_, present := m["CCD Simulator"]
			return struct{}{}, !present, nil
		})
	assert.NoError(t, err)
}

func TestDeviceNames(t *testing.T) {
	cl, srv := startClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv.send(t, connectionDef())
	def := connectionDef()
	def.Device = "Telescope Simulator"
	srv.send(t, def)

	_, err := cl.Device("Telescope Simulator").Parameter(ctx, "CONNECTION")
	require.NoError(t, err)

	assert.Equal(t, []string{"CCD Simulator", "Telescope Simulator"}, cl.DeviceNames())

	dev := cl.Devices().Get()["CCD Simulator"]
	require.NotNil(t, dev)
	assert.Equal(t, "CCD Simulator", dev.Name())
	assert.Equal(t, []string{"CONNECTION"}, dev.Names())
	assert.Equal(t, []string{"Main Control"}, dev.Groups())
}

func TestParameterOrderFollowsDefinition(t *testing.T) {
	cl, srv := startClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv.send(t, &indi.DefNumberVector{
		Device: "CCD Simulator", Name: "SIMULATOR_SETTINGS", Group: "Simulator Config",
		State: indi.StateIdle, Perm: indi.PermReadWrite,
		Numbers: []indi.DefNumber{{Name: "SIM_XRES", Value: indi.Decimal(1280)}},
	})
	srv.send(t, connectionDef())
	srv.send(t, &indi.DefTextVector{
		Device: "CCD Simulator", Name: "ACTIVE_DEVICES", Group: "Options",
		State: indi.StateIdle, Perm: indi.PermReadWrite,
		Texts: []indi.DefText{{Name: "ACTIVE_TELESCOPE", Value: "Telescope Simulator"}},
	})

	_, err := cl.Device("CCD Simulator").Parameter(ctx, "ACTIVE_DEVICES")
	require.NoError(t, err)

	dev := cl.Devices().Get()["CCD Simulator"]
	require.NotNil(t, dev)
	assert.Equal(t, []string{"SIMULATOR_SETTINGS", "CONNECTION", "ACTIVE_DEVICES"}, dev.Names())
	assert.Equal(t, []string{"Simulator Config", "Main Control", "Options"}, dev.Groups())

	sub := cl.Devices().Changes()
	defer sub.Unsubscribe()
	srv.send(t, &indi.DelProperty{Device: "CCD Simulator", Name: "SIMULATOR_SETTINGS"})

	dev, err = notify.WaitFn(ctx, sub, 2*time.Second,
		func(m DeviceMap) (*Device, bool, error) {
			d := m["CCD Simulator"]
			return d, d != nil && len(d.Names()) == 2, nil
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"CONNECTION", "ACTIVE_DEVICES"}, dev.Names())
	assert.Equal(t, []string{"Main Control", "Options"}, dev.Groups())
}

func TestApplyUnknownParameterKeepsTable(t *testing.T) {
	dev := newDevice("CCD Simulator", log.StandardLogger()).define(connectionDef())

	err := dev.apply(&indi.SetSwitchVector{
		Device: "CCD Simulator", Name: "NOPE", State: indi.StateOk,
		Switches: []indi.OneSwitch{{Name: "CONNECT", Value: indi.SwitchOn}},
	})
	assert.ErrorIs(t, err, ErrParameterMissing)

	assert.Equal(t, []string{"CONNECTION"}, dev.Names())
	n, ok := dev.Parameter("CONNECTION")
	require.True(t, ok)
	assert.Equal(t, uint64(0), n.Get().Meta().Gen)
	assert.Equal(t, indi.SwitchOff, n.Get().(*indi.SwitchVector).Values["CONNECT"].Value)
}

func TestRemoveUnknownParameterKeepsTable(t *testing.T) {
	dev := newDevice("CCD Simulator", log.StandardLogger()).define(connectionDef())

	next, err := dev.remove("NOPE")
	assert.ErrorIs(t, err, ErrParameterMissing)
	assert.Same(t, dev, next)
	assert.Equal(t, []string{"CONNECTION"}, dev.Names())
}

func TestCloseEndsDeviceStream(t *testing.T) {
	cl, _ := startClient(t)

	sub := cl.Devices().Subscribe()
	defer sub.Unsubscribe()

	require.NoError(t, cl.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		snap, err := sub.Next(ctx)
		if err != nil {
			assert.ErrorIs(t, err, notify.ErrEndOfStream)
			return
		}
		snap.Release()
	}
}

// brokenConn fails every write and blocks reads until closed.
type brokenConn struct {
	closed chan struct{}
	once   sync.Once
}

func newBrokenConn() *brokenConn { return &brokenConn{closed: make(chan struct{})} }

func (c *brokenConn) Read() (indi.Command, error) {
	<-c.closed
	return nil, net.ErrClosed
}

func (c *brokenConn) Write(indi.Command) error { return errors.New("broken pipe") }

func (c *brokenConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func TestWriteFailureEndsSession(t *testing.T) {
	// The initial getProperties write fails; the whole session must come
	// down rather than leaving a send queue nothing drains.
	cl := New(newBrokenConn())

	sub := cl.Devices().Subscribe()
	defer sub.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		snap, err := sub.Next(ctx)
		if err != nil {
			require.ErrorIs(t, err, notify.ErrEndOfStream)
			break
		}
		snap.Release()
	}

	assert.False(t, cl.Connected().Get())
	assert.ErrorIs(t, cl.Send(&indi.GetProperties{Version: indi.ProtocolVersion}),
		ErrClientClosed)
	require.NoError(t, cl.Close())
}
