package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"indiclient/pkg/indi"
	"indiclient/pkg/notify"
)

// resolveGrace is how long parameter resolution waits for a definition to
// arrive before giving up. Definitions normally stream in right after the
// initial getProperties, so a short grace period suffices.
const resolveGrace = time.Second

// ErrRejected is returned when the device answers a change request with an
// Alert state.
var ErrRejected = errors.New("client: change rejected by device")

// ActiveDevice is a handle for operating on one device. It is cheap to create
// and resolves parameters lazily, waiting up to the grace period for
// definitions that are still in flight.
type ActiveDevice struct {
	client *Client
	name   string
}

// Name returns the device name.
func (d *ActiveDevice) Name() string { return d.name }

// Parameter resolves the named parameter, waiting up to the grace period for
// it to be defined.
func (d *ActiveDevice) Parameter(ctx context.Context, name string) (*ActiveParameter, error) {
	handle, err := d.resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	return &ActiveParameter{device: d, name: name, handle: handle}, nil
}

// Change requests new values for the named parameter and waits for the device
// to confirm them. See ActiveParameter.Change.
func (d *ActiveDevice) Change(ctx context.Context, name string, values Values) (indi.Parameter, error) {
	param, err := d.Parameter(ctx, name)
	if err != nil {
		return nil, err
	}
	return param.Change(ctx, values)
}

// EnableBlob asks the server to start or stop sending blob payloads for this
// device. The request is sent without waiting for an acknowledgement, but
// only after the device has at least one defined parameter, so the server
// knows the device.
func (d *ActiveDevice) EnableBlob(ctx context.Context, enabled indi.BlobEnable) error {
	if err := d.await(ctx); err != nil {
		return err
	}
	return d.client.Send(&indi.EnableBlob{Device: d.name, Enabled: enabled})
}

// resolve waits up to the grace period for the parameter's container.
func (d *ActiveDevice) resolve(ctx context.Context, name string) (*notify.Notify[indi.Parameter], error) {
	sub := d.client.devices.Subscribe()
	defer sub.Unsubscribe()

	handle, err := notify.WaitFn(ctx, sub, resolveGrace,
		func(m DeviceMap) (*notify.Notify[indi.Parameter], bool, error) {
			dev := m[d.name]
			if dev == nil {
				return nil, false, nil
			}
			n, ok := dev.Parameter(name)
			return n, ok, nil
		})
	if errors.Is(err, notify.ErrTimeout) || errors.Is(err, notify.ErrEndOfStream) {
		return nil, fmt.Errorf("%w: %s.%s", ErrParameterMissing, d.name, name)
	}
	return handle, err
}

// await blocks until the device is defined, bounded by the grace period.
func (d *ActiveDevice) await(ctx context.Context) error {
	sub := d.client.devices.Subscribe()
	defer sub.Unsubscribe()

	_, err := notify.WaitFn(ctx, sub, resolveGrace,
		func(m DeviceMap) (struct{}, bool, error) {
			_, ok := m[d.name]
			return struct{}{}, ok, nil
		})
	if errors.Is(err, notify.ErrTimeout) || errors.Is(err, notify.ErrEndOfStream) {
		return fmt.Errorf("%w: %s", ErrDeviceMissing, d.name)
	}
	return err
}
