package client

import (
	"context"
	"fmt"
	"time"

	"indiclient/pkg/indi"
	"indiclient/pkg/notify"
)

// minChangeTimeout floors the confirmation wait so a zero server-advised
// timeout still leaves room for a round trip.
const minChangeTimeout = time.Second

// ActiveParameter is a handle on one resolved parameter.
type ActiveParameter struct {
	device *ActiveDevice
	name   string
	handle *notify.Notify[indi.Parameter]
}

// Name returns the parameter name.
func (p *ActiveParameter) Name() string { return p.name }

// Get returns the current parameter value.
func (p *ActiveParameter) Get() indi.Parameter {
	return p.handle.Get()
}

// Subscribe streams the current value followed by every update.
func (p *ActiveParameter) Subscribe() *notify.Subscription[indi.Parameter] {
	return p.handle.Subscribe()
}

// Changes streams updates only, without the current value.
func (p *ActiveParameter) Changes() *notify.Subscription[indi.Parameter] {
	return p.handle.Changes()
}

// Set sends a change request without waiting for confirmation.
func (p *ActiveParameter) Set(values Values) error {
	return p.device.client.Send(values.Command(p.device.name, p.name))
}

// EnableBlob scopes blob delivery to this parameter only.
func (p *ActiveParameter) EnableBlob(enabled indi.BlobEnable) error {
	return p.device.client.Send(&indi.EnableBlob{
		Device: p.device.name, Name: p.name, Enabled: enabled,
	})
}

// Change requests new values and waits for the device to confirm them.
//
// If the parameter already holds the requested values and is not Busy, no
// command is sent. Otherwise the request goes out and Change waits, bounded
// by the parameter's advertised timeout, until an update arrives where the
// values match: Ok or Idle confirms, Busy keeps waiting, and Alert on any
// post-request update reports ErrRejected. The confirmed parameter is
// returned.
func (p *ActiveParameter) Change(ctx context.Context, values Values) (indi.Parameter, error) {
	sub := p.handle.Subscribe()
	defer sub.Unsubscribe()

	cur := p.Get()
	equal, err := values.EqualTo(cur)
	if err != nil {
		return nil, err
	}
	if equal && cur.Meta().State != indi.StateBusy {
		return cur, nil
	}
	startGen := cur.Meta().Gen

	if err := p.Set(values); err != nil {
		return nil, err
	}

	return notify.WaitFn(ctx, sub, p.changeTimeout(cur),
		func(param indi.Parameter) (indi.Parameter, bool, error) {
			if param.Meta().Gen <= startGen {
				return nil, false, nil
			}
			if param.Meta().State == indi.StateAlert {
				return nil, false, fmt.Errorf("%w: %s.%s",
					ErrRejected, p.device.name, p.name)
			}
			equal, err := values.EqualTo(param)
			if err != nil || !equal {
				return nil, false, err
			}
			if param.Meta().State == indi.StateBusy {
				return nil, false, nil
			}
			return param, true, nil
		})
}

func (p *ActiveParameter) changeTimeout(param indi.Parameter) time.Duration {
	timeout := time.Duration(param.Meta().TimeoutSec()) * time.Second
	return max(timeout, minChangeTimeout)
}
