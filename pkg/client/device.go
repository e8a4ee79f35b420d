package client

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	log "github.com/sirupsen/logrus"

	"indiclient/pkg/indi"
	"indiclient/pkg/notify"
)

var (
	// ErrDeviceMissing is returned when a command or lookup addresses a
	// device the server has not defined.
	ErrDeviceMissing = errors.New("client: no such device")
	// ErrParameterMissing is returned when a parameter is not defined, or
	// does not appear within the resolution grace period.
	ErrParameterMissing = errors.New("client: no such parameter")
	// ErrValueMissing is returned when requested values name an element the
	// parameter does not have.
	ErrValueMissing = errors.New("client: no such value")
)

// Device is one device's parameter table. Devices are immutable values inside
// the client's device map: structural changes (parameters defined or deleted)
// produce a new Device, while value updates flow through the per-parameter
// containers, which are stable across copies. Parameter names and groups keep
// the order the server defined them in, which is the display order.
type Device struct {
	name   string
	log    log.FieldLogger
	names  []string
	groups []string
	params map[string]*notify.Notify[indi.Parameter]
}

func newDevice(name string, logger log.FieldLogger) *Device {
	return &Device{
		name:   name,
		log:    logger.WithField("device", name),
		params: map[string]*notify.Notify[indi.Parameter]{},
	}
}

// Name returns the device name.
func (d *Device) Name() string { return d.name }

// Parameter returns the reactive container of the named parameter.
func (d *Device) Parameter(name string) (*notify.Notify[indi.Parameter], bool) {
	n, ok := d.params[name]
	return n, ok
}

// Names returns the parameter names in definition order.
func (d *Device) Names() []string {
	return slices.Clone(d.names)
}

// Groups returns the distinct parameter groups in the order they were first
// encountered.
func (d *Device) Groups() []string {
	return slices.Clone(d.groups)
}

func (d *Device) clone() *Device {
	return &Device{
		name:   d.name,
		log:    d.log,
		names:  slices.Clone(d.names),
		groups: slices.Clone(d.groups),
		params: maps.Clone(d.params),
	}
}

// define folds a definition command. A redefinition replaces the parameter
// wholesale and its generation counter starts over at zero, keeping the
// parameter's original position. The returned device is d itself unless the
// parameter set or group list changed.
func (d *Device) define(def indi.Definition) *Device {
	param := def.Param()
	name, group := param.Meta().Name, param.Meta().Group
	if n, ok := d.params[name]; ok {
		n.Set(param)
		if slices.Contains(d.groups, group) {
			return d
		}
		next := d.clone()
		next.groups = append(next.groups, group)
		return next
	}
	next := d.clone()
	next.names = append(next.names, name)
	if !slices.Contains(next.groups, group) {
		next.groups = append(next.groups, group)
	}
	next.params[name] = notify.New[indi.Parameter](param, notify.WithLogger(d.log))
	return next
}

// apply folds an update command into the matching parameter. The read loop is
// the only writer, so read-modify-set on the container is race free.
func (d *Device) apply(upd indi.Update) error {
	n, ok := d.params[upd.ParameterName()]
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrParameterMissing, d.name, upd.ParameterName())
	}
	cur := n.Get()
	next := cur.Clone()
	if err := upd.Apply(next); err != nil {
		return fmt.Errorf("parameter %s.%s: %w", d.name, upd.ParameterName(), err)
	}
	next.Meta().Gen = cur.Meta().Gen + 1
	n.Set(next)
	return nil
}

// remove folds a delProperty command. An empty name deletes every parameter
// and returns nil. Removed containers are closed so subscribers see the end
// of the stream.
func (d *Device) remove(name string) (*Device, error) {
	if name == "" {
		d.closeAll()
		return nil, nil
	}
	n, ok := d.params[name]
	if !ok {
		return d, fmt.Errorf("%w: %s.%s", ErrParameterMissing, d.name, name)
	}
	n.Close()
	next := d.clone()
	delete(next.params, name)
	next.names = slices.DeleteFunc(next.names, func(s string) bool { return s == name })
	next.pruneGroups()
	return next, nil
}

// pruneGroups drops groups no remaining parameter belongs to, preserving the
// encounter order of the rest.
func (d *Device) pruneGroups() {
	d.groups = slices.DeleteFunc(d.groups, func(group string) bool {
		for _, n := range d.params {
			if n.Get().Meta().Group == group {
				return false
			}
		}
		return true
	})
}

func (d *Device) closeAll() {
	for _, n := range d.params {
		n.Close()
	}
}

func (d *Device) empty() bool { return len(d.params) == 0 }
