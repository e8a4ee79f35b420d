package client

import (
	"fmt"

	"indiclient/pkg/indi"
)

// Values is a set of requested element values for one parameter. It can test
// whether a parameter already holds them and build the wire command that
// requests them.
type Values interface {
	// EqualTo reports whether every requested element already holds the
	// requested value. Comparison is canonical: a sexagesimal number equals
	// its decimal form.
	EqualTo(param indi.Parameter) (bool, error)
	// Command builds the change request addressed to device/param.
	Command(device, param string) indi.Command
}

// TextValues requests text element values by element name.
type TextValues map[string]string

func (v TextValues) EqualTo(param indi.Parameter) (bool, error) {
	p, ok := param.(*indi.TextVector)
	if !ok {
		return false, indi.ErrTypeMismatch
	}
	for name, want := range v {
		cur, ok := p.Values[name]
		if !ok {
			return false, fmt.Errorf("%w: %s.%s", ErrValueMissing, param.Meta().Name, name)
		}
		if cur.Value != want {
			return false, nil
		}
	}
	return true, nil
}

func (v TextValues) Command(device, param string) indi.Command {
	cmd := &indi.NewTextVector{Device: device, Name: param, Timestamp: indi.Now()}
	for name, value := range v {
		cmd.Texts = append(cmd.Texts, indi.OneText{Name: name, Value: value})
	}
	return cmd
}

// NumberValues requests numeric element values by element name.
type NumberValues map[string]indi.Sexagesimal

// Floats wraps plain decimal values as NumberValues.
func Floats(values map[string]float64) NumberValues {
	out := make(NumberValues, len(values))
	for name, value := range values {
		out[name] = indi.Decimal(value)
	}
	return out
}

func (v NumberValues) EqualTo(param indi.Parameter) (bool, error) {
	p, ok := param.(*indi.NumberVector)
	if !ok {
		return false, indi.ErrTypeMismatch
	}
	for name, want := range v {
		cur, ok := p.Values[name]
		if !ok {
			return false, fmt.Errorf("%w: %s.%s", ErrValueMissing, param.Meta().Name, name)
		}
		if cur.Value.Value() != want.Value() {
			return false, nil
		}
	}
	return true, nil
}

func (v NumberValues) Command(device, param string) indi.Command {
	cmd := &indi.NewNumberVector{Device: device, Name: param, Timestamp: indi.Now()}
	for name, value := range v {
		cmd.Numbers = append(cmd.Numbers, indi.OneNumber{Name: name, Value: value})
	}
	return cmd
}

// SwitchValues requests switch element states by element name.
type SwitchValues map[string]indi.SwitchState

func (v SwitchValues) EqualTo(param indi.Parameter) (bool, error) {
	p, ok := param.(*indi.SwitchVector)
	if !ok {
		return false, indi.ErrTypeMismatch
	}
	for name, want := range v {
		cur, ok := p.Values[name]
		if !ok {
			return false, fmt.Errorf("%w: %s.%s", ErrValueMissing, param.Meta().Name, name)
		}
		if cur.Value != want {
			return false, nil
		}
	}
	return true, nil
}

func (v SwitchValues) Command(device, param string) indi.Command {
	cmd := &indi.NewSwitchVector{Device: device, Name: param, Timestamp: indi.Now()}
	for name, value := range v {
		cmd.Switches = append(cmd.Switches, indi.OneSwitch{Name: name, Value: value})
	}
	return cmd
}
