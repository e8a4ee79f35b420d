// Package indi implements the INDI wire protocol: the command model, the
// device parameter types, and the XML codec used to exchange them with an
// INDI server. See http://docs.indilib.org/protocol/INDI.pdf.
package indi

import (
	"encoding/xml"
	"errors"
	"fmt"
)

// ProtocolVersion is the INDI protocol version announced in getProperties.
const ProtocolVersion = "1.7"

// ErrTypeMismatch is returned when a command or value accessor is applied to
// a parameter of a different kind.
var ErrTypeMismatch = errors.New("indi: parameter type mismatch")

// PropertyState is the state a device reports for a parameter.
type PropertyState string

const (
	StateIdle  PropertyState = "Idle"
	StateOk    PropertyState = "Ok"
	StateBusy  PropertyState = "Busy"
	StateAlert PropertyState = "Alert"
)

func (s PropertyState) valid() bool {
	switch s {
	case StateIdle, StateOk, StateBusy, StateAlert:
		return true
	}
	return false
}

// UnmarshalXMLAttr validates the wire value.
func (s *PropertyState) UnmarshalXMLAttr(attr xml.Attr) error {
	v := PropertyState(attr.Value)
	if !v.valid() {
		return fmt.Errorf("indi: invalid property state %q", attr.Value)
	}
	*s = v
	return nil
}

// SwitchState is the On/Off state of a switch element.
type SwitchState string

const (
	SwitchOn  SwitchState = "On"
	SwitchOff SwitchState = "Off"
)

// SwitchFromBool converts a bool into a SwitchState.
func SwitchFromBool(on bool) SwitchState {
	if on {
		return SwitchOn
	}
	return SwitchOff
}

// Bool reports whether the switch is On.
func (s SwitchState) Bool() bool { return s == SwitchOn }

func parseSwitchState(text string) (SwitchState, error) {
	switch SwitchState(text) {
	case SwitchOn:
		return SwitchOn, nil
	case SwitchOff:
		return SwitchOff, nil
	}
	return "", fmt.Errorf("indi: invalid switch state %q", text)
}

// SwitchRule is the mutual-exclusion rule of a switch vector.
type SwitchRule string

const (
	RuleOneOfMany SwitchRule = "OneOfMany"
	RuleAtMostOne SwitchRule = "AtMostOne"
	RuleAnyOfMany SwitchRule = "AnyOfMany"
)

// UnmarshalXMLAttr validates the wire value.
func (r *SwitchRule) UnmarshalXMLAttr(attr xml.Attr) error {
	switch v := SwitchRule(attr.Value); v {
	case RuleOneOfMany, RuleAtMostOne, RuleAnyOfMany:
		*r = v
		return nil
	}
	return fmt.Errorf("indi: invalid switch rule %q", attr.Value)
}

// PropertyPerm is the client's access to a parameter. Lights carry no
// permission; they are always read-only status echoes.
type PropertyPerm string

const (
	PermReadOnly  PropertyPerm = "ro"
	PermWriteOnly PropertyPerm = "wo"
	PermReadWrite PropertyPerm = "rw"
)

// UnmarshalXMLAttr validates the wire value.
func (p *PropertyPerm) UnmarshalXMLAttr(attr xml.Attr) error {
	switch v := PropertyPerm(attr.Value); v {
	case PermReadOnly, PermWriteOnly, PermReadWrite:
		*p = v
		return nil
	}
	return fmt.Errorf("indi: invalid permission %q", attr.Value)
}

// BlobEnable controls whether the server sends blob payloads.
type BlobEnable string

const (
	BlobNever BlobEnable = "Never"
	BlobAlso  BlobEnable = "Also"
	BlobOnly  BlobEnable = "Only"
)

func parseBlobEnable(text string) (BlobEnable, error) {
	switch BlobEnable(text) {
	case BlobNever, BlobAlso, BlobOnly:
		return BlobEnable(text), nil
	}
	return "", fmt.Errorf("indi: invalid blob enable %q", text)
}
