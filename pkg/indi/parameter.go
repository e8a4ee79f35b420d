package indi

import "maps"

// DefaultTimeoutSec is assumed when a vector carries no timeout attribute.
const DefaultTimeoutSec = 60

// PropertyMeta is the header shared by every parameter kind.
type PropertyMeta struct {
	Name      string
	Label     string
	Group     string
	State     PropertyState
	Perm      PropertyPerm // empty for lights
	Timeout   *uint        // seconds, server-advised
	Timestamp *Timestamp

	// Gen counts successful updates to this parameter instance. It starts
	// at zero when the parameter is defined and increases by one per
	// applied Set command; it only resets when the parameter is redefined
	// from scratch.
	Gen uint64
}

// TimeoutSec returns the server-advised update timeout, or
// DefaultTimeoutSec when the server sent none.
func (m *PropertyMeta) TimeoutSec() uint {
	if m.Timeout == nil {
		return DefaultTimeoutSec
	}
	return *m.Timeout
}

// Parameter is one device property: a closed union over the five vector
// kinds. Consumers switch exhaustively over *TextVector, *NumberVector,
// *SwitchVector, *LightVector and *BlobVector.
type Parameter interface {
	// Meta returns the shared header.
	Meta() *PropertyMeta
	// Clone returns a deep copy; committed parameters are treated as
	// immutable, so updates clone first.
	Clone() Parameter

	isParameter()
}

// Text is a string element of a text vector.
type Text struct {
	Label string
	Value string
}

// TextVector is a parameter holding string elements.
type TextVector struct {
	PropertyMeta
	Values map[string]Text
}

// Number is a float element with display and range metadata.
type Number struct {
	Label  string
	Format string
	Min    float64
	Max    float64
	Step   float64
	Value  Sexagesimal
}

// NumberVector is a parameter holding numeric elements.
type NumberVector struct {
	PropertyMeta
	Values map[string]Number
}

// Switch is an On/Off element of a switch vector.
type Switch struct {
	Label string
	Value SwitchState
}

// SwitchVector is a parameter holding switch elements grouped under a
// mutual-exclusion rule.
type SwitchVector struct {
	PropertyMeta
	Rule   SwitchRule
	Values map[string]Switch
}

// Light is a read-only status element.
type Light struct {
	Label string
	Value PropertyState
}

// LightVector is a parameter echoing status lights. No permission applies.
type LightVector struct {
	PropertyMeta
	Values map[string]Light
}

// Blob is a binary element. Value is nil until the server has sent payload
// data for the current cycle.
type Blob struct {
	Label  string
	Format string
	Size   uint64
	Value  []byte
}

// BlobVector is a parameter carrying binary payloads.
type BlobVector struct {
	PropertyMeta
	Values map[string]Blob
}

func (v *TextVector) Meta() *PropertyMeta   { return &v.PropertyMeta }
func (v *NumberVector) Meta() *PropertyMeta { return &v.PropertyMeta }
func (v *SwitchVector) Meta() *PropertyMeta { return &v.PropertyMeta }
func (v *LightVector) Meta() *PropertyMeta  { return &v.PropertyMeta }
func (v *BlobVector) Meta() *PropertyMeta   { return &v.PropertyMeta }

func (v *TextVector) Clone() Parameter {
	c := *v
	c.Values = maps.Clone(v.Values)
	return &c
}

func (v *NumberVector) Clone() Parameter {
	c := *v
	c.Values = maps.Clone(v.Values)
	return &c
}

func (v *SwitchVector) Clone() Parameter {
	c := *v
	c.Values = maps.Clone(v.Values)
	return &c
}

func (v *LightVector) Clone() Parameter {
	c := *v
	c.Values = maps.Clone(v.Values)
	return &c
}

func (v *BlobVector) Clone() Parameter {
	c := *v
	c.Values = maps.Clone(v.Values)
	return &c
}

func (*TextVector) isParameter()   {}
func (*NumberVector) isParameter() {}
func (*SwitchVector) isParameter() {}
func (*LightVector) isParameter()  {}
func (*BlobVector) isParameter()   {}
