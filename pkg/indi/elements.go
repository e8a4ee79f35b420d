package indi

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"
)

// Element character data arrives whitespace-padded on the wire, so every
// element type decodes through a raw struct and trims before storing.

// DefText defines one text element.
type DefText struct {
	Name  string
	Label string
	Value string
}

func (e *DefText) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var raw struct {
		Name  string `xml:"name,attr"`
		Label string `xml:"label,attr"`
		Value string `xml:",chardata"`
	}
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}
	*e = DefText{Name: raw.Name, Label: raw.Label, Value: strings.TrimSpace(raw.Value)}
	return nil
}

func (e DefText) MarshalXML(enc *xml.Encoder, start xml.StartElement) error {
	start.Attr = appendAttr(start.Attr, "name", e.Name)
	start.Attr = appendAttrNonEmpty(start.Attr, "label", e.Label)
	return encodeWithText(enc, start, e.Value)
}

// OneText carries one text element value.
type OneText struct {
	Name  string
	Value string
}

func (e *OneText) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var raw struct {
		Name  string `xml:"name,attr"`
		Value string `xml:",chardata"`
	}
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}
	*e = OneText{Name: raw.Name, Value: strings.TrimSpace(raw.Value)}
	return nil
}

func (e OneText) MarshalXML(enc *xml.Encoder, start xml.StartElement) error {
	start.Attr = appendAttr(start.Attr, "name", e.Name)
	return encodeWithText(enc, start, e.Value)
}

// DefNumber defines one numeric element. Bounds may themselves be written in
// sexagesimal form; they are stored canonically.
type DefNumber struct {
	Name   string
	Label  string
	Format string
	Min    float64
	Max    float64
	Step   float64
	Value  Sexagesimal
}

func (e *DefNumber) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var raw struct {
		Name   string `xml:"name,attr"`
		Label  string `xml:"label,attr"`
		Format string `xml:"format,attr"`
		Min    string `xml:"min,attr"`
		Max    string `xml:"max,attr"`
		Step   string `xml:"step,attr"`
		Value  string `xml:",chardata"`
	}
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}
	out := DefNumber{Name: raw.Name, Label: raw.Label, Format: raw.Format}
	for _, bound := range []struct {
		text string
		dst  *float64
	}{{raw.Min, &out.Min}, {raw.Max, &out.Max}, {raw.Step, &out.Step}} {
		s, err := ParseSexagesimal(bound.text)
		if err != nil {
			return err
		}
		*bound.dst = s.Value()
	}
	value, err := ParseSexagesimal(raw.Value)
	if err != nil {
		return err
	}
	out.Value = value
	*e = out
	return nil
}

func (e DefNumber) MarshalXML(enc *xml.Encoder, start xml.StartElement) error {
	start.Attr = appendAttr(start.Attr, "name", e.Name)
	start.Attr = appendAttrNonEmpty(start.Attr, "label", e.Label)
	start.Attr = appendAttrNonEmpty(start.Attr, "format", e.Format)
	start.Attr = appendAttr(start.Attr, "min", formatFloat(e.Min))
	start.Attr = appendAttr(start.Attr, "max", formatFloat(e.Max))
	start.Attr = appendAttr(start.Attr, "step", formatFloat(e.Step))
	return encodeWithText(enc, start, e.Value.String())
}

// OneNumber carries one numeric element value. Bounds are optional; absent
// bounds leave the defined ones in place.
type OneNumber struct {
	Name  string
	Min   *float64
	Max   *float64
	Step  *float64
	Value Sexagesimal
}

func (e *OneNumber) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var raw struct {
		Name  string  `xml:"name,attr"`
		Min   *string `xml:"min,attr"`
		Max   *string `xml:"max,attr"`
		Step  *string `xml:"step,attr"`
		Value string  `xml:",chardata"`
	}
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}
	out := OneNumber{Name: raw.Name}
	for _, bound := range []struct {
		text *string
		dst  **float64
	}{{raw.Min, &out.Min}, {raw.Max, &out.Max}, {raw.Step, &out.Step}} {
		if bound.text == nil {
			continue
		}
		s, err := ParseSexagesimal(*bound.text)
		if err != nil {
			return err
		}
		v := s.Value()
		*bound.dst = &v
	}
	value, err := ParseSexagesimal(raw.Value)
	if err != nil {
		return err
	}
	out.Value = value
	*e = out
	return nil
}

func (e OneNumber) MarshalXML(enc *xml.Encoder, start xml.StartElement) error {
	start.Attr = appendAttr(start.Attr, "name", e.Name)
	if e.Min != nil {
		start.Attr = appendAttr(start.Attr, "min", formatFloat(*e.Min))
	}
	if e.Max != nil {
		start.Attr = appendAttr(start.Attr, "max", formatFloat(*e.Max))
	}
	if e.Step != nil {
		start.Attr = appendAttr(start.Attr, "step", formatFloat(*e.Step))
	}
	return encodeWithText(enc, start, e.Value.String())
}

// DefSwitch defines one switch element.
type DefSwitch struct {
	Name  string
	Label string
	Value SwitchState
}

func (e *DefSwitch) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var raw struct {
		Name  string `xml:"name,attr"`
		Label string `xml:"label,attr"`
		Value string `xml:",chardata"`
	}
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}
	state, err := parseSwitchState(strings.TrimSpace(raw.Value))
	if err != nil {
		return err
	}
	*e = DefSwitch{Name: raw.Name, Label: raw.Label, Value: state}
	return nil
}

func (e DefSwitch) MarshalXML(enc *xml.Encoder, start xml.StartElement) error {
	start.Attr = appendAttr(start.Attr, "name", e.Name)
	start.Attr = appendAttrNonEmpty(start.Attr, "label", e.Label)
	return encodeWithText(enc, start, string(e.Value))
}

// OneSwitch carries one switch element value.
type OneSwitch struct {
	Name  string
	Value SwitchState
}

func (e *OneSwitch) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var raw struct {
		Name  string `xml:"name,attr"`
		Value string `xml:",chardata"`
	}
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}
	state, err := parseSwitchState(strings.TrimSpace(raw.Value))
	if err != nil {
		return err
	}
	*e = OneSwitch{Name: raw.Name, Value: state}
	return nil
}

func (e OneSwitch) MarshalXML(enc *xml.Encoder, start xml.StartElement) error {
	start.Attr = appendAttr(start.Attr, "name", e.Name)
	return encodeWithText(enc, start, string(e.Value))
}

// DefLight defines one status-light element.
type DefLight struct {
	Name  string
	Label string
	Value PropertyState
}

func (e *DefLight) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var raw struct {
		Name  string `xml:"name,attr"`
		Label string `xml:"label,attr"`
		Value string `xml:",chardata"`
	}
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}
	state := PropertyState(strings.TrimSpace(raw.Value))
	if !state.valid() {
		return fmt.Errorf("indi: invalid property state %q", raw.Value)
	}
	*e = DefLight{Name: raw.Name, Label: raw.Label, Value: state}
	return nil
}

func (e DefLight) MarshalXML(enc *xml.Encoder, start xml.StartElement) error {
	start.Attr = appendAttr(start.Attr, "name", e.Name)
	start.Attr = appendAttrNonEmpty(start.Attr, "label", e.Label)
	return encodeWithText(enc, start, string(e.Value))
}

// OneLight carries one status-light element value.
type OneLight struct {
	Name  string
	Value PropertyState
}

func (e *OneLight) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var raw struct {
		Name  string `xml:"name,attr"`
		Value string `xml:",chardata"`
	}
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}
	state := PropertyState(strings.TrimSpace(raw.Value))
	if !state.valid() {
		return fmt.Errorf("indi: invalid property state %q", raw.Value)
	}
	*e = OneLight{Name: raw.Name, Value: state}
	return nil
}

func (e OneLight) MarshalXML(enc *xml.Encoder, start xml.StartElement) error {
	start.Attr = appendAttr(start.Attr, "name", e.Name)
	return encodeWithText(enc, start, string(e.Value))
}

// DefBlob declares one binary element. Payloads only arrive via setBLOBVector.
type DefBlob struct {
	Name  string `xml:"name,attr"`
	Label string `xml:"label,attr,omitempty"`
}

// blobLineWidth is the column at which base64 payloads wrap on the wire.
const blobLineWidth = 72

// OneBlob carries one binary payload, base64-encoded and line-wrapped on the
// wire. Size is the decoded byte length.
type OneBlob struct {
	Name   string
	Format string
	Size   uint64
	Value  []byte
}

func (e *OneBlob) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var raw struct {
		Name   string `xml:"name,attr"`
		Format string `xml:"format,attr"`
		Size   uint64 `xml:"size,attr"`
		EncLen *int   `xml:"enclen,attr"`
		Value  string `xml:",chardata"`
	}
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}
	encoded := strings.Map(dropSpace, raw.Value)
	if raw.EncLen != nil && *raw.EncLen != len(encoded) {
		return fmt.Errorf("indi: blob %q encoded length %d, enclen says %d",
			raw.Name, len(encoded), *raw.EncLen)
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("indi: blob %q: %w", raw.Name, err)
	}
	if raw.Size != uint64(len(decoded)) {
		return fmt.Errorf("indi: blob %q decoded to %d bytes, size says %d",
			raw.Name, len(decoded), raw.Size)
	}
	*e = OneBlob{Name: raw.Name, Format: raw.Format, Size: raw.Size, Value: decoded}
	return nil
}

func (e OneBlob) MarshalXML(enc *xml.Encoder, start xml.StartElement) error {
	encoded := base64.StdEncoding.EncodeToString(e.Value)
	start.Attr = appendAttr(start.Attr, "name", e.Name)
	start.Attr = appendAttrNonEmpty(start.Attr, "format", e.Format)
	start.Attr = appendAttr(start.Attr, "size", fmt.Sprintf("%d", len(e.Value)))
	start.Attr = appendAttr(start.Attr, "enclen", fmt.Sprintf("%d", len(encoded)))
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for off := 0; off < len(encoded); off += blobLineWidth {
		end := min(off+blobLineWidth, len(encoded))
		if err := enc.EncodeToken(xml.CharData(encoded[off:end] + "\n")); err != nil {
			return err
		}
	}
	return enc.EncodeToken(xml.EndElement{Name: start.Name})
}

// EnableBlob's value travels as character data, unlike every other command
// whose payload sits in child elements.

func (c *EnableBlob) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var raw struct {
		Device string `xml:"device,attr"`
		Name   string `xml:"name,attr"`
		Value  string `xml:",chardata"`
	}
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}
	enabled, err := parseBlobEnable(strings.TrimSpace(raw.Value))
	if err != nil {
		return err
	}
	*c = EnableBlob{Device: raw.Device, Name: raw.Name, Enabled: enabled}
	return nil
}

func (c *EnableBlob) MarshalXML(enc *xml.Encoder, start xml.StartElement) error {
	start.Attr = appendAttr(start.Attr, "device", c.Device)
	start.Attr = appendAttrNonEmpty(start.Attr, "name", c.Name)
	return encodeWithText(enc, start, string(c.Enabled))
}

func appendAttr(attrs []xml.Attr, name, value string) []xml.Attr {
	return append(attrs, xml.Attr{Name: xml.Name{Local: name}, Value: value})
}

func appendAttrNonEmpty(attrs []xml.Attr, name, value string) []xml.Attr {
	if value == "" {
		return attrs
	}
	return appendAttr(attrs, name, value)
}

func encodeWithText(enc *xml.Encoder, start xml.StartElement, text string) error {
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if text != "" {
		if err := enc.EncodeToken(xml.CharData(text)); err != nil {
			return err
		}
	}
	return enc.EncodeToken(xml.EndElement{Name: start.Name})
}

func dropSpace(r rune) rune {
	if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
		return -1
	}
	return r
}
