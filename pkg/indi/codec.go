package indi

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
)

// UnknownTagError reports a top-level element the protocol does not define.
// It is recoverable: the decoder has skipped the element and may be read
// again.
type UnknownTagError struct {
	Tag string
}

func (e *UnknownTagError) Error() string {
	return fmt.Sprintf("indi: unknown command tag %q", e.Tag)
}

// Decoder reads commands from an INDI XML stream. Commands arrive as a flat
// sequence of top-level elements with no document root.
type Decoder struct {
	dec *xml.Decoder
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: xml.NewDecoder(r)}
}

// Next reads the next command from the stream. An *UnknownTagError is
// recoverable and the caller may keep reading; any other error means the
// stream is corrupt or closed. io.EOF marks a clean end of stream.
func (d *Decoder) Next() (Command, error) {
	for {
		tok, err := d.dec.Token()
		if err != nil {
			return nil, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			// Inter-command whitespace, comments, directives.
			continue
		}
		cmd := newCommand(start.Name.Local)
		if cmd == nil {
			if err := d.dec.Skip(); err != nil {
				return nil, err
			}
			return nil, &UnknownTagError{Tag: start.Name.Local}
		}
		if err := d.dec.DecodeElement(cmd, &start); err != nil {
			return nil, err
		}
		return cmd, nil
	}
}

func newCommand(tag string) Command {
	switch tag {
	case "defTextVector":
		return &DefTextVector{}
	case "setTextVector":
		return &SetTextVector{}
	case "newTextVector":
		return &NewTextVector{}
	case "defNumberVector":
		return &DefNumberVector{}
	case "setNumberVector":
		return &SetNumberVector{}
	case "newNumberVector":
		return &NewNumberVector{}
	case "defSwitchVector":
		return &DefSwitchVector{}
	case "setSwitchVector":
		return &SetSwitchVector{}
	case "newSwitchVector":
		return &NewSwitchVector{}
	case "defLightVector":
		return &DefLightVector{}
	case "setLightVector":
		return &SetLightVector{}
	case "defBLOBVector":
		return &DefBlobVector{}
	case "setBLOBVector":
		return &SetBlobVector{}
	case "message":
		return &Message{}
	case "delProperty":
		return &DelProperty{}
	case "enableBLOB":
		return &EnableBlob{}
	case "getProperties":
		return &GetProperties{}
	}
	return nil
}

// Encoder writes commands to an INDI XML stream, one top-level element per
// command.
type Encoder struct {
	w   io.Writer
	enc *xml.Encoder
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w, enc: xml.NewEncoder(w)}
}

// Write encodes one command and flushes it to the underlying writer.
func (e *Encoder) Write(cmd Command) error {
	start := xml.StartElement{Name: xml.Name{Local: cmd.tag()}}
	if err := e.enc.EncodeElement(cmd, start); err != nil {
		return err
	}
	if err := e.enc.Flush(); err != nil {
		return err
	}
	// Newline between commands keeps captures readable; the decoder skips
	// inter-command whitespace.
	_, err := e.w.Write([]byte{'\n'})
	return err
}

// MarshalCommand renders one command as a standalone XML fragment, for
// transports that frame one command per message.
func MarshalCommand(cmd Command) ([]byte, error) {
	var buf bytes.Buffer
	if err := NewEncoder(&buf).Write(cmd); err != nil {
		return nil, err
	}
	return bytes.TrimSpace(buf.Bytes()), nil
}

// ParseCommand decodes one command from a standalone XML fragment.
func ParseCommand(data []byte) (Command, error) {
	return NewDecoder(bytes.NewReader(data)).Next()
}
