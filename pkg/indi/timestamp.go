package indi

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

// timestampLayout is the wire format: UTC, millisecond precision, no zone.
const timestampLayout = "2006-01-02T15:04:05.000"

// Timestamp is a wire timestamp. INDI timestamps are UTC with the zone
// implied; parsing tolerates (and strips) an explicit trailing 'Z'.
type Timestamp struct {
	time.Time
}

// Now returns the current time as a wire timestamp.
func Now() *Timestamp {
	return &Timestamp{time.Now().UTC()}
}

// ParseTimestamp parses `YYYY-MM-DDTHH:MM:SS[.fff]`, UTC implied.
func ParseTimestamp(text string) (Timestamp, error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(text), "Z")
	for _, layout := range []string{timestampLayout, "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, trimmed, time.UTC); err == nil {
			return Timestamp{t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("indi: invalid timestamp %q", text)
}

// String renders the timestamp in wire form.
func (t Timestamp) String() string {
	return t.UTC().Format(timestampLayout)
}

// MarshalXMLAttr implements xml.MarshalerAttr.
func (t Timestamp) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	return xml.Attr{Name: name, Value: t.String()}, nil
}

// UnmarshalXMLAttr implements xml.UnmarshalerAttr.
func (t *Timestamp) UnmarshalXMLAttr(attr xml.Attr) error {
	parsed, err := ParseTimestamp(attr.Value)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
