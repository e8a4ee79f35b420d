package indi

// Command is one INDI wire message: a closed union over the protocol's
// seventeen tagged records. Def*/Set*/Message/DelProperty flow from server to
// client; New*/EnableBlob/GetProperties flow from client to server.
type Command interface {
	// DeviceName returns the device the command addresses, or "" for a
	// global command.
	DeviceName() string
	// tag is the wire element name.
	tag() string

	isCommand()
}

// DefTextVector declares a text parameter.
type DefTextVector struct {
	Device    string        `xml:"device,attr"`
	Name      string        `xml:"name,attr"`
	Label     string        `xml:"label,attr,omitempty"`
	Group     string        `xml:"group,attr,omitempty"`
	State     PropertyState `xml:"state,attr"`
	Perm      PropertyPerm  `xml:"perm,attr"`
	Timeout   *uint         `xml:"timeout,attr"`
	Timestamp *Timestamp    `xml:"timestamp,attr"`
	Message   string        `xml:"message,attr,omitempty"`

	Texts []DefText `xml:"defText"`
}

// SetTextVector updates a text parameter.
type SetTextVector struct {
	Device    string        `xml:"device,attr"`
	Name      string        `xml:"name,attr"`
	State     PropertyState `xml:"state,attr"`
	Timeout   *uint         `xml:"timeout,attr"`
	Timestamp *Timestamp    `xml:"timestamp,attr"`
	Message   string        `xml:"message,attr,omitempty"`

	Texts []OneText `xml:"oneText"`
}

// NewTextVector requests new text values.
type NewTextVector struct {
	Device    string     `xml:"device,attr"`
	Name      string     `xml:"name,attr"`
	Timestamp *Timestamp `xml:"timestamp,attr"`

	Texts []OneText `xml:"oneText"`
}

// DefNumberVector declares a numeric parameter.
type DefNumberVector struct {
	Device    string        `xml:"device,attr"`
	Name      string        `xml:"name,attr"`
	Label     string        `xml:"label,attr,omitempty"`
	Group     string        `xml:"group,attr,omitempty"`
	State     PropertyState `xml:"state,attr"`
	Perm      PropertyPerm  `xml:"perm,attr"`
	Timeout   *uint         `xml:"timeout,attr"`
	Timestamp *Timestamp    `xml:"timestamp,attr"`
	Message   string        `xml:"message,attr,omitempty"`

	Numbers []DefNumber `xml:"defNumber"`
}

// SetNumberVector updates a numeric parameter. Element min/max/step are
// optional; absent bounds keep the stored ones.
type SetNumberVector struct {
	Device    string        `xml:"device,attr"`
	Name      string        `xml:"name,attr"`
	State     PropertyState `xml:"state,attr"`
	Timeout   *uint         `xml:"timeout,attr"`
	Timestamp *Timestamp    `xml:"timestamp,attr"`
	Message   string        `xml:"message,attr,omitempty"`

	Numbers []OneNumber `xml:"oneNumber"`
}

// NewNumberVector requests new numeric values.
type NewNumberVector struct {
	Device    string     `xml:"device,attr"`
	Name      string     `xml:"name,attr"`
	Timestamp *Timestamp `xml:"timestamp,attr"`

	Numbers []OneNumber `xml:"oneNumber"`
}

// DefSwitchVector declares a switch parameter.
type DefSwitchVector struct {
	Device    string        `xml:"device,attr"`
	Name      string        `xml:"name,attr"`
	Label     string        `xml:"label,attr,omitempty"`
	Group     string        `xml:"group,attr,omitempty"`
	State     PropertyState `xml:"state,attr"`
	Perm      PropertyPerm  `xml:"perm,attr"`
	Rule      SwitchRule    `xml:"rule,attr"`
	Timeout   *uint         `xml:"timeout,attr"`
	Timestamp *Timestamp    `xml:"timestamp,attr"`
	Message   string        `xml:"message,attr,omitempty"`

	Switches []DefSwitch `xml:"defSwitch"`
}

// SetSwitchVector updates a switch parameter.
type SetSwitchVector struct {
	Device    string        `xml:"device,attr"`
	Name      string        `xml:"name,attr"`
	State     PropertyState `xml:"state,attr"`
	Timeout   *uint         `xml:"timeout,attr"`
	Timestamp *Timestamp    `xml:"timestamp,attr"`
	Message   string        `xml:"message,attr,omitempty"`

	Switches []OneSwitch `xml:"oneSwitch"`
}

// NewSwitchVector requests new switch values.
type NewSwitchVector struct {
	Device    string     `xml:"device,attr"`
	Name      string     `xml:"name,attr"`
	Timestamp *Timestamp `xml:"timestamp,attr"`

	Switches []OneSwitch `xml:"oneSwitch"`
}

// DefLightVector declares a status-light parameter. Lights carry no
// permission or timeout.
type DefLightVector struct {
	Device    string        `xml:"device,attr"`
	Name      string        `xml:"name,attr"`
	Label     string        `xml:"label,attr,omitempty"`
	Group     string        `xml:"group,attr,omitempty"`
	State     PropertyState `xml:"state,attr"`
	Timestamp *Timestamp    `xml:"timestamp,attr"`
	Message   string        `xml:"message,attr,omitempty"`

	Lights []DefLight `xml:"defLight"`
}

// SetLightVector updates a status-light parameter.
type SetLightVector struct {
	Device    string        `xml:"device,attr"`
	Name      string        `xml:"name,attr"`
	State     PropertyState `xml:"state,attr"`
	Timestamp *Timestamp    `xml:"timestamp,attr"`
	Message   string        `xml:"message,attr,omitempty"`

	Lights []OneLight `xml:"oneLight"`
}

// DefBlobVector declares a binary parameter.
type DefBlobVector struct {
	Device    string        `xml:"device,attr"`
	Name      string        `xml:"name,attr"`
	Label     string        `xml:"label,attr,omitempty"`
	Group     string        `xml:"group,attr,omitempty"`
	State     PropertyState `xml:"state,attr"`
	Perm      PropertyPerm  `xml:"perm,attr"`
	Timeout   *uint         `xml:"timeout,attr"`
	Timestamp *Timestamp    `xml:"timestamp,attr"`
	Message   string        `xml:"message,attr,omitempty"`

	Blobs []DefBlob `xml:"defBLOB"`
}

// SetBlobVector updates a binary parameter with payload data.
type SetBlobVector struct {
	Device    string        `xml:"device,attr"`
	Name      string        `xml:"name,attr"`
	State     PropertyState `xml:"state,attr"`
	Timeout   *uint         `xml:"timeout,attr"`
	Timestamp *Timestamp    `xml:"timestamp,attr"`
	Message   string        `xml:"message,attr,omitempty"`

	Blobs []OneBlob `xml:"oneBLOB"`
}

// Message is an informational note, optionally device-scoped.
type Message struct {
	Device    string     `xml:"device,attr,omitempty"`
	Timestamp *Timestamp `xml:"timestamp,attr"`
	Message   string     `xml:"message,attr,omitempty"`
}

// DelProperty deletes one parameter, or every parameter of the device when
// Name is empty.
type DelProperty struct {
	Device    string     `xml:"device,attr"`
	Name      string     `xml:"name,attr,omitempty"`
	Timestamp *Timestamp `xml:"timestamp,attr"`
	Message   string     `xml:"message,attr,omitempty"`
}

// EnableBlob directs the server to start or stop sending blob payloads for a
// device, or for one of its parameters when Name is set.
type EnableBlob struct {
	Device  string `xml:"device,attr"`
	Name    string `xml:"name,attr,omitempty"`
	Enabled BlobEnable
}

// GetProperties asks the server to define its properties, optionally scoped
// to one device or parameter.
type GetProperties struct {
	Version string `xml:"version,attr"`
	Device  string `xml:"device,attr,omitempty"`
	Name    string `xml:"name,attr,omitempty"`
}

func (c *DefTextVector) DeviceName() string   { return c.Device }
func (c *SetTextVector) DeviceName() string   { return c.Device }
func (c *NewTextVector) DeviceName() string   { return c.Device }
func (c *DefNumberVector) DeviceName() string { return c.Device }
func (c *SetNumberVector) DeviceName() string { return c.Device }
func (c *NewNumberVector) DeviceName() string { return c.Device }
func (c *DefSwitchVector) DeviceName() string { return c.Device }
func (c *SetSwitchVector) DeviceName() string { return c.Device }
func (c *NewSwitchVector) DeviceName() string { return c.Device }
func (c *DefLightVector) DeviceName() string  { return c.Device }
func (c *SetLightVector) DeviceName() string  { return c.Device }
func (c *DefBlobVector) DeviceName() string   { return c.Device }
func (c *SetBlobVector) DeviceName() string   { return c.Device }
func (c *Message) DeviceName() string         { return c.Device }
func (c *DelProperty) DeviceName() string     { return c.Device }
func (c *EnableBlob) DeviceName() string      { return c.Device }
func (c *GetProperties) DeviceName() string   { return c.Device }

func (*DefTextVector) tag() string   { return "defTextVector" }
func (*SetTextVector) tag() string   { return "setTextVector" }
func (*NewTextVector) tag() string   { return "newTextVector" }
func (*DefNumberVector) tag() string { return "defNumberVector" }
func (*SetNumberVector) tag() string { return "setNumberVector" }
func (*NewNumberVector) tag() string { return "newNumberVector" }
func (*DefSwitchVector) tag() string { return "defSwitchVector" }
func (*SetSwitchVector) tag() string { return "setSwitchVector" }
func (*NewSwitchVector) tag() string { return "newSwitchVector" }
func (*DefLightVector) tag() string  { return "defLightVector" }
func (*SetLightVector) tag() string  { return "setLightVector" }
func (*DefBlobVector) tag() string   { return "defBLOBVector" }
func (*SetBlobVector) tag() string   { return "setBLOBVector" }
func (*Message) tag() string         { return "message" }
func (*DelProperty) tag() string     { return "delProperty" }
func (*EnableBlob) tag() string      { return "enableBLOB" }
func (*GetProperties) tag() string   { return "getProperties" }

func (*DefTextVector) isCommand()   {}
func (*SetTextVector) isCommand()   {}
func (*NewTextVector) isCommand()   {}
func (*DefNumberVector) isCommand() {}
func (*SetNumberVector) isCommand() {}
func (*NewNumberVector) isCommand() {}
func (*DefSwitchVector) isCommand() {}
func (*SetSwitchVector) isCommand() {}
func (*NewSwitchVector) isCommand() {}
func (*DefLightVector) isCommand()  {}
func (*SetLightVector) isCommand()  {}
func (*DefBlobVector) isCommand()   {}
func (*SetBlobVector) isCommand()   {}
func (*Message) isCommand()         {}
func (*DelProperty) isCommand()     {}
func (*EnableBlob) isCommand()      {}
func (*GetProperties) isCommand()   {}
