package indi

// Definition is a server command that defines a parameter from scratch.
type Definition interface {
	Command
	// Param builds the freshly defined parameter at generation zero.
	Param() Parameter
}

// Update is a server command that updates an already-defined parameter.
type Update interface {
	Command
	// ParameterName returns the name of the parameter being updated.
	ParameterName() string
	// Apply merges the update into param, which must be of the matching
	// kind. The caller owns param and is expected to pass a private clone;
	// Apply mutates it in place and does not touch the generation counter.
	Apply(param Parameter) error
}

var (
	_ Definition = (*DefTextVector)(nil)
	_ Definition = (*DefNumberVector)(nil)
	_ Definition = (*DefSwitchVector)(nil)
	_ Definition = (*DefLightVector)(nil)
	_ Definition = (*DefBlobVector)(nil)

	_ Update = (*SetTextVector)(nil)
	_ Update = (*SetNumberVector)(nil)
	_ Update = (*SetSwitchVector)(nil)
	_ Update = (*SetLightVector)(nil)
	_ Update = (*SetBlobVector)(nil)
)

func (c *SetTextVector) ParameterName() string   { return c.Name }
func (c *SetNumberVector) ParameterName() string { return c.Name }
func (c *SetSwitchVector) ParameterName() string { return c.Name }
func (c *SetLightVector) ParameterName() string  { return c.Name }
func (c *SetBlobVector) ParameterName() string   { return c.Name }

func (c *DefTextVector) Param() Parameter {
	values := make(map[string]Text, len(c.Texts))
	for _, t := range c.Texts {
		values[t.Name] = Text{Label: t.Label, Value: t.Value}
	}
	return &TextVector{
		PropertyMeta: PropertyMeta{
			Name: c.Name, Label: c.Label, Group: c.Group,
			State: c.State, Perm: c.Perm,
			Timeout: c.Timeout, Timestamp: c.Timestamp,
		},
		Values: values,
	}
}

func (c *DefNumberVector) Param() Parameter {
	values := make(map[string]Number, len(c.Numbers))
	for _, n := range c.Numbers {
		values[n.Name] = Number{
			Label: n.Label, Format: n.Format,
			Min: n.Min, Max: n.Max, Step: n.Step,
			Value: n.Value,
		}
	}
	return &NumberVector{
		PropertyMeta: PropertyMeta{
			Name: c.Name, Label: c.Label, Group: c.Group,
			State: c.State, Perm: c.Perm,
			Timeout: c.Timeout, Timestamp: c.Timestamp,
		},
		Values: values,
	}
}

func (c *DefSwitchVector) Param() Parameter {
	values := make(map[string]Switch, len(c.Switches))
	for _, s := range c.Switches {
		values[s.Name] = Switch{Label: s.Label, Value: s.Value}
	}
	return &SwitchVector{
		PropertyMeta: PropertyMeta{
			Name: c.Name, Label: c.Label, Group: c.Group,
			State: c.State, Perm: c.Perm,
			Timeout: c.Timeout, Timestamp: c.Timestamp,
		},
		Rule:   c.Rule,
		Values: values,
	}
}

func (c *DefLightVector) Param() Parameter {
	values := make(map[string]Light, len(c.Lights))
	for _, l := range c.Lights {
		values[l.Name] = Light{Label: l.Label, Value: l.Value}
	}
	return &LightVector{
		PropertyMeta: PropertyMeta{
			Name: c.Name, Label: c.Label, Group: c.Group,
			State: c.State, Timestamp: c.Timestamp,
		},
		Values: values,
	}
}

func (c *DefBlobVector) Param() Parameter {
	values := make(map[string]Blob, len(c.Blobs))
	for _, b := range c.Blobs {
		values[b.Name] = Blob{Label: b.Label}
	}
	return &BlobVector{
		PropertyMeta: PropertyMeta{
			Name: c.Name, Label: c.Label, Group: c.Group,
			State: c.State, Perm: c.Perm,
			Timeout: c.Timeout, Timestamp: c.Timestamp,
		},
		Values: values,
	}
}

func (c *SetTextVector) Apply(param Parameter) error {
	v, ok := param.(*TextVector)
	if !ok {
		return ErrTypeMismatch
	}
	v.State, v.Timeout, v.Timestamp = c.State, c.Timeout, c.Timestamp
	for _, t := range c.Texts {
		e := v.Values[t.Name]
		e.Value = t.Value
		v.Values[t.Name] = e
	}
	return nil
}

func (c *SetNumberVector) Apply(param Parameter) error {
	v, ok := param.(*NumberVector)
	if !ok {
		return ErrTypeMismatch
	}
	v.State, v.Timeout, v.Timestamp = c.State, c.Timeout, c.Timestamp
	for _, n := range c.Numbers {
		e := v.Values[n.Name]
		if n.Min != nil {
			e.Min = *n.Min
		}
		if n.Max != nil {
			e.Max = *n.Max
		}
		if n.Step != nil {
			e.Step = *n.Step
		}
		e.Value = n.Value
		v.Values[n.Name] = e
	}
	return nil
}

func (c *SetSwitchVector) Apply(param Parameter) error {
	v, ok := param.(*SwitchVector)
	if !ok {
		return ErrTypeMismatch
	}
	v.State, v.Timeout, v.Timestamp = c.State, c.Timeout, c.Timestamp
	for _, s := range c.Switches {
		e := v.Values[s.Name]
		e.Value = s.Value
		v.Values[s.Name] = e
	}
	return nil
}

func (c *SetLightVector) Apply(param Parameter) error {
	v, ok := param.(*LightVector)
	if !ok {
		return ErrTypeMismatch
	}
	v.State, v.Timestamp = c.State, c.Timestamp
	for _, l := range c.Lights {
		e := v.Values[l.Name]
		e.Value = l.Value
		v.Values[l.Name] = e
	}
	return nil
}

func (c *SetBlobVector) Apply(param Parameter) error {
	v, ok := param.(*BlobVector)
	if !ok {
		return ErrTypeMismatch
	}
	v.State, v.Timeout, v.Timestamp = c.State, c.Timeout, c.Timestamp
	for _, b := range c.Blobs {
		e := v.Values[b.Name]
		e.Format = b.Format
		e.Size = b.Size
		e.Value = b.Value
		v.Values[b.Name] = e
	}
	return nil
}
