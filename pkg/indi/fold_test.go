package indi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefNumberVectorParam(t *testing.T) {
	timeout := uint(30)
	def := &DefNumberVector{
		Device: "Mount", Name: "EQUATORIAL_EOD_COORD", Label: "Coordinates",
		Group: "Main Control", State: StateIdle, Perm: PermReadWrite, Timeout: &timeout,
		Numbers: []DefNumber{
			{Name: "RA", Label: "Right ascension", Format: "%010.6m", Min: 0, Max: 24, Step: 0, Value: Decimal(2.5)},
			{Name: "DEC", Label: "Declination", Min: -90, Max: 90, Value: Decimal(-10.505)},
		},
	}

	param := def.Param()
	vec, ok := param.(*NumberVector)
	require.True(t, ok)

	assert.Equal(t, "EQUATORIAL_EOD_COORD", vec.Name)
	assert.Equal(t, "Coordinates", vec.Label)
	assert.Equal(t, StateIdle, vec.State)
	assert.Equal(t, uint(30), vec.TimeoutSec())
	assert.Equal(t, uint64(0), vec.Gen)

	require.Len(t, vec.Values, 2)
	assert.Equal(t, 0.0, vec.Values["RA"].Min)
	assert.Equal(t, 24.0, vec.Values["RA"].Max)
	assert.Equal(t, -10.505, vec.Values["DEC"].Value.Value())
}

func TestSetNumberVectorApplyKeepsBounds(t *testing.T) {
	def := &DefNumberVector{
		Device: "Mount", Name: "COORD", State: StateIdle, Perm: PermReadWrite,
		Numbers: []DefNumber{
			{Name: "RA", Min: 0, Max: 24, Step: 0.5, Value: Decimal(2.5)},
		},
	}
	param := def.Param()

	set := &SetNumberVector{
		Device: "Mount", Name: "COORD", State: StateOk,
		Numbers: []OneNumber{{Name: "RA", Value: Decimal(3.25)}},
	}
	require.NoError(t, set.Apply(param))

	vec := param.(*NumberVector)
	assert.Equal(t, StateOk, vec.State)
	assert.Equal(t, 3.25, vec.Values["RA"].Value.Value())
	assert.Equal(t, 0.0, vec.Values["RA"].Min)
	assert.Equal(t, 24.0, vec.Values["RA"].Max)
	assert.Equal(t, 0.5, vec.Values["RA"].Step)
}

func TestSetNumberVectorApplyOverridesBounds(t *testing.T) {
	def := &DefNumberVector{
		Device: "Mount", Name: "COORD", State: StateIdle, Perm: PermReadWrite,
		Numbers: []DefNumber{{Name: "RA", Min: 0, Max: 24, Value: Decimal(2.5)}},
	}
	param := def.Param()

	newMax := 12.0
	set := &SetNumberVector{
		Device: "Mount", Name: "COORD", State: StateOk,
		Numbers: []OneNumber{{Name: "RA", Max: &newMax, Value: Decimal(3.0)}},
	}
	require.NoError(t, set.Apply(param))

	vec := param.(*NumberVector)
	assert.Equal(t, 12.0, vec.Values["RA"].Max)
	assert.Equal(t, 0.0, vec.Values["RA"].Min)
}

func TestApplyTypeMismatch(t *testing.T) {
	param := (&DefTextVector{Device: "d", Name: "p", State: StateIdle, Perm: PermReadOnly}).Param()

	set := &SetNumberVector{Device: "d", Name: "p", State: StateOk}
	assert.ErrorIs(t, set.Apply(param), ErrTypeMismatch)
}

func TestSetSwitchVectorApply(t *testing.T) {
	def := &DefSwitchVector{
		Device: "CCD", Name: "CONNECTION", State: StateIdle, Perm: PermReadWrite,
		Rule: RuleOneOfMany,
		Switches: []DefSwitch{
			{Name: "CONNECT", Label: "Connect", Value: SwitchOff},
			{Name: "DISCONNECT", Label: "Disconnect", Value: SwitchOn},
		},
	}
	param := def.Param()

	set := &SetSwitchVector{
		Device: "CCD", Name: "CONNECTION", State: StateOk,
		Switches: []OneSwitch{
			{Name: "CONNECT", Value: SwitchOn},
			{Name: "DISCONNECT", Value: SwitchOff},
		},
	}
	require.NoError(t, set.Apply(param))

	vec := param.(*SwitchVector)
	assert.Equal(t, SwitchOn, vec.Values["CONNECT"].Value)
	// Labels survive value updates.
	assert.Equal(t, "Connect", vec.Values["CONNECT"].Label)
	assert.Equal(t, SwitchOff, vec.Values["DISCONNECT"].Value)
}

func TestSetBlobVectorApply(t *testing.T) {
	def := &DefBlobVector{
		Device: "CCD", Name: "CCD1", State: StateIdle, Perm: PermReadOnly,
		Blobs: []DefBlob{{Name: "CCD1", Label: "Image"}},
	}
	param := def.Param()

	vec := param.(*BlobVector)
	assert.Nil(t, vec.Values["CCD1"].Value)

	payload := []byte{1, 2, 3}
	set := &SetBlobVector{
		Device: "CCD", Name: "CCD1", State: StateOk,
		Blobs: []OneBlob{{Name: "CCD1", Format: ".fits", Size: 3, Value: payload}},
	}
	require.NoError(t, set.Apply(param))

	assert.Equal(t, payload, vec.Values["CCD1"].Value)
	assert.Equal(t, ".fits", vec.Values["CCD1"].Format)
	assert.Equal(t, "Image", vec.Values["CCD1"].Label)
}

func TestCloneIsIndependent(t *testing.T) {
	def := &DefSwitchVector{
		Device: "CCD", Name: "CONNECTION", State: StateIdle, Perm: PermReadWrite,
		Rule:     RuleOneOfMany,
		Switches: []DefSwitch{{Name: "CONNECT", Value: SwitchOff}},
	}
	param := def.Param()
	clone := param.Clone()

	set := &SetSwitchVector{
		Device: "CCD", Name: "CONNECTION", State: StateOk,
		Switches: []OneSwitch{{Name: "CONNECT", Value: SwitchOn}},
	}
	require.NoError(t, set.Apply(clone))

	original := param.(*SwitchVector)
	assert.Equal(t, SwitchOff, original.Values["CONNECT"].Value)
	assert.Equal(t, StateIdle, original.State)

	updated := clone.(*SwitchVector)
	assert.Equal(t, SwitchOn, updated.Values["CONNECT"].Value)
}

func TestTimeoutSecDefault(t *testing.T) {
	meta := PropertyMeta{}
	assert.Equal(t, uint(DefaultTimeoutSec), meta.TimeoutSec())

	timeout := uint(0)
	meta.Timeout = &timeout
	assert.Equal(t, uint(0), meta.TimeoutSec())
}
