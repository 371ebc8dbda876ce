package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandle_Queries(t *testing.T) {
	d := New()

	assert.Equal(t, []string{DefaultIdentity}, d.handle("IDN?"))
	assert.Equal(t, []string{"0"}, d.handle("MOD?"))
	assert.Equal(t, []string{"1"}, d.handle("SENS?"))
	assert.Equal(t, []string{"0.1"}, d.handle("WINDOW?"))
	assert.Equal(t, []string{"20.0"}, d.handle("TSET?"))
	assert.Equal(t, []string{"23.4"}, d.handle("TACT?"))
	assert.Equal(t, []string{"0"}, d.handle("EN?"))
	assert.Equal(t, []string{"2A00"}, d.handle("STAT?"))
}

func TestHandle_CommandListing(t *testing.T) {
	d := New()

	listing := d.handle("COMMAND?")
	require.Len(t, listing, 36)
}

func TestHandle_Setters(t *testing.T) {
	d := New()

	// Setters reply with the prompt only.
	assert.Empty(t, d.handle("TSET=225"))
	assert.Equal(t, []string{"22.5"}, d.handle("TSET?"))

	assert.Empty(t, d.handle("WINDOW=5"))
	assert.Equal(t, []string{"0.5"}, d.handle("WINDOW?"))

	assert.Empty(t, d.handle("MOD=2"))
	assert.Equal(t, []string{"2"}, d.handle("MOD?"))

	assert.Empty(t, d.handle("SENS=0"))
	assert.Equal(t, []string{"0"}, d.handle("SENS?"))

	assert.Empty(t, d.handle("EN=1"))
	assert.Equal(t, []string{"1"}, d.handle("EN?"))
	assert.True(t, d.Enabled())
}

func TestHandle_RejectsOutOfRangeSetters(t *testing.T) {
	d := New()

	d.handle("MOD=7")
	assert.Equal(t, []string{"0"}, d.handle("MOD?"))

	d.handle("SENS=9")
	assert.Equal(t, []string{"1"}, d.handle("SENS?"))
}

func TestHandle_UnknownCommandPromptsOnly(t *testing.T) {
	d := New()

	assert.Empty(t, d.handle("BOGUS?"))
}

func TestTick_DriftsTowardTargetWhenEnabled(t *testing.T) {
	d := New()
	d.SetActualTemp(25.0)
	d.handle("TSET=220")

	// Disabled: no drift.
	d.Tick()
	assert.InDelta(t, 25.0, d.ActualTemp(), 1e-9)

	d.handle("EN=1")
	d.Tick()
	assert.InDelta(t, 24.7, d.ActualTemp(), 1e-9)

	for i := 0; i < 20; i++ {
		d.Tick()
	}
	assert.InDelta(t, 22.0, d.ActualTemp(), 1e-9)
}
