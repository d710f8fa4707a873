package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupKnownFormat(t *testing.T) {
	spec, ok := Lookup(XR24)
	assert.True(t, ok)
	assert.Equal(t, 1, spec.NumPlanes)
	assert.Equal(t, uint8(32), spec.Bpp[0])
}

func TestLookupMasksBigEndianBit(t *testing.T) {
	spec, ok := Lookup(XR24 | bigEndianBit)
	assert.True(t, ok)
	assert.Equal(t, XR24, spec.Fourcc)
}

func TestLookupUnknownFormat(t *testing.T) {
	_, ok := Lookup(0xdeadbeef)
	assert.False(t, ok)
}

func TestLookupMultiPlane(t *testing.T) {
	spec, ok := Lookup(NV12)
	assert.True(t, ok)
	assert.Equal(t, 2, spec.NumPlanes)
}
