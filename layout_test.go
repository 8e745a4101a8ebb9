package nvm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLayout(t *testing.T) {
	l := DefaultLayout()
	require.NoError(t, l.Validate())
	assert.Equal(t, uint32(64), l.HalfPageBytes())
	assert.Equal(t, uint32(128), l.PageSize)
}

func TestCategory5Layout(t *testing.T) {
	l := Category5Layout(128)
	require.NoError(t, l.Validate())
	assert.Equal(t, uint32(0x0808_0000), l.EEPROMBase)

	// On the 64 KiB variant the EEPROM bank starts higher up.
	l = Category5Layout(64)
	require.NoError(t, l.Validate())
	assert.Equal(t, uint32(0x0808_0C00), l.EEPROMBase)
	assert.Equal(t, uint32(3*1024), l.EEPROMSize)
}

func TestBuiltinLayout(t *testing.T) {
	tests := []struct {
		name       string
		flashSize  uint32
		eepromBase uint32
	}{
		{"cat3", 64 * 1024, 0x0808_0000},
		{"cat5-64", 64 * 1024, 0x0808_0C00},
		{"cat5-128", 128 * 1024, 0x0808_0000},
		{"cat5-192", 192 * 1024, 0x0808_0000},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			l, err := BuiltinLayout(test.name)
			require.NoError(t, err)
			require.NoError(t, l.Validate())
			assert.Equal(t, test.flashSize, l.FlashSize)
			assert.Equal(t, test.eepromBase, l.EEPROMBase)
		})
	}

	// The empty name selects the default geometry.
	l, err := BuiltinLayout("")
	require.NoError(t, err)
	assert.Equal(t, DefaultLayout(), l)

	_, err = BuiltinLayout("cat7")
	assert.Error(t, err)
}

func TestLayout_RegionOf(t *testing.T) {
	l := DefaultLayout()
	tests := []struct {
		name   string
		addr   uint32
		region Region
		ok     bool
	}{
		{"flash start", l.FlashBase, RegionFlash, true},
		{"flash last byte", l.FlashBase + l.FlashSize - 1, RegionFlash, true},
		{"past flash", l.FlashBase + l.FlashSize, 0, false},
		{"eeprom start", l.EEPROMBase, RegionEEPROM, true},
		{"option", l.OptionBase, RegionOption, true},
		{"ram", 0x2000_0000, 0, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			region, ok := l.RegionOf(test.addr)
			assert.Equal(t, test.ok, ok)
			if test.ok {
				assert.Equal(t, test.region, region)
			}
		})
	}
}

func TestLayout_PageBase(t *testing.T) {
	l := DefaultLayout()
	assert.Equal(t, uint32(0x0800_1000), l.PageBase(0x0800_1000))
	assert.Equal(t, uint32(0x0800_1000), l.PageBase(0x0800_107F))
	assert.Equal(t, uint32(0x0800_1080), l.PageBase(0x0800_1080))
}

func TestLoadLayout(t *testing.T) {
	doc := `
flash_base: 0x08000000
flash_size: 196608
eeprom_base: 0x08080000
eeprom_size: 6144
`
	l, err := LoadLayout(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, uint32(192*1024), l.FlashSize)
	assert.Equal(t, uint32(6*1024), l.EEPROMSize)
	// Geometry defaults survive a partial document.
	assert.Equal(t, uint32(128), l.PageSize)
	assert.Equal(t, uint32(16), l.HalfPageWords)
}

func TestLoadLayout_Invalid(t *testing.T) {
	_, err := LoadLayout(strings.NewReader("page_size: 100"))
	assert.Error(t, err)

	_, err = LoadLayout(strings.NewReader("not: [valid"))
	assert.Error(t, err)
}

func TestLayout_Validate(t *testing.T) {
	l := DefaultLayout()
	l.HalfPageWords = 8
	assert.Error(t, l.Validate())

	l = DefaultLayout()
	l.FlashSize = 1000
	assert.Error(t, l.Validate())
}
