package nvm

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Region identifies one of the lockable areas behind the flash controller.
type Region int

const (
	RegionFlash Region = iota
	RegionEEPROM
	RegionOption
)

func (r Region) String() string {
	switch r {
	case RegionFlash:
		return "flash"
	case RegionEEPROM:
		return "eeprom"
	case RegionOption:
		return "option"
	default:
		return "unknown"
	}
}

// Layout describes the memory geometry of a chip variant. It is static
// configuration: the programming engine never derives it at runtime.
type Layout struct {
	FlashBase     uint32 `yaml:"flash_base"`
	FlashSize     uint32 `yaml:"flash_size"`
	EEPROMBase    uint32 `yaml:"eeprom_base"`
	EEPROMSize    uint32 `yaml:"eeprom_size"`
	OptionBase    uint32 `yaml:"option_base"`
	OptionSize    uint32 `yaml:"option_size"`
	PageSize      uint32 `yaml:"page_size"`
	HalfPageWords uint32 `yaml:"half_page_words"`
}

// DefaultLayout returns the geometry of a mid-range category 3 part with
// 64 KiB of flash and 2 KiB of data EEPROM.
func DefaultLayout() Layout {
	return Layout{
		FlashBase:     0x0800_0000,
		FlashSize:     64 * 1024,
		EEPROMBase:    0x0808_0000,
		EEPROMSize:    2 * 1024,
		OptionBase:    0x1FF8_0000,
		OptionSize:    32,
		PageSize:      128,
		HalfPageWords: 16,
	}
}

// Category5Layout returns the geometry of a category 5 part. On the 64 KiB
// variant the first 3 KiB of the data EEPROM bank belong to the second
// flash bank, so the EEPROM starts higher up (reference manual tables,
// section 3.3.1).
func Category5Layout(flashKB uint32) Layout {
	l := DefaultLayout()
	l.FlashSize = flashKB * 1024
	l.EEPROMBase = 0x0808_0000
	l.EEPROMSize = 6 * 1024
	if flashKB == 64 {
		l.EEPROMBase = 0x0808_0C00
		l.EEPROMSize = 3 * 1024
	}
	return l
}

// BuiltinLayout returns a named built-in geometry: "cat3" for the
// default category 3 part, "cat5-64", "cat5-128" or "cat5-192" for the
// category 5 variants.
func BuiltinLayout(name string) (Layout, error) {
	switch name {
	case "", "cat3":
		return DefaultLayout(), nil
	case "cat5-64":
		return Category5Layout(64), nil
	case "cat5-128":
		return Category5Layout(128), nil
	case "cat5-192":
		return Category5Layout(192), nil
	}
	return Layout{}, fmt.Errorf("unknown chip %q (want cat3, cat5-64, cat5-128 or cat5-192)", name)
}

// LoadLayout reads a chip layout from a YAML document. Missing geometry
// fields inherit the defaults of DefaultLayout.
func LoadLayout(r io.Reader) (Layout, error) {
	l := DefaultLayout()
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&l); err != nil {
		return Layout{}, fmt.Errorf("could not decode layout: %w", err)
	}
	if err := l.Validate(); err != nil {
		return Layout{}, err
	}
	return l, nil
}

// LoadLayoutFile reads a chip layout from a YAML file.
func LoadLayoutFile(path string) (Layout, error) {
	f, err := os.Open(path)
	if err != nil {
		return Layout{}, fmt.Errorf("could not open layout file: %w", err)
	}
	defer f.Close()
	return LoadLayout(f)
}

func (l Layout) Validate() error {
	if l.PageSize == 0 || l.PageSize%4 != 0 {
		return fmt.Errorf("invalid page size %d", l.PageSize)
	}
	if l.HalfPageWords == 0 || l.HalfPageWords*4*2 != l.PageSize {
		return fmt.Errorf("half-page of %d words does not split a %d-byte page in two", l.HalfPageWords, l.PageSize)
	}
	if l.FlashSize%l.PageSize != 0 {
		return fmt.Errorf("flash size %d is not a multiple of the page size", l.FlashSize)
	}
	return nil
}

// HalfPageBytes returns the size of the burst unit in bytes.
func (l Layout) HalfPageBytes() uint32 { return l.HalfPageWords * 4 }

func (l Layout) InFlash(addr uint32) bool {
	return addr >= l.FlashBase && addr < l.FlashBase+l.FlashSize
}

func (l Layout) InEEPROM(addr uint32) bool {
	return addr >= l.EEPROMBase && addr < l.EEPROMBase+l.EEPROMSize
}

func (l Layout) InOption(addr uint32) bool {
	return addr >= l.OptionBase && addr < l.OptionBase+l.OptionSize
}

// RegionOf returns the region an address belongs to.
func (l Layout) RegionOf(addr uint32) (Region, bool) {
	switch {
	case l.InFlash(addr):
		return RegionFlash, true
	case l.InEEPROM(addr):
		return RegionEEPROM, true
	case l.InOption(addr):
		return RegionOption, true
	default:
		return 0, false
	}
}

// PageBase returns the base address of the page containing addr.
func (l Layout) PageBase(addr uint32) uint32 {
	return addr - (addr-l.FlashBase)%l.PageSize
}
