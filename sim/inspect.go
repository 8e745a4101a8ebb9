package sim

import (
	"encoding/binary"
	"fmt"

	"github.com/mklimuk/nvm"
)

// Locked reports whether the lock bit of a region is currently engaged.
func (c *Controller) Locked(region nvm.Region) bool {
	c.mx.Lock()
	defer c.mx.Unlock()
	switch region {
	case nvm.RegionFlash:
		return c.pecr&pecrPRGLock != 0
	case nvm.RegionOption:
		return c.pecr&pecrOPTLock != 0
	default:
		return c.pecr&pecrPELock != 0
	}
}

// FlashWord returns the stored flash word without going through the bus
// protocol. Test helper.
func (c *Controller) FlashWord(addr uint32) uint32 {
	c.mx.Lock()
	defer c.mx.Unlock()
	return binary.LittleEndian.Uint32(c.flash[addr-c.layout.FlashBase:])
}

// EEPROMByte returns the stored EEPROM byte. Test helper.
func (c *Controller) EEPROMByte(addr uint32) byte {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.eeprom[addr-c.layout.EEPROMBase]
}

// LoadFlash seeds the flash array at addr, bypassing the programming
// protocol, so tests and the CLI can arrange preexisting content.
func (c *Controller) LoadFlash(addr uint32, data []byte) error {
	c.mx.Lock()
	defer c.mx.Unlock()
	if !c.layout.InFlash(addr) || !c.layout.InFlash(addr+uint32(len(data))-1) {
		return fmt.Errorf("flash image of %d bytes does not fit at 0x%08X", len(data), addr)
	}
	copy(c.flash[addr-c.layout.FlashBase:], data)
	return nil
}

// LoadEEPROM seeds the EEPROM array at addr, bypassing the write
// protocol.
func (c *Controller) LoadEEPROM(addr uint32, data []byte) error {
	c.mx.Lock()
	defer c.mx.Unlock()
	if !c.layout.InEEPROM(addr) || !c.layout.InEEPROM(addr+uint32(len(data))-1) {
		return fmt.Errorf("eeprom image of %d bytes does not fit at 0x%08X", len(data), addr)
	}
	copy(c.eeprom[addr-c.layout.EEPROMBase:], data)
	return nil
}

// DumpFlash copies out the flash content starting at addr. Test and CLI
// helper.
func (c *Controller) DumpFlash(addr uint32, n int) ([]byte, error) {
	c.mx.Lock()
	defer c.mx.Unlock()
	if !c.layout.InFlash(addr) || !c.layout.InFlash(addr+uint32(n)-1) {
		return nil, fmt.Errorf("range of %d bytes at 0x%08X is outside flash", n, addr)
	}
	out := make([]byte, n)
	copy(out, c.flash[addr-c.layout.FlashBase:])
	return out, nil
}
