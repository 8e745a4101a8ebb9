// Package sim is a software model of the on-chip NVM controller: key
// registers, lock bits, operation modes, the half-page latch and the
// status flags, backed by in-memory flash and EEPROM arrays. It
// implements nvm.Bus, so the programming engine runs against it without
// hardware, and tests can drive every completion path deterministically.
package sim

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/mklimuk/nvm"
)

// Register offsets and bits, duplicated from the reference manual on
// purpose: the model plays the hardware side and must not borrow the
// driver's view of it.
const (
	regPECR    = 0x04
	regPEKEYR  = 0x0C
	regPRGKEYR = 0x10
	regOPTKEYR = 0x14
	regSR      = 0x18
)

const (
	pecrPELock  uint32 = 1 << 0
	pecrPRGLock uint32 = 1 << 1
	pecrOPTLock uint32 = 1 << 2
	pecrProg    uint32 = 1 << 3
	pecrErase   uint32 = 1 << 9
	pecrFPRG    uint32 = 1 << 10

	pecrModeBits = pecrProg | pecrErase | pecrFPRG
)

const (
	srBusy         uint32 = 1 << 0
	srEndOfOp      uint32 = 1 << 1
	srWriteProtect uint32 = 1 << 8
	srAlignment    uint32 = 1 << 9
	srSize         uint32 = 1 << 10
	srNotZero      uint32 = 1 << 16

	srErrorBits uint32 = 0x0003_3F00
)

const (
	peKey1  uint32 = 0x89ABCDEF
	peKey2  uint32 = 0x02030405
	prgKey1 uint32 = 0x8C9DAEBF
	prgKey2 uint32 = 0x13141516
	optKey1 uint32 = 0xFBEAD9C8
	optKey2 uint32 = 0x24252627
)

type latch struct {
	active bool
	base   uint32
	next   uint32
	words  []uint32
	// discarded marks that a burst was dropped because of a gapped or
	// out-of-order store. From then on the latch re-arms silently: no
	// flag is raised, the content just never shows up.
	discarded bool
}

// Controller is the simulated device. The zero value is not usable, use
// New. All methods are safe for concurrent use, mirroring the single
// shared hardware resource.
type Controller struct {
	mx      sync.Mutex
	layout  nvm.Layout
	regBase uint32

	flash  []byte
	eeprom []byte

	pecr uint32
	sr   uint32

	peStage, prgStage, optStage int

	busyCycles int
	busyLeft   int
	stuck      bool

	protected map[uint32]bool
	latch     latch
}

func New(layout nvm.Layout, opts ...Opt) *Controller {
	config := Opts{
		RegisterBase: 0x4002_2000,
		BusyCycles:   2,
	}
	for _, opt := range opts {
		opt(&config)
	}
	c := &Controller{
		layout:     layout,
		regBase:    config.RegisterBase,
		flash:      make([]byte, layout.FlashSize),
		eeprom:     make([]byte, layout.EEPROMSize),
		pecr:       pecrPELock | pecrPRGLock | pecrOPTLock,
		busyCycles: config.BusyCycles,
		stuck:      config.StuckBusy,
		protected:  make(map[uint32]bool),
	}
	// Flash powers up erased; the data EEPROM erases to zero.
	for i := range c.flash {
		c.flash[i] = 0xFF
	}
	for _, page := range config.ProtectedPages {
		c.protected[layout.PageBase(page)] = true
	}
	return c
}

var _ nvm.Bus = &Controller{}

func (c *Controller) ReadWord(ctx context.Context, addr uint32) (uint32, error) {
	c.mx.Lock()
	defer c.mx.Unlock()
	if reg, ok := c.register(addr); ok {
		return c.readRegister(reg), nil
	}
	switch {
	case c.layout.InFlash(addr):
		return binary.LittleEndian.Uint32(c.flash[addr-c.layout.FlashBase:]), nil
	case c.layout.InEEPROM(addr):
		return binary.LittleEndian.Uint32(c.eeprom[addr-c.layout.EEPROMBase:]), nil
	}
	return 0, &nvm.OutOfRangeError{Addr: addr, Region: nvm.RegionFlash}
}

func (c *Controller) ReadByte(ctx context.Context, addr uint32) (byte, error) {
	c.mx.Lock()
	defer c.mx.Unlock()
	switch {
	case c.layout.InFlash(addr):
		return c.flash[addr-c.layout.FlashBase], nil
	case c.layout.InEEPROM(addr):
		return c.eeprom[addr-c.layout.EEPROMBase], nil
	}
	return 0, &nvm.OutOfRangeError{Addr: addr, Region: nvm.RegionEEPROM}
}

func (c *Controller) WriteWord(ctx context.Context, addr uint32, value uint32) error {
	c.mx.Lock()
	defer c.mx.Unlock()
	if reg, ok := c.register(addr); ok {
		c.writeRegister(reg, value)
		return nil
	}
	switch {
	case c.layout.InFlash(addr):
		c.storeFlashWord(addr, value)
		return nil
	case c.layout.InEEPROM(addr):
		c.storeEEPROM(addr, 4, func(off uint32) {
			binary.LittleEndian.PutUint32(c.eeprom[off:], value)
		})
		return nil
	}
	return &nvm.OutOfRangeError{Addr: addr, Region: nvm.RegionFlash}
}

func (c *Controller) WriteByte(ctx context.Context, addr uint32, value byte) error {
	c.mx.Lock()
	defer c.mx.Unlock()
	switch {
	case c.layout.InFlash(addr):
		// The flash array only takes word-granular programming.
		c.sr |= srSize
		return nil
	case c.layout.InEEPROM(addr):
		c.storeEEPROM(addr, 1, func(off uint32) {
			c.eeprom[off] = value
		})
		return nil
	}
	return &nvm.OutOfRangeError{Addr: addr, Region: nvm.RegionEEPROM}
}

func (c *Controller) register(addr uint32) (uint32, bool) {
	if addr >= c.regBase && addr < c.regBase+0x20 {
		return addr - c.regBase, true
	}
	return 0, false
}

func (c *Controller) readRegister(reg uint32) uint32 {
	switch reg {
	case regPECR:
		return c.pecr
	case regSR:
		if c.stuck {
			return c.sr | srBusy
		}
		if c.busyLeft > 0 {
			c.busyLeft--
			return c.sr | srBusy
		}
		return c.sr
	default:
		return 0
	}
}

func (c *Controller) writeRegister(reg uint32, value uint32) {
	switch reg {
	case regPEKEYR:
		c.stepKey(&c.peStage, value, peKey1, peKey2, pecrPELock)
	case regPRGKEYR:
		if c.pecr&pecrPELock == 0 {
			c.stepKey(&c.prgStage, value, prgKey1, prgKey2, pecrPRGLock)
		}
	case regOPTKEYR:
		if c.pecr&pecrPELock == 0 {
			c.stepKey(&c.optStage, value, optKey1, optKey2, pecrOPTLock)
		}
	case regPECR:
		// PECR is writable only while unlocked. Setting PELOCK back
		// relocks everything below it and drops the armed mode.
		if c.pecr&pecrPELock != 0 {
			return
		}
		if value&pecrPELock != 0 {
			c.pecr = pecrPELock | pecrPRGLock | pecrOPTLock
			c.peStage, c.prgStage, c.optStage = 0, 0, 0
			c.latch = latch{}
			return
		}
		c.pecr = (c.pecr &^ pecrModeBits) | (value & pecrModeBits)
		if c.pecr&pecrFPRG == 0 {
			c.latch = latch{}
		}
	case regSR:
		// Error flags are write-one-to-clear.
		c.sr &^= value & srErrorBits
		c.sr &^= value & srEndOfOp
	}
}

// stepKey advances a two-value key sequence. A wrong value at any stage
// re-arms the sequence without unlocking.
func (c *Controller) stepKey(stage *int, value, key1, key2, lockBit uint32) {
	switch {
	case *stage == 0 && value == key1:
		*stage = 1
	case *stage == 1 && value == key2:
		*stage = 0
		c.pecr &^= lockBit
	default:
		*stage = 0
	}
}

// storeFlashWord routes a word store into the flash array through the
// armed operation mode.
func (c *Controller) storeFlashWord(addr uint32, value uint32) {
	if c.pecr&pecrPRGLock != 0 {
		c.sr |= srWriteProtect
		return
	}
	if c.protected[c.layout.PageBase(addr)] {
		c.sr |= srWriteProtect
		return
	}
	if addr%4 != 0 {
		c.sr |= srAlignment
		return
	}
	switch {
	case c.pecr&pecrErase != 0:
		base := c.layout.PageBase(addr)
		off := base - c.layout.FlashBase
		for i := uint32(0); i < c.layout.PageSize; i++ {
			c.flash[off+i] = 0xFF
		}
		c.complete()
	case c.pecr&pecrFPRG != 0:
		c.latchWord(addr, value)
	default:
		c.programWord(addr, value)
	}
}

func (c *Controller) programWord(addr uint32, value uint32) {
	off := addr - c.layout.FlashBase
	stored := binary.LittleEndian.Uint32(c.flash[off:])
	if stored&value != value {
		c.sr |= srNotZero
		return
	}
	// Programming can only pull bits down.
	binary.LittleEndian.PutUint32(c.flash[off:], stored&value)
	c.complete()
}

// latchWord models the half-page buffer: stores must arrive contiguous
// and ascending from the half-page base. Any gap or out-of-order store
// silently discards the partial burst and re-arms the latch; the
// hardware raises no flag for it.
func (c *Controller) latchWord(addr uint32, value uint32) {
	hp := c.layout.HalfPageBytes()
	if !c.latch.active {
		if addr%hp != 0 {
			if !c.latch.discarded {
				c.sr |= srAlignment
			}
			return
		}
		c.latch = latch{active: true, base: addr, discarded: c.latch.discarded,
			words: make([]uint32, 0, c.layout.HalfPageWords)}
	} else if addr != c.latch.base+c.latch.next*4 {
		c.latch = latch{discarded: true}
		if addr%hp == 0 {
			c.latch = latch{active: true, base: addr, discarded: true,
				words: make([]uint32, 0, c.layout.HalfPageWords)}
		} else {
			return
		}
	}
	c.latch.words = append(c.latch.words, value)
	c.latch.next++
	if c.latch.next == c.layout.HalfPageWords {
		c.commitLatch()
	}
}

func (c *Controller) commitLatch() {
	defer func() { c.latch = latch{} }()
	base := c.latch.base - c.layout.FlashBase
	for i, w := range c.latch.words {
		stored := binary.LittleEndian.Uint32(c.flash[base+uint32(i)*4:])
		if stored&w != w {
			c.sr |= srNotZero
			return
		}
	}
	for i, w := range c.latch.words {
		binary.LittleEndian.PutUint32(c.flash[base+uint32(i)*4:], w)
	}
	c.complete()
}

func (c *Controller) storeEEPROM(addr uint32, size uint32, store func(off uint32)) {
	if c.pecr&pecrPELock != 0 {
		c.sr |= srWriteProtect
		return
	}
	off := addr - c.layout.EEPROMBase
	if off+size > c.layout.EEPROMSize {
		c.sr |= srSize
		return
	}
	// Implicit erase-then-write: the cell takes any new value.
	store(off)
	c.complete()
}

// complete starts the busy window of a successful operation.
func (c *Controller) complete() {
	c.busyLeft = c.busyCycles
	c.sr |= srEndOfOp
}
