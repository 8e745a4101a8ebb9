package flash

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mklimuk/nvm"
)

// Controller drives page erase and word/half-page programming of the
// on-chip flash array. Every operation follows the same discipline:
// acquire the unlock guard, arm the operation mode, trigger, poll the
// status register until the controller goes idle, release the guard.
// The guard release re-locks the region on every exit path.
//
// Typical usage:
//
//	c := flash.New(bus, nvm.DefaultLayout())
//	if err := c.ErasePage(ctx, 0x08001000); err != nil { ... }
//	err := c.ProgramWord(ctx, 0x08001000, 0xCAFEBABE)
type Controller struct {
	mx     sync.Mutex
	held   map[nvm.Region]bool
	bus    nvm.Bus
	layout nvm.Layout
	opts   Opts
}

func New(bus nvm.Bus, layout nvm.Layout, opts ...Opt) *Controller {
	config := Opts{
		RegisterBase: DefaultRegisterBase,
		PollAttempts: 100,
		PollInterval: 100 * time.Microsecond,
		Sleep:        time.Sleep,
		Burst:        programBurst,
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &Controller{
		held:   make(map[nvm.Region]bool),
		bus:    bus,
		layout: layout,
		opts:   config,
	}
}

// Layout returns the chip geometry the controller was configured with.
func (c *Controller) Layout() nvm.Layout { return c.layout }

// Bus returns the underlying memory bus.
func (c *Controller) Bus() nvm.Bus { return c.bus }

// Status reads and decodes the status register without touching the
// operation in flight.
func (c *Controller) Status(ctx context.Context) (Completion, Flags, error) {
	raw, err := c.readReg(ctx, regSR)
	if err != nil {
		return Busy, 0, fmt.Errorf("could not read status register: %w", err)
	}
	return Decode(Flags(raw)), Flags(raw), nil
}

// ErasePage erases one flash page. The address must be the page base.
// Erasing a page that is already erased succeeds and changes nothing.
// A timeout is fatal for the operation and is never retried here:
// re-triggering an erase that did not complete risks leaving the page
// half-erased.
func (c *Controller) ErasePage(ctx context.Context, addr uint32) error {
	if addr%c.layout.PageSize != 0 {
		return &nvm.MisalignedError{Addr: addr, Align: c.layout.PageSize}
	}
	if !c.layout.InFlash(addr) {
		return &nvm.OutOfRangeError{Addr: addr, Region: nvm.RegionFlash}
	}
	guard, err := c.Unlock(ctx, nvm.RegionFlash)
	if err != nil {
		return fmt.Errorf("could not unlock flash: %w", err)
	}
	defer func() { _ = guard.Release(ctx) }()

	if err := c.Wait(ctx); err != nil {
		return fmt.Errorf("controller not idle before erase: %w", err)
	}
	if err := c.setMode(ctx, pecrErase|pecrProg); err != nil {
		return fmt.Errorf("could not arm erase mode: %w", err)
	}
	// Writing any word in the page triggers the erase.
	if err := c.bus.WriteWord(ctx, addr, 0); err != nil {
		return fmt.Errorf("could not trigger erase of 0x%08X: %w", addr, err)
	}
	if err := c.Wait(ctx); err != nil {
		return fmt.Errorf("erase of 0x%08X failed: %w", addr, err)
	}
	return nil
}

// ProgramWord programs a single word of flash or EEPROM. Flash cells can
// only be cleared by programming, so unless the stored value is a bitwise
// superset of the requested one the call fails with nvm.ErrNotErased
// before any hardware write is issued.
func (c *Controller) ProgramWord(ctx context.Context, addr uint32, value uint32) error {
	if addr%4 != 0 {
		return &nvm.MisalignedError{Addr: addr, Align: 4}
	}
	region, ok := c.layout.RegionOf(addr)
	if !ok || region == nvm.RegionOption {
		return &nvm.OutOfRangeError{Addr: addr, Region: nvm.RegionFlash}
	}
	if region == nvm.RegionFlash {
		stored, err := c.bus.ReadWord(ctx, addr)
		if err != nil {
			return fmt.Errorf("could not read back 0x%08X: %w", addr, err)
		}
		if stored&value != value {
			return &nvm.NotErasedError{Addr: addr, Stored: stored, Value: value}
		}
	}
	guard, err := c.Unlock(ctx, region)
	if err != nil {
		return fmt.Errorf("could not unlock %s: %w", region, err)
	}
	defer func() { _ = guard.Release(ctx) }()

	if err := c.Wait(ctx); err != nil {
		return fmt.Errorf("controller not idle before program: %w", err)
	}
	if err := c.bus.WriteWord(ctx, addr, value); err != nil {
		return fmt.Errorf("could not write word at 0x%08X: %w", addr, err)
	}
	if err := c.Wait(ctx); err != nil {
		return fmt.Errorf("program of 0x%08X failed: %w", addr, err)
	}
	return nil
}

// ProgramHalfPage programs one half-page burst. The operation is
// all-or-nothing: every word of the block must pass the erased check
// before any hardware write happens, otherwise the whole call is
// rejected and no word in the page is altered.
func (c *Controller) ProgramHalfPage(ctx context.Context, addr uint32, words []uint32) error {
	if uint32(len(words)) != c.layout.HalfPageWords {
		return fmt.Errorf("%w: expected %d words, got %d", nvm.ErrInvalidSize, c.layout.HalfPageWords, len(words))
	}
	if addr%c.layout.HalfPageBytes() != 0 {
		return &nvm.MisalignedError{Addr: addr, Align: c.layout.HalfPageBytes()}
	}
	if !c.layout.InFlash(addr) || !c.layout.InFlash(addr+c.layout.HalfPageBytes()-1) {
		return &nvm.OutOfRangeError{Addr: addr, Region: nvm.RegionFlash}
	}
	for i, w := range words {
		target := addr + uint32(i)*4
		stored, err := c.bus.ReadWord(ctx, target)
		if err != nil {
			return fmt.Errorf("could not read back 0x%08X: %w", target, err)
		}
		if stored&w != w {
			return &nvm.NotErasedError{Addr: target, Stored: stored, Value: w}
		}
	}
	guard, err := c.Unlock(ctx, nvm.RegionFlash)
	if err != nil {
		return fmt.Errorf("could not unlock flash: %w", err)
	}
	defer func() { _ = guard.Release(ctx) }()

	if err := c.Wait(ctx); err != nil {
		return fmt.Errorf("controller not idle before half-page program: %w", err)
	}
	if err := c.setMode(ctx, pecrFPRG|pecrProg); err != nil {
		return fmt.Errorf("could not arm half-page mode: %w", err)
	}
	if err := c.opts.Burst(ctx, c.bus, addr, words); err != nil {
		return fmt.Errorf("half-page burst at 0x%08X failed: %w", addr, err)
	}
	if err := c.Wait(ctx); err != nil {
		return fmt.Errorf("half-page program of 0x%08X failed: %w", addr, err)
	}
	return nil
}

// Wait polls the status register until the controller leaves the busy
// state, bounded by the configured poll budget and the context.
// Cancellation stops the poll with the context error; exceeding the
// budget yields nvm.ErrTimeout. Either way the caller must treat the operation as
// unrecoverable without a full reset, because once triggered a write or
// erase cannot be cancelled. On a terminal state the error flags are
// cleared and translated.
func (c *Controller) Wait(ctx context.Context) error {
	var raw Flags
	for attempt := 0; attempt < c.opts.PollAttempts; attempt++ {
		// The poll gives up on cancellation; the triggered hardware
		// operation itself runs to completion regardless.
		if err := ctx.Err(); err != nil {
			return err
		}
		v, err := c.readReg(ctx, regSR)
		if err != nil {
			return fmt.Errorf("could not poll status register: %w", err)
		}
		raw = Flags(v)
		if Decode(raw) != Busy {
			return c.finish(ctx, raw)
		}
		c.opts.Sleep(c.opts.PollInterval)
	}
	return nvm.ErrTimeout
}

// finish clears the sticky error flags and converts them to the outcome
// of the operation.
func (c *Controller) finish(ctx context.Context, raw Flags) error {
	if raw&flagErrors != 0 {
		// Error flags are write-one-to-clear.
		if err := c.writeReg(ctx, regSR, uint32(raw&flagErrors)); err != nil {
			return fmt.Errorf("could not clear status flags: %w", err)
		}
	}
	if raw&FlagFetchAbort != 0 {
		return nvm.ErrAbortedByFetch
	}
	if raw&FlagNotZero != 0 {
		return nvm.ErrNotErased
	}
	return Decode(raw).Err()
}

// setMode reads PECR and ors the operation mode bits in.
func (c *Controller) setMode(ctx context.Context, bits uint32) error {
	pecr, err := c.readReg(ctx, regPECR)
	if err != nil {
		return err
	}
	return c.writeReg(ctx, regPECR, pecr|bits)
}

func (c *Controller) readReg(ctx context.Context, offset uint32) (uint32, error) {
	return c.bus.ReadWord(ctx, c.opts.RegisterBase+offset)
}

func (c *Controller) writeReg(ctx context.Context, offset uint32, value uint32) error {
	return c.bus.WriteWord(ctx, c.opts.RegisterBase+offset, value)
}
