// Package eeprom gives byte-granular write access to the on-chip data
// EEPROM. Unlike the flash main array the EEPROM needs no explicit erase:
// overwriting a non-zero byte is handled by the hardware as an implicit
// erase-then-write and shows up here as one atomic-looking operation.
// Unlock, poll and relock follow the same discipline as the flash driver.
package eeprom

import (
	"context"
	"fmt"

	"github.com/mklimuk/nvm"
	"github.com/mklimuk/nvm/flash"
)

// Accessor writes to the data EEPROM through the flash controller's
// unlock and status machinery.
type Accessor struct {
	ctrl *flash.Controller
}

func New(ctrl *flash.Controller) *Accessor {
	return &Accessor{ctrl: ctrl}
}

// WriteByte writes one byte of EEPROM. No alignment is required and no
// prior erase: writing zero over a non-zero byte succeeds.
func (a *Accessor) WriteByte(ctx context.Context, addr uint32, value byte) error {
	if !a.ctrl.Layout().InEEPROM(addr) {
		return &nvm.OutOfRangeError{Addr: addr, Region: nvm.RegionEEPROM}
	}
	return a.write(ctx, addr, func(ctx context.Context) error {
		return a.ctrl.Bus().WriteByte(ctx, addr, value)
	})
}

// WriteWord writes one word of EEPROM. The address must be word aligned.
func (a *Accessor) WriteWord(ctx context.Context, addr uint32, value uint32) error {
	if addr%4 != 0 {
		return &nvm.MisalignedError{Addr: addr, Align: 4}
	}
	if !a.ctrl.Layout().InEEPROM(addr) || !a.ctrl.Layout().InEEPROM(addr+3) {
		return &nvm.OutOfRangeError{Addr: addr, Region: nvm.RegionEEPROM}
	}
	return a.write(ctx, addr, func(ctx context.Context) error {
		return a.ctrl.Bus().WriteWord(ctx, addr, value)
	})
}

func (a *Accessor) write(ctx context.Context, addr uint32, store func(context.Context) error) error {
	guard, err := a.ctrl.Unlock(ctx, nvm.RegionEEPROM)
	if err != nil {
		return fmt.Errorf("could not unlock eeprom: %w", err)
	}
	defer func() { _ = guard.Release(ctx) }()

	if err := a.ctrl.Wait(ctx); err != nil {
		return fmt.Errorf("controller not idle before eeprom write: %w", err)
	}
	if err := store(ctx); err != nil {
		return fmt.Errorf("could not write eeprom at 0x%08X: %w", addr, err)
	}
	if err := a.ctrl.Wait(ctx); err != nil {
		return fmt.Errorf("eeprom write at 0x%08X failed: %w", addr, err)
	}
	return nil
}
