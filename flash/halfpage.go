package flash

import (
	"context"
	"fmt"

	"github.com/mklimuk/nvm"
)

// HalfPageProgrammer performs the fixed-size word burst that the
// controller latches before auto-triggering its internal write cycle.
// The contract is strict:
//
//   - addr is aligned to the half-page boundary and the caller already
//     holds the flash unlock guard with half-page mode enabled;
//   - the implementation performs exactly len(words) contiguous,
//     ascending word stores with no other access to the flash region in
//     between. Any gap or out-of-order store makes the hardware discard
//     the partial burst and silently re-arm; the only symptom is that
//     the programmed content never shows up. The primitive cannot detect
//     this itself, it has no status visibility while running.
//
// On a real target the routine and its stack must live outside the flash
// bank being written, because the array is unreadable for instruction
// fetch during the write cycle. That placement is handed to the linker by
// the build; the driver treats the programmer as an opaque value.
type HalfPageProgrammer func(ctx context.Context, bus nvm.WordWriter, addr uint32, words []uint32) error

// programBurst is the default half-page programmer: the straight word
// copy loop, nothing else.
func programBurst(ctx context.Context, bus nvm.WordWriter, addr uint32, words []uint32) error {
	for i, w := range words {
		if err := bus.WriteWord(ctx, addr+uint32(i)*4, w); err != nil {
			return fmt.Errorf("burst store %d failed: %w", i, err)
		}
	}
	return nil
}
