package flash

import (
	"context"
	"fmt"

	"github.com/mklimuk/nvm"
)

// Guard is the single-holder token returned by Unlock. Releasing it
// re-locks the region and resets the operation mode bits, on every exit
// path. A guard is not safe for concurrent use.
type Guard struct {
	c        *Controller
	region   nvm.Region
	released bool
}

// Unlock writes the key sequence for the region and verifies the lock bit
// cleared. At most one guard per region may be outstanding; a second
// attempt fails immediately with nvm.ErrAlreadyUnlocked instead of
// blocking, so that time-critical callers are never stalled.
func (c *Controller) Unlock(ctx context.Context, region nvm.Region) (*Guard, error) {
	c.mx.Lock()
	if c.held[region] {
		c.mx.Unlock()
		return nil, nvm.ErrAlreadyUnlocked
	}
	c.held[region] = true
	c.mx.Unlock()

	if err := c.writeKeys(ctx, region); err != nil {
		c.releaseHold(region)
		return nil, fmt.Errorf("could not write %s key sequence: %w", region, err)
	}
	pecr, err := c.readReg(ctx, regPECR)
	if err != nil {
		c.releaseHold(region)
		return nil, fmt.Errorf("could not read lock state: %w", err)
	}
	if pecr&lockBit(region) != 0 {
		c.releaseHold(region)
		return nil, nvm.ErrKeyRejected
	}
	return &Guard{c: c, region: region}, nil
}

// Release re-locks the region. It is idempotent; the hold is dropped even
// if the bus write fails, because the hardware relocks on reset anyway
// and a stuck hold would forbid every further operation.
func (g *Guard) Release(ctx context.Context) error {
	if g.released {
		return nil
	}
	g.released = true
	defer g.c.releaseHold(g.region)
	// Setting PELOCK clears the mode bits and re-engages PRGLOCK and
	// OPTLOCK along with it.
	if err := g.c.writeReg(ctx, regPECR, pecrPELock); err != nil {
		return fmt.Errorf("could not relock %s: %w", g.region, err)
	}
	return nil
}

// writeKeys performs the two-value key sequences. PELOCK must fall before
// PRGLOCK or OPTLOCK can; the flash and option sequences therefore start
// with the PECR keys.
func (c *Controller) writeKeys(ctx context.Context, region nvm.Region) error {
	pairs := [][2]uint32{{peKey1, peKey2}}
	switch region {
	case nvm.RegionFlash:
		pairs = append(pairs, [2]uint32{prgKey1, prgKey2})
	case nvm.RegionOption:
		pairs = append(pairs, [2]uint32{optKey1, optKey2})
	}
	regs := []uint32{regPEKEYR, regPRGKEYR}
	if region == nvm.RegionOption {
		regs[1] = regOPTKEYR
	}
	for i, pair := range pairs {
		for _, key := range pair {
			if err := c.writeReg(ctx, regs[i], key); err != nil {
				return err
			}
		}
	}
	return nil
}

func lockBit(region nvm.Region) uint32 {
	switch region {
	case nvm.RegionFlash:
		return pecrPRGLock
	case nvm.RegionOption:
		return pecrOPTLock
	default:
		return pecrPELock
	}
}

func (c *Controller) releaseHold(region nvm.Region) {
	c.mx.Lock()
	delete(c.held, region)
	c.mx.Unlock()
}
