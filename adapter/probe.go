// Package adapter talks to a USB HID debug probe that exposes raw
// memory-mapped access to the target: every 64-byte report carries one
// word or byte transfer. The probe is how the programming engine reaches
// a chip from the host side, the same way it would reach it through the
// core's own bus on target.
package adapter

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/karalabe/hid"

	"github.com/mklimuk/nvm/cmd/nvm/console"
)

const VendorID = 0x0483
const ProductID = 0x374B

// Report commands understood by the probe firmware.
const (
	cmdReadWord  = 0x20
	cmdWriteWord = 0x21
	cmdReadByte  = 0x22
	cmdWriteByte = 0x23

	statusOK   = 0x00
	statusBusy = 0x01
)

var ErrProbeBusy = errors.New("probe busy (transfer not completed)")

// Probe implements nvm.Bus over the HID report protocol.
type Probe struct {
	mx           sync.Mutex
	request      []byte
	response     []byte
	responseWait time.Duration
}

func NewProbe() *Probe {
	return &Probe{
		request:      make([]byte, 64),
		response:     make([]byte, 64),
		responseWait: 5 * time.Millisecond,
	}
}

func (p *Probe) ReadWord(ctx context.Context, addr uint32) (uint32, error) {
	p.mx.Lock()
	defer p.mx.Unlock()
	p.resetBuffers()
	p.request[0] = cmdReadWord
	binary.LittleEndian.PutUint32(p.request[1:5], addr)
	if err := p.send(ctx); err != nil {
		return 0, fmt.Errorf("word read at %08x failed: %w", addr, err)
	}
	if p.response[1] == statusBusy {
		console.Debug("probe busy")
		return 0, ErrProbeBusy
	}
	return binary.LittleEndian.Uint32(p.response[2:6]), nil
}

func (p *Probe) WriteWord(ctx context.Context, addr uint32, value uint32) error {
	p.mx.Lock()
	defer p.mx.Unlock()
	p.resetBuffers()
	p.request[0] = cmdWriteWord
	binary.LittleEndian.PutUint32(p.request[1:5], addr)
	binary.LittleEndian.PutUint32(p.request[5:9], value)
	if err := p.send(ctx); err != nil {
		return fmt.Errorf("word write at %08x failed: %w", addr, err)
	}
	if p.response[1] == statusBusy {
		console.Debug("probe busy")
		return ErrProbeBusy
	}
	return nil
}

func (p *Probe) ReadByte(ctx context.Context, addr uint32) (byte, error) {
	p.mx.Lock()
	defer p.mx.Unlock()
	p.resetBuffers()
	p.request[0] = cmdReadByte
	binary.LittleEndian.PutUint32(p.request[1:5], addr)
	if err := p.send(ctx); err != nil {
		return 0, fmt.Errorf("byte read at %08x failed: %w", addr, err)
	}
	if p.response[1] == statusBusy {
		return 0, ErrProbeBusy
	}
	return p.response[2], nil
}

func (p *Probe) WriteByte(ctx context.Context, addr uint32, value byte) error {
	p.mx.Lock()
	defer p.mx.Unlock()
	p.resetBuffers()
	p.request[0] = cmdWriteByte
	binary.LittleEndian.PutUint32(p.request[1:5], addr)
	p.request[5] = value
	if err := p.send(ctx); err != nil {
		return fmt.Errorf("byte write at %08x failed: %w", addr, err)
	}
	if p.response[1] == statusBusy {
		return ErrProbeBusy
	}
	return nil
}

func (p *Probe) send(ctx context.Context) error {
	devs := hid.Enumerate(VendorID, ProductID)
	if len(devs) == 0 {
		return fmt.Errorf("debug probe not found")
	}
	if len(devs) > 1 {
		return fmt.Errorf("ambiguous device identification")
	}
	dev, err := devs[0].Open()
	if err != nil {
		return fmt.Errorf("error opening device: %w", err)
	}
	defer func() { _ = dev.Close() }()
	verbose := console.IsVerbose(ctx)
	if verbose {
		console.Printf("sending report to probe:\n%s\n", hex.Dump(p.request))
	}
	n, err := dev.Write(p.request)
	if err != nil {
		return fmt.Errorf("could not write request: %w", err)
	}
	if n != 64 {
		return fmt.Errorf("short write: %d", n)
	}
	time.Sleep(p.responseWait)
	n, err = dev.Read(p.response)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}
	if n != 64 {
		return fmt.Errorf("short read: %d", n)
	}
	if verbose {
		console.Printf("read report from probe:\n%s\n", hex.Dump(p.response))
	}
	if p.response[0] != p.request[0] {
		return fmt.Errorf("unexpected response command %#x", p.response[0])
	}
	if p.response[1] != statusOK && p.response[1] != statusBusy {
		return fmt.Errorf("probe reported error %#x", p.response[1])
	}
	return nil
}

func (p *Probe) resetBuffers() {
	resetBuffer(p.request)
	resetBuffer(p.response)
}

func resetBuffer(buf []byte) {
	for i := range buf {
		buf[i] = 0x00
	}
}
