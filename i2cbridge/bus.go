// Package i2cbridge reaches the target's memory map through an I2C
// bridge MCU: a small companion part that forwards register and memory
// transfers to the chip under programming. Useful on boards where the
// service connector only exposes an I2C header.
package i2cbridge

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/mklimuk/nvm"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

const DefaultAddress = 0x3B

// Bridge command bytes. Each transfer starts with the command followed
// by the 32-bit target address, big endian; data travels little endian
// like on the target bus.
const (
	cmdReadWord  = 0x01
	cmdWriteWord = 0x02
	cmdReadByte  = 0x03
	cmdWriteByte = 0x04
)

var _ nvm.Bus = &Bridge{}

type Bridge struct {
	bus  i2c.BusCloser
	addr uint16
}

func New(dev string, addr uint16) (*Bridge, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	bus, err := i2creg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("could not open i2c bus: %w", err)
	}
	return &Bridge{
		bus:  bus,
		addr: addr,
	}, nil
}

func (b *Bridge) ReadWord(ctx context.Context, addr uint32) (uint32, error) {
	var buf [4]byte
	if err := b.bus.Tx(b.addr, request(cmdReadWord, addr, nil), buf[:]); err != nil {
		return 0, fmt.Errorf("could not read word at %08x over i2c bridge: %w", addr, err)
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (b *Bridge) WriteWord(ctx context.Context, addr uint32, value uint32) error {
	var data [4]byte
	binary.LittleEndian.PutUint32(data[:], value)
	if err := b.bus.Tx(b.addr, request(cmdWriteWord, addr, data[:]), nil); err != nil {
		return fmt.Errorf("could not write word at %08x over i2c bridge: %w", addr, err)
	}
	return nil
}

func (b *Bridge) ReadByte(ctx context.Context, addr uint32) (byte, error) {
	var buf [1]byte
	if err := b.bus.Tx(b.addr, request(cmdReadByte, addr, nil), buf[:]); err != nil {
		return 0, fmt.Errorf("could not read byte at %08x over i2c bridge: %w", addr, err)
	}
	return buf[0], nil
}

func (b *Bridge) WriteByte(ctx context.Context, addr uint32, value byte) error {
	if err := b.bus.Tx(b.addr, request(cmdWriteByte, addr, []byte{value}), nil); err != nil {
		return fmt.Errorf("could not write byte at %08x over i2c bridge: %w", addr, err)
	}
	return nil
}

func (b *Bridge) Close() error {
	return b.bus.Close()
}

func request(cmd byte, addr uint32, data []byte) []byte {
	out := make([]byte, 5, 5+len(data))
	out[0] = cmd
	binary.BigEndian.PutUint32(out[1:], addr)
	return append(out, data...)
}
