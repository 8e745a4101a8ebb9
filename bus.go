package nvm

import (
	"context"
	"fmt"
)

var ErrBusBusy = fmt.Errorf("memory bus is busy (transfer not completed)")

type WordReader interface {
	ReadWord(ctx context.Context, addr uint32) (uint32, error)
}

type WordWriter interface {
	WriteWord(ctx context.Context, addr uint32, value uint32) error
}

type ByteReader interface {
	ReadByte(ctx context.Context, addr uint32) (byte, error)
}

type ByteWriter interface {
	WriteByte(ctx context.Context, addr uint32, value byte) error
}

// Bus gives word and byte granular access to the memory-mapped address
// space: the flash controller registers, the flash main array and the
// data EEPROM all live behind it.
type Bus interface {
	WordReader
	WordWriter
	ByteReader
	ByteWriter
}
