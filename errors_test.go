package nvm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMisalignedError(t *testing.T) {
	err := fmt.Errorf("erase failed: %w", &MisalignedError{Addr: 0x0800_1004, Align: 128})
	assert.ErrorIs(t, err, ErrMisaligned)
	var misaligned *MisalignedError
	assert.True(t, errors.As(err, &misaligned))
	assert.Contains(t, err.Error(), "0x08001004")
}

func TestNotErasedError(t *testing.T) {
	err := &NotErasedError{Addr: 0x0800_2000, Stored: 0x11111111, Value: 0x22222222}
	assert.ErrorIs(t, err, ErrNotErased)
	assert.NotErrorIs(t, err, ErrMisaligned)
	assert.Contains(t, err.Error(), "0x11111111")
}

func TestOutOfRangeError(t *testing.T) {
	err := &OutOfRangeError{Addr: 0x2000_0000, Region: RegionEEPROM}
	assert.Contains(t, err.Error(), "eeprom")
}
