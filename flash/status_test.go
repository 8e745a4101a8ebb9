package flash

import (
	"testing"

	"github.com/mklimuk/nvm"
	"github.com/stretchr/testify/assert"
)

func TestDecode_Precedence(t *testing.T) {
	tests := []struct {
		name     string
		raw      Flags
		expected Completion
	}{
		{"idle", 0, Success},
		{"end of operation", FlagEndOfOp, Success},
		{"busy", FlagBusy, Busy},
		{"busy wins over write protect", FlagBusy | FlagWriteProtect, Busy},
		{"busy wins over every error", FlagBusy | FlagWriteProtect | FlagAlignment | FlagSize, Busy},
		{"write protect", FlagWriteProtect, WriteProtected},
		{"write protect wins over alignment", FlagWriteProtect | FlagAlignment, WriteProtected},
		{"write protect wins over size", FlagWriteProtect | FlagSize, WriteProtected},
		{"alignment", FlagAlignment, Misaligned},
		{"alignment wins over size", FlagAlignment | FlagSize, Misaligned},
		{"size", FlagSize, SizeError},
		{"unrelated flags decode as success", FlagEndHV | FlagReady, Success},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, Decode(test.raw))
		})
	}
}

func TestCompletion_Err(t *testing.T) {
	assert.NoError(t, Success.Err())
	assert.ErrorIs(t, WriteProtected.Err(), nvm.ErrWriteProtected)
	assert.ErrorIs(t, Misaligned.Err(), nvm.ErrMisaligned)
	assert.ErrorIs(t, SizeError.Err(), nvm.ErrInvalidSize)
	assert.ErrorIs(t, Busy.Err(), nvm.ErrTimeout)
	assert.ErrorIs(t, Timeout.Err(), nvm.ErrTimeout)
}

func TestCompletion_String(t *testing.T) {
	assert.Equal(t, "busy", Busy.String())
	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "write protected", WriteProtected.String())
}
