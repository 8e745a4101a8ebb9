package flash

import "github.com/mklimuk/nvm"

// Flags is the raw content of the controller status register.
type Flags uint32

const (
	FlagBusy         Flags = 1 << 0
	FlagEndOfOp      Flags = 1 << 1
	FlagEndHV        Flags = 1 << 2
	FlagReady        Flags = 1 << 3
	FlagWriteProtect Flags = 1 << 8
	FlagAlignment    Flags = 1 << 9
	FlagSize         Flags = 1 << 10
	FlagOptValidity  Flags = 1 << 11
	FlagReadProtect  Flags = 1 << 13
	FlagNotZero      Flags = 1 << 16
	FlagFetchAbort   Flags = 1 << 17
)

// flagErrors lists the write-one-to-clear error bits.
const flagErrors = FlagWriteProtect | FlagAlignment | FlagSize | FlagOptValidity |
	FlagReadProtect | FlagNotZero | FlagFetchAbort

// Completion is the decoded outcome of a flash or EEPROM operation.
type Completion int

const (
	Busy Completion = iota
	Success
	WriteProtected
	Misaligned
	SizeError
	Timeout
)

func (c Completion) String() string {
	switch c {
	case Busy:
		return "busy"
	case Success:
		return "success"
	case WriteProtected:
		return "write protected"
	case Misaligned:
		return "misaligned"
	case SizeError:
		return "size error"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Err maps a completion to its error kind. Success yields nil; Busy maps
// to the timeout error because a caller only sees Busy once the poll
// budget is exhausted.
func (c Completion) Err() error {
	switch c {
	case Success:
		return nil
	case WriteProtected:
		return nvm.ErrWriteProtected
	case Misaligned:
		return nvm.ErrMisaligned
	case SizeError:
		return nvm.ErrInvalidSize
	default:
		return nvm.ErrTimeout
	}
}

// Decode translates raw status bits into a completion. The busy bit takes
// priority over everything else (the operation is still in flight); the
// error bits are then checked in fixed order so that decoding stays
// deterministic when several flags are raised at once.
func Decode(raw Flags) Completion {
	if raw&FlagBusy != 0 {
		return Busy
	}
	if raw&FlagWriteProtect != 0 {
		return WriteProtected
	}
	if raw&FlagAlignment != 0 {
		return Misaligned
	}
	if raw&FlagSize != 0 {
		return SizeError
	}
	return Success
}
