package nvm

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyUnlocked is returned by a second unlock attempt on a region
	// whose guard is still outstanding. Unlocking is not reentrant.
	ErrAlreadyUnlocked = errors.New("region is already unlocked")
	// ErrKeyRejected means the lock bit did not clear after the key
	// sequence: wrong key order, or the region is permanently protected.
	ErrKeyRejected = errors.New("unlock key sequence rejected")
	// ErrMisaligned means the address does not satisfy the alignment
	// required by the operation's granularity.
	ErrMisaligned = errors.New("address misaligned for this operation")
	// ErrNotErased means the write would have to raise a programmed bit
	// back to one, which only a page erase can do.
	ErrNotErased = errors.New("target memory must be erased first")
	ErrWriteProtected = errors.New("target memory is write protected")
	ErrInvalidSize    = errors.New("data size not supported by target memory")
	// ErrTimeout means the controller stayed busy past the poll budget.
	// The operation must be considered unrecoverable and is never retried.
	ErrTimeout = errors.New("timed out waiting for operation to complete")
	// ErrAbortedByFetch means the write was interrupted by an instruction
	// fetch from the same bank.
	ErrAbortedByFetch = errors.New("operation aborted by instruction fetch")
)

// MisalignedError reports an address that is not aligned to the boundary
// its operation requires. It matches ErrMisaligned through errors.Is.
type MisalignedError struct {
	Addr  uint32
	Align uint32
}

func (e *MisalignedError) Error() string {
	return fmt.Sprintf("address 0x%08X is not aligned to a %d-byte boundary", e.Addr, e.Align)
}

func (e *MisalignedError) Is(target error) bool { return target == ErrMisaligned }

// NotErasedError reports a word that cannot take the requested value
// without a prior erase. It matches ErrNotErased through errors.Is.
type NotErasedError struct {
	Addr   uint32
	Stored uint32
	Value  uint32
}

func (e *NotErasedError) Error() string {
	return fmt.Sprintf("word at 0x%08X holds 0x%08X and cannot be programmed to 0x%08X without erase",
		e.Addr, e.Stored, e.Value)
}

func (e *NotErasedError) Is(target error) bool { return target == ErrNotErased }

// OutOfRangeError reports an address outside the region an operation
// targets.
type OutOfRangeError struct {
	Addr   uint32
	Region Region
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("address 0x%08X is outside the %s region", e.Addr, e.Region)
}
