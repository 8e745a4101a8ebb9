package flash

// DefaultRegisterBase is where the controller registers sit in the
// memory map on this device family.
const DefaultRegisterBase uint32 = 0x4002_2000

// Register offsets from the controller base (reference manual, chapter 3).
const (
	regACR     = 0x00
	regPECR    = 0x04
	regPEKEYR  = 0x0C
	regPRGKEYR = 0x10
	regOPTKEYR = 0x14
	regSR      = 0x18
)

// PECR bits. PELOCK guards PECR itself and the data EEPROM, PRGLOCK the
// flash program memory, OPTLOCK the option bytes. Setting PELOCK back
// re-engages everything below it.
const (
	pecrPELock  uint32 = 1 << 0
	pecrPRGLock uint32 = 1 << 1
	pecrOPTLock uint32 = 1 << 2
	pecrProg    uint32 = 1 << 3
	pecrErase   uint32 = 1 << 9
	pecrFPRG    uint32 = 1 << 10
)

// Unlock key pairs. Each sequence must be written in order to its key
// register; anything else leaves the lock bit set.
const (
	peKey1  uint32 = 0x89ABCDEF
	peKey2  uint32 = 0x02030405
	prgKey1 uint32 = 0x8C9DAEBF
	prgKey2 uint32 = 0x13141516
	optKey1 uint32 = 0xFBEAD9C8
	optKey2 uint32 = 0x24252627
)
