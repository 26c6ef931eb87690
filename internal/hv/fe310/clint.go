package fe310

import (
	"sync"
)

// CLINT register offsets
const (
	CLINTMsip     = 0x0000 // Machine Software Interrupt Pending
	CLINTMtimecmp = 0x4000 // Machine Timer Compare
	CLINTMtime    = 0xbff8 // Machine Time
)

// CLINT implements the core-local interruptor. mtime counts the 32.768 kHz
// RTC clock.
type CLINT struct {
	mu sync.Mutex

	hart    *Hart
	clockHz uint64

	msip     uint32
	mtimecmp uint64
	mtime    uint64
	residue  uint64
}

// NewCLINT creates a new CLINT
func NewCLINT(hart *Hart, clockHz uint64) *CLINT {
	return &CLINT{
		hart:     hart,
		clockHz:  clockHz,
		mtimecmp: ^uint64(0), // Max value - no interrupt initially
	}
}

// Size implements Device
func (c *CLINT) Size() uint64 {
	return CLINTSize
}

// Read implements Device
func (c *CLINT) Read(offset uint64, size int) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch offset {
	case CLINTMsip:
		return uint64(c.msip), nil
	case CLINTMtimecmp:
		return c.mtimecmp & 0xFFFF_FFFF, nil
	case CLINTMtimecmp + 4:
		return c.mtimecmp >> 32, nil
	case CLINTMtime:
		return c.mtime & 0xFFFF_FFFF, nil
	case CLINTMtime + 4:
		return c.mtime >> 32, nil
	}

	return 0, nil
}

// Write implements Device
func (c *CLINT) Write(offset uint64, size int, value uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := value & 0xFFFF_FFFF
	switch offset {
	case CLINTMsip:
		c.msip = uint32(v) & 1
		c.hart.setPending(MipMSIP, c.msip != 0)
	case CLINTMtimecmp:
		c.mtimecmp = c.mtimecmp&^0xFFFF_FFFF | v
	case CLINTMtimecmp + 4:
		c.mtimecmp = c.mtimecmp&0xFFFF_FFFF | v<<32
	case CLINTMtime:
		c.mtime = c.mtime&^0xFFFF_FFFF | v
	case CLINTMtime + 4:
		c.mtime = c.mtime&0xFFFF_FFFF | v<<32
	}
	c.updateTimer()

	return nil
}

func (c *CLINT) updateTimer() {
	c.hart.setPending(MipMTIP, c.mtime >= c.mtimecmp)
}

// Tick implements Ticker
func (c *CLINT) Tick(cycles uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.clockHz == 0 {
		return
	}
	c.residue += cycles * RTCClockHz
	c.mtime += c.residue / c.clockHz
	c.residue %= c.clockHz
	c.updateTimer()
}

var (
	_ Device = (*CLINT)(nil)
	_ Ticker = (*CLINT)(nil)
)
