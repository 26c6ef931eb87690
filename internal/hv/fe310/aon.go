package fe310

import "sync"

// AON register offsets
const (
	AONRegRTCCfg    = 0x40
	AONRegRTCCountL = 0x48
	AONRegRTCCountH = 0x4C
	AONRegRTCS      = 0x50
	AONRegRTCCmp0   = 0x60
	AONRegLFROSCCfg = 0x70
	AONRegLFClkMux  = 0x7C
)

// rtccfg bits
const (
	AONRTCScaleMask = 0xF
	AONRTCEnAlways  = 1 << 12
	AONRTCCmpIP     = 1 << 28
)

// AON models the always-on block's real-time clock. The RTC counts the
// 32.768 kHz low-frequency clock; rtcs is the counter shifted right by the
// scale field, and cmpip is raised while rtcs >= rtccmp0.
type AON struct {
	mu sync.Mutex

	line    LineInterrupt
	clockHz uint64

	cfg       uint32
	count     uint64
	cmp       uint32
	lfrosccfg uint32
	lfclkmux  uint32

	// bus cycles not yet converted into RTC ticks
	residue uint64
}

// NewAON creates the AON block clocked from a core running at clockHz.
func NewAON(clockHz uint64, line LineInterrupt) *AON {
	if line == nil {
		line = LineInterruptDetached()
	}
	return &AON{
		line:      line,
		clockHz:   clockHz,
		cmp:       ^uint32(0),
		lfrosccfg: 1 << 30,
	}
}

// Size implements Device
func (a *AON) Size() uint64 {
	return AONSize
}

func (a *AON) scaled() uint32 {
	return uint32(a.count >> (a.cfg & AONRTCScaleMask))
}

func (a *AON) cmpip() bool {
	return a.scaled() >= a.cmp
}

// Read implements Device
func (a *AON) Read(offset uint64, size int) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch offset {
	case AONRegRTCCfg:
		cfg := a.cfg
		if a.cmpip() {
			cfg |= AONRTCCmpIP
		}
		return uint64(cfg), nil
	case AONRegRTCCountL:
		return a.count & 0xFFFF_FFFF, nil
	case AONRegRTCCountH:
		return (a.count >> 32) & 0xFFFF, nil
	case AONRegRTCS:
		return uint64(a.scaled()), nil
	case AONRegRTCCmp0:
		return uint64(a.cmp), nil
	case AONRegLFROSCCfg:
		return uint64(a.lfrosccfg), nil
	case AONRegLFClkMux:
		return uint64(a.lfclkmux), nil
	}
	return 0, nil
}

// Write implements Device
func (a *AON) Write(offset uint64, size int, value uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	v := uint32(value)
	switch offset {
	case AONRegRTCCfg:
		a.cfg = v & (AONRTCScaleMask | AONRTCEnAlways)
	case AONRegRTCCountL:
		a.count = a.count&^0xFFFF_FFFF | uint64(v)
	case AONRegRTCCountH:
		a.count = a.count&0xFFFF_FFFF | uint64(v&0xFFFF)<<32
	case AONRegRTCCmp0:
		a.cmp = v
	case AONRegLFROSCCfg:
		a.lfrosccfg = v
	case AONRegLFClkMux:
		a.lfclkmux = v
	}
	a.line.SetLevel(a.cmpip())
	return nil
}

// Tick implements Ticker
func (a *AON) Tick(cycles uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cfg&AONRTCEnAlways == 0 || a.clockHz == 0 {
		return
	}

	a.residue += cycles * RTCClockHz
	ticks := a.residue / a.clockHz
	a.residue %= a.clockHz
	if ticks == 0 {
		return
	}
	a.count = (a.count + ticks) & (1<<48 - 1)
	a.line.SetLevel(a.cmpip())
}

var (
	_ Device = (*AON)(nil)
	_ Ticker = (*AON)(nil)
)
