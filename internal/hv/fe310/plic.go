package fe310

import (
	"sync"
)

// PLIC register offsets
const (
	PLICPriorityBase = 0x000000 // Priority registers, 4 bytes per source
	PLICPendingBase  = 0x001000 // Pending bits
	PLICEnableBase   = 0x002000 // Hart 0 M-mode enable bits
	PLICThreshold    = 0x200000 // Hart 0 M-mode priority threshold
	PLICClaim        = 0x200004 // Hart 0 M-mode claim/complete
)

const (
	// PLICNumSources is the highest source id on the FE310-G002.
	PLICNumSources = 52
	// PLICMaxPriority is the largest priority value the PLIC stores.
	PLICMaxPriority = 7

	plicWords = (PLICNumSources + 32) / 32
)

// PLIC models the single-context platform-level interrupt controller.
//
// Each source passes through a level-triggered gateway: while its line is high
// and no request is in service, the source is pending. A claim moves the best
// pending source into service; the matching complete re-opens the gateway. A
// complete with any other id is ignored.
type PLIC struct {
	mu  sync.Mutex
	irq func(level bool)

	priority  [PLICNumSources + 1]uint32
	level     [PLICNumSources + 1]bool
	pending   [plicWords]uint32
	inService [plicWords]uint32
	enable    [plicWords]uint32
	threshold uint32

	// Claims counts non-zero claims; Completes counts accepted completes.
	Claims    uint64
	Completes uint64
}

// NewPLIC creates a PLIC whose external interrupt output drives irq.
func NewPLIC(irq func(level bool)) *PLIC {
	return &PLIC{irq: irq}
}

// Size implements Device
func (p *PLIC) Size() uint64 {
	return PLICSize
}

func bitOf(source uint32) (word, mask uint32) {
	return source / 32, 1 << (source % 32)
}

// Read implements Device
func (p *PLIC) Read(offset uint64, size int) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case offset < PLICPendingBase:
		source := offset / 4
		if source <= PLICNumSources {
			return uint64(p.priority[source]), nil
		}

	case offset >= PLICPendingBase && offset < PLICEnableBase:
		word := (offset - PLICPendingBase) / 4
		if word < plicWords {
			return uint64(p.pending[word]), nil
		}

	case offset >= PLICEnableBase && offset < PLICThreshold:
		word := (offset - PLICEnableBase) / 4
		if word < plicWords {
			return uint64(p.enable[word]), nil
		}

	case offset == PLICThreshold:
		return uint64(p.threshold), nil

	case offset == PLICClaim:
		return uint64(p.claim()), nil
	}

	return 0, nil
}

// Write implements Device
func (p *PLIC) Write(offset uint64, size int, value uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case offset < PLICPendingBase:
		source := offset / 4
		if source > 0 && source <= PLICNumSources { // Source 0 is hardwired to 0
			p.priority[source] = uint32(value) & PLICMaxPriority
		}

	case offset >= PLICEnableBase && offset < PLICThreshold:
		word := (offset - PLICEnableBase) / 4
		if word < plicWords {
			p.enable[word] = uint32(value) & enableMask(word)
		}

	case offset == PLICThreshold:
		p.threshold = uint32(value) & PLICMaxPriority

	case offset == PLICClaim:
		p.complete(uint32(value))
	}

	p.updateInterrupt()
	return nil
}

// enableMask returns the implemented enable bits of a word.
func enableMask(word uint64) uint32 {
	switch word {
	case 0:
		return ^uint32(1)
	case 1:
		return 1<<(PLICNumSources-31) - 1
	}
	return 0
}

// Line returns the gateway input for source.
func (p *PLIC) Line(source uint32) LineInterrupt {
	if source == 0 || source > PLICNumSources {
		return LineInterruptDetached()
	}
	return LineInterruptFromFunc(func(high bool) {
		p.SetLevel(source, high)
	})
}

// SetLevel drives the gateway input of source.
func (p *PLIC) SetLevel(source uint32, high bool) {
	if source == 0 || source > PLICNumSources {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.level[source] = high
	p.gateway(source)
	p.updateInterrupt()
}

// gateway latches a request for source if its line is high and no request is
// in service.
func (p *PLIC) gateway(source uint32) {
	word, mask := bitOf(source)
	if p.level[source] && p.inService[word]&mask == 0 {
		p.pending[word] |= mask
	}
}

// claim returns the highest-priority pending, enabled source above threshold.
// Ties go to the lowest id.
func (p *PLIC) claim() uint32 {
	var bestSource uint32
	var bestPriority uint32

	for source := uint32(1); source <= PLICNumSources; source++ {
		word, mask := bitOf(source)

		if p.pending[word]&mask == 0 || p.enable[word]&mask == 0 {
			continue
		}

		priority := p.priority[source]
		if priority <= p.threshold {
			continue
		}

		if priority > bestPriority {
			bestPriority = priority
			bestSource = source
		}
	}

	if bestSource != 0 {
		word, mask := bitOf(bestSource)
		p.pending[word] &^= mask
		p.inService[word] |= mask
		p.Claims++
	}

	p.updateInterrupt()
	return bestSource
}

// complete re-opens the gateway of source if it is in service and enabled.
func (p *PLIC) complete(source uint32) {
	if source == 0 || source > PLICNumSources {
		return
	}

	word, mask := bitOf(source)
	if p.inService[word]&mask == 0 || p.enable[word]&mask == 0 {
		return
	}

	p.inService[word] &^= mask
	p.Completes++
	p.gateway(source)
}

// InService reports whether source has been claimed and not completed.
func (p *PLIC) InService(source uint32) bool {
	if source == 0 || source > PLICNumSources {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	word, mask := bitOf(source)
	return p.inService[word]&mask != 0
}

// updateInterrupt drives the external interrupt output.
func (p *PLIC) updateInterrupt() {
	if p.irq != nil {
		p.irq(p.hasPendingInterrupt())
	}
}

func (p *PLIC) hasPendingInterrupt() bool {
	for source := uint32(1); source <= PLICNumSources; source++ {
		word, mask := bitOf(source)

		if p.pending[word]&mask == 0 || p.enable[word]&mask == 0 {
			continue
		}
		if p.priority[source] > p.threshold {
			return true
		}
	}

	return false
}

var _ Device = (*PLIC)(nil)
