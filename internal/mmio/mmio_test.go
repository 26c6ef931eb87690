package mmio

import "testing"

type access struct {
	write bool
	addr  uint64
	value uint32
}

// recordingBus is a sparse word memory that logs every access in order.
type recordingBus struct {
	words map[uint64]uint32
	log   []access
}

func newRecordingBus() *recordingBus {
	return &recordingBus{words: make(map[uint64]uint32)}
}

func (b *recordingBus) Load32(addr uint64) uint32 {
	v := b.words[addr]
	b.log = append(b.log, access{addr: addr, value: v})
	return v
}

func (b *recordingBus) Store32(addr uint64, value uint32) {
	b.words[addr] = value
	b.log = append(b.log, access{write: true, addr: addr, value: value})
}

func TestRegisterBitOperations(t *testing.T) {
	bus := newRecordingBus()
	r := Reg32(bus, 0x1000)

	r.Set(0xf0)
	r.SetBits(0x01)
	if got := r.Get(); got != 0xf1 {
		t.Fatalf("after SetBits: got 0x%x, want 0xf1", got)
	}

	r.ClearBits(0x30)
	if got := r.Get(); got != 0xc1 {
		t.Fatalf("after ClearBits: got 0x%x, want 0xc1", got)
	}

	if !r.HasBits(0x40) || r.HasBits(0x02) {
		t.Fatalf("HasBits mismatch for 0x%x", r.Get())
	}
}

func TestReplaceBitsTouchesOnlyField(t *testing.T) {
	bus := newRecordingBus()
	r := Reg32(bus, 0x08)

	r.Set(0xffff_ffff)
	r.ReplaceBits(2, 0x7, 16)

	if got := r.Get(); got != 0xfffa_ffff {
		t.Fatalf("got 0x%08x, want 0xfffaffff", got)
	}
	if got := r.Field(0x7, 16); got != 2 {
		t.Fatalf("field = %d, want 2", got)
	}
}

func TestReadModifyWriteOrder(t *testing.T) {
	bus := newRecordingBus()
	r := Reg32(bus, 0x20)

	r.SetBits(0x4)

	if len(bus.log) != 2 {
		t.Fatalf("expected 2 accesses, got %d", len(bus.log))
	}
	if bus.log[0].write || !bus.log[1].write {
		t.Fatalf("expected load then store, got %+v", bus.log)
	}
}
