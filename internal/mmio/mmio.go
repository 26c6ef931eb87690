// Package mmio provides volatile access to memory-mapped peripheral registers.
//
// Every access goes through a Bus. Implementations must perform each load and
// store exactly once, in program order, with no merging or elision, so that
// side-effecting registers (claim/complete, FIFO data) behave as on hardware.
package mmio

// Bus performs 32-bit volatile loads and stores at physical addresses.
type Bus interface {
	Load32(addr uint64) uint32
	Store32(addr uint64, value uint32)
}

// Register32 is a single 32-bit register at a fixed address on a bus.
type Register32 struct {
	bus  Bus
	addr uint64
}

// Reg32 returns the register at addr.
func Reg32(bus Bus, addr uint64) Register32 {
	return Register32{bus: bus, addr: addr}
}

// Get loads the register.
func (r Register32) Get() uint32 {
	return r.bus.Load32(r.addr)
}

// Set stores value into the register.
func (r Register32) Set(value uint32) {
	r.bus.Store32(r.addr, value)
}

// SetBits sets the bits in mask with a read-modify-write.
func (r Register32) SetBits(mask uint32) {
	r.Set(r.Get() | mask)
}

// ClearBits clears the bits in mask with a read-modify-write.
func (r Register32) ClearBits(mask uint32) {
	r.Set(r.Get() &^ mask)
}

// HasBits reports whether any bit in mask is set.
func (r Register32) HasBits(mask uint32) bool {
	return r.Get()&mask != 0
}

// ReplaceBits replaces the field mask<<pos with value<<pos.
func (r Register32) ReplaceBits(value, mask uint32, pos uint8) {
	r.Set(r.Get()&^(mask<<pos) | (value&mask)<<pos)
}

// Field extracts the field mask<<pos.
func (r Register32) Field(mask uint32, pos uint8) uint32 {
	return (r.Get() >> pos) & mask
}
