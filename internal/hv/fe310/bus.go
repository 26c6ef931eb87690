package fe310

import (
	"encoding/binary"
	"fmt"

	"github.com/tinyrange/hifive1/internal/mmio"
	"github.com/tinyrange/hifive1/internal/riscv"
)

// Device represents a memory-mapped device
type Device interface {
	// Read reads from the device at the given offset
	Read(offset uint64, size int) (uint64, error)
	// Write writes to the device at the given offset
	Write(offset uint64, size int, value uint64) error
	// Size returns the size of the device's address space
	Size() uint64
}

// Ticker is implemented by devices that advance with the bus clock.
type Ticker interface {
	Tick(cycles uint64)
}

var memEndian = binary.LittleEndian

// MemoryRegion represents a contiguous region of RAM. It accepts word
// accesses only, matching mmio.Bus.
type MemoryRegion struct {
	Data []byte
}

// NewMemoryRegion creates a new memory region of the given size
func NewMemoryRegion(size uint64) *MemoryRegion {
	return &MemoryRegion{
		Data: make([]byte, size),
	}
}

// Read implements Device
func (m *MemoryRegion) Read(offset uint64, size int) (uint64, error) {
	if offset+uint64(size) > uint64(len(m.Data)) {
		return 0, fmt.Errorf("memory read out of bounds: offset=0x%x size=%d len=%d", offset, size, len(m.Data))
	}

	if size != 4 {
		return 0, fmt.Errorf("invalid read size: %d", size)
	}
	return uint64(memEndian.Uint32(m.Data[offset:])), nil
}

// Write implements Device
func (m *MemoryRegion) Write(offset uint64, size int, value uint64) error {
	if offset+uint64(size) > uint64(len(m.Data)) {
		return fmt.Errorf("memory write out of bounds: offset=0x%x size=%d len=%d", offset, size, len(m.Data))
	}

	if size != 4 {
		return fmt.Errorf("invalid write size: %d", size)
	}
	memEndian.PutUint32(m.Data[offset:], uint32(value))
	return nil
}

// Size implements Device
func (m *MemoryRegion) Size() uint64 {
	return uint64(len(m.Data))
}

// DeviceMapping maps a device to an address range
type DeviceMapping struct {
	Base   uint64
	Size   uint64
	Device Device
}

// Bus connects the hart to memory and devices. It implements mmio.Bus: every
// access is performed once, in call order.
//
// A failed access raises a load or store access fault on the hart. Once the
// hart has halted, loads return 0 and stores are dropped.
type Bus struct {
	Devices []DeviceMapping

	fault  func(code uint8, tval uint32)
	halted func() bool
	after  func()

	// Loads and Stores count completed accesses.
	Loads  uint64
	Stores uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// AddDevice adds a device mapping to the bus
func (bus *Bus) AddDevice(base uint64, dev Device) {
	bus.Devices = append(bus.Devices, DeviceMapping{
		Base:   base,
		Size:   dev.Size(),
		Device: dev,
	})
}

// findDevice finds a device at the given address
func (bus *Bus) findDevice(addr uint64) (Device, uint64, error) {
	for _, mapping := range bus.Devices {
		if addr >= mapping.Base && addr < mapping.Base+mapping.Size {
			return mapping.Device, addr - mapping.Base, nil
		}
	}

	return nil, 0, fmt.Errorf("no device at address 0x%x", addr)
}

// Read reads from the bus
func (bus *Bus) Read(addr uint64, size int) (uint64, error) {
	dev, offset, err := bus.findDevice(addr)
	if err != nil {
		return 0, err
	}
	return dev.Read(offset, size)
}

// Write writes to the bus
func (bus *Bus) Write(addr uint64, size int, value uint64) error {
	dev, offset, err := bus.findDevice(addr)
	if err != nil {
		return err
	}
	return dev.Write(offset, size, value)
}

func (bus *Bus) stopped() bool {
	return bus.halted != nil && bus.halted()
}

// Load32 implements mmio.Bus
func (bus *Bus) Load32(addr uint64) uint32 {
	if bus.stopped() {
		return 0
	}
	if addr&3 != 0 {
		bus.raise(riscv.ExceptionLoadMisaligned, addr)
		return 0
	}
	val, err := bus.Read(addr, 4)
	if err != nil {
		bus.raise(riscv.ExceptionLoadAccessFault, addr)
		return 0
	}
	bus.Loads++
	bus.retire()
	return uint32(val)
}

// Store32 implements mmio.Bus
func (bus *Bus) Store32(addr uint64, value uint32) {
	if bus.stopped() {
		return
	}
	if addr&3 != 0 {
		bus.raise(riscv.ExceptionStoreMisaligned, addr)
		return
	}
	if err := bus.Write(addr, 4, uint64(value)); err != nil {
		bus.raise(riscv.ExceptionStoreAccess, addr)
		return
	}
	bus.Stores++
	bus.retire()
}

// retire runs after every completed access; the machine uses it to advance
// time and take pending interrupts.
func (bus *Bus) retire() {
	if bus.after != nil {
		bus.after()
	}
}

func (bus *Bus) raise(code uint8, addr uint64) {
	if bus.fault != nil {
		bus.fault(code, uint32(addr))
	}
}

var (
	_ Device   = (*MemoryRegion)(nil)
	_ mmio.Bus = (*Bus)(nil)
)
