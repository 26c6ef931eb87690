// Package fe310 is a host-side model of the SiFive FE310-G002 as fitted to the
// HiFive1 Rev B: one RV32 hart in machine mode with its CLINT, PLIC, AON block,
// GPIO and two UARTs. It executes no instructions. Firmware written against
// mmio.Bus and riscv.Hart drives it directly, and trap entry calls the Go
// handler linked at the address programmed into mtvec.
package fe310

// Memory map
const (
	CLINTBase = 0x0200_0000
	CLINTSize = 0x0001_0000

	PLICBase = 0x0C00_0000
	PLICSize = 0x0400_0000

	AONBase = 0x1000_0000
	AONSize = 0x1000

	GPIOBase = 0x1001_2000
	GPIOSize = 0x1000

	UART0Base = 0x1001_3000
	UART1Base = 0x1002_3000
	UARTSize  = 0x1000

	FlashBase = 0x2000_0000

	DTIMBase = 0x8000_0000
	DTIMSize = 16 * 1024
)

// PLIC source numbers wired on the FE310-G002.
const (
	IRQWatchdog = 1
	IRQRTC      = 2
	IRQUART0    = 3
	IRQUART1    = 4
	IRQGPIO0    = 8
)

// DefaultClockHz is the HFROSC-derived core clock the boot ROM leaves running.
const DefaultClockHz = 16_000_000

// RTCClockHz is the low-frequency clock feeding mtime and the AON RTC.
const RTCClockHz = 32_768
