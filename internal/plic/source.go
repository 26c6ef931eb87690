package plic

import "fmt"

// Source is a PLIC interrupt source id. The id is also the source's bit
// position in the pending and enable words.
type Source uint32

// FE310-G002 sources.
const (
	SourceNone     Source = 0
	SourceWatchdog Source = 1
	SourceRTC      Source = 2
	SourceUART0    Source = 3
	SourceUART1    Source = 4
	SourceQSPI0    Source = 5
	SourceSPI1     Source = 6
	SourceSPI2     Source = 7
	SourceGPIO0    Source = 8  // GPIO n is SourceGPIO0 + n, up to 39
	SourcePWM0A    Source = 40 // PWM0 a..d are 40..43, PWM1 44..47, PWM2 48..51
	SourceI2C      Source = 52

	// SourceAll addresses every source at once. Only DisableSource accepts it.
	SourceAll Source = 53
)

// NumSources is the highest valid source id.
const NumSources = 52

// GPIO returns the source for GPIO pin n.
func GPIO(n int) Source {
	if n < 0 || n > 31 {
		return SourceNone
	}
	return SourceGPIO0 + Source(n)
}

// PWM returns the source for comparator cmp (0..3) of PWM unit unit (0..2).
func PWM(unit, cmp int) Source {
	if unit < 0 || unit > 2 || cmp < 0 || cmp > 3 {
		return SourceNone
	}
	return SourcePWM0A + Source(unit*4+cmp)
}

// Valid reports whether s names a real source.
func (s Source) Valid() bool {
	return s >= 1 && s <= NumSources
}

func (s Source) String() string {
	switch {
	case s == SourceNone:
		return "none"
	case s == SourceWatchdog:
		return "watchdog"
	case s == SourceRTC:
		return "rtc"
	case s == SourceUART0:
		return "uart0"
	case s == SourceUART1:
		return "uart1"
	case s == SourceQSPI0:
		return "qspi0"
	case s == SourceSPI1:
		return "spi1"
	case s == SourceSPI2:
		return "spi2"
	case s >= SourceGPIO0 && s < SourcePWM0A:
		return fmt.Sprintf("gpio%d", s-SourceGPIO0)
	case s >= SourcePWM0A && s < SourceI2C:
		n := s - SourcePWM0A
		return fmt.Sprintf("pwm%d%c", n/4, 'a'+rune(n%4))
	case s == SourceI2C:
		return "i2c"
	case s == SourceAll:
		return "all"
	}
	return fmt.Sprintf("source(%d)", uint32(s))
}

// Priority is a source priority or the context threshold, 0..7. Priority 0
// never interrupts.
type Priority uint32

const (
	PriorityNever Priority = 0
	PriorityMax   Priority = 7
)

// Valid reports whether p fits the 3-bit priority field.
func (p Priority) Valid() bool {
	return p <= PriorityMax
}
