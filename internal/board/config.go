package board

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/tinyrange/hifive1/internal/plic"
	"github.com/tinyrange/hifive1/internal/uart"
)

// ConfigMajor is the config schema major version this package reads.
const ConfigMajor = "v1"

var (
	ErrInvalidConfig      = errors.New("invalid board config")
	ErrUnsupportedVersion = errors.New("unsupported config version")
)

// Config describes how the board is brought up.
type Config struct {
	Version string `yaml:"version"`
	ClockHz uint32 `yaml:"clock_hz"`

	Vector VectorConfig `yaml:"vector"`
	PLIC   PLICConfig   `yaml:"plic"`
	UART   UARTConfig   `yaml:"uart"`

	// TimerInterval is the CLINT timer period in mtime ticks (32768 per
	// second). Zero leaves the timer off.
	TimerInterval uint64 `yaml:"timer_interval"`
	// Heartbeat toggles the green LED on every timer interrupt.
	Heartbeat bool `yaml:"heartbeat"`
}

type VectorConfig struct {
	Entry    uint32 `yaml:"entry"`
	StackTop uint32 `yaml:"stack_top"`
}

type PLICConfig struct {
	Priority  uint32 `yaml:"priority"`
	Threshold uint32 `yaml:"threshold"`
}

type UARTConfig struct {
	Baud        uint32 `yaml:"baud"`
	StopBits    int    `yaml:"stop_bits"`
	TxWatermark int    `yaml:"tx_watermark"`
	RxWatermark int    `yaml:"rx_watermark"`
	RxInterrupt bool   `yaml:"rx_interrupt"`
	Burst       int    `yaml:"burst"`
	Message     string `yaml:"message"`
}

// DefaultMessage is streamed out of UART0 when no message is configured.
const DefaultMessage = "Welcome to Learn RISCV\r\n"

// DefaultConfig returns the HiFive1 Rev B bring-up used by the firmware.
func DefaultConfig() Config {
	return Config{
		Version: "v1.0.0",
		ClockHz: 16_000_000,
		Vector: VectorConfig{
			Entry:    0x2001_0100,
			StackTop: 0x8000_4000,
		},
		PLIC: PLICConfig{
			Priority:  4,
			Threshold: 3,
		},
		UART: UARTConfig{
			Baud:        115200,
			StopBits:    1,
			TxWatermark: 4,
			RxWatermark: 0,
			Burst:       4,
			Message:     DefaultMessage,
		},
	}
}

// ParseConfig decodes YAML over DefaultConfig and validates the result.
// Unknown keys are rejected.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("board: parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("board: load config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("board: %s: %w", fmt.Sprintf(format, args...), ErrInvalidConfig)
}

// Validate checks everything Boot would otherwise fail on.
func (c Config) Validate() error {
	if !semver.IsValid(c.Version) {
		return fmt.Errorf("board: version %q: %w", c.Version, ErrUnsupportedVersion)
	}
	if semver.Major(c.Version) != ConfigMajor {
		return fmt.Errorf("board: version %s, want %s.x: %w", c.Version, ConfigMajor, ErrUnsupportedVersion)
	}

	if c.ClockHz == 0 {
		return invalid("clock_hz must be set")
	}
	if c.Vector.Entry == 0 || c.Vector.Entry&3 != 0 {
		return invalid("vector.entry 0x%08x must be non-zero and 4-byte aligned", c.Vector.Entry)
	}
	if c.Vector.StackTop == 0 || c.Vector.StackTop&15 != 0 {
		return invalid("vector.stack_top 0x%08x must be non-zero and 16-byte aligned", c.Vector.StackTop)
	}

	prio, thr := plic.Priority(c.PLIC.Priority), plic.Priority(c.PLIC.Threshold)
	if !prio.Valid() || !thr.Valid() {
		return invalid("plic priority %d and threshold %d must be 0..%d", prio, thr, plic.PriorityMax)
	}
	if prio <= thr {
		return invalid("plic priority %d does not exceed threshold %d; UART0 would never interrupt", prio, thr)
	}

	u := c.UART
	if _, err := uart.Divisor(c.ClockHz, u.Baud); err != nil {
		return invalid("uart.baud: %v", err)
	}
	if u.StopBits != 1 && u.StopBits != 2 {
		return invalid("uart.stop_bits %d must be 1 or 2", u.StopBits)
	}
	if u.TxWatermark < 1 || u.TxWatermark > 7 {
		return invalid("uart.tx_watermark %d must be 1..7", u.TxWatermark)
	}
	if u.RxWatermark < 0 || u.RxWatermark > 7 {
		return invalid("uart.rx_watermark %d must be 0..7", u.RxWatermark)
	}
	if room := uart.GuaranteedRoom(u.TxWatermark); u.Burst < 1 || u.Burst > room || u.Burst >= uart.FIFODepth {
		return invalid("uart.burst %d must be 1..%d for tx_watermark %d", u.Burst, min(room, uart.FIFODepth-1), u.TxWatermark)
	}
	if u.Message == "" {
		return invalid("uart.message is empty")
	}
	return nil
}
