// Package board brings up a HiFive1 Rev B: it owns every peripheral driver,
// runs the boot sequence and the foreground loop, and gives the foreground
// safe views of the state the trap handler updates.
package board

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tinyrange/hifive1/internal/clint"
	"github.com/tinyrange/hifive1/internal/gpio"
	"github.com/tinyrange/hifive1/internal/mmio"
	"github.com/tinyrange/hifive1/internal/plic"
	"github.com/tinyrange/hifive1/internal/riscv"
	"github.com/tinyrange/hifive1/internal/rtc"
	"github.com/tinyrange/hifive1/internal/trap"
	"github.com/tinyrange/hifive1/internal/uart"
)

// Board is the single owner of the HiFive1 peripherals.
type Board struct {
	cfg Config
	log *slog.Logger

	hart riscv.Hart
	bus  mmio.Bus

	plic  *plic.Controller
	uart  *uart.Port
	gpio  *gpio.Port
	clint *clint.CLINT
	rtc   *rtc.RTC
	clock *rtc.Clock

	tx   *uart.TxEngine
	rx   *uart.RxBuffer
	disp *trap.Dispatcher
	led  gpio.Pin
}

// New validates cfg and builds the drivers. It touches no hardware.
func New(hart riscv.Hart, bus mmio.Bus, cfg Config, logger *slog.Logger) (*Board, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	port, err := uart.Open(bus, 0)
	if err != nil {
		return nil, err
	}
	tx, err := uart.NewTxEngine(port, []byte(cfg.UART.Message), cfg.UART.Burst, cfg.UART.TxWatermark)
	if err != nil {
		return nil, err
	}

	b := &Board{
		cfg:   cfg,
		log:   logger,
		hart:  hart,
		bus:   bus,
		plic:  plic.New(bus, plic.Base),
		uart:  port,
		gpio:  gpio.New(bus, gpio.Base),
		clint: clint.New(bus, clint.Base),
		rtc:   rtc.New(bus, rtc.Base),
		tx:    tx,
	}
	if cfg.UART.RxInterrupt {
		b.rx = &uart.RxBuffer{}
	}
	if cfg.Heartbeat {
		if b.led, err = b.gpio.Pin(gpio.PinLEDGreen); err != nil {
			return nil, err
		}
	}

	dcfg := trap.Config{
		Hart:          hart,
		PLIC:          b.plic,
		CLINT:         b.clint,
		UART:          port,
		UARTSource:    plic.SourceUART0,
		Tx:            tx,
		Rx:            b.rx,
		TimerInterval: cfg.TimerInterval,
	}
	if cfg.Heartbeat {
		dcfg.OnTimer = b.led.Toggle
	}
	b.disp = trap.New(dcfg)

	return b, nil
}

// HandleTrap is the trap entry. Link it at Config().Vector.Entry.
func (b *Board) HandleTrap() {
	b.disp.Dispatch()
}

// Config returns the configuration the board was built with.
func (b *Board) Config() Config {
	return b.cfg
}

// Boot runs the bring-up sequence. The UART tx watermark interrupt is enabled
// last, so the first refill happens as Boot finishes. Any error halts the hart
// and is returned.
func (b *Board) Boot() error {
	if err := b.boot(); err != nil {
		b.log.Error("boot failed", "error", err)
		b.hart.Halt(err)
		return err
	}
	return nil
}

func (b *Board) boot() error {
	cfg := b.cfg

	var enable uint32
	if cfg.TimerInterval > 0 {
		enable |= riscv.MieMTIE
	}
	if err := trap.Install(b.hart, trap.Vector{
		Entry:    cfg.Vector.Entry,
		StackTop: cfg.Vector.StackTop,
		Enable:   enable,
	}); err != nil {
		return err
	}
	b.log.Debug("trap vector installed", "entry", fmt.Sprintf("0x%08x", cfg.Vector.Entry), "stack", fmt.Sprintf("0x%08x", cfg.Vector.StackTop))

	if err := b.plic.DisableSource(plic.SourceAll); err != nil {
		return err
	}
	if err := b.plic.SetPriority(plic.SourceUART0, plic.Priority(cfg.PLIC.Priority)); err != nil {
		return err
	}
	if err := b.plic.SetThreshold(plic.Priority(cfg.PLIC.Threshold)); err != nil {
		return err
	}
	if err := b.plic.EnableSource(plic.SourceUART0); err != nil {
		return err
	}
	b.log.Debug("plic configured", "source", plic.SourceUART0, "priority", cfg.PLIC.Priority, "threshold", cfg.PLIC.Threshold)

	for _, n := range []int{gpio.PinUART0RX, gpio.PinUART0TX} {
		pin, err := b.gpio.Pin(n)
		if err != nil {
			return err
		}
		if err := pin.Configure(gpio.ModeIOF0); err != nil {
			return err
		}
	}

	if cfg.Heartbeat {
		if err := b.led.Configure(gpio.ModeOutput); err != nil {
			return err
		}
		// The LEDs are active low.
		b.led.SetInverted(true)
		b.led.Low()
	}

	b.clock = rtc.NewClock(b.rtc)

	if cfg.TimerInterval > 0 {
		b.clint.SetTimer(b.clint.Time() + cfg.TimerInterval)
		b.log.Debug("timer armed", "interval", cfg.TimerInterval)
	}

	ucfg := uart.Config{
		Baud:        cfg.UART.Baud,
		StopBits:    cfg.UART.StopBits,
		TxWatermark: cfg.UART.TxWatermark,
		RxWatermark: cfg.UART.RxWatermark,
		RxEnable:    cfg.UART.RxInterrupt,
		Interrupts:  uart.TxWatermark,
	}
	if cfg.UART.RxInterrupt {
		ucfg.Interrupts |= uart.RxWatermark
	}
	if err := b.uart.Configure(cfg.ClockHz, ucfg); err != nil {
		return err
	}

	b.log.Info("board up",
		"clock_hz", cfg.ClockHz,
		"baud", cfg.UART.Baud,
		"burst", cfg.UART.Burst,
		"tx_watermark", cfg.UART.TxWatermark,
		"message_len", len(cfg.UART.Message))
	return nil
}

// Run is the foreground loop: wait for an interrupt, then call idle. It
// returns when ctx is done or the hart halts.
func (b *Board) Run(ctx context.Context, idle func()) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.hart.WaitForInterrupt(); err != nil {
			return err
		}
		if idle != nil {
			idle()
		}
	}
}

// Progress is the transmit position of the message stream.
type Progress struct {
	Cursor int
	Wraps  uint64
	Len    int
}

// Bytes returns the total number of message bytes queued so far.
func (p Progress) Bytes() uint64 {
	return p.Wraps*uint64(p.Len) + uint64(p.Cursor)
}

// Progress reads the transmit position with interrupts masked.
func (b *Board) Progress() Progress {
	state := riscv.DisableInterrupts(b.hart)
	p := Progress{
		Cursor: b.tx.Cursor(),
		Wraps:  b.tx.Wraps(),
		Len:    b.tx.Len(),
	}
	riscv.RestoreInterrupts(b.hart, state)
	return p
}

// Stats returns the dispatcher counters.
func (b *Board) Stats() trap.Stats {
	return b.disp.Stats()
}

// ReadReceived moves bytes the trap handler received into p. It returns 0
// when rx interrupts are not configured.
func (b *Board) ReadReceived(p []byte) int {
	if b.rx == nil {
		return 0
	}
	state := riscv.DisableInterrupts(b.hart)
	n := b.rx.Read(p)
	riscv.RestoreInterrupts(b.hart, state)
	return n
}

// Uptime is the time counted by the RTC since Boot.
func (b *Board) Uptime() time.Duration {
	if b.clock == nil {
		return 0
	}
	return b.clock.Uptime()
}
