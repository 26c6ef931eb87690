// Command hifive1 boots the UART streaming firmware on a simulated
// HiFive1 Rev B and shows what it prints on UART0.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
	"golang.org/x/time/rate"

	"github.com/tinyrange/hifive1/internal/board"
	"github.com/tinyrange/hifive1/internal/console"
	"github.com/tinyrange/hifive1/internal/hv/fe310"
	"github.com/tinyrange/hifive1/internal/riscv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "hifive1: %v\n", err)
		os.Exit(1)
	}
}

// fixCrlf restores carriage returns for log lines written while the
// terminal is in raw mode.
type fixCrlf struct {
	w io.Writer
}

func (f *fixCrlf) Write(p []byte) (n int, err error) {
	return f.w.Write(bytes.ReplaceAll(p, []byte{'\n'}, []byte{'\r', '\n'}))
}

// injectable names the synchronous exceptions -inject can raise.
var injectable = map[string]uint8{
	"ecall":      riscv.ExceptionEcallFromM,
	"breakpoint": riscv.ExceptionBreakpoint,
	"illegal":    riscv.ExceptionIllegalInsn,
	"load-fault": riscv.ExceptionLoadAccessFault,
}

func run() error {
	configPath := flag.String("config", "", "Board config YAML (default: built-in HiFive1 Rev B bring-up)")
	timeout := flag.Duration("timeout", 0, "Stop after this much wall-clock time")
	repeat := flag.Uint64("repeat", 0, "Stop once the message has been queued this many times")
	cycles := flag.Uint64("cycles", 0, "Stop after this many simulated core cycles")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	showProgress := flag.Bool("progress", false, "Show progress instead of echoing UART0")
	realtime := flag.Bool("realtime", false, "Pace the simulation to the configured core clock")
	interactive := flag.Bool("interactive", false, "Forward keystrokes to UART0 input (Ctrl-C exits)")
	screen := flag.Bool("screen", false, "Render UART0 through a terminal emulator")
	transcriptPath := flag.String("transcript", "", "Write UART0 output as plain text to this file")
	input := flag.String("input", "", "Bytes to feed UART0 input after boot")
	inject := flag.String("inject", "", "Exception to raise after boot (ecall, breakpoint, illegal, load-fault)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Boot the interrupt-driven UART firmware on a simulated HiFive1 Rev B.\n\n")
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "  %s -repeat 10\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -config board.yaml -realtime -screen\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	var injectCause uint8
	if *inject != "" {
		code, ok := injectable[*inject]
		if !ok {
			return fmt.Errorf("unknown -inject cause %q", *inject)
		}
		injectCause = code
	}

	cfg := board.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = board.LoadConfig(*configPath); err != nil {
			return err
		}
	}
	if *interactive || *input != "" {
		cfg.UART.RxInterrupt = true
	}

	stdin := int(os.Stdin.Fd())
	raw := *interactive && term.IsTerminal(stdin)
	if raw {
		oldState, err := term.MakeRaw(stdin)
		if err != nil {
			return fmt.Errorf("enable raw mode: %w", err)
		}
		defer term.Restore(stdin, oldState)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		return fmt.Errorf("parse -log-level: %w", err)
	}
	var logOut io.Writer = os.Stderr
	if raw {
		logOut = &fixCrlf{w: os.Stderr}
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level})))

	var sinks []io.Writer
	var scr *console.Screen
	if *screen {
		cols, rows := 80, 24
		if fd := int(os.Stdout.Fd()); term.IsTerminal(fd) {
			if w, h, err := term.GetSize(fd); err == nil {
				cols, rows = w, h
			}
		}
		scr = console.NewScreen(cols, rows)
		defer scr.Close()
		sinks = append(sinks, scr)
	} else if !*showProgress {
		sinks = append(sinks, os.Stdout)
	}
	if *transcriptPath != "" {
		f, err := os.Create(*transcriptPath)
		if err != nil {
			return fmt.Errorf("create transcript: %w", err)
		}
		defer f.Close()

		tr := console.NewTranscript(f)
		defer tr.Flush()
		sinks = append(sinks, tr)
	}

	m := fe310.NewMachine(fe310.Options{
		ClockHz: uint64(cfg.ClockHz),
		Console: io.MultiWriter(sinks...),
	})
	b, err := board.New(m.Hart, m.Bus, cfg, slog.Default())
	if err != nil {
		return err
	}
	m.Link(cfg.Vector.Entry, b.HandleTrap)

	if err := b.Boot(); err != nil {
		return fmt.Errorf("boot: %w", err)
	}
	if *input != "" {
		if err := m.EnqueueInput(0, []byte(*input)); err != nil {
			return err
		}
	}
	if *inject != "" {
		slog.Info("injecting exception", "cause", *inject)
		m.Hart.Inject(uint32(injectCause), 0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(ctx)
	runCtx, finish := context.WithCancel(gctx)
	defer finish()

	keys := make(chan []byte, 16)
	if *interactive {
		// Stdin reads cannot be interrupted, so this goroutine is left behind
		// on exit.
		go func() {
			buf := make([]byte, 64)
			for {
				n, err := os.Stdin.Read(buf)
				if err != nil {
					return
				}
				if bytes.IndexByte(buf[:n], 0x03) >= 0 {
					finish()
					return
				}
				select {
				case keys <- bytes.Clone(buf[:n]):
				case <-runCtx.Done():
					return
				}
			}
		}()
	}

	var bar *progressbar.ProgressBar
	if *showProgress {
		total := int64(-1)
		if *repeat > 0 {
			total = int64(*repeat)
		}
		bar = progressbar.Default(total, "streaming")
		defer bar.Close()
	}

	var lim *rate.Limiter
	if *realtime {
		lim = rate.NewLimiter(rate.Limit(cfg.ClockHz), int(max(cfg.ClockHz/100, 1)))
	}

	last := m.Cycles()
	rx := make([]byte, 64)
	idle := func() {
		if lim != nil {
			now := m.Cycles()
			for n := now - last; n > 0; {
				step := min(n, uint64(lim.Burst()))
				if err := lim.WaitN(runCtx, int(step)); err != nil {
					return
				}
				n -= step
			}
			last = now
		}

		for drained := false; !drained; {
			select {
			case data := <-keys:
				if err := m.EnqueueInput(0, data); err != nil {
					slog.Warn("forward input", "error", err)
				}
			default:
				drained = true
			}
		}
		if n := b.ReadReceived(rx); n > 0 {
			slog.Debug("uart0 received", "data", string(rx[:n]))
		}

		p := b.Progress()
		if bar != nil {
			_ = bar.Set64(int64(p.Wraps))
		}
		if *repeat > 0 && p.Wraps >= *repeat {
			finish()
		}
		if *cycles > 0 && m.Cycles() >= *cycles {
			finish()
		}
	}

	g.Go(func() error {
		defer finish()
		err := b.Run(runCtx, idle)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return fmt.Errorf("board halted: %w", err)
	})
	if scr != nil {
		g.Go(func() error {
			if _, err := io.WriteString(os.Stdout, ansi.EraseEntireScreen); err != nil {
				return err
			}
			winch := make(chan os.Signal, 1)
			notifyResize(winch)
			defer signal.Stop(winch)

			t := time.NewTicker(50 * time.Millisecond)
			defer t.Stop()
			for {
				select {
				case <-runCtx.Done():
					return scr.Render(os.Stdout, false)
				case <-winch:
					w, h, err := term.GetSize(int(os.Stdout.Fd()))
					if err != nil {
						continue
					}
					scr.Resize(w, h)
					if _, err := io.WriteString(os.Stdout, ansi.EraseEntireScreen); err != nil {
						return err
					}
					if err := scr.Render(os.Stdout, true); err != nil {
						return err
					}
				case <-t.C:
					if err := scr.Render(os.Stdout, false); err != nil {
						return err
					}
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	p := b.Progress()
	s := b.Stats()
	slog.Info("stopped",
		"cycles", m.Cycles(),
		"uptime", b.Uptime(),
		"repetitions", p.Wraps,
		"queued", p.Bytes(),
		"transmitted", m.UART0.Transmitted,
		"traps", s.Traps,
		"refills", s.TxRefills,
		"claims", m.PLIC.Claims,
		"completes", m.PLIC.Completes)
	return nil
}
