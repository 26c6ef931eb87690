//go:build unix

package main

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// notifyResize delivers terminal size changes on c.
func notifyResize(c chan<- os.Signal) {
	signal.Notify(c, unix.SIGWINCH)
}
