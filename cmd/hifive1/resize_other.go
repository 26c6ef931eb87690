//go:build !unix

package main

import "os"

// notifyResize is a no-op where there is no SIGWINCH; the screen keeps the
// size it started with.
func notifyResize(c chan<- os.Signal) {}
