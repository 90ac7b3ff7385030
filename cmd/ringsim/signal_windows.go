//go:build windows

package main

import (
	"os"
	"os/signal"
)

// notifySignals delivers the signals that stop a run between steps.
// Windows has no SIGTERM.
func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt)
}
