//go:build windows

package mcp

import (
	"os"
	"os/signal"
)

// notifySignals delivers the signals that stop the stdio server.
// Windows has no SIGTERM.
func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt)
}
