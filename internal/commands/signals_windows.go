//go:build windows

package commands

import (
	"context"
	"os"
	"os/signal"
)

// setupSignalHandler creates a context that cancels on interrupt signals.
// Windows only delivers os.Interrupt (Ctrl+C) through this path.
func setupSignalHandler() (context.Context, func()) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}
