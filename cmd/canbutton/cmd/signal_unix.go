//go:build !windows

package cmd

import (
	"os"
	"syscall"
)

func edgeSignals() []os.Signal {
	return []os.Signal{syscall.SIGUSR1}
}
