//go:build windows

package cmd

import "os"

// Windows has no user signals, edges come from stdin only.
func edgeSignals() []os.Signal {
	return nil
}
