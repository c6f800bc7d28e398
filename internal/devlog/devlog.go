// Package devlog prints timestamped trace lines for DOM passes.
// Enabled with --debug; silent otherwise.
package devlog

import (
	"fmt"
	"sync/atomic"
	"time"
)

var enabled atomic.Bool

// Enable turns on trace output.
func Enable() { enabled.Store(true) }

// Enabled reports whether trace output is on.
func Enabled() bool { return enabled.Load() }

// Printf prints a timestamped debug message to stdout when enabled.
// Format: "15:04:05.000 [Tag] message\n"
func Printf(format string, args ...any) {
	if !enabled.Load() {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Printf("%s %s\n", time.Now().Format("15:04:05.000"), msg)
}
