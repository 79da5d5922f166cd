// Package sysvol sets the local mixer volume. All calls are best effort:
// a missing or failing mixer must never break playback control.
package sysvol

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"time"
)

// Setter applies a local output volume level (0-100).
type Setter interface {
	Set(level int)
}

// Alsa shells out to amixer. Errors are logged at debug and swallowed.
type Alsa struct {
	Control string
	Logger  *slog.Logger
}

func NewAlsa(control string, log *slog.Logger) *Alsa {
	if control == "" {
		control = "PCM"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Alsa{Control: control, Logger: log}
}

func (a *Alsa) Set(level int) {
	if runtime.GOOS != "linux" {
		return
	}
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "amixer", "set", a.Control, fmt.Sprintf("%d%%", level))
	if out, err := cmd.CombinedOutput(); err != nil {
		a.Logger.Debug("amixer failed", slog.Any("err", err), slog.String("out", string(out)))
	}
}

// Null discards volume changes; used in tests and on platforms without a
// mixer.
type Null struct{}

func (Null) Set(int) {}
