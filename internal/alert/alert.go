// Package alert plays the audible new-order signal.
package alert

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/menudesk/internal/config"
)

// Alerter sounds one alert.
type Alerter interface {
	Alert(ctx context.Context) error
}

// Module provides the configured Alerter.
var Module = fx.Provide(NewAlerter)

// NewAlerter selects an Alerter driver from configuration.
func NewAlerter(cfg config.Config, logger *zap.Logger) (Alerter, error) {
	switch cfg.Alert.Driver {
	case "command":
		return NewCommandAlerter(cfg.Alert.Command, cfg.Alert.SoundFile, cfg.Alert.Timeout), nil
	case "bell", "":
		return NewBellAlerter(os.Stdout), nil
	case "noop":
		logger.Info("audible alerts disabled")
		return noopAlerter{}, nil
	default:
		return nil, fmt.Errorf("unsupported alert driver: %s", cfg.Alert.Driver)
	}
}

type noopAlerter struct{}

func (noopAlerter) Alert(context.Context) error { return nil }

// BellAlerter rings the terminal bell.
type BellAlerter struct {
	out io.Writer
}

func NewBellAlerter(out io.Writer) *BellAlerter {
	return &BellAlerter{out: out}
}

func (b *BellAlerter) Alert(context.Context) error {
	_, err := io.WriteString(b.out, "\a")
	return err
}

// CommandAlerter runs an audio player, e.g. "aplay -q" or "afplay", with the
// sound file as its last argument.
type CommandAlerter struct {
	name    string
	args    []string
	timeout time.Duration
}

func NewCommandAlerter(command, soundFile string, timeout time.Duration) *CommandAlerter {
	fields := strings.Fields(command)
	a := &CommandAlerter{timeout: timeout}
	if len(fields) > 0 {
		a.name = fields[0]
		a.args = append(a.args, fields[1:]...)
	}
	if soundFile != "" {
		a.args = append(a.args, soundFile)
	}
	return a
}

func (a *CommandAlerter) Alert(ctx context.Context) error {
	if a.name == "" {
		return fmt.Errorf("alert command is empty")
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	out, err := exec.CommandContext(ctx, a.name, a.args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("run %s: %w: %s", a.name, err, strings.TrimSpace(string(out)))
	}
	return nil
}
