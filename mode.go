package collective

import (
	"strings"

	"github.com/ygrebnov/errorc"
)

// Mode selects the kind of workers an Executor runs tasks on.
type Mode string

const (
	// ModeThread runs tasks on goroutines sharing memory with the caller.
	ModeThread Mode = "thread"
	// ModeProcess runs registered procedures in isolated worker processes.
	ModeProcess Mode = "process"
)

func (m Mode) valid() bool { return m == ModeThread || m == ModeProcess }

func (m Mode) String() string { return string(m) }

// ParseMode converts s (case-insensitive) into a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.valid() {
		return "", newModeError(Mode(s))
	}
	return m, nil
}

func newModeError(m Mode) error {
	return errorc.With(ErrConfiguration, errorc.String("mode", string(m)))
}
