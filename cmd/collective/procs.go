package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ygrebnov/collective"
)

// Args is the argument set every built-in procedure takes.
type Args struct {
	X       int    `msgpack:"x"`
	Y       int    `msgpack:"y"`
	Text    string `msgpack:"text"`
	DelayMS int    `msgpack:"delay_ms"`
}

// String renders x and y, and text and delay only when set.
func (a Args) String() string {
	s := fmt.Sprintf("x=%d y=%d", a.X, a.Y)
	if a.Text != "" {
		s += fmt.Sprintf(" text=%q", a.Text)
	}
	if a.DelayMS > 0 {
		s += fmt.Sprintf(" delay=%dms", a.DelayMS)
	}
	return s
}

// builtins are the procedures the command can run. The same set is served by worker processes.
type builtins struct {
	registry *collective.Registry
	procs    map[string]*collective.Procedure[Args, string]
	help     map[string]string
}

var errRequested = errors.New("failure requested")

func newBuiltins() *builtins {
	b := &builtins{
		registry: collective.NewRegistry(),
		procs:    make(map[string]*collective.Procedure[Args, string]),
		help:     make(map[string]string),
	}

	b.add("add", "x + y", func(_ context.Context, a Args) (string, error) {
		return strconv.Itoa(a.X + a.Y), nil
	})
	b.add("mul", "x * y", func(_ context.Context, a Args) (string, error) {
		return strconv.Itoa(a.X * a.Y), nil
	})
	b.add("sleep", "wait delay_ms, then echo text", func(ctx context.Context, a Args) (string, error) {
		select {
		case <-time.After(time.Duration(a.DelayMS) * time.Millisecond):
			return a.Text, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	b.add("sha256", "hex SHA-256 of text", func(_ context.Context, a Args) (string, error) {
		sum := sha256.Sum256([]byte(a.Text))
		return hex.EncodeToString(sum[:]), nil
	})
	b.add("fail", "fail with text as the message", func(_ context.Context, a Args) (string, error) {
		if a.Text == "" {
			return "", errRequested
		}
		return "", fmt.Errorf("%w: %s", errRequested, a.Text)
	})
	return b
}

func (b *builtins) add(name, help string, fn collective.Func[Args, string]) {
	b.procs[name] = collective.MustRegister(b.registry, name, fn)
	b.help[name] = help
}

func (b *builtins) lookup(name string) (*collective.Procedure[Args, string], bool) {
	p, ok := b.procs[name]
	return p, ok
}
