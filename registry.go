package collective

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/ygrebnov/errorc"

	"github.com/ygrebnov/collective/backend"
)

// Registry maps procedure names to functions that worker processes can run.
//
// Worker processes are fresh copies of a program, so a function can only be run there by
// name: the parent and its workers must build the same Registry (typically during package
// initialization) and the worker must hand it to ServeIfWorker.
type Registry struct {
	mu    sync.RWMutex
	procs map[string]backend.Procedure
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{procs: make(map[string]backend.Procedure)}
}

// Lookup returns the procedure registered under name.
func (r *Registry) Lookup(name string) (backend.Procedure, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.procs[name]
	return p, ok
}

// Names returns the registered procedure names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.procs))
	for name := range r.procs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Procedure is a named function usable in both modes. In thread mode it is called directly;
// in process mode its arguments and result are copied across the process boundary with msgpack.
type Procedure[A, R any] struct {
	name string
	fn   Func[A, R]
}

// Register adds fn to reg under name. Empty and duplicate names fail with ErrConfiguration.
// Argument and result types must copy across processes without loss: channels, functions
// and structs with unexported fields anywhere inside A or R fail with ErrSerialization,
// in both modes.
func Register[A, R any](reg *Registry, name string, fn Func[A, R]) (*Procedure[A, R], error) {
	switch {
	case reg == nil:
		return nil, errorc.With(ErrConfiguration, errorc.String("", "Register requires a registry"))
	case name == "":
		return nil, errorc.With(ErrConfiguration, errorc.String("", "procedure name must not be empty"))
	case fn == nil:
		return nil, errorc.With(ErrConfiguration, errorc.String("procedure", name))
	}

	for _, t := range []reflect.Type{reflect.TypeFor[A](), reflect.TypeFor[R]()} {
		if err := checkTransferable(t); err != nil {
			return nil, errorc.With(err, errorc.String("procedure", name))
		}
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, ok := reg.procs[name]; ok {
		return nil, errorc.With(ErrConfiguration, errorc.String("duplicate procedure", name))
	}
	p := &Procedure[A, R]{name: name, fn: fn}
	reg.procs[name] = p
	return p, nil
}

// MustRegister is like Register but panics on error. Intended for package-level variables.
func MustRegister[A, R any](reg *Registry, name string, fn Func[A, R]) *Procedure[A, R] {
	p, err := Register(reg, name, fn)
	if err != nil {
		panic(err)
	}
	return p
}

// Name returns the name the procedure was registered under.
func (p *Procedure[A, R]) Name() string { return p.name }

// Call runs the procedure in the current process.
func (p *Procedure[A, R]) Call(ctx context.Context, args A) (R, error) { return p.fn(ctx, args) }

// Invoke decodes args, runs the procedure and encodes its result. It is used by worker processes.
func (p *Procedure[A, R]) Invoke(ctx context.Context, raw []byte) ([]byte, error) {
	var args A
	if err := msgpack.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("%w: decode arguments of %q: %w", ErrSerialization, p.name, err)
	}
	res, err := p.fn(ctx, args)
	if err != nil {
		return nil, err
	}
	out, err := msgpack.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("%w: encode result of %q: %w", ErrSerialization, p.name, err)
	}
	return out, nil
}

// decodeResult turns a msgpack-encoded result into R.
func decodeResult[R any](raw []byte) (any, error) {
	var res R
	if err := msgpack.Unmarshal(raw, &res); err != nil {
		return nil, err
	}
	return res, nil
}
