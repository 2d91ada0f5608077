package collective

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func call[A, R any](t *testing.T, inv invoker[A, R], a A) R {
	t.Helper()
	r, err := inv.fn(context.Background(), a)
	require.NoError(t, err)
	return r
}

func TestResolveTarget_SingleFunctionShapes(t *testing.T) {
	reg := NewRegistry()
	proc := MustRegister(reg, "inc", func(_ context.Context, x int) (int, error) { return x + 1, nil })

	tests := []struct {
		name     string
		target   any
		wantProc string
	}{
		{name: "Func", target: Func[int, int](func(_ context.Context, x int) (int, error) { return x + 1, nil })},
		{name: "func with context", target: func(_ context.Context, x int) (int, error) { return x + 1, nil }},
		{name: "func with error", target: func(x int) (int, error) { return x + 1, nil }},
		{name: "plain func", target: func(x int) int { return x + 1 }},
		{name: "procedure", target: proc, wantProc: "inc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			invs, err := resolveTarget[int, int](tt.target, 3)
			require.NoError(t, err)
			require.Len(t, invs, 3)
			for _, inv := range invs {
				require.Equal(t, 5, call(t, inv, 4))
				require.Equal(t, tt.wantProc, inv.proc)
			}
		})
	}
}

func TestResolveTarget_BranchPairsPositionally(t *testing.T) {
	fns := []Func[int, int]{
		func(_ context.Context, x int) (int, error) { return x + 0, nil },
		func(_ context.Context, x int) (int, error) { return x + 1, nil },
		func(_ context.Context, x int) (int, error) { return x + 2, nil },
	}
	invs, err := resolveTarget[int, int](fns, 3)
	require.NoError(t, err)
	for i, inv := range invs {
		require.Equal(t, 10+i, call(t, inv, 10))
	}

	mixed := []any{
		func(x int) int { return x * 2 },
		func(x int) (int, error) { return x * 3, nil },
	}
	invs, err = resolveTarget[int, int](mixed, 2)
	require.NoError(t, err)
	require.Equal(t, 2, call(t, invs[0], 1))
	require.Equal(t, 3, call(t, invs[1], 1))
}

func TestResolveTarget_Errors(t *testing.T) {
	tests := []struct {
		name    string
		target  any
		n       int
		wantErr error
		index   int
	}{
		{name: "nil target", target: nil, n: 1, wantErr: ErrConfiguration, index: -1},
		{name: "nil Func", target: Func[int, int](nil), n: 1, wantErr: ErrConfiguration, index: -1},
		{name: "nil procedure", target: (*Procedure[int, int])(nil), n: 1, wantErr: ErrConfiguration, index: -1},
		{name: "not a function", target: 42, n: 1, wantErr: ErrConfiguration, index: -1},
		{name: "wrong signature", target: func(string) int { return 0 }, n: 1, wantErr: ErrConfiguration, index: -1},
		{name: "short branch", target: []func(int) int{func(x int) int { return x }}, n: 2, wantErr: ErrArityMismatch, index: -1},
		{name: "long branch", target: []any{func(x int) int { return x }, func(x int) int { return x }}, n: 1, wantErr: ErrArityMismatch, index: -1},
		{name: "nil branch element", target: []Func[int, int]{func(_ context.Context, x int) (int, error) { return x, nil }, nil}, n: 2, wantErr: ErrConfiguration, index: 1},
		{name: "non-callable branch element", target: []any{func(x int) int { return x }, "nope"}, n: 2, wantErr: ErrConfiguration, index: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolveTarget[int, int](tt.target, tt.n)
			require.ErrorIs(t, err, tt.wantErr)
			idx, ok := ExtractTaskIndex(err)
			if tt.index < 0 {
				require.False(t, ok)
				return
			}
			require.True(t, ok)
			require.Equal(t, tt.index, idx)
		})
	}
}
