package collective

import (
	"context"
	"fmt"
	"os"

	"github.com/ygrebnov/collective/backend"
)

// ServeIfWorker turns the current process into a process-mode worker when it was launched
// as one, serving procedures from reg until the parent closes the connection, then exits.
// It returns false immediately in any other process. Call it at the top of main (or TestMain)
// before doing anything else:
//
//	func main() {
//		collective.ServeIfWorker(registry)
//		...
//	}
func ServeIfWorker(reg *Registry) bool {
	if !backend.IsWorker() {
		return false
	}
	if reg == nil {
		reg = NewRegistry()
	}
	if err := backend.ServeProcess(context.Background(), reg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(0)
	return true
}
