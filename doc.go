// Package collective runs blocking batches of independent tasks on a fixed pool of workers
// and returns their results in input order, whatever order the workers finish in.
//
// An Executor is created once, in one of two modes, and reused by many batches:
//   - ModeThread: tasks run on goroutines sharing memory with the caller.
//   - ModeProcess: tasks run in isolated worker processes. Only procedures registered in a
//     Registry can run there; arguments and results are copied with msgpack.
//
// Batches
// Run (and its typed helpers Pool, Branch, PoolProc and BranchProc) accepts either one
// function applied to every argument set (pool mode) or one function per argument set
// (branch mode). Run blocks until every result is in, or until the first failure:
// a failing task aborts the whole batch with a *TaskError carrying its index.
//
// Defaults
// Unless overridden, the following defaults apply to a newly created Executor:
//   - MaxWorkers: 2
//   - Name: a random UUID
//   - Logger: no-op zap logger
//   - Metrics: no-op provider
//   - Process-mode worker command: the current executable
//   - Process-mode termination of running workers on failure: enabled
//
// Worker processes
// Process-mode workers are copies of a program started with the COLLECTIVE_WORKER
// environment variable. The program must call ServeIfWorker at the top of main
// (or TestMain) with the registry holding its procedures.
package collective
