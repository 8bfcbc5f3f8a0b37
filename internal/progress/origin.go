package progress

import (
	"context"
	"os"
	"strconv"
	"sync"
)

// ParentPIDEnv is set in the environment of worker processes spawned by mpbar.
const ParentPIDEnv = "MPBAR_PARENT_PID"

// Origin identifies where a report was produced.
type Origin struct {
	PID    int    `json:"pid"`
	Worker string `json:"worker,omitempty"` // non-empty for worker goroutines
	Child  bool   `json:"child,omitempty"`  // true in spawned worker processes
}

// Main reports whether the origin is the main goroutine of the main process.
func (o Origin) Main() bool {
	return !o.Child && o.Worker == ""
}

type workerKey struct{}

// WithWorker marks ctx as belonging to a worker goroutine named name.
// Reports emitted with the returned context are not attributed to the main goroutine.
func WithWorker(ctx context.Context, name string) context.Context {
	if name == "" {
		name = "worker"
	}
	return context.WithValue(ctx, workerKey{}, name)
}

// WorkerFrom returns the worker name carried by ctx, if any.
func WorkerFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	name, _ := ctx.Value(workerKey{}).(string)
	return name
}

// processOrigin is fixed for the lifetime of the process.
var processOrigin = sync.OnceValue(func() Origin {
	return Origin{PID: os.Getpid(), Child: os.Getenv(ParentPIDEnv) != ""}
})

// IsChildProcess reports whether this process was spawned as a worker process.
// The environment is read once, on first use.
func IsChildProcess() bool {
	return processOrigin().Child
}

// ParentEnv returns the KEY=VALUE pair that marks a spawned process as a child of this one.
func ParentEnv() string {
	return ParentPIDEnv + "=" + strconv.Itoa(os.Getpid())
}

// OriginFrom builds the Origin for a report emitted under ctx.
func OriginFrom(ctx context.Context) Origin {
	o := processOrigin()
	o.Worker = WorkerFrom(ctx)
	return o
}

// InMain is the default main-goroutine detector.
func InMain(ctx context.Context) bool {
	return OriginFrom(ctx).Main()
}
