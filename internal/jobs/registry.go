// Package jobs defines the contract between the job engine and the
// pluggable handlers that perform the actual work for each job kind.
package jobs

import (
	"context"
	"fmt"
	"sort"
)

// Result is a handler's declared output: a file written under the job's
// scratch directory, with the name and content type the artifact should be
// stored and served under. A nil Result means the job produced no artifact.
type Result struct {
	LocalPath string
	Name      string
	Mime      string
}

// Handler performs the work for one job kind.
//
// Handlers must be idempotent: a failed attempt is re-executed in full, so
// any side effect a handler performs has to tolerate repetition. Artifact
// writes are naturally idempotent because the durable key is derived from
// the job id.
type Handler func(ctx context.Context, jc *Context, payload map[string]any) (*Result, error)

// Registry is the closed, statically known mapping from job kind to
// handler. It is populated once during startup; Resolve is safe for
// concurrent use afterwards.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(kind string, h Handler) {
	if _, exists := r.handlers[kind]; exists {
		panic(fmt.Sprintf("job handler %q registered twice", kind))
	}
	r.handlers[kind] = h
}

func (r *Registry) Resolve(kind string) (Handler, bool) {
	h, found := r.handlers[kind]
	return h, found
}

// Kinds returns the registered job kinds in stable order.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.handlers))
	for kind := range r.handlers {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
