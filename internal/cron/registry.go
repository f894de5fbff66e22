package cron

import (
	"context"
	"fmt"
	"strings"
)

// Result summarizes one job run. Affected counts the rows the job changed.
type Result struct {
	Affected int64
}

// Job is one unit of scheduled maintenance.
type Job interface {
	Name() string
	Run(ctx context.Context) (Result, error)
}

// Registry holds jobs in registration order and rejects duplicate names, since
// names key the job metrics and logs.
type Registry struct {
	order  []string
	byName map[string]Job
}

// NewRegistry registers jobs in order. Nil jobs are disabled jobs and are
// skipped.
func NewRegistry(jobs ...Job) (*Registry, error) {
	r := &Registry{byName: make(map[string]Job, len(jobs))}
	for _, job := range jobs {
		if err := r.Register(job); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	name := strings.TrimSpace(job.Name())
	if name == "" {
		return fmt.Errorf("cron job %T has no name", job)
	}
	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("cron job %q registered twice", name)
	}
	r.byName[name] = job
	r.order = append(r.order, name)
	return nil
}

// Jobs returns a copy of the registered jobs in registration order.
func (r *Registry) Jobs() []Job {
	out := make([]Job, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

func (r *Registry) Lookup(name string) (Job, bool) {
	job, ok := r.byName[name]
	return job, ok
}
