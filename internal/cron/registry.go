package cron

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// Job is one unit of scheduled maintenance.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry keeps jobs in registration order. Names must be unique and
// non-empty since they label logs and metrics.
type Registry struct {
	jobs []Job
}

func NewRegistry(jobs ...Job) (*Registry, error) {
	r := &Registry{}
	for _, job := range jobs {
		if err := r.Register(job); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register ignores nil jobs.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	name := job.Name()
	if name == "" {
		return errors.New("cron job name is required")
	}
	if slices.ContainsFunc(r.jobs, func(j Job) bool { return j.Name() == name }) {
		return fmt.Errorf("cron job %q already registered", name)
	}
	r.jobs = append(r.jobs, job)
	return nil
}

func (r *Registry) Jobs() []Job {
	return slices.Clone(r.jobs)
}
