package cron

import "context"

// Job is a unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry is an ordered collection of jobs to run each tick.
type Registry struct {
	jobs []Job
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Add(job Job) {
	r.jobs = append(r.jobs, job)
}

func (r *Registry) Jobs() []Job {
	return r.jobs
}
