package scheduler

import (
	"github.com/pablasso/ralph/internal/supervisor"
	"github.com/pablasso/ralph/internal/task"
)

// supervisorWorkers adapts the concrete Supervisor to the Workers interface
// so tests can swap in a fake.
type supervisorWorkers struct {
	sup *supervisor.Supervisor
}

// NewSupervisorWorkers wraps a Supervisor for use by the Scheduler.
func NewSupervisorWorkers(sup *supervisor.Supervisor) Workers {
	return supervisorWorkers{sup: sup}
}

func (w supervisorWorkers) Start(t task.Task, promptContent string) (Process, error) {
	h, err := w.sup.Start(t, promptContent)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (w supervisorWorkers) ReapFinished() []Result {
	finished := w.sup.ReapFinished()
	results := make([]Result, len(finished))
	for i, r := range finished {
		results[i] = Result(r)
	}
	return results
}

func (w supervisorWorkers) RunningCount() int {
	return w.sup.RunningCount()
}

func (w supervisorWorkers) Tracks(taskID string) bool {
	return w.sup.Tracks(taskID)
}

func (w supervisorWorkers) TerminateAll() {
	w.sup.TerminateAll()
}
