package hierarchy

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// WorkflowStep records one command applied to an entry so that it can be
// replayed on another entry
type WorkflowStep struct {
	ID      uuid.UUID
	Name    string
	Command string
	Params  map[string]string
	Created time.Time
}

// NewWorkflowStep creates a step with a fresh id and the current time
func NewWorkflowStep(name, command string, params map[string]string) WorkflowStep {
	return WorkflowStep{
		ID:      uuid.New(),
		Name:    name,
		Command: command,
		Params:  params,
		Created: time.Now().UTC(),
	}
}

// Workflow is the ordered command log of an entry
type Workflow struct {
	mu    sync.Mutex
	steps []WorkflowStep
}

// AddStep appends a step
func (w *Workflow) AddStep(s WorkflowStep) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.steps = append(w.steps, s)
}

// Steps returns a copy of the recorded steps in order
func (w *Workflow) Steps() []WorkflowStep {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]WorkflowStep(nil), w.steps...)
}

// Len returns the number of recorded steps
func (w *Workflow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.steps)
}
