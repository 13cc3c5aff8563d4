package agentproc

import "time"

// State represents the lifecycle state of the agent process.
type State string

const (
	StateStopped    State = "stopped"
	StateRunning    State = "running"
	StateRestarting State = "restarting"
	StateTerminated State = "terminated"
)

// Status is a snapshot of the supervised process.
type Status struct {
	ID        string    `json:"id"`
	State     State     `json:"state"`
	PID       int       `json:"pid,omitempty"`
	StartedAt time.Time `json:"startedAt,omitempty"`
	Restarts  int       `json:"restarts"`
	LastExit  int       `json:"lastExit"`
}
