package api

import "fmt"

// Backend statuses reported by /api/state.
const (
	StatusIdle    = "IDLE"
	StatusRunning = "RUNNING"
	StatusStopped = "STOPPED"
)

// Stats counts the agent's work items.
type Stats struct {
	Total   int `json:"total"`
	Applied int `json:"applied"`
	Pending int `json:"pending"`
}

// State is the agent host's session state.
type State struct {
	Status           string `json:"status"`
	Query            string `json:"query"`
	CVLoaded         bool   `json:"cv_loaded"`
	Stats            Stats  `json:"stats"`
	InterventionMode bool   `json:"intervention_mode"`
	Clients          int    `json:"clients"`
}

// ConfigRequest updates one configuration key.
type ConfigRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ConfigResponse echoes the stored key.
type ConfigResponse struct {
	Status string `json:"status"`
	Key    string `json:"key"`
	Value  string `json:"value"`
}

// CommandRequest submits a system command such as "start" or "stop".
type CommandRequest struct {
	Command string `json:"command"`
}

// CommandResponse is the outcome of a command.
type CommandResponse struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// IngestResponse is the outcome of a document upload.
type IngestResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Length  int    `json:"length,omitempty"`
}

// Profile is the operator's candidate profile.
type Profile struct {
	FullName          string   `json:"full_name" yaml:"full_name"`
	Email             string   `json:"email" yaml:"email"`
	Phone             string   `json:"phone,omitempty" yaml:"phone"`
	Location          string   `json:"location,omitempty" yaml:"location"`
	JobTitles         []string `json:"job_titles,omitempty" yaml:"job_titles"`
	Skills            []string `json:"skills,omitempty" yaml:"skills"`
	ExperienceSummary string   `json:"experience_summary,omitempty" yaml:"experience_summary"`
}

// Validate checks the required profile fields.
func (p Profile) Validate() error {
	if p.FullName == "" {
		return fmt.Errorf("profile: full_name is required")
	}
	if p.Email == "" {
		return fmt.Errorf("profile: email is required")
	}
	return nil
}

// ProfileResponse echoes the stored profile.
type ProfileResponse struct {
	Status  string  `json:"status"`
	Profile Profile `json:"profile"`
}

// ErrorResponse is the body of a failed request.
type ErrorResponse struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// InterventionStatus reports whether a human currently has control.
type InterventionStatus struct {
	InterventionMode bool `json:"intervention_mode"`
	AgentRunning     bool `json:"agent_running"`
	Clients          int  `json:"clients"`
}
