package session

import (
	"fmt"
	"strings"
	"time"
)

// Mode arbitrates control between the autonomous agent and the operator.
type Mode int

const (
	ModeIdle Mode = iota
	ModeConnecting
	ModeAgentActive
	ModeThinking
	ModeIntervention
	ModeError
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeConnecting:
		return "connecting"
	case ModeAgentActive:
		return "agent_active"
	case ModeThinking:
		return "thinking"
	case ModeIntervention:
		return "intervention_active"
	case ModeError:
		return "error"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// interventionKeywords mark agent replies that ask for a human.
var interventionKeywords = []string{"intervention", "captcha", "login", "verify"}

// NeedsIntervention reports whether an agent reply asks the operator to take
// over.
func NeedsIntervention(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range interventionKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Role identifies the author of a transcript entry.
type Role string

const (
	RoleUser   Role = "user"
	RoleAgent  Role = "agent"
	RoleSystem Role = "system"
	RoleError  Role = "error"
)

// TranscriptEntry is one line of the conversation with the agent.
type TranscriptEntry struct {
	Timestamp time.Time
	Role      Role
	Text      string
}
