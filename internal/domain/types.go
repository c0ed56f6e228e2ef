package domain

import "time"

type UserID string
type RelationID string
type AgentID string
type ThreadID string
type RunID string

// Role is the author of a turn inside an agent thread.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// AgentKind selects one of the two agents bound to every user.
type AgentKind string

const (
	// AgentRespondent talks with the user and flags replies that imply a data change.
	AgentRespondent AgentKind = "respondent"
	// AgentClassifier turns a flagged exchange into a single structured Command.
	AgentClassifier AgentKind = "classifier"
)

// RunStatus is the lifecycle state of one generation turn on a thread.
type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunRequiresAction RunStatus = "requires_action"
	RunCancelling     RunStatus = "cancelling"
	RunCancelled      RunStatus = "cancelled"
	RunFailed         RunStatus = "failed"
	RunCompleted      RunStatus = "completed"
	RunIncomplete     RunStatus = "incomplete"
	RunExpired        RunStatus = "expired"
)

// IsTerminal reports whether the run will not change state anymore.
// requires_action is treated as terminal because no tools are registered on the agents.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunCancelled, RunExpired, RunIncomplete, RunRequiresAction:
		return true
	}
	return false
}

type Timestamp = time.Time
