package domain

import (
	"context"
	"time"
)

// UserStore persists user documents together with their embedded relations.
type UserStore interface {
	FindUser(ctx context.Context, id UserID) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	CreateUser(ctx context.Context, user *User) error
	SaveUser(ctx context.Context, user *User) error
}

// ChangeKind tells inserts apart from updates on the change feed.
type ChangeKind string

const (
	ChangeInserted ChangeKind = "inserted"
	ChangeModified ChangeKind = "modified"
)

// ChangeEvent is emitted after a user document was written. A non-nil Err reports a
// subscription problem; the channel stays open after it.
type ChangeEvent struct {
	Kind   ChangeKind
	UserID UserID
	User   *User
	Err    error
}

// ChangeFeed notifies about written user documents. Channels close when ctx ends.
type ChangeFeed interface {
	WatchUser(ctx context.Context, id UserID) (<-chan ChangeEvent, error)
	WatchInserts(ctx context.Context) (<-chan ChangeEvent, error)
}

// AssistantProvider is the hosted agent service: long-lived agents with
// instructions, threads of turns, and asynchronous runs over a thread.
type AssistantProvider interface {
	CreateAssistant(ctx context.Context, name, instructions string) (AgentID, error)
	UpdateInstructions(ctx context.Context, agent AgentID, instructions string) error
	CreateThread(ctx context.Context) (ThreadID, error)
	PostTurn(ctx context.Context, thread ThreadID, role Role, content string) error
	StartRun(ctx context.Context, thread ThreadID, agent AgentID) (RunID, error)
	RunStatus(ctx context.Context, thread ThreadID, run RunID) (RunStatus, error)
	// ListTurns returns the thread's turns, newest first.
	ListTurns(ctx context.Context, thread ThreadID, limit int) ([]Turn, error)
}

// NotificationContext is everything the content generator knows about a reminder.
type NotificationContext struct {
	RelationName     string             `json:"relationName"`
	MethodOfContact  string             `json:"methodOfContact"`
	Pronouns         string             `json:"pronouns"`
	RelationType     string             `json:"relationType"`
	Overview         string             `json:"overviewOfPerson"`
	ContactHistory   []ContactHistory   `json:"contactHistory"`
	ContactFrequency []ContactFrequency `json:"contactFrequency"`
	UserName         string             `json:"userName"`
}

// ContentGenerator writes the short HTML body of a reminder email.
type ContentGenerator interface {
	GenerateNotification(ctx context.Context, nc NotificationContext) (string, error)
}

// Notification is one outgoing email.
type Notification struct {
	To      string
	Subject string
	Body    string
	IsHTML  bool
}

// Mailer delivers notifications.
type Mailer interface {
	Send(ctx context.Context, n Notification) error
}

// LinkClaims is embedded in a deep link that resumes a conversation.
type LinkClaims struct {
	UserID UserID `json:"googleId"`
	Email  string `json:"email"`
	Prompt string `json:"emailContent"`
}

// LinkIssuer mints and verifies deep-link tokens.
type LinkIssuer interface {
	Issue(claims LinkClaims, ttl time.Duration) (string, error)
	Verify(token string) (LinkClaims, error)
}
