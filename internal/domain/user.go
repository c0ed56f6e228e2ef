package domain

import (
	"strings"
	"time"
)

// PronounsUnspecified is stored when a relation is added without pronouns.
const PronounsUnspecified = "<they/them>"

// User is the owner of a relation set and of the two agents acting on it.
type User struct {
	ID        UserID `json:"googleId"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Pronouns  string `json:"pronouns,omitempty"`
	Picture   string `json:"picture,omitempty"`
	Interests string `json:"interests,omitempty"`

	RespondentAgentID   AgentID    `json:"first_assistant_id,omitempty"`
	RespondentThreadIDs []ThreadID `json:"first_thread_ids,omitempty"`
	ClassifierAgentID   AgentID    `json:"second_assistant_id,omitempty"`
	ClassifierThreadIDs []ThreadID `json:"second_thread_ids,omitempty"`

	Relations []Relation `json:"relations"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName is the name used when addressing the user in generated text.
func (u *User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Agent returns the agent id bound to the given kind.
func (u *User) Agent(kind AgentKind) AgentID {
	if kind == AgentClassifier {
		return u.ClassifierAgentID
	}
	return u.RespondentAgentID
}

// LatestThread returns the most recently opened thread of the given kind.
func (u *User) LatestThread(kind AgentKind) (ThreadID, bool) {
	ids := u.RespondentThreadIDs
	if kind == AgentClassifier {
		ids = u.ClassifierThreadIDs
	}
	if len(ids) == 0 {
		return "", false
	}
	return ids[len(ids)-1], true
}

// FindRelation returns the index of the relation with the given id, or -1.
func (u *User) FindRelation(id RelationID) int {
	for i := range u.Relations {
		if u.Relations[i].ID == id {
			return i
		}
	}
	return -1
}

// Relation is one person in the user's network.
type Relation struct {
	ID                RelationID          `json:"_id"`
	Name              string              `json:"name"`
	Picture           string              `json:"picture,omitempty"`
	Pronouns          string              `json:"pronouns"`
	RelationshipType  string              `json:"relationship_type"`
	ContactFrequency  []ContactFrequency  `json:"contact_frequency"`
	Overview          string              `json:"overview"`
	ContactHistory    []ContactHistory    `json:"contact_history"`
	ReminderFrequency []ReminderFrequency `json:"reminder_frequency"`
	ReminderEnabled   bool                `json:"reminder_enabled"`
}

// ContactFrequency is a desired cadence for one contact method ("weekly", "every 2 months").
type ContactFrequency struct {
	Method    string `json:"method"`
	Frequency string `json:"frequency"`
}

// ContactHistory records one past interaction. Date is either a timestamp or an
// imprecise phrase such as "last summer"; at least one of Date and Topic is set.
type ContactHistory struct {
	Date   string `json:"date,omitempty"`
	Topic  string `json:"topic,omitempty"`
	Method string `json:"method,omitempty"`
}

// ParsedDate returns Date as a time when it holds a timestamp.
func (h ContactHistory) ParsedDate() (time.Time, bool) {
	t, err := ParseFlexibleTime(h.Date)
	if err != nil || t.IsZero() {
		return time.Time{}, false
	}
	return t, true
}

// Clone returns a deep copy, so stores never share slices with callers.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.RespondentThreadIDs = append([]ThreadID(nil), u.RespondentThreadIDs...)
	out.ClassifierThreadIDs = append([]ThreadID(nil), u.ClassifierThreadIDs...)
	if u.Relations != nil {
		out.Relations = make([]Relation, len(u.Relations))
		for i := range u.Relations {
			out.Relations[i] = u.Relations[i].Clone()
		}
	}
	return &out
}

// Clone returns a deep copy of the relation.
func (r Relation) Clone() Relation {
	out := r
	out.ContactFrequency = append([]ContactFrequency(nil), r.ContactFrequency...)
	out.ContactHistory = append([]ContactHistory(nil), r.ContactHistory...)
	if r.ReminderFrequency != nil {
		out.ReminderFrequency = make([]ReminderFrequency, len(r.ReminderFrequency))
		for i, rf := range r.ReminderFrequency {
			rf.Occurrences = append([]time.Time(nil), rf.Occurrences...)
			out.ReminderFrequency[i] = rf
		}
	}
	return out
}
