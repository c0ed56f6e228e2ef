package domain

import "encoding/json"

// ActionType is the kind of change a Command applies to the relation set.
type ActionType string

const (
	ActionAdd    ActionType = "ADD"
	ActionEdit   ActionType = "EDIT"
	ActionDelete ActionType = "DELETE"
)

// Valid reports whether a is one of the known actions.
func (a ActionType) Valid() bool {
	switch a {
	case ActionAdd, ActionEdit, ActionDelete:
		return true
	}
	return false
}

// Command is the structured change extracted from one flagged exchange.
type Command struct {
	Action      ActionType      `json:"action_type"`
	RelationID  RelationID      `json:"relation_id"`
	RequestBody json.RawMessage `json:"request_body"`
}
