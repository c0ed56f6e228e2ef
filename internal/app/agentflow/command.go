package agentflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PabloGalante/amika-agent/internal/domain"
	"github.com/PabloGalante/amika-agent/internal/modeljson"
)

type commandWire struct {
	ActionType  string          `json:"action_type"`
	RelationID  string          `json:"relation_id"`
	RequestBody json.RawMessage `json:"request_body"`
}

// ParseCommand extracts the single command object from classifier output. Text
// around the object is ignored and slightly broken JSON is repaired. A request_body
// sent as a string holding JSON is unwrapped.
func ParseCommand(raw string) (domain.Command, error) {
	var w commandWire
	if err := modeljson.Decode(raw, &w); err != nil {
		return domain.Command{}, fmt.Errorf("%w: %v", domain.ErrExtractionFailure, err)
	}

	cmd := domain.Command{
		Action:     domain.ActionType(strings.ToUpper(strings.TrimSpace(w.ActionType))),
		RelationID: domain.RelationID(strings.TrimSpace(w.RelationID)),
	}
	if !cmd.Action.Valid() {
		return domain.Command{}, fmt.Errorf("%w: unknown action_type %q", domain.ErrExtractionFailure, w.ActionType)
	}

	body, err := unwrapBody(w.RequestBody)
	if err != nil {
		return domain.Command{}, fmt.Errorf("%w: request_body: %v", domain.ErrExtractionFailure, err)
	}
	cmd.RequestBody = body

	switch cmd.Action {
	case domain.ActionAdd:
		if body == nil {
			return domain.Command{}, fmt.Errorf("%w: ADD without request_body", domain.ErrExtractionFailure)
		}
	case domain.ActionEdit:
		if cmd.RelationID == "" || body == nil {
			return domain.Command{}, fmt.Errorf("%w: EDIT needs relation_id and request_body", domain.ErrExtractionFailure)
		}
	case domain.ActionDelete:
		if cmd.RelationID == "" {
			return domain.Command{}, fmt.Errorf("%w: DELETE without relation_id", domain.ErrExtractionFailure)
		}
	}
	return cmd, nil
}

func unwrapBody(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] != '"' {
		return trimmed, nil
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return nil, err
	}
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var inner json.RawMessage
	if err := modeljson.Decode(s, &inner); err != nil {
		return nil, err
	}
	return inner, nil
}
