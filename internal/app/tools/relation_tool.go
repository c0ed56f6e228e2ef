package tools

import (
	"context"
	"fmt"

	"github.com/PabloGalante/amika-agent/internal/app/relations"
	"github.com/PabloGalante/amika-agent/internal/domain"
)

// RelationTool applies classifier commands to the user's relation set.
type RelationTool struct {
	relations *relations.Service
}

func NewRelationTool(svc *relations.Service) *RelationTool {
	return &RelationTool{relations: svc}
}

func (t *RelationTool) Name() string {
	return "relation_store"
}

// Call expects a validated command; UserID comes in ToolContext.
func (t *RelationTool) Call(ctx context.Context, tctx ToolContext, cmd domain.Command) (map[string]any, error) {
	if tctx.UserID == "" {
		return nil, fmt.Errorf("relation_store: missing UserID in ToolContext")
	}

	res, err := t.relations.Apply(ctx, tctx.UserID, cmd)
	if err != nil {
		return nil, fmt.Errorf("relation_store: %w", err)
	}

	return map[string]any{
		"status":      "ok",
		"action":      string(res.Action),
		"relation_id": string(res.RelationID),
		"changed":     res.Changed,
	}, nil
}
