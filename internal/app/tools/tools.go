package tools

import (
	"context"

	"github.com/PabloGalante/amika-agent/internal/domain"
)

// ToolContext brings metadata of the call to the tool
type ToolContext struct {
	UserID    domain.UserID
	RequestID string
}

// Tool is an action the pipeline can invoke with an extracted command.
// The output is a generic map so callers can log it without knowing the tool.
type Tool interface {
	Name() string
	Call(ctx context.Context, tctx ToolContext, cmd domain.Command) (map[string]any, error)
}
