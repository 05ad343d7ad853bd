package lazyrender

import (
	"context"
	"io"
)

// Engine renders a single template file resolved through views.
type Engine interface {
	Render(ctx context.Context, views *Views, w io.Writer, vars map[string]any, file string) error
}
