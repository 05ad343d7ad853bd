package raw

import (
	"context"
	"io"

	"golazy.dev/lazyrender"
)

// Engine copies the template file as is. Variables are ignored.
type Engine struct {
}

func (e *Engine) Render(ctx context.Context, views *lazyrender.Views, w io.Writer, variables map[string]any, file string) error {
	f, err := views.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err

}
