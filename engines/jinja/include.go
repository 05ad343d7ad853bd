package jinja

import (
	"fmt"

	"github.com/nikolalohinski/gonja/v2/exec"
	"github.com/nikolalohinski/gonja/v2/nodes"
	"github.com/nikolalohinski/gonja/v2/parser"
	"github.com/nikolalohinski/gonja/v2/tokens"
)

// include renders another template in place. Unlike gonja's builtin tag,
// the included template is escaped according to its own name, so an html
// partial is escaped even when included from a txt template.
type include struct {
	location      *tokens.Token
	filename      nodes.Expression
	ignoreMissing bool
}

func (i *include) Position() *tokens.Token {
	return i.location
}

func (i *include) String() string {
	t := i.Position()
	return fmt.Sprintf("include(Filename=%s Line=%d Col=%d)", i.filename, t.Line, t.Col)
}

func (i *include) Execute(r *exec.Renderer, _ *nodes.ControlStructureBlock) error {
	value := r.Eval(i.filename)
	if value.IsError() {
		return fmt.Errorf("unable to evaluate filename: %s", value.Error())
	}

	filename, err := r.Loader.Resolve(value.String())
	if err != nil {
		if i.ignoreMissing {
			return nil
		}
		return fmt.Errorf("failed to resolve %q: %w", value.String(), err)
	}
	loader, err := r.Loader.Inherit(filename)
	if err != nil {
		return err
	}

	cfg := r.Config.Inherit()
	if l, ok := loader.(*Loader); ok {
		cfg.AutoEscape = l.Views.ShouldEscape(filename)
	}
	included, err := exec.NewTemplate(filename, cfg, loader, r.Environment)
	if err != nil {
		return err
	}
	return exec.NewRenderer(r.Environment, r.Output, cfg, loader, included).Execute()
}

// parseInclude parses
//
//	{% include name [ignore missing] [with context|without context] %}
func parseInclude(p *parser.Parser, args *parser.Parser) (nodes.ControlStructure, error) {
	inc := &include{location: p.Current()}

	filename, err := args.ParseExpression()
	if err != nil {
		return nil, err
	}
	inc.filename = filename

	if args.MatchName("ignore") != nil {
		if args.MatchName("missing") == nil {
			return nil, args.Error("Expected 'missing' after 'ignore'.", nil)
		}
		inc.ignoreMissing = true
	}
	if args.MatchName("with", "without") != nil {
		if args.MatchName("context") == nil {
			return nil, args.Error("Expected 'context'.", nil)
		}
	}

	if !args.End() {
		return nil, args.Error("Malformed 'include'-tag args.", nil)
	}
	return inc, nil
}
