// Package jinja renders Jinja templates with gonja.
package jinja

import (
	"context"
	"io"
	"sync"

	"github.com/nikolalohinski/gonja/v2/builtins"
	"github.com/nikolalohinski/gonja/v2/config"
	"github.com/nikolalohinski/gonja/v2/exec"
	"github.com/nikolalohinski/gonja/v2/parser"

	"golazy.dev/lazyrender"
)

var (
	Extensions = []string{"j2", "jinja", "jinja2"}
)

type Engine struct {
	// TrimBlocks removes the first newline after a block tag.
	TrimBlocks bool
	// LStripBlocks strips whitespace from the start of a line up to a block tag.
	LStripBlocks bool
	// KeepTrailingNewline keeps the final newline of a template source.
	KeepTrailingNewline bool

	setsL sync.RWMutex
	sets  map[*lazyrender.Views]*templateSet
}

// New returns an engine with block trimming enabled.
func New() *Engine {
	return &Engine{
		TrimBlocks:   true,
		LStripBlocks: true,
	}
}

func (e *Engine) Render(ctx context.Context, views *lazyrender.Views, w io.Writer, vars map[string]any, file string) error {
	tpl, err := e.templateSet(views).get(file)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if vars == nil {
		vars = map[string]any{}
	}
	return tpl.Execute(w, exec.NewContext(vars))
}

// Config returns the gonja configuration for a template, escaping its
// output when autoescape is set.
func (e *Engine) Config(autoescape bool) *config.Config {
	cfg := config.New()
	cfg.TrimBlocks = e.TrimBlocks
	cfg.LeftStripBlocks = e.LStripBlocks
	cfg.KeepTrailingNewline = e.KeepTrailingNewline
	cfg.AutoEscape = autoescape
	return cfg
}

func (e *Engine) templateSet(views *lazyrender.Views) *templateSet {
	e.setsL.RLock()
	set, ok := e.sets[views]
	e.setsL.RUnlock()
	if ok {
		return set
	}

	e.setsL.Lock()
	defer e.setsL.Unlock()
	if set, ok := e.sets[views]; ok {
		return set
	}
	set = &templateSet{
		engine:    e,
		loader:    &Loader{Views: views},
		env:       newEnvironment(views.Helpers),
		templates: map[string]*exec.Template{},
	}
	if e.sets == nil {
		e.sets = make(map[*lazyrender.Views]*templateSet)
	}
	e.sets[views] = set
	return set
}

// templateSet holds the parsed templates of one Views.
type templateSet struct {
	engine *Engine
	loader *Loader
	env    *exec.Environment

	templatesL sync.RWMutex
	templates  map[string]*exec.Template
}

func (s *templateSet) get(file string) (*exec.Template, error) {
	s.templatesL.RLock()
	tpl, ok := s.templates[file]
	s.templatesL.RUnlock()
	if ok {
		return tpl, nil
	}

	s.templatesL.Lock()
	defer s.templatesL.Unlock()
	if tpl, ok := s.templates[file]; ok {
		return tpl, nil
	}
	cfg := s.engine.Config(s.loader.Views.ShouldEscape(file))
	tpl, err := exec.NewTemplate(file, cfg, s.loader, s.env)
	if err != nil {
		return nil, err
	}
	s.templates[file] = tpl
	return tpl, nil
}

// newEnvironment builds the gonja environment with the builtin filters,
// tests and globals, helpers as extra globals, and an include tag that
// decides escaping per included template.
func newEnvironment(helpers map[string]any) *exec.Environment {
	globals := exec.EmptyContext().
		Update(builtins.GlobalFunctions).
		Update(builtins.GlobalVariables)
	if len(helpers) > 0 {
		globals.Update(exec.NewContext(helpers))
	}

	structures := exec.NewControlStructureSet(map[string]parser.ControlStructureParser{}).
		Update(builtins.ControlStructures).
		Update(exec.NewControlStructureSet(map[string]parser.ControlStructureParser{
			"include": parseInclude,
		}))

	return &exec.Environment{
		Context:           globals,
		Filters:           builtins.Filters,
		Tests:             builtins.Tests,
		ControlStructures: structures,
		Methods:           builtins.Methods,
	}
}
