package tpl

import (
	"context"
	htmltemplate "html/template"
	"io"
	"reflect"
	"sync"
	"text/template"

	"golazy.dev/lazyrender"
)

var (
	Extensions = []string{"tpl", "tmpl", "gotmpl"}
)

type MissingKey int

const (
	MissingKeyZero MissingKey = iota
	MissingKeyError
	MissingKeyInvalid
)

func (m MissingKey) option() string {
	switch m {
	case MissingKeyError:
		return "missingkey=error"
	case MissingKeyInvalid:
		return "missingkey=invalid"
	default:
		return "missingkey=zero"
	}
}

// executor is implemented by both text/template and html/template.
type executor interface {
	Execute(w io.Writer, data any) error
}

type Engine struct {
	tplsL sync.RWMutex
	MissingKey
	tpls map[string]executor
}

func (e *Engine) Render(ctx context.Context, views *lazyrender.Views, w io.Writer, vars map[string]any, file string) error {
	var err error
	e.tplsL.RLock()
	t, ok := e.tpls[file]
	e.tplsL.RUnlock()
	if !ok {
		t, err = e.genTemplate(views, file)
		if err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return t.Execute(w, vars)
}

func (e *Engine) genTemplate(views *lazyrender.Views, file string) (executor, error) {
	e.tplsL.Lock()
	defer e.tplsL.Unlock()
	if t, ok := e.tpls[file]; ok {
		return t, nil
	}
	data, err := views.ReadFile(file)
	if err != nil {
		return nil, err
	}

	funcs := helperFuncs(views.Helpers)
	var t executor
	if views.ShouldEscape(file) {
		t, err = htmltemplate.New(file).Option(e.MissingKey.option()).Funcs(funcs).Parse(string(data))
	} else {
		t, err = template.New(file).Option(e.MissingKey.option()).Funcs(funcs).Parse(string(data))
	}
	if err != nil {
		return nil, err
	}
	if e.tpls == nil {
		e.tpls = make(map[string]executor)
	}
	e.tpls[file] = t
	return t, nil
}

// helperFuncs keeps the helpers that can be registered as template functions.
func helperFuncs(helpers map[string]any) map[string]any {
	funcs := make(map[string]any, len(helpers))
	for name, h := range helpers {
		if h != nil && reflect.TypeOf(h).Kind() == reflect.Func {
			funcs[name] = h
		}
	}
	return funcs
}
