// Package lazyrender renders template files from a file system with a
// pluggable template engine.
package lazyrender

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"sync"
)

type Views struct {
	FS fs.FS

	// Engines maps a file extension (without the dot) to the engine that
	// renders it. Default is used for any extension not listed.
	Engines map[string]Engine
	Default Engine

	// Helpers are made available to every template. The jinja engine
	// exposes them as globals, the tpl engine registers the functions.
	// The render-template command sets none; Helpers is for programs
	// that embed Views.
	Helpers map[string]any

	// SearchPaths are directories inside FS where templates are looked
	// up, in order. If empty, only the root of FS is used.
	SearchPaths []string

	// Autoescape decides whether output of a template is escaped.
	// If nil, DefaultAutoescape is used.
	Autoescape AutoescapeFunc

	Logger *slog.Logger
}

// AutoescapeFunc reports whether the template with the given name should
// have its output escaped.
type AutoescapeFunc func(name string) bool

// DefaultAutoescape escapes html, htm and xml templates.
var DefaultAutoescape = SelectAutoescape("html", "htm", "xml")

// SelectAutoescape enables escaping for templates whose name ends with one
// of the given extensions. The comparison is case insensitive.
func SelectAutoescape(extensions ...string) AutoescapeFunc {
	suffixes := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		suffixes = append(suffixes, "."+strings.ToLower(strings.TrimPrefix(ext, ".")))
	}
	return func(name string) bool {
		name = strings.ToLower(name)
		for _, s := range suffixes {
			if strings.HasSuffix(name, s) {
				return true
			}
		}
		return false
	}
}

func (v *Views) ShouldEscape(file string) bool {
	if v.Autoescape != nil {
		return v.Autoescape(file)
	}
	return DefaultAutoescape(file)
}

func (v *Views) Log() *slog.Logger {
	if v.Logger != nil {
		return v.Logger
	}
	return slog.Default()
}

// EngineFor returns the engine registered for the extension of file, or the
// default engine.
func (v *Views) EngineFor(file string) (Engine, error) {
	ext := strings.TrimPrefix(path.Ext(file), ".")
	if engine, ok := v.Engines[ext]; ok {
		return engine, nil
	}
	if v.Default != nil {
		return v.Default, nil
	}
	return nil, fmt.Errorf("lazyrender: no engine for %q", ext)
}

// Open opens the first file matching name in the search paths.
func (v *Views) Open(name string) (fs.File, error) {
	name = path.Clean(name)
	if !fs.ValidPath(name) || name == "." {
		return nil, fmt.Errorf("lazyrender: invalid template name %q", name)
	}
	sp := v.SearchPaths
	if len(sp) == 0 {
		sp = []string{""}
	}
	tries := []string{}
	for _, spath := range sp {
		file := path.Join(spath, name)
		tries = append(tries, file)
		f, err := v.FS.Open(file)
		if err != nil {
			continue
		}
		if st, err := f.Stat(); err == nil && !st.IsDir() {
			return f, nil
		}
		f.Close()
	}
	return nil, fmt.Errorf("lazyrender: template not found. Tried %s", strings.Join(tries, ", "))
}

func (v *Views) ReadFile(name string) ([]byte, error) {
	f, err := v.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// RenderTemplate renders file straight into w. Output may be partially
// written when the engine fails.
func (v *Views) RenderTemplate(ctx context.Context, w io.Writer, vars map[string]any, file string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	engine, err := v.EngineFor(file)
	if err != nil {
		return err
	}
	v.Log().DebugContext(ctx, "lazyrender: rendering", "file", file, "engine", fmt.Sprintf("%T", engine), "autoescape", v.ShouldEscape(file))
	return engine.Render(ctx, v, w, vars, file)
}

const bufferSize = 1024

// Create a pool for buffers
var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, bufferSize))
	},
}

// Render renders file into a buffer and copies it to w only if rendering
// succeeded, so a failed render writes nothing.
func (v *Views) Render(ctx context.Context, w io.Writer, vars map[string]any, file string) error {
	buffer := bufferPool.Get().(*bytes.Buffer)
	buffer.Reset()
	defer bufferPool.Put(buffer)

	if err := v.RenderTemplate(ctx, buffer, vars, file); err != nil {
		return err
	}
	_, err := buffer.WriteTo(w)
	return err
}
