package jinja

import (
	"bytes"
	"io"
	"path"
	"strings"

	"github.com/nikolalohinski/gonja/v2/loaders"

	"golazy.dev/lazyrender"
)

// Loader is a gonja loader backed by the search paths of a Views. Names
// are resolved from the root of the search paths, not relative to the
// template that includes them.
type Loader struct {
	Views *lazyrender.Views
}

var _ loaders.Loader = (*Loader)(nil)

func (l *Loader) Read(name string) (io.Reader, error) {
	data, err := l.Views.ReadFile(clean(name))
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

func (l *Loader) Resolve(name string) (string, error) {
	name = clean(name)
	f, err := l.Views.Open(name)
	if err != nil {
		return "", err
	}
	f.Close()
	return name, nil
}

// Inherit returns l itself: included and extended templates share the
// same roots.
func (l *Loader) Inherit(from string) (loaders.Loader, error) {
	return l, nil
}

func clean(name string) string {
	return strings.TrimPrefix(path.Clean("/"+name), "/")
}
