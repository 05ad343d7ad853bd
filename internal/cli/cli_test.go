package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golazy.dev/lazyrender/internal/config"
)

type result struct {
	code   int
	stdout string
	stderr string
}

func run(t *testing.T, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Main(args, &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func writeTemplate(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLiteralTemplate(t *testing.T) {
	tpl := writeTemplate(t, t.TempDir(), "literal.txt", "plain text, no markup\n")

	r := run(t, tpl, "{}")
	assert.Equal(t, ExitSuccess, r.code)
	assert.Equal(t, "plain text, no markup\n", r.stdout)
	assert.Empty(t, r.stderr)
}

func TestVariableSubstitution(t *testing.T) {
	tpl := writeTemplate(t, t.TempDir(), "hello.txt", "Hello {{ name }}!")

	r := run(t, tpl, `{"name": "world"}`)
	assert.Equal(t, ExitSuccess, r.code)
	assert.Equal(t, "Hello world!\n", r.stdout)
}

func TestExtraArgumentsIgnored(t *testing.T) {
	tpl := writeTemplate(t, t.TempDir(), "hello.txt", "Hello {{ name }}!")

	r := run(t, tpl, `{"name": "world"}`, "ignored")
	assert.Equal(t, ExitSuccess, r.code)
	assert.Equal(t, "Hello world!\n", r.stdout)
}

func TestWorkflowTemplate(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "partials/env.yml", "env:\n  STAGE: {{ stage }}\n")
	tpl := writeTemplate(t, dir, "workflow.yml", `name: {{ name }}
{% include "env.yml" %}

jobs:
{% for job in jobs %}
  {{ job.id }}:
    runs-on: ubuntu-latest
    {% if job.needs %}
    needs: {{ job.needs }}
    {% endif %}
{% endfor %}
`)
	r := run(t, "--search-path", "partials", tpl,
		`{"name": "ci", "stage": "prod", "jobs": [{"id": "build"}, {"id": "test", "needs": "build"}]}`)
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Equal(t, `name: ci
env:
  STAGE: prod
jobs:
  build:
    runs-on: ubuntu-latest
  test:
    runs-on: ubuntu-latest
    needs: build

`, r.stdout)
}

func TestJinjaExpressions(t *testing.T) {
	tpl := writeTemplate(t, t.TempDir(), "report.txt", `version {{ version }}
{% for tag in tags %}
{{ loop.index }}. {{ tag }}
{% endfor %}
{% for k, v in labels.items() %}
{{ k }}={{ v }}
{% endfor %}
owner: {{ owner | default('nobody') }}
{{ 'debug' if debug is defined and debug else 'release' }}
tags: {{ tags }}
`)
	r := run(t, tpl, `{"version": 3.11, "tags": ["a", "b"], "labels": {"tier": "web", "app": "api"}, "my-key": 1}`)
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Equal(t, `version 3.11
1. a
2. b
app=api
tier=web
owner: nobody
release
tags: ['a', 'b']
`, r.stdout)
}

func TestAutoescapeByExtension(t *testing.T) {
	dir := t.TempDir()
	html := writeTemplate(t, dir, "page.html", "<p>{{ body }}</p>")
	md := writeTemplate(t, dir, "page.md", "<p>{{ body }}</p>")
	vars := `{"body": "<script>"}`

	r := run(t, html, vars)
	assert.Equal(t, "<p>&lt;script&gt;</p>\n", r.stdout)

	r = run(t, md, vars)
	assert.Equal(t, "<p><script></p>\n", r.stdout)
}

func TestIdempotent(t *testing.T) {
	tpl := writeTemplate(t, t.TempDir(), "a.txt", "{{ a }} and {{ b }}")

	first := run(t, tpl, `{"a": 1, "b": "two"}`)
	second := run(t, tpl, `{"a": 1, "b": "two"}`)
	require.Equal(t, ExitSuccess, first.code)
	assert.Equal(t, first.stdout, second.stdout)
	assert.Equal(t, "1 and two\n", first.stdout)
}

func TestUsageErrors(t *testing.T) {
	tpl := writeTemplate(t, t.TempDir(), "a.txt", "a")

	cases := map[string][]string{
		"no arguments":   {},
		"one argument":   {tpl},
		"unknown flag":   {"--nope", tpl, "{}"},
		"invalid engine": {"--engine", "mustache", tpl, "{}"},
		"invalid level":  {"--log-level", "loud", tpl, "{}"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			r := run(t, args...)
			assert.Equal(t, ExitError, r.code)
			assert.Contains(t, r.stderr, "Usage: render-template <template_file> <variables_json>")
			assert.Empty(t, r.stdout)
		})
	}
}

func TestInvalidJSON(t *testing.T) {
	tpl := writeTemplate(t, t.TempDir(), "a.txt", "a")

	for _, vars := range []string{"not-json", "", `{"a": }`, `{} trailing`} {
		t.Run(vars, func(t *testing.T) {
			r := run(t, tpl, vars)
			assert.Equal(t, ExitError, r.code)
			assert.Contains(t, r.stderr, "Error parsing variables JSON: ")
			assert.Empty(t, r.stdout)
		})
	}
}

func TestRenderErrors(t *testing.T) {
	dir := t.TempDir()
	syntax := writeTemplate(t, dir, "syntax.txt", "{% if %}oops{% endif %}")
	ok := writeTemplate(t, dir, "ok.txt", "{{ a }}")
	include := writeTemplate(t, dir, "include.txt", `{% include "missing.txt" %}`)

	cases := []struct {
		name string
		args []string
		msg  string
	}{
		{"missing template", []string{filepath.Join(dir, "missing.txt"), "{}"}, "template not found"},
		{"missing directory", []string{filepath.Join(dir, "nope", "a.txt"), "{}"}, "template not found"},
		{"syntax error", []string{syntax, "{}"}, "Error rendering template: "},
		{"missing include", []string{include, "{}"}, "missing.txt"},
		{"array context", []string{ok, "[1, 2]"}, "variables must be a JSON object, not array"},
		{"null context", []string{ok, "null"}, "variables must be a JSON object, not null"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := run(t, c.args...)
			assert.Equal(t, ExitError, r.code)
			assert.Contains(t, r.stderr, "Error rendering template: ")
			assert.Contains(t, r.stderr, c.msg)
			assert.Empty(t, r.stdout)
		})
	}
}

func TestVarsFileAndSchema(t *testing.T) {
	dir := t.TempDir()
	tpl := writeTemplate(t, dir, "deploy.txt", "{{ app }}@{{ env }} x{{ replicas }}")
	varsFile := writeTemplate(t, dir, "vars.yml", "app: api\nenv: staging\nreplicas: 2\n")
	schema := writeTemplate(t, dir, "schema.json", `{
		"type": "object",
		"required": ["app", "env"],
		"properties": {"replicas": {"type": "integer", "minimum": 1}}
	}`)

	r := run(t, "--vars-file", varsFile, "--schema", schema, tpl, `{"env": "prod"}`)
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Equal(t, "api@prod x2\n", r.stdout)

	r = run(t, "--vars-file", varsFile, "--schema", schema, tpl, `{"replicas": 0}`)
	assert.Equal(t, ExitError, r.code)
	assert.Contains(t, r.stderr, "Error validating variables: ")
	assert.Empty(t, r.stdout)

	r = run(t, "--vars-file", filepath.Join(dir, "missing.yml"), tpl, `{}`)
	assert.Equal(t, ExitError, r.code)
	assert.Contains(t, r.stderr, "Error loading variables file: ")
	assert.Empty(t, r.stdout)
}

func TestEngines(t *testing.T) {
	dir := t.TempDir()
	gotpl := writeTemplate(t, dir, "hello.tpl", "Hello {{ .name }}")
	rawTpl := writeTemplate(t, dir, "raw.txt", "Hello {{ name }}")
	j2 := writeTemplate(t, dir, "hello.j2", "Hello {{ name }}")

	r := run(t, "--engine", "go", gotpl, `{"name": "gopher"}`)
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Equal(t, "Hello gopher\n", r.stdout)

	r = run(t, "--engine", "go", "--missing-key", "error", gotpl, `{}`)
	assert.Equal(t, ExitError, r.code)
	assert.Contains(t, r.stderr, "Error rendering template: ")

	r = run(t, "--engine", "raw", rawTpl, `{"name": "x"}`)
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Equal(t, "Hello {{ name }}\n", r.stdout)

	r = run(t, "--engine", "raw", j2, `{"name": "jinja"}`)
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Equal(t, "Hello jinja\n", r.stdout)
}

func TestGoTemplateByExtension(t *testing.T) {
	tpl := writeTemplate(t, t.TempDir(), "hello.tpl", "Hello {{ .name }}")

	r := run(t, tpl, `{"name": "gopher"}`)
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Equal(t, "Hello gopher\n", r.stdout)
}

func TestEnvironmentConfig(t *testing.T) {
	tpl := writeTemplate(t, t.TempDir(), "nl.txt", "line\n")

	t.Setenv("RENDER_TEMPLATE_KEEP_TRAILING_NEWLINE", "true")
	r := run(t, tpl, "{}")
	require.Equal(t, ExitSuccess, r.code, r.stderr)
	assert.Equal(t, "line\n\n", r.stdout)

	r = run(t, "--keep-trailing-newline=false", tpl, "{}")
	assert.Equal(t, "line\n", r.stdout)

	t.Setenv("RENDER_TEMPLATE_KEEP_TRAILING_NEWLINE", "sometimes")
	r = run(t, tpl, "{}")
	assert.Equal(t, ExitError, r.code)
	assert.Contains(t, r.stderr, `invalid RENDER_TEMPLATE_KEEP_TRAILING_NEWLINE "sometimes"`)
	assert.Contains(t, r.stderr, "Usage: render-template <template_file> <variables_json>")
	assert.Empty(t, r.stdout)
}

func TestDebugLogsGoToStderr(t *testing.T) {
	tpl := writeTemplate(t, t.TempDir(), "a.txt", "a")

	r := run(t, "--log-level", "debug", tpl, "{}")
	require.Equal(t, ExitSuccess, r.code)
	assert.Equal(t, "a\n", r.stdout)
	assert.Contains(t, r.stderr, "render-template: rendered")
}

func TestHelp(t *testing.T) {
	r := run(t, "--help")
	assert.Equal(t, ExitSuccess, r.code)
	assert.Contains(t, r.stdout, "render-template [flags] <template_file> <variables_json>")
}

func TestRunErrorTypes(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.DefaultConfig()

	err := Run(context.Background(), cfg, "a.txt", "nope", io.Discard, logger)
	var inErr *InputError
	require.True(t, errors.As(err, &inErr))
	assert.Equal(t, "parsing variables JSON", inErr.Op)

	err = Run(context.Background(), cfg, filepath.Join(t.TempDir(), "a.txt"), "{}", io.Discard, logger)
	var rErr *RenderError
	require.True(t, errors.As(err, &rErr))
	assert.NotNil(t, errors.Unwrap(err))

	assert.Equal(t, usage, (&UsageError{}).Error())
}
