// Package cli implements the render-template command.
package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/cobra"

	"golazy.dev/lazyrender"
	"golazy.dev/lazyrender/engines/jinja"
	"golazy.dev/lazyrender/engines/raw"
	"golazy.dev/lazyrender/engines/tpl"
	"golazy.dev/lazyrender/internal/config"
	"golazy.dev/lazyrender/internal/vars"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

// Main runs render-template with args (excluding argv[0]) and returns the
// process exit code.
func Main(args []string, stdout, stderr io.Writer) int {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	cmd := NewCommand(stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(stderr, err)
		return ExitError
	}
	return ExitSuccess
}

// NewCommand builds the cobra command. Flag defaults come from the
// RENDER_TEMPLATE_* environment.
func NewCommand(stdout, stderr io.Writer) *cobra.Command {
	cfg := config.FromEnvironment()

	cmd := &cobra.Command{
		Use:   "render-template [flags] <template_file> <variables_json>",
		Short: "Render a Jinja-style template with JSON variables",
		Long: "Render a template file with the variables given as a JSON object and\n" +
			"print the result. Templates are looked up relative to the directory of\n" +
			"template_file; html, htm and xml templates are autoescaped. Files\n" +
			"ending in .tpl, .tmpl or .gotmpl are Go templates.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 {
				return &UsageError{}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return &UsageError{Err: err}
			}
			level, _ := cfg.Level()
			logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
			return Run(cmd.Context(), cfg, args[0], args[1], cmd.OutOrStdout(), logger)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Err: err}
	})

	flags := cmd.Flags()
	flags.StringVar(&cfg.Engine, "engine", cfg.Engine, "Engine for templates without a dedicated extension: jinja|go|raw")
	flags.StringArrayVar(&cfg.SearchPaths, "search-path", cfg.SearchPaths, "Directory under the template directory searched for templates (repeatable)")
	flags.StringVar(&cfg.VarsFile, "vars-file", cfg.VarsFile, "YAML or JSON file with base variables")
	flags.StringVar(&cfg.Schema, "schema", cfg.Schema, "JSON Schema the variables must satisfy")
	flags.BoolVar(&cfg.KeepTrailingNewline, "keep-trailing-newline", cfg.KeepTrailingNewline, "Keep the final newline of template sources")
	flags.StringVar(&cfg.MissingKey, "missing-key", cfg.MissingKey, "Go engine behavior on missing keys: zero|error|invalid")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level of diagnostics on stderr")

	return cmd
}

// Run renders templateFile with the variables in variablesJSON and writes
// the result followed by a newline to stdout. Nothing is written when any
// step fails.
func Run(ctx context.Context, cfg *config.Config, templateFile, variablesJSON string, stdout io.Writer, logger *slog.Logger) error {
	decoded, err := vars.Decode(variablesJSON)
	if err != nil {
		return &InputError{Op: "parsing variables JSON", Err: err}
	}

	var base map[string]any
	if cfg.VarsFile != "" {
		base, err = vars.LoadFile(cfg.VarsFile)
		if err != nil {
			return &InputError{Op: "loading variables file", Err: err}
		}
		logger.DebugContext(ctx, "render-template: loaded variables file", "path", cfg.VarsFile, "keys", len(base))
	}

	views := newViews(cfg, filepath.Dir(templateFile), logger)
	name := filepath.ToSlash(filepath.Base(templateFile))

	data, err := vars.AsContext(decoded)
	if err != nil {
		return &RenderError{Template: templateFile, Err: err}
	}
	if base != nil {
		data = vars.Merge(base, data)
	}
	if cfg.Schema != "" {
		if err := vars.Validate(cfg.Schema, data); err != nil {
			return &InputError{Op: "validating variables", Err: err}
		}
	}

	buf := &bytes.Buffer{}
	if err := views.Render(ctx, buf, data, name); err != nil {
		return &RenderError{Template: templateFile, Err: err}
	}
	logger.DebugContext(ctx, "render-template: rendered", "template", templateFile, "bytes", buf.Len())

	buf.WriteByte('\n')
	_, err = buf.WriteTo(stdout)
	return err
}

func newViews(cfg *config.Config, dir string, logger *slog.Logger) *lazyrender.Views {
	j := jinja.New()
	j.KeepTrailingNewline = cfg.KeepTrailingNewline
	gotpl := &tpl.Engine{MissingKey: missingKey(cfg.MissingKey)}

	engines := map[string]lazyrender.Engine{}
	for _, ext := range jinja.Extensions {
		engines[ext] = j
	}
	for _, ext := range tpl.Extensions {
		engines[ext] = gotpl
	}

	var def lazyrender.Engine
	switch cfg.Engine {
	case config.EngineGo:
		def = gotpl
	case config.EngineRaw:
		def = &raw.Engine{}
	default:
		def = j
	}

	searchPaths := []string{""}
	for _, sp := range cfg.SearchPaths {
		searchPaths = append(searchPaths, path.Clean(filepath.ToSlash(sp)))
	}

	return &lazyrender.Views{
		FS:          os.DirFS(dir),
		Engines:     engines,
		Default:     def,
		SearchPaths: searchPaths,
		Logger:      logger,
	}
}

func missingKey(mode string) tpl.MissingKey {
	switch mode {
	case "error":
		return tpl.MissingKeyError
	case "invalid":
		return tpl.MissingKeyInvalid
	}
	return tpl.MissingKeyZero
}
