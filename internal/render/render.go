// Package render turns named Liquid templates into HTML message bodies and
// derives plain-text alternatives from HTML.
package render

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/osteele/liquid"
)

// ErrTemplateNotFound is wrapped by Error when no template has the requested name.
var ErrTemplateNotFound = errors.New("template not found")

// Error reports a failure to load, parse or render one template.
type Error struct {
	Template string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("render template %q: %v", e.Template, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Renderer produces an HTML body from a template name and variables.
type Renderer interface {
	Render(ctx context.Context, name string, vars map[string]any) (string, error)
}

// LiquidRenderer renders Liquid templates read from a file system. Parsed
// templates are cached by name.
type LiquidRenderer struct {
	engine *liquid.Engine
	files  fs.FS
	cache  sync.Map // map[string]*liquid.Template
}

// NewLiquidRenderer creates a renderer reading templates from files.
func NewLiquidRenderer(files fs.FS) *LiquidRenderer {
	return &LiquidRenderer{
		engine: liquid.NewEngine(),
		files:  files,
	}
}

// NewDirRenderer creates a renderer reading templates from a directory.
func NewDirRenderer(dir string) *LiquidRenderer {
	return NewLiquidRenderer(os.DirFS(dir))
}

// Render looks up name, parsing it on first use, and renders it with vars.
// Every failure is returned as *Error.
func (r *LiquidRenderer) Render(ctx context.Context, name string, vars map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &Error{Template: name, Err: err}
	}

	tpl, err := r.template(name)
	if err != nil {
		return "", &Error{Template: name, Err: err}
	}

	out, srcErr := tpl.RenderString(liquid.Bindings(vars))
	if srcErr != nil {
		return "", &Error{Template: name, Err: srcErr}
	}
	return out, nil
}

func (r *LiquidRenderer) template(name string) (*liquid.Template, error) {
	if cached, ok := r.cache.Load(name); ok {
		return cached.(*liquid.Template), nil
	}

	if name == "" || !fs.ValidPath(name) {
		return nil, ErrTemplateNotFound
	}
	source, err := fs.ReadFile(r.files, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("read template: %w", err)
	}

	tpl, srcErr := r.engine.ParseTemplate(source)
	if srcErr != nil {
		return nil, fmt.Errorf("parse template: %w", srcErr)
	}
	r.cache.Store(name, tpl)
	return tpl, nil
}

// Invalidate drops a cached template so the next Render re-reads it.
func (r *LiquidRenderer) Invalidate(name string) {
	r.cache.Delete(name)
}
