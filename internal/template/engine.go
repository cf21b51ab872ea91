// Package template wraps the Liquid template language behind a narrow
// rendering interface so the engine stays swappable and independently
// testable. Block templates use {{ field }} placeholders and Liquid
// conditional sections ({% if %} ... {% endif %}).
package template

import (
	"fmt"
	"html"
	"net/url"
	"sync"

	"github.com/osteele/liquid"
)

// Error reports a template syntax or rendering failure.
type Error struct {
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("template: %v", e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Engine renders Liquid templates with parse caching. Safe for concurrent
// use; parsed templates are cached keyed by their source text.
type Engine struct {
	engine *liquid.Engine
	cache  sync.Map // string → *liquid.Template
}

// NewEngine creates an engine with the filters block templates rely on.
func NewEngine() *Engine {
	e := &Engine{engine: liquid.NewEngine()}
	e.registerFilters()
	return e
}

func (e *Engine) registerFilters() {
	// {{ first_name | default: "Friend" }}
	e.engine.RegisterFilter("default", func(value any, fallback string) any {
		if value == nil {
			return fallback
		}
		if s := fmt.Sprintf("%v", value); s == "" || s == "<nil>" {
			return fallback
		}
		return value
	})

	// {{ email | urlencode }}
	e.engine.RegisterFilter("urlencode", func(s string) string {
		return url.QueryEscape(s)
	})

	// {{ user_input | escape }}
	e.engine.RegisterFilter("escape", func(s string) string {
		return html.EscapeString(s)
	})
}

// Render resolves fields into the template. Unresolved placeholders render
// as the empty string, never a nil marker. A syntax error returns *Error.
func (e *Engine) Render(templateStr string, fields map[string]any) (string, error) {
	tpl, err := e.parse(templateStr)
	if err != nil {
		return "", &Error{Err: err}
	}

	out, err := tpl.RenderString(fields)
	if err != nil {
		return "", &Error{Err: err}
	}
	return out, nil
}

// Parse checks a template for syntax errors without rendering it.
func (e *Engine) Parse(templateStr string) error {
	if _, err := e.parse(templateStr); err != nil {
		return &Error{Err: err}
	}
	return nil
}

func (e *Engine) parse(templateStr string) (*liquid.Template, error) {
	if cached, ok := e.cache.Load(templateStr); ok {
		return cached.(*liquid.Template), nil
	}
	tpl, err := e.engine.ParseString(templateStr)
	if err != nil {
		return nil, err
	}
	e.cache.Store(templateStr, tpl)
	return tpl, nil
}
