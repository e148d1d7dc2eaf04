// Package template expands the directive layer of scene files: {{ }}
// expressions, {% for %} loops, {% if %} branches and {% set %} assignments,
// with math helpers and the frameIndex variable in scope. Directives are
// evaluated by gonja, a Jinja engine.
package template

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/nikolalohinski/gonja"
	"github.com/nikolalohinski/gonja/config"
	"github.com/nikolalohinski/gonja/exec"
	"github.com/nikolalohinski/gonja/parser"
	"github.com/nikolalohinski/gonja/tokens"
)

// FrameIndexVar is the name of the variable holding the current frame
const FrameIndexVar = "frameIndex"

const templateName = "scene"

// Error is returned for malformed directives and for misuse of built-in functions
type Error struct {
	Line     int    // 0 when the position is unknown
	Function string // empty unless a function call failed
	Argument string // empty unless a specific argument was at fault
	Msg      string
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Line > 0 {
		fmt.Fprintf(&b, "template line %d: ", e.Line)
	} else {
		b.WriteString("template: ")
	}
	if e.Function != "" {
		fmt.Fprintf(&b, "function `%s`", e.Function)
		if e.Argument != "" {
			fmt.Fprintf(&b, " argument `%s`", e.Argument)
		}
		b.WriteString(": ")
	}
	b.WriteString(e.Msg)
	return b.String()
}

// env only knows the for, if and set statements, so scene templates never
// read other files. Undefined names are errors.
var env = newEnvironment()

func newEnvironment() *gonja.Environment {
	cfg := config.NewConfig()
	cfg.StrictUndefined = true
	e := gonja.NewEnvironment(cfg, gonja.DefaultLoader)

	statements := exec.StatementSet{}
	for _, name := range []string{"for", "if", "set"} {
		statements[name] = (*e.Statements)[name]
	}
	e.Statements = &statements

	(*e.Filters)["floor"] = roundingFilter("floor", math.Floor)
	(*e.Filters)["ceil"] = roundingFilter("ceil", math.Ceil)
	return e
}

// Template is a parsed scene template that can be executed for any frame
type Template struct {
	tpl *exec.Template
}

// Parse compiles the directive structure of text
func Parse(text string) (*Template, error) {
	prepared, err := prepare(text)
	if err != nil {
		return nil, err
	}
	toks := lex(text, prepared)
	for _, tok := range toks {
		if tok.Type == tokens.Error {
			line, _ := tokens.ReadablePosition(tok.Pos, text)
			return nil, &Error{Line: line, Msg: tok.Val}
		}
	}
	if err := checkCalls(toks); err != nil {
		return nil, err
	}

	p := parser.NewParser(templateName, env.Config, tokens.NewStream(toks))
	p.Statements = *env.Statements
	p.TemplateParser = env.EvalConfig.GetTemplate
	root, err := p.Parse()
	if err != nil {
		line := lineOf(err)
		if line == 0 {
			if tok := p.Current(); tok != nil {
				line = tok.Line
			}
		}
		return nil, &Error{Line: line, Msg: err.Error()}
	}

	return &Template{tpl: &exec.Template{
		Name:   templateName,
		Source: text,
		Env:    env.EvalConfig,
		Loader: env,
		Parser: p,
		Root:   root,
	}}, nil
}

// Execute expands the template for one frame
func (t *Template) Execute(frameIndex uint) (out string, err error) {
	var failed *Error
	data := functions(&failed)
	data[FrameIndexVar] = int(frameIndex)

	defer func() {
		if r := recover(); r != nil {
			out, err = "", &Error{Msg: fmt.Sprintf("evaluation failed: %v", r)}
		}
	}()

	out, err = t.tpl.Execute(data)
	if err != nil {
		if failed != nil {
			e := *failed
			e.Line = lineOf(err)
			return "", &e
		}
		return "", &Error{Line: lineOf(err), Msg: err.Error()}
	}
	return out, nil
}

// Expand parses and executes text in one step
func Expand(text string, frameIndex uint) (string, error) {
	t, err := Parse(text)
	if err != nil {
		return "", err
	}
	return t.Execute(frameIndex)
}

// linePattern matches the positions gonja writes into parse and render errors
var linePattern = regexp.MustCompile(`(?:at line|Line:) (\d+)`)

// lineOf returns the innermost line reported in a gonja error, or 0
func lineOf(err error) int {
	matches := linePattern.FindAllStringSubmatch(err.Error(), -1)
	if len(matches) == 0 {
		return 0
	}
	line, _ := strconv.Atoi(matches[len(matches)-1][1])
	return line
}
