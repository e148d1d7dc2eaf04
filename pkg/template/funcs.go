package template

import (
	"fmt"
	"math"
	"sort"

	"github.com/nikolalohinski/gonja/exec"
)

// maxRangeItems caps range() so a tiny step cannot exhaust memory
const maxRangeItems = 1_000_000

type builtin struct {
	params []string // declared order, used to bind positional arguments
	call   func(args callArgs) (any, error)
}

func (b builtin) accepts(name string) bool {
	for _, p := range b.params {
		if p == name {
			return true
		}
	}
	return false
}

// callArgs holds bound arguments of one call and reports misuse against
// the function name.
type callArgs struct {
	function string
	values   map[string]*exec.Value
}

func (a callArgs) number(name string) (float64, error) {
	v, ok := a.values[name]
	if !ok {
		return 0, &Error{Function: a.function, Argument: name, Msg: "missing required argument"}
	}
	return a.asNumber(name, v)
}

func (a callArgs) numberOr(name string, def float64) (float64, error) {
	v, ok := a.values[name]
	if !ok {
		return def, nil
	}
	return a.asNumber(name, v)
}

func (a callArgs) asNumber(name string, v *exec.Value) (float64, error) {
	if !v.IsNumber() {
		return 0, &Error{Function: a.function, Argument: name,
			Msg: fmt.Sprintf("received %s but `%s` can only be a number", describe(v), name)}
	}
	return v.Float(), nil
}

// integers reports whether every given argument that was passed is an integer
func (a callArgs) integers(names ...string) bool {
	for _, name := range names {
		if v, ok := a.values[name]; ok && !v.IsInteger() {
			return false
		}
	}
	return true
}

func (a callArgs) fail(argument, format string, args ...any) error {
	return &Error{Function: a.function, Argument: argument, Msg: fmt.Sprintf(format, args...)}
}

func unary(f func(float64) float64) builtin {
	return builtin{params: []string{"v"}, call: func(a callArgs) (any, error) {
		v, err := a.number("v")
		if err != nil {
			return nil, err
		}
		return f(v), nil
	}}
}

var builtins = map[string]builtin{
	"sin": unary(math.Sin),
	"cos": unary(math.Cos),
	"abs": {params: []string{"v"}, call: func(a callArgs) (any, error) {
		v, err := a.number("v")
		if err != nil {
			return nil, err
		}
		if a.integers("v") {
			return int(math.Abs(v)), nil
		}
		return math.Abs(v), nil
	}},
	"sqrt": {params: []string{"v"}, call: func(a callArgs) (any, error) {
		v, err := a.number("v")
		if err != nil {
			return nil, err
		}
		if v < 0 {
			return nil, a.fail("v", "cannot take the square root of negative number %g", v)
		}
		return math.Sqrt(v), nil
	}},
	"len": {params: []string{"x", "y", "z"}, call: func(a callArgs) (any, error) {
		var c [3]float64
		for i, name := range []string{"x", "y", "z"} {
			v, err := a.numberOr(name, 0)
			if err != nil {
				return nil, err
			}
			c[i] = v
		}
		return math.Sqrt(c[0]*c[0] + c[1]*c[1] + c[2]*c[2]), nil
	}},
	"range": {params: []string{"start", "end", "step_by"}, call: rangeFunc},
}

func rangeFunc(a callArgs) (any, error) {
	start, err := a.numberOr("start", 0)
	if err != nil {
		return nil, err
	}
	end, err := a.number("end")
	if err != nil {
		return nil, err
	}
	step, err := a.numberOr("step_by", 1)
	if err != nil {
		return nil, err
	}
	if start > end {
		return nil, a.fail("start", "start %g is greater than end %g", start, end)
	}
	if step <= 0 {
		return nil, a.fail("step_by", "must be positive, got %g", step)
	}
	if (end-start)/step > maxRangeItems {
		return nil, a.fail("step_by", "range would produce more than %d items", maxRangeItems)
	}

	if a.integers("start", "end", "step_by") {
		out := []int{}
		for v := int(start); v < int(end); v += int(step) {
			out = append(out, v)
		}
		return out, nil
	}
	out := []float64{}
	for i := 0; ; i++ {
		v := start + float64(i)*step
		if v >= end {
			break
		}
		out = append(out, v)
	}
	return out, nil
}

// bind matches the positional and keyword arguments of one call to the
// parameters of b
func bind(name string, b builtin, va *exec.VarArgs) (callArgs, error) {
	a := callArgs{function: name, values: map[string]*exec.Value{}}
	if len(va.Args) > len(b.params) {
		return a, &Error{Function: name,
			Msg: fmt.Sprintf("takes at most %d arguments, got %d", len(b.params), len(va.Args))}
	}
	for i, v := range va.Args {
		a.values[b.params[i]] = v
	}

	keys := make([]string, 0, len(va.KwArgs))
	for k := range va.KwArgs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !b.accepts(k) {
			return a, &Error{Function: name, Argument: k, Msg: "unknown argument"}
		}
		if _, dup := a.values[k]; dup {
			return a, &Error{Function: name, Argument: k, Msg: "given more than once"}
		}
		a.values[k] = va.KwArgs[k]
	}
	return a, nil
}

// describe names the kind of a template value for error messages
func describe(v *exec.Value) string {
	switch {
	case v.IsNil():
		return "nothing"
	case v.IsBool():
		return "a boolean"
	case v.IsNumber():
		return "a number"
	case v.IsString():
		return "a string"
	case v.IsList():
		return "a list"
	case v.IsDict():
		return "an object"
	}
	return "an unknown value"
}

// functions returns the built-in functions as template globals. The first
// misuse is stored in *failed, since gonja flattens errors returned by
// functions into its own.
func functions(failed **Error) map[string]any {
	record := func(err error) error {
		if e, ok := err.(*Error); ok && *failed == nil {
			*failed = e
		}
		return err
	}

	globals := make(map[string]any, len(builtins)+1)
	for name, b := range builtins {
		globals[name] = func(va *exec.VarArgs) (*exec.Value, error) {
			args, err := bind(name, b, va)
			if err != nil {
				return nil, record(err)
			}
			out, err := b.call(args)
			if err != nil {
				return nil, record(err)
			}
			return exec.AsValue(out), nil
		}
	}
	return globals
}

// roundingFilter is a number filter without arguments, such as floor
func roundingFilter(name string, op func(float64) float64) exec.FilterFunction {
	return func(e *exec.Evaluator, in *exec.Value, params *exec.VarArgs) *exec.Value {
		if in.IsError() {
			return in
		}
		if len(params.Args) > 0 || len(params.KwArgs) > 0 {
			return exec.AsValue(fmt.Errorf("filter `%s` takes no arguments", name))
		}
		if !in.IsNumber() {
			return exec.AsValue(fmt.Errorf("filter `%s`: expected a number, got %s", name, describe(in)))
		}
		return exec.AsValue(op(in.Float()))
	}
}
