package model

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Variant holds exactly one alternative of a closed node interface T. In
// YAML it is a mapping with a single key naming the alternative:
//
//	material:
//	  metal:
//	    albedo: { color: "0.8, 0.8, 0.8" }
//	    fuzz: 0.1
//
// An empty mapping selects the node's default alternative when it has one.
type Variant[T any] struct {
	Value T
}

// Of wraps an alternative
func Of[T any](v T) Variant[T] { return Variant[T]{Value: v} }

// UnmarshalYAML selects and decodes the alternative
func (v *Variant[T]) UnmarshalYAML(node *yaml.Node) error {
	value, err := variantsOf[T]().decode(node)
	if err != nil {
		return err
	}
	v.Value = value.(T)
	return nil
}

// MarshalYAML writes the single-key mapping form
func (v Variant[T]) MarshalYAML() (any, error) {
	set := variantsOf[T]()
	tag, ok := set.tagOf(v.Value)
	if !ok {
		return nil, fmt.Errorf("%s: cannot marshal %T", set.kind, v.Value)
	}
	return map[string]any{tag: v.Value}, nil
}

// IsZero reports whether no alternative is selected
func (v Variant[T]) IsZero() bool { return v.empty() }

func (v Variant[T]) empty() bool { return any(v.Value) == nil }

// Tag returns the YAML key of the selected alternative
func (v Variant[T]) Tag() string {
	tag, _ := variantsOf[T]().tagOf(v.Value)
	return tag
}

func (v *Variant[T]) applyDefault(node *yaml.Node) error {
	set := variantsOf[T]()
	if set.def == nil {
		return schemaErrorAt(node, set.kind, ErrMissingVariant, "expected one of %s", set.tagList())
	}
	v.Value = set.def().(T)
	return nil
}

func (v *Variant[T]) set() *variantSet { return variantsOf[T]() }

// variantHolder lets the decoder treat every Variant instantiation alike
type variantHolder interface {
	empty() bool
	applyDefault(node *yaml.Node) error
	set() *variantSet
}

// variantSet describes the alternatives of one node interface
type variantSet struct {
	kind  string
	tags  []string
	types map[string]reflect.Type // tag to pointer type
	def   func() any
}

var variantSets = map[reflect.Type]*variantSet{}

func variantsOf[T any]() *variantSet {
	set, ok := variantSets[reflect.TypeFor[T]()]
	if !ok {
		panic(fmt.Sprintf("model: no variants registered for %v", reflect.TypeFor[T]()))
	}
	return set
}

// alternative pairs a YAML tag with a prototype of its Go type
type alternative struct {
	tag       string
	prototype any
}

func alt(tag string, prototype any) alternative {
	return alternative{tag: tag, prototype: prototype}
}

// registerVariants records the alternatives of T. def may be nil when the
// node has no default.
func registerVariants[T any](kind string, def func() T, alternatives ...alternative) *variantSet {
	set := &variantSet{kind: kind, types: map[string]reflect.Type{}}
	iface := reflect.TypeFor[T]()
	for _, a := range alternatives {
		t := reflect.TypeOf(a.prototype)
		if !t.Implements(iface) {
			panic(fmt.Sprintf("model: %v does not implement %v", t, iface))
		}
		set.tags = append(set.tags, a.tag)
		set.types[a.tag] = t
	}
	if def != nil {
		set.def = func() any { return def() }
	}
	variantSets[iface] = set
	return set
}

func (s *variantSet) tagList() string {
	tags := append([]string{}, s.tags...)
	sort.Strings(tags)
	return strings.Join(tags, ", ")
}

func (s *variantSet) tagOf(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	t := reflect.TypeOf(v)
	for tag, typ := range s.types {
		if typ == t {
			return tag, true
		}
	}
	return "", false
}

func (s *variantSet) decode(node *yaml.Node) (any, error) {
	if node.Kind != yaml.MappingNode {
		return nil, schemaErrorAt(node, s.kind, ErrInvalidValue,
			"expected a mapping with one of %s", s.tagList())
	}

	var selected []string
	for i := 0; i < len(node.Content); i += 2 {
		selected = append(selected, node.Content[i].Value)
	}

	switch len(selected) {
	case 0:
		if s.def == nil {
			return nil, schemaErrorAt(node, s.kind, ErrMissingVariant, "expected one of %s", s.tagList())
		}
		return s.def(), nil
	case 1:
	default:
		return nil, schemaErrorAt(node, s.kind, ErrAmbiguousVariant,
			"only one of %s may be set, found %s", s.tagList(), strings.Join(selected, ", "))
	}

	tag := selected[0]
	typ, ok := s.types[tag]
	if !ok {
		return nil, schemaErrorAt(node.Content[0], s.kind, ErrUnknownVariant,
			"%q is not one of %s", tag, s.tagList())
	}
	value := reflect.New(typ.Elem())
	if err := decodeStrict(node.Content[1], tag, value.Interface()); err != nil {
		return nil, err
	}
	return value.Interface(), nil
}
