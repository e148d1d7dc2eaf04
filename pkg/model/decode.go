package model

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parse decodes and validates an expanded scene description. It returns the
// first *SchemaError found, depth first, and never a partial scene.
func Parse(text string) (*Scene, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, syntaxError(err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, &SchemaError{Node: "scene", Err: ErrMissingField, Msg: "the scene is empty"}
	}

	scene := &Scene{}
	if err := decodeStrict(doc.Content[0], "scene", scene); err != nil {
		return nil, err
	}
	return scene, nil
}

// Marshal writes a scene back to YAML
func Marshal(scene *Scene) ([]byte, error) {
	return yaml.Marshal(scene)
}

func syntaxError(err error) error {
	msg := strings.TrimPrefix(err.Error(), "yaml: ")
	e := &SchemaError{Err: ErrSyntax, Msg: msg}
	if m := typeErrorLine.FindStringSubmatch(msg); m != nil {
		e.Line, _ = strconv.Atoi(m[1])
		e.Msg = m[2]
	}
	return e
}

// validator is implemented by nodes with value constraints
type validator interface {
	validate() error
}

var unmarshalerType = reflect.TypeFor[yaml.Unmarshaler]()

// decodeStrict decodes node into out (a pointer), rejecting unknown and
// missing fields and then checking value constraints.
func decodeStrict(node *yaml.Node, kind string, out any) error {
	v := reflect.ValueOf(out)
	if err := checkFields(node, kind, v.Type().Elem()); err != nil {
		return err
	}
	if err := node.Decode(out); err != nil {
		return fromDecodeError(err, node)
	}
	return validateValue(node, kind, v.Elem())
}

// yamlFields maps YAML keys to struct fields
type yamlField struct {
	index    int
	key      string
	required bool
}

func yamlFields(t reflect.Type) []yamlField {
	var fields []yamlField
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("yaml")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		optional := strings.Contains(opts, "omitempty") ||
			f.Type.Kind() == reflect.Pointer
		fields = append(fields, yamlField{index: i, key: name, required: !optional})
	}
	return fields
}

func selfDecoding(t reflect.Type) bool {
	return t.Implements(unmarshalerType) || reflect.PointerTo(t).Implements(unmarshalerType)
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func checkFields(node *yaml.Node, kind string, t reflect.Type) error {
	if node == nil || node.Kind == yaml.AliasNode {
		return nil
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if selfDecoding(t) {
		return nil
	}

	switch t.Kind() {
	case reflect.Struct:
		if node.Kind != yaml.MappingNode {
			if node.ShortTag() == "!!null" {
				return checkRequired(node, kind, t)
			}
			return schemaErrorAt(node, kind, ErrInvalidValue, "expected a mapping")
		}
		fields := yamlFields(t)
		known := make(map[string]yamlField, len(fields))
		for _, f := range fields {
			known[f.key] = f
		}
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i]
			f, ok := known[key.Value]
			if !ok {
				return schemaErrorAt(key, kind, ErrUnknownField, "%q is not a field of %s", key.Value, kind)
			}
			if err := checkFields(node.Content[i+1], key.Value, t.Field(f.index).Type); err != nil {
				return err
			}
		}
		return checkRequired(node, kind, t)
	case reflect.Slice:
		if node.Kind != yaml.SequenceNode {
			return nil
		}
		for _, item := range node.Content {
			if item.ShortTag() == "!!null" {
				if err := emptyListItem(item, kind, t.Elem()); err != nil {
					return err
				}
				continue
			}
			if err := checkFields(item, kind, t.Elem()); err != nil {
				return err
			}
		}
	case reflect.Float32, reflect.Float64:
		if node.Kind != yaml.ScalarNode {
			return nil
		}
		var v float64
		if err := node.Decode(&v); err != nil {
			return nil
		}
		if err := finite(kind, v); err != nil {
			return schemaErrorAt(node, kind, ErrOutOfRange, "%v", err)
		}
	}
	return nil
}

// emptyListItem handles a null list entry, which the YAML decoder would
// otherwise drop. A variant with a default is given an empty mapping so it
// decodes to the default; anything else is an error.
func emptyListItem(item *yaml.Node, kind string, elem reflect.Type) error {
	if !reflect.PointerTo(elem).Implements(variantHolderType) {
		return schemaErrorAt(item, kind, ErrInvalidValue, "list entries must not be empty")
	}
	set := reflect.New(elem).Interface().(variantHolder).set()
	if set.def == nil {
		return schemaErrorAt(item, set.kind, ErrMissingVariant, "expected one of %s", set.tagList())
	}
	item.Kind = yaml.MappingNode
	item.Tag = "!!map"
	item.Value = ""
	return nil
}

func checkRequired(node *yaml.Node, kind string, t reflect.Type) error {
	for _, f := range yamlFields(t) {
		if f.required && mappingValue(node, f.key) == nil {
			return schemaErrorAt(node, kind, ErrMissingField, "%q is required", f.key)
		}
	}
	return nil
}

// validateValue fills empty variants with their defaults and runs node
// validators, depth first. Variants decoded through UnmarshalYAML have
// already validated their own contents.
func validateValue(node *yaml.Node, kind string, v reflect.Value) error {
	if v.CanAddr() {
		if h, ok := v.Addr().Interface().(variantHolder); ok {
			if h.empty() {
				return h.applyDefault(node)
			}
			return nil
		}
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		return validateValue(node, kind, v.Elem())
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			itemNode := node
			if node != nil && node.Kind == yaml.SequenceNode && i < len(node.Content) {
				itemNode = node.Content[i]
			}
			if err := validateValue(itemNode, kind, v.Index(i)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Struct:
		if !selfDecoding(v.Type()) {
			for _, f := range yamlFields(v.Type()) {
				fieldNode := node
				if node != nil && node.Kind == yaml.MappingNode {
					if n := mappingValue(node, f.key); n != nil {
						fieldNode = n
					}
				}
				if err := validateValue(fieldNode, f.key, v.Field(f.index)); err != nil {
					return err
				}
			}
		}
		if v.CanAddr() {
			if val, ok := v.Addr().Interface().(validator); ok {
				if err := val.validate(); err != nil {
					var re *rangeError
					if errors.As(err, &re) {
						target := node
						if node != nil && node.Kind == yaml.MappingNode {
							if n := mappingValue(node, re.field); n != nil {
								target = n
							}
						}
						return schemaErrorAt(target, kind, ErrOutOfRange, "%s", re.Error())
					}
					return schemaErrorAt(node, kind, ErrInvalidValue, "%v", err)
				}
			}
		}
	}
	return nil
}
