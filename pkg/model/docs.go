package model

import (
	"reflect"
	"sort"
	"strings"
	"sync"
)

// FieldType says how often a field may appear
type FieldType int

const (
	Normal FieldType = iota
	Optional
	List
	OptionalList
)

func (f FieldType) String() string {
	switch f {
	case Optional:
		return "optional"
	case List:
		return "list"
	case OptionalList:
		return "optional list"
	default:
		return "required"
	}
}

// DocumentationStructure describes a node and its fields
type DocumentationStructure struct {
	Description string               `json:"description"`
	Fields      map[string]FieldInfo `json:"fields,omitempty"`
}

// FieldInfo describes one field of a node
type FieldInfo struct {
	Description string                  `json:"description"`
	FieldType   FieldType               `json:"field_type"`
	Structure   *DocumentationStructure `json:"structure,omitempty"`
}

// FieldNames returns the field names in sorted order
func (d *DocumentationStructure) FieldNames() []string {
	names := make([]string, 0, len(d.Fields))
	for name := range d.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// maxDocDepth bounds recursion through self-referencing nodes like blend
const maxDocDepth = 8

// Documentation returns the help tree for the scene format, built on first use
var Documentation = sync.OnceValue(func() *DocumentationStructure {
	return describeType(reflect.TypeFor[Scene](), 0)
})

// LookupDocumentation walks path (YAML keys from the scene root) through the
// documentation tree
func LookupDocumentation(path []string) (FieldInfo, bool) {
	root := Documentation()
	info := FieldInfo{Description: root.Description, Structure: root}
	for _, key := range path {
		if info.Structure == nil {
			return FieldInfo{}, false
		}
		next, ok := info.Structure.Fields[key]
		if !ok {
			return FieldInfo{}, false
		}
		info = next
	}
	return info, true
}

var variantHolderType = reflect.TypeFor[variantHolder]()

func describeType(t reflect.Type, depth int) *DocumentationStructure {
	for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice {
		t = t.Elem()
	}
	doc := &DocumentationStructure{Description: typeDocs[t.Name()]}
	if depth >= maxDocDepth {
		return doc
	}

	if reflect.PointerTo(t).Implements(variantHolderType) {
		set := reflect.New(t).Interface().(variantHolder).set()
		doc.Description = variantDocs[set.kind]
		doc.Fields = make(map[string]FieldInfo, len(set.tags))
		for _, tag := range set.tags {
			alt := describeType(set.types[tag], depth+1)
			doc.Fields[tag] = FieldInfo{Description: alt.Description, FieldType: Optional, Structure: alt}
		}
		return doc
	}
	if t.Kind() != reflect.Struct || selfDecoding(t) {
		return doc
	}

	fields := yamlFields(t)
	if len(fields) == 0 {
		return doc
	}
	doc.Fields = make(map[string]FieldInfo, len(fields))
	for _, f := range fields {
		ft := t.Field(f.index).Type
		info := FieldInfo{Description: fieldDocs[t.Name()+"."+f.key], FieldType: fieldTypeOf(ft, f.required)}
		if sub := describeType(ft, depth+1); sub.Fields != nil {
			info.Structure = sub
		}
		doc.Fields[f.key] = info
	}
	return doc
}

func fieldTypeOf(t reflect.Type, required bool) FieldType {
	list := t.Kind() == reflect.Slice
	switch {
	case list && required:
		return List
	case list:
		return OptionalList
	case required:
		return Normal
	default:
		return Optional
	}
}

var variantDocs = map[string]string{
	"hittable":       "An object in the world. Exactly one kind must be given.",
	"material":       "How a surface scatters or emits light. Defaults to white lambertian when empty.",
	"texture":        "The surface color source: a single color or an image file.",
	"shader":         "How camera rays become colors. Defaults to path tracing.",
	"post processor": "An effect applied to the finished image.",
	"width_height":   "The output image size. Defaults to the size of the preview.",
	"transformation": "One transformation step. Steps apply in list order.",
}

var typeDocs = map[string]string{
	"Scene":                    "A scene: render settings, a camera and the objects in the world.",
	"RenderConfig":             "Sampling, shading and output settings.",
	"CameraConfig":             "Where the camera is and where it looks.",
	"Sphere":                   "A sphere.",
	"Model":                    "A triangle mesh loaded from an OBJ or PLY file.",
	"Quad":                     "A flat parallelogram.",
	"Box":                      "An axis aligned box, before transformations.",
	"ConstantMedium":           "A box filled with fog.",
	"Lambertian":               "A perfectly diffuse material.",
	"Glass":                    "A transparent material that refracts light.",
	"Metal":                    "A reflective material.",
	"Light":                    "A material that emits light.",
	"Blend":                    "A mix of two materials.",
	"Plastic":                  "A diffuse base with a glossy coat.",
	"ColorTexture":             "A single color, \"r, g, b\".",
	"ImageTexture":             "Colors read from an image file.",
	"NormalTexture":            "A normal map or height map image.",
	"PathTracingShader":        "Physically based path tracing.",
	"SimpleShader":             "Albedo shaded by the surface normal, without scattering.",
	"AlbedoShader":             "Surface albedo only.",
	"NormalShader":             "Surface normals shown as colors.",
	"BloomPostProcessor":       "Makes bright areas bleed into their surroundings.",
	"DenoisePostProcessor":     "Smooths sampling noise.",
	"ScreenWidthHeight":        "The preview size.",
	"HalfScreenWidthHeight":    "Half the preview size.",
	"QuarterScreenWidthHeight": "A quarter of the preview size.",
	"CustomWidthHeight":        "A fixed size.",
	"Translation":              "Moves by \"x, y, z\".",
	"Scale":                    "Scales uniformly by a factor.",
	"RotationX":                "Rotates around the X axis, in degrees.",
	"RotationY":                "Rotates around the Y axis, in degrees.",
	"RotationZ":                "Rotates around the Z axis, in degrees.",
}

var fieldDocs = map[string]string{
	"Scene.render_configuration": "Sampling, shading and output settings.",
	"Scene.background_color":     "Color of rays that hit nothing. Black when unset.",
	"Scene.camera":               "The camera.",
	"Scene.world":                "The objects in the scene.",

	"RenderConfig.samples_per_pixel":   "Samples taken per pixel, at least 1.",
	"RenderConfig.shader":              "The shader.",
	"RenderConfig.post_processors":     "Effects applied to the finished image, in order.",
	"RenderConfig.preview_interval_ms": "Milliseconds between preview updates. 0 updates after every sample.",
	"RenderConfig.width_height":        "The output image size.",

	"CameraConfig.vertical_fov_degrees": "Vertical field of view in degrees, between 0 and 180.",
	"CameraConfig.aperture_size":        "Lens aperture. 0 keeps everything in focus.",
	"CameraConfig.look_from":            "Camera position.",
	"CameraConfig.look_at":              "Point the camera looks at. It is also the focus point.",
	"CameraConfig.up":                   "Up direction. Defaults to \"0, 1, 0\".",

	"Sphere.center":   "Center of the sphere.",
	"Sphere.radius":   "Radius, greater than 0.",
	"Sphere.material": "The surface material.",

	"Model.path":            "Folder holding the mesh file. A leading ~ is the home directory.",
	"Model.name":            "File name of the mesh, .obj or .ply.",
	"Model.material":        "Material for faces without one of their own.",
	"Model.transformations": "Transformations applied in list order.",

	"Quad.q":               "A corner.",
	"Quad.u":               "First edge from q.",
	"Quad.v":               "Second edge from q.",
	"Quad.material":        "The surface material.",
	"Quad.transformations": "Transformations applied in list order.",

	"Box.a":               "A corner.",
	"Box.b":               "The opposite corner.",
	"Box.material":        "The surface material.",
	"Box.transformations": "Transformations applied in list order.",

	"ConstantMedium.a":       "A corner of the fog volume.",
	"ConstantMedium.b":       "The opposite corner.",
	"ConstantMedium.density": "Fog density, greater than 0. Defaults to 0.01.",
	"ConstantMedium.color":   "Fog color. Defaults to \"0.9, 0.9, 0.9\".",

	"Lambertian.albedo": "Surface color.",
	"Lambertian.normal": "Normal map.",

	"Glass.albedo":              "Tint.",
	"Glass.normal":              "Normal map.",
	"Glass.index_of_refraction": "Index of refraction, greater than 0. Glass is about 1.5.",

	"Metal.albedo": "Surface color.",
	"Metal.normal": "Normal map.",
	"Metal.fuzz":   "Reflection blur, between 0 and 1.",

	"Light.color":                   "Emitted color. Values above 1 are brighter. Defaults to \"15, 15, 15\".",
	"Light.attenuation_half_length": "Distance at which the emitted light has halved.",

	"Blend.first":        "The first material.",
	"Blend.second":       "The second material.",
	"Blend.blend_factor": "Share of the second material, between 0 and 1.",

	"Plastic.albedo":     "Base color. White when unset.",
	"Plastic.normal":     "Normal map.",
	"Plastic.glossiness": "Share of glossy reflection, between 0 and 1. Defaults to 0.1.",

	"ImageTexture.file":  "Image file: PNG, JPEG, GIF, BMP, TIFF or WebP.",
	"NormalTexture.file": "Image file holding the normal map.",

	"PathTracingShader.max_depth": "Maximum number of bounces, at least 1.",

	"BloomPostProcessor.kernel_size_fraction": "Blur radius as a fraction of the image width, in (0, 1].",
	"BloomPostProcessor.threshold":            "Color length above which pixels bloom. Defaults to 1.",
	"BloomPostProcessor.max_intensity":        "Brightness cap of the bloom. Defaults to 10.",

	"CustomWidthHeight.width":  "Width in pixels, from 1 to 7999.",
	"CustomWidthHeight.height": "Height in pixels, from 1 to 7999.",
}

// Describe renders the help text for a documentation entry
func Describe(name string, info FieldInfo) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteString(" (")
	b.WriteString(info.FieldType.String())
	b.WriteString(")")
	if info.Description != "" {
		b.WriteString(": ")
		b.WriteString(info.Description)
	}
	if info.Structure != nil && len(info.Structure.Fields) > 0 {
		b.WriteString("\nfields: ")
		b.WriteString(strings.Join(info.Structure.FieldNames(), ", "))
	}
	return b.String()
}
