package caps

import (
	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

// manifestSchema constrains manifests before they are trusted. Kept inline:
// it is small and versioned with the code that interprets it.
const manifestSchema = `
#Manifest: {
	types: [...#Type]
	functions: [...#OpName]
	exclude: [...#OpName]
}

#Type: {
	name:       #OpName
	operations: [...#OpName]
}

// Operation names are non-empty and contain no whitespace. Dots are allowed
// so qualified free-function names validate under the same constraint.
#OpName: string & =~"^[a-zA-Z_][a-zA-Z0-9_.]*$"
`

// ValidateManifestYAML checks raw YAML against the manifest schema.
// Returns a ManifestError describing the first violation.
func ValidateManifestYAML(raw []byte, source string) error {
	var data any
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return &ManifestError{Source: source, Message: "invalid YAML: " + err.Error()}
	}
	if data == nil {
		return &ManifestError{Source: source, Message: "manifest is empty"}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(manifestSchema)
	if err := schema.Err(); err != nil {
		// The schema is a compile-time constant; failing to compile it is a
		// programming error, not a caller error.
		panic("caps: manifest schema does not compile: " + err.Error())
	}

	def := schema.LookupPath(cue.ParsePath("#Manifest"))
	unified := def.Unify(ctx.Encode(normalizeYAML(data)))
	if err := unified.Validate(cue.Concrete(true), cue.Final()); err != nil {
		return &ManifestError{Source: source, Message: cueerrors.Details(err, nil)}
	}
	return nil
}

// normalizeYAML rewrites yaml.v3's map[string]any/any trees into the shapes
// cue's Encode accepts. yaml.v3 already decodes mappings with string keys to
// map[string]any, so this mostly guards nested structures.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = normalizeYAML(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalizeYAML(e)
		}
		return out
	default:
		return val
	}
}
