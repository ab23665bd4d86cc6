package caps

import (
	"log/slog"
	"sort"
	"strings"
)

// savedOriginalPrefix marks interception artifacts: a name already denoting
// "the saved native original" is never itself eligible.
const savedOriginalPrefix = "native_"

// universalNames are members every value carries regardless of type (default
// object protocol). Intercepting them would change behavior far outside the
// collaborator, so they are excluded unconditionally.
var universalNames = map[string]struct{}{
	"string": {},
	"format": {},
	"type":   {},
	"hash":   {},
}

// Surface is the introspection view of a native type: whether a declared
// name resolves to a callable member. The registry asks nothing else of the
// collaborator.
type Surface interface {
	Has(name string) bool
}

// SurfaceFunc adapts a lookup function to Surface.
type SurfaceFunc func(name string) bool

func (f SurfaceFunc) Has(name string) bool { return f(name) }

// OpSet is an immutable set of eligible operation names.
type OpSet map[string]struct{}

// Has reports membership.
func (s OpSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Sorted returns the names in lexical order, for logs and snapshots.
func (s OpSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Registry computes and caches the eligible-operation set per native type.
// Computation happens once per type at initialization; later mutation of
// the native type never triggers recomputation.
type Registry struct {
	manifest Manifest
	logger   *slog.Logger

	// cache is written during initialization only; the single-threaded
	// synchronous model means no locking discipline is needed afterwards.
	cache map[string]OpSet
}

// NewRegistry creates a registry over a validated manifest.
func NewRegistry(m Manifest, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		manifest: m,
		logger:   logger,
		cache:    make(map[string]OpSet),
	}
}

// Operations returns the eligible-operation set for a native type, computing
// it on first call and serving the cached set afterwards.
//
// A declared name is eligible iff it is not excluded, not a saved-original
// artifact, not a universal protocol member, and resolves to a callable
// member on the surface. Names that fail to classify are conservatively
// excluded, never an error: under-interception is recoverable, corrupted
// dispatch is not.
func (r *Registry) Operations(typeName string, surface Surface) OpSet {
	if cached, ok := r.cache[typeName]; ok {
		return cached
	}

	set := make(OpSet)
	decl, ok := r.manifest.typeFor(typeName)
	if !ok {
		r.logger.Debug("no capability declaration for type", "type", typeName)
		r.cache[typeName] = set
		return set
	}

	for _, name := range decl.Operations {
		if reason := r.classify(name, surface); reason != "" {
			r.logger.Debug("operation not eligible",
				"type", typeName, "op", name, "reason", reason)
			continue
		}
		set[name] = struct{}{}
	}

	r.cache[typeName] = set
	return set
}

// Functions returns the eligible free-function set. The exclusion list
// applies to qualified names exactly as it does to methods.
func (r *Registry) Functions(surface Surface) OpSet {
	const key = "(functions)"
	if cached, ok := r.cache[key]; ok {
		return cached
	}

	set := make(OpSet)
	for _, name := range r.manifest.Functions {
		if reason := r.classify(name, surface); reason != "" {
			r.logger.Debug("function not eligible", "op", name, "reason", reason)
			continue
		}
		set[name] = struct{}{}
	}

	r.cache[key] = set
	return set
}

// Excluded reports whether a name is on the fixed exclusion list.
func (r *Registry) Excluded(name string) bool {
	return r.manifest.excluded(name)
}

// classify returns an empty string for eligible names, or the reason the
// name was rejected.
func (r *Registry) classify(name string, surface Surface) string {
	if r.manifest.excluded(name) {
		return "excluded"
	}
	if strings.HasPrefix(name, savedOriginalPrefix) {
		return "interception artifact"
	}
	if _, ok := universalNames[name]; ok {
		return "universal protocol member"
	}
	if !surface.Has(name) {
		return "does not resolve to a callable member"
	}
	return ""
}
