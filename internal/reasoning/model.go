package reasoning

import (
	"context"
	"strings"
)

// DefaultModelLabel is reported when no override is stored.
const DefaultModelLabel = "Default (Hardcoded)"

// NormalizeModel trims a model name and drops a leading "openrouter/"
// routing prefix; the API itself expects vendor/model.
func NormalizeModel(name string) string {
	name = strings.TrimSpace(name)
	return strings.TrimPrefix(name, "openrouter/")
}

// OverrideSource reads the administrative model override.
type OverrideSource interface {
	// GetModelOverride reports the stored name, or ok=false when none is set.
	GetModelOverride(ctx context.Context) (name string, ok bool, err error)
}

// ModelResolver picks the model for an operation: the stored override when
// one is set, otherwise the factory default for the purpose. It reads the
// override on every call.
type ModelResolver struct {
	src     OverrideSource
	factory Factory
}

// NewModelResolver returns a resolver. src may be nil.
func NewModelResolver(src OverrideSource, factory Factory) *ModelResolver {
	return &ModelResolver{src: src, factory: factory}
}

// Resolve returns the model to use for p. A failing override read is
// returned to the caller rather than silently ignored.
func (r *ModelResolver) Resolve(ctx context.Context, p Purpose) (string, error) {
	if r.src != nil {
		name, ok, err := r.src.GetModelOverride(ctx)
		if err != nil {
			return "", err
		}
		if name = NormalizeModel(name); ok && name != "" {
			return name, nil
		}
	}
	return r.factory.DefaultModel(p), nil
}
