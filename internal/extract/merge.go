package extract

import "github.com/sells-group/academic-crs/internal/model"

// Merge overlays overlay onto base. A field from overlay replaces the base
// value only when it is non-empty; lists and records are replaced whole,
// never merged element-wise. Neither input is modified.
func Merge(base, overlay model.Profile) model.Profile {
	out := base.Compact()
	for k, v := range overlay {
		if model.IsEmptyValue(v) {
			continue
		}
		out[k] = v
	}
	return out
}

// MergeResults folds extraction results left to right, so later results take
// precedence over earlier ones.
func MergeResults(results ...model.ExtractionResult) model.Profile {
	out := model.Profile{}
	for _, r := range results {
		out = Merge(out, r.Fields)
	}
	return out
}
