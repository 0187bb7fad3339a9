package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/academic-crs/internal/model"
)

func TestMerge(t *testing.T) {
	tests := []struct {
		name    string
		base    model.Profile
		overlay model.Profile
		want    model.Profile
	}{
		{
			name:    "overlay wins when non-empty",
			base:    model.Profile{model.FieldBoard: "CBSE", model.FieldCGPA: "8.1"},
			overlay: model.Profile{model.FieldBoard: "ICSE"},
			want:    model.Profile{model.FieldBoard: "ICSE", model.FieldCGPA: "8.1"},
		},
		{
			name:    "empty overlay value keeps base",
			base:    model.Profile{model.FieldBoard: "CBSE"},
			overlay: model.Profile{model.FieldBoard: "", model.FieldBudget: nil},
			want:    model.Profile{model.FieldBoard: "CBSE"},
		},
		{
			name:    "lists are replaced whole",
			base:    model.Profile{model.FieldPreferredLocations: []string{"USA", "Canada"}},
			overlay: model.Profile{model.FieldPreferredLocations: []string{"Germany"}},
			want:    model.Profile{model.FieldPreferredLocations: []string{"Germany"}},
		},
		{
			name:    "empty list does not clear base",
			base:    model.Profile{model.FieldPreferredLocations: []string{"USA"}},
			overlay: model.Profile{model.FieldPreferredLocations: []string{}},
			want:    model.Profile{model.FieldPreferredLocations: []string{"USA"}},
		},
		{
			name:    "empty base values are dropped",
			base:    model.Profile{model.FieldBudget: "  "},
			overlay: model.Profile{model.FieldCGPA: "9"},
			want:    model.Profile{model.FieldCGPA: "9"},
		},
		{
			name: "nil inputs",
			want: model.Profile{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Merge(tt.base, tt.overlay))
		})
	}
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	base := model.Profile{model.FieldBoard: "CBSE"}
	overlay := model.Profile{model.FieldBoard: "ICSE", model.FieldCGPA: "9"}

	out := Merge(base, overlay)
	out[model.FieldBudget] = "10 lakhs"

	assert.Equal(t, model.Profile{model.FieldBoard: "CBSE"}, base)
	assert.Equal(t, model.Profile{model.FieldBoard: "ICSE", model.FieldCGPA: "9"}, overlay)
}

func TestMergeResults_LaterWins(t *testing.T) {
	out := MergeResults(
		model.ExtractionResult{Provenance: model.ProvenanceHeuristic, Fields: model.Profile{
			model.FieldBoard: "CBSE", model.FieldCGPA: "8",
		}},
		model.ExtractionResult{Provenance: model.ProvenanceReasoning, Fields: model.Profile{
			model.FieldCGPA: "8.4", model.FieldBoard: "",
		}},
	)
	assert.Equal(t, model.Profile{model.FieldBoard: "CBSE", model.FieldCGPA: "8.4"}, out)
}

func TestMerge_Idempotent(t *testing.T) {
	p := Heuristic("My name is Ravi Kumar. Bachelor of Technology in CS, CGPA 8.2/10, graduating in 2025. I want to study in Germany and Canada on a 25 lakhs budget.")

	once := Merge(p, p)
	assert.Equal(t, p, once)
	assert.Equal(t, once, Merge(once, p))
}
