package reasoning

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/academic-crs/internal/credential"
)

type staticOverride struct {
	name string
	ok   bool
	err  error
}

func (s staticOverride) GetModelOverride(context.Context) (string, bool, error) {
	return s.name, s.ok, s.err
}

type stubFactory struct{}

func (stubFactory) New(credential.Credentials, string) (Reasoner, error) { return nil, nil }

func (stubFactory) DefaultModel(p Purpose) string {
	if p == PurposeExtract {
		return "extractor-default"
	}
	return "stage-default"
}

func TestNormalizeModel(t *testing.T) {
	assert.Equal(t, "anthropic/claude-3.5-sonnet", NormalizeModel(" openrouter/anthropic/claude-3.5-sonnet "))
	assert.Equal(t, "mistralai/devstral-2512:free", NormalizeModel("mistralai/devstral-2512:free"))
	assert.Equal(t, "", NormalizeModel("   "))
}

func TestModelResolver(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		src     OverrideSource
		purpose Purpose
		want    string
	}{
		{"nil source", nil, PurposeStage, "stage-default"},
		{"no override extract", staticOverride{}, PurposeExtract, "extractor-default"},
		{"override applies to stages", staticOverride{name: "openrouter/x/y", ok: true}, PurposeStage, "x/y"},
		{"override applies to extraction", staticOverride{name: "x/y", ok: true}, PurposeExtract, "x/y"},
		{"blank override ignored", staticOverride{name: " ", ok: true}, PurposeQA, "stage-default"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewModelResolver(tt.src, stubFactory{}).Resolve(ctx, tt.purpose)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("store error surfaces", func(t *testing.T) {
		_, err := NewModelResolver(staticOverride{err: eris.New("db locked")}, stubFactory{}).Resolve(ctx, PurposeStage)
		assert.EqualError(t, err, "db locked")
	})
}
