package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrite-io/ferrite/internal/ir"
)

// Full evaluation needs the pkl binary and resolvable schema packages, so
// these tests exercise the normalization applied to evaluated modules.

func TestNormalizeConfig_Defaults(t *testing.T) {
	cfg := &ir.Config{
		Resources: []*ir.Resource{
			{Name: "placeholder"},
			{Type: "bucket", Name: "assets", Provider: "aws", Properties: map[string]any{"versioning": true}},
			{Type: "container", Name: "web"},
		},
	}

	require.NoError(t, normalizeConfig(cfg))

	assert.Equal(t, "null_resource", cfg.Resources[0].Type)
	assert.Equal(t, "null", cfg.Resources[0].Provider)
	assert.NotNil(t, cfg.Resources[0].Properties)

	// explicit values are left alone
	assert.Equal(t, "bucket", cfg.Resources[1].Type)
	assert.Equal(t, "aws", cfg.Resources[1].Provider)

	// non-null kinds without an explicit provider are bound later
	assert.Empty(t, cfg.Resources[2].Provider)
}

func TestNormalizeConfig_MissingName(t *testing.T) {
	cfg := &ir.Config{
		Resources: []*ir.Resource{{Type: "bucket"}},
	}
	err := normalizeConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no name")
}

func TestNormalizeConfig_NilResources(t *testing.T) {
	cfg := &ir.Config{}
	require.NoError(t, normalizeConfig(cfg))
	assert.NotNil(t, cfg.Resources)
}
