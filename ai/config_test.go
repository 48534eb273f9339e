package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, "embeddinggemma", cfg.EmbeddingModel)
}

func TestNewConfig_Options(t *testing.T) {
	cfg := NewConfig(
		WithEmbeddingHost("http://example.com:9100/v1"),
		WithEmbeddingModel("text-embedding-3-small"),
	)
	assert.Equal(t, "http://example.com:9100/v1", cfg.EmbeddingHost)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
}

func TestConfig_Normalize(t *testing.T) {
	tests := []struct {
		name string
		host string
		want string
	}{
		{"adds v1 suffix", "http://localhost:11434", "http://localhost:11434/v1"},
		{"strips trailing slash", "http://localhost:11434/", "http://localhost:11434/v1"},
		{"leaves canonical host alone", "http://localhost:11434/v1", "http://localhost:11434/v1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig(WithEmbeddingHost(tt.host))
			cfg.Normalize()
			assert.Equal(t, tt.want, cfg.EmbeddingHost)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Validate())

	cfg.EmbeddingHost = ""
	assert.Error(t, cfg.Validate())

	cfg = NewConfig()
	cfg.EmbeddingModel = ""
	assert.Error(t, cfg.Validate())
}
