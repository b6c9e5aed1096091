package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	ctx := context.Background()

	t.Run("openai is the default", func(t *testing.T) {
		c, err := New(ctx, "", WithAPIKey("test-key"), WithBaseURL("http://localhost:1/v1/"))
		require.NoError(t, err)
		_, ok := c.(*OpenAIClient)
		assert.True(t, ok)
	})

	t.Run("gemini needs a key", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "")
		_, err := New(ctx, "gemini")
		assert.Error(t, err)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := New(ctx, "llama")
		assert.Error(t, err)
	})
}
