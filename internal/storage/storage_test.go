package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenHash(t *testing.T) {
	t.Parallel()

	h := TokenHash("some.signed.token")

	assert.Len(t, h, 64)
	assert.Equal(t, h, TokenHash("some.signed.token"))
	assert.NotEqual(t, h, TokenHash("some.signed.token2"))
	assert.NotContains(t, h, "token")
}
