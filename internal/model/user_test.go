package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Alice", User{Name: "Alice", Email: "a@example.com"}.DisplayName())
	assert.Equal(t, "bob", User{Email: "bob@example.com"}.DisplayName())
	assert.Equal(t, "", User{}.DisplayName())
}
