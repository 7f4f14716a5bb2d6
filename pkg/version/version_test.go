package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	v := Get()
	assert.NotEmpty(t, v)
	assert.Equal(t, strings.TrimSpace(v), v)
}
