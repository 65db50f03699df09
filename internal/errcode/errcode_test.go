package errcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessage(t *testing.T) {
	assert.Empty(t, Message(OK))
	assert.NotEmpty(t, Message(ResourceMissing))
	assert.NotEmpty(t, Message(PageOverflow))
	assert.Empty(t, Message(1234))
}

func TestIsWarning(t *testing.T) {
	assert.False(t, IsWarning(OK))
	assert.True(t, IsWarning(ResourceMissing))
	assert.True(t, IsWarning(PageOverflow))
	assert.False(t, IsWarning(SystemError))
}
