package templates

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvCanvas/internal/cv"
)

func TestBuiltin(t *testing.T) {
	c, err := Builtin()
	require.NoError(t, err)

	list := c.List()
	require.Len(t, list, 5)
	assert.Equal(t, "modern", list[0].ID)

	tpl, err := c.Get("classic")
	require.NoError(t, err)
	assert.Equal(t, StyleClassic, tpl.Style)
	assert.Equal(t, cv.SpacingRelaxed, tpl.DefaultSettings.Layout.Spacing)
	assert.Equal(t, "Georgia", tpl.DefaultSettings.Typography.FontFamily)
	assert.Contains(t, tpl.DefaultComponents, cv.TypeLanguages)
}

func TestGet_NotFound(t *testing.T) {
	c := MustBuiltin()
	_, err := c.Get("nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestParse_RejectsBadCatalogs(t *testing.T) {
	_, err := Parse([]byte("- id: a\n- id: a\n"))
	assert.ErrorContains(t, err, "duplicate id")

	_, err = Parse([]byte("- id: a\n  defaultComponents: [timeline]\n"))
	assert.True(t, errors.Is(err, cv.ErrUnknownType))

	_, err = Parse([]byte("- name: missing id\n"))
	assert.ErrorContains(t, err, "id is required")
}
