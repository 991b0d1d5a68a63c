package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	apps := c.All()
	require.Len(t, apps, 9)
	assert.Equal(t, "today", apps[0].Slug)
	assert.Equal(t, "legacy-fun", apps[8].Slug)

	brain := c.Lookup("second-brain")
	assert.Equal(t, "Second Brain", brain.Label)
	assert.Len(t, brain.Microcategories, 4)
	assert.Len(t, brain.SetupPrompts, 3)

	today := c.Lookup("today")
	assert.Empty(t, today.Microcategories)
	assert.NotNil(t, today.Microcategories)
}

func TestLookupFallsBackToFirst(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "today", c.Lookup("").Slug)
	assert.Equal(t, "today", c.Lookup("does-not-exist").Slug)
}

func TestAllReturnsCopy(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	apps := c.All()
	apps[0].Slug = "mutated"
	assert.Equal(t, "today", c.All()[0].Slug)
}

func TestParseRejectsBadDocuments(t *testing.T) {
	_, err := Parse([]byte("microapps: []\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("microapps:\n  - label: nameless\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("microapps:\n  - slug: a\n  - slug: a\n"))
	assert.ErrorContains(t, err, "duplicate")

	_, err = Parse([]byte("microapps: [unterminated"))
	assert.Error(t, err)
}
