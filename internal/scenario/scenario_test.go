package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicSetOrder(t *testing.T) {
	assert.Equal(t, []string{"default", "netns", "netnsRegtest"}, BasicSet())
}

func TestAllSetOrder(t *testing.T) {
	assert.Equal(t, []string{"default", "netns", "full", "regtest", "netnsRegtest"}, AllSet())
}

func TestSetsResolveAgainstRegistry(t *testing.T) {
	r := NewRegistry()

	for _, name := range AllSet() {
		_, err := r.Lookup(name)
		assert.NoError(t, err, "scenario %s", name)
	}
}

func TestLookupUnknownListsKnownNames(t *testing.T) {
	r := NewRegistry()

	_, err := r.Lookup("bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown scenario "bogus"`)
	assert.Contains(t, err.Error(), "netnsRegtest")
}

func TestAddExtendsAndOverrides(t *testing.T) {
	r := NewRegistry()
	r.Add([]Spec{
		{Name: "clightningOnly", Description: "just clightning"},
		{Name: "default", Description: "override", MemoryMiB: 4096},
	})

	extra, err := r.Lookup("clightningOnly")
	require.NoError(t, err)
	assert.Equal(t, "just clightning", extra.Description)

	overridden, err := r.Lookup("default")
	require.NoError(t, err)
	assert.Equal(t, 4096, overridden.MemoryMiB)

	// Overriding a built-in must not duplicate its name.
	names := r.Names()
	count := 0
	for _, n := range names {
		if n == "default" {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Contains(t, names, "clightningOnly")
}

func TestNamesReturnsCopy(t *testing.T) {
	r := NewRegistry()
	names := r.Names()
	names[0] = "mutated"

	assert.Equal(t, "default", r.Names()[0])
}
