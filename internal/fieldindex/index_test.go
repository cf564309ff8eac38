package fieldindex

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complyos/taskcore/internal/store"
	"github.com/complyos/taskcore/internal/testutil"
)

func buildIndex(t *testing.T, defs map[store.TaskType][]Definition) *Index {
	t.Helper()
	ix, err := New(defs)
	require.NoError(t, err)
	return ix
}

func ky3pIndex(t *testing.T) *TypeIndex {
	t.Helper()
	ix := buildIndex(t, map[store.TaskType][]Definition{
		store.TaskTypeKY3P: {
			{Key: "vendor_name", LegacyID: testutil.Int64Ptr(301), Required: true},
			{Key: "services_provided", LegacyID: testutil.Int64Ptr(302), Required: true},
			{Key: "notes"},
		},
	})
	ti, err := ix.ForType(store.TaskTypeKY3P)
	require.NoError(t, err)
	return ti
}

func TestCanonicalKey(t *testing.T) {
	assert.Equal(t, "legal_name", CanonicalKey("  legal_name "))
	assert.Equal(t, "", CanonicalKey("   "))

	// NFD and NFC spellings of the same key normalize identically.
	nfd := "café" // cafe + combining acute
	nfc := "café"
	assert.Equal(t, CanonicalKey(nfc), CanonicalKey(nfd))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(map[store.TaskType][]Definition{
		store.TaskTypeKYB: {{Key: "a"}, {Key: " a "}},
	})
	assert.ErrorContains(t, err, "duplicate field key")

	_, err = New(map[store.TaskType][]Definition{
		store.TaskTypeKYB: {
			{Key: "a", LegacyID: testutil.Int64Ptr(7)},
			{Key: "b", LegacyID: testutil.Int64Ptr(7)},
		},
	})
	assert.ErrorContains(t, err, "legacy id 7 mapped twice")

	_, err = New(map[store.TaskType][]Definition{
		store.TaskTypeKYB: {{Key: "   "}},
	})
	assert.ErrorContains(t, err, "empty key")
}

func TestForType_Unknown(t *testing.T) {
	ix := buildIndex(t, map[store.TaskType][]Definition{})
	_, err := ix.ForType(store.TaskType("mystery"))
	assert.True(t, IsUnknownType(err))
	assert.ErrorContains(t, err, "mystery")
}

func TestTypeIndex_Lookup(t *testing.T) {
	ti := ky3pIndex(t)

	def, ok := ti.Lookup(" vendor_name ")
	require.True(t, ok)
	assert.True(t, def.Required)
	require.NotNil(t, def.LegacyID)
	assert.Equal(t, int64(301), *def.LegacyID)

	_, ok = ti.Lookup("no_such")
	assert.False(t, ok)
}

func TestTypeIndex_RequiredCount(t *testing.T) {
	ti := ky3pIndex(t)
	assert.Equal(t, 2, ti.RequiredCount())
}

func TestResolve(t *testing.T) {
	ti := ky3pIndex(t)

	key, ok, conflicted := ti.Resolve(store.Response{FieldKey: "vendor_name"})
	assert.Equal(t, "vendor_name", key)
	assert.True(t, ok)
	assert.False(t, conflicted)

	key, ok, conflicted = ti.Resolve(store.Response{LegacyFieldID: testutil.Int64Ptr(302)})
	assert.Equal(t, "services_provided", key)
	assert.True(t, ok)
	assert.False(t, conflicted)

	// Both identifiers, agreeing: no conflict.
	key, ok, conflicted = ti.Resolve(store.Response{FieldKey: "vendor_name", LegacyFieldID: testutil.Int64Ptr(301)})
	assert.Equal(t, "vendor_name", key)
	assert.True(t, ok)
	assert.False(t, conflicted)

	// Disagreeing identifiers: canonical key wins, conflict flagged.
	key, ok, conflicted = ti.Resolve(store.Response{FieldKey: "vendor_name", LegacyFieldID: testutil.Int64Ptr(302)})
	assert.Equal(t, "vendor_name", key)
	assert.True(t, ok)
	assert.True(t, conflicted)

	_, ok, _ = ti.Resolve(store.Response{FieldKey: "unknown", LegacyFieldID: testutil.Int64Ptr(999)})
	assert.False(t, ok)
}

func TestCollapse_LastWriteWins(t *testing.T) {
	ti := ky3pIndex(t)
	old := store.Response{FieldKey: "vendor_name", Value: testutil.StrPtr("old"), UpdatedAt: time.Unix(1, 0)}
	newer := store.Response{LegacyFieldID: testutil.Int64Ptr(301), Value: testutil.StrPtr("new"), UpdatedAt: time.Unix(2, 0)}
	stray := store.Response{FieldKey: "nope", Value: testutil.StrPtr("x"), UpdatedAt: time.Unix(3, 0)}

	resolved, unresolved := ti.Collapse([]store.Response{old, newer, stray})

	require.Contains(t, resolved, "vendor_name")
	assert.Equal(t, "new", *resolved["vendor_name"].Value)
	require.Len(t, unresolved, 1)
	assert.Equal(t, "nope", unresolved[0].FieldKey)

	// Order independence: the older row arriving later still loses.
	resolved, _ = ti.Collapse([]store.Response{newer, old})
	assert.Equal(t, "new", *resolved["vendor_name"].Value)
}

func TestCollapse_TieBreaksOnInputOrder(t *testing.T) {
	ti := ky3pIndex(t)
	at := time.Unix(5, 0)
	first := store.Response{FieldKey: "vendor_name", Value: testutil.StrPtr("first"), UpdatedAt: at}
	second := store.Response{FieldKey: "vendor_name", Value: testutil.StrPtr("second"), UpdatedAt: at}

	resolved, _ := ti.Collapse([]store.Response{first, second})
	assert.Equal(t, "second", *resolved["vendor_name"].Value)
}
