package identity

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInboxPushDrain(t *testing.T) {
	in := NewInbox(8)

	in.Push(Change{Identifier: "AB12", Name: "Ada", Added: true})
	in.Push(Change{Identifier: "CD34", Added: false})
	require.Equal(t, 2, in.Len())

	changes := in.Drain()
	require.Len(t, changes, 2)
	assert.Equal(t, "AB12", changes[0].Identifier)
	assert.Equal(t, "CD34", changes[1].Identifier)
	assert.Equal(t, 0, in.Len())
}

func TestInboxDrainEmpty(t *testing.T) {
	in := NewInbox(8)
	assert.Nil(t, in.Drain())
}

func TestInboxEvictsOldestAtCapacity(t *testing.T) {
	in := NewInbox(2)

	assert.True(t, in.Push(Change{Identifier: "A"}))
	assert.True(t, in.Push(Change{Identifier: "B"}))
	assert.False(t, in.Push(Change{Identifier: "C"}), "push at capacity reports eviction")

	changes := in.Drain()
	require.Len(t, changes, 2)
	assert.Equal(t, "B", changes[0].Identifier)
	assert.Equal(t, "C", changes[1].Identifier)
}

func TestInboxApply(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "users.json"), nil)
	require.NoError(t, err)
	c.Register("CD34", "Old")

	in := NewInbox(8)
	in.Push(Change{Identifier: "AB12", Name: "Ada", Added: true})
	in.Push(Change{Identifier: "CD34", Added: false})

	applied := in.Apply(c)

	assert.Equal(t, 2, applied)
	assert.True(t, c.IsRegistered("AB12"))
	assert.False(t, c.IsRegistered("CD34"))
}
