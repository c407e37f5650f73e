package nodes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gonett/internal/kernel"
	"gonett/internal/nserrors"
)

func TestSwitchNodeCreateIsIdempotent(t *testing.T) {
	exec := newFakeBackend()
	stack := kernel.NewCleanupStack()
	sw, err := NewSwitchNode("s1", "br-s1", exec, stack)
	require.NoError(t, err)

	require.NoError(t, sw.Create(context.Background()))
	require.NoError(t, sw.Create(context.Background()))

	assert.Equal(t, []string{"CreateBridge"}, exec.Calls())
}

func TestSwitchNodeDestroyIsIdempotent(t *testing.T) {
	exec := newFakeBackend()
	stack := kernel.NewCleanupStack()
	sw, err := NewSwitchNode("s1", "br-s1", exec, stack)
	require.NoError(t, err)

	require.NoError(t, sw.Destroy(context.Background()), "destroy before create must be a no-op")
	assert.Empty(t, exec.Calls())

	require.NoError(t, sw.Create(context.Background()))
	require.NoError(t, sw.Destroy(context.Background()))
	require.NoError(t, sw.Destroy(context.Background()))

	assert.Equal(t, []string{"CreateBridge", "DeleteBridge"}, exec.Calls())
}

func TestSwitchNodeRejectsInvalidName(t *testing.T) {
	exec := newFakeBackend()
	stack := kernel.NewCleanupStack()
	_, err := NewSwitchNode("bad name", "br-bad", exec, stack)
	assert.Error(t, err)
}

func TestSwitchNodeMembersAreACopy(t *testing.T) {
	exec := newFakeBackend()
	stack := kernel.NewCleanupStack()
	sw, err := NewSwitchNode("s1", "br-s1", exec, stack)
	require.NoError(t, err)

	sw.AddMember("veth0")
	got := sw.Members()
	got["veth1"] = true

	assert.Len(t, sw.Members(), 1, "mutating the returned map must not affect internal state")
}

func TestSwitchNodeQueryUnsupported(t *testing.T) {
	exec := newFakeBackend()
	stack := kernel.NewCleanupStack()
	sw, err := NewSwitchNode("s1", "br-s1", exec, stack)
	require.NoError(t, err)

	_, err = sw.Query(context.Background(), nil)
	assert.Error(t, err)
	assert.True(t, nserrors.Is(err, nserrors.Unsupported))
}
