package organize

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"shiwake/internal/errors"
	"shiwake/internal/log"
	"shiwake/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireDestinationLock(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(t.TempDir(), "dest")

	held, err := acquireDestinationLock(dir, root)
	require.NoError(t, err)

	_, err = acquireDestinationLock(dir, root)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errDestinationBusy))

	require.NoError(t, held.release())
	again, err := acquireDestinationLock(dir, root)
	require.NoError(t, err)
	require.NoError(t, again.release())
}

func TestBusyDestinationIsNotCreated(t *testing.T) {
	lockDir := t.TempDir()
	root := filepath.Join(t.TempDir(), "dest")

	held, err := acquireDestinationLock(lockDir, root)
	require.NoError(t, err)
	defer held.release()

	o := NewOrchestrator(WithLockDir(lockDir), WithLogger(log.NewLogger(log.WithOutput(io.Discard))))
	run, err := o.StartBatch(context.Background(), Request{
		Files:           []string{filepath.Join(t.TempDir(), "a.txt")},
		DestinationRoot: root,
		Ruleset:         types.Ruleset{{Name: "Documents", Extensions: []string{".txt"}}},
	})
	require.Error(t, err)
	assert.Nil(t, run)
	assert.True(t, errors.IsValidation(err))
	assert.Contains(t, err.Error(), "destination is locked")
	assert.NoDirExists(t, root)
	assert.Equal(t, Idle, o.State())
}
