package indexer

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lockPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "worker.pid")
}

func TestPIDLock_AcquireAndRelease(t *testing.T) {
	path := lockPath(t)
	lock := NewPIDLock(path)

	require.NoError(t, lock.Acquire())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	lock.Release()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestPIDLock_SecondAcquireBlockedByLiveProcess(t *testing.T) {
	path := lockPath(t)
	// The current test process stands in for the live holder.
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644))

	err := NewPIDLock(path).Acquire()

	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestPIDLock_StaleLockReplaced(t *testing.T) {
	path := lockPath(t)

	// A short-lived child that has already exited leaves a dead pid.
	cmd := exec.Command("true")
	require.NoError(t, cmd.Run())
	deadPID := cmd.Process.Pid
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(deadPID)), 0o644))

	lock := NewPIDLock(path)
	require.NoError(t, lock.Acquire())
	defer lock.Release()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))
}

func TestPIDLock_GarbageContentReplaced(t *testing.T) {
	path := lockPath(t)
	require.NoError(t, os.WriteFile(path, []byte("not a pid"), 0o644))

	lock := NewPIDLock(path)
	require.NoError(t, lock.Acquire())
	defer lock.Release()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))
}

func TestPIDLock_ReleaseLeavesForeignLock(t *testing.T) {
	path := lockPath(t)
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid()+1)), 0o644))

	NewPIDLock(path).Release()

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestPIDLock_AcquireCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "worker.pid")
	lock := NewPIDLock(path)

	require.NoError(t, lock.Acquire())
	defer lock.Release()

	_, err := os.Stat(path)
	assert.NoError(t, err)
}
