package pidfile

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "orion.pid")

	require.NoError(t, Acquire(path, "/run/orion.sock"))
	rec, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, Record{PID: os.Getpid(), Endpoint: "/run/orion.sock"}, rec)
	assert.NoFileExists(t, path+".tmp")

	running, rec, err := IsRunning(path)
	require.NoError(t, err)
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), rec.PID)

	require.NoError(t, Release(path))
	running, _, err = IsRunning(path)
	require.NoError(t, err)
	assert.False(t, running)
}

func TestAcquireReplacesStaleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orion.pid")
	// PIDs are bounded well below this on Linux and macOS.
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(1<<30)), 0644))

	require.NoError(t, Acquire(path, "tcp://127.0.0.1:5000"))
	rec, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), rec.PID)
	assert.Equal(t, "tcp://127.0.0.1:5000", rec.Endpoint)
}

func TestAcquireRefusesLiveProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orion.pid")
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getppid())+"\n/tmp/other.sock\n"), 0644))

	err := Acquire(path, "/tmp/orion.sock")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestReleaseLeavesForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orion.pid")
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getppid())), 0644))

	require.NoError(t, Release(path))
	assert.FileExists(t, path)
}

func TestReadLegacyAndGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orion.pid")
	require.NoError(t, os.WriteFile(path, []byte("4242\n"), 0644))
	rec, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, Record{PID: 4242}, rec)

	require.NoError(t, os.WriteFile(path, []byte("not-a-pid"), 0644))
	_, err = Read(path)
	assert.Error(t, err)
	_, _, err = IsRunning(path)
	assert.Error(t, err)
}
