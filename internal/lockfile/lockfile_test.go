package lockfile

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcquireThenReleaseAllowsReacquire(t *testing.T) {
	lk, err := Acquire()
	require.NoError(t, err)
	require.NoError(t, lk.Release())

	lk2, err := Acquire()
	require.NoError(t, err)
	require.NoError(t, lk2.Release())
}

func TestAcquireTwiceFailsSecondTime(t *testing.T) {
	lk, err := Acquire()
	require.NoError(t, err)
	defer lk.Release()

	_, err = Acquire()
	require.ErrorIs(t, err, ErrAlreadyLocked)
}

func TestDirKeyedByUID(t *testing.T) {
	require.Contains(t, dir(), os.TempDir())
	require.Contains(t, dir(), fmt.Sprintf("sio2go.%d", os.Getuid()))
}
