package pcl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateDOSName(t *testing.T) {
	require.True(t, validateDOSName("foo.txt", Lower))
	require.True(t, validateDOSName("FOO.TXT", Upper))
	require.False(t, validateDOSName("foo.txt", Upper)) // wrong case for mode
	require.False(t, validateDOSName("toolongname.txt", Lower))
	require.False(t, validateDOSName("a.b.c", Lower))
	require.False(t, validateDOSName(".", Lower))
	require.True(t, validateDOSName("noext", Lower))
}

func TestUgefinaAlwaysUppercase(t *testing.T) {
	got := ugefina("foo.txt")
	want := [11]byte{'F', 'O', 'O', ' ', ' ', ' ', ' ', ' ', 'T', 'X', 'T'}
	require.Equal(t, want, got)
}

func TestUexpandRespectsCaseMode(t *testing.T) {
	raw := [11]byte{'F', 'O', 'O', ' ', ' ', ' ', ' ', ' ', 'T', 'X', 'T'}
	require.Equal(t, "foo.txt", uexpand(raw, Lower))
	require.Equal(t, "FOO.TXT", uexpand(raw, Upper))
}

func TestMatchNameWildcard(t *testing.T) {
	name := ugefina("a.txt")
	mask := [11]byte{'?', '?', '?', '?', '?', '?', '?', '?', 'T', 'X', 'T'}
	require.True(t, matchName(name, mask))

	mask[8] = 'D'
	require.False(t, matchName(name, mask))
}

func TestMatchAttributesProtectedVsSubdir(t *testing.T) {
	require.True(t, matchAttributes(0, false, true))
	require.False(t, matchAttributes(AttrProtect, false, true))
	require.True(t, matchAttributes(AttrProtect, false, false))
	require.False(t, matchAttributes(AttrSubdir, false, true))
	require.True(t, matchAttributes(AttrSubdir, true, true))
	require.False(t, matchAttributes(AttrHidden, false, true))
}
