package pcl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCollapsePathSeps(t *testing.T) {
	require.Equal(t, ">sub>dir", collapsePathSeps(">>>sub>>dir"))
}

func TestTranslatePathSeparatorsAndParent(t *testing.T) {
	got := translatePath(">SUB>DIR", Lower)
	require.Equal(t, "/sub/dir/", got)
	require.Equal(t, "/sub/../dir/", translatePath(">SUB><>DIR", Lower))
}

func TestTranslatePathParentEscape(t *testing.T) {
	got := translatePath("<<<<<<", Lower)
	require.Contains(t, got, "..")
}

func TestResolvePathWithinRoot(t *testing.T) {
	root := "/mnt/pcl"
	p, err := resolvePath(root, "", ">SUB", Lower)
	require.NoError(t, err)
	require.Equal(t, "/mnt/pcl/sub", p)
}

func TestResolvePathEscapeRejected(t *testing.T) {
	root := "/mnt/pcl"
	_, err := resolvePath(root, "", "<><><>", Lower)
	require.Error(t, err)
}

func TestResolvePathAbsoluteIgnoresCwd(t *testing.T) {
	root := "/mnt/pcl"
	p, err := resolvePath(root, "some/cwd", ">TOP", Lower)
	require.NoError(t, err)
	require.Equal(t, "/mnt/pcl/top", p)
}
