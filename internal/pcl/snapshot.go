package pcl

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/drac030/sio2go/internal/clock"
)

func writable(info os.FileInfo) bool {
	return info.Mode().Perm()&0o200 != 0
}

// depthOf counts path separators between root and dir (0 at root itself).
func depthOf(root, dir string) byte {
	rel := strings.TrimPrefix(dir, root)
	rel = strings.Trim(rel, string(filepath.Separator))
	if rel == "" {
		return 0
	}
	return byte(strings.Count(rel, string(filepath.Separator)) + 1)
}

// buildSnapshot enumerates dir once and returns the header entry followed
// by one entry per accepted child, per the cache_dir algorithm: a
// synthesized header named "MAIN" at the mount root or the parent's
// always-uppercase 8+3 name elsewhere, then children sorted by host name,
// filtered by validateDOSName and limited to regular files/directories.
// The depth ordinal is stored in 5 bits of the map field (setMap), so
// directories more than 31 levels below the root wrap (depth 32 is
// stored as 0).
func buildSnapshot(root, dir string, mode CaseMode) ([]DirEntry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	depth := depthOf(root, dir)

	var headerName [11]byte
	for i := range headerName {
		headerName[i] = ' '
	}
	if dir == filepath.Clean(root) {
		copy(headerName[:], "MAIN")
	} else {
		headerName = ugefina(filepath.Base(dir))
	}

	entries := []DirEntry{newEntry(statusBase|statusSubdir, depth, 0, headerName, info.Size(), clock.Encode(info.ModTime()))}

	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	children, err := f.Readdir(-1)
	if err != nil {
		return nil, err
	}
	sort.Slice(children, func(i, j int) bool { return children[i].Name() < children[j].Name() })

	node := uint16(1)
	for _, c := range children {
		if !c.Mode().IsRegular() && !c.IsDir() {
			continue
		}
		if !validateDOSName(c.Name(), mode) {
			continue
		}
		status := byte(statusBase)
		if !writable(c) {
			status |= statusProtect
		}
		size := c.Size()
		if c.IsDir() {
			status |= statusSubdir
			size = EntrySize
		}
		entries = append(entries, newEntry(status, depth, node, ugefina(c.Name()), size, clock.Encode(c.ModTime())))
		node++
	}
	return entries, nil
}

// snapshotBytes flattens a snapshot into its wire representation.
func snapshotBytes(entries []DirEntry) []byte {
	buf := make([]byte, 0, len(entries)*EntrySize)
	for _, e := range entries {
		b := e.Bytes()
		buf = append(buf, b[:]...)
	}
	return buf
}
