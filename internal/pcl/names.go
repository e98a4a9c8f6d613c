// Package pcl implements the PCLink file-server protocol: the parameter
// block dispatch, host-name filtering against the platform's 8+3 charset,
// directory snapshot synthesis, and path composition rooted at each PCL
// mount's host directory.
package pcl

import "strings"

// CaseMode selects whether accepted host names are upper or lower case;
// chosen once at startup (the -u flag flips the default).
type CaseMode int

const (
	Upper CaseMode = iota
	Lower
)

// Attribute mask bits for fatr1 (PARBUF.Fatr1), matched against a host
// stat result. Hidden/archived have no host equivalent: requiring them
// always fails the match, requiring their absence is a no-op.
const (
	AttrProtect    = 1 << 0
	AttrNoProtect  = 1 << 1
	AttrHidden     = 1 << 2
	AttrNoHidden   = 1 << 3
	AttrArchived   = 1 << 4
	AttrNoArchived = 1 << 5
	AttrSubdir     = 1 << 6
	AttrNoSubdir   = 1 << 7
)

func isTerm(c byte) bool { return c == 0 || c == ' ' }

func isAllowed(c byte, mode CaseMode) bool {
	switch {
	case c >= '0' && c <= '9', c == '_', c == '@':
		return true
	case mode == Upper:
		return c >= 'A' && c <= 'Z'
	default:
		return c >= 'a' && c <= 'z'
	}
}

func caseByte(c byte, mode CaseMode) byte {
	if mode == Upper {
		if c >= 'a' && c <= 'z' {
			return c - 'a' + 'A'
		}
		return c
	}
	if c >= 'A' && c <= 'Z' {
		return c - 'A' + 'a'
	}
	return c
}

func toUpperByte(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

// validateNameField checks an 8 (or 3) character name/extension component:
// empty is invalid, a '.' ends the scan successfully (the caller has
// already split on it so this only fires for embedded dots, which are
// rejected by validateDOSName before we get here), any disallowed
// character fails the whole field.
func validateNameField(s string, mode CaseMode) bool {
	if len(s) == 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if isTerm(s[i]) {
			return i != 0
		}
		if s[i] == '.' {
			return true
		}
		if !isAllowed(s[i], mode) {
			return false
		}
	}
	return true
}

// validateDOSName reports whether a host filename can be represented in
// the platform's 8+3 charset: at most 8 base characters, at most 3
// extension characters, a single dot, and every character drawn from
// [A-Za-z0-9_@] in the active case mode.
func validateDOSName(name string, mode CaseMode) bool {
	dot := strings.IndexByte(name, '.')
	if dot < 0 {
		if len(name) > 8 {
			return false
		}
		return validateNameField(name, mode)
	}

	dd := len(name) - dot // length of ".ext" portion, dot inclusive
	if dd > 4 || dot > 8 {
		return false
	}
	if dot == 0 && dd == 1 {
		return false // bare "."
	}
	ext := name[dot+1:]
	for i := 0; i < len(ext); i++ {
		if ext[i] == '.' {
			return false // multiple dots
		}
	}

	base := name[:dot]
	if !validateNameField(base, mode) {
		return false
	}
	if len(ext) == 0 {
		return false
	}
	return validateNameField(ext, mode)
}

// ugefina renders a host filename into the platform's 11-byte, space
// padded, always-uppercase 8+3 slot used in directory entries.
func ugefina(hostName string) [11]byte {
	var out [11]byte
	for i := range out {
		out[i] = ' '
	}
	base, ext := hostName, ""
	if dot := strings.IndexByte(hostName, '.'); dot >= 0 {
		base, ext = hostName[:dot], hostName[dot+1:]
	}
	n := 0
	for i := 0; i < len(base) && n < 8; i++ {
		if isTerm(base[i]) {
			break
		}
		out[n] = toUpperByte(base[i])
		n++
	}
	m := 0
	for i := 0; i < len(ext) && m < 3; i++ {
		if isTerm(ext[i]) {
			break
		}
		out[8+m] = toUpperByte(ext[i])
		m++
	}
	return out
}

// uexpand decodes an 11-byte 8+3 slot (as carried in a PARBUF name/names
// field) back into a host-charset filename, applying the active case mode.
func uexpand(raw [11]byte, mode CaseMode) string {
	var b strings.Builder
	x := 0
	for x < 8 && raw[x] != 0 && raw[x] != ' ' {
		b.WriteByte(caseByte(raw[x], mode))
		x++
	}
	if raw[8] != 0 && raw[8] != ' ' {
		b.WriteByte('.')
		for y := 8; y < 11 && raw[y] != 0 && raw[y] != ' '; y++ {
			b.WriteByte(caseByte(raw[y], mode))
		}
	}
	return b.String()
}

// matchName compares an 11-byte directory-entry name against an 11-byte
// mask, case-insensitively, where '?' in the mask matches any byte.
func matchName(name, mask [11]byte) bool {
	for i := 0; i < 11; i++ {
		if mask[i] == '?' {
			continue
		}
		if toUpperByte(name[i]) != toUpperByte(mask[i]) {
			return false
		}
	}
	return true
}

// matchAttributes applies the fatr1 required/forbidden bit checks against
// a candidate's directory/writable status.
func matchAttributes(fatr1 byte, isDir, writable bool) bool {
	fatr1 &^= AttrNoHidden | AttrNoArchived
	if fatr1&(AttrHidden|AttrArchived) != 0 {
		return false
	}
	if fatr1&AttrProtect != 0 && writable {
		return false
	}
	if fatr1&AttrNoProtect != 0 && !writable {
		return false
	}
	if fatr1&AttrSubdir != 0 && !isDir {
		return false
	}
	if fatr1&AttrNoSubdir != 0 && isDir {
		return false
	}
	return true
}
