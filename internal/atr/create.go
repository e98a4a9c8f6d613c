package atr

import "os"

// create opens (creating if necessary) path read/write and returns an
// Image with zeroed geometry, ready for PercomSet + Format.
func create(path string, full13Force bool) (*Image, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, wrapErr("create", err)
	}
	return &Image{f: f, full13Force: full13Force}, nil
}
