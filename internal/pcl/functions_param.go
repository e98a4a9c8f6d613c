package pcl

import (
	"os"
	"path/filepath"

	"github.com/drac030/sio2go/internal/device"
)

func (s *Server) paramRead(unit *device.Unit, pb device.ParamBlock) {
	slot, ok := s.slot(pb.Handle)
	if !ok {
		unit.Status.Err = device.ErrBadHandle
		return
	}
	want := int64(pb.Faux())
	remaining := slot.size - slot.pos
	if slot.kind == entityDir {
		remaining = int64(len(slot.dir))*EntrySize - slot.pos
	}
	if remaining <= 0 {
		unit.Status.Err = device.ErrEOF
		setAuxSize(unit, 0)
		return
	}
	n := want
	if n > remaining {
		n = remaining
	}
	if n == remaining {
		unit.Status.Err = device.ErrLastPacket
	}
	setAuxSize(unit, int(n))
}

func (s *Server) paramWrite(unit *device.Unit, pb device.ParamBlock) {
	slot, ok := s.slot(pb.Handle)
	if !ok {
		unit.Status.Err = device.ErrBadHandle
		return
	}
	if slot.kind == entityDir {
		setAuxSize(unit, int(pb.Faux())) // silently discarded at R
		return
	}
	setAuxSize(unit, int(pb.Faux()))
}

func (s *Server) paramSeek(unit *device.Unit, pb device.ParamBlock) {
	slot, ok := s.slot(pb.Handle)
	if !ok {
		unit.Status.Err = device.ErrBadHandle
		return
	}
	pos := int64(pb.Faux())
	limit := slot.size
	if slot.kind == entityDir {
		limit = int64(len(slot.dir)) * EntrySize
	}
	appendMode := slot.fpmode&0x09 == 0x09
	if pos > limit && !appendMode {
		unit.Status.Err = device.ErrSeekRange
		return
	}
	slot.pos = pos
}

func (s *Server) doClose(unit *device.Unit, pb device.ParamBlock) {
	slot, ok := s.slot(pb.Handle)
	if !ok {
		unit.Status.Err = device.ErrBadHandle
		return
	}
	s.freeHandle(int(pb.Handle))
	_ = slot
}

func matchingChildren(dirPath string, mask [11]byte, fatr1 byte, mode CaseMode) ([]os.DirEntry, []string, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, nil, err
	}
	var matched []os.DirEntry
	var hostNames []string
	for _, e := range entries {
		if !validateDOSName(e.Name(), mode) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		isDir := e.IsDir()
		if !matchName(ugefina(e.Name()), mask) {
			continue
		}
		if !matchAttributes(fatr1, isDir, writable(info)) {
			continue
		}
		matched = append(matched, e)
		hostNames = append(hostNames, e.Name())
	}
	return matched, hostNames, nil
}

func (s *Server) doRename(unit *device.Unit, pb device.ParamBlock) {
	dirPath, err := resolvePath(unit.PCLRoot, unit.PCLCwd, fieldString(pb.Path[:]), s.Case)
	if err != nil {
		unit.Status.Err = device.ErrInvalidPath
		return
	}
	mask := nameField11(pb.Name)
	target := nameField11(pb.Names)

	_, hostNames, err := matchingChildren(dirPath, mask, 0, s.Case)
	if err != nil {
		unit.Status.Err = device.ErrNotFound
		return
	}
	if len(hostNames) == 0 {
		unit.Status.Err = device.ErrNotFound
		return
	}
	for _, name := range hostNames {
		oldSlot := ugefina(name)
		var newSlot [11]byte
		for i := 0; i < 11; i++ {
			if target[i] == '?' {
				newSlot[i] = oldSlot[i]
			} else {
				newSlot[i] = target[i]
			}
		}
		newName := uexpand(newSlot, s.Case)
		os.Rename(filepath.Join(dirPath, name), filepath.Join(dirPath, newName))
	}
	unit.Status.Err = device.ErrSuccess
}

func (s *Server) doRemove(unit *device.Unit, pb device.ParamBlock) {
	dirPath, err := resolvePath(unit.PCLRoot, unit.PCLCwd, fieldString(pb.Path[:]), s.Case)
	if err != nil {
		unit.Status.Err = device.ErrInvalidPath
		return
	}
	mask := nameField11(pb.Name)
	_, hostNames, err := matchingChildren(dirPath, mask, AttrNoSubdir, s.Case)
	if err != nil || len(hostNames) == 0 {
		unit.Status.Err = device.ErrNotFound
		return
	}
	for _, name := range hostNames {
		os.Remove(filepath.Join(dirPath, name))
	}
	unit.Status.Err = device.ErrSuccess
}

func (s *Server) doChmod(unit *device.Unit, pb device.ParamBlock) {
	if pb.Fatr2&(AttrSubdir|AttrNoSubdir) != 0 {
		unit.Status.Err = device.ErrUnsupportedMode
		return
	}
	dirPath, err := resolvePath(unit.PCLRoot, unit.PCLCwd, fieldString(pb.Path[:]), s.Case)
	if err != nil {
		unit.Status.Err = device.ErrInvalidPath
		return
	}
	mask := nameField11(pb.Name)
	matched, hostNames, err := matchingChildren(dirPath, mask, 0, s.Case)
	if err != nil || len(hostNames) == 0 {
		unit.Status.Err = device.ErrNotFound
		return
	}
	for i, name := range hostNames {
		info, ierr := matched[i].Info()
		if ierr != nil {
			continue
		}
		mode := info.Mode()
		switch {
		case pb.Fatr2&AttrProtect != 0:
			mode &^= 0o222
		case pb.Fatr2&AttrNoProtect != 0:
			mode |= 0o200
		}
		os.Chmod(filepath.Join(dirPath, name), mode)
	}
	unit.Status.Err = device.ErrSuccess
}

func (s *Server) doMkdir(unit *device.Unit, pb device.ParamBlock) {
	dirPath, err := resolvePath(unit.PCLRoot, unit.PCLCwd, fieldString(pb.Path[:]), s.Case)
	if err != nil {
		unit.Status.Err = device.ErrInvalidPath
		return
	}
	name := uexpand(nameField11(pb.Name), s.Case)
	if !validateDOSName(name, s.Case) {
		unit.Status.Err = device.ErrInvalidName
		return
	}
	full := filepath.Join(dirPath, name)
	if err := os.Mkdir(full, 0o755); err != nil {
		if os.IsExist(err) {
			unit.Status.Err = device.ErrExistsOrRO
		} else {
			unit.Status.Err = device.ErrInvalidPath
		}
		return
	}
	unit.Status.Err = device.ErrSuccess
}

func (s *Server) doRmdir(unit *device.Unit, pb device.ParamBlock) {
	dirPath, err := resolvePath(unit.PCLRoot, unit.PCLCwd, fieldString(pb.Path[:]), s.Case)
	if err != nil {
		unit.Status.Err = device.ErrInvalidPath
		return
	}
	name := uexpand(nameField11(pb.Name), s.Case)
	full := filepath.Join(dirPath, name)
	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			unit.Status.Err = device.ErrNotFound
		} else {
			unit.Status.Err = device.ErrDirNotEmpty
		}
		return
	}
	unit.Status.Err = device.ErrSuccess
}

func (s *Server) doChdir(unit *device.Unit, pb device.ParamBlock) {
	dirPath, err := resolvePath(unit.PCLRoot, unit.PCLCwd, fieldString(pb.Path[:]), s.Case)
	if err != nil {
		unit.Status.Err = device.ErrInvalidPath
		return
	}
	info, err := os.Stat(dirPath)
	if err != nil || !info.IsDir() {
		unit.Status.Err = device.ErrInvalidPath
		return
	}
	rel, err := filepath.Rel(unit.PCLRoot, dirPath)
	if err != nil {
		unit.Status.Err = device.ErrInvalidPath
		return
	}
	if rel == "." {
		rel = ""
	}
	unit.PCLCwd = rel
	unit.Status.Err = device.ErrSuccess
}

const volumeLabelFile = ".PCLINK.VOLUME.LABEL"

func (s *Server) doChvol(unit *device.Unit, pb device.ParamBlock) {
	label := make([]byte, 8)
	for i := range label {
		label[i] = ' '
	}
	copy(label, fieldString(pb.Path[:]))
	full := filepath.Join(unit.PCLRoot, volumeLabelFile)
	if err := os.WriteFile(full, label, 0o644); err != nil {
		unit.Status.Err = device.ErrIO
		return
	}
	unit.Status.Err = device.ErrSuccess
}
