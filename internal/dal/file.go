package dal

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// FileSubscribers keeps the subscriber set in a flat file, one chat id per line.
// The file is read in full on every call and rewritten in full on every mutation.
type FileSubscribers struct {
	path string

	syncDir func(dir string) error
	mx      *sync.RWMutex
}

func NewFileSubscribers(path string) (*FileSubscribers, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil { //nolint:mnd
		return nil, newStorageError("init", path, err)
	}

	return &FileSubscribers{
		path:    path,
		syncDir: syncDir,
		mx:      &sync.RWMutex{},
	}, nil
}

func (s *FileSubscribers) GetAll() ([]ChatID, error) {
	s.mx.RLock()
	defer s.mx.RUnlock()

	return s.load()
}

func (s *FileSubscribers) Exists(chatID ChatID) (bool, error) {
	s.mx.RLock()
	defer s.mx.RUnlock()

	ids, err := s.load()
	if err != nil {
		return false, err
	}
	return slices.Contains(ids, chatID), nil
}

func (s *FileSubscribers) Add(chatID ChatID) (bool, error) {
	s.mx.Lock()
	defer s.mx.Unlock()

	ids, err := s.load()
	if err != nil {
		return false, err
	}
	if slices.Contains(ids, chatID) {
		return false, nil
	}

	if err := s.save(append(ids, chatID)); err != nil {
		return false, err
	}
	return true, nil
}

func (s *FileSubscribers) Remove(chatID ChatID) (bool, error) {
	s.mx.Lock()
	defer s.mx.Unlock()

	ids, err := s.load()
	if err != nil {
		return false, err
	}
	idx := slices.Index(ids, chatID)
	if idx < 0 {
		return false, nil
	}

	if err := s.save(slices.Delete(ids, idx, idx+1)); err != nil {
		return false, err
	}
	return true, nil
}

func (s *FileSubscribers) load() ([]ChatID, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []ChatID{}, nil
	}
	if err != nil {
		return nil, newStorageError("open", s.path, err)
	}
	defer f.Close()

	res := make([]ChatID, 0)
	seen := make(map[ChatID]struct{})
	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		id, err := ParseChatID(text)
		if err != nil {
			return nil, newStorageError("parse", s.path, fmt.Errorf("line %d: %w", line, err))
		}
		// hand-edited files may carry duplicates
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		res = append(res, id)
	}
	if err := scanner.Err(); err != nil {
		return nil, newStorageError("read", s.path, err)
	}

	return res, nil
}

// save writes ids to a temp file next to the target and renames it over the target,
// so readers see either the old or the new content.
func (s *FileSubscribers) save(ids []ChatID) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return newStorageError("write", s.path, err)
	}
	tmpPath := tmp.Name()

	w := bufio.NewWriter(tmp)
	for _, id := range ids {
		_, _ = w.WriteString(id.String())
		_ = w.WriteByte('\n')
	}

	err = w.Flush()
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmpPath, s.path)
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return newStorageError("write", s.path, err)
	}

	// the rename is durable only once the directory entry is flushed
	if err := s.syncDir(filepath.Dir(s.path)); err != nil {
		return newStorageError("sync", s.path, err)
	}

	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open dir: %w", err)
	}
	defer d.Close()

	if err := d.Sync(); err != nil {
		return fmt.Errorf("sync dir: %w", err)
	}
	return nil
}
