package dal

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrStorage is matched by every *StorageError.
var ErrStorage = errors.New("subscriber storage")

// ChatID identifies a chat that receives announcements.
type ChatID int64

func (id ChatID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

func ParseChatID(s string) (ChatID, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse chat id %q: %w", s, err)
	}
	return ChatID(id), nil
}

// StorageError is returned by subscriber stores on I/O or decoding failures.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func newStorageError(op, path string, err error) *StorageError {
	return &StorageError{Op: op, Path: path, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage //nolint:errorlint // sentinel identity
}
