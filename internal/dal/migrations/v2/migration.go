package v2

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const subscribersBucket = "subscribers"

// Migration copies a flat subscriber list, one chat id per line, into the subscribers bucket.
// Chats already present keep their subscription time.
type Migration struct {
	path string
	now  func() time.Time
}

func New(path string, now func() time.Time) *Migration {
	return &Migration{path: path, now: now}
}

func (m *Migration) Version() int {
	return 2 //nolint:mnd // it's ok
}

func (m *Migration) Description() string {
	return "Import subscribers from flat file"
}

// Up imports nothing when the path is unset or the file does not exist.
func (m *Migration) Up(tx *bbolt.Tx) error {
	if m.path == "" {
		return nil
	}

	ids, err := m.read()
	if err != nil {
		return err
	}

	b, err := tx.CreateBucketIfNotExists([]byte(subscribersBucket))
	if err != nil {
		return fmt.Errorf("create subscribers bucket: %w", err)
	}

	subscribedAt := []byte(m.now().UTC().Format(time.RFC3339))
	for _, id := range ids {
		key := []byte(strconv.FormatInt(id, 10))
		if b.Get(key) != nil {
			continue
		}
		if err := b.Put(key, subscribedAt); err != nil {
			return fmt.Errorf("put subscriber %d: %w", id, err)
		}
	}
	return nil
}

func (m *Migration) read() ([]int64, error) {
	f, err := os.Open(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", m.path, err)
	}
	defer f.Close()

	var res []int64
	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		id, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s line %d: %w", m.path, line, err)
		}
		res = append(res, id)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", m.path, err)
	}

	return res, nil
}
