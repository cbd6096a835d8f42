package v1

import (
	"go.etcd.io/bbolt"
)

const subscribersBucket = "subscribers"

// Migration creates the subscribers bucket.
type Migration struct{}

func New() *Migration {
	return &Migration{}
}

func (m *Migration) Version() int {
	return 1
}

func (m *Migration) Description() string {
	return "Create subscribers bucket"
}

func (m *Migration) Up(tx *bbolt.Tx) error {
	_, err := tx.CreateBucketIfNotExists([]byte(subscribersBucket))
	return err //nolint:wrapcheck // it's ok
}
