package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/tugtainer/pkg/types"
)

var (
	bucketHosts      = []byte("hosts")
	bucketContainers = []byte("containers")
)

const containerKeySep = byte(0)

// BoltStore implements Store on top of a single bbolt file, grounded in
// the teacher's pkg/storage.BoltStore: one bucket per entity, JSON-
// encoded values, a fresh transaction per call.
type BoltStore struct {
	db           *bolt.DB
	selfHostID   string
	selfName     string
}

// Config selects the self-identity pair GetSelfContainerRow resolves
// against; both empty means the controller never resolves a self row
// (e.g. running outside any monitored host).
type Config struct {
	SelfHostID string
	SelfName   string
}

// NewBoltStore opens (creating if absent) a bbolt file under dataDir and
// ensures both buckets exist.
func NewBoltStore(dataDir string, cfg Config) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "tugtainer.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketHosts, bucketContainers} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db, selfHostID: cfg.SelfHostID, selfName: cfg.SelfName}, nil
}

var _ Store = (*BoltStore)(nil)

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func containerKey(hostID, name string) []byte {
	key := make([]byte, 0, len(hostID)+1+len(name))
	key = append(key, hostID...)
	key = append(key, containerKeySep)
	key = append(key, name...)
	return key
}

func (s *BoltStore) GetEnabledHosts(ctx context.Context) ([]types.Host, error) {
	hosts, err := s.ListHosts(ctx)
	if err != nil {
		return nil, err
	}
	enabled := make([]types.Host, 0, len(hosts))
	for _, h := range hosts {
		if h.Enabled {
			enabled = append(enabled, h)
		}
	}
	return enabled, nil
}

func (s *BoltStore) ListHosts(ctx context.Context) ([]types.Host, error) {
	var hosts []types.Host
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketHosts)
		return b.ForEach(func(_, v []byte) error {
			var h types.Host
			if err := json.Unmarshal(v, &h); err != nil {
				return err
			}
			hosts = append(hosts, h)
			return nil
		})
	})
	return hosts, err
}

func (s *BoltStore) GetHost(ctx context.Context, id string) (types.Host, bool, error) {
	var h types.Host
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketHosts)
		data := b.Get([]byte(id))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &h)
	})
	return h, found, err
}

func (s *BoltStore) PutHost(ctx context.Context, host types.Host) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketHosts)
		data, err := json.Marshal(host)
		if err != nil {
			return err
		}
		return b.Put([]byte(host.ID), data)
	})
}

func (s *BoltStore) DeleteHost(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketHosts).Delete([]byte(id))
	})
}

func (s *BoltStore) GetHostContainers(ctx context.Context, hostID string) ([]types.ContainerPolicy, error) {
	var rows []types.ContainerPolicy
	prefix := append([]byte(hostID), containerKeySep)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketContainers).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var row types.ContainerPolicy
			if err := json.Unmarshal(v, &row); err != nil {
				return err
			}
			rows = append(rows, row)
		}
		return nil
	})
	return rows, err
}

func (s *BoltStore) GetContainer(ctx context.Context, hostID, name string) (*types.ContainerPolicy, error) {
	var row *types.ContainerPolicy
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketContainers).Get(containerKey(hostID, name))
		if data == nil {
			return nil
		}
		row = &types.ContainerPolicy{}
		return json.Unmarshal(data, row)
	})
	return row, err
}

// InsertOrUpdateContainer is the engine's only write path: merge patch's
// non-nil fields into the existing row, or create one seeded from patch
// if none exists yet (rows are never created by the engine otherwise).
func (s *BoltStore) InsertOrUpdateContainer(ctx context.Context, hostID, name string, patch ContainerPatch) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketContainers)
		key := containerKey(hostID, name)

		var row types.ContainerPolicy
		if data := b.Get(key); data != nil {
			if err := json.Unmarshal(data, &row); err != nil {
				return err
			}
		} else {
			row = types.ContainerPolicy{HostID: hostID, Name: name, CreatedAt: time.Now()}
		}

		applyPatch(&row, patch)
		row.ModifiedAt = time.Now()

		data, err := json.Marshal(row)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

func applyPatch(row *types.ContainerPolicy, patch ContainerPatch) {
	if patch.CheckEnabled != nil {
		row.CheckEnabled = *patch.CheckEnabled
	}
	if patch.UpdateEnabled != nil {
		row.UpdateEnabled = *patch.UpdateEnabled
	}
	if patch.UpdateAvailable != nil {
		row.UpdateAvailable = *patch.UpdateAvailable
	}
	if patch.ImageID != nil {
		row.ImageID = *patch.ImageID
	}
	if patch.LocalDigests != nil {
		row.LocalDigests = patch.LocalDigests
	}
	if patch.RemoteDigests != nil {
		row.RemoteDigests = patch.RemoteDigests
	}
	if patch.CheckedAt != nil {
		row.CheckedAt = *patch.CheckedAt
	}
	if patch.UpdatedAt != nil {
		row.UpdatedAt = *patch.UpdatedAt
	}
}

func (s *BoltStore) GetSelfContainerRow(ctx context.Context) (*types.ContainerPolicy, error) {
	if s.selfHostID == "" && s.selfName == "" {
		return nil, nil
	}
	return s.GetContainer(ctx, s.selfHostID, s.selfName)
}
