package journal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/ecopia-map/octree_indexer/internal/octree"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

const DefaultFileName = ".octree_journal.db"

var (
	nodesBucket = []byte("nodes")
	metaBucket  = []byte("meta")
	buildKey    = []byte("build")
)

// Build parameters a journal was written for. A run can only take over the records of a
// journal written with the same parameters.
type BuildInfo struct {
	Source           string `json:"source"`
	Format           string `json:"format"`
	BaseName         string `json:"base_name"`
	TargetPointCount int64  `json:"target_point_count"`
	MaxDepth         int    `json:"max_depth"`
}

// Records completed nodes in a bbolt database. Every record is committed before the call returns.
type Journal struct {
	db *bolt.DB
}

func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "cannot create folder of journal %s", path)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open journal %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(nodesBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(metaBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "cannot initialize journal %s", path)
	}
	return &Journal{db: db}, nil
}

// Drops every record and binds the journal to a new build
func (j *Journal) Reset(info BuildInfo) error {
	value, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(nodesBucket); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		if _, err := tx.CreateBucket(nodesBucket); err != nil {
			return err
		}
		return tx.Bucket(metaBucket).Put(buildKey, value)
	})
}

// Fails if the journal records nodes of a build with other parameters. A journal without build
// information is bound to the given one.
func (j *Journal) Check(info BuildInfo) error {
	var recorded *BuildInfo
	err := j.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(metaBucket).Get(buildKey)
		if value == nil {
			return nil
		}
		recorded = &BuildInfo{}
		return json.Unmarshal(value, recorded)
	})
	if err != nil {
		return errors.Wrap(err, "cannot read journal build information")
	}
	if recorded == nil {
		return j.Reset(info)
	}
	if *recorded != info {
		return errors.Errorf("journal was written for another build: %+v", *recorded)
	}
	return nil
}

func (j *Journal) Completed(nodePath string) (*octree.NodeRecord, bool, error) {
	var record *octree.NodeRecord
	err := j.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(nodesBucket).Get(nodeKey(nodePath))
		if value == nil {
			return nil
		}
		record = &octree.NodeRecord{}
		return json.Unmarshal(value, record)
	})
	if err != nil {
		return nil, false, errors.Wrapf(err, "cannot read journal record of node %q", nodePath)
	}
	return record, record != nil, nil
}

func (j *Journal) MarkCompleted(record *octree.NodeRecord) error {
	value, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(nodesBucket).Put(nodeKey(record.Path), value)
	})
}

// Number of completed nodes
func (j *Journal) Len() (int, error) {
	count := 0
	err := j.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(nodesBucket).ForEach(func(_, _ []byte) error {
			count++
			return nil
		})
	})
	return count, err
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// bbolt keys cannot be empty, the root path is
func nodeKey(nodePath string) []byte {
	return []byte("n" + nodePath)
}
