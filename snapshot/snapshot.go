// Package snapshot persists the tuples of engine spaces into a bolt
// file and streams them back during recovery. It is the host side of
// checkpointing: the engine core itself stays volatile.
package snapshot

import (
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/tupelodb/tupelo"
)

type Options struct {
	// Logf receives progress messages. Nil disables logging.
	Logf func(format string, args ...any)

	// IsTesting trades durability for speed.
	IsTesting bool
}

func (opt *Options) logf(format string, args ...any) {
	if opt.Logf != nil {
		opt.Logf(format, args...)
	}
}

var (
	metaBucket = []byte("meta")
	lsnKey     = []byte("lsn")
)

func spaceBucketName(id uint32) []byte {
	return []byte(fmt.Sprintf("s_%d", id))
}

func open(path string, opt Options) (*bbolt.DB, error) {
	bopt := *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
	}
	db, err := bbolt.Open(path, 0666, &bopt)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return db, nil
}

// Save writes the tuples of every space, walking each primary key, plus
// the engine LSN of the checkpoint.
func Save(path string, lsn int64, spaces []*tupelo.Space, opt Options) error {
	db, err := open(path, opt)
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Update(func(btx *bbolt.Tx) error {
		mb, err := btx.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return err
		}
		if err := mb.Put(lsnKey, binary.BigEndian.AppendUint64(nil, uint64(lsn))); err != nil {
			return err
		}
		for _, sp := range spaces {
			b, err := btx.CreateBucketIfNotExists(spaceBucketName(sp.ID))
			if err != nil {
				return err
			}
			it, err := sp.PrimaryKey().Iterator(tupelo.IterAll, nil)
			if err != nil {
				return err
			}
			var seq uint64
			for t := it.Next(); t != nil; t = it.Next() {
				key := binary.BigEndian.AppendUint64(nil, seq)
				seq++
				if err := b.Put(key, t.Data()); err != nil {
					return err
				}
			}
			opt.logf("snapshot: saved %d tuples of space %q", seq, sp.Name)
		}
		return nil
	})
}

// Load feeds the saved tuples of every listed space back through the
// space replace pipeline and returns the checkpoint LSN. Intended to
// run between BeginRecoverSnapshot and EndRecoverSnapshot, while
// replace is still in its bookkeeping mode.
func Load(path string, spaces map[uint32]*tupelo.Space, opt Options) (int64, error) {
	db, err := open(path, opt)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	var lsn int64
	err = db.View(func(btx *bbolt.Tx) error {
		mb := btx.Bucket(metaBucket)
		if mb == nil {
			return fmt.Errorf("snapshot: %s has no meta bucket", path)
		}
		raw := mb.Get(lsnKey)
		if len(raw) != 8 {
			return fmt.Errorf("snapshot: %s has a malformed lsn", path)
		}
		lsn = int64(binary.BigEndian.Uint64(raw))

		for id, sp := range spaces {
			b := btx.Bucket(spaceBucketName(id))
			if b == nil {
				continue
			}
			var n int
			err := b.ForEach(func(k, v []byte) error {
				t, err := sp.Format().NewTuple(v)
				if err != nil {
					return err
				}
				if _, err := sp.Replace(nil, t, tupelo.DupInsert); err != nil {
					return err
				}
				n++
				return nil
			})
			if err != nil {
				return err
			}
			opt.logf("snapshot: loaded %d tuples into space %q", n, sp.Name)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return lsn, nil
}
