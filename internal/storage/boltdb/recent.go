// Package boltdb stores the recently viewed list in an embedded BoltDB file,
// keeping the history on the device without a database server.
package boltdb

import (
	"context"
	"time"

	bolt "github.com/boltdb/bolt"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-session/internal/domain/product"
	"github.com/xenking/kart-session/internal/domain/recent"
)

var recentBucket = []byte("recent_products")

var _ recent.Store = (*RecentStore)(nil)

// RecentStore implements recent.Store on BoltDB. Keys are the JSON encoding
// of the product; values hold the view time.
type RecentStore struct {
	db *bolt.DB
}

// Open opens (or creates) the database at path and ensures the bucket
// exists.
func Open(path string) (*RecentStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(recentBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create bucket")
	}
	return &RecentStore{db: db}, nil
}

// Close releases the database file lock.
func (s *RecentStore) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is still open.
func (s *RecentStore) Ping(context.Context) error {
	return s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(recentBucket) == nil {
			return errors.New("recent bucket missing")
		}
		return nil
	})
}

func (s *RecentStore) Insert(_ context.Context, rp recent.RecentProduct) error {
	key := productKey(rp.Product)
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(recentBucket)
		if b.Get(key) != nil {
			return errors.Wrapf(recent.ErrDuplicateProduct, "%s", rp.Product)
		}
		return b.Put(key, encodeViewedAt(rp.ViewedAt))
	})
}

func (s *RecentStore) Update(_ context.Context, rp recent.RecentProduct) error {
	key := productKey(rp.Product)
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(recentBucket)
		if b.Get(key) == nil {
			return errors.Wrapf(recent.ErrNotFound, "%s", rp.Product)
		}
		return b.Put(key, encodeViewedAt(rp.ViewedAt))
	})
}

func (s *RecentStore) SelectAll(context.Context) (recent.RecentProducts, error) {
	var items []recent.RecentProduct
	if err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(recentBucket).ForEach(func(k, v []byte) error {
			rp, err := decodeRecent(k, v)
			if err != nil {
				return err
			}
			items = append(items, rp)
			return nil
		})
	}); err != nil {
		return recent.RecentProducts{}, errors.Wrap(err, "select recent products")
	}
	return recent.New(items...)
}

func (s *RecentStore) FindByProduct(_ context.Context, p product.Product) (recent.RecentProduct, error) {
	var rp recent.RecentProduct
	key := productKey(p)
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(recentBucket).Get(key)
		if v == nil {
			return errors.Wrapf(recent.ErrNotFound, "%s", p)
		}
		var err error
		rp, err = decodeRecent(key, v)
		return err
	})
	if err != nil {
		return recent.RecentProduct{}, err
	}
	return rp, nil
}

func productKey(p product.Product) []byte {
	var e jx.Encoder
	p.Encode(&e)
	return e.Bytes()
}

func encodeViewedAt(t time.Time) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("viewedAt")
	e.Str(t.UTC().Format(time.RFC3339Nano))
	e.ObjEnd()
	return e.Bytes()
}

func decodeRecent(k, v []byte) (recent.RecentProduct, error) {
	var rp recent.RecentProduct
	if err := rp.Product.Decode(jx.DecodeBytes(k)); err != nil {
		return rp, errors.Wrap(err, "decode key")
	}
	if err := jx.DecodeBytes(v).Obj(func(d *jx.Decoder, key string) error {
		if key != "viewedAt" {
			return d.Skip()
		}
		s, err := d.Str()
		if err != nil {
			return err
		}
		rp.ViewedAt, err = time.Parse(time.RFC3339Nano, s)
		return err
	}); err != nil {
		return rp, errors.Wrapf(err, "decode value of %s", rp.Product)
	}
	return rp, nil
}
