package main

import "go.etcd.io/bbolt"

const storeBucketKV = "kv"

type kvStore struct {
	db *bbolt.DB
}

func openStore(path string) (*kvStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(t *bbolt.Tx) error {
		_, err := t.CreateBucketIfNotExists([]byte(storeBucketKV))
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &kvStore{db: db}, nil
}

func (s *kvStore) Get(key string) ([]byte, error) {
	var value []byte
	if err := s.db.View(func(t *bbolt.Tx) error {
		if bucket := t.Bucket([]byte(storeBucketKV)); bucket != nil {
			if b := bucket.Get([]byte(key)); b != nil {
				value = append([]byte{}, b...)
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return value, nil
}

func (s *kvStore) Put(key string, value []byte) error {
	return s.db.Update(func(t *bbolt.Tx) error {
		bucket, err := t.CreateBucketIfNotExists([]byte(storeBucketKV))
		if err != nil {
			return err
		}
		return bucket.Put([]byte(key), value)
	})
}

func (s *kvStore) Delete(key string) error {
	return s.db.Update(func(t *bbolt.Tx) error {
		if bucket := t.Bucket([]byte(storeBucketKV)); bucket != nil {
			return bucket.Delete([]byte(key))
		}
		return nil
	})
}

func (s *kvStore) Close() error {
	return s.db.Close()
}
