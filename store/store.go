// Package store 用 bolt 保存已结束对局的结算结果。
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/boltdb/bolt"

	"skirace/match"
)

var (
	resultBucket = []byte("result")
	playerBucket = []byte("player")
)

// ErrNotFound 没有该对局的记录
var ErrNotFound = errors.New("store: not found")

// BoltStore 实现 match.ResultSink
type BoltStore struct {
	db *bolt.DB
}

var _ match.ResultSink = (*BoltStore)(nil)

// Open 打开（必要时创建）数据库文件
func Open(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0666, nil)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(resultBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(playerBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

// SaveResults 以对局 id 为键写入结果，同时按 owner 建索引
func (s *BoltStore) SaveResults(ctx context.Context, r match.MatchResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(resultBucket).Put([]byte(r.MatchID), value); err != nil {
			return err
		}
		players := tx.Bucket(playerBucket)
		for _, res := range r.Results {
			if res.OwnerID == "" {
				continue
			}
			bkt, err := players.CreateBucketIfNotExists([]byte(res.OwnerID))
			if err != nil {
				return err
			}
			if err := bkt.Put([]byte(r.MatchID), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// Get 读取一局的结果
func (s *BoltStore) Get(matchID string) (match.MatchResult, error) {
	var r match.MatchResult
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(resultBucket).Get([]byte(matchID))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &r)
	})
	return r, err
}

// MatchesOf 某个用户参与过的对局 id（按字节序）
func (s *BoltStore) MatchesOf(ownerID string) ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(playerBucket).Bucket([]byte(ownerID))
		if bkt == nil {
			return nil
		}
		return bkt.ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	return ids, err
}

// Close 落盘并关闭
func (s *BoltStore) Close() error {
	if err := s.db.Sync(); err != nil {
		s.db.Close()
		return err
	}
	return s.db.Close()
}
