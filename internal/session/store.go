package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-admin/internal/order"
	"github.com/redis/go-redis/v9"
)

var ErrDraftNotFound = errors.New("draft not found")

const (
	defaultDraftTTL      = 24 * time.Hour
	defaultSubmitLockTTL = 45 * time.Second
	scanBatch            = 100
)

// Store 按用户隔离的会话存储
// key 布局: admin:session:<uid>:draft:<id> / admin:session:<uid>:submit:<id>
type Store struct {
	rdb       *redis.Client
	draftTTL  time.Duration
	submitTTL time.Duration
}

// NewStore 创建会话存储
// submitTTL 必须大于平台请求超时，否则慢请求未返回时锁已过期
func NewStore(rdb *redis.Client, draftTTL, submitTTL time.Duration) *Store {
	if draftTTL <= 0 {
		draftTTL = defaultDraftTTL
	}
	if submitTTL <= 0 {
		submitTTL = defaultSubmitLockTTL
	}
	return &Store{rdb: rdb, draftTTL: draftTTL, submitTTL: submitTTL}
}

// SubmitTTL 提交锁过期时间
func (s *Store) SubmitTTL() time.Duration {
	return s.submitTTL
}

func userPrefix(userID string) string {
	return "admin:session:" + userID + ":"
}

func draftKey(userID, id string) string {
	return userPrefix(userID) + "draft:" + id
}

func submitKey(userID, id string) string {
	return userPrefix(userID) + "submit:" + id
}

// SaveDraft 保存订单草稿，每次保存刷新过期时间
func (s *Store) SaveDraft(ctx context.Context, userID string, f *order.Form) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("序列化草稿失败: %w", err)
	}
	if err := s.rdb.Set(ctx, draftKey(userID, f.ID), data, s.draftTTL).Err(); err != nil {
		return fmt.Errorf("保存草稿失败: %w", err)
	}
	return nil
}

// LoadDraft 读取订单草稿
func (s *Store) LoadDraft(ctx context.Context, userID, id string) (*order.Form, error) {
	data, err := s.rdb.Get(ctx, draftKey(userID, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("读取草稿失败: %w", err)
	}
	var f order.Form
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("解析草稿失败: %w", err)
	}
	return &f, nil
}

// DeleteDraft 删除草稿，订单提交成功后调用
func (s *Store) DeleteDraft(ctx context.Context, userID, id string) error {
	return s.rdb.Del(ctx, draftKey(userID, id)).Err()
}

// AcquireSubmit 提交锁，同一草稿同时只能有一个提交在进行
func (s *Store) AcquireSubmit(ctx context.Context, userID, id string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, submitKey(userID, id), time.Now().Unix(), s.submitTTL).Result()
	if err != nil {
		return false, fmt.Errorf("获取提交锁失败: %w", err)
	}
	return ok, nil
}

// ReleaseSubmit 释放提交锁
func (s *Store) ReleaseSubmit(ctx context.Context, userID, id string) error {
	return s.rdb.Del(ctx, submitKey(userID, id)).Err()
}

// Clear 清空用户的全部会话数据，平台返回401时调用
func (s *Store) Clear(ctx context.Context, userID string) (int, error) {
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, userPrefix(userID)+"*", scanBatch).Result()
		if err != nil {
			return removed, fmt.Errorf("扫描会话失败: %w", err)
		}
		if len(keys) > 0 {
			n, err := s.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("清理会话失败: %w", err)
			}
			removed += int(n)
		}
		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

// Ping 就绪检查
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
