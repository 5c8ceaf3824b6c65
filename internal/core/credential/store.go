package credential

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrKeyNotFound 工作階段尚未選擇 API key
var ErrKeyNotFound = errors.New("api key not found")

// KeyStore 以工作階段為單位保存使用者選擇的 API key
type KeyStore interface {
	// SetAPIKey 設定工作階段的 API key
	SetAPIKey(ctx context.Context, sessionID, apiKey string) error
	// GetAPIKey 取得工作階段的 API key，不存在時回傳 ErrKeyNotFound
	GetAPIKey(ctx context.Context, sessionID string) (string, error)
	// DeleteAPIKey 刪除工作階段的 API key
	DeleteAPIKey(ctx context.Context, sessionID string) error
	// HasAPIKey 檢查工作階段是否已選擇 API key
	HasAPIKey(ctx context.Context, sessionID string) (bool, error)
}

type storedKey struct {
	apiKey    string
	expiresAt time.Time
}

// MemoryKeyStore 記憶體版 KeyStore
type MemoryKeyStore struct {
	keys map[string]storedKey
	ttl  time.Duration
	now  func() time.Time
	mu   sync.RWMutex
}

// NewMemoryKeyStore 創建記憶體版 KeyStore；ttl <= 0 表示不過期
func NewMemoryKeyStore(ttl time.Duration) *MemoryKeyStore {
	return &MemoryKeyStore{
		keys: make(map[string]storedKey),
		ttl:  ttl,
		now:  time.Now,
	}
}

// SetAPIKey 設定工作階段的 API key
func (s *MemoryKeyStore) SetAPIKey(ctx context.Context, sessionID, apiKey string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := storedKey{apiKey: apiKey}
	if s.ttl > 0 {
		entry.expiresAt = s.now().Add(s.ttl)
	}
	s.keys[sessionID] = entry
	return nil
}

// GetAPIKey 取得工作階段的 API key
func (s *MemoryKeyStore) GetAPIKey(ctx context.Context, sessionID string) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.keys[sessionID]
	if !ok || (!entry.expiresAt.IsZero() && s.now().After(entry.expiresAt)) {
		return "", ErrKeyNotFound
	}
	return entry.apiKey, nil
}

// DeleteAPIKey 刪除工作階段的 API key
func (s *MemoryKeyStore) DeleteAPIKey(ctx context.Context, sessionID string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.keys, sessionID)
	return nil
}

// HasAPIKey 檢查工作階段是否已選擇 API key
func (s *MemoryKeyStore) HasAPIKey(ctx context.Context, sessionID string) (bool, error) {
	_, err := s.GetAPIKey(ctx, sessionID)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}
