package credential

import (
	"context"
	"errors"
	"strings"
	"sync"

	"recipe-content-studio/internal/pkg/common"

	"go.uber.org/zap"
)

// Decision 閘門判斷結果
type Decision int

const (
	Proceed Decision = iota
	Blocked
)

func (d Decision) String() string {
	if d == Blocked {
		return "blocked"
	}
	return "proceed"
}

// Port 外部憑證子系統：查詢是否已選擇、開啟選擇流程
type Port interface {
	HasSelected(ctx context.Context) (bool, error)
	OpenSelection(ctx context.Context, choice string) error
}

// ResumeFunc 憑證選擇成功後要恢復的動作
type ResumeFunc func(ctx context.Context) error

// Gate 在呼叫需要憑證的動作之前確認憑證存在
type Gate struct {
	port Port

	mu      sync.Mutex
	pending ResumeFunc
}

// NewGate 創建憑證閘門
func NewGate(port Port) *Gate {
	return &Gate{port: port}
}

// Check 不需要憑證時直接放行；否則查詢 port，未選擇時記錄 resume 並回傳 Blocked。
// 查詢失敗視同未選擇。
func (g *Gate) Check(ctx context.Context, requiresCredential bool, resume ResumeFunc) Decision {
	if !requiresCredential {
		return Proceed
	}

	ok, err := g.port.HasSelected(ctx)
	if err != nil {
		common.LogWarn("查詢憑證狀態失敗", zap.Error(err))
	}
	if err == nil && ok {
		return Proceed
	}

	g.Block(resume)
	return Blocked
}

// Block 直接記錄待恢復的動作（例如遠端回報權限不足時）
func (g *Gate) Block(resume ResumeFunc) {
	g.mu.Lock()
	g.pending = resume
	g.mu.Unlock()
}

// ResolveSelection 執行選擇流程；成功時恰好執行一次已記錄的動作，失敗時回傳 SelectionError 且不重試
func (g *Gate) ResolveSelection(ctx context.Context, choice string) error {
	g.mu.Lock()
	resume := g.pending
	g.pending = nil
	g.mu.Unlock()

	if err := g.port.OpenSelection(ctx, choice); err != nil {
		if common.IsSelectionError(err) {
			return err
		}
		return common.NewSelectionError("憑證選擇失敗", err)
	}

	if resume == nil {
		return nil
	}
	return resume(ctx)
}

// Abandon 放棄選擇，丟棄待恢復的動作
func (g *Gate) Abandon() {
	g.mu.Lock()
	g.pending = nil
	g.mu.Unlock()
}

// Pending 是否有等待憑證的動作
func (g *Gate) Pending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending != nil
}

// SessionPort 以 KeyStore 實作的工作階段憑證 port
type SessionPort struct {
	store     KeyStore
	sessionID string
}

// NewSessionPort 創建工作階段憑證 port
func NewSessionPort(store KeyStore, sessionID string) *SessionPort {
	return &SessionPort{store: store, sessionID: sessionID}
}

// HasSelected 是否已選擇 API key
func (p *SessionPort) HasSelected(ctx context.Context) (bool, error) {
	return p.store.HasAPIKey(ctx, p.sessionID)
}

// OpenSelection 驗證並保存使用者提供的 API key
func (p *SessionPort) OpenSelection(ctx context.Context, choice string) error {
	key := strings.TrimSpace(choice)
	if key == "" {
		return common.NewSelectionError("API key 不可為空", nil)
	}
	if len(key) < 10 {
		return common.NewSelectionError("API key 長度過短", nil)
	}
	if err := p.store.SetAPIKey(ctx, p.sessionID, key); err != nil {
		return common.NewSelectionError("無法保存 API key", err)
	}
	common.LogInfo("工作階段已選擇 API key", zap.String("session_id", p.sessionID))
	return nil
}

// SelectedKey 取得已選擇的 API key，未選擇時回傳空字串
func (p *SessionPort) SelectedKey(ctx context.Context) (string, error) {
	key, err := p.store.GetAPIKey(ctx, p.sessionID)
	if errors.Is(err, ErrKeyNotFound) {
		return "", nil
	}
	return key, err
}

// Clear 移除工作階段的 API key
func (p *SessionPort) Clear(ctx context.Context) error {
	return p.store.DeleteAPIKey(ctx, p.sessionID)
}
