package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"

	"recipe-content-studio/internal/core/content"
	"recipe-content-studio/internal/core/credential"
	"recipe-content-studio/internal/infrastructure/metrics"
	"recipe-content-studio/internal/pkg/common"

	"go.uber.org/zap"
)

// ErrSuperseded 結果已被較新的操作取代，未套用到狀態
var ErrSuperseded = errors.New("operation superseded by a newer request")

// Phase 生成流程狀態
type Phase string

const (
	PhaseIdle                Phase = "idle"
	PhaseGeneratingText      Phase = "generating_text"
	PhaseGeneratingThumbnail Phase = "generating_thumbnail"
	PhaseCredentialPending   Phase = "credential_pending"
	PhaseReady               Phase = "ready"
	PhaseTextFailed          Phase = "text_failed"
)

// ImageMode 封面產生方式
type ImageMode string

const (
	ImageModeRemote ImageMode = "remote"
	ImageModeLocal  ImageMode = "local"
)

// ParseImageMode 解析封面產生方式
func ParseImageMode(s string) (ImageMode, error) {
	switch ImageMode(strings.TrimSpace(s)) {
	case ImageModeRemote:
		return ImageModeRemote, nil
	case ImageModeLocal:
		return ImageModeLocal, nil
	}
	return "", common.NewValidationError("未知的封面產生方式: " + s)
}

// TextGenerator 文字生成端
type TextGenerator interface {
	GenerateText(ctx context.Context, recipeName string, mode content.Mode, fields []content.Field) (*content.GeneratedContent, error)
}

// ImageGenerator 封面生成端，回傳可顯示的圖片 handle（data URI）
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt, recipeName string, ratio content.AspectRatio) (string, error)
}

// Options 生成流程依賴
type Options struct {
	Text  TextGenerator
	Image ImageGenerator // 遠端封面生成；nil 時一律使用本地
	Local ImageGenerator // 本地封面生成；兩者皆 nil 時不產生封面
	Gate  *credential.Gate
	// RequiresCredential 遠端封面是否需要使用者選擇的憑證
	RequiresCredential bool
	ImageMode          ImageMode
}

// Workflow 單一工作階段的生成流程狀態機。
// 鎖不跨網路呼叫；每個操作帶著 generation token，封面與描述操作另有各自的序號，
// 過期的結果回傳 ErrSuperseded。
type Workflow struct {
	text               TextGenerator
	remote             ImageGenerator
	local              ImageGenerator
	gate               *credential.Gate
	requiresCredential bool

	mu       sync.Mutex
	token    uint64
	thumbSeq uint64
	descSeq  uint64

	phase        Phase
	recipeName   string
	mode         content.Mode
	content      *content.GeneratedContent
	editable     string
	customPrompt string
	imageMode    ImageMode

	textErr        error
	thumbErr       error
	descErr        error
	thumbRunning   bool
	descRunning    bool
	thumbAttempted bool
}

// New 創建生成流程
func New(opts Options) *Workflow {
	mode := opts.ImageMode
	if mode == "" {
		mode = ImageModeRemote
	}
	gate := opts.Gate
	if gate == nil {
		gate = credential.NewGate(alwaysSelected{})
	}
	return &Workflow{
		text:               opts.Text,
		remote:             opts.Image,
		local:              opts.Local,
		gate:               gate,
		requiresCredential: opts.RequiresCredential,
		phase:              PhaseIdle,
		mode:               content.ModeStandard,
		imageMode:          mode,
	}
}

// alwaysSelected 未注入閘門時使用，視為已有憑證
type alwaysSelected struct{}

func (alwaysSelected) HasSelected(context.Context) (bool, error)  { return true, nil }
func (alwaysSelected) OpenSelection(context.Context, string) error { return nil }

// setPhase 需持有鎖
func (w *Workflow) setPhase(p Phase) {
	if w.phase == p {
		return
	}
	w.phase = p
	metrics.RecordTransition(string(p))
}

// current 需持有鎖
func (w *Workflow) current(tok uint64) bool {
	return tok == w.token
}

func superseded(op string) error {
	metrics.RecordSuperseded(op)
	return ErrSuperseded
}

// Generate 產生完整內容，成功後接著產生封面。
// 封面失敗只寫入封面錯誤欄位，不影響回傳值。
func (w *Workflow) Generate(ctx context.Context, recipeName string, mode content.Mode) error {
	name, err := content.NormalizeRecipeName(recipeName)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.token++
	tok := w.token
	w.thumbSeq++
	w.descSeq++
	w.recipeName = name
	w.mode = mode
	w.content = nil
	w.editable = ""
	w.textErr = nil
	w.thumbErr = nil
	w.descErr = nil
	w.thumbRunning = false
	w.descRunning = false
	w.thumbAttempted = false
	w.setPhase(PhaseGeneratingText)
	w.mu.Unlock()

	// 上一輪等待中的憑證恢復不再有效
	w.gate.Abandon()

	common.LogInfo("開始生成內容",
		zap.String("recipe", name),
		zap.String("mode", string(mode)),
		zap.Uint64("token", tok),
	)

	generated, err := w.text.GenerateText(ctx, name, mode, nil)

	w.mu.Lock()
	if !w.current(tok) {
		w.mu.Unlock()
		return superseded("generate")
	}
	if err != nil {
		w.textErr = err
		w.setPhase(PhaseTextFailed)
		w.mu.Unlock()
		common.LogError("文字內容生成失敗", zap.String("recipe", name), zap.Error(err))
		return err
	}
	w.content = generated
	w.editable = generated.YoutubeDescription
	w.thumbSeq++
	seq := w.thumbSeq
	w.mu.Unlock()

	if err := w.runThumbnail(ctx, tok, seq, true); errors.Is(err, ErrSuperseded) {
		return err
	}
	return nil
}

// RegenerateThumbnail 只重新產生封面
func (w *Workflow) RegenerateThumbnail(ctx context.Context, useCustomPrompt bool) error {
	w.mu.Lock()
	if w.content == nil {
		w.mu.Unlock()
		return common.NewPreconditionError("尚未產生內容，無法重新產生封面")
	}
	tok := w.token
	w.thumbSeq++
	seq := w.thumbSeq
	w.mu.Unlock()

	w.gate.Abandon()
	return w.runThumbnail(ctx, tok, seq, useCustomPrompt)
}

// thumbnailPrompt 優先順序：自訂提示詞 → 封面描述 → 食譜名稱；需持有鎖
func (w *Workflow) thumbnailPrompt(useCustom bool) string {
	if useCustom {
		if p := strings.TrimSpace(w.customPrompt); p != "" {
			return p
		}
	}
	if w.content != nil {
		if d := strings.TrimSpace(w.content.ThumbnailDescription); d != "" {
			return d
		}
	}
	return w.recipeName
}

// runThumbnail 封面步驟：遠端模式先經過憑證閘門，權限錯誤轉為等待憑證
func (w *Workflow) runThumbnail(ctx context.Context, tok, seq uint64, useCustom bool) error {
	w.mu.Lock()
	if !w.current(tok) || seq != w.thumbSeq || w.content == nil {
		w.mu.Unlock()
		return superseded("thumbnail")
	}

	gen, remote := w.local, false
	if w.imageMode == ImageModeRemote && w.remote != nil {
		gen, remote = w.remote, true
	}
	if gen == nil {
		w.setPhase(PhaseReady)
		w.mu.Unlock()
		return nil
	}

	prompt := w.thumbnailPrompt(useCustom)
	name := w.recipeName
	ratio := content.RatioFor(w.mode)
	w.thumbErr = nil
	w.thumbRunning = true
	w.setPhase(PhaseGeneratingThumbnail)
	w.mu.Unlock()

	resume := func(ctx context.Context) error {
		return w.resumeThumbnail(ctx, tok, useCustom)
	}

	if w.gate.Check(ctx, remote && w.requiresCredential, resume) == credential.Blocked {
		w.mu.Lock()
		defer w.mu.Unlock()
		// 閘門中的 resume 可能已被較新的步驟覆蓋，這裡不清除；過期的 resume 執行時是 no-op
		if !w.current(tok) || seq != w.thumbSeq {
			return superseded("thumbnail")
		}
		w.thumbRunning = false
		w.setPhase(PhaseCredentialPending)
		common.LogInfo("封面生成等待使用者選擇憑證", zap.String("recipe", name))
		return nil
	}

	uri, err := gen.GenerateImage(ctx, prompt, name, ratio)

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.current(tok) || seq != w.thumbSeq {
		return superseded("thumbnail")
	}
	w.thumbRunning = false
	w.thumbAttempted = true

	if err != nil {
		if remote && common.IsPermissionError(err) {
			w.gate.Block(resume)
			w.setPhase(PhaseCredentialPending)
			common.LogWarn("封面生成權限不足，等待使用者選擇憑證", zap.String("recipe", name), zap.Error(err))
			return err
		}
		w.thumbErr = err
		w.setPhase(PhaseReady)
		common.LogError("封面生成失敗", zap.String("recipe", name), zap.Error(err))
		return err
	}

	w.content.ThumbnailImageURL = uri
	w.setPhase(PhaseReady)
	common.LogInfo("封面生成完成", zap.String("recipe", name), zap.Bool("remote", remote))
	return nil
}

// resumeThumbnail 憑證選擇成功後重新執行封面步驟。
// 記錄之後已有較新的生成時不做任何事：憑證已保存，沒有可恢復的步驟。
func (w *Workflow) resumeThumbnail(ctx context.Context, tok uint64, useCustom bool) error {
	w.mu.Lock()
	if !w.current(tok) || w.content == nil {
		w.mu.Unlock()
		metrics.RecordSuperseded("resume")
		common.LogInfo("略過過期的封面恢復", zap.Uint64("token", tok))
		return nil
	}
	w.thumbSeq++
	seq := w.thumbSeq
	w.mu.Unlock()

	return w.runThumbnail(ctx, tok, seq, useCustom)
}

// RegenerateDescription 只重新產生影片描述，同時覆蓋可編輯副本
func (w *Workflow) RegenerateDescription(ctx context.Context, recipeName string, mode content.Mode) error {
	name, err := content.NormalizeRecipeName(recipeName)
	if err != nil {
		return err
	}

	w.mu.Lock()
	if w.content == nil {
		w.mu.Unlock()
		return common.NewPreconditionError("尚未產生內容，無法重新產生描述")
	}
	tok := w.token
	w.descSeq++
	seq := w.descSeq
	w.descErr = nil
	w.descRunning = true
	w.mu.Unlock()

	generated, err := w.text.GenerateText(ctx, name, mode, []content.Field{content.FieldYoutubeDescription})

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.current(tok) || seq != w.descSeq || w.content == nil {
		return superseded("description")
	}
	w.descRunning = false
	if err != nil {
		w.descErr = err
		common.LogError("描述重新生成失敗", zap.String("recipe", name), zap.Error(err))
		return err
	}

	w.content.YoutubeDescription = generated.YoutubeDescription
	w.editable = generated.YoutubeDescription
	return nil
}

// EditDescription 使用者編輯描述副本
func (w *Workflow) EditDescription(text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.content == nil {
		return common.NewPreconditionError("尚未產生內容，無法編輯描述")
	}
	w.editable = text
	return nil
}

// SetCustomPrompt 設定自訂封面提示詞
func (w *Workflow) SetCustomPrompt(prompt string) {
	w.mu.Lock()
	w.customPrompt = prompt
	w.mu.Unlock()
}

// SetImageMode 切換遠端 / 本地封面
func (w *Workflow) SetImageMode(mode ImageMode) {
	w.mu.Lock()
	w.imageMode = mode
	w.mu.Unlock()
}

// ResolveCredential 使用者選擇憑證；成功時恰好恢復一次暫停的封面步驟
func (w *Workflow) ResolveCredential(ctx context.Context, choice string) error {
	err := w.gate.ResolveSelection(ctx, choice)
	if err != nil && common.IsSelectionError(err) {
		w.mu.Lock()
		if w.phase == PhaseCredentialPending {
			w.thumbErr = err
			w.setPhase(PhaseReady)
		}
		w.mu.Unlock()
	}
	return err
}

// AbandonCredential 放棄選擇憑證，不再自動重試
func (w *Workflow) AbandonCredential() {
	w.gate.Abandon()

	w.mu.Lock()
	if w.phase == PhaseCredentialPending {
		w.setPhase(PhaseReady)
	}
	w.mu.Unlock()
}

// ErrorInfo 顯示用錯誤
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func toErrorInfo(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	ce := common.AsCustomError(err)
	return &ErrorInfo{Code: ce.Code, Message: ce.Error()}
}

// Snapshot 狀態快照
type Snapshot struct {
	Token                   uint64                    `json:"token"`
	Phase                   Phase                     `json:"phase"`
	RecipeName              string                    `json:"recipe_name"`
	Mode                    content.Mode              `json:"mode"`
	Content                 *content.GeneratedContent `json:"content"`
	EditableDescription     string                    `json:"editable_description"`
	CustomPrompt            string                    `json:"custom_prompt"`
	ImageMode               ImageMode                 `json:"image_mode"`
	GeneratingText          bool                      `json:"generating_text"`
	GeneratingThumbnail     bool                      `json:"generating_thumbnail"`
	RegeneratingDescription bool                      `json:"regenerating_description"`
	ThumbnailAttempted      bool                      `json:"thumbnail_attempted"`
	CredentialPrompt        bool                      `json:"credential_prompt"`
	TextError               *ErrorInfo                `json:"text_error,omitempty"`
	ThumbnailError          *ErrorInfo                `json:"thumbnail_error,omitempty"`
	DescriptionError        *ErrorInfo                `json:"description_error,omitempty"`
}

// Snapshot 取得目前狀態的副本
func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	return Snapshot{
		Token:                   w.token,
		Phase:                   w.phase,
		RecipeName:              w.recipeName,
		Mode:                    w.mode,
		Content:                 w.content.Clone(),
		EditableDescription:     w.editable,
		CustomPrompt:            w.customPrompt,
		ImageMode:               w.imageMode,
		GeneratingText:          w.phase == PhaseGeneratingText,
		GeneratingThumbnail:     w.thumbRunning,
		RegeneratingDescription: w.descRunning,
		ThumbnailAttempted:      w.thumbAttempted,
		CredentialPrompt:        w.phase == PhaseCredentialPending,
		TextError:               toErrorInfo(w.textErr),
		ThumbnailError:          toErrorInfo(w.thumbErr),
		DescriptionError:        toErrorInfo(w.descErr),
	}
}
