package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"debate_live/internal/debate"
	"debate_live/internal/models"
	"debate_live/internal/service"
)

// SessionHandler 處理與辯論會話相關的請求
type SessionHandler struct {
	sessionService *service.SessionService
	debateService  *service.DebateService
}

// NewSessionHandler 創建一個新的 SessionHandler 實例
func NewSessionHandler(sessionService *service.SessionService, debateService *service.DebateService) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		debateService:  debateService,
	}
}

// CreateSessionInput 定義建立會話請求的結構
type CreateSessionInput struct {
	PreparationMinutes int               `json:"preparation_minutes" binding:"required"`
	RoundMinutes       int               `json:"round_minutes" binding:"required"`
	RoundCount         int               `json:"round_count" binding:"required"`
	FinalMinutes       int               `json:"final_minutes" binding:"required"`
	AutoMicControl     bool              `json:"auto_mic_control"`
	CameraOptional     bool              `json:"camera_optional"`
	Visibility         models.Visibility `json:"visibility" binding:"required"`
}

// CreateSession 處理建立會話的請求，回應中帶著可分享的會話代碼
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var input CreateSessionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, _ := c.Get("userID")
	stance, _ := c.Get("userStance")

	settings := debate.Settings{
		PreparationMinutes: input.PreparationMinutes,
		RoundMinutes:       input.RoundMinutes,
		RoundCount:         input.RoundCount,
		FinalMinutes:       input.FinalMinutes,
		AutoMicControl:     input.AutoMicControl,
		CameraOptional:     input.CameraOptional,
	}

	session, err := h.sessionService.CreateSession(userID.(uint), stance.(models.Stance), settings, input.Visibility)
	if err != nil {
		respondSessionError(c, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

// GetSession 處理以代碼查詢會話的請求
func (h *SessionHandler) GetSession(c *gin.Context) {
	session, err := h.sessionService.LookupSession(c.Param("code"))
	if err != nil {
		respondSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// JoinSession 處理加入會話的請求
func (h *SessionHandler) JoinSession(c *gin.Context) {
	userID, _ := c.Get("userID")
	stance, _ := c.Get("userStance")

	session, err := h.sessionService.JoinSession(c.Param("code"), userID.(uint), stance.(models.Stance))
	if err != nil {
		respondSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// ListSessions 處理會話列表查詢，支援以可見性與狀態過濾
func (h *SessionHandler) ListSessions(c *gin.Context) {
	visibility := models.Visibility(c.Query("visibility"))
	status := models.SessionStatus(c.Query("status"))

	sessions, err := h.sessionService.ListSessions(visibility, status)
	if err != nil {
		respondSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, sessions)
}

// GetPhase 回傳進行中會話的階段快照
// 客戶端的倒數顯示以這份快照為準
func (h *SessionHandler) GetPhase(c *gin.Context) {
	snapshot, err := h.debateService.Snapshot(c.Param("code"))
	if err != nil {
		respondSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// respondSessionError 把服務層的失敗轉成對應的 HTTP 回應
// 查無代碼與配對衝突是可恢復的結果，提示用戶重試即可
func respondSessionError(c *gin.Context, err error) {
	var validationErr *service.ValidationError
	var persistenceErr *service.PersistenceError

	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrNotLive):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrJoinConflict),
		errors.Is(err, service.ErrSameStance),
		errors.Is(err, service.ErrSelfJoin):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &persistenceErr):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "伺服器暫時無法處理，請稍後重試"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
