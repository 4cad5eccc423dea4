package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"debate_live/internal/debate"
	"debate_live/internal/models"
	"debate_live/internal/service"
)

// 定義 WebSocket 升級器
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // 注意：在生產環境中，應該檢查 origin
	},
}

// WebSocketHandler 處理 WebSocket 連接
type WebSocketHandler struct {
	wsManager      *service.WebSocketManager
	sessionService *service.SessionService
	debateService  *service.DebateService
}

// NewWebSocketHandler 創建一個新的 WebSocketHandler 實例
func NewWebSocketHandler(wsManager *service.WebSocketManager, sessionService *service.SessionService, debateService *service.DebateService) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager:      wsManager,
		sessionService: sessionService,
		debateService:  debateService,
	}
}

// HandleWebSocket 處理即時通道的連接請求
// 伺服器透過這條通道推送階段快照，參與者送上暫停、麥克風等控制訊息
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	session, err := h.sessionService.LookupSession(c.Param("code"))
	if err != nil {
		respondSessionError(c, err)
		return
	}

	// 從上下文中獲取用戶 ID
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	userIDUint := userID.(uint)

	// 確定用戶在會話中的座位
	seat := determineSeat(session, userIDUint)
	if seat == debate.SeatNone && session.Visibility != models.VisibilityPublic {
		c.JSON(http.StatusForbidden, gin.H{"error": "用戶未加入此會話"})
		return
	}

	// 升級 HTTP 連接為 WebSocket 連接
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "升級WebSocket失敗"})
		return
	}

	// 阻塞處理這條連線，收到的控制訊息交給辯論服務
	h.wsManager.HandleConnection(conn, session.Code, userIDUint, seat, h.handleControl)
}

// handleControl 分派客戶端送上的控制訊息
// 控制失敗不中斷連線，只回送一則系統提示
func (h *WebSocketHandler) handleControl(client *service.Client, msg *models.Message) {
	// 旁聽者只能接收，不能控制
	if client.Seat == debate.SeatNone {
		return
	}

	var err error
	switch msg.Type {
	case models.MessagePause:
		err = h.debateService.Pause(client.Code, client.UserID)
	case models.MessageResume:
		err = h.debateService.Resume(client.Code, client.UserID)
	case models.MessageMicToggle:
		_, err = h.debateService.ToggleMic(client.Code, client.UserID)
	case models.MessageMediaError:
		err = h.debateService.ReportMediaError(client.Code, client.UserID, debate.MediaErrorCause(msg.Cause))
	default:
		// 未知的訊息類型直接忽略
		return
	}

	if err != nil {
		h.wsManager.Send(client, models.NewSystemMessage(client.Code, err.Error()))
	}
}

// determineSeat 確定用戶在會話中的座位
func determineSeat(session *models.DebateSession, userID uint) debate.Seat {
	if session.CreatorID == userID {
		return debate.SeatCreator
	}
	if session.OpponentID != nil && *session.OpponentID == userID {
		return debate.SeatOpponent
	}
	return debate.SeatNone
}
