package service

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"debate_live/internal/debate"
	"debate_live/internal/models"
)

// Client 代表一個 WebSocket 客戶端連接
type Client struct {
	Conn     *websocket.Conn      // WebSocket 連接
	UserID   uint                 // 用戶 ID
	Code     string               // 會話代碼
	Seat     debate.Seat          // 座位，旁聽者為空
	SendChan chan *models.Message // 消息發送通道，用於異步傳送消息
}

// ControlFunc 處理客戶端送上的控制訊息（暫停、恢復、麥克風、媒體失敗回報）
type ControlFunc func(client *Client, msg *models.Message)

// WebSocketManager 管理所有的 WebSocket 連接和消息傳遞
type WebSocketManager struct {
	clients    map[string]map[*Client]bool // 兩層 map: 會話代碼 -> client -> bool
	clientsMux sync.RWMutex                // 用於保護 clients map 的讀寫鎖
}

// NewWebSocketManager 創建並初始化新的 WebSocket 管理器
func NewWebSocketManager() *WebSocketManager {
	return &WebSocketManager{
		clients: make(map[string]map[*Client]bool),
	}
}

// HandleConnection 處理新的 WebSocket 連接請求，阻塞直到連線結束
// 收到的控制訊息交給 control 處理
func (s *WebSocketManager) HandleConnection(conn *websocket.Conn, code string, userID uint, seat debate.Seat, control ControlFunc) {
	client := &Client{
		Conn:     conn,
		UserID:   userID,
		Code:     code,
		Seat:     seat,
		SendChan: make(chan *models.Message, 256), // 設置緩衝大小為 256 的消息通道
	}

	s.addClient(client)

	// 確保連接關閉時清理資源
	// 發送通道由 removeClient 負責關閉
	defer func() {
		s.removeClient(client)
		conn.Close()
	}()

	// 啟動讀寫處理
	go s.writePump(client)
	s.readPump(client, control)
}

// readPump 持續監聽並處理從客戶端接收的控制訊息
func (s *WebSocketManager) readPump(client *Client, control ControlFunc) {
	client.Conn.SetReadLimit(4096) // 設置最大消息大小為 4KB
	client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket unexpected close error: %v", err)
			}
			break
		}

		// 解析接收到的消息
		var msg models.Message
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("message parse error: %v", err)
			continue
		}

		// 代碼以連線時驗證過的為準，不信任客戶端帶上的值
		msg.Code = client.Code

		if control != nil {
			control(client, &msg)
		}
	}
}

// writePump 處理向客戶端發送消息的邏輯
func (s *WebSocketManager) writePump(client *Client) {
	// 設置心跳檢查計時器
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.SendChan:
			// 設置寫入超時
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// 獲取寫入器並發送消息
			w, err := client.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}

			// JSON 編碼
			messageBytes, err := json.Marshal(message)
			if err != nil {
				log.Printf("message encoding error: %v", err)
				continue
			}

			if _, err := w.Write(messageBytes); err != nil {
				return
			}
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			// 發送心跳包
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// BroadcastToSession 向會話內的所有客戶端廣播消息
// 迭代全程持有讀鎖，與增刪連線互斥；通道只會在寫鎖下關閉，
// 所以持鎖期間的寫入不可能碰到已關閉的通道
func (s *WebSocketManager) BroadcastToSession(code string, message *models.Message) {
	var full []*Client

	s.clientsMux.RLock()
	for client := range s.clients[code] {
		select {
		case client.SendChan <- message:
			// 消息成功加入發送隊列
		default:
			// 客戶端消息隊列已滿，解鎖後再移除
			full = append(full, client)
		}
	}
	s.clientsMux.RUnlock()

	for _, client := range full {
		s.removeClient(client)
		if client.Conn != nil {
			client.Conn.Close()
		}
	}
}

// BroadcastSystemMessage 發送系統消息到指定會話
func (s *WebSocketManager) BroadcastSystemMessage(code, content string) {
	s.BroadcastToSession(code, models.NewSystemMessage(code, content))
}

// Send 向單一客戶端送出消息
// 連線已被移除時靜默丟棄，避免寫入已關閉的通道
func (s *WebSocketManager) Send(client *Client, message *models.Message) {
	s.clientsMux.RLock()
	defer s.clientsMux.RUnlock()

	if !s.clients[client.Code][client] {
		return
	}
	select {
	case client.SendChan <- message:
	default:
	}
}

// addClient 安全地添加新的客戶端連接
func (s *WebSocketManager) addClient(client *Client) {
	s.clientsMux.Lock()
	defer s.clientsMux.Unlock()

	if s.clients[client.Code] == nil {
		s.clients[client.Code] = make(map[*Client]bool)
	}
	s.clients[client.Code][client] = true
}

// removeClient 安全地移除客戶端連接
// 發送通道只在這裡關閉，成員檢查保證重複移除不會重複關閉
func (s *WebSocketManager) removeClient(client *Client) {
	s.clientsMux.Lock()
	defer s.clientsMux.Unlock()

	clients, ok := s.clients[client.Code]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}

	delete(clients, client)
	close(client.SendChan)
	// 如果會話空了，刪除會話
	if len(clients) == 0 {
		delete(s.clients, client.Code)
	}
}

// SessionClients 獲取指定會話的在線客戶端數量
func (s *WebSocketManager) SessionClients(code string) int {
	s.clientsMux.RLock()
	defer s.clientsMux.RUnlock()

	return len(s.clients[code])
}
