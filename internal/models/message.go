package models

// Message 即時通道上的訊息封包，伺服器與客戶端共用同一個結構
// 階段狀態只存在於進行中的會話，這個結構不落資料庫
type Message struct {
	Type     string      `json:"type"`
	Code     string      `json:"code,omitempty"`
	Content  string      `json:"content,omitempty"`
	Cause    string      `json:"cause,omitempty"`
	Snapshot interface{} `json:"snapshot,omitempty"`
}

// 伺服器推送的訊息類型
const (
	MessagePhase  = "phase"  // 階段快照，每秒與每次轉換時推送
	MessageSystem = "system" // 系統提示文字
)

// 客戶端送上的控制訊息類型
const (
	MessagePause      = "pause"
	MessageResume     = "resume"
	MessageMicToggle  = "mic_toggle"
	MessageMediaError = "media_error" // Cause 欄位帶失敗原因
)

// NewPhaseMessage 建立一則階段快照訊息
func NewPhaseMessage(code string, snapshot interface{}) *Message {
	return &Message{
		Type:     MessagePhase,
		Code:     code,
		Snapshot: snapshot,
	}
}

// NewSystemMessage 建立一則系統提示訊息
func NewSystemMessage(code, content string) *Message {
	return &Message{
		Type:    MessageSystem,
		Code:    code,
		Content: content,
	}
}
