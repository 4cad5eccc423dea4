package models

import (
	"time"

	"gorm.io/gorm"
)

// DebateSession 表示一場辯論會話
// 以 6 位代碼作為唯一的外部查詢鍵，兩位立場相反的參與者配對後開始辯論
type DebateSession struct {
	gorm.Model
	Code               string        `gorm:"type:varchar(6);uniqueIndex;not null" json:"code"`
	CreatorID          uint          `gorm:"not null" json:"creator_id"`
	CreatorStance      Stance        `gorm:"not null" json:"creator_stance"`
	OpponentID         *uint         `json:"opponent_id,omitempty"` // null 表示尚未有人加入
	OpponentStance     Stance        `json:"opponent_stance,omitempty"`
	Visibility         Visibility    `gorm:"not null" json:"visibility"`
	Status             SessionStatus `gorm:"not null" json:"status"`
	PreparationMinutes int           `gorm:"not null" json:"preparation_minutes"`
	RoundMinutes       int           `gorm:"not null" json:"round_minutes"`
	RoundCount         int           `gorm:"not null" json:"round_count"`
	FinalMinutes       int           `gorm:"not null" json:"final_minutes"`
	AutoMicControl     bool          `json:"auto_mic_control"`
	CameraOptional     bool          `json:"camera_optional"`
}

// Visibility 定義會話的可見性類型
type Visibility string

const (
	VisibilityPrivate Visibility = "private" // 只能憑代碼加入
	VisibilityRandom  Visibility = "random"  // 可被隨機配對列表發現
	VisibilityPublic  Visibility = "public"  // 公開發布，進行中可被旁聽列表發現
)

// Valid 檢查可見性是否為合法值
func (v Visibility) Valid() bool {
	return v == VisibilityPrivate || v == VisibilityRandom || v == VisibilityPublic
}

// SessionStatus 定義會話狀態的類型
// 狀態只允許 waiting → active → finished 的單向轉換
type SessionStatus string

const (
	SessionStatusWaiting  SessionStatus = "waiting"
	SessionStatusActive   SessionStatus = "active"
	SessionStatusFinished SessionStatus = "finished"
)

// UsedCode 記錄已釋放的會話代碼
// 代碼生成器會同時檢查存活會話與這份帳目，避免剛過期的代碼立刻被重用
type UsedCode struct {
	gorm.Model
	Code       string    `gorm:"type:varchar(6);index;not null" json:"code"`
	ReleasedAt time.Time `gorm:"not null" json:"released_at"`
}
