package models

import (
	"gorm.io/gorm"
)

// User 表示系統中的用戶
type User struct {
	gorm.Model        // 內嵌 gorm.Model，提供 ID、CreatedAt、UpdatedAt 和 DeletedAt 字段
	Username   string `gorm:"uniqueIndex;not null" json:"username"` // 用戶名，必須唯一
	Password   string `gorm:"not null" json:"-"`                    // 密碼，json 序列化時會被忽略
	Stance     Stance `gorm:"not null" json:"stance"`               // 註冊時聲明的立場
}

// Stance 定義用戶立場的類型，辯論配對要求雙方立場相反
type Stance string

const (
	StanceProponent Stance = "proponent" // 正方
	StanceOpponent  Stance = "opponent"  // 反方
)

// Valid 檢查立場是否為兩個合法值之一
func (s Stance) Valid() bool {
	return s == StanceProponent || s == StanceOpponent
}

// Opposite 回傳相反的立場
func (s Stance) Opposite() Stance {
	if s == StanceProponent {
		return StanceOpponent
	}
	return StanceProponent
}
