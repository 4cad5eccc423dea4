package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"debate_live/internal/models"
	"debate_live/internal/storage"
)

// ErrNotFound 表示查詢不到對應的紀錄
// 查無紀錄是正常的查詢結果之一，由呼叫方決定如何呈現
var ErrNotFound = errors.New("record not found")

// SessionListFilter 列表查詢的過濾條件，空值表示不過濾
type SessionListFilter struct {
	Visibility models.Visibility
	Status     models.SessionStatus
}

type SessionRepository interface {
	Create(session *models.DebateSession) error
	FindByCode(code string) (*models.DebateSession, error)
	// ClaimOpponent 以條件更新設定對手欄位，只在 opponent_id 仍為 null 時生效
	// 兩個同時加入的請求由資料庫仲裁，先寫入者獲勝，回傳值表示是否搶到
	ClaimOpponent(code string, opponentID uint, stance models.Stance) (bool, error)
	// UpdateStatus 只在目前狀態符合 from 時把狀態改為 to，回傳是否生效
	UpdateStatus(code string, from, to models.SessionStatus) (bool, error)
	List(filter SessionListFilter) ([]models.DebateSession, error)
	// CodeInUse 檢查代碼是否被存活會話或已用代碼帳目佔用
	CodeInUse(code string) (bool, error)
	// ReleaseCode 把代碼記入已用帳目，避免之後立刻被重新發出
	ReleaseCode(code string) error
	// DeleteStaleWaiting 刪除建立時間早於 before 且仍在等待的會話，回傳其代碼
	DeleteStaleWaiting(before time.Time) ([]string, error)
}

type sessionRepository struct {
	db *storage.PostgresDB
}

func NewSessionRepository(db *storage.PostgresDB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(session *models.DebateSession) error {
	return r.db.Create(session).Error
}

func (r *sessionRepository) FindByCode(code string) (*models.DebateSession, error) {
	var session models.DebateSession
	err := r.db.Where("code = ?", code).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) ClaimOpponent(code string, opponentID uint, stance models.Stance) (bool, error) {
	res := r.db.Model(&models.DebateSession{}).
		Where("code = ? AND opponent_id IS NULL AND status = ?", code, models.SessionStatusWaiting).
		Updates(map[string]interface{}{
			"opponent_id":     opponentID,
			"opponent_stance": stance,
			"status":          models.SessionStatusActive,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *sessionRepository) UpdateStatus(code string, from, to models.SessionStatus) (bool, error) {
	res := r.db.Model(&models.DebateSession{}).
		Where("code = ? AND status = ?", code, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// List 依條件查詢會話，最新建立的排在最前面
func (r *sessionRepository) List(filter SessionListFilter) ([]models.DebateSession, error) {
	q := r.db.Order("created_at DESC")
	if filter.Visibility != "" {
		q = q.Where("visibility = ?", filter.Visibility)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var sessions []models.DebateSession
	err := q.Find(&sessions).Error
	return sessions, err
}

func (r *sessionRepository) CodeInUse(code string) (bool, error) {
	var count int64
	if err := r.db.Model(&models.DebateSession{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}
	if err := r.db.Model(&models.UsedCode{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *sessionRepository) ReleaseCode(code string) error {
	return r.db.Create(&models.UsedCode{Code: code, ReleasedAt: time.Now()}).Error
}

func (r *sessionRepository) DeleteStaleWaiting(before time.Time) ([]string, error) {
	var stale []models.DebateSession
	err := r.db.Where("status = ? AND created_at < ?", models.SessionStatusWaiting, before).Find(&stale).Error
	if err != nil {
		return nil, err
	}

	codes := make([]string, 0, len(stale))
	for _, s := range stale {
		if err := r.db.Delete(&models.DebateSession{}, s.ID).Error; err != nil {
			return codes, err
		}
		codes = append(codes, s.Code)
	}
	return codes, nil
}
