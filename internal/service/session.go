package service

import (
	"errors"
	"time"

	"debate_live/internal/debate"
	"debate_live/internal/models"
	"debate_live/internal/repository"
)

// SessionService 實作會話目錄：建立、查詢、加入與列表
// 配對規則（立場相反、不可自行加入、不可重複配對）都在這裡把關，
// 其中重複配對的最終仲裁交給資料庫的條件更新
type SessionService struct {
	sessionRepo repository.SessionRepository
	codes       *CodeGenerator
	debates     *DebateService
}

func NewSessionService(sessionRepo repository.SessionRepository, codes *CodeGenerator, debates *DebateService) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		codes:       codes,
		debates:     debates,
	}
}

// CreateSession 建立一個新的辯論會話並回傳完整紀錄
// 設定在任何寫入之前驗證；代碼生成失敗以外的寫入錯誤不自動重試
func (s *SessionService) CreateSession(creatorID uint, stance models.Stance, settings debate.Settings, visibility models.Visibility) (*models.DebateSession, error) {
	if !stance.Valid() {
		return nil, &ValidationError{Reason: "立場必須為正方或反方"}
	}
	if !visibility.Valid() {
		return nil, &ValidationError{Reason: "無效的可見性設定"}
	}
	if err := settings.Validate(); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	code, err := s.codes.Generate(s.sessionRepo.CodeInUse)
	if err != nil {
		return nil, &PersistenceError{Err: err}
	}

	session := &models.DebateSession{
		Code:               code,
		CreatorID:          creatorID,
		CreatorStance:      stance,
		Visibility:         visibility,
		Status:             models.SessionStatusWaiting,
		PreparationMinutes: settings.PreparationMinutes,
		RoundMinutes:       settings.RoundMinutes,
		RoundCount:         settings.RoundCount,
		FinalMinutes:       settings.FinalMinutes,
		AutoMicControl:     settings.AutoMicControl,
		CameraOptional:     settings.CameraOptional,
	}
	if err := s.sessionRepo.Create(session); err != nil {
		return nil, &PersistenceError{Err: err}
	}
	return session, nil
}

// LookupSession 以代碼查詢會話，查詢前先整理大小寫與空白
func (s *SessionService) LookupSession(code string) (*models.DebateSession, error) {
	session, err := s.sessionRepo.FindByCode(NormalizeCode(code))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, &PersistenceError{Err: err}
	}
	return session, nil
}

// JoinSession 以對手身份加入會話
// 先在本地檢查配對規則，再以資料庫的條件更新做最終仲裁：
// 兩個同時加入的請求只有先寫入者成功，另一方收到衝突
func (s *SessionService) JoinSession(code string, opponentID uint, stance models.Stance) (*models.DebateSession, error) {
	if !stance.Valid() {
		return nil, &ValidationError{Reason: "立場必須為正方或反方"}
	}

	session, err := s.LookupSession(code)
	if err != nil {
		return nil, err
	}

	if session.CreatorID == opponentID {
		return nil, ErrSelfJoin
	}
	if session.OpponentID != nil || session.Status != models.SessionStatusWaiting {
		return nil, ErrJoinConflict
	}
	if session.CreatorStance == stance {
		return nil, ErrSameStance
	}

	claimed, err := s.sessionRepo.ClaimOpponent(session.Code, opponentID, stance)
	if err != nil {
		return nil, &PersistenceError{Err: err}
	}
	if !claimed {
		// 條件更新沒有生效，表示另一位加入者搶先了
		return nil, ErrJoinConflict
	}

	session, err = s.LookupSession(session.Code)
	if err != nil {
		return nil, err
	}

	// 雙方到齊，啟動這場會話的階段引擎
	s.debates.Begin(session)
	return session, nil
}

// ListSessions 依條件列出會話，最新的排在最前面
// 客戶端以固定間隔輪詢，一個輪詢間隔內的過期資料是可接受的
func (s *SessionService) ListSessions(visibility models.Visibility, status models.SessionStatus) ([]models.DebateSession, error) {
	sessions, err := s.sessionRepo.List(repository.SessionListFilter{
		Visibility: visibility,
		Status:     status,
	})
	if err != nil {
		return nil, &PersistenceError{Err: err}
	}
	return sessions, nil
}

// RecoverInterrupted 收拾程序重啟前遺留的 active 會話
// 引擎狀態只存在記憶體，重啟後無從恢復，直接標記結束並釋放代碼，
// 避免這些會話永遠卡在 active 且代碼永遠不回帳目
func (s *SessionService) RecoverInterrupted() (int, error) {
	sessions, err := s.sessionRepo.List(repository.SessionListFilter{
		Status: models.SessionStatusActive,
	})
	if err != nil {
		return 0, &PersistenceError{Err: err}
	}

	recovered := 0
	for _, session := range sessions {
		ok, err := s.sessionRepo.UpdateStatus(session.Code, models.SessionStatusActive, models.SessionStatusFinished)
		if err != nil {
			return recovered, &PersistenceError{Err: err}
		}
		if !ok {
			continue
		}
		if err := s.sessionRepo.ReleaseCode(session.Code); err != nil {
			return recovered, &PersistenceError{Err: err}
		}
		recovered++
	}
	return recovered, nil
}

// CleanupExpired 刪除建立後超過保留期限仍無人加入的會話
// 被刪除的代碼記入已用帳目，回傳清掉的數量
func (s *SessionService) CleanupExpired(maxAge time.Duration) (int, error) {
	codes, err := s.sessionRepo.DeleteStaleWaiting(time.Now().Add(-maxAge))
	if err != nil {
		return len(codes), &PersistenceError{Err: err}
	}
	for _, code := range codes {
		if err := s.sessionRepo.ReleaseCode(code); err != nil {
			return len(codes), &PersistenceError{Err: err}
		}
	}
	return len(codes), nil
}
