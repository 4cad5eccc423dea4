package service

import (
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"debate_live/internal/debate"
	"debate_live/internal/models"
	"debate_live/internal/repository"
)

// 進行中會話操作的可預期失敗
var (
	ErrNotLive        = errors.New("會話目前沒有進行中的辯論")
	ErrNotParticipant = errors.New("只有會話參與者可以執行此操作")
)

// DebateService 管理所有進行中會話的階段引擎
// 引擎由伺服器持有並以單一時鐘驅動，雙方客戶端只接收快照，
// 不各自獨立倒數，因此不會出現兩邊階段漂移
type DebateService struct {
	mu   sync.RWMutex
	live map[string]*liveSession

	sessionRepo repository.SessionRepository
	ws          *WebSocketManager
	newRand     func() *rand.Rand
	tick        time.Duration
}

// liveSession 一場進行中辯論的引擎與其驅動迴圈
type liveSession struct {
	engine     *debate.Engine
	done       chan struct{}
	creatorID  uint
	opponentID uint
}

func NewDebateService(sessionRepo repository.SessionRepository, ws *WebSocketManager) *DebateService {
	return &DebateService{
		live:        make(map[string]*liveSession),
		sessionRepo: sessionRepo,
		ws:          ws,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
		tick: time.Second,
	}
}

// Begin 在雙方配對完成後為會話建立引擎並開始驅動
// 對同一會話重複呼叫沒有效果
func (s *DebateService) Begin(session *models.DebateSession) {
	if session.OpponentID == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live[session.Code]; ok {
		return
	}

	code := session.Code
	engine := debate.NewEngine(sessionSettings(session), s.newRand(), func(snap debate.Snapshot) {
		s.ws.BroadcastToSession(code, models.NewPhaseMessage(code, snap))
	})

	ls := &liveSession{
		engine:     engine,
		done:       make(chan struct{}),
		creatorID:  session.CreatorID,
		opponentID: *session.OpponentID,
	}
	s.live[code] = ls

	engine.Begin()
	go s.run(code, ls)
}

// run 以固定間隔驅動引擎，直到辯論結束或會話被拆除
func (s *DebateService) run(code string, ls *liveSession) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ls.done:
			return
		case <-ticker.C:
			ls.engine.Tick()
			if ls.engine.Finished() {
				s.finish(code)
				return
			}
		}
	}
}

// finish 辯論走完所有階段後收尾：標記紀錄結束並釋放代碼
func (s *DebateService) finish(code string) {
	s.mu.Lock()
	delete(s.live, code)
	s.mu.Unlock()

	// active → finished 的轉換由條件更新保證至多生效一次
	ok, err := s.sessionRepo.UpdateStatus(code, models.SessionStatusActive, models.SessionStatusFinished)
	if err != nil {
		log.Printf("標記會話 %s 結束失敗: %v", code, err)
		return
	}
	if ok {
		if err := s.sessionRepo.ReleaseCode(code); err != nil {
			log.Printf("釋放會話代碼 %s 失敗: %v", code, err)
		}
	}
	s.ws.BroadcastSystemMessage(code, "辯論結束")
}

// Stop 拆除一場進行中的會話
// 先終止引擎再停掉驅動迴圈，保證拆除後不會再有轉換觸發
func (s *DebateService) Stop(code string) {
	s.mu.Lock()
	ls, ok := s.live[code]
	if ok {
		delete(s.live, code)
	}
	s.mu.Unlock()

	if ok {
		ls.engine.Stop()
		close(ls.done)
	}
}

// Snapshot 回傳會話目前的階段狀態
func (s *DebateService) Snapshot(code string) (debate.Snapshot, error) {
	ls, err := s.lookup(code)
	if err != nil {
		return debate.Snapshot{}, err
	}
	return ls.engine.Snapshot(), nil
}

// Pause 暫停會話的倒數，只有參與者可以操作
func (s *DebateService) Pause(code string, userID uint) error {
	ls, err := s.lookup(code)
	if err != nil {
		return err
	}
	if seatOf(ls, userID) == debate.SeatNone {
		return ErrNotParticipant
	}
	ls.engine.Pause()
	return nil
}

// Resume 恢復會話的倒數
func (s *DebateService) Resume(code string, userID uint) error {
	ls, err := s.lookup(code)
	if err != nil {
		return err
	}
	if seatOf(ls, userID) == debate.SeatNone {
		return ErrNotParticipant
	}
	ls.engine.Resume()
	return nil
}

// ToggleMic 嘗試切換用戶的麥克風，回傳切換後的狀態
// 規則不允許時引擎會靜默忽略，這裡不回傳錯誤
func (s *DebateService) ToggleMic(code string, userID uint) (bool, error) {
	ls, err := s.lookup(code)
	if err != nil {
		return false, err
	}
	seat := seatOf(ls, userID)
	if seat == debate.SeatNone {
		return false, ErrNotParticipant
	}
	return ls.engine.ToggleMic(seat), nil
}

// ReportMediaError 接收客戶端回報的媒體裝置失敗
// 只向房間廣播對應的提示，階段推進完全不受影響
func (s *DebateService) ReportMediaError(code string, userID uint, cause debate.MediaErrorCause) error {
	if !cause.Valid() {
		return &ValidationError{Reason: "未知的媒體裝置失敗原因"}
	}
	ls, err := s.lookup(code)
	if err != nil {
		return err
	}
	if seatOf(ls, userID) == debate.SeatNone {
		return ErrNotParticipant
	}

	mediaErr := &debate.MediaError{Cause: cause}
	log.Printf("會話 %s 用戶 %d 媒體裝置失敗: %v", code, userID, mediaErr)
	s.ws.BroadcastSystemMessage(code, mediaErr.Error())
	return nil
}

func (s *DebateService) lookup(code string) (*liveSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ls, ok := s.live[NormalizeCode(code)]
	if !ok {
		return nil, ErrNotLive
	}
	return ls, nil
}

func seatOf(ls *liveSession, userID uint) debate.Seat {
	switch userID {
	case ls.creatorID:
		return debate.SeatCreator
	case ls.opponentID:
		return debate.SeatOpponent
	default:
		return debate.SeatNone
	}
}

// sessionSettings 從會話紀錄還原引擎設定
func sessionSettings(session *models.DebateSession) debate.Settings {
	return debate.Settings{
		PreparationMinutes: session.PreparationMinutes,
		RoundMinutes:       session.RoundMinutes,
		RoundCount:         session.RoundCount,
		FinalMinutes:       session.FinalMinutes,
		AutoMicControl:     session.AutoMicControl,
		CameraOptional:     session.CameraOptional,
	}
}
