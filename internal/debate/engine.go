package debate

import (
	"math/rand"
	"sync"
)

// Phase 定義辯論進行的階段
type Phase string

const (
	PhaseWaiting     Phase = "waiting"     // 等待對手加入
	PhaseSelecting   Phase = "selecting"   // 抽選先發言者
	PhasePreparation Phase = "preparation" // 準備時間，雙方皆可發言
	PhaseRound       Phase = "round"       // 正式回合，只有輪到的一方發言
	PhaseFinal       Phase = "final"       // 結辯時間，雙方皆可發言
	PhaseFinished    Phase = "finished"    // 辯論結束，終止狀態
)

// Seat 標識會話中的兩個座位
type Seat string

const (
	SeatCreator  Seat = "creator"  // 建立會話的一方
	SeatOpponent Seat = "opponent" // 加入會話的一方
	SeatNone     Seat = ""
)

// Other 回傳另一個座位
func (s Seat) Other() Seat {
	if s == SeatCreator {
		return SeatOpponent
	}
	return SeatCreator
}

// selectingSeconds 抽選結果展示的固定秒數，之後無條件進入準備階段
const selectingSeconds = 3

// Settings 會話建立時固定下來的計時設定，建立後不可變更
type Settings struct {
	PreparationMinutes int  `json:"preparation_minutes"`
	RoundMinutes       int  `json:"round_minutes"`
	RoundCount         int  `json:"round_count"`
	FinalMinutes       int  `json:"final_minutes"`
	AutoMicControl     bool `json:"auto_mic_control"`
	CameraOptional     bool `json:"camera_optional"`
}

// Validate 檢查設定是否在允許的範圍內
func (s Settings) Validate() error {
	if s.PreparationMinutes < 1 || s.PreparationMinutes > 60 {
		return errInvalidSetting("準備時間必須介於 1 到 60 分鐘")
	}
	if s.RoundMinutes < 1 || s.RoundMinutes > 60 {
		return errInvalidSetting("回合時間必須介於 1 到 60 分鐘")
	}
	if s.FinalMinutes < 1 || s.FinalMinutes > 60 {
		return errInvalidSetting("結辯時間必須介於 1 到 60 分鐘")
	}
	if s.RoundCount < 1 || s.RoundCount > 10 {
		return errInvalidSetting("回合數必須介於 1 到 10")
	}
	return nil
}

type errInvalidSetting string

func (e errInvalidSetting) Error() string { return string(e) }

// Snapshot 引擎目前狀態的快照，推送給雙方客戶端
// 客戶端只負責顯示，倒數以這裡的秒數為準
type Snapshot struct {
	Phase            Phase `json:"phase"`
	Round            int   `json:"round"`
	Starter          Seat  `json:"starter,omitempty"`
	Speaker          Seat  `json:"speaker,omitempty"`
	RemainingSeconds int   `json:"remaining_seconds"`
	Paused           bool  `json:"paused"`
	CreatorMicOpen   bool  `json:"creator_mic_open"`
	OpponentMicOpen  bool  `json:"opponent_mic_open"`
}

// Engine 單一會話的階段狀態機
// 由外部以每秒一次的 Tick 驅動，方法都可安全地併發呼叫
// 階段轉換只在倒數歸零時發生，每個階段的到期回呼保證只觸發一次
type Engine struct {
	mu       sync.Mutex
	settings Settings
	rng      *rand.Rand
	notify   func(Snapshot)

	phase     Phase
	round     int
	starter   Seat
	speaker   Seat
	remaining int
	paused    bool
	expired   bool // 當前階段的歸零轉換是否已觸發
	stopped   bool

	mic map[Seat]bool
}

// NewEngine 建立一個新的階段引擎，初始狀態為等待對手
// 隨機來源由呼叫方注入，抽選先發言者時使用
func NewEngine(settings Settings, rng *rand.Rand, notify func(Snapshot)) *Engine {
	if notify == nil {
		notify = func(Snapshot) {}
	}
	return &Engine{
		settings: settings,
		rng:      rng,
		notify:   notify,
		phase:    PhaseWaiting,
		mic:      map[Seat]bool{SeatCreator: false, SeatOpponent: false},
	}
}

// Begin 在雙方到齊後啟動引擎：抽選先發言者並進入展示階段
// 對已啟動的引擎重複呼叫沒有效果
func (e *Engine) Begin() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != PhaseWaiting {
		return
	}

	// 先發言者 50/50 抽選，這是代碼生成之外唯一的隨機決策點
	if e.rng.Intn(2) == 0 {
		e.starter = SeatCreator
	} else {
		e.starter = SeatOpponent
	}

	e.phase = PhaseSelecting
	e.remaining = selectingSeconds
	e.expired = false
	e.notify(e.snapshotLocked())
}

// Tick 推進一秒
// 暫停中或已結束時呼叫沒有效果；歸零時觸發一次階段轉換
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped || e.paused || e.phase == PhaseWaiting || e.phase == PhaseFinished {
		return
	}

	if e.remaining > 0 {
		e.remaining--
	}
	if e.remaining == 0 && !e.expired {
		e.expired = true
		e.advanceLocked()
	}
	e.notify(e.snapshotLocked())
}

// advanceLocked 執行歸零後的階段轉換，呼叫時必須持有鎖
func (e *Engine) advanceLocked() {
	switch e.phase {
	case PhaseSelecting:
		e.round = 1
		e.speaker = e.starter
		e.enterLocked(PhasePreparation, e.settings.PreparationMinutes*60)
	case PhasePreparation:
		e.enterLocked(PhaseRound, e.settings.RoundMinutes*60)
	case PhaseRound:
		if e.round < e.settings.RoundCount {
			e.round++
			e.speaker = e.speaker.Other()
			e.enterLocked(PhasePreparation, e.settings.PreparationMinutes*60)
		} else {
			e.enterLocked(PhaseFinal, e.settings.FinalMinutes*60)
		}
	case PhaseFinal:
		e.phase = PhaseFinished
		e.remaining = 0
		e.stopped = true
		e.applyAutoMicLocked()
	}
}

// enterLocked 進入新階段：重設倒數並套用自動麥克風規則
func (e *Engine) enterLocked(phase Phase, seconds int) {
	e.phase = phase
	e.remaining = seconds
	e.expired = false
	e.applyAutoMicLocked()
}

// applyAutoMicLocked 依階段與發言權重設兩個座位的麥克風
func (e *Engine) applyAutoMicLocked() {
	if !e.settings.AutoMicControl {
		return
	}
	for _, seat := range []Seat{SeatCreator, SeatOpponent} {
		e.mic[seat] = MicAutoEnabled(e.phase, e.speaker == seat)
	}
}

// Pause 暫停倒數
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped || e.phase == PhaseWaiting || e.phase == PhaseFinished {
		return
	}
	e.paused = true
	e.notify(e.snapshotLocked())
}

// Resume 恢復倒數
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped || !e.paused {
		return
	}
	e.paused = false
	e.notify(e.snapshotLocked())
}

// ToggleMic 嘗試手動切換指定座位的麥克風
// 自動控制開啟、階段為正式回合、且不是該座位發言時，切換靜默忽略
// 回傳切換後的麥克風狀態
func (e *Engine) ToggleMic(seat Seat) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.settings.AutoMicControl && e.phase == PhaseRound && e.speaker != seat {
		return e.mic[seat]
	}
	e.mic[seat] = !e.mic[seat]
	e.notify(e.snapshotLocked())
	return e.mic[seat]
}

// MicEnabled 回傳指定座位目前的麥克風狀態
func (e *Engine) MicEnabled(seat Seat) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mic[seat]
}

// Finished 回報辯論是否已結束
func (e *Engine) Finished() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase == PhaseFinished
}

// Stop 終止引擎，之後的 Tick 不再有任何效果
// 會話拆除時呼叫，確保不會有轉換在拆除後觸發
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
}

// Snapshot 回傳目前狀態的快照
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	return Snapshot{
		Phase:            e.phase,
		Round:            e.round,
		Starter:          e.starter,
		Speaker:          e.speaker,
		RemainingSeconds: e.remaining,
		Paused:           e.paused,
		CreatorMicOpen:   e.mic[SeatCreator],
		OpponentMicOpen:  e.mic[SeatOpponent],
	}
}
