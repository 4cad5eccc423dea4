package service

import (
	"errors"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"debate_live/internal/debate"
	"debate_live/internal/models"
	"debate_live/internal/repository"
)

// fakeSessionRepo 以記憶體實作會話儲存，條件更新用互斥鎖模擬資料庫的原子性
type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*models.DebateSession
	used     map[string]bool
	nextID   uint
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{
		sessions: make(map[string]*models.DebateSession),
		used:     make(map[string]bool),
	}
}

func (r *fakeSessionRepo) Create(session *models.DebateSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[session.Code]; ok {
		return errors.New("duplicate code")
	}
	r.nextID++
	session.ID = r.nextID
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	clone := *session
	r.sessions[session.Code] = &clone
	return nil
}

func (r *fakeSessionRepo) FindByCode(code string) (*models.DebateSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *session
	return &clone, nil
}

func (r *fakeSessionRepo) ClaimOpponent(code string, opponentID uint, stance models.Stance) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[code]
	if !ok || session.OpponentID != nil || session.Status != models.SessionStatusWaiting {
		return false, nil
	}
	id := opponentID
	session.OpponentID = &id
	session.OpponentStance = stance
	session.Status = models.SessionStatusActive
	return true, nil
}

func (r *fakeSessionRepo) UpdateStatus(code string, from, to models.SessionStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[code]
	if !ok || session.Status != from {
		return false, nil
	}
	session.Status = to
	return true, nil
}

func (r *fakeSessionRepo) List(filter repository.SessionListFilter) ([]models.DebateSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.DebateSession
	for _, s := range r.sessions {
		if filter.Visibility != "" && s.Visibility != filter.Visibility {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeSessionRepo) CodeInUse(code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[code]; ok {
		return true, nil
	}
	return r.used[code], nil
}

func (r *fakeSessionRepo) ReleaseCode(code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.used[code] = true
	return nil
}

func (r *fakeSessionRepo) DeleteStaleWaiting(before time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var codes []string
	for code, s := range r.sessions {
		if s.Status == models.SessionStatusWaiting && s.CreatedAt.Before(before) {
			delete(r.sessions, code)
			codes = append(codes, code)
		}
	}
	return codes, nil
}

// newTestServices 建立接在記憶體儲存上的服務組，引擎以毫秒級 tick 驅動
func newTestServices(t *testing.T) (*SessionService, *DebateService, *fakeSessionRepo) {
	t.Helper()

	repo := newFakeSessionRepo()
	debates := NewDebateService(repo, NewWebSocketManager())
	debates.tick = time.Millisecond
	debates.newRand = func() *rand.Rand { return rand.New(rand.NewSource(1)) }

	codes := NewCodeGenerator(rand.New(rand.NewSource(1)))
	sessions := NewSessionService(repo, codes, debates)
	return sessions, debates, repo
}

func validSettings() debate.Settings {
	return debate.Settings{
		PreparationMinutes: 1,
		RoundMinutes:       1,
		RoundCount:         1,
		FinalMinutes:       1,
		AutoMicControl:     true,
	}
}

func TestCreateSessionIssuesUniqueCodes(t *testing.T) {
	svc, _, _ := newTestServices(t)

	first, err := svc.CreateSession(1, models.StanceProponent, validSettings(), models.VisibilityPrivate)
	if err != nil {
		t.Fatalf("建立會話失敗: %v", err)
	}
	second, err := svc.CreateSession(2, models.StanceOpponent, validSettings(), models.VisibilityPrivate)
	if err != nil {
		t.Fatalf("建立第二個會話失敗: %v", err)
	}

	if first.Code == second.Code {
		t.Fatalf("兩個存活會話不應共用代碼 %q", first.Code)
	}
	if first.Status != models.SessionStatusWaiting {
		t.Fatalf("新會話狀態應為 waiting，得到 %s", first.Status)
	}
	if first.OpponentID != nil {
		t.Fatalf("新會話不應有對手")
	}
	if len(first.Code) != CodeLength {
		t.Fatalf("代碼長度應為 %d，得到 %q", CodeLength, first.Code)
	}
}

func TestCreateSessionValidatesInput(t *testing.T) {
	svc, _, _ := newTestServices(t)

	bad := validSettings()
	bad.RoundCount = 0
	var validationErr *ValidationError

	if _, err := svc.CreateSession(1, models.StanceProponent, bad, models.VisibilityPrivate); !errors.As(err, &validationErr) {
		t.Fatalf("非法設定應擋在任何寫入之前，得到 %v", err)
	}
	if _, err := svc.CreateSession(1, "both", validSettings(), models.VisibilityPrivate); !errors.As(err, &validationErr) {
		t.Fatalf("非法立場應被拒絕，得到 %v", err)
	}
	if _, err := svc.CreateSession(1, models.StanceProponent, validSettings(), "hidden"); !errors.As(err, &validationErr) {
		t.Fatalf("非法可見性應被拒絕，得到 %v", err)
	}
}

func TestLookupSessionNormalizesCode(t *testing.T) {
	svc, _, _ := newTestServices(t)

	created, err := svc.CreateSession(1, models.StanceProponent, validSettings(), models.VisibilityPrivate)
	if err != nil {
		t.Fatalf("建立會話失敗: %v", err)
	}

	// 代碼不分大小寫，前後空白也要被容忍
	sloppy := "  " + strings.ToLower(created.Code) + " "
	found, err := svc.LookupSession(sloppy)
	if err != nil {
		t.Fatalf("整理後的代碼應查得到: %v", err)
	}
	if found.Code != created.Code {
		t.Fatalf("查到的會話代碼不符：%q vs %q", found.Code, created.Code)
	}

	if _, err := svc.LookupSession("NOPE42"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("查無代碼應回傳 ErrSessionNotFound，得到 %v", err)
	}
}

func TestJoinSessionPairingRules(t *testing.T) {
	svc, _, _ := newTestServices(t)

	created, err := svc.CreateSession(1, models.StanceProponent, validSettings(), models.VisibilityPrivate)
	if err != nil {
		t.Fatalf("建立會話失敗: %v", err)
	}

	// 立場相同一律拒絕
	if _, err := svc.JoinSession(created.Code, 2, models.StanceProponent); !errors.Is(err, ErrSameStance) {
		t.Fatalf("同立場加入應被拒絕，得到 %v", err)
	}

	// 不能加入自己建立的會話
	if _, err := svc.JoinSession(created.Code, 1, models.StanceOpponent); !errors.Is(err, ErrSelfJoin) {
		t.Fatalf("自行加入應被拒絕，得到 %v", err)
	}

	// 正常加入
	joined, err := svc.JoinSession(created.Code, 2, models.StanceOpponent)
	if err != nil {
		t.Fatalf("立場相反的加入應成功: %v", err)
	}
	if joined.Status != models.SessionStatusActive {
		t.Fatalf("加入後狀態應為 active，得到 %s", joined.Status)
	}
	if joined.OpponentID == nil || *joined.OpponentID != 2 {
		t.Fatalf("對手欄位應已設定")
	}

	// 已配對的會話不能再加入
	if _, err := svc.JoinSession(created.Code, 3, models.StanceOpponent); !errors.Is(err, ErrJoinConflict) {
		t.Fatalf("重複加入應收到衝突，得到 %v", err)
	}
}

func TestJoinSessionConcurrentSingleWinner(t *testing.T) {
	svc, _, _ := newTestServices(t)

	created, err := svc.CreateSession(1, models.StanceProponent, validSettings(), models.VisibilityPrivate)
	if err != nil {
		t.Fatalf("建立會話失敗: %v", err)
	}

	// 兩個同時加入的請求，條件更新仲裁出唯一的勝者
	results := make(chan error, 2)
	for _, userID := range []uint{2, 3} {
		go func(id uint) {
			_, err := svc.JoinSession(created.Code, id, models.StanceOpponent)
			results <- err
		}(userID)
	}

	var wins, conflicts int
	for i := 0; i < 2; i++ {
		switch err := <-results; {
		case err == nil:
			wins++
		case errors.Is(err, ErrJoinConflict):
			conflicts++
		default:
			t.Fatalf("預期成功或衝突，得到 %v", err)
		}
	}
	if wins != 1 || conflicts != 1 {
		t.Fatalf("應恰好一人成功一人衝突，得到 %d 勝 %d 衝突", wins, conflicts)
	}
}

func TestJoinSessionStartsEngine(t *testing.T) {
	svc, debates, _ := newTestServices(t)

	created, err := svc.CreateSession(1, models.StanceProponent, validSettings(), models.VisibilityPrivate)
	if err != nil {
		t.Fatalf("建立會話失敗: %v", err)
	}
	defer debates.Stop(created.Code)

	// 加入前沒有進行中的辯論
	if _, err := debates.Snapshot(created.Code); !errors.Is(err, ErrNotLive) {
		t.Fatalf("加入前應回傳 ErrNotLive，得到 %v", err)
	}

	if _, err := svc.JoinSession(created.Code, 2, models.StanceOpponent); err != nil {
		t.Fatalf("加入會話失敗: %v", err)
	}

	snap, err := debates.Snapshot(created.Code)
	if err != nil {
		t.Fatalf("加入後應有進行中的引擎: %v", err)
	}
	if snap.Phase == debate.PhaseWaiting {
		t.Fatalf("雙方到齊後引擎不應停在 waiting")
	}
}

func TestListSessionsNewestFirst(t *testing.T) {
	svc, _, repo := newTestServices(t)

	for i := 0; i < 3; i++ {
		s, err := svc.CreateSession(uint(i+1), models.StanceProponent, validSettings(), models.VisibilityRandom)
		if err != nil {
			t.Fatalf("建立會話失敗: %v", err)
		}
		// 讓建立時間可區分
		repo.mu.Lock()
		repo.sessions[s.Code].CreatedAt = time.Now().Add(time.Duration(i) * time.Second)
		repo.mu.Unlock()
	}

	sessions, err := svc.ListSessions(models.VisibilityRandom, models.SessionStatusWaiting)
	if err != nil {
		t.Fatalf("列表查詢失敗: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("應查到 3 個會話，得到 %d", len(sessions))
	}
	for i := 1; i < len(sessions); i++ {
		if sessions[i].CreatedAt.After(sessions[i-1].CreatedAt) {
			t.Fatalf("列表應以最新建立的排前面")
		}
	}

	// 過濾條件要生效
	none, err := svc.ListSessions(models.VisibilityPublic, models.SessionStatusActive)
	if err != nil {
		t.Fatalf("列表查詢失敗: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("不符合條件的查詢應為空，得到 %d 筆", len(none))
	}
}

func TestCleanupExpiredReleasesCodes(t *testing.T) {
	svc, _, repo := newTestServices(t)

	stale, err := svc.CreateSession(1, models.StanceProponent, validSettings(), models.VisibilityPrivate)
	if err != nil {
		t.Fatalf("建立會話失敗: %v", err)
	}
	repo.mu.Lock()
	repo.sessions[stale.Code].CreatedAt = time.Now().Add(-48 * time.Hour)
	repo.mu.Unlock()

	fresh, err := svc.CreateSession(2, models.StanceProponent, validSettings(), models.VisibilityPrivate)
	if err != nil {
		t.Fatalf("建立會話失敗: %v", err)
	}

	n, err := svc.CleanupExpired(24 * time.Hour)
	if err != nil {
		t.Fatalf("清理失敗: %v", err)
	}
	if n != 1 {
		t.Fatalf("應清掉 1 個會話，得到 %d", n)
	}

	if _, err := svc.LookupSession(stale.Code); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("過期會話應已刪除，得到 %v", err)
	}
	if _, err := svc.LookupSession(fresh.Code); err != nil {
		t.Fatalf("未過期會話不應被清掉: %v", err)
	}

	// 清掉的代碼記入帳目，之後不會再被發出
	used, err := repo.CodeInUse(stale.Code)
	if err != nil || !used {
		t.Fatalf("被清理的代碼應記入已用帳目")
	}
}

func TestRecoverInterruptedSessions(t *testing.T) {
	svc, _, repo := newTestServices(t)

	// 模擬重啟前遺留的 active 會話：紀錄在庫裡，但沒有對應的引擎
	orphan, err := svc.CreateSession(1, models.StanceProponent, validSettings(), models.VisibilityPrivate)
	if err != nil {
		t.Fatalf("建立會話失敗: %v", err)
	}
	repo.mu.Lock()
	opponentID := uint(2)
	repo.sessions[orphan.Code].OpponentID = &opponentID
	repo.sessions[orphan.Code].OpponentStance = models.StanceOpponent
	repo.sessions[orphan.Code].Status = models.SessionStatusActive
	repo.mu.Unlock()

	waiting, err := svc.CreateSession(3, models.StanceProponent, validSettings(), models.VisibilityPrivate)
	if err != nil {
		t.Fatalf("建立會話失敗: %v", err)
	}

	n, err := svc.RecoverInterrupted()
	if err != nil {
		t.Fatalf("收拾中斷會話失敗: %v", err)
	}
	if n != 1 {
		t.Fatalf("應收掉 1 個中斷的會話，得到 %d", n)
	}

	session, err := svc.LookupSession(orphan.Code)
	if err != nil {
		t.Fatalf("查詢會話失敗: %v", err)
	}
	if session.Status != models.SessionStatusFinished {
		t.Fatalf("中斷的會話應被標記結束，得到 %s", session.Status)
	}
	used, err := repo.CodeInUse(orphan.Code)
	if err != nil || !used {
		t.Fatalf("被收掉的代碼應記入已用帳目")
	}

	// 等待中的會話不受影響
	session, err = svc.LookupSession(waiting.Code)
	if err != nil {
		t.Fatalf("查詢會話失敗: %v", err)
	}
	if session.Status != models.SessionStatusWaiting {
		t.Fatalf("等待中的會話不應被收掉，得到 %s", session.Status)
	}
}

func TestEndToEndOneRoundSession(t *testing.T) {
	svc, _, repo := newTestServices(t)

	created, err := svc.CreateSession(1, models.StanceProponent, validSettings(), models.VisibilityPrivate)
	if err != nil {
		t.Fatalf("建立會話失敗: %v", err)
	}
	if _, err := svc.JoinSession(created.Code, 2, models.StanceOpponent); err != nil {
		t.Fatalf("加入會話失敗: %v", err)
	}

	// 引擎以毫秒級 tick 驅動，整場一回合的辯論在數百毫秒內走完
	deadline := time.After(5 * time.Second)
	for {
		session, err := repo.FindByCode(created.Code)
		if err != nil {
			t.Fatalf("查詢會話失敗: %v", err)
		}
		if session.Status == models.SessionStatusFinished {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("會話未在期限內結束，目前狀態 %s", session.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}

	// 結束後代碼釋放進帳目
	used, err := repo.CodeInUse(created.Code)
	if err != nil || !used {
		t.Fatalf("結束會話的代碼應記入已用帳目")
	}
}
