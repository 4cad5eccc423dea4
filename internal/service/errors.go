package service

import (
	"errors"
	"fmt"
)

// 會話目錄操作的可預期失敗
// 查無代碼與配對衝突屬於可恢復的結果，由呼叫方提示用戶重試
var (
	ErrSessionNotFound = errors.New("找不到對應的辯論會話")
	ErrSelfJoin        = errors.New("不能加入自己建立的會話")
	ErrJoinConflict    = errors.New("會話已有對手加入")
	ErrSameStance      = errors.New("必須與建立者立場相反才能加入")
)

// ValidationError 表示輸入在送出任何查詢之前就被擋下
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// PersistenceError 表示底層資料庫拒絕寫入或無法連線
// 不做自動重試，由用戶手動重新發起
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("資料庫操作失敗: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
