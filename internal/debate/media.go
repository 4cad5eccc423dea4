package debate

// MicAutoEnabled 依階段與發言權計算麥克風是否自動開啟
// 準備與結辯階段雙方皆開啟；正式回合只開啟輪到的一方；其餘階段關閉
func MicAutoEnabled(phase Phase, myTurn bool) bool {
	switch phase {
	case PhasePreparation, PhaseFinal:
		return true
	case PhaseRound:
		return myTurn
	default:
		return false
	}
}

// MediaErrorCause 定義媒體裝置取得失敗的原因
// 裝置失敗不影響階段推進，只用來向用戶顯示對應的提示
type MediaErrorCause string

const (
	MediaErrorDenied   MediaErrorCause = "denied"    // 用戶拒絕授權
	MediaErrorNotFound MediaErrorCause = "not-found" // 找不到裝置
	MediaErrorBusy     MediaErrorCause = "busy"      // 裝置被其他程式佔用
)

// Valid 檢查失敗原因是否為已知的值
func (c MediaErrorCause) Valid() bool {
	switch c {
	case MediaErrorDenied, MediaErrorNotFound, MediaErrorBusy:
		return true
	}
	return false
}

// Message 回傳對應原因的用戶提示文字
func (c MediaErrorCause) Message() string {
	switch c {
	case MediaErrorDenied:
		return "麥克風或攝影機授權被拒絕，請在瀏覽器設定中允許後重試"
	case MediaErrorNotFound:
		return "找不到可用的麥克風或攝影機裝置"
	case MediaErrorBusy:
		return "麥克風或攝影機正被其他應用程式使用"
	default:
		return "媒體裝置發生未知錯誤"
	}
}

// MediaError 表示一次媒體裝置取得失敗
type MediaError struct {
	Cause MediaErrorCause
}

func (e *MediaError) Error() string {
	return e.Cause.Message()
}
