package service

import (
	"math/rand"
	"strconv"
	"strings"
	"time"
)

// CodeLength 會話代碼的固定長度
const CodeLength = 6

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// maxCodeAttempts 隨機代碼撞碼時的重試上限
const maxCodeAttempts = 100

// CodeGenerator 產生會話代碼
// 隨機來源與時鐘由外部注入，測試時可以固定
type CodeGenerator struct {
	rng *rand.Rand
	now func() time.Time
}

func NewCodeGenerator(rng *rand.Rand) *CodeGenerator {
	return &CodeGenerator{rng: rng, now: time.Now}
}

// Generate 產生一組目前未被佔用的代碼
// inUse 同時涵蓋存活會話與已用代碼帳目
// 重試耗盡時退回以時間戳推導的代碼：這條後備路徑放棄均勻隨機性換取必定終止，
// 同一毫秒內的高頻建立仍可能產生相同代碼
func (g *CodeGenerator) Generate(inUse func(code string) (bool, error)) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code := g.randomCode()
		used, err := inUse(code)
		if err != nil {
			return "", err
		}
		if !used {
			return code, nil
		}
	}
	return g.timeCode(), nil
}

func (g *CodeGenerator) randomCode() string {
	b := make([]byte, CodeLength)
	for i := range b {
		b[i] = codeAlphabet[g.rng.Intn(len(codeAlphabet))]
	}
	return string(b)
}

// timeCode 以目前時間的毫秒數做 36 進位編碼，截取末尾六位
func (g *CodeGenerator) timeCode() string {
	s := strings.ToUpper(strconv.FormatInt(g.now().UnixMilli(), 36))
	if len(s) >= CodeLength {
		return s[len(s)-CodeLength:]
	}
	return strings.Repeat("0", CodeLength-len(s)) + s
}

// NormalizeCode 把用戶輸入的代碼整理成查詢用的標準形式
// 代碼不分大小寫，一律以大寫儲存與比對
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
