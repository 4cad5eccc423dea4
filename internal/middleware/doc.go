// Package middleware 提供了 HTTP 請求處理的中間件。
//
// 這個包包含了各種中間件函數，用於在 HTTP 請求處理過程中執行額外的操作。
// 目前只有 JWT 驗證：解析 token 後把用戶 ID 與立場放進請求上下文。
package middleware
