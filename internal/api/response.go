// Package api はフィーチャー間で共有する HTTP レスポンス型を提供します。
package api

// ErrorResponse はエラー時の共通レスポンスです。
type ErrorResponse struct {
	Error string `json:"error"`
}
