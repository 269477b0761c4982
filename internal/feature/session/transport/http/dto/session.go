// Package dto はsession HTTP API のデータ転送オブジェクトを定義します。
package dto

// SessionRequest は POST /session のリクエストです。
type SessionRequest struct {
	Account string `json:"account" binding:"required"`
	ChainID int64  `json:"chainId" binding:"required"`
}

// SessionResponse は発行したセッショントークンです。
type SessionResponse struct {
	Token   string `json:"token"`
	Account string `json:"account"`
	ChainID int64  `json:"chainId"`
}
