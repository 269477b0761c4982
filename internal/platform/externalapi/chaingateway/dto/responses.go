// Package dto defines the chain gateway wire format.
//
// Every integer is a decimal string. Amounts, prices and sizes are raw
// 18-decimal fixed-point values; basis points are plain integers.
package dto

// PositionResponse is returned by GET /positions/{account}/{marketId}.
type PositionResponse struct {
	Size             string `json:"size"`
	Margin           string `json:"margin"`
	EntryPriceX18    string `json:"entryPriceX18"`
	LastFundingIndex string `json:"lastFundingIndex"`
	RealizedPnL      string `json:"realizedPnL"`
}

// AccountValueResponse is returned by GET /accounts/{account}/value.
type AccountValueResponse struct {
	Value string `json:"value"`
}

// RiskParamsResponse is returned by GET /markets/{marketId}/risk.
type RiskParamsResponse struct {
	IMRBps                string `json:"imrBps"`
	MMRBps                string `json:"mmrBps"`
	LiquidationPenaltyBps string `json:"liquidationPenaltyBps"`
	PenaltyCap            string `json:"penaltyCap"`
}

// LiquidationResponse is returned by GET /markets/{marketId}/liquidation/{account}.
type LiquidationResponse struct {
	Liquidatable      bool   `json:"isLiquidatable"`
	MaintenanceMargin string `json:"maintenanceMargin"`
}

// MarkPriceResponse is returned by GET /amm/{address}/mark.
type MarkPriceResponse struct {
	Price string `json:"price"`
}

// TxRequest is the body of POST /tx.
type TxRequest struct {
	RequestID string   `json:"requestId,omitempty"`
	To        string   `json:"to"`
	Method    string   `json:"method"`
	Args      []string `json:"args"`
	From      string   `json:"from"`
}

// TxResponse is returned by POST /tx.
type TxResponse struct {
	Hash string `json:"hash"`
}

// ReceiptResponse is returned by GET /tx/{hash}/receipt.
type ReceiptResponse struct {
	Status string `json:"status"` // pending|success|reverted
}

// ErrorResponse is the body of any non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
