package entity

// Action names a user-initiated write to the contract layer.
type Action string

const (
	ActionOpen     Action = "open"
	ActionClose    Action = "close"
	ActionDeposit  Action = "deposit"
	ActionWithdraw Action = "withdraw"
	ActionApprove  Action = "approve"
	ActionMint     Action = "mint"
)

// TxStatus is the state of a submitted transaction's receipt.
type TxStatus string

const (
	TxPending  TxStatus = "pending"
	TxSuccess  TxStatus = "success"
	TxReverted TxStatus = "reverted"
)

// Terminal reports whether no further status change is expected.
func (s TxStatus) Terminal() bool { return s == TxSuccess || s == TxReverted }

// ContractCall is a write to be relayed by the gateway. Args are already
// encoded: integers as decimal strings of raw fixed-point values.
type ContractCall struct {
	RequestID string
	To        string
	Method    string
	Args      []string
	From      string
}

// TxResult is the outcome of a confirmed submission.
type TxResult struct {
	RequestID string
	Action    Action
	Hash      string
	Status    TxStatus
}
