package domain

import "time"

// StepKind identifies which purchase-pipeline step an order row records.
type StepKind string

const (
	StepKYC          StepKind = "KYC"
	StepQuantity     StepKind = "QUANTITY"
	StepPayment      StepKind = "PAYMENT"
	StepVaultConfirm StepKind = "VAULT_CONFIRM"
	StepPostBuy      StepKind = "POST_BUY"
)

// OrderStep is one immutable persisted record of a completed pipeline step.
// Rows are append-only; a later row of the same kind supersedes earlier ones
// for read purposes.
type OrderStep struct {
	ID            string
	UserID        string
	Step          StepKind
	KYCDetails    string
	QuantityGrams float64
	Amount        float64
	PaymentMethod string
	TransactionID string
	WalletID      string
	CreatedAt     time.Time
}

// Receipt is the final purchase summary assembled from the latest row of each
// step kind. Fields for steps the user never completed stay at their zero
// values.
type Receipt struct {
	UserID        string  `json:"userId"`
	KYCDetails    string  `json:"kycDetails"`
	QuantityGrams float64 `json:"quantityGrams"`
	Amount        float64 `json:"amount"`
	PaymentMethod string  `json:"paymentMethod"`
	TransactionID string  `json:"transactionId"`
	WalletID      string  `json:"walletId"`
	PurchaseTime  string  `json:"purchaseTime"`
	Message       string  `json:"message"`
}
