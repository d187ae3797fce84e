package models

import "time"

// Виды записей в журнале монет
const (
	TxKindCredit = "credit"
	TxKindDebit  = "debit"
)

// CoinTransaction представляет одну запись в журнале операций с монетами.
// Записи не изменяются и не удаляются: сумма Amount по аккаунту всегда
// равна его текущему балансу.
type CoinTransaction struct {
	ID              int64     `json:"id"`
	AccountID       int64     `json:"account_id"`
	Amount          int64     `json:"amount"` // знаковая дельта: списания отрицательные
	Kind            string    `json:"kind"`   // "credit" или "debit"
	Description     string    `json:"description"`
	RelatedVendorID *int64    `json:"related_vendor_id,omitempty"` // заполняется для списаний за разблокировку
	RelatedTxID     *int64    `json:"related_tx_id,omitempty"`     // для возвратов: id компенсируемого списания
	CreatedAt       time.Time `json:"created_at"`
}
