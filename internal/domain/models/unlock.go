package models

import "time"

// Тарифы разблокировки
const (
	TierStandard = "standard"
	TierUrgent   = "urgent"
)

// Статусы разблокировки
const (
	UnlockStatusUnlocked  = "unlocked"
	UnlockStatusContacted = "contacted"
	UnlockStatusCompleted = "completed"
)

// Unlock представляет предоставленный клиенту доступ к контактам исполнителя.
// На пару (client_id, vendor_id) существует не более одной записи,
// это гарантируется уникальным индексом в БД.
type Unlock struct {
	ID            int64     `json:"id"`
	ClientID      int64     `json:"client_id"`
	VendorID      int64     `json:"vendor_id"`
	Tier          string    `json:"tier"`
	CoinsSpent    int64     `json:"coins_spent"`
	AmountCharged int64     `json:"amount_charged"` // отображаемая цена panic-режима, не монеты
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}
