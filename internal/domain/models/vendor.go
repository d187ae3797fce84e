package models

// Vendor представляет исполнителя. Атрибуты доступности и panic-режима
// редактируются внешней подсистемой профилей, здесь они только читаются
// (кроме флага верификации, который меняет администратор).
type Vendor struct {
	ID             int64
	Name           string
	ContactEmail   string
	ContactPhone   string
	AvailableToday bool
	PanicModeOptIn bool
	PanicModePrice int64 // цена в денежных единицах для отображения, не в монетах
	Suspended      bool
	Verified       bool
}
