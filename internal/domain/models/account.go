package models

// Роли пользователей
const (
	RoleClient = "client"
	RoleAdmin  = "admin"
)

// Account представляет кошелек пользователя (клиента или администратора)
type Account struct {
	ID               int64
	Email            string
	PassHash         []byte
	Role             string
	CoinBalance      int64 // всегда >= 0, изменяется только через LedgerService
	ProfileCompleted bool
}
