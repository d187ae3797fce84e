package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/velmark/eventa-coins/internal/domain/models"
)

var ErrVendorNotFound = errors.New("vendor not found")

// VendorStorage описывает методы для чтения атрибутов исполнителя.
// Атрибуты (кроме верификации) редактирует внешняя подсистема профилей.
type VendorStorage interface {
	GetVendorByID(ctx context.Context, id int64) (*models.Vendor, error)
	SetVendorVerified(ctx context.Context, id int64, verified bool) error
}

// vendorRepository — конкретная реализация интерфейса VendorStorage.
type vendorRepository struct {
	db *sql.DB
}

// NewVendorRepository создаёт новый репозиторий исполнителей.
func NewVendorRepository(db *sql.DB) VendorStorage {
	return &vendorRepository{db: db}
}

// GetVendorByID ищет исполнителя по id в таблице vendors.
func (r *vendorRepository) GetVendorByID(ctx context.Context, id int64) (*models.Vendor, error) {
	vendor := &models.Vendor{}
	query := `SELECT id, name, contact_email, contact_phone, available_today, panic_mode_opt_in, panic_mode_price, suspended, verified
	          FROM vendors WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)
	if err := row.Scan(&vendor.ID, &vendor.Name, &vendor.ContactEmail, &vendor.ContactPhone, &vendor.AvailableToday, &vendor.PanicModeOptIn, &vendor.PanicModePrice, &vendor.Suspended, &vendor.Verified); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVendorNotFound
		}
		return nil, err
	}
	return vendor, nil
}

func (r *vendorRepository) SetVendorVerified(ctx context.Context, id int64, verified bool) error {
	res, err := r.db.ExecContext(ctx, "UPDATE vendors SET verified = $1 WHERE id = $2", verified, id)
	if err != nil {
		return fmt.Errorf("failed to update vendor verification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrVendorNotFound
	}
	return nil
}
