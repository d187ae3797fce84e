package service_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/velmark/eventa-coins/internal/domain/models"
	"github.com/velmark/eventa-coins/internal/service"
	"github.com/velmark/eventa-coins/internal/storage"
)

// fakeAccountRepo — фиктивный репозиторий аккаунтов для тестов аутентификации
// и активации профиля.
type fakeAccountRepo struct {
	accounts map[int64]*models.Account
	byEmail  map[string]*models.Account
	nextID   int64
}

var _ storage.AccountStorage = (*fakeAccountRepo)(nil)

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{
		accounts: make(map[int64]*models.Account),
		byEmail:  make(map[string]*models.Account),
	}
}

func (f *fakeAccountRepo) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	if account, ok := f.byEmail[email]; ok {
		return account, nil
	}
	return nil, storage.ErrAccountNotFound
}

func (f *fakeAccountRepo) GetAccountByID(ctx context.Context, id int64) (*models.Account, error) {
	if account, ok := f.accounts[id]; ok {
		return account, nil
	}
	return nil, storage.ErrAccountNotFound
}

func (f *fakeAccountRepo) CreateAccount(ctx context.Context, account *models.Account) (*models.Account, error) {
	f.nextID++
	account.ID = f.nextID
	f.accounts[account.ID] = account
	f.byEmail[account.Email] = account
	return account, nil
}

func (f *fakeAccountRepo) LockAccountByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Account, error) {
	return f.GetAccountByID(ctx, id)
}

func (f *fakeAccountRepo) UpdateAccountBalance(ctx context.Context, tx *sql.Tx, id int64, newBalance int64) error {
	account, ok := f.accounts[id]
	if !ok {
		return storage.ErrAccountNotFound
	}
	account.CoinBalance = newBalance
	return nil
}

func (f *fakeAccountRepo) SetProfileCompleted(ctx context.Context, tx *sql.Tx, id int64) error {
	account, ok := f.accounts[id]
	if !ok {
		return storage.ErrAccountNotFound
	}
	account.ProfileCompleted = true
	return nil
}

// fakeCoinTxRepo — фиктивный журнал монет, достаточный для проверок бонуса.
type fakeCoinTxRepo struct {
	entries []fakeLedgerEntry
	nextID  int64
}

var _ storage.CoinTransactionStorage = (*fakeCoinTxRepo)(nil)

func (f *fakeCoinTxRepo) CreateTransaction(ctx context.Context, tx *sql.Tx, accountID int64, amount int64, kind string, description string, relatedVendorID *int64, relatedTxID *int64) (int64, error) {
	f.nextID++
	f.entries = append(f.entries, fakeLedgerEntry{
		ID:              f.nextID,
		AccountID:       accountID,
		Amount:          amount,
		Kind:            kind,
		Description:     description,
		RelatedVendorID: relatedVendorID,
		RelatedTxID:     relatedTxID,
	})
	return f.nextID, nil
}

func (f *fakeCoinTxRepo) GetTransactionsByAccountID(ctx context.Context, accountID int64) ([]*models.CoinTransaction, error) {
	return nil, nil
}

func (f *fakeCoinTxRepo) ListOrphanedUnlockDebits(ctx context.Context, olderThan time.Time) ([]*models.CoinTransaction, error) {
	return nil, nil
}

func (f *fakeCoinTxRepo) HasRefundForTx(ctx context.Context, tx *sql.Tx, debitTxID int64) (bool, error) {
	return false, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

// Новый аккаунт создается с нулевым балансом, стартовые монеты при логине не зачисляются.
func TestLogin_CreatesAccountWithZeroBalance(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	accountRepo := newFakeAccountRepo()
	svc := service.NewAuthService(testLogger(), nil, accountRepo, &fakeCoinTxRepo{}, 2, time.Hour)

	token, err := svc.Login(context.Background(), "new@example.com", "password123")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	account, err := accountRepo.GetAccountByEmail(context.Background(), "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(0), account.CoinBalance, "New accounts start with zero coins")
	assert.Equal(t, models.RoleClient, account.Role)
	assert.False(t, account.ProfileCompleted)
}

func TestLogin_WrongPasswordRejected(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	accountRepo := newFakeAccountRepo()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.DefaultCost)
	require.NoError(t, err)
	_, err = accountRepo.CreateAccount(context.Background(), &models.Account{
		Email:    "user@example.com",
		PassHash: hash,
		Role:     models.RoleClient,
	})
	require.NoError(t, err)

	svc := service.NewAuthService(testLogger(), nil, accountRepo, &fakeCoinTxRepo{}, 2, time.Hour)
	_, err = svc.Login(context.Background(), "user@example.com", "wrong")
	assert.Error(t, err)
}

// Активация профиля один раз зачисляет стартовый бонус в одной транзакции
// с выставлением флага.
func TestActivateProfile_CreditsBonusOnce(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	accountRepo := newFakeAccountRepo()
	coinTxRepo := &fakeCoinTxRepo{}
	_, err = accountRepo.CreateAccount(context.Background(), &models.Account{
		Email: "user@example.com",
		Role:  models.RoleClient,
	})
	require.NoError(t, err)

	svc := service.NewAuthService(testLogger(), db, accountRepo, coinTxRepo, 2, time.Hour)

	mock.ExpectBegin()
	mock.ExpectCommit()

	balance, err := svc.ActivateProfile(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), balance, "Activation should credit the signup bonus")
	require.Len(t, coinTxRepo.entries, 1)
	assert.Equal(t, models.TxKindCredit, coinTxRepo.entries[0].Kind)
	assert.Equal(t, int64(2), coinTxRepo.entries[0].Amount)
	assert.Equal(t, "signup bonus", coinTxRepo.entries[0].Description)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Повторная активация — no-op: бонус не зачисляется второй раз.
func TestActivateProfile_Idempotent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	accountRepo := newFakeAccountRepo()
	coinTxRepo := &fakeCoinTxRepo{}
	_, err = accountRepo.CreateAccount(context.Background(), &models.Account{
		Email: "user@example.com",
		Role:  models.RoleClient,
	})
	require.NoError(t, err)

	svc := service.NewAuthService(testLogger(), db, accountRepo, coinTxRepo, 2, time.Hour)

	mock.ExpectBegin()
	mock.ExpectCommit()
	// повторный вызов завершается откатом после проверки флага
	mock.ExpectBegin()
	mock.ExpectRollback()

	first, err := svc.ActivateProfile(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), first)

	second, err := svc.ActivateProfile(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), second, "Repeat activation keeps the balance unchanged")
	assert.Len(t, coinTxRepo.entries, 1, "Bonus must be credited exactly once")
	assert.NoError(t, mock.ExpectationsWereMet())
}
