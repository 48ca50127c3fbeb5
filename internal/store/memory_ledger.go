/**
 * @description
 * This file implements the in-memory Ledger. Accounts live in maps keyed by
 * phone number, account number, and internal id; a store-level RWMutex guards
 * the maps while each account carries its own mutex so balance mutations on
 * one account never block unrelated accounts.
 *
 * Key invariants enforced here:
 * - A balance never goes negative: every debit is checked under the account
 *   lock before the decrement.
 * - A transfer commits both legs or neither. Both account locks are held for
 *   the whole mutation, acquired in account-id order to avoid deadlock.
 * - Account numbers are generated from crypto/rand and checked for
 *   uniqueness under the write lock, so concurrent onboarding cannot collide.
 *
 * @dependencies
 * - context, crypto/rand, fmt, sync, time: Standard Go libraries.
 * - github.com/google/uuid: Account and entry identifiers.
 * - golang.org/x/crypto/bcrypt: PIN hashing and constant-time verification.
 */

package store

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/oneubank/ussd-service/internal/domain"
)

// DefaultHistoryLimit is the number of entries a mini statement shows.
const DefaultHistoryLimit = 5

// accountRecord pairs an account with its history and its own lock. The
// record mutex serializes all balance and history mutation for the account.
type accountRecord struct {
	mu      sync.Mutex
	account domain.Account
	entries []domain.LedgerEntry
}

// MemoryLedger is a process-local Ledger implementation.
type MemoryLedger struct {
	mu       sync.RWMutex
	byPhone  map[string]*accountRecord
	byNumber map[string]*accountRecord
	byID     map[uuid.UUID]*accountRecord

	now func() time.Time // injectable clock for tests
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		byPhone:  make(map[string]*accountRecord),
		byNumber: make(map[string]*accountRecord),
		byID:     make(map[uuid.UUID]*accountRecord),
		now:      time.Now,
	}
}

// OpenAccount creates a Tier 1 account with a zero balance. Re-registration
// is rejected rather than overwriting the existing account, which would
// silently destroy its balance and history.
func (l *MemoryLedger) OpenAccount(ctx context.Context, phoneNumber, bvn, email, pin string) (*domain.Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash pin: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.byPhone[phoneNumber]; exists {
		return nil, ErrDuplicateAccount
	}

	number, err := l.uniqueAccountNumberLocked()
	if err != nil {
		return nil, err
	}

	rec := &accountRecord{
		account: domain.Account{
			ID:            uuid.New(),
			PhoneNumber:   phoneNumber,
			AccountNumber: number,
			BVN:           bvn,
			Email:         email,
			Balance:       0,
			PINHash:       string(hash),
			Tier:          domain.TierOne,
			Active:        true,
			CreatedAt:     l.now(),
		},
	}

	l.byPhone[phoneNumber] = rec
	l.byNumber[number] = rec
	l.byID[rec.account.ID] = rec

	acct := rec.account
	return &acct, nil
}

// FindByPhone returns the account owned by the phone number.
func (l *MemoryLedger) FindByPhone(ctx context.Context, phoneNumber string) (*domain.Account, error) {
	l.mu.RLock()
	rec, ok := l.byPhone[phoneNumber]
	l.mu.RUnlock()
	if !ok {
		return nil, ErrAccountNotFound
	}
	return rec.snapshot(), nil
}

// FindByAccountNumber returns the account holding the account number.
func (l *MemoryLedger) FindByAccountNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	l.mu.RLock()
	rec, ok := l.byNumber[accountNumber]
	l.mu.RUnlock()
	if !ok {
		return nil, ErrAccountNotFound
	}
	return rec.snapshot(), nil
}

// VerifyPIN compares the candidate PIN against the stored hash. bcrypt's
// comparison is constant-time, so a mismatch leaks no timing information.
func (l *MemoryLedger) VerifyPIN(ctx context.Context, accountID uuid.UUID, candidate string) error {
	rec, err := l.record(accountID)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	hash := rec.account.PINHash
	rec.mu.Unlock()

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) != nil {
		return ErrInvalidPIN
	}
	return nil
}

// Debit decrements the balance and appends one entry. An attempt exceeding
// the balance records a failed entry, leaves the balance unchanged, and
// returns ErrInsufficientFunds.
func (l *MemoryLedger) Debit(ctx context.Context, accountID uuid.UUID, amount int64, kind domain.EntryKind, counterparty, description string) (*domain.LedgerEntry, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	rec, err := l.record(accountID)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if rec.account.Balance < amount {
		rec.appendLocked(domain.LedgerEntry{
			ID:           uuid.New(),
			AccountID:    accountID,
			Kind:         kind,
			Amount:       -amount,
			Counterparty: counterparty,
			Status:       domain.EntryFailed,
			Description:  "Insufficient funds",
			CreatedAt:    l.now(),
		})
		return nil, ErrInsufficientFunds
	}

	rec.account.Balance -= amount
	entry := domain.LedgerEntry{
		ID:           uuid.New(),
		AccountID:    accountID,
		Kind:         kind,
		Amount:       -amount,
		Counterparty: counterparty,
		Status:       domain.EntryCompleted,
		Description:  description,
		CreatedAt:    l.now(),
	}
	rec.appendLocked(entry)
	return &entry, nil
}

// Credit increments the balance and appends one entry.
func (l *MemoryLedger) Credit(ctx context.Context, accountID uuid.UUID, amount int64, kind domain.EntryKind, counterparty, description string) (*domain.LedgerEntry, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	rec, err := l.record(accountID)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec.account.Balance += amount
	entry := domain.LedgerEntry{
		ID:           uuid.New(),
		AccountID:    accountID,
		Kind:         kind,
		Amount:       amount,
		Counterparty: counterparty,
		Status:       domain.EntryCompleted,
		Description:  description,
		CreatedAt:    l.now(),
	}
	rec.appendLocked(entry)
	return &entry, nil
}

// Transfer moves amount between two internal accounts as one atomic unit.
// Both account locks are held for the whole mutation, acquired in account-id
// order so two opposing transfers cannot deadlock. Each call is a new money
// movement; repeating an identical transfer produces a second entry pair.
func (l *MemoryLedger) Transfer(ctx context.Context, payerID uuid.UUID, recipientAccountNumber string, amount int64) (*domain.TransferResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	payer, err := l.record(payerID)
	if err != nil {
		return nil, err
	}

	l.mu.RLock()
	recipient, ok := l.byNumber[recipientAccountNumber]
	l.mu.RUnlock()
	if !ok {
		return nil, ErrRecipientNotFound
	}
	if recipient == payer {
		return nil, ErrSelfTransfer
	}

	first, second := payer, recipient
	if second.account.ID.String() < first.account.ID.String() {
		first, second = second, first
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	// Nothing has been applied yet; a cancelled callback leaves both
	// balances untouched.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := l.now()
	if payer.account.Balance < amount {
		payer.appendLocked(domain.LedgerEntry{
			ID:           uuid.New(),
			AccountID:    payer.account.ID,
			Kind:         domain.EntryTransferDebit,
			Amount:       -amount,
			Counterparty: recipientAccountNumber,
			Status:       domain.EntryFailed,
			Description:  "Insufficient funds",
			CreatedAt:    now,
		})
		return nil, ErrInsufficientFunds
	}

	ref := uuid.New()
	payer.account.Balance -= amount
	recipient.account.Balance += amount

	debit := domain.LedgerEntry{
		ID:           uuid.New(),
		AccountID:    payer.account.ID,
		Kind:         domain.EntryTransferDebit,
		Amount:       -amount,
		Counterparty: recipientAccountNumber,
		TransferRef:  ref,
		Status:       domain.EntryCompleted,
		Description:  fmt.Sprintf("Transfer to %s", recipientAccountNumber),
		CreatedAt:    now,
	}
	credit := domain.LedgerEntry{
		ID:           uuid.New(),
		AccountID:    recipient.account.ID,
		Kind:         domain.EntryTransferCredit,
		Amount:       amount,
		Counterparty: payer.account.AccountNumber,
		TransferRef:  ref,
		Status:       domain.EntryCompleted,
		Description:  fmt.Sprintf("Transfer from %s", payer.account.AccountNumber),
		CreatedAt:    now,
	}
	payer.appendLocked(debit)
	recipient.appendLocked(credit)

	return &domain.TransferResult{
		Ref:              ref,
		Debit:            &debit,
		Credit:           &credit,
		PayerBalance:     payer.account.Balance,
		RecipientBalance: recipient.account.Balance,
	}, nil
}

// RecentHistory returns up to limit entries, most recent first. A
// non-positive limit falls back to DefaultHistoryLimit.
func (l *MemoryLedger) RecentHistory(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rec, err := l.record(accountID)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	n := len(rec.entries)
	if limit > n {
		limit = n
	}
	out := make([]domain.LedgerEntry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, rec.entries[i])
	}
	return out, nil
}

func (l *MemoryLedger) record(accountID uuid.UUID) (*accountRecord, error) {
	l.mu.RLock()
	rec, ok := l.byID[accountID]
	l.mu.RUnlock()
	if !ok {
		return nil, ErrAccountNotFound
	}
	return rec, nil
}

// uniqueAccountNumberLocked draws 10-digit account numbers (NUBAN-style,
// leading '3') from crypto/rand until one is unused. Caller holds l.mu.
func (l *MemoryLedger) uniqueAccountNumberLocked() (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		buf := make([]byte, 9)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate account number: %w", err)
		}
		digits := make([]byte, 0, 10)
		digits = append(digits, '3')
		for _, b := range buf {
			digits = append(digits, '0'+b%10)
		}
		number := string(digits)
		if _, taken := l.byNumber[number]; !taken {
			return number, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique account number")
}

func (r *accountRecord) appendLocked(entry domain.LedgerEntry) {
	r.entries = append(r.entries, entry)
}

// snapshot copies the account under its lock so callers never hold a pointer
// into ledger-owned state.
func (r *accountRecord) snapshot() *domain.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	acct := r.account
	return &acct
}
