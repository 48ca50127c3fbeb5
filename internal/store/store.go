/**
 * @description
 * This file defines the `SessionStore` and `Ledger` interfaces, the contracts
 * for all conversation-state and account-state access in the service. The
 * state machine and the HTTP layer depend only on these interfaces, so the
 * in-memory implementations can be swapped for a durable backend without
 * touching the business logic, and tests can substitute hand-written stubs.
 *
 * @dependencies
 * - context, errors, time: Standard Go libraries.
 * - github.com/google/uuid: For account and entry identifiers.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/oneubank/ussd-service/internal/domain"
)

// Sentinel errors returned by Ledger implementations. Callers distinguish
// expected business outcomes from infrastructure faults with errors.Is.
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrRecipientNotFound = errors.New("recipient account not found")
	ErrDuplicateAccount  = errors.New("account already exists for phone number")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be a positive number of kobo")
	ErrInvalidPIN        = errors.New("transaction pin mismatch")
	ErrSelfTransfer      = errors.New("cannot transfer to the originating account")
)

// SessionStore owns the lifecycle of USSD conversation sessions.
//
// Implementations must be safe for concurrent use across session ids and must
// guarantee that a session idle longer than the configured timeout is never
// returned by GetOrCreate.
type SessionStore interface {
	// GetOrCreate returns the unexpired session for sessionID, or a fresh
	// session positioned at the root menu state when none exists.
	GetOrCreate(sessionID, phoneNumber string) *domain.Session
	// Save upserts the session and stamps LastTouchedAt.
	Save(session *domain.Session)
	// Evict removes the session immediately. Used on every terminal response
	// and on unrecoverable errors.
	Evict(sessionID string)
	// SweepExpired removes every session idle since before now minus the
	// configured timeout and reports how many were removed.
	SweepExpired(now time.Time) int
}

// Ledger is the authoritative store of account balances and transaction
// history. All balance mutation in the system goes through this interface;
// implementations serialize operations per account so a balance can never go
// negative or lose an update under concurrent callbacks.
type Ledger interface {
	// OpenAccount creates a Tier 1 account for the phone number with a zero
	// balance and a hashed PIN. Returns ErrDuplicateAccount when the phone
	// number already owns an account.
	OpenAccount(ctx context.Context, phoneNumber, bvn, email, pin string) (*domain.Account, error)

	FindByPhone(ctx context.Context, phoneNumber string) (*domain.Account, error)
	FindByAccountNumber(ctx context.Context, accountNumber string) (*domain.Account, error)

	// VerifyPIN compares the candidate against the account's stored PIN hash
	// in constant time. Returns ErrInvalidPIN on mismatch.
	VerifyPIN(ctx context.Context, accountID uuid.UUID, candidate string) error

	// Debit atomically decrements the balance and appends one completed
	// entry. Returns ErrInsufficientFunds (recording a failed entry) when the
	// amount exceeds the balance, leaving the balance unchanged.
	Debit(ctx context.Context, accountID uuid.UUID, amount int64, kind domain.EntryKind, counterparty, description string) (*domain.LedgerEntry, error)

	// Credit atomically increments the balance and appends one completed
	// entry. Always succeeds for a positive amount on an existing account.
	Credit(ctx context.Context, accountID uuid.UUID, amount int64, kind domain.EntryKind, counterparty, description string) (*domain.LedgerEntry, error)

	// Transfer moves amount from the payer to the account holding
	// recipientAccountNumber as one atomic unit, producing a linked
	// debit/credit entry pair. No money is created or destroyed: either both
	// legs commit or neither does.
	Transfer(ctx context.Context, payerID uuid.UUID, recipientAccountNumber string, amount int64) (*domain.TransferResult, error)

	// RecentHistory returns up to limit entries for the account, most recent
	// first.
	RecentHistory(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.LedgerEntry, error)
}
