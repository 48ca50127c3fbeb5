/**
 * @description
 * This file defines the banking domain models: the Account held against a
 * subscriber's phone number and the LedgerEntry rows that record every money
 * movement on it.
 *
 * @notes
 * - Amounts are stored as `int64` kobo (the smallest currency unit) to avoid
 *   floating-point inaccuracies with financial data. Prompts render naira.
 * - The PIN is stored only as a bcrypt hash and is never logged.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// TierOne is the only tier USSD self-service onboarding opens; upgrades
// happen through other channels and are recorded in Account.Tier as-is.
const TierOne = "tier1"

// Account represents a subscriber's bank account. The phone number and the
// generated account number are both unique keys.
type Account struct {
	ID            uuid.UUID `json:"id"`
	PhoneNumber   string    `json:"phone_number"`
	AccountNumber string    `json:"account_number"`
	BVN           string    `json:"-"`
	Email         string    `json:"email"`
	Balance       int64     `json:"balance"` // in kobo
	PINHash       string    `json:"-"`
	Tier          string    `json:"tier"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

// EntryKind classifies a ledger entry by the operation that produced it.
type EntryKind string

const (
	EntryTransferDebit  EntryKind = "transfer_debit"
	EntryTransferCredit EntryKind = "transfer_credit"
	EntryAirtimeDebit   EntryKind = "airtime_debit"
	EntryDataDebit      EntryKind = "data_debit"
	EntryBillDebit      EntryKind = "bill_debit"
)

// Ledger entry statuses. There is no pending state: an entry is written only
// once its operation has already settled one way or the other.
const (
	EntryCompleted = "completed"
	EntryFailed    = "failed"
)

// LedgerEntry is one row of an account's transaction history. Amount is
// signed kobo: negative for debits, positive for credits. The two legs of an
// internal transfer share a TransferRef and reference each other through
// Counterparty.
type LedgerEntry struct {
	ID           uuid.UUID `json:"id"`
	AccountID    uuid.UUID `json:"account_id"`
	Kind         EntryKind `json:"kind"`
	Amount       int64     `json:"amount"` // in kobo, signed
	Counterparty string    `json:"counterparty,omitempty"`
	TransferRef  uuid.UUID `json:"transfer_ref,omitempty"`
	Status       string    `json:"status"`
	Description  string    `json:"description,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// TransferResult reports a completed internal transfer: the linked
// debit/credit pair and both post-transfer balances.
type TransferResult struct {
	Ref              uuid.UUID
	Debit            *LedgerEntry
	Credit           *LedgerEntry
	PayerBalance     int64
	RecipientBalance int64
}
