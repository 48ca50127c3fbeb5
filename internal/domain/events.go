/**
 * @description
 * This file defines the message payloads published to RabbitMQ after
 * successful ledger operations. Downstream consumers (SMS notifications,
 * analytics) react to these asynchronously; the USSD dialog never waits on
 * them.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// AccountCreatedEvent is published when self-service onboarding opens a new
// account. The notification consumer sends the SMS confirmation the closing
// prompt promises.
type AccountCreatedEvent struct {
	AccountID     uuid.UUID `json:"account_id"`
	PhoneNumber   string    `json:"phone_number"`
	AccountNumber string    `json:"account_number"`
	Timestamp     time.Time `json:"timestamp"`
}

// TransferCompletedEvent is published once an internal transfer has committed
// both ledger legs.
type TransferCompletedEvent struct {
	TransferRef uuid.UUID `json:"transfer_ref"`
	FromAccount string    `json:"from_account"`
	ToAccount   string    `json:"to_account"`
	Amount      int64     `json:"amount"` // in kobo
	Timestamp   time.Time `json:"timestamp"`
}

// PurchaseCompletedEvent is published after airtime, data, or bill payment
// debits settle.
type PurchaseCompletedEvent struct {
	AccountID   uuid.UUID `json:"account_id"`
	Kind        string    `json:"kind"`
	Beneficiary string    `json:"beneficiary"`
	Amount      int64     `json:"amount"` // in kobo
	Timestamp   time.Time `json:"timestamp"`
}
