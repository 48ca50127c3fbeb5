package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/oneubank/ussd-service/internal/domain"
)

func openTestAccount(t *testing.T, l *MemoryLedger, phone string) *domain.Account {
	t.Helper()
	acct, err := l.OpenAccount(context.Background(), phone, "12345678901", "user@example.com", "1234")
	if err != nil {
		t.Fatalf("OpenAccount(%s) returned error: %v", phone, err)
	}
	return acct
}

func TestOpenAccount_StartsAtZeroBalance(t *testing.T) {
	l := NewMemoryLedger()
	acct := openTestAccount(t, l, "08031234567")

	if acct.Balance != 0 {
		t.Fatalf("expected zero opening balance, got %d", acct.Balance)
	}
	if acct.Tier != domain.TierOne {
		t.Fatalf("expected tier one account, got %q", acct.Tier)
	}
	if len(acct.AccountNumber) != 10 || acct.AccountNumber[0] != '3' {
		t.Fatalf("expected 10-digit account number starting with 3, got %q", acct.AccountNumber)
	}
}

func TestOpenAccount_RejectsDuplicatePhone(t *testing.T) {
	l := NewMemoryLedger()
	first := openTestAccount(t, l, "08031234567")

	if _, err := l.OpenAccount(context.Background(), "08031234567", "12345678901", "other@example.com", "9999"); !errors.Is(err, ErrDuplicateAccount) {
		t.Fatalf("expected ErrDuplicateAccount, got %v", err)
	}

	// The original account must survive the rejected re-registration.
	found, err := l.FindByPhone(context.Background(), "08031234567")
	if err != nil {
		t.Fatalf("FindByPhone returned error: %v", err)
	}
	if found.ID != first.ID {
		t.Fatalf("expected original account preserved, got id %s want %s", found.ID, first.ID)
	}
}

func TestVerifyPIN(t *testing.T) {
	l := NewMemoryLedger()
	acct := openTestAccount(t, l, "08031234567")

	if err := l.VerifyPIN(context.Background(), acct.ID, "1234"); err != nil {
		t.Fatalf("expected correct PIN to verify, got %v", err)
	}
	if err := l.VerifyPIN(context.Background(), acct.ID, "4321"); !errors.Is(err, ErrInvalidPIN) {
		t.Fatalf("expected ErrInvalidPIN for wrong PIN, got %v", err)
	}
}

func TestTransfer_MovesMoneyAtomically(t *testing.T) {
	l := NewMemoryLedger()
	payer := openTestAccount(t, l, "08031234567")
	recipient := openTestAccount(t, l, "08087654321")

	if _, err := l.Credit(context.Background(), payer.ID, 100_000, domain.EntryTransferCredit, "seed", "Opening credit"); err != nil {
		t.Fatalf("Credit returned error: %v", err)
	}

	res, err := l.Transfer(context.Background(), payer.ID, recipient.AccountNumber, 30_000)
	if err != nil {
		t.Fatalf("Transfer returned error: %v", err)
	}
	if res.PayerBalance != 70_000 {
		t.Fatalf("expected payer balance 70000, got %d", res.PayerBalance)
	}
	if res.RecipientBalance != 30_000 {
		t.Fatalf("expected recipient balance 30000, got %d", res.RecipientBalance)
	}
	if res.Debit.TransferRef != res.Credit.TransferRef {
		t.Fatalf("expected linked entries to share a transfer ref, got %s and %s", res.Debit.TransferRef, res.Credit.TransferRef)
	}
	if res.Debit.Amount != -30_000 || res.Credit.Amount != 30_000 {
		t.Fatalf("expected opposing entry amounts, got %d and %d", res.Debit.Amount, res.Credit.Amount)
	}
}

func TestTransfer_InsufficientFundsLeavesBalancesUnchanged(t *testing.T) {
	l := NewMemoryLedger()
	payer := openTestAccount(t, l, "08031234567")
	recipient := openTestAccount(t, l, "08087654321")

	if _, err := l.Credit(context.Background(), payer.ID, 10_000, domain.EntryTransferCredit, "seed", "Opening credit"); err != nil {
		t.Fatalf("Credit returned error: %v", err)
	}

	if _, err := l.Transfer(context.Background(), payer.ID, recipient.AccountNumber, 50_000); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	payerNow, _ := l.FindByPhone(context.Background(), "08031234567")
	recipientNow, _ := l.FindByPhone(context.Background(), "08087654321")
	if payerNow.Balance != 10_000 {
		t.Fatalf("expected payer balance unchanged at 10000, got %d", payerNow.Balance)
	}
	if recipientNow.Balance != 0 {
		t.Fatalf("expected recipient balance unchanged at 0, got %d", recipientNow.Balance)
	}

	// The rejected attempt still leaves a failed entry in the payer history.
	entries, err := l.RecentHistory(context.Background(), payer.ID, DefaultHistoryLimit)
	if err != nil {
		t.Fatalf("RecentHistory returned error: %v", err)
	}
	if len(entries) == 0 || entries[0].Status != domain.EntryFailed {
		t.Fatalf("expected most recent entry to be a failed debit, got %+v", entries)
	}
}

func TestTransfer_UnknownRecipientMutatesNothing(t *testing.T) {
	l := NewMemoryLedger()
	payer := openTestAccount(t, l, "08031234567")
	if _, err := l.Credit(context.Background(), payer.ID, 10_000, domain.EntryTransferCredit, "seed", "Opening credit"); err != nil {
		t.Fatalf("Credit returned error: %v", err)
	}

	if _, err := l.Transfer(context.Background(), payer.ID, "3999999999", 5_000); !errors.Is(err, ErrRecipientNotFound) {
		t.Fatalf("expected ErrRecipientNotFound, got %v", err)
	}

	payerNow, _ := l.FindByPhone(context.Background(), "08031234567")
	if payerNow.Balance != 10_000 {
		t.Fatalf("expected payer balance unchanged, got %d", payerNow.Balance)
	}
	entries, _ := l.RecentHistory(context.Background(), payer.ID, DefaultHistoryLimit)
	if len(entries) != 1 {
		t.Fatalf("expected only the seed entry in history, got %d entries", len(entries))
	}
}

func TestTransfer_RejectsSelfTransfer(t *testing.T) {
	l := NewMemoryLedger()
	payer := openTestAccount(t, l, "08031234567")
	if _, err := l.Credit(context.Background(), payer.ID, 10_000, domain.EntryTransferCredit, "seed", "Opening credit"); err != nil {
		t.Fatalf("Credit returned error: %v", err)
	}

	if _, err := l.Transfer(context.Background(), payer.ID, payer.AccountNumber, 5_000); !errors.Is(err, ErrSelfTransfer) {
		t.Fatalf("expected ErrSelfTransfer, got %v", err)
	}
}

func TestTransfer_RepeatedIdenticalTransfersEachMoveMoney(t *testing.T) {
	l := NewMemoryLedger()
	payer := openTestAccount(t, l, "08031234567")
	recipient := openTestAccount(t, l, "08087654321")
	if _, err := l.Credit(context.Background(), payer.ID, 100_000, domain.EntryTransferCredit, "seed", "Opening credit"); err != nil {
		t.Fatalf("Credit returned error: %v", err)
	}

	first, err := l.Transfer(context.Background(), payer.ID, recipient.AccountNumber, 20_000)
	if err != nil {
		t.Fatalf("first Transfer returned error: %v", err)
	}
	second, err := l.Transfer(context.Background(), payer.ID, recipient.AccountNumber, 20_000)
	if err != nil {
		t.Fatalf("second Transfer returned error: %v", err)
	}

	if first.Ref == second.Ref {
		t.Fatalf("expected distinct transfer refs for repeated transfers, both were %s", first.Ref)
	}
	if second.PayerBalance != 60_000 {
		t.Fatalf("expected payer balance 60000 after two transfers, got %d", second.PayerBalance)
	}
	if second.RecipientBalance != 40_000 {
		t.Fatalf("expected recipient balance 40000 after two transfers, got %d", second.RecipientBalance)
	}
}

func TestTransfer_ConcurrentOpposingTransfersConserveMoney(t *testing.T) {
	l := NewMemoryLedger()
	a := openTestAccount(t, l, "08031234567")
	b := openTestAccount(t, l, "08087654321")
	if _, err := l.Credit(context.Background(), a.ID, 100_000, domain.EntryTransferCredit, "seed", "Opening credit"); err != nil {
		t.Fatalf("Credit returned error: %v", err)
	}
	if _, err := l.Credit(context.Background(), b.ID, 100_000, domain.EntryTransferCredit, "seed", "Opening credit"); err != nil {
		t.Fatalf("Credit returned error: %v", err)
	}

	const rounds = 50
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			_, _ = l.Transfer(context.Background(), a.ID, b.AccountNumber, 100)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			_, _ = l.Transfer(context.Background(), b.ID, a.AccountNumber, 100)
		}
	}()
	wg.Wait()

	aNow, _ := l.FindByPhone(context.Background(), "08031234567")
	bNow, _ := l.FindByPhone(context.Background(), "08087654321")
	if total := aNow.Balance + bNow.Balance; total != 200_000 {
		t.Fatalf("expected total balance conserved at 200000, got %d", total)
	}
	if aNow.Balance < 0 || bNow.Balance < 0 {
		t.Fatalf("balances must never go negative, got %d and %d", aNow.Balance, bNow.Balance)
	}
}

func TestDebit_InsufficientFundsRecordsFailedEntry(t *testing.T) {
	l := NewMemoryLedger()
	acct := openTestAccount(t, l, "08031234567")

	if _, err := l.Debit(context.Background(), acct.ID, 5_000, domain.EntryAirtimeDebit, acct.PhoneNumber, "Airtime purchase"); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	now, _ := l.FindByPhone(context.Background(), "08031234567")
	if now.Balance != 0 {
		t.Fatalf("expected balance unchanged at 0, got %d", now.Balance)
	}
	entries, _ := l.RecentHistory(context.Background(), acct.ID, DefaultHistoryLimit)
	if len(entries) != 1 || entries[0].Status != domain.EntryFailed {
		t.Fatalf("expected one failed entry, got %+v", entries)
	}
}

func TestDebit_RejectsNonPositiveAmount(t *testing.T) {
	l := NewMemoryLedger()
	acct := openTestAccount(t, l, "08031234567")

	if _, err := l.Debit(context.Background(), acct.ID, 0, domain.EntryAirtimeDebit, acct.PhoneNumber, "Airtime purchase"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero, got %v", err)
	}
	if _, err := l.Debit(context.Background(), acct.ID, -500, domain.EntryAirtimeDebit, acct.PhoneNumber, "Airtime purchase"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative, got %v", err)
	}
}

func TestRecentHistory_ReturnsNewestFirstCapped(t *testing.T) {
	l := NewMemoryLedger()
	acct := openTestAccount(t, l, "08031234567")

	for i := 1; i <= 7; i++ {
		if _, err := l.Credit(context.Background(), acct.ID, int64(i*100), domain.EntryTransferCredit, "seed", "Credit"); err != nil {
			t.Fatalf("Credit %d returned error: %v", i, err)
		}
	}

	entries, err := l.RecentHistory(context.Background(), acct.ID, DefaultHistoryLimit)
	if err != nil {
		t.Fatalf("RecentHistory returned error: %v", err)
	}
	if len(entries) != DefaultHistoryLimit {
		t.Fatalf("expected %d entries, got %d", DefaultHistoryLimit, len(entries))
	}
	if entries[0].Amount != 700 {
		t.Fatalf("expected most recent entry first, got amount %d", entries[0].Amount)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Amount > entries[i-1].Amount {
			t.Fatalf("expected entries ordered newest first, got %+v", entries)
		}
	}
}

func TestDebit_CancelledContextLeavesBalanceUntouched(t *testing.T) {
	l := NewMemoryLedger()
	acct := openTestAccount(t, l, "08031234567")
	if _, err := l.Credit(context.Background(), acct.ID, 10_000, domain.EntryTransferCredit, "seed", "Opening credit"); err != nil {
		t.Fatalf("Credit returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Debit(ctx, acct.ID, 5_000, domain.EntryAirtimeDebit, acct.PhoneNumber, "Airtime purchase"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	now, _ := l.FindByPhone(context.Background(), "08031234567")
	if now.Balance != 10_000 {
		t.Fatalf("expected balance unchanged at 10000, got %d", now.Balance)
	}
}
