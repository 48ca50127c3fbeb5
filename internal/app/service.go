/**
 * @description
 * This file contains the core business logic of the USSD gateway. The
 * `Service` struct orchestrates one gateway callback end to end: it
 * reconstructs the conversation from the session store, advances the menu
 * state machine by exactly one step, drives the ledger and the identity
 * verifier from action nodes, and decides whether the session survives the
 * step or is evicted.
 *
 * Key guarantees:
 * - A caller never sees an unstructured fault: collaborator errors and
 *   panics collapse into one generic terminal response and the session is
 *   evicted, so no partial state outlives a failure.
 * - Balance mutation only ever happens through the Ledger contract.
 * - Raw PINs flow straight from the gateway token into the verifying call;
 *   they are never written to session scratch or logs.
 *
 * @dependencies
 * - context, errors, fmt, log, strconv, strings, time: Standard Go libraries.
 * - github.com/google/uuid: Event payload identifiers.
 * - internal/domain, internal/store: Domain models and state contracts.
 * - pkg/kycclient, pkg/rabbitmq: External verifier and event broker clients.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oneubank/ussd-service/internal/domain"
	"github.com/oneubank/ussd-service/internal/store"
	"github.com/oneubank/ussd-service/pkg/kycclient"
	"github.com/oneubank/ussd-service/pkg/rabbitmq"
)

// IdentityVerifier is the external KYC/BVN collaborator. It may be slow; the
// call must honor the request context so one stuck verification cannot wedge
// other sessions.
type IdentityVerifier interface {
	VerifyIdentity(ctx context.Context, identifier string) (*kycclient.Result, error)
}

// RateLimiter decides whether one more callback from a phone number fits its
// budget. The budget and window are the implementation's policy.
type RateLimiter interface {
	AllowCallback(ctx context.Context, phoneNumber string) (allowed bool, retryAfterSeconds int, err error)
}

// TransferLimits is the advisory limit set rendered by the "Check Transfer
// Limits" flow. Values are kobo.
type TransferLimits struct {
	PerTransaction int64
	Daily          int64
	Weekly         int64
}

// Service handles USSD conversations.
type Service struct {
	sessions store.SessionStore
	ledger   store.Ledger
	verifier IdentityVerifier
	events   rabbitmq.Publisher
	limits   TransferLimits

	limiter RateLimiter

	graph map[string]*node
}

// NewService wires the conversation controller with its collaborators. The
// events publisher may be nil when no broker is configured.
func NewService(sessions store.SessionStore, ledger store.Ledger, verifier IdentityVerifier, events rabbitmq.Publisher, limits TransferLimits) *Service {
	s := &Service{
		sessions: sessions,
		ledger:   ledger,
		verifier: verifier,
		events:   events,
		limits:   limits,
	}
	s.graph = buildGraph(s)
	return s
}

// SetRateLimiter enables per-phone callback rate limiting. A nil limiter
// disables it.
func (s *Service) SetRateLimiter(limiter RateLimiter) {
	s.limiter = limiter
}

// HandleRequest processes one gateway callback and always returns a
// well-formed response stamped with the inbound session id.
func (s *Service) HandleRequest(ctx context.Context, req domain.USSDRequest) (resp domain.USSDResponse) {
	resp = domain.USSDResponse{SessionID: req.SessionID, Message: msgInternalError}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("level=error component=ussd msg=\"panic recovered\" session_id=%s panic=%v", req.SessionID, r)
			s.sessions.Evict(req.SessionID)
			resp = domain.USSDResponse{SessionID: req.SessionID, Message: msgInternalError}
		}
	}()

	if s.limiter != nil {
		allowed, _, err := s.limiter.AllowCallback(ctx, req.PhoneNumber)
		if err != nil {
			// The limiter is best-effort; a broken Redis must not take the
			// gateway down with it.
			log.Printf("level=warn component=ussd msg=\"rate limiter unavailable; allowing callback\" err=%v", err)
		} else if !allowed {
			s.sessions.Evict(req.SessionID)
			return domain.USSDResponse{SessionID: req.SessionID, Message: msgTooManyDials}
		}
	}

	sess := s.sessions.GetOrCreate(req.SessionID, req.PhoneNumber)

	segments := strings.Split(req.Text, "*")
	token := segments[len(segments)-1]

	var message string
	var cont bool
	if len(segments) == 1 && token == "" {
		// First callback of a conversation: serve the root menu directly.
		sess.State = stateMain
		message, cont = s.graph[stateMain].prompt(sess), true
	} else {
		var err error
		message, cont, err = s.step(ctx, sess, token)
		if err != nil {
			log.Printf("level=error component=ussd msg=\"step failed\" session_id=%s state=%s err=%v", req.SessionID, sess.State, err)
			s.sessions.Evict(req.SessionID)
			return domain.USSDResponse{SessionID: req.SessionID, Message: msgInternalError}
		}
	}

	if cont {
		s.sessions.Save(sess)
	} else {
		s.sessions.Evict(req.SessionID)
	}

	return domain.USSDResponse{SessionID: req.SessionID, Message: message, ContinueSession: cont}
}

// step advances the state machine by one node. The returned error is
// reserved for collaborator faults; every expected business outcome is a
// (message, continue) pair.
func (s *Service) step(ctx context.Context, sess *domain.Session, token string) (string, bool, error) {
	n, ok := s.graph[sess.State]
	if !ok {
		return msgInvalidInput, false, nil
	}

	switch n.kind {
	case nodeMenu:
		idx, err := strconv.Atoi(strings.TrimSpace(token))
		if err != nil || idx < 1 || idx > len(n.options) {
			if n.invalid != "" {
				return n.invalid, false, nil
			}
			return msgInvalidInput, false, nil
		}
		opt := n.options[idx-1]
		if n.field != "" {
			sess.Scratch[n.field] = opt.label
		}
		return s.enter(sess, opt.target)

	case nodeCollect:
		value, err := n.validate(token)
		if err != nil {
			return n.invalid, false, nil
		}
		if n.field != "" {
			sess.Scratch[n.field] = value
		}
		if n.action != nil {
			return n.action(ctx, sess, value)
		}
		return s.enter(sess, n.next)

	default:
		// Notice nodes are terminal and never looked up again; a session
		// pointing at one means it escaped eviction somehow.
		return msgInvalidInput, false, nil
	}
}

// enter transitions the session to the target node and renders its prompt.
// Notice targets end the dialog.
func (s *Service) enter(sess *domain.Session, target string) (string, bool, error) {
	t, ok := s.graph[target]
	if !ok {
		return "", false, fmt.Errorf("menu graph has no node %q", target)
	}
	sess.PriorState = sess.State
	sess.State = target
	return t.prompt(sess), t.kind != nodeNotice, nil
}

// authorize resolves the caller's account and checks the PIN candidate.
// A nil account with a non-empty message is an expected rejection.
func (s *Service) authorize(ctx context.Context, phoneNumber, pin string) (*domain.Account, string, error) {
	acct, err := s.ledger.FindByPhone(ctx, phoneNumber)
	if errors.Is(err, store.ErrAccountNotFound) {
		return nil, msgNoAccount, nil
	}
	if err != nil {
		return nil, "", err
	}
	if err := s.ledger.VerifyPIN(ctx, acct.ID, pin); err != nil {
		if errors.Is(err, store.ErrInvalidPIN) {
			return nil, msgInvalidPIN, nil
		}
		return nil, "", err
	}
	return acct, "", nil
}

// scratchAmount reads the canonical kobo amount collected earlier in the
// flow. The validator guarantees the stored value parses.
func scratchAmount(sess *domain.Session) int64 {
	v, _ := strconv.ParseInt(sess.Scratch[fieldAmount], 10, 64)
	return v
}

// --- Account management actions ---

func (s *Service) verifyBVN(ctx context.Context, sess *domain.Session, bvn string) (string, bool, error) {
	res, err := s.verifier.VerifyIdentity(ctx, bvn)
	if err != nil {
		return "", false, fmt.Errorf("identity verification: %w", err)
	}
	if !res.Valid {
		return "Invalid BVN. Please try again.", false, nil
	}
	if res.Profile != nil {
		sess.Scratch[fieldFirstName] = res.Profile.FirstName
		sess.Scratch[fieldLastName] = res.Profile.LastName
	}
	return s.enter(sess, stateOpenAccountEmail)
}

func (s *Service) createAccount(ctx context.Context, sess *domain.Session, pin string) (string, bool, error) {
	acct, err := s.ledger.OpenAccount(ctx, sess.PhoneNumber, sess.Scratch[fieldBVN], sess.Scratch[fieldEmail], pin)
	if errors.Is(err, store.ErrDuplicateAccount) {
		return "You already have a 1UBank account on this number. Please contact support to manage it.", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("open account: %w", err)
	}

	s.publishAccountCreated(ctx, acct)
	return fmt.Sprintf("Account created successfully!\nAccount No: %s\nYou will receive SMS confirmation shortly.", acct.AccountNumber), false, nil
}

func (s *Service) checkBalance(ctx context.Context, sess *domain.Session, pin string) (string, bool, error) {
	acct, msg, err := s.authorize(ctx, sess.PhoneNumber, pin)
	if err != nil || acct == nil {
		return msg, false, err
	}
	return fmt.Sprintf("Your account balance: %s", formatNaira(acct.Balance)), false, nil
}

func (s *Service) miniStatement(ctx context.Context, sess *domain.Session, pin string) (string, bool, error) {
	acct, msg, err := s.authorize(ctx, sess.PhoneNumber, pin)
	if err != nil || acct == nil {
		return msg, false, err
	}

	entries, err := s.ledger.RecentHistory(ctx, acct.ID, store.DefaultHistoryLimit)
	if err != nil {
		return "", false, fmt.Errorf("recent history: %w", err)
	}
	if len(entries) == 0 {
		return "Last 5 Transactions:\nNo transactions yet.", false, nil
	}

	var b strings.Builder
	b.WriteString("Last 5 Transactions:")
	for _, e := range entries {
		amount := formatNaira(e.Amount)
		if e.Amount > 0 {
			amount = "+" + amount
		}
		fmt.Fprintf(&b, "\n%s: %s - %s", e.CreatedAt.Format("02/01/2006"), amount, e.Description)
	}
	return b.String(), false, nil
}

func (s *Service) requestPINReset(ctx context.Context, sess *domain.Session, email string) (string, bool, error) {
	if _, err := s.ledger.FindByPhone(ctx, sess.PhoneNumber); errors.Is(err, store.ErrAccountNotFound) {
		return msgNoAccount, false, nil
	} else if err != nil {
		return "", false, err
	}
	// OTP issuance and the reset itself happen out of band.
	return fmt.Sprintf("A PIN reset OTP has been sent to %s. Follow the SMS instructions to complete the reset.", email), false, nil
}

// --- Transfer actions ---

func (s *Service) transferInternal(ctx context.Context, sess *domain.Session, pin string) (string, bool, error) {
	acct, msg, err := s.authorize(ctx, sess.PhoneNumber, pin)
	if err != nil || acct == nil {
		return msg, false, err
	}

	amount := scratchAmount(sess)
	recipient := sess.Scratch[fieldRecipient]

	res, err := s.ledger.Transfer(ctx, acct.ID, recipient, amount)
	switch {
	case errors.Is(err, store.ErrRecipientNotFound):
		return "Transfer failed: Recipient account not found.", false, nil
	case errors.Is(err, store.ErrSelfTransfer):
		return "Transfer failed: You cannot transfer to your own account.", false, nil
	case errors.Is(err, store.ErrInsufficientFunds):
		return "Transfer failed: Insufficient funds.", false, nil
	case err != nil:
		return "", false, fmt.Errorf("transfer: %w", err)
	}

	s.publishTransferCompleted(ctx, res.Ref, acct.AccountNumber, recipient, amount)
	return fmt.Sprintf("Transfer successful! %s sent to %s.\nNew balance: %s",
		formatNaira(amount), recipient, formatNaira(res.PayerBalance)), false, nil
}

func (s *Service) transferExternal(ctx context.Context, sess *domain.Session, pin string) (string, bool, error) {
	acct, msg, err := s.authorize(ctx, sess.PhoneNumber, pin)
	if err != nil || acct == nil {
		return msg, false, err
	}

	amount := scratchAmount(sess)
	recipient := sess.Scratch[fieldRecipient]
	bank := sess.Scratch[fieldBank]
	counterparty := fmt.Sprintf("%s (%s)", recipient, bank)

	entry, err := s.ledger.Debit(ctx, acct.ID, amount, domain.EntryTransferDebit, counterparty,
		fmt.Sprintf("Transfer to %s", counterparty))
	if errors.Is(err, store.ErrInsufficientFunds) {
		return "Transfer failed: Insufficient funds.", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("external transfer debit: %w", err)
	}

	s.publishTransferCompleted(ctx, entry.ID, acct.AccountNumber, counterparty, amount)
	return fmt.Sprintf("Transfer of %s to %s is being processed. You will receive SMS confirmation shortly.",
		formatNaira(amount), counterparty), false, nil
}

func (s *Service) checkTransferLimits(ctx context.Context, sess *domain.Session, pin string) (string, bool, error) {
	acct, msg, err := s.authorize(ctx, sess.PhoneNumber, pin)
	if err != nil || acct == nil {
		return msg, false, err
	}
	return fmt.Sprintf("Transfer Limits:\nPer Transaction: %s\nDaily: %s\nWeekly: %s",
		formatNaira(s.limits.PerTransaction), formatNaira(s.limits.Daily), formatNaira(s.limits.Weekly)), false, nil
}

// --- Airtime, data, and bill actions ---

// debitPurchase is the shared tail of every purchase flow: authorize, debit,
// publish, and render the terminal message.
func (s *Service) debitPurchase(ctx context.Context, sess *domain.Session, pin string, amount int64, kind domain.EntryKind, beneficiary, description, success, failPrefix string) (string, bool, error) {
	acct, msg, err := s.authorize(ctx, sess.PhoneNumber, pin)
	if err != nil || acct == nil {
		return msg, false, err
	}

	if _, err := s.ledger.Debit(ctx, acct.ID, amount, kind, beneficiary, description); err != nil {
		if errors.Is(err, store.ErrInsufficientFunds) {
			return failPrefix + ": Insufficient funds.", false, nil
		}
		return "", false, fmt.Errorf("%s debit: %w", kind, err)
	}

	s.publishPurchaseCompleted(ctx, acct.ID, string(kind), beneficiary, amount)
	return success, false, nil
}

func (s *Service) buyAirtimeSelf(ctx context.Context, sess *domain.Session, pin string) (string, bool, error) {
	amount := scratchAmount(sess)
	return s.debitPurchase(ctx, sess, pin, amount, domain.EntryAirtimeDebit, sess.PhoneNumber,
		fmt.Sprintf("Airtime purchase for %s", sess.PhoneNumber),
		fmt.Sprintf("Airtime purchase successful! %s airtime sent to %s.", formatNaira(amount), sess.PhoneNumber),
		"Airtime purchase failed")
}

func (s *Service) buyAirtimeOthers(ctx context.Context, sess *domain.Session, pin string) (string, bool, error) {
	amount := scratchAmount(sess)
	beneficiary := sess.Scratch[fieldRecipientPhone]
	return s.debitPurchase(ctx, sess, pin, amount, domain.EntryAirtimeDebit, beneficiary,
		fmt.Sprintf("Airtime purchase for %s", beneficiary),
		fmt.Sprintf("Airtime purchase successful! %s %s airtime sent to %s.",
			formatNaira(amount), sess.Scratch[fieldNetwork], beneficiary),
		"Airtime purchase failed")
}

func (s *Service) buyDataSelf(ctx context.Context, sess *domain.Session, pin string) (string, bool, error) {
	bundle := sess.Scratch[fieldBundle]
	price := dataBundlePrice(bundle)
	if price <= 0 {
		return "", false, fmt.Errorf("unknown data bundle %q", bundle)
	}
	return s.debitPurchase(ctx, sess, pin, price, domain.EntryDataDebit, sess.PhoneNumber,
		fmt.Sprintf("Data purchase (%s) for %s", bundle, sess.PhoneNumber),
		fmt.Sprintf("Data purchase successful! %s activated for %s.", bundle, sess.PhoneNumber),
		"Data purchase failed")
}

func (s *Service) buyDataOthers(ctx context.Context, sess *domain.Session, pin string) (string, bool, error) {
	bundle := sess.Scratch[fieldBundle]
	price := dataBundlePrice(bundle)
	if price <= 0 {
		return "", false, fmt.Errorf("unknown data bundle %q", bundle)
	}
	beneficiary := sess.Scratch[fieldRecipientPhone]
	return s.debitPurchase(ctx, sess, pin, price, domain.EntryDataDebit, beneficiary,
		fmt.Sprintf("Data purchase (%s) for %s", bundle, beneficiary),
		fmt.Sprintf("Data purchase successful! %s activated for %s.", bundle, beneficiary),
		"Data purchase failed")
}

func (s *Service) payElectricity(ctx context.Context, sess *domain.Session, pin string) (string, bool, error) {
	amount := scratchAmount(sess)
	counterparty := fmt.Sprintf("%s/%s", sess.Scratch[fieldDisco], sess.Scratch[fieldMeter])
	return s.debitPurchase(ctx, sess, pin, amount, domain.EntryBillDebit, counterparty,
		fmt.Sprintf("Electricity bill payment to %s", counterparty),
		"Electricity bill payment successful!",
		"Bill payment failed")
}

func (s *Service) payTVSubscription(ctx context.Context, sess *domain.Session, pin string) (string, bool, error) {
	pkg := sess.Scratch[fieldPackage]
	price := tvPackagePrice(pkg)
	if price <= 0 {
		return "", false, fmt.Errorf("unknown tv package %q", pkg)
	}
	counterparty := fmt.Sprintf("%s/%s", sess.Scratch[fieldProvider], sess.Scratch[fieldSmartcard])
	return s.debitPurchase(ctx, sess, pin, price, domain.EntryBillDebit, counterparty,
		fmt.Sprintf("TV subscription (%s) for %s", pkg, counterparty),
		"TV subscription successful!",
		"Bill payment failed")
}

// --- Event publishing (best-effort) ---

func (s *Service) publishAccountCreated(ctx context.Context, acct *domain.Account) {
	if s.events == nil {
		return
	}
	event := domain.AccountCreatedEvent{
		AccountID:     acct.ID,
		PhoneNumber:   acct.PhoneNumber,
		AccountNumber: acct.AccountNumber,
		Timestamp:     time.Now(),
	}
	if err := s.events.PublishAccountCreated(ctx, event); err != nil {
		log.Printf("level=warn component=ussd msg=\"account created event publish failed\" account_id=%s err=%v", acct.ID, err)
	}
}

func (s *Service) publishTransferCompleted(ctx context.Context, ref uuid.UUID, from, to string, amount int64) {
	if s.events == nil {
		return
	}
	event := domain.TransferCompletedEvent{
		TransferRef: ref,
		FromAccount: from,
		ToAccount:   to,
		Amount:      amount,
		Timestamp:   time.Now(),
	}
	if err := s.events.PublishTransferCompleted(ctx, event); err != nil {
		log.Printf("level=warn component=ussd msg=\"transfer event publish failed\" transfer_ref=%s err=%v", ref, err)
	}
}

func (s *Service) publishPurchaseCompleted(ctx context.Context, accountID uuid.UUID, kind, beneficiary string, amount int64) {
	if s.events == nil {
		return
	}
	event := domain.PurchaseCompletedEvent{
		AccountID:   accountID,
		Kind:        kind,
		Beneficiary: beneficiary,
		Amount:      amount,
		Timestamp:   time.Now(),
	}
	if err := s.events.PublishPurchaseCompleted(ctx, event); err != nil {
		log.Printf("level=warn component=ussd msg=\"purchase event publish failed\" account_id=%s err=%v", accountID, err)
	}
}
