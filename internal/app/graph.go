/**
 * @description
 * This file defines the menu graph: every node of the USSD dialog, its kind,
 * its prompt, its validator, and where it transitions. The graph is plain
 * data (plus action closures over the Service), so the whole conversation
 * flow is visible in one table and testable without re-deriving control flow
 * from nested switches.
 *
 * Node kinds:
 * - menu: presents numbered options; input is a 1-based selection.
 * - collect: captures free-form input into session scratch after validation;
 *   an optional action runs a side effect with the validated value.
 * - notice: terminal text; reaching it ends the dialog.
 *
 * Any out-of-range selection or failed validation is terminal: the gateway
 * convention here is single-shot validation, not re-prompting.
 */

package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/oneubank/ussd-service/internal/domain"
)

// Menu graph node ids. Session.State always holds one of these.
const (
	stateMain = "main"

	stateAccountMenu      = "account_management"
	stateOpenAccountBVN   = "open_account_bvn"
	stateOpenAccountEmail = "open_account_email"
	stateOpenAccountPIN   = "open_account_pin"
	stateCheckBalancePIN  = "check_balance_pin"
	stateMiniStatementPIN = "mini_statement_pin"
	stateResetPINEmail    = "reset_pin_email"

	stateTransferMenu         = "transfer"
	stateTransferBankAccount  = "transfer_1ubank_account"
	stateTransferBankAmount   = "transfer_1ubank_amount"
	stateTransferBankPIN      = "transfer_1ubank_pin"
	stateTransferOtherBank    = "transfer_other_bank"
	stateTransferOtherAccount = "transfer_other_account"
	stateTransferOtherAmount  = "transfer_other_amount"
	stateTransferOtherPIN     = "transfer_other_pin"
	stateCheckLimitsPIN       = "check_transfer_limits"

	stateAirtimeDataMenu      = "airtime_data"
	stateAirtimeSelfAmount    = "airtime_self_amount"
	stateAirtimeSelfPIN       = "airtime_self_pin"
	stateAirtimeOthersNetwork = "airtime_others_network"
	stateAirtimeOthersPhone   = "airtime_others_phone"
	stateAirtimeOthersAmount  = "airtime_others_amount"
	stateAirtimeOthersPIN     = "airtime_others_pin"
	stateDataSelfNetwork      = "data_self_network"
	stateDataSelfBundle       = "data_self_bundle"
	stateDataSelfPIN          = "data_self_pin"
	stateDataOthersNetwork    = "data_others_network"
	stateDataOthersPhone      = "data_others_phone"
	stateDataOthersBundle     = "data_others_bundle"
	stateDataOthersPIN        = "data_others_pin"

	stateBillsMenu        = "bills_payment"
	stateElectricityDisco = "electricity_disco"
	stateElectricityMeter = "electricity_meter"
	stateElectricityAmt   = "electricity_amount"
	stateElectricityPIN   = "electricity_pin"
	stateTVProvider       = "tv_provider"
	stateTVSmartcard      = "tv_smartcard"
	stateTVPackage        = "tv_package"
	stateTVPIN            = "tv_pin"

	stateCardServices = "card_services"
	stateHelpSupport  = "help_support"
)

// Session scratch field names. PIN candidates are never written to scratch;
// they flow straight into the action that consumes them.
const (
	fieldBVN            = "bvn"
	fieldFirstName      = "first_name"
	fieldLastName       = "last_name"
	fieldEmail          = "email"
	fieldRecipient      = "recipient"
	fieldAmount         = "amount" // canonical kobo string
	fieldBank           = "bank"
	fieldNetwork        = "network"
	fieldRecipientPhone = "recipient_phone"
	fieldBundle         = "bundle"
	fieldDisco          = "disco"
	fieldMeter          = "meter"
	fieldProvider       = "provider"
	fieldSmartcard      = "smartcard"
	fieldPackage        = "package"
)

const (
	msgInvalidInput  = "Invalid input. Please try again."
	msgInternalError = "An error occurred. Please try again later."
	msgNoAccount     = "User not found. Please open an account first."
	msgInvalidPIN    = "Invalid PIN."
	msgTooManyDials  = "Too many requests. Please wait a moment and dial again."
)

type nodeKind int

const (
	nodeMenu nodeKind = iota
	nodeCollect
	nodeNotice
)

// actionFunc runs a collector node's side effect with the validated input
// value. It returns the response text and continuation flag, or an error for
// faults the controller must collapse into the generic terminal message.
type actionFunc func(ctx context.Context, sess *domain.Session, value string) (string, bool, error)

type option struct {
	label  string
	target string
}

type node struct {
	id       string
	kind     nodeKind
	prompt   func(*domain.Session) string
	options  []option                     // menu nodes
	field    string                       // scratch key written on success
	validate func(string) (string, error) // collect nodes
	invalid  string                       // terminal message on invalid input
	next     string                       // collect success target (no action)
	action   actionFunc
}

// text wraps a static prompt.
func text(s string) func(*domain.Session) string {
	return func(*domain.Session) string { return s }
}

var networkOptions = []string{"MTN", "Airtel", "Glo", "9mobile"}

var bankOptions = []string{"First Bank", "GTBank", "Zenith Bank", "Access Bank"}

var discoOptions = []string{"IBEDC", "AEDC", "EKEDC", "IKEDC"}

// Priced selections: data bundles and TV packages. Prices are in kobo.
var dataBundles = []struct {
	Label string
	Price int64
}{
	{"1GB (1 Day)", 30000},
	{"2GB (7 Days)", 50000},
	{"5GB (30 Days)", 150000},
	{"10GB (30 Days)", 250000},
}

var tvPackages = []struct {
	Label string
	Price int64
}{
	{"Premium", 2450000},
	{"Compact", 1050000},
	{"Family", 750000},
	{"Basic", 400000},
}

func dataBundlePrice(label string) int64 {
	for _, b := range dataBundles {
		if b.Label == label {
			return b.Price
		}
	}
	return 0
}

func tvPackagePrice(label string) int64 {
	for _, p := range tvPackages {
		if p.Label == label {
			return p.Price
		}
	}
	return 0
}

func labelOptions(labels []string, target string) []option {
	opts := make([]option, 0, len(labels))
	for _, l := range labels {
		opts = append(opts, option{label: l, target: target})
	}
	return opts
}

func numberedList(header string, labels []string) string {
	var b strings.Builder
	b.WriteString(header)
	for i, l := range labels {
		fmt.Fprintf(&b, "\n%d. %s", i+1, l)
	}
	return b.String()
}

func pricedList(header string, items []struct {
	Label string
	Price int64
}) ([]string, string) {
	labels := make([]string, 0, len(items))
	var b strings.Builder
	b.WriteString(header)
	for i, it := range items {
		labels = append(labels, it.Label)
		fmt.Fprintf(&b, "\n%d. %s - %s", i+1, it.Label, formatNaira(it.Price))
	}
	return labels, b.String()
}

// buildGraph assembles the full menu graph. Actions close over the Service
// so they can reach the ledger, the identity verifier, and the event
// producer; the table itself stays pure data.
func buildGraph(s *Service) map[string]*node {
	nodes := []*node{
		{
			id:   stateMain,
			kind: nodeMenu,
			prompt: text("Welcome to 1UBank\n" +
				"\n1. Account Management" +
				"\n2. Transfer" +
				"\n3. Airtime & Data" +
				"\n4. Bills Payment" +
				"\n5. Card Services" +
				"\n6. Help & Support"),
			options: []option{
				{label: "Account Management", target: stateAccountMenu},
				{label: "Transfer", target: stateTransferMenu},
				{label: "Airtime & Data", target: stateAirtimeDataMenu},
				{label: "Bills Payment", target: stateBillsMenu},
				{label: "Card Services", target: stateCardServices},
				{label: "Help & Support", target: stateHelpSupport},
			},
		},

		// Account management.
		{
			id:   stateAccountMenu,
			kind: nodeMenu,
			prompt: text("Account Management\n" +
				"\n1. Open An Account (Tier 1)" +
				"\n2. Check Account Balance" +
				"\n3. Mini Statement (Last 5)" +
				"\n4. Change/Reset PIN"),
			options: []option{
				{label: "Open An Account", target: stateOpenAccountBVN},
				{label: "Check Account Balance", target: stateCheckBalancePIN},
				{label: "Mini Statement", target: stateMiniStatementPIN},
				{label: "Change/Reset PIN", target: stateResetPINEmail},
			},
		},
		{
			id:       stateOpenAccountBVN,
			kind:     nodeCollect,
			prompt:   text("Please enter your BVN:"),
			field:    fieldBVN,
			validate: validateBVN,
			invalid:  "Invalid BVN. Please try again.",
			action:   s.verifyBVN,
		},
		{
			id:       stateOpenAccountEmail,
			kind:     nodeCollect,
			prompt:   text("BVN verified. Please enter your email:"),
			field:    fieldEmail,
			validate: validateEmail,
			invalid:  "Invalid email address.",
			next:     stateOpenAccountPIN,
		},
		{
			id:       stateOpenAccountPIN,
			kind:     nodeCollect,
			prompt:   text("Please set your transaction PIN:"),
			validate: validatePIN,
			invalid:  "Invalid PIN. PIN must be 4 digits.",
			action:   s.createAccount,
		},
		{
			id:       stateCheckBalancePIN,
			kind:     nodeCollect,
			prompt:   text("Please enter your PIN:"),
			validate: validatePIN,
			invalid:  msgInvalidPIN,
			action:   s.checkBalance,
		},
		{
			id:       stateMiniStatementPIN,
			kind:     nodeCollect,
			prompt:   text("Please enter your PIN:"),
			validate: validatePIN,
			invalid:  msgInvalidPIN,
			action:   s.miniStatement,
		},
		{
			id:       stateResetPINEmail,
			kind:     nodeCollect,
			prompt:   text("Please enter your email for OTP:"),
			field:    fieldEmail,
			validate: validateEmail,
			invalid:  "Invalid email address.",
			action:   s.requestPINReset,
		},

		// Transfers.
		{
			id:   stateTransferMenu,
			kind: nodeMenu,
			prompt: text("Transfer\n" +
				"\n1. To 1UBank Account" +
				"\n2. To Other Banks" +
				"\n3. Check Transfer Limits"),
			options: []option{
				{label: "To 1UBank Account", target: stateTransferBankAccount},
				{label: "To Other Banks", target: stateTransferOtherBank},
				{label: "Check Transfer Limits", target: stateCheckLimitsPIN},
			},
		},
		{
			id:       stateTransferBankAccount,
			kind:     nodeCollect,
			prompt:   text("Enter 1UBank account number:"),
			field:    fieldRecipient,
			validate: validateAccountNumber,
			invalid:  "Invalid account number.",
			next:     stateTransferBankAmount,
		},
		{
			id:       stateTransferBankAmount,
			kind:     nodeCollect,
			prompt:   text("Enter amount:"),
			field:    fieldAmount,
			validate: validateAmount,
			invalid:  "Invalid amount. Please enter a valid amount.",
			next:     stateTransferBankPIN,
		},
		{
			id:   stateTransferBankPIN,
			kind: nodeCollect,
			prompt: func(sess *domain.Session) string {
				return fmt.Sprintf("Transfer %s to %s. Enter PIN to confirm:",
					formatNaira(scratchAmount(sess)), sess.Scratch[fieldRecipient])
			},
			validate: validatePIN,
			invalid:  msgInvalidPIN,
			action:   s.transferInternal,
		},
		{
			id:      stateTransferOtherBank,
			kind:    nodeMenu,
			prompt:  text(numberedList("Select bank:", bankOptions)),
			options: labelOptions(bankOptions, stateTransferOtherAccount),
			field:   fieldBank,
			invalid: "Invalid bank selection.",
		},
		{
			id:       stateTransferOtherAccount,
			kind:     nodeCollect,
			prompt:   text("Enter recipient account number:"),
			field:    fieldRecipient,
			validate: validateAccountNumber,
			invalid:  "Invalid account number.",
			next:     stateTransferOtherAmount,
		},
		{
			id:       stateTransferOtherAmount,
			kind:     nodeCollect,
			prompt:   text("Enter amount:"),
			field:    fieldAmount,
			validate: validateAmount,
			invalid:  "Invalid amount. Please enter a valid amount.",
			next:     stateTransferOtherPIN,
		},
		{
			id:   stateTransferOtherPIN,
			kind: nodeCollect,
			prompt: func(sess *domain.Session) string {
				return fmt.Sprintf("Transfer %s to %s (%s). Enter PIN to confirm:",
					formatNaira(scratchAmount(sess)), sess.Scratch[fieldRecipient], sess.Scratch[fieldBank])
			},
			validate: validatePIN,
			invalid:  msgInvalidPIN,
			action:   s.transferExternal,
		},
		{
			id:       stateCheckLimitsPIN,
			kind:     nodeCollect,
			prompt:   text("Enter your PIN to check transfer limits:"),
			validate: validatePIN,
			invalid:  msgInvalidPIN,
			action:   s.checkTransferLimits,
		},

		// Airtime and data.
		{
			id:   stateAirtimeDataMenu,
			kind: nodeMenu,
			prompt: text("Airtime & Data\n" +
				"\n1. Airtime for Self" +
				"\n2. Airtime for Others" +
				"\n3. Data for Self" +
				"\n4. Data for Others"),
			options: []option{
				{label: "Airtime for Self", target: stateAirtimeSelfAmount},
				{label: "Airtime for Others", target: stateAirtimeOthersNetwork},
				{label: "Data for Self", target: stateDataSelfNetwork},
				{label: "Data for Others", target: stateDataOthersNetwork},
			},
		},
		{
			id:       stateAirtimeSelfAmount,
			kind:     nodeCollect,
			prompt:   text("Enter amount for airtime:"),
			field:    fieldAmount,
			validate: validateAmount,
			invalid:  "Invalid amount.",
			next:     stateAirtimeSelfPIN,
		},
		{
			id:   stateAirtimeSelfPIN,
			kind: nodeCollect,
			prompt: func(sess *domain.Session) string {
				return fmt.Sprintf("Buy %s airtime for self. Enter PIN:", formatNaira(scratchAmount(sess)))
			},
			validate: validatePIN,
			invalid:  msgInvalidPIN,
			action:   s.buyAirtimeSelf,
		},
		{
			id:      stateAirtimeOthersNetwork,
			kind:    nodeMenu,
			prompt:  text(numberedList("Select network:", networkOptions)),
			options: labelOptions(networkOptions, stateAirtimeOthersPhone),
			field:   fieldNetwork,
			invalid: "Invalid network selection.",
		},
		{
			id:       stateAirtimeOthersPhone,
			kind:     nodeCollect,
			prompt:   text("Enter phone number:"),
			field:    fieldRecipientPhone,
			validate: validatePhone,
			invalid:  "Invalid phone number.",
			next:     stateAirtimeOthersAmount,
		},
		{
			id:       stateAirtimeOthersAmount,
			kind:     nodeCollect,
			prompt:   text("Enter amount:"),
			field:    fieldAmount,
			validate: validateAmount,
			invalid:  "Invalid amount.",
			next:     stateAirtimeOthersPIN,
		},
		{
			id:   stateAirtimeOthersPIN,
			kind: nodeCollect,
			prompt: func(sess *domain.Session) string {
				return fmt.Sprintf("Buy %s %s airtime for %s. Enter PIN:",
					formatNaira(scratchAmount(sess)), sess.Scratch[fieldNetwork], sess.Scratch[fieldRecipientPhone])
			},
			validate: validatePIN,
			invalid:  msgInvalidPIN,
			action:   s.buyAirtimeOthers,
		},
		{
			id:      stateDataSelfNetwork,
			kind:    nodeMenu,
			prompt:  text(numberedList("Select network:", networkOptions)),
			options: labelOptions(networkOptions, stateDataSelfBundle),
			field:   fieldNetwork,
			invalid: "Invalid network selection.",
		},
		{
			id:      stateDataOthersNetwork,
			kind:    nodeMenu,
			prompt:  text(numberedList("Select network:", networkOptions)),
			options: labelOptions(networkOptions, stateDataOthersPhone),
			field:   fieldNetwork,
			invalid: "Invalid network selection.",
		},
		{
			id:       stateDataOthersPhone,
			kind:     nodeCollect,
			prompt:   text("Enter phone number:"),
			field:    fieldRecipientPhone,
			validate: validatePhone,
			invalid:  "Invalid phone number.",
			next:     stateDataOthersBundle,
		},

		// Bills.
		{
			id:   stateBillsMenu,
			kind: nodeMenu,
			prompt: text("Bills Payment\n" +
				"\n1. Electricity" +
				"\n2. TV Subscription"),
			options: []option{
				{label: "Electricity", target: stateElectricityDisco},
				{label: "TV Subscription", target: stateTVProvider},
			},
		},
		{
			id:      stateElectricityDisco,
			kind:    nodeMenu,
			prompt:  text(numberedList("Select Disco:", discoOptions)),
			options: labelOptions(discoOptions, stateElectricityMeter),
			field:   fieldDisco,
			invalid: "Invalid Disco selection.",
		},
		{
			id:       stateElectricityMeter,
			kind:     nodeCollect,
			prompt:   text("Enter meter number:"),
			field:    fieldMeter,
			validate: validateMeterNumber,
			invalid:  "Invalid meter number.",
			next:     stateElectricityAmt,
		},
		{
			id:       stateElectricityAmt,
			kind:     nodeCollect,
			prompt:   text("Enter amount:"),
			field:    fieldAmount,
			validate: validateAmount,
			invalid:  "Invalid amount.",
			next:     stateElectricityPIN,
		},
		{
			id:   stateElectricityPIN,
			kind: nodeCollect,
			prompt: func(sess *domain.Session) string {
				return fmt.Sprintf("Pay %s for %s meter %s. Enter PIN:",
					formatNaira(scratchAmount(sess)), sess.Scratch[fieldDisco], sess.Scratch[fieldMeter])
			},
			validate: validatePIN,
			invalid:  msgInvalidPIN,
			action:   s.payElectricity,
		},
		{
			id:      stateTVProvider,
			kind:    nodeMenu,
			prompt:  text(numberedList("Select Provider:", []string{"DSTV", "GOtv", "Startimes"})),
			options: labelOptions([]string{"DSTV", "GOtv", "Startimes"}, stateTVSmartcard),
			field:   fieldProvider,
			invalid: "Invalid provider selection.",
		},
		{
			id:       stateTVSmartcard,
			kind:     nodeCollect,
			prompt:   text("Enter smartcard number:"),
			field:    fieldSmartcard,
			validate: validateMeterNumber,
			invalid:  "Invalid smartcard number.",
			next:     stateTVPackage,
		},
		{
			id:   stateTVPIN,
			kind: nodeCollect,
			prompt: func(sess *domain.Session) string {
				return fmt.Sprintf("Subscribe to %s package for %s smartcard %s. Enter PIN:",
					sess.Scratch[fieldPackage], sess.Scratch[fieldProvider], sess.Scratch[fieldSmartcard])
			},
			validate: validatePIN,
			invalid:  msgInvalidPIN,
			action:   s.payTVSubscription,
		},

		// Terminal notices.
		{
			id:     stateCardServices,
			kind:   nodeNotice,
			prompt: text("Card services: Please contact customer support for card requests and management."),
		},
		{
			id:   stateHelpSupport,
			kind: nodeNotice,
			prompt: text("Help & Support:\n" +
				"1. Callback Request\n" +
				"2. Submit Complaint\n" +
				"3. Track Complaint\n" +
				"\nPlease contact 1-800-1UBANK for assistance."),
		},
	}

	// Priced selection menus are generated from their price tables so the
	// prompt text can never drift from the amounts charged.
	bundleLabels, bundlePrompt := pricedList("Select data bundle:", dataBundles)
	nodes = append(nodes,
		&node{
			id:      stateDataSelfBundle,
			kind:    nodeMenu,
			prompt:  text(bundlePrompt),
			options: labelOptions(bundleLabels, stateDataSelfPIN),
			field:   fieldBundle,
			invalid: "Invalid bundle selection.",
		},
		&node{
			id:      stateDataOthersBundle,
			kind:    nodeMenu,
			prompt:  text(bundlePrompt),
			options: labelOptions(bundleLabels, stateDataOthersPIN),
			field:   fieldBundle,
			invalid: "Invalid bundle selection.",
		},
		&node{
			id:   stateDataSelfPIN,
			kind: nodeCollect,
			prompt: func(sess *domain.Session) string {
				return fmt.Sprintf("Buy %s (%s) for self. Enter PIN:",
					sess.Scratch[fieldBundle], sess.Scratch[fieldNetwork])
			},
			validate: validatePIN,
			invalid:  msgInvalidPIN,
			action:   s.buyDataSelf,
		},
		&node{
			id:   stateDataOthersPIN,
			kind: nodeCollect,
			prompt: func(sess *domain.Session) string {
				return fmt.Sprintf("Buy %s (%s) for %s. Enter PIN:",
					sess.Scratch[fieldBundle], sess.Scratch[fieldNetwork], sess.Scratch[fieldRecipientPhone])
			},
			validate: validatePIN,
			invalid:  msgInvalidPIN,
			action:   s.buyDataOthers,
		},
	)

	packageLabels, packagePrompt := pricedList("Select package:", tvPackages)
	nodes = append(nodes, &node{
		id:      stateTVPackage,
		kind:    nodeMenu,
		prompt:  text(packagePrompt),
		options: labelOptions(packageLabels, stateTVPIN),
		field:   fieldPackage,
		invalid: "Invalid package selection.",
	})

	graph := make(map[string]*node, len(nodes))
	for _, n := range nodes {
		graph[n.id] = n
	}
	return graph
}
