/**
 * @description
 * This file holds the input validators used by collector nodes in the menu
 * graph, plus the naira rendering helper for prompts. Each validator takes
 * the raw gateway token and returns the canonical value to keep in the
 * session scratch, or ErrInvalidInput.
 *
 * @notes
 * - Amounts are typed in naira but stored in kobo. Parsing is pure integer
 *   arithmetic on the decimal string, so no float ever touches a balance and
 *   non-finite input can't sneak through a float parser.
 */

package app

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidInput marks input that fails a node's format or range check. It
// is an expected business outcome, surfaced as a terminal message and never
// persisted past the step.
var ErrInvalidInput = errors.New("invalid input")

const maxNaira = (1<<63 - 1) / 100 // largest whole-naira value representable in kobo

var (
	phonePattern   = regexp.MustCompile(`^0[7-9][0-9]{9}$`)
	bvnPattern     = regexp.MustCompile(`^[0-9]{11}$`)
	pinPattern     = regexp.MustCompile(`^[0-9]{4}$`)
	emailPattern   = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	meterPattern   = regexp.MustCompile(`^[0-9]{6,13}$`)
	acctNumPattern = regexp.MustCompile(`^[0-9]{10}$`)
	amountPattern  = regexp.MustCompile(`^[0-9]+(\.[0-9]{1,2})?$`)
)

// parseAmountKobo converts a naira amount string ("500", "1500.50") to kobo.
// Zero, negative, non-numeric, and out-of-range amounts are rejected.
func parseAmountKobo(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if !amountPattern.MatchString(s) {
		return 0, ErrInvalidInput
	}

	whole := s
	frac := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	for len(frac) < 2 {
		frac += "0"
	}

	naira, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || naira > maxNaira {
		return 0, ErrInvalidInput
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, ErrInvalidInput
	}

	kobo := naira*100 + cents
	if kobo <= 0 {
		return 0, ErrInvalidInput
	}
	return kobo, nil
}

// validateAmount is the collector form of parseAmountKobo: the canonical
// scratch value is the kobo figure, not the raw naira string.
func validateAmount(raw string) (string, error) {
	kobo, err := parseAmountKobo(raw)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(kobo, 10), nil
}

func validatePhone(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if !phonePattern.MatchString(s) {
		return "", ErrInvalidInput
	}
	return s, nil
}

func validateBVN(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if !bvnPattern.MatchString(s) {
		return "", ErrInvalidInput
	}
	return s, nil
}

func validatePIN(raw string) (string, error) {
	if !pinPattern.MatchString(raw) {
		return "", ErrInvalidInput
	}
	return raw, nil
}

func validateEmail(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if !emailPattern.MatchString(s) {
		return "", ErrInvalidInput
	}
	return s, nil
}

func validateMeterNumber(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if !meterPattern.MatchString(s) {
		return "", ErrInvalidInput
	}
	return s, nil
}

func validateAccountNumber(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if !acctNumPattern.MatchString(s) {
		return "", ErrInvalidInput
	}
	return s, nil
}

// formatNaira renders a kobo amount for prompts, e.g. 150050 -> "₦1,500.50"
// and 300000 -> "₦3,000".
func formatNaira(kobo int64) string {
	sign := ""
	if kobo < 0 {
		sign = "-"
		kobo = -kobo
	}
	naira := kobo / 100
	cents := kobo % 100

	digits := strconv.FormatInt(naira, 10)
	var grouped strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		grouped.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if grouped.Len() > 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteString(digits[i : i+3])
	}

	if cents == 0 {
		return fmt.Sprintf("%s₦%s", sign, grouped.String())
	}
	return fmt.Sprintf("%s₦%s.%02d", sign, grouped.String(), cents)
}
