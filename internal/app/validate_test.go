package app

import (
	"errors"
	"testing"
)

func TestParseAmountKobo(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{name: "whole naira", input: "500", want: 50_000},
		{name: "naira with kobo", input: "1500.50", want: 150_050},
		{name: "single decimal digit", input: "10.5", want: 1_050},
		{name: "surrounding whitespace", input: " 250 ", want: 25_000},
		{name: "zero", input: "0", wantErr: true},
		{name: "zero with decimals", input: "0.00", wantErr: true},
		{name: "negative", input: "-5", wantErr: true},
		{name: "not a number", input: "abc", wantErr: true},
		{name: "too many decimal places", input: "10.505", wantErr: true},
		{name: "naira overflow", input: "92233720368547759", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAmountKobo(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Fatalf("parseAmountKobo(%q) expected ErrInvalidInput, got %v", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseAmountKobo(%q) returned error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Fatalf("parseAmountKobo(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidatePhone(t *testing.T) {
	if _, err := validatePhone("08031234567"); err != nil {
		t.Fatalf("expected valid phone number, got %v", err)
	}
	for _, bad := range []string{"0603123456", "8031234567", "0803123456", "080312345678", "0803123456a"} {
		if _, err := validatePhone(bad); err == nil {
			t.Fatalf("expected %q rejected", bad)
		}
	}
}

func TestValidateBVN(t *testing.T) {
	if _, err := validateBVN("12345678901"); err != nil {
		t.Fatalf("expected valid BVN, got %v", err)
	}
	for _, bad := range []string{"1234567890", "123456789012", "1234567890a"} {
		if _, err := validateBVN(bad); err == nil {
			t.Fatalf("expected %q rejected", bad)
		}
	}
}

func TestValidatePIN(t *testing.T) {
	if _, err := validatePIN("1234"); err != nil {
		t.Fatalf("expected valid PIN, got %v", err)
	}
	for _, bad := range []string{"123", "12345", "12a4", " 1234"} {
		if _, err := validatePIN(bad); err == nil {
			t.Fatalf("expected %q rejected", bad)
		}
	}
}

func TestValidateEmail(t *testing.T) {
	if _, err := validateEmail("user@example.com"); err != nil {
		t.Fatalf("expected valid email, got %v", err)
	}
	for _, bad := range []string{"user", "user@", "@example.com", "user example.com"} {
		if _, err := validateEmail(bad); err == nil {
			t.Fatalf("expected %q rejected", bad)
		}
	}
}

func TestValidateAccountNumber(t *testing.T) {
	if _, err := validateAccountNumber("3123456789"); err != nil {
		t.Fatalf("expected valid account number, got %v", err)
	}
	for _, bad := range []string{"312345678", "31234567890", "312345678a"} {
		if _, err := validateAccountNumber(bad); err == nil {
			t.Fatalf("expected %q rejected", bad)
		}
	}
}

func TestFormatNaira(t *testing.T) {
	tests := []struct {
		kobo int64
		want string
	}{
		{0, "₦0"},
		{50_000, "₦500"},
		{150_050, "₦1,500.50"},
		{100_000_000, "₦1,000,000"},
		{-20_000, "-₦200"},
		{5, "₦0.05"},
	}
	for _, tt := range tests {
		if got := formatNaira(tt.kobo); got != tt.want {
			t.Fatalf("formatNaira(%d) = %q, want %q", tt.kobo, got, tt.want)
		}
	}
}
