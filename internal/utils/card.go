package utils

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// CardNumberLength is the length of every card number the ledger issues.
const CardNumberLength = 16

// GenerateCardNumber generates a Luhn-valid card number with the specified prefix and length
func GenerateCardNumber(prefix string, length int) (string, error) {
	if length <= len(prefix) || length > 19 {
		return "", fmt.Errorf("invalid card number length: %d", length)
	}

	var builder strings.Builder
	builder.WriteString(prefix)

	// Random body, leaving room for the check digit
	need := length - len(prefix) - 1
	buf := make([]byte, need*2)
	for need > 0 {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate random digits: %w", err)
		}
		for _, b := range buf {
			// 250 is the largest multiple of 10 below 256; skipping the rest keeps digits uniform.
			if b >= 250 {
				continue
			}
			builder.WriteByte(b%10 + '0')
			need--
			if need == 0 {
				break
			}
		}
	}

	body := builder.String()
	cardNumber := body + string(luhnCheckDigit(body))

	if len(cardNumber) != length {
		return "", fmt.Errorf("generated card number has incorrect length: got %d, want %d", len(cardNumber), length)
	}
	return cardNumber, nil
}

// ValidLuhn reports whether number passes the Luhn checksum.
func ValidLuhn(number string) bool {
	if len(number) < 2 || !isDigits(number) {
		return false
	}
	return luhnCheckDigit(number[:len(number)-1]) == number[len(number)-1]
}

func luhnCheckDigit(body string) byte {
	sum := 0
	double := true
	for i := len(body) - 1; i >= 0; i-- {
		d := int(body[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return byte((10-sum%10)%10) + '0'
}

// stripFormatting removes the separators people type into card and phone fields.
func stripFormatting(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.', '(', ')', '\t':
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

// NormalizeCardNumber returns the canonical 16-digit form and whether s is a card number.
func NormalizeCardNumber(s string) (string, bool) {
	n := stripFormatting(s)
	if len(n) != CardNumberLength || !isDigits(n) {
		return "", false
	}
	return n, true
}

// NormalizePhone returns the canonical "+digits" form of a phone number.
func NormalizePhone(s string) (string, error) {
	p := stripFormatting(s)
	p = strings.TrimPrefix(p, "+")
	if len(p) < 7 || len(p) > 15 || !isDigits(p) {
		return "", fmt.Errorf("invalid phone number %q", s)
	}
	return "+" + p, nil
}

// MaskCardNumber keeps the last four digits.
func MaskCardNumber(number string) string {
	if len(number) <= 4 {
		return number
	}
	return "**** " + number[len(number)-4:]
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
