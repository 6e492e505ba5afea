package cardnumber

import (
	"strings"

	"bankcards/internal/errors"
)

// Length is the number of digits in an accepted card number.
const Length = 16

// Normalize removes spaces and dashes from a card number.
func Normalize(number string) string {
	return strings.ReplaceAll(strings.ReplaceAll(number, " ", ""), "-", "")
}

// Validate normalizes number and checks that it is 16 digits and passes the Luhn check.
// It returns the normalized number on success.
func Validate(number string) (string, error) {
	number = Normalize(number)
	if !Valid(number) {
		return "", errors.ErrInvalidCardNumber
	}
	return number, nil
}

// Valid reports whether an already normalized number is 16 digits and Luhn-valid.
func Valid(number string) bool {
	if len(number) != Length {
		return false
	}
	return luhn(number)
}

// luhn validates a digit string using the Luhn algorithm.
func luhn(number string) bool {
	sum := 0
	double := false

	// Process from right to left
	for i := len(number) - 1; i >= 0; i-- {
		c := number[i]
		if c < '0' || c > '9' {
			return false
		}
		digit := int(c - '0')

		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}

		sum += digit
		double = !double
	}

	return sum%10 == 0
}

// Last4 returns the last four digits of a normalized number.
func Last4(number string) string {
	if len(number) < 4 {
		return "****"
	}
	return number[len(number)-4:]
}

// Mask renders a normalized number with everything but the last four digits hidden.
func Mask(number string) string {
	return "**** **** **** " + Last4(number)
}
