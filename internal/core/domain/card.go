package domain

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type CardType string

const (
	Visa       CardType = "VISA"
	Mastercard CardType = "MASTERCARD"
	Unknown    CardType = "UNKNOWN"
)

// Card is a payment card issued against an account.
type Card struct {
	ID          uuid.UUID `json:"id"`
	AccountID   uuid.UUID `json:"account_id"`
	Number      string    `json:"number"`
	Brand       CardType  `json:"brand"`
	ExpiryMonth int       `json:"expiry_month"`
	ExpiryYear  int       `json:"expiry_year"`
	CreatedAt   time.Time `json:"created_at"`
}

var (
	visaRegex   = regexp.MustCompile(`^4[0-9]{12}(?:[0-9]{3})?$`)
	masterRegex = regexp.MustCompile(`^5[1-5][0-9]{14}$`)
)

// ValidateCard checks the number and identifies the brand.
// Only Visa and Mastercard are issued or accepted.
func ValidateCard(number string) (bool, CardType) {
	cleanNum := strings.ReplaceAll(number, " ", "")
	cleanNum = strings.ReplaceAll(cleanNum, "-", "")

	if !passesLuhn(cleanNum) {
		return false, Unknown
	}

	if visaRegex.MatchString(cleanNum) {
		return true, Visa
	}
	if masterRegex.MatchString(cleanNum) {
		return true, Mastercard
	}
	return false, Unknown
}

// CompleteCardNumber appends the Mod 10 check digit to a 15-digit partial
// number, producing a Luhn-valid 16-digit card number.
func CompleteCardNumber(partial string) string {
	sum := 0
	alternate := true // check digit position is not doubled, so start doubling immediately
	for i := len(partial) - 1; i >= 0; i-- {
		n, _ := strconv.Atoi(string(partial[i]))
		if alternate {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		alternate = !alternate
	}
	check := (10 - sum%10) % 10
	return partial + strconv.Itoa(check)
}

// passesLuhn implements the standard Mod 10 check used by all banks
func passesLuhn(number string) bool {
	if number == "" {
		return false
	}
	sum := 0
	alternate := false
	for i := len(number) - 1; i >= 0; i-- {
		n, err := strconv.Atoi(string(number[i]))
		if err != nil {
			return false
		}
		if alternate {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		alternate = !alternate
	}
	return sum%10 == 0
}
