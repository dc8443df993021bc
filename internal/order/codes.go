package order

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// codeAlphabet leaves out 0/O and 1/I so codes survive being read aloud.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	orderNumberSuffixLen = 6
	verificationCodeLen  = 8
	maxBuildAttempts     = 3
	initialStatusNote    = "Order placed"
	transitionNoteFormat = "Status changed from %s to %s"
)

func randomCode(n int) (string, error) {
	limit := big.NewInt(int64(len(codeAlphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		out[i] = codeAlphabet[idx.Int64()]
	}
	return string(out), nil
}

// NewOrderNumber returns ORD-YYYYMMDD-XXXXXX for the UTC day of now.
func NewOrderNumber(now time.Time) (string, error) {
	suffix, err := randomCode(orderNumberSuffixLen)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), suffix), nil
}

func NewVerificationCode() (string, error) {
	return randomCode(verificationCodeLen)
}
