package service

import (
	"crypto/rand"
	"math/big"
)

// accessCodeAlphabet leaves out 0, O, I and 1.
const accessCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const accessCodeLength = 6

// NewAccessCode returns a random 6-character code a guard can type.
func NewAccessCode() (string, error) {
	limit := big.NewInt(int64(len(accessCodeAlphabet)))
	b := make([]byte, accessCodeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b[i] = accessCodeAlphabet[n.Int64()]
	}
	return string(b), nil
}
