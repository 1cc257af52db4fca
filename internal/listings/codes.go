package listings

import (
	"crypto/rand"

	"orus-backend/internal/domain"

	"gorm.io/gorm"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const codeLength = 8

// newCode returns a random 8 character code from A-Z0-9.
func newCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i := range buf {
		buf[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
	}
	return string(buf), nil
}

// uniqueCode generates a code not currently assigned to any listing in
// either code column. Collisions are vanishingly rare at 36^8 but cheap
// to check inside the surrounding transaction.
func uniqueCode(tx *gorm.DB) (string, error) {
	for i := 0; i < 5; i++ {
		code, err := newCode()
		if err != nil {
			return "", err
		}
		var count int64
		err = tx.Model(&domain.Listing{}).
			Where("deposit_code = ? OR withdrawal_code = ?", code, code).
			Count(&count).Error
		if err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", domain.ErrInvalidCode
}
