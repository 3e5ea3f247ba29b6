package security

import (
	"PPChat/tools/errs"

	"golang.org/x/crypto/bcrypt"
)

// PasswordCost matches the cost existing hashes were created with.
const PasswordCost = 10

func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", errs.WrapMsg(err, "hash password")
	}
	return string(b), nil
}

func CheckPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
