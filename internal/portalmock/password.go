package portalmock

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// hashPassword hashes a plaintext password with bcrypt.
func hashPassword(password string) (string, error) {
	if len(password) == 0 {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// verifyPassword compares a plaintext password with a stored hash.
func verifyPassword(hash, password string) error {
	if hash == "" {
		return errors.New("password hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
