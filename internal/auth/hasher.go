package auth

import "golang.org/x/crypto/bcrypt"

// passwordHashCost is the bcrypt work factor. It is the latency-dominant step
// of every register/login and must not be lowered without a security review.
const passwordHashCost = 10

func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), passwordHashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func VerifyPassword(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}
