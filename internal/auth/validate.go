package auth

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidationError reports a malformed or missing input field before any store
// access happens.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type RegisterInput struct {
	Username        string `json:"username"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (in *RegisterInput) Validate() error {
	in.Username = strings.TrimSpace(in.Username)
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)

	if n := utf8.RuneCountInString(in.Username); n < 5 || n > 30 {
		return ValidationError{Field: "username", Message: "must be 5-30 characters"}
	}
	if n := utf8.RuneCountInString(in.Name); n < 1 || n > 30 {
		return ValidationError{Field: "name", Message: "must be 1-30 characters"}
	}
	if !emailPattern.MatchString(in.Email) {
		return ValidationError{Field: "email", Message: "must be a valid email address"}
	}
	if !validPassword(in.Password) {
		return ValidationError{Field: "password", Message: "must be 8-25 letters and digits with an uppercase letter, a lowercase letter and a digit"}
	}
	if in.ConfirmPassword != in.Password {
		return ValidationError{Field: "confirmPassword", Message: "must match password"}
	}
	return nil
}

func (in *LoginInput) Validate() error {
	in.Username = strings.TrimSpace(in.Username)

	if n := utf8.RuneCountInString(in.Username); n < 5 || n > 30 {
		return ValidationError{Field: "username", Message: "must be 5-30 characters"}
	}
	if !validPassword(in.Password) {
		return ValidationError{Field: "password", Message: "must be 8-25 letters and digits with an uppercase letter, a lowercase letter and a digit"}
	}
	return nil
}

// validPassword enforces the account password policy: 8-25 characters drawn
// from ASCII letters and digits, containing at least one lowercase letter,
// one uppercase letter, and one digit.
func validPassword(password string) bool {
	if len(password) < 8 || len(password) > 25 {
		return false
	}

	var hasLower, hasUpper, hasDigit bool
	for _, c := range password {
		switch {
		case c >= 'a' && c <= 'z':
			hasLower = true
		case c >= 'A' && c <= 'Z':
			hasUpper = true
		case c >= '0' && c <= '9':
			hasDigit = true
		default:
			return false
		}
	}

	return hasLower && hasUpper && hasDigit
}
