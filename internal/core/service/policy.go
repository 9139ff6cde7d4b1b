package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/99minutos/identity-service/internal/core/domain"
)

const (
	minAllowedPasswordLength = 8
	maxPasswordLength        = 128
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// Policy validates account input before anything is hashed or stored.
type Policy struct {
	minPasswordLength int
	validate          *validator.Validate
}

type accountInput struct {
	Username string `validate:"required,min=3,max=64,username"`
	Password string `validate:"required,password"`
}

type passwordInput struct {
	Password string `validate:"required,password"`
}

// NewPolicy builds a Policy. Minimum lengths below 8 are raised to 8.
func NewPolicy(minPasswordLength int) *Policy {
	if minPasswordLength < minAllowedPasswordLength {
		minPasswordLength = minAllowedPasswordLength
	}
	p := &Policy{
		minPasswordLength: minPasswordLength,
		validate:          validator.New(validator.WithRequiredStructEnabled()),
	}
	_ = p.validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	_ = p.validate.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return p.strongEnough(fl.Field().String())
	})
	return p
}

// NormalizeUsername is the canonical form used as the account key.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// CheckAccount validates a new account and returns its canonical role.
// username must already be normalised.
func (p *Policy) CheckAccount(username, password string, role domain.Role) (domain.Role, error) {
	r, err := domain.ParseRole(string(role))
	if err != nil {
		return "", err
	}
	if err := p.validate.Struct(accountInput{Username: username, Password: password}); err != nil {
		return "", p.translate(err)
	}
	if err := p.checkNotDerived(username, password); err != nil {
		return "", err
	}
	return r, nil
}

// CheckPassword validates a replacement password for username.
func (p *Policy) CheckPassword(username, password string) error {
	if err := p.validate.Struct(passwordInput{Password: password}); err != nil {
		return p.translate(err)
	}
	return p.checkNotDerived(username, password)
}

func (p *Policy) checkNotDerived(username, password string) error {
	if strings.Contains(strings.ToLower(password), username) {
		return fmt.Errorf("%w: password must not contain the username", domain.ErrInvalidInput)
	}
	return nil
}

// strongEnough requires the configured length and at least three character
// classes out of lower case, upper case, digits and symbols.
func (p *Policy) strongEnough(password string) bool {
	n := utf8.RuneCountInString(password)
	if n < p.minPasswordLength || n > maxPasswordLength {
		return false
	}

	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}

	classes := 0
	for _, ok := range []bool{lower, upper, digit, symbol} {
		if ok {
			classes++
		}
	}
	return classes >= 3
}

// translate turns the first validation failure into an ErrInvalidInput.
func (p *Policy) translate(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	fe := ve[0]
	field := strings.ToLower(fe.Field())
	var msg string
	switch field {
	case "username":
		msg = "username must be 3-64 characters of a-z, 0-9, '.', '_' or '-' and start with a letter or digit"
	case "password":
		msg = fmt.Sprintf("password must be %d-%d characters and mix at least three of: lower case, upper case, digits, symbols",
			p.minPasswordLength, maxPasswordLength)
	case "role":
		msg = "role must be one of: admin user"
	default:
		msg = fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, msg)
}
