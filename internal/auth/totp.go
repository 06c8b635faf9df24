package auth

import (
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

var totpOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// GenerateTOTPSecret creates a new base32 secret and its otpauth:// URL for
// enrolling an authenticator app.
func GenerateTOTPSecret(accountName string) (secret string, url string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuerName,
		AccountName: accountName,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// TOTPCode returns the code valid at t. Used by tests and the seed tooling.
func TOTPCode(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t, totp.ValidateOpts{
		Period:    totpOpts.Period,
		Digits:    totpOpts.Digits,
		Algorithm: totpOpts.Algorithm,
	})
}

// VerifyTOTP checks code against secret at time t, allowing one step of skew.
func VerifyTOTP(code, secret string, t time.Time) bool {
	code = strings.TrimSpace(code)
	if code == "" || strings.TrimSpace(secret) == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, t, totpOpts)
	if err != nil {
		return false
	}
	return ok
}
