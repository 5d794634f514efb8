package tencentcloud

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"unicode/utf8"
)

// Algorithm is the signature algorithm name for API 3.0 requests.
const Algorithm = "TC3-HMAC-SHA256"

const (
	keyPrefix   = "TC3"
	scopeSuffix = "tc3_request"
)

// CanonicalRequest holds every input of a TC3-HMAC-SHA256 signature.
//
// CanonicalHeaders must already be lowercased, sorted and newline terminated,
// e.g. "content-type:application/json; charset=utf-8\nhost:example.com\n".
type CanonicalRequest struct {
	Method           string
	URI              string
	Query            string
	CanonicalHeaders string
	SignedHeaders    string
	Payload          []byte
	Timestamp        int64
	Date             string // UTC date of Timestamp, YYYY-MM-DD
	Service          string
}

// CredentialScope binds a signature to a date and a service.
func CredentialScope(date, service string) string {
	return date + "/" + service + "/" + scopeSuffix
}

// Sign computes the hex signature for r with secretKey.
// It has no side effects; identical inputs always yield the same signature.
func Sign(secretKey string, r CanonicalRequest) (string, error) {
	if err := r.validate(secretKey); err != nil {
		return "", err
	}
	canonical := r.Method + "\n" +
		r.URI + "\n" +
		r.Query + "\n" +
		r.CanonicalHeaders + "\n" +
		r.SignedHeaders + "\n" +
		sha256Hex(r.Payload)

	stringToSign := Algorithm + "\n" +
		strconv.FormatInt(r.Timestamp, 10) + "\n" +
		CredentialScope(r.Date, r.Service) + "\n" +
		sha256Hex([]byte(canonical))

	secretDate := hmacSHA256([]byte(keyPrefix+secretKey), r.Date)
	secretService := hmacSHA256(secretDate, r.Service)
	secretSigning := hmacSHA256(secretService, scopeSuffix)
	return hex.EncodeToString(hmacSHA256(secretSigning, stringToSign)), nil
}

// Authorization formats the value of the Authorization header.
func Authorization(secretID string, r CanonicalRequest, signature string) string {
	return fmt.Sprintf("%s Credential=%s/%s,SignedHeaders=%s,Signature=%s",
		Algorithm, secretID, CredentialScope(r.Date, r.Service), r.SignedHeaders, signature)
}

func (r CanonicalRequest) validate(secretKey string) error {
	fields := []struct{ name, value string }{
		{"method", r.Method},
		{"uri", r.URI},
		{"query", r.Query},
		{"canonical headers", r.CanonicalHeaders},
		{"signed headers", r.SignedHeaders},
		{"date", r.Date},
		{"service", r.Service},
		{"secret key", secretKey},
	}
	for _, f := range fields {
		if !utf8.ValidString(f.value) {
			return &EncodingError{Field: f.name, Err: errInvalidUTF8}
		}
	}
	if !utf8.Valid(r.Payload) {
		return &EncodingError{Field: "payload", Err: errInvalidUTF8}
	}
	return nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key []byte, msg string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msg))
	return mac.Sum(nil)
}
