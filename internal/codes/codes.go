// Package codes mints registration tokens and converts them to and from the
// payload printed in a registrant's QR code.
package codes

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/aura-webinar/eventdesk/pkg/apperr"
)

const (
	// TokenBytes is the entropy of a minted token (256 bits).
	TokenBytes = 32
	// TokenParam is the query parameter carrying the token in a code payload.
	TokenParam = "token"
	// DefaultQRSize is the edge length in pixels of rendered QR images.
	DefaultQRSize = 256
)

var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{43}$`)

// ValidToken reports whether s has the shape of a minted token.
func ValidToken(s string) bool { return tokenPattern.MatchString(s) }

// Service mints tokens and encodes them as verify URLs.
type Service struct {
	base   *url.URL
	qrSize int
}

// NewService creates a code service whose payloads point at verifyURL
// (e.g. https://events.example.com/verify).
func NewService(verifyURL string, qrSize int) (*Service, error) {
	u, err := url.Parse(verifyURL)
	if err != nil {
		return nil, fmt.Errorf("parse verify url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("verify url must be absolute: %q", verifyURL)
	}
	u.RawQuery = ""
	u.Fragment = ""
	if qrSize <= 0 {
		qrSize = DefaultQRSize
	}
	return &Service{base: u, qrSize: qrSize}, nil
}

// Mint returns a new URL-safe random token.
func (s *Service) Mint() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Encode embeds token in the verify URL.
func (s *Service) Encode(token string) string {
	u := *s.base
	q := url.Values{}
	q.Set(TokenParam, token)
	u.RawQuery = q.Encode()
	return u.String()
}

// Decode extracts the token from a scanned payload. The payload must be a verify
// URL for this deployment carrying exactly one well-formed token.
func (s *Service) Decode(payload string) (string, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return "", fmt.Errorf("empty payload: %w", apperr.ErrMalformedCode)
	}
	u, err := url.Parse(payload)
	if err != nil {
		return "", fmt.Errorf("parse payload: %w", apperr.ErrMalformedCode)
	}
	if !strings.EqualFold(u.Scheme, s.base.Scheme) || !strings.EqualFold(u.Host, s.base.Host) || u.Path != s.base.Path {
		return "", fmt.Errorf("unexpected payload scheme: %w", apperr.ErrMalformedCode)
	}
	values := u.Query()[TokenParam]
	if len(values) != 1 || !ValidToken(values[0]) {
		return "", fmt.Errorf("bad token parameter: %w", apperr.ErrMalformedCode)
	}
	return values[0], nil
}

// RenderPNG renders payload as a QR code image.
func (s *Service) RenderPNG(payload string) ([]byte, error) {
	png, err := qrcode.Encode(payload, qrcode.Medium, s.qrSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
