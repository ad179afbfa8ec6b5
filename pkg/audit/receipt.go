package audit

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ReceiptClaims is the signed, portable form of one verdict. A caller
// can hand the receipt to a downstream service as proof that a given
// content fingerprint passed (or failed) the gate, without revealing
// the content itself.
type ReceiptClaims struct {
	jwt.RegisteredClaims
	Stage              string   `json:"stage"`
	Decision           string   `json:"decision"`
	Codes              []string `json:"codes,omitempty"`
	ContentFingerprint string   `json:"content_fingerprint"`
	RepairFingerprint  string   `json:"repair_fingerprint,omitempty"`
	DriftScore         *float64 `json:"drift_score,omitempty"`
}

// ReceiptIssuer mints and validates HS256 verdict receipts.
type ReceiptIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewReceiptIssuer builds an issuer. ttl bounds receipt validity;
// non-positive values default to one hour.
func NewReceiptIssuer(secret []byte, issuer string, ttl time.Duration) (*ReceiptIssuer, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("receipt secret must be at least 16 bytes")
	}
	if issuer == "" {
		issuer = "aegis/gate"
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ReceiptIssuer{secret: secret, issuer: issuer, ttl: ttl}, nil
}

// Issue signs a receipt for one audit record.
func (ri *ReceiptIssuer) Issue(rec Record) (string, error) {
	now := time.Now().UTC()
	claims := ReceiptClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        rec.CheckID,
			Subject:   rec.CandidateID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ri.ttl)),
			Issuer:    ri.issuer,
		},
		Stage:              rec.Stage,
		Decision:           rec.Decision,
		Codes:              rec.Codes,
		ContentFingerprint: rec.ContentFingerprint,
		RepairFingerprint:  rec.RepairedFingerprint,
		DriftScore:         rec.DriftScore,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(ri.secret)
}

// Validate parses and verifies a receipt string.
func (ri *ReceiptIssuer) Validate(tokenString string) (*ReceiptClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ReceiptClaims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return ri.secret, nil
		},
		jwt.WithIssuer(ri.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*ReceiptClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrTokenSignatureInvalid
}
