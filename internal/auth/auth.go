// Package auth issues and verifies the room tokens that bind a websocket
// connection to one role, meeting and session.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/okian/vigil/internal/domain/call"
	"github.com/okian/vigil/pkg/clock"
)

const issuer = "vigil"

// DefaultTTL is the token lifetime when none is configured.
const DefaultTTL = 4 * time.Hour

// Claims identify the holder of a room token. Observers carry a meeting
// id; candidates carry both a meeting and a session id.
type Claims struct {
	Role      call.Role `json:"role"`
	MeetingID string    `json:"meeting_id"`
	SessionID string    `json:"session_id,omitempty"`

	jwt.RegisteredClaims
}

// CanObserve reports whether the holder may watch meetingID.
func (c Claims) CanObserve(meetingID string) bool {
	return c.Role == call.RoleObserver && c.MeetingID == meetingID
}

// CanAct reports whether the holder may speak for sessionID as a
// candidate.
func (c Claims) CanAct(sessionID string) bool {
	return c.Role == call.RoleCandidate && c.SessionID == sessionID
}

// Signer signs and verifies HS256 room tokens.
type Signer struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

// NewSigner returns a Signer. An empty secret is rejected.
func NewSigner(secret string, ttl time.Duration, clk clock.Clock) (*Signer, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Signer{secret: []byte(secret), ttl: ttl, clock: clk}, nil
}

// ObserverToken returns a token for watching meetingID.
func (s *Signer) ObserverToken(meetingID string) (string, error) {
	return s.Sign(Claims{Role: call.RoleObserver, MeetingID: meetingID})
}

// CandidateToken returns a token for the candidate of sessionID.
func (s *Signer) CandidateToken(meetingID, sessionID string) (string, error) {
	return s.Sign(Claims{Role: call.RoleCandidate, MeetingID: meetingID, SessionID: sessionID})
}

// Sign fills the registered claims and signs c.
func (s *Signer) Sign(c Claims) (string, error) {
	if !c.Role.Valid() {
		return "", fmt.Errorf("%w: role %q", ErrInvalidToken, c.Role)
	}
	now := s.clock.Now().UTC()
	c.Issuer = issuer
	c.IssuedAt = jwt.NewNumericDate(now)
	c.NotBefore = jwt.NewNumericDate(now.Add(-5 * time.Second))
	c.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses token and returns its claims.
func (s *Signer) Verify(token string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, fmt.Errorf("%w: %w", ErrExpired, err)
		}
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	c, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || !c.Role.Valid() {
		return Claims{}, ErrInvalidToken
	}
	if c.Role == call.RoleCandidate && c.SessionID == "" {
		return Claims{}, fmt.Errorf("%w: candidate token without session", ErrInvalidToken)
	}
	return *c, nil
}
