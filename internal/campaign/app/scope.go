package app

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	memberdomain "github.com/Edness1/ColorCompete-sub001/internal/member/domain"
)

// buildScope assembles the personalization scope for one recipient:
// trigger context first, then the personalization builder's values, then
// the recipient identity fields (which win when set), and the
// recipient's signed unsubscribe URL.
func (d *Dispatcher) buildScope(m *memberdomain.Member, in DispatchInput) map[string]any {
	scope := make(map[string]any, len(in.TriggerContext)+8)
	for k, v := range in.TriggerContext {
		scope[k] = v
	}
	if in.Personalize != nil {
		for k, v := range in.Personalize(m) {
			scope[k] = v
		}
	}

	// An unset identity field must not shadow a trigger-context value
	// with an empty string; drawing winners, for example, carry their
	// tier in the trigger context, not on the recipient snapshot.
	if m.Name != "" {
		scope["user_name"] = m.Name
	}
	if m.Email != "" {
		scope["email"] = m.Email
	}
	if m.Tier != "" {
		scope["subscription_tier"] = m.Tier
	}

	token, err := NewUnsubscribeToken(m.ID, d.cfg.UnsubscribeSecret, d.now())
	if err != nil {
		d.logger.Error("Failed to sign unsubscribe token", "error", err, "member_id", m.ID)
	} else {
		scope["unsubscribe_url"] = fmt.Sprintf("%s/unsubscribe?token=%s", d.cfg.PublicURL, token)
	}
	return scope
}

const unsubscribeTokenTTL = 90 * 24 * time.Hour

// NewUnsubscribeToken signs a token identifying the member behind an
// unsubscribe link, so the link cannot be forged or enumerated.
func NewUnsubscribeToken(memberID uuid.UUID, secret string, issuedAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub": memberID.String(),
		"aud": "unsubscribe",
		"iat": issuedAt.Unix(),
		"exp": issuedAt.Add(unsubscribeTokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseUnsubscribeToken verifies a token from an unsubscribe link and
// returns the member id it identifies.
func ParseUnsubscribeToken(tokenString, secret string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithAudience("unsubscribe"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid unsubscribe token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, fmt.Errorf("invalid unsubscribe token claims")
	}
	sub, _ := claims["sub"].(string)
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid member id in unsubscribe token: %w", err)
	}
	return id, nil
}
