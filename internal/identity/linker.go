// Package identity resolves the human contact (email/phone) for an order
// and normalizes it into the canonical forms used for matching.
package identity

import (
	"context"
	"errors"
	"strings"

	"storefront-payments/internal/auth"
	"storefront-payments/internal/client"
	"storefront-payments/internal/model"

	"go.uber.org/zap"
)

// Known placeholder values from the gateway's sample payloads. They leak
// into real webhook traffic and must never be persisted as customer data.
var (
	sentinelEmails = map[string]struct{}{
		"gaurav.kumar@example.com": {},
	}
	sentinelPhones = map[string]struct{}{
		"9876543210":   {},
		"919876543210": {},
	}
)

// Contact carries both display and matching forms. Canonical/normalized
// forms are for equality only, never for display.
type Contact struct {
	Email           string
	EmailCanonical  string
	Phone           string
	PhoneNormalized string
}

// Input is everything a caller may know about the order's owner. Gateway
// fields are set on webhook-originated events only.
type Input struct {
	RequestEmail   string
	RequestPhone   string
	UserID         string
	Claims         *auth.Identity
	GatewayEmail   string
	GatewayContact string
}

type profileLookup interface {
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)
}

type Linker struct {
	profiles profileLookup
	identity client.IdentityClient
	logger   *zap.Logger
}

func NewLinker(profiles profileLookup, identity client.IdentityClient, logger *zap.Logger) *Linker {
	return &Linker{
		profiles: profiles,
		identity: identity,
		logger:   logger,
	}
}

// Resolve fills each contact field from the first source that has a genuine
// value: request payload, stored profile, token claims (with a provider
// lookup when the claims carry only a subject), then gateway contact fields.
// An unresolvable field stays empty; that is not an error.
func (l *Linker) Resolve(ctx context.Context, in Input) Contact {
	var c Contact

	c.setEmail(in.RequestEmail)
	c.setPhone(in.RequestPhone)
	if c.complete() {
		return c
	}

	if in.UserID != "" {
		profile, err := l.profiles.FindByUserID(ctx, in.UserID)
		if err == nil {
			c.setEmail(profile.Email)
			c.setPhone(profile.Phone)
		} else if !errors.Is(err, model.ErrProfileNotFound) {
			l.logger.Debug("profile lookup failed", zap.String("user_id", in.UserID), zap.Error(err))
		}
		if c.complete() {
			return c
		}
	}

	if in.Claims != nil {
		c.setEmail(in.Claims.Email)
		c.setPhone(in.Claims.Phone)

		if !c.complete() && in.Claims.UserID != "" && l.identity != nil {
			user, err := l.identity.GetUserByID(ctx, in.Claims.UserID)
			if err == nil {
				c.setEmail(user.Email)
				c.setPhone(user.Phone)
			} else {
				l.logger.Debug("identity lookup failed", zap.String("user_id", in.Claims.UserID), zap.Error(err))
			}
		}
		if c.complete() {
			return c
		}
	}

	c.setEmail(in.GatewayEmail)
	c.setPhone(in.GatewayContact)

	return c
}

func (c *Contact) complete() bool {
	return c.Email != "" && c.Phone != ""
}

func (c *Contact) setEmail(email string) {
	if c.Email != "" {
		return
	}
	canonical := CanonicalEmail(email)
	if canonical == "" || IsSentinelEmail(canonical) {
		return
	}
	c.Email = strings.TrimSpace(email)
	c.EmailCanonical = canonical
}

func (c *Contact) setPhone(phone string) {
	if c.Phone != "" {
		return
	}
	normalized := NormalizePhone(phone)
	if normalized == "" || IsSentinelPhone(normalized) {
		return
	}
	c.Phone = strings.TrimSpace(phone)
	c.PhoneNormalized = normalized
}

// CanonicalEmail trims and lower-cases. Idempotent.
func CanonicalEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone strips everything but digits. Idempotent.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func IsSentinelEmail(canonical string) bool {
	_, ok := sentinelEmails[canonical]
	return ok
}

func IsSentinelPhone(normalized string) bool {
	_, ok := sentinelPhones[normalized]
	return ok
}
