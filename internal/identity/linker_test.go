package identity

import (
	"context"
	"testing"

	"storefront-payments/internal/auth"
	"storefront-payments/internal/client"
	"storefront-payments/internal/model"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeProfiles struct {
	profiles map[string]*model.Profile
}

func (f *fakeProfiles) FindByUserID(_ context.Context, userID string) (*model.Profile, error) {
	if p, ok := f.profiles[userID]; ok {
		return p, nil
	}
	return nil, model.ErrProfileNotFound
}

type fakeIdentityClient struct {
	users map[string]*client.AuthUser
}

func (f *fakeIdentityClient) VerifyToken(_ context.Context, token string) (*client.AuthUser, error) {
	if u, ok := f.users[token]; ok {
		return u, nil
	}
	return nil, assert.AnError
}

func (f *fakeIdentityClient) GetUserByID(_ context.Context, userID string) (*client.AuthUser, error) {
	if u, ok := f.users[userID]; ok {
		return u, nil
	}
	return nil, assert.AnError
}

func newTestLinker(profiles map[string]*model.Profile, users map[string]*client.AuthUser) *Linker {
	return NewLinker(&fakeProfiles{profiles: profiles}, &fakeIdentityClient{users: users}, zap.NewNop())
}

func TestCanonicalEmailIdempotent(t *testing.T) {
	for _, email := range []string{"  Jane.Doe@Example.COM ", "x@y.z", "", "MIXED@CASE.io"} {
		once := CanonicalEmail(email)
		assert.Equal(t, once, CanonicalEmail(once))
	}
	assert.Equal(t, "jane.doe@example.com", CanonicalEmail("  Jane.Doe@Example.COM "))
}

func TestNormalizePhoneIdempotent(t *testing.T) {
	for _, phone := range []string{"+91 98765-11111", "(555) 123 4567", "", "12345"} {
		once := NormalizePhone(phone)
		assert.Equal(t, once, NormalizePhone(once))
	}
	assert.Equal(t, "919876511111", NormalizePhone("+91 98765-11111"))
}

func TestResolvePriority(t *testing.T) {
	linker := newTestLinker(
		map[string]*model.Profile{
			"u1": {UserID: "u1", Email: "profile@example.com", Phone: "+1 222 333 4444"},
		},
		map[string]*client.AuthUser{
			"u2": {ID: "u2", Email: "admin@example.com"},
		},
	)
	ctx := context.Background()

	t.Run("request_payload_wins", func(t *testing.T) {
		c := linker.Resolve(ctx, Input{
			RequestEmail: "Request@Example.com",
			RequestPhone: "+91 11111 22222",
			UserID:       "u1",
		})
		assert.Equal(t, "Request@Example.com", c.Email)
		assert.Equal(t, "request@example.com", c.EmailCanonical)
		assert.Equal(t, "911111122222", c.PhoneNormalized)
	})

	t.Run("profile_fills_missing_fields", func(t *testing.T) {
		c := linker.Resolve(ctx, Input{UserID: "u1"})
		assert.Equal(t, "profile@example.com", c.Email)
		assert.Equal(t, "12223334444", c.PhoneNormalized)
	})

	t.Run("claims_email_used", func(t *testing.T) {
		c := linker.Resolve(ctx, Input{
			Claims: &auth.Identity{UserID: "u9", Email: "claims@example.com", Strength: auth.StrengthDecoded},
		})
		assert.Equal(t, "claims@example.com", c.Email)
	})

	t.Run("subject_only_claims_trigger_provider_lookup", func(t *testing.T) {
		c := linker.Resolve(ctx, Input{
			Claims: &auth.Identity{UserID: "u2", Strength: auth.StrengthDecoded},
		})
		assert.Equal(t, "admin@example.com", c.Email)
	})

	t.Run("gateway_contact_is_last_resort", func(t *testing.T) {
		c := linker.Resolve(ctx, Input{
			GatewayEmail:   "buyer@example.com",
			GatewayContact: "+91 99999 88888",
		})
		assert.Equal(t, "buyer@example.com", c.Email)
		assert.Equal(t, "919999988888", c.PhoneNormalized)
	})

	t.Run("nothing_resolvable_stays_empty", func(t *testing.T) {
		c := linker.Resolve(ctx, Input{UserID: "missing"})
		assert.Empty(t, c.Email)
		assert.Empty(t, c.Phone)
	})
}

func TestResolveRejectsSentinels(t *testing.T) {
	linker := newTestLinker(nil, nil)
	ctx := context.Background()

	c := linker.Resolve(ctx, Input{
		RequestEmail: "Gaurav.Kumar@example.com",
		RequestPhone: "+91 98765 43210",
	})
	assert.Empty(t, c.Email, "sentinel email must be treated as absent")
	assert.Empty(t, c.Phone, "sentinel phone must be treated as absent")

	// sentinel in the request must not block a genuine lower-priority value
	c = linker.Resolve(ctx, Input{
		RequestEmail: "gaurav.kumar@example.com",
		GatewayEmail: "real@example.com",
	})
	assert.Equal(t, "real@example.com", c.Email)
}
