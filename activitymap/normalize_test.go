package activitymap_test

import (
	"testing"
	"time"

	account "github.com/goliatone/go-account"
	"github.com/goliatone/go-account/activitymap"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	out := activitymap.Normalize(account.ActivityEvent{
		EventType:  account.ActivityEventPasswordChanged,
		UserID:     100,
		Metadata:   map[string]any{"sessions_revoked": 2},
		OccurredAt: ts,
	})

	assert.Equal(t, "100", out.ActorID)
	assert.Equal(t, string(account.ActivityEventPasswordChanged), out.Verb)
	assert.Equal(t, "user", out.ObjectType)
	assert.Equal(t, "100", out.ObjectID)
	assert.Equal(t, "account", out.Channel)
	assert.True(t, out.OccurredAt.Equal(ts))
	assert.Equal(t, 2, out.Metadata["sessions_revoked"])
}

func TestNormalizeAnonymousActor(t *testing.T) {
	t.Parallel()

	out := activitymap.Normalize(account.ActivityEvent{EventType: account.ActivityEventLoginFailure})
	assert.Equal(t, "anonymous", out.ActorID)
	assert.Empty(t, out.ObjectID)
	assert.False(t, out.OccurredAt.IsZero())
	assert.Nil(t, out.Metadata)

	out = activitymap.Normalize(
		account.ActivityEvent{EventType: account.ActivityEventLoginFailure},
		activitymap.WithActorFallback("system"),
		activitymap.WithDefaultChannel("audit"),
		activitymap.WithDefaultObjectType("account"),
	)
	assert.Equal(t, "system", out.ActorID)
	assert.Equal(t, "audit", out.Channel)
	assert.Equal(t, "account", out.ObjectType)
}

func TestNormalizeRedactsSecrets(t *testing.T) {
	t.Parallel()

	metadata := map[string]any{
		"ip":       "10.0.0.1",
		"Password": "hunter2",
		"token":    "abc",
	}
	out := activitymap.Normalize(account.ActivityEvent{
		EventType: account.ActivityEventLoginFailure,
		Metadata:  metadata,
	})

	assert.Equal(t, "10.0.0.1", out.Metadata["ip"])
	assert.NotContains(t, out.Metadata, "Password")
	assert.NotContains(t, out.Metadata, "token")
	assert.ElementsMatch(t, []string{"Password", "token"}, out.Metadata[activitymap.MetadataKeyRedacted])

	assert.Len(t, metadata, 3, "input metadata is not mutated")
}
