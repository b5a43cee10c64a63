// ABOUTME: Tests for identity extraction from upstream headers
// ABOUTME: Covers header mapping, empty detection and the forwarded JSON form

package auth

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromHeaders(t *testing.T) {
	tests := []struct {
		name    string
		headers http.Header
		want    Identity
	}{
		{
			name:    "no headers",
			headers: http.Header{},
			want:    Identity{},
		},
		{
			name:    "nil header map",
			headers: nil,
			want:    Identity{},
		},
		{
			name:    "user only",
			headers: http.Header{"X-User-Id": {"u1"}},
			want:    Identity{UserID: "u1"},
		},
		{
			name:    "tenant only",
			headers: http.Header{"X-Tenant-Id": {"t9"}},
			want:    Identity{TenantID: "t9"},
		},
		{
			name:    "both",
			headers: http.Header{"X-User-Id": {"u1"}, "X-Tenant-Id": {"t9"}},
			want:    Identity{UserID: "u1", TenantID: "t9"},
		},
		{
			name:    "empty value treated as absent",
			headers: http.Header{"X-User-Id": {""}},
			want:    Identity{},
		},
		{
			name:    "value copied literally",
			headers: http.Header{"X-User-Id": {"  Alice@Example.COM "}},
			want:    Identity{UserID: "  Alice@Example.COM "},
		},
		{
			name:    "first value wins",
			headers: http.Header{"X-User-Id": {"u1", "u2"}},
			want:    Identity{UserID: "u1"},
		},
		{
			name: "unrelated headers ignored",
			headers: http.Header{
				"Authorization":   {"Bearer secret"},
				"X-Role":          {"admin"},
				"X-Forwarded-For": {"10.0.0.1"},
			},
			want: Identity{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromHeaders(tt.headers))
		})
	}
}

func TestFromHeaders_CaseInsensitive(t *testing.T) {
	h := http.Header{}
	h.Set("x-user-id", "u1")
	h.Set("X-TENANT-ID", "t9")

	assert.Equal(t, Identity{UserID: "u1", TenantID: "t9"}, FromHeaders(h))
}

func TestIdentity_Empty(t *testing.T) {
	assert.True(t, Identity{}.Empty())
	assert.False(t, Identity{UserID: "u1"}.Empty())
	assert.False(t, Identity{TenantID: "t9"}.Empty())
}

func TestIdentity_JSON(t *testing.T) {
	t.Run("empty is nil", func(t *testing.T) {
		b, err := Identity{}.JSON()
		require.NoError(t, err)
		assert.Nil(t, b)
	})

	t.Run("absent keys omitted", func(t *testing.T) {
		b, err := Identity{UserID: "u1"}.JSON()
		require.NoError(t, err)
		assert.JSONEq(t, `{"user_id":"u1"}`, string(b))

		b, err = Identity{TenantID: "t9"}.JSON()
		require.NoError(t, err)
		assert.JSONEq(t, `{"tenant_id":"t9"}`, string(b))
	})

	t.Run("both keys", func(t *testing.T) {
		b, err := Identity{UserID: "u1", TenantID: "t9"}.JSON()
		require.NoError(t, err)
		assert.JSONEq(t, `{"user_id":"u1","tenant_id":"t9"}`, string(b))
	})

	t.Run("special characters escaped", func(t *testing.T) {
		b, err := Identity{UserID: `a"b\c`}.JSON()
		require.NoError(t, err)
		assert.JSONEq(t, `{"user_id":"a\"b\\c"}`, string(b))
	})
}
