// ABOUTME: Caller identity hints extracted from trusted upstream headers
// ABOUTME: Provides FromHeaders and the JSON form forwarded to the backend dispatcher

package auth

import (
	"encoding/json"
	"net/http"
)

// Recognized identity headers. Values are set by an upstream proxy that has
// already verified the caller; the gateway forwards them without checking.
const (
	HeaderUserID   = "X-User-Id"
	HeaderTenantID = "X-Tenant-Id"
)

// Identity holds the identity hints asserted for a request.
// Empty fields were not asserted and are omitted from the JSON form.
type Identity struct {
	UserID   string `json:"user_id,omitempty"`
	TenantID string `json:"tenant_id,omitempty"`
}

// FromHeaders builds an Identity from the recognized headers.
// Headers that are missing or empty leave the corresponding field unset.
func FromHeaders(h http.Header) Identity {
	return Identity{
		UserID:   h.Get(HeaderUserID),
		TenantID: h.Get(HeaderTenantID),
	}
}

// Empty reports whether no identity was asserted at all.
func (i Identity) Empty() bool {
	return i.UserID == "" && i.TenantID == ""
}

// JSON returns the identity as a JSON object, or nil when the identity is empty.
// A nil result means "no identity asserted", which is distinct from {}.
func (i Identity) JSON() ([]byte, error) {
	if i.Empty() {
		return nil, nil
	}
	return json.Marshal(i)
}
