// Package auth extracts caller identity hints for pgmcp-gateway.
//
// # Trust Model
//
// The gateway performs no authentication of its own. It expects to sit behind
// an upstream component (reverse proxy, API gateway, sidecar) that verifies the
// caller and then asserts who they are through request headers:
//
//	X-User-Id:   <user identifier>
//	X-Tenant-Id: <tenant identifier>
//
// Values are copied literally. Other headers, including Authorization, are
// ignored. Deployments must make sure clients cannot reach the gateway directly
// or set these headers themselves.
//
// # Forwarded Form
//
// The identity is forwarded to the database dispatcher as a JSON object with
// absent keys omitted:
//
//	{"user_id": "u1", "tenant_id": "t9"}
//
// When neither header is present the dispatcher receives SQL NULL rather than
// an empty object.
package auth
