package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"

	"github.com/hupe1980/toolmesh/mcp"
)

// HMACAuth signs request parameters with a shared secret.
//
// A HMACAuth has no mutable state after construction and is safe for
// concurrent use by multiple goroutines.
type HMACAuth struct {
	key []byte
}

// NewHMACAuth creates a signer from secret key material. The secret is first
// decoded as standard base64; if that fails the raw bytes are used instead,
// so construction never fails.
func NewHMACAuth(secretKey string) *HMACAuth {
	key, err := base64.StdEncoding.DecodeString(secretKey)
	if err != nil {
		key = []byte(secretKey)
	}
	return &HMACAuth{key: key}
}

// Sign returns a copy of params with an "auth" field holding the base64
// HMAC-SHA256 signature over the canonical JSON serialization of the
// remaining parameters. A pre-existing "auth" field never participates in
// signing and is always replaced.
func (a *HMACAuth) Sign(params map[string]any) (map[string]any, error) {
	unsigned := make(map[string]any, len(params))
	for k, v := range params {
		if k == "auth" {
			continue
		}
		unsigned[k] = v
	}

	// json.Marshal emits map keys sorted and without whitespace, which is
	// the canonical form the verifier recomputes.
	body, err := json.Marshal(unsigned)
	if err != nil {
		return nil, err
	}

	mac := hmac.New(sha256.New, a.key)
	mac.Write(body)
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	signed := make(map[string]any, len(params)+1)
	for k, v := range params {
		signed[k] = v
	}
	signed["auth"] = signature

	return signed, nil
}

// Middleware adapts a signer to the streaming client's per-call pipeline so
// every tool invocation carries a fresh signature.
func Middleware(secretKey string) mcp.ToolMiddleware {
	signer := NewHMACAuth(secretKey)
	return func(ctx context.Context, toolName string, args map[string]any) (map[string]any, error) {
		if args == nil {
			args = map[string]any{}
		}
		return signer.Sign(args)
	}
}
