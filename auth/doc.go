// Package auth implements HMAC request signing for streaming provider
// calls. The signature scheme is deliberately simple: the request arguments
// are serialized to canonical JSON (sorted keys, no extra whitespace),
// signed with HMAC-SHA256 and the base64 digest is attached as the "auth"
// argument. Verifiers on the provider side recompute the digest over the
// same canonical form, so determinism of the serialization is part of the
// contract.
package auth
