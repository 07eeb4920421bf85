// Package cryptoutil provides the verification primitives used when loading
// content documents.
//
// It supports:
//   - KMS-backed detached signature verification (ECDSA P-256/P-384, RSA-PSS
//     with optional PKCS1v15 fallback), raw or base64 armored
//   - constant-time comparison of hex digests
//   - SHA-256 hashing
package cryptoutil
