// Package security authenticates inbound HubSpot webhook calls and guards
// outbound HTTP calls.
//
// Two signature schemes are supported. The legacy scheme signs
// secret+body with SHA-256 and sends the hex digest in X-HubSpot-Signature.
// The v3 scheme signs method+url+body+timestamp with HMAC-SHA256 keyed by the
// client secret and sends the base64 digest in X-HubSpot-Signature-v3.
package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"net/http"

	"hubrelay/internal/types"
)

// HubSpot request headers.
const (
	HeaderSignature        = "X-HubSpot-Signature"
	HeaderSignatureV3      = "X-HubSpot-Signature-v3"
	HeaderSignatureVersion = "X-HubSpot-Signature-Version"
	HeaderRequestTimestamp = "X-HubSpot-Request-Timestamp"
)

const versionV3 = "v3"

// Scheme identifies the signing scheme of a request.
type Scheme int

const (
	SchemeNone Scheme = iota
	SchemeLegacy
	SchemeV3
)

func (s Scheme) String() string {
	switch s {
	case SchemeLegacy:
		return "legacy"
	case SchemeV3:
		return "v3"
	default:
		return "none"
	}
}

// VerifyResult is the outcome of a signature check.
type VerifyResult int

const (
	// Skipped means no check was possible: no secret or no signature.
	Skipped VerifyResult = iota
	Verified
	Rejected
)

func (r VerifyResult) String() string {
	switch r {
	case Verified:
		return "verified"
	case Rejected:
		return "rejected"
	default:
		return "skipped"
	}
}

// OK reports whether the request may proceed.
func (r VerifyResult) OK() bool { return r != Rejected }

// HeadersFromRequest captures the signature headers of r. The v3 header
// takes precedence when both are present.
func HeadersFromRequest(h http.Header) types.SignatureHeaders {
	out := types.SignatureHeaders{Timestamp: h.Get(HeaderRequestTimestamp)}
	if sig := h.Get(HeaderSignatureV3); sig != "" {
		out.Signature = sig
		out.SignatureVersion = versionV3
		out.HasV3Header = true
		return out
	}
	out.Signature = h.Get(HeaderSignature)
	out.SignatureVersion = h.Get(HeaderSignatureVersion)
	if out.Signature != "" && out.SignatureVersion == "" {
		out.SignatureVersion = "v1"
	}
	return out
}

// SelectScheme picks the scheme once, from which signature header was
// present. X-HubSpot-Signature-Version is informational and never selects v3.
func SelectScheme(h types.SignatureHeaders) Scheme {
	switch {
	case h.Signature == "":
		return SchemeNone
	case h.HasV3Header:
		return SchemeV3
	default:
		return SchemeLegacy
	}
}

// Verify checks env against clientSecret. It never errors: malformed
// signatures are Rejected and missing inputs are Skipped.
func Verify(env types.WebhookEnvelope, clientSecret string) VerifyResult {
	if clientSecret == "" {
		return Skipped
	}
	switch SelectScheme(env.Headers) {
	case SchemeV3:
		if env.Headers.Timestamp == "" {
			return Rejected
		}
		return resultOf(VerifyV3(clientSecret, env.Method, env.URL, env.RawBody, env.Headers.Timestamp, env.Headers.Signature))
	case SchemeLegacy:
		return resultOf(VerifyLegacy(clientSecret, env.RawBody, env.Headers.Signature))
	default:
		return Skipped
	}
}

func resultOf(ok bool) VerifyResult {
	if ok {
		return Verified
	}
	return Rejected
}

// SignLegacy returns hex(SHA-256(secret || body)).
func SignLegacy(secret string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// SignV3 returns base64(HMAC-SHA256(secret, method || url || body || timestamp)).
func SignV3(secret, method, url string, body []byte, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(method))
	mac.Write([]byte(url))
	mac.Write(body)
	mac.Write([]byte(timestamp))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyLegacy compares the decoded hex signature in constant time.
func VerifyLegacy(secret string, body []byte, signature string) bool {
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	sum := sha256.Sum256(append([]byte(secret), body...))
	return subtle.ConstantTimeCompare(got, sum[:]) == 1
}

// VerifyV3 compares the decoded base64 signature in constant time.
func VerifyV3(secret, method, url string, body []byte, timestamp, signature string) bool {
	got, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(method))
	mac.Write([]byte(url))
	mac.Write(body)
	mac.Write([]byte(timestamp))
	return subtle.ConstantTimeCompare(got, mac.Sum(nil)) == 1
}
