package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hubrelay/internal/types"
)

const (
	testSecret = "secret"
	testURL    = "https://relay.example.com/api/webhook/hubspot"
	testTS     = "1700000000000"
)

func TestSignKnownVectors(t *testing.T) {
	assert.Equal(t, "37bd34e4b292ef9df8bfe70e3f50526139249490c3c2594cf20175ba7665e01d",
		SignLegacy(testSecret, []byte(`{"a":1}`)))
	assert.Equal(t, "wUx+W41L2IQdtsaANMI1KeY5I/nIBFHqHzrkVhIKt+U=",
		SignV3(testSecret, "POST", testURL, []byte(`[]`), testTS))
}

func v3Envelope(body []byte) types.WebhookEnvelope {
	return types.WebhookEnvelope{
		RawBody: body,
		Method:  http.MethodPost,
		URL:     testURL,
		Headers: types.SignatureHeaders{
			Signature:        SignV3(testSecret, http.MethodPost, testURL, body, testTS),
			SignatureVersion: "v3",
			Timestamp:        testTS,
			HasV3Header:      true,
		},
	}
}

func flip(s string, i int) string {
	b := []byte(s)
	b[i] ^= 0x01
	return string(b)
}

func TestVerifyV3ByteFlips(t *testing.T) {
	body := []byte(`[{"subscriptionType":"form_submission.v2","portalId":111,"objectId":"abc"}]`)
	env := v3Envelope(body)
	require.Equal(t, Verified, Verify(env, testSecret))

	for i := range body {
		e := env
		e.RawBody = []byte(flip(string(body), i))
		assert.Equal(t, Rejected, Verify(e, testSecret), "body byte %d", i)
	}
	for i := range testTS {
		e := env
		e.Headers.Timestamp = flip(testTS, i)
		assert.Equal(t, Rejected, Verify(e, testSecret), "timestamp byte %d", i)
	}
	for i := range "POST" {
		e := env
		e.Method = flip("POST", i)
		assert.Equal(t, Rejected, Verify(e, testSecret), "method byte %d", i)
	}
	for i := range testURL {
		e := env
		e.URL = flip(testURL, i)
		assert.Equal(t, Rejected, Verify(e, testSecret), "url byte %d", i)
	}
}

func TestVerifyV3MissingTimestamp(t *testing.T) {
	env := v3Envelope([]byte(`[]`))
	env.Headers.Timestamp = ""
	assert.Equal(t, Rejected, Verify(env, testSecret))
}

func TestVerifyLegacy(t *testing.T) {
	body := []byte(`{"objectId":1}`)
	env := types.WebhookEnvelope{
		RawBody: body,
		Method:  http.MethodPost,
		URL:     testURL,
		Headers: types.SignatureHeaders{Signature: SignLegacy(testSecret, body), SignatureVersion: "v1"},
	}

	assert.Equal(t, Verified, Verify(env, testSecret))
	assert.Equal(t, Rejected, Verify(env, "other-secret"))
}

func TestVerifyMalformedSignatures(t *testing.T) {
	body := []byte(`{}`)

	assert.NotPanics(t, func() {
		assert.False(t, VerifyLegacy(testSecret, body, "zz-not-hex"))
		assert.False(t, VerifyLegacy(testSecret, body, "abcd"))
		assert.False(t, VerifyV3(testSecret, "POST", testURL, body, testTS, "%%%not base64"))
		assert.False(t, VerifyV3(testSecret, "POST", testURL, body, testTS, "c2hvcnQ="))
	})
}

func TestVerifySkipped(t *testing.T) {
	signed := v3Envelope([]byte(`[]`))
	assert.Equal(t, Skipped, Verify(signed, ""), "no secret")

	unsigned := types.WebhookEnvelope{RawBody: []byte(`[]`), Method: "POST", URL: testURL}
	assert.Equal(t, Skipped, Verify(unsigned, testSecret), "no header")
	assert.True(t, Skipped.OK())
	assert.False(t, Rejected.OK())
}

func TestHeadersFromRequest(t *testing.T) {
	h := http.Header{}
	h.Set(HeaderSignature, "legacy")
	h.Set(HeaderSignatureV3, "v3sig")
	h.Set(HeaderRequestTimestamp, testTS)

	got := HeadersFromRequest(h)
	assert.Equal(t, "v3sig", got.Signature)
	assert.Equal(t, SchemeV3, SelectScheme(got))

	h.Del(HeaderSignatureV3)
	got = HeadersFromRequest(h)
	assert.Equal(t, "legacy", got.Signature)
	assert.Equal(t, SchemeLegacy, SelectScheme(got))

	assert.Equal(t, SchemeNone, SelectScheme(HeadersFromRequest(http.Header{})))
}

func TestRequestURL(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/webhook/hubspot?x=1", nil)
	r.Host = "abc.lambda-url.us-east-1.on.aws"

	assert.Equal(t, "https://abc.lambda-url.us-east-1.on.aws/api/webhook/hubspot?x=1", RequestURL(r, ""))
	assert.Equal(t, "https://relay.example.com/api/webhook/hubspot?x=1", RequestURL(r, "https://relay.example.com/"))
}

func TestLegacyHeaderWithV3VersionStaysLegacy(t *testing.T) {
	body := []byte(`[{"subscriptionType":"contact.creation","portalId":111,"objectId":1}]`)
	h := http.Header{}
	h.Set(HeaderSignature, SignLegacy(testSecret, body))
	h.Set(HeaderSignatureVersion, "v3")
	h.Set(HeaderRequestTimestamp, testTS)

	got := HeadersFromRequest(h)
	assert.False(t, got.HasV3Header)
	assert.Equal(t, "v3", got.SignatureVersion)
	require.Equal(t, SchemeLegacy, SelectScheme(got))

	env := types.WebhookEnvelope{RawBody: body, Method: http.MethodPost, URL: testURL, Headers: got}
	assert.Equal(t, Verified, Verify(env, testSecret))
}
