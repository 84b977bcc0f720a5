package security

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hubrelay/internal/types"
)

func newTestVerifier(secret string, strict bool, now time.Time) *WebhookVerifier {
	v := NewWebhookVerifier(secret, strict, 0, nil)
	v.Clock = types.FixedClock{T: now}
	return v
}

func codeOf(t *testing.T, err error) types.ErrorCode {
	t.Helper()
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	return appErr.Code
}

func TestWebhookVerifierCheck(t *testing.T) {
	fresh := time.UnixMilli(1700000000000 + 1000)
	stale := time.UnixMilli(1700000000000 + 300001)
	signed := v3Envelope([]byte(`[]`))
	unsigned := types.WebhookEnvelope{RawBody: []byte(`[]`), Method: http.MethodPost, URL: testURL}

	assert.NoError(t, newTestVerifier(testSecret, false, fresh).Check(signed))
	assert.Equal(t, types.ErrCodeAuthRequestExpired, codeOf(t, newTestVerifier(testSecret, false, stale).Check(signed)))
	assert.Equal(t, types.ErrCodeAuthSignatureInvalid, codeOf(t, newTestVerifier("wrong", false, fresh).Check(signed)))

	assert.NoError(t, newTestVerifier("", false, fresh).Check(signed))
	assert.NoError(t, newTestVerifier(testSecret, false, fresh).Check(unsigned))
	assert.Equal(t, types.ErrCodeAuthSignatureInvalid, codeOf(t, newTestVerifier(testSecret, true, fresh).Check(unsigned)))
}

func TestWebhookVerifierLegacyHasNoReplayWindow(t *testing.T) {
	body := []byte(`{}`)
	env := types.WebhookEnvelope{
		RawBody: body,
		Method:  http.MethodPost,
		URL:     testURL,
		Headers: types.SignatureHeaders{Signature: SignLegacy(testSecret, body), SignatureVersion: "v1", Timestamp: "1"},
	}
	assert.NoError(t, newTestVerifier(testSecret, false, time.UnixMilli(1700000000000)).Check(env))
}
