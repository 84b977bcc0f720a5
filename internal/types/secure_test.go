package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

const testSecret = "hubspot-client-secret-12345"

func TestSecretString_NeverPrintsPlaintext(t *testing.T) {
	s := SecretString(testSecret)

	for _, out := range []string{
		s.String(),
		fmt.Sprintf("%s", s),
		fmt.Sprintf("%v", s),
		fmt.Sprintf("%+v", struct{ S SecretString }{s}),
	} {
		if strings.Contains(out, testSecret) {
			t.Errorf("formatted output leaked the secret: %q", out)
		}
	}
}

func TestSecretString_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Token SecretString `json:"token"`
	}{Token: SecretString(testSecret)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), testSecret) {
		t.Errorf("JSON leaked the secret: %s", data)
	}
	if string(data) != `{"token":"***REDACTED***"}` {
		t.Errorf("unexpected JSON: %s", data)
	}
}

func TestSecretString_UnmaskAndIsSet(t *testing.T) {
	s := SecretString(testSecret)
	if s.Unmask() != testSecret {
		t.Errorf("Unmask() = %q", s.Unmask())
	}
	if !s.IsSet() {
		t.Error("IsSet() = false for non-empty secret")
	}
	if SecretString("").IsSet() {
		t.Error("IsSet() = true for empty secret")
	}
}
