package httpapi

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decoding response body: %v (status %d, body %q)", err, rec.Code, rec.Body.String())
	}
}
