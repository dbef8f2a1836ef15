package envelope

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeKeys(t *testing.T, body []byte) map[string]json.RawMessage {
	t.Helper()
	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestMarshal_Success(t *testing.T) {
	body, err := json.Marshal(Success(json.RawMessage(`{"data":[1,2],"page":1}`)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"data":{"data":[1,2],"page":1}}`, string(body))
}

func TestMarshal_SuccessNilDataIsNull(t *testing.T) {
	body, err := json.Marshal(Success(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"data":null}`, string(body))
}

func TestMarshal_FailureOmitsEmptyDetails(t *testing.T) {
	body, err := json.Marshal(Failure("lead not found", ""))
	require.NoError(t, err)
	assert.Equal(t, `{"success":false,"error":"lead not found"}`, string(body))
}

func TestMarshal_FailureWithDetails(t *testing.T) {
	body, err := json.Marshal(Failure("Failed to fetch leads from external API", "dial tcp: connection refused"))
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"success":false,"error":"Failed to fetch leads from external API","details":"dial tcp: connection refused"}`,
		string(body))
}

// Every envelope has success plus data or error, never neither.
func TestMarshal_Totality(t *testing.T) {
	cases := []Envelope{
		Success(nil),
		Success(json.RawMessage(`[]`)),
		Failure("", ""),
		Failure("x", "y"),
		{},
	}
	for _, env := range cases {
		body, err := json.Marshal(env)
		require.NoError(t, err)
		keys := decodeKeys(t, body)

		_, hasSuccess := keys["success"]
		_, hasData := keys["data"]
		_, hasError := keys["error"]
		assert.True(t, hasSuccess, string(body))
		assert.True(t, hasData != hasError, "exactly one of data/error: %s", body)
		for k := range keys {
			assert.Contains(t, []string{"success", "data", "error", "details"}, k)
		}
	}
}

func TestWrite_SetsStatusAndNoStore(t *testing.T) {
	tests := []struct {
		name   string
		status int
		env    Envelope
	}{
		{"ok", http.StatusOK, Success(json.RawMessage(`{"id":"l1"}`))},
		{"created", http.StatusCreated, Success(json.RawMessage(`{"id":"l2"}`))},
		{"not found", http.StatusNotFound, Failure("lead not found", "")},
		{"transport", http.StatusInternalServerError, Failure("Failed to fetch leads from external API", "timeout")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			require.NoError(t, Write(rec, tt.status, tt.env))

			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")
			assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

			want, _ := json.Marshal(tt.env)
			assert.JSONEq(t, string(want), rec.Body.String())
		})
	}
}

func TestWrite_NoContentHasEmptyBody(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, Write(rec, http.StatusNoContent, Success(nil)))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")
}

func TestWrite_BodilessStatuses(t *testing.T) {
	for _, status := range []int{http.StatusNoContent, http.StatusResetContent, http.StatusNotModified} {
		rec := httptest.NewRecorder()
		require.NoError(t, Write(rec, status, Success(nil)))

		assert.Equal(t, status, rec.Code)
		assert.Empty(t, rec.Body.String(), "status %d", status)
	}
}

func TestWriteFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteFailure(rec, http.StatusNotFound, "Route not found", ""))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")
	assert.JSONEq(t, `{"success":false,"error":"Route not found"}`, rec.Body.String())
}

func TestWrite_InvalidRawDataBecomesFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	_ = Write(rec, http.StatusOK, Success(json.RawMessage(`{not json`)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	keys := decodeKeys(t, rec.Body.Bytes())
	assert.JSONEq(t, `false`, string(keys["success"]))
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")
}
