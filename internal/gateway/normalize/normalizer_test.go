package normalize

import (
	"encoding/json"
	"net/http"
	"testing"

	gwerrors "staffing-gateway/internal/common/errors"
	"staffing-gateway/internal/gateway/envelope"
	"staffing-gateway/internal/gateway/upstream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fetchLeads = "Failed to fetch leads from external API"

func failure(status int, raw string) upstream.UpstreamFailure {
	var parsed interface{}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		parsed = map[string]interface{}{"error": raw}
	}
	return upstream.UpstreamFailure{Status: status, Raw: []byte(raw), Parsed: parsed}
}

func TestNormalize_Ok(t *testing.T) {
	body := json.RawMessage(`{"data":[],"meta":{"limit":50,"offset":0,"returned":0,"hasMore":false}}`)
	res := Normalize(upstream.Ok{Status: http.StatusOK, Body: body}, fetchLeads)

	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, envelope.Success(body), res.Envelope)
	assert.Empty(t, res.Code)
}

func TestNormalize_NoContent(t *testing.T) {
	res := Normalize(upstream.Ok{Status: http.StatusNoContent}, fetchLeads)

	assert.Equal(t, http.StatusNoContent, res.Status)
	out, err := json.Marshal(res.Envelope)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"data":null}`, string(out))
}

func TestNormalize_ResetContentBecomesNoContent(t *testing.T) {
	res := Normalize(upstream.Ok{Status: http.StatusResetContent}, fetchLeads)

	assert.Equal(t, http.StatusNoContent, res.Status)
	assert.True(t, res.Envelope.Success)
}

func TestNormalize_UpstreamFailure(t *testing.T) {
	tests := []struct {
		name        string
		outcome     upstream.UpstreamFailure
		wantError   string
		wantDetails string
		wantCode    gwerrors.ErrorCode
	}{
		{
			name:      "error field",
			outcome:   failure(404, `{"error":"lead not found"}`),
			wantError: "lead not found",
			wantCode:  gwerrors.ErrCodeUpstreamClientError,
		},
		{
			name:        "error with message as details",
			outcome:     failure(409, `{"error":"Conflict","message":"technician already assigned"}`),
			wantError:   "Conflict",
			wantDetails: "technician already assigned",
			wantCode:    gwerrors.ErrCodeUpstreamClientError,
		},
		{
			name:        "explicit details win",
			outcome:     failure(400, `{"error":"Validation failed","message":"bad","details":"start_date is required"}`),
			wantError:   "Validation failed",
			wantDetails: "start_date is required",
			wantCode:    gwerrors.ErrCodeUpstreamClientError,
		},
		{
			name:      "message only",
			outcome:   failure(400, `{"message":"invalid email"}`),
			wantError: "invalid email",
			wantCode:  gwerrors.ErrCodeUpstreamClientError,
		},
		{
			name:      "detail string",
			outcome:   failure(404, `{"detail":"Not Found"}`),
			wantError: "Not Found",
			wantCode:  gwerrors.ErrCodeUpstreamClientError,
		},
		{
			name:        "structured detail",
			outcome:     failure(422, `{"detail":[{"loc":["body","email"],"msg":"field required"}]}`),
			wantError:   "Unprocessable Entity",
			wantDetails: `[{"loc":["body","email"],"msg":"field required"}]`,
			wantCode:    gwerrors.ErrCodeUpstreamClientError,
		},
		{
			name:      "plain text body",
			outcome:   failure(502, "upstream proxy error"),
			wantError: "upstream proxy error",
			wantCode:  gwerrors.ErrCodeUpstreamServerError,
		},
		{
			name:      "empty body",
			outcome:   failure(503, ""),
			wantError: "Service Unavailable",
			wantCode:  gwerrors.ErrCodeUpstreamServerError,
		},
		{
			name:      "json string body",
			outcome:   failure(400, `"bad request body"`),
			wantError: "bad request body",
			wantCode:  gwerrors.ErrCodeUpstreamClientError,
		},
		{
			name:      "json array body",
			outcome:   failure(400, `[1,2]`),
			wantError: "Bad Request",
			wantCode:  gwerrors.ErrCodeUpstreamClientError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Normalize(tt.outcome, fetchLeads)

			assert.Equal(t, tt.outcome.Status, res.Status)
			assert.False(t, res.Envelope.Success)
			assert.Equal(t, tt.wantError, res.Envelope.Error)
			assert.Equal(t, tt.wantDetails, res.Envelope.Details)
			assert.Equal(t, tt.wantCode, res.Code)
		})
	}
}

func TestNormalize_MalformedSuccess(t *testing.T) {
	res := Normalize(upstream.MalformedSuccess{
		Status: http.StatusOK,
		Raw:    []byte("<html>"),
		Cause:  "invalid JSON in response body: invalid character '<'",
	}, fetchLeads)

	assert.Equal(t, http.StatusBadGateway, res.Status)
	assert.Equal(t, MalformedSuccessMessage, res.Envelope.Error)
	assert.Contains(t, res.Envelope.Details, "invalid JSON")
	assert.Equal(t, gwerrors.ErrCodeMalformedUpstreamSuccess, res.Code)
}

func TestNormalize_TransportFailure(t *testing.T) {
	cause := "dial tcp 127.0.0.1:8000: connect: connection refused"
	res := Normalize(upstream.TransportFailure{Cause: cause}, fetchLeads)

	assert.Equal(t, http.StatusInternalServerError, res.Status)
	assert.Equal(t, envelope.Failure(fetchLeads, cause), res.Envelope)
	assert.Equal(t, gwerrors.ErrCodeTransportFailure, res.Code)
}

// Every outcome yields a body with success and exactly one of data/error.
func TestNormalize_EnvelopeTotality(t *testing.T) {
	outcomes := []upstream.Outcome{
		upstream.Ok{Status: 200, Body: json.RawMessage(`{"id":"x"}`)},
		upstream.Ok{Status: 204},
		failure(400, `{}`),
		failure(500, ""),
		failure(404, `null`),
		upstream.MalformedSuccess{Status: 200},
		upstream.TransportFailure{},
	}

	for _, o := range outcomes {
		out, err := json.Marshal(Normalize(o, fetchLeads).Envelope)
		require.NoError(t, err)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(out, &body))
		require.Contains(t, body, "success")

		_, hasData := body["data"]
		errMsg, hasError := body["error"]
		assert.True(t, hasData != hasError, "body %s", out)
		if hasError {
			assert.NotEmpty(t, errMsg)
		}
	}
}
