package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: session", ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: bad mode", ErrValidation), http.StatusBadRequest},
		{ErrConflict, http.StatusConflict},
		{errors.New("pool closed"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		require.Equal(t, tc.status, rec.Code)
		require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

		var body ProblemDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, tc.status, body.Status)
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, errors.New("dial tcp 10.0.0.3:5432: refused"))
	require.NotContains(t, rec.Body.String(), "10.0.0.3")
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var dst struct {
		Date string `json:"date"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"date":"2025-03-14","extra":1}`))
	require.Error(t, DecodeJSON(req, &dst))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"date":"2025-03-14"}`))
	require.NoError(t, DecodeJSON(req, &dst))
	require.Equal(t, "2025-03-14", dst.Date)
}
