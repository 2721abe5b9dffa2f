package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		detail string
	}{
		{fmt.Errorf("%w: building", ErrNotFound), http.StatusNotFound, "resource not found: building"},
		{ErrValidation, http.StatusBadRequest, "validation failed"},
		{fmt.Errorf("%w: queue", ErrUnavailable), http.StatusServiceUnavailable, "service unavailable: queue"},
		{errors.New("pq: connection reset"), http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)

		assert.Equal(t, tc.status, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		var p ProblemDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
		assert.Equal(t, tc.status, p.Status)
		assert.Equal(t, tc.detail, p.Detail)
	}
}
