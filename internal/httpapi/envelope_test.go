package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestRespondPicksStatusFromCode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		code        int
		wantStatus  string
		wantMessage string
		wantCode    int
	}{
		{code: http.StatusOK, wantStatus: "success"},
		{code: http.StatusAccepted, wantStatus: "success"},
		{code: http.StatusNotFound, wantStatus: "fail", wantMessage: "gone"},
		{code: http.StatusServiceUnavailable, wantStatus: "error", wantMessage: "gone", wantCode: http.StatusServiceUnavailable},
	}

	e := echo.New()
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		if err := respond(c, tc.code, map[string]int{"n": 1}, "gone"); err != nil {
			t.Fatalf("%d: respond: %v", tc.code, err)
		}

		var body envelope
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("%d: decode: %v", tc.code, err)
		}
		if rec.Code != tc.code || body.Status != tc.wantStatus || body.Message != tc.wantMessage || body.Code != tc.wantCode {
			t.Fatalf("%d: unexpected envelope %+v", tc.code, body)
		}
		if body.Data == nil {
			t.Fatalf("%d: expected data to be kept", tc.code)
		}
	}
}
