package bind

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	perr "pagestream/internal/platform/errors"
)

type payload struct {
	Name string `json:"name" validate:"required"`
	Size int    `json:"size" validate:"min=1,max=100"`
}

func post(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(body))
}

func TestParseJSON(t *testing.T) {
	got, err := ParseJSON[payload](post(`{"name":"feed","size":20}`))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if got.Name != "feed" || got.Size != 20 {
		t.Fatalf("got = %+v", got)
	}
}

func TestParseJSONRejects(t *testing.T) {
	cases := []struct {
		name string
		body string
		code perr.ErrorCode
	}{
		{"empty body on POST", "", perr.ErrorCodeJSON},
		{"broken json", `{"name":`, perr.ErrorCodeJSON},
		{"unknown field", `{"name":"x","size":1,"bogus":true}`, perr.ErrorCodeJSON},
		{"trailing data", `{"name":"x","size":1}{"again":true}`, perr.ErrorCodeJSON},
		{"missing required", `{"size":1}`, perr.ErrorCodeValidation},
		{"out of range", `{"name":"x","size":0}`, perr.ErrorCodeValidation},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ParseJSON[payload](post(c.body))
			if !perr.IsCode(err, c.code) {
				t.Fatalf("err = %v, want code %v", err, c.code)
			}
		})
	}
}

func TestParseJSONEmptyBodyOnGet(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	got, err := ParseJSON[payload](req)
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if got != (payload{}) {
		t.Fatalf("got = %+v", got)
	}
}
