package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/stretchr/testify/require"
)

// newTestRequestEvent wraps req and rec in a RequestEvent bound to app.
func newTestRequestEvent(app *pocketbase.PocketBase, req *http.Request, rec *httptest.ResponseRecorder) *core.RequestEvent {
	e := &core.RequestEvent{}
	e.App = app
	e.Request = req
	e.Response = rec
	return e
}

// importEvent builds a request against /boq-imports/{id}. An empty id leaves
// the path value unset.
func importEvent(app *pocketbase.PocketBase, method, id, suffix string) (*core.RequestEvent, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, "/boq-imports/"+id+suffix, nil)
	if id != "" {
		req.SetPathValue("id", id)
	}
	rec := httptest.NewRecorder()
	return newTestRequestEvent(app, req, rec), rec
}

// toastFrom decodes the showToast event of a response.
func toastFrom(t *testing.T, rec *httptest.ResponseRecorder) toast {
	t.Helper()
	var events struct {
		ShowToast toast `json:"showToast"`
	}
	require.NoError(t, json.Unmarshal([]byte(rec.Header().Get("HX-Trigger")), &events))
	return events.ShowToast
}

// flashFrom decodes the flash cookie of a response.
func flashFrom(t *testing.T, rec *httptest.ResponseRecorder) toast {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name != flashCookie {
			continue
		}
		raw, err := url.QueryUnescape(c.Value)
		require.NoError(t, err)
		var out toast
		require.NoError(t, json.Unmarshal([]byte(raw), &out))
		return out
	}
	t.Fatalf("no %s cookie set", flashCookie)
	return toast{}
}
