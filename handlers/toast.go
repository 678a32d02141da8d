package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/pocketbase/pocketbase/core"
	"go.uber.org/zap"
)

// Toast types understood by the client.
const (
	ToastSuccess = "success"
	ToastWarning = "warning"
	ToastError   = "error"
)

const flashCookie = "flash_toast"

type toast struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// SetToast raises a client toast through the HX-Trigger header, keeping any
// other events already in the header. The same toast is stored in a short
// lived cookie for clients that follow a plain redirect.
func SetToast(e *core.RequestEvent, toastType string, message string) {
	t := toast{Message: message, Type: toastType}

	trigger, err := mergeTrigger(e.Response.Header().Get("HX-Trigger"), t)
	if err != nil {
		zap.L().Warn("toast: encode HX-Trigger", zap.String("message", message), zap.Error(err))
		return
	}
	e.Response.Header().Set("HX-Trigger", trigger)

	if raw, err := json.Marshal(t); err == nil {
		http.SetCookie(e.Response, &http.Cookie{
			Name:     flashCookie,
			Value:    url.QueryEscape(string(raw)),
			Path:     "/",
			MaxAge:   10,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// mergeTrigger adds the showToast event to an existing HX-Trigger value. A
// value that is not a JSON object is replaced.
func mergeTrigger(existing string, t toast) (string, error) {
	events := map[string]any{}
	if existing != "" {
		if err := json.Unmarshal([]byte(existing), &events); err != nil || events == nil {
			zap.L().Warn("toast: replacing non-JSON HX-Trigger", zap.String("existing", existing))
			events = map[string]any{}
		}
	}
	events["showToast"] = t
	data, err := json.Marshal(events)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ErrorToast answers with status and message, raises an error toast and sets
// HX-Reswap: none so HTMX leaves the page untouched.
func ErrorToast(e *core.RequestEvent, statusCode int, message string) error {
	SetToast(e, ToastError, message)
	e.Response.Header().Set("HX-Reswap", "none")
	return e.String(statusCode, message)
}
