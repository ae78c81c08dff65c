// Package audit emits structured audit entries for identity mutations and
// authorization decisions.
package audit

import (
	"context"
	"log/slog"
)

// Enabled controls whether audit log entries are emitted. Tests that don't
// exercise auditing can set it to false.
var Enabled = true

// Event is one audit entry. Zero-value fields are left out of the output.
type Event struct {
	Actor       string // uid of the caller, or "anonymous"
	Action      string // operation id, e.g. "deleteUser", "deleteReview"
	Status      string // "granted", "denied", "failed", "succeeded"
	Resource    string // e.g. "users/<uid>", "movies/<id>/reviews/<id>"
	Owner       string // owning uid of the resource, when it differs from Actor
	Method      string
	HTTPStatus  int
	Reason      string // error kind or denial explanation
	IP          string
	Fingerprint string // credential fingerprint, never the credential itself
	Extra       []any
}

// Info emits the event at INFO level.
func (e Event) Info(msg string) {
	e.log(slog.LevelInfo, msg)
}

// Warn emits the event at WARN level.
func (e Event) Warn(msg string) {
	e.log(slog.LevelWarn, msg)
}

func (e Event) log(level slog.Level, msg string) {
	if !Enabled {
		return
	}
	slog.Default().Log(context.Background(), level, msg, slog.Group("audit", e.attrs()...)) //nolint:gosec // structured logger safely escapes taint
}

func (e Event) attrs() []any {
	var attrs []any
	str := func(key, v string) {
		if v != "" {
			attrs = append(attrs, slog.String(key, v))
		}
	}
	str("actor", e.Actor)
	str("action", e.Action)
	str("status", e.Status)
	str("resource", e.Resource)
	str("owner", e.Owner)
	str("method", e.Method)
	if e.HTTPStatus != 0 {
		attrs = append(attrs, slog.Int("http_status", e.HTTPStatus))
	}
	str("reason", e.Reason)
	str("ip_address", e.IP)
	str("credential_fingerprint", e.Fingerprint)
	attrs = append(attrs, e.Extra...)
	return attrs
}
