package audit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"sigepic.org/internal/auth"
	"sigepic.org/internal/ids"
	"sigepic.org/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// requestIDFromContext extracts the audit request id from context if present.
func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Recorder persists authentication events into the auditoria trail and mirrors
// each one as a JSON log line. It implements auth.Recorder.
type Recorder struct {
	store auth.Store
	now   func() time.Time
}

var _ auth.Recorder = (*Recorder)(nil)

// NewRecorder builds a Recorder writing through store. A nil store records to
// the log only.
func NewRecorder(store auth.Store) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// Record appends the event to the audit trail. Persistence failures are logged
// and swallowed: a broken trail must not fail the login path.
func (r *Recorder) Record(ctx context.Context, event auth.AuditEvent) {
	ts := event.Timestamp
	if ts.IsZero() {
		ts = r.now().UTC()
	}

	if r.store != nil {
		entry := &auth.AuditEntry{
			ID:        ids.New(),
			AccountID: event.AccountID,
			Username:  event.Username,
			Action:    event.Type,
			Table:     "usuarios",
			IP:        event.IP,
			UserAgent: event.UserAgent,
			Timestamp: ts,
		}
		if event.Detail != "" {
			entry.Metadata = map[string]any{"detalle": event.Detail}
		}
		if err := r.store.Audit(ctx).Append(ctx, entry); err != nil {
			obs.LogRequest(map[string]any{
				"ts":    ts.Format(time.RFC3339Nano),
				"level": "error",
				"msg":   "audit append failed",
				"error": err.Error(),
			})
		}
	}

	r.logEvent(ctx, event, ts)
}

func (r *Recorder) logEvent(ctx context.Context, event auth.AuditEvent, ts time.Time) {
	line := map[string]any{
		"ts":    ts.Format(time.RFC3339Nano),
		"type":  "audit",
		"event": event.Type,
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		line["request_id"] = rid
	}
	if event.AccountID != "" {
		line["usuario_id"] = event.AccountID
	}
	if event.Username != "" {
		line["username"] = event.Username
	}
	if event.IP != "" {
		line["ip"] = event.IP
	}
	if event.Detail != "" {
		line["detalle"] = event.Detail
	}

	data, err := json.Marshal(line)
	if err != nil {
		return
	}
	obs.Logger().Println(string(data))
}
