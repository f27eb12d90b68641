package logging

import (
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// AuditEventType names an auditable pipeline event.
type AuditEventType string

const (
	AuditRunStart            AuditEventType = "run_start"
	AuditRunComplete         AuditEventType = "run_complete"
	AuditRunError            AuditEventType = "run_error"
	AuditItemUnschedulable   AuditEventType = "item_unschedulable"
	AuditFollowupDropped     AuditEventType = "followup_dropped"
	AuditGateFailed          AuditEventType = "gate_failed"
	AuditCertificateIssued   AuditEventType = "certificate_issued"
	AuditCertificateStored   AuditEventType = "certificate_stored"
	AuditCertificateRejected AuditEventType = "certificate_stale"
)

// AuditEvent is one structured audit entry.
type AuditEvent struct {
	EventType  AuditEventType
	CreatorID  string
	WeekStart  string
	Target     string
	Success    bool
	DurationMs int64
	Error      string
	Message    string
	Fields     map[string]interface{}
}

// AuditLogger writes audit events under the audit category, scoped to one
// creator run.
type AuditLogger struct {
	creatorID string
	weekStart string
}

// AuditFor returns an audit logger scoped to a creator week.
func AuditFor(creatorID, weekStart string) *AuditLogger {
	return &AuditLogger{creatorID: creatorID, weekStart: weekStart}
}

// Log writes a fully specified event.
func (a *AuditLogger) Log(ev AuditEvent) {
	if !IsCategoryEnabled(CategoryAudit) {
		return
	}
	if ev.CreatorID == "" {
		ev.CreatorID = a.creatorID
	}
	if ev.WeekStart == "" {
		ev.WeekStart = a.weekStart
	}

	fields := []zap.Field{
		zap.String("event", string(ev.EventType)),
		zap.String("creator_id", ev.CreatorID),
		zap.String("week_start", ev.WeekStart),
		zap.Bool("success", ev.Success),
	}
	if ev.Target != "" {
		fields = append(fields, zap.String("target", ev.Target))
	}
	if ev.DurationMs > 0 {
		fields = append(fields, zap.Int64("dur_ms", ev.DurationMs))
	}
	if ev.Error != "" {
		fields = append(fields, zap.String("error", ev.Error))
	}
	if len(ev.Fields) > 0 {
		fields = append(fields, zap.Any("fields", ev.Fields))
	}

	mu.RLock()
	l := base.Named(string(CategoryAudit))
	mu.RUnlock()
	if ev.Success {
		l.Info(ev.Message, fields...)
	} else {
		l.Warn(ev.Message, fields...)
	}
}

// RunStart records the beginning of a generation run.
func (a *AuditLogger) RunStart(seed int64) {
	a.Log(AuditEvent{EventType: AuditRunStart, Success: true, Message: "schedule run started", Fields: map[string]interface{}{"seed": seed}})
}

// RunComplete records a finished run.
func (a *AuditLogger) RunComplete(items, followups int, elapsed time.Duration) {
	a.Log(AuditEvent{
		EventType:  AuditRunComplete,
		Success:    true,
		DurationMs: elapsed.Milliseconds(),
		Message:    "schedule run complete",
		Fields:     map[string]interface{}{"items": items, "followups": followups},
	})
}

// RunError records a run that stopped with an error.
func (a *AuditLogger) RunError(stage string, err error) {
	a.Log(AuditEvent{EventType: AuditRunError, Target: stage, Error: err.Error(), Message: "schedule run failed"})
}

// Unschedulable records an item the timing engine dropped.
func (a *AuditLogger) Unschedulable(sendType, date, reason string) {
	a.Log(AuditEvent{EventType: AuditItemUnschedulable, Target: sendType, Error: reason, Message: "item dropped", Fields: map[string]interface{}{"date": date}})
}

// FollowupDropped records a skipped followup.
func (a *AuditLogger) FollowupDropped(parentIndex int, reason string) {
	a.Log(AuditEvent{EventType: AuditFollowupDropped, Target: reason, Message: "followup dropped", Fields: map[string]interface{}{"parent_index": parentIndex}})
}

// GateFailed records a hard-gate rejection.
func (a *AuditLogger) GateFailed(gate string, violations int) {
	a.Log(AuditEvent{EventType: AuditGateFailed, Target: gate, Message: "hard gate failed", Fields: map[string]interface{}{"violations": violations}})
}

// CertificateIssued records a new certificate.
func (a *AuditLogger) CertificateIssued(certID, status string, score float64) {
	a.Log(AuditEvent{EventType: AuditCertificateIssued, Target: certID, Success: true, Message: "certificate issued", Fields: map[string]interface{}{"status": status, "score": score}})
}

// CertificateStored records a persisted certificate.
func (a *AuditLogger) CertificateStored(certID string) {
	a.Log(AuditEvent{EventType: AuditCertificateStored, Target: certID, Success: true, Message: "certificate persisted"})
}

// CertificateStale records a certificate refused for staleness.
func (a *AuditLogger) CertificateStale(certID string, age time.Duration) {
	a.Log(AuditEvent{EventType: AuditCertificateRejected, Target: certID, Message: "certificate stale", Fields: map[string]interface{}{"age": age.String()}})
}
