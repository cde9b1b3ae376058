package audit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/laitim2001/itsm-intent-router/pkg/config"
)

func TestTruncateRuneSafe(t *testing.T) {
	l := NewLogger(config.AuditConfig{TruncateInputAt: 5})

	assert.Equal(t, "short", l.truncate("short"))
	assert.Equal(t, "abcde...", l.truncate("abcdefgh"))
	// Truncation must cut on rune boundaries, not bytes.
	assert.Equal(t, "資料庫掛掉...", l.truncate("資料庫掛掉了連不上"))
}

func TestTruncateDisabled(t *testing.T) {
	l := NewLogger(config.AuditConfig{TruncateInputAt: 0})
	long := strings.Repeat("x", 10000)
	assert.Equal(t, long, l.truncate(long))
}

func TestRecordDoesNotPanicOnMinimalEntry(t *testing.T) {
	l := NewLogger(config.AuditConfig{TruncateInputAt: 200})
	assert.NotPanics(t, func() {
		l.Record(Entry{CorrelationID: "c1", EventType: EventDecision})
		l.RecordEscalation("c1", "pattern", "semantic", "below threshold")
		l.RecordError("c1", "gateway", assert.AnError)
		l.RecordPatternMatch("c1", "etl-failure", "(?i)etl.*fail", 0.93)
		l.RecordApprovalRequested("c1", nil, "single")
	})
}
