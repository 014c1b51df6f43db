package authcore

import (
	"io"

	"github.com/premisave/authcore/internal/audit"
)

// Audit types are aliased from the internal dispatcher so host applications
// can implement sinks without reaching into internal packages.
type (
	AuditEvent       = audit.Event
	AuditSink        = audit.Sink
	NoOpAuditSink    = audit.NoOpSink
	ChannelAuditSink = audit.ChannelSink
	JSONAuditSink    = audit.JSONWriterSink
)

// Audit event type names, as they appear in AuditEvent.EventType.
const (
	AuditSignup          = audit.TypeSignup
	AuditSignin          = audit.TypeSignin
	AuditRefresh         = audit.TypeRefresh
	AuditVerify          = audit.TypeVerify
	AuditResendActivate  = audit.TypeResendActivate
	AuditResetRequested  = audit.TypeResetRequested
	AuditResetConfirmed  = audit.TypeResetConfirmed
	AuditPasswordChanged = audit.TypePasswordChanged
	AuditRateLimited     = audit.TypeRateLimited
)

// NewChannelAuditSink returns a sink that hands events to a consumer channel.
func NewChannelAuditSink(buffer int) *ChannelAuditSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONAuditSink returns a sink writing one JSON object per line to w.
func NewJSONAuditSink(w io.Writer) *JSONAuditSink {
	return audit.NewJSONWriterSink(w)
}
