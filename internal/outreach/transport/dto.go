// Package transport defines the HTTP request/response shapes for the
// outreach module.
package transport

import (
	"encoding/json"
	"time"

	"outreach_backend/internal/outreach/repository"
	"outreach_backend/internal/outreach/service"
)

// RunResponse reports the outcome of a manually started run.
type RunResponse struct {
	OK        bool `json:"ok"`
	Processed int  `json:"processed"`
	Sent      int  `json:"sent"`
	Skipped   int  `json:"skipped"`
	Failed    int  `json:"failed"`
}

// NewRunResponse maps a run result onto the wire shape.
func NewRunResponse(r service.RunResult) RunResponse {
	return RunResponse{
		OK:        r.OK,
		Processed: r.Processed,
		Sent:      r.Sent,
		Skipped:   r.Skipped,
		Failed:    r.Failed,
	}
}

// TriggerRequest is the optional body of a manual single-lead trigger,
// recording why an operator forced the dispatch.
type TriggerRequest struct {
	Cause string `json:"cause" validate:"omitempty,max=200"`
}

// TriggerResponse reports the outcome of a manual single-lead trigger.
type TriggerResponse struct {
	Result string `json:"result"`
	Cause  string `json:"cause,omitempty"`
}

// LogEntryResponse is one outreach ledger entry in the dashboard feed.
type LogEntryResponse struct {
	ID         int64     `json:"id"`
	DedupKey   string    `json:"dedupKey"`
	LeadID     string    `json:"leadId"`
	Event      string    `json:"event"`
	Type       string    `json:"type"`
	Step       string    `json:"step"`
	TemplateID string    `json:"templateId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewLogEntryResponses maps ledger entries onto the wire shape. Message
// bodies stay internal; the feed shows what happened, not what was written.
func NewLogEntryResponses(entries []repository.LogEntry) []LogEntryResponse {
	out := make([]LogEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, LogEntryResponse{
			ID:         e.ID,
			DedupKey:   e.DedupKey,
			LeadID:     e.LeadID.String(),
			Event:      string(e.Event),
			Type:       e.Type,
			Step:       e.Step,
			TemplateID: e.TemplateID,
			CreatedAt:  e.CreatedAt,
		})
	}
	return out
}

// FailureResponse is one open automation failure.
type FailureResponse struct {
	ID        string          `json:"id"`
	LeadID    string          `json:"leadId"`
	BookingID string          `json:"bookingId,omitempty"`
	Event     string          `json:"event"`
	Error     string          `json:"error"`
	Attempts  int             `json:"attempts"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// NewFailureResponses maps automation failures onto the wire shape.
func NewFailureResponses(failures []repository.AutomationFailure) []FailureResponse {
	out := make([]FailureResponse, 0, len(failures))
	for _, f := range failures {
		resp := FailureResponse{
			ID:        f.ID.String(),
			LeadID:    f.LeadID.String(),
			Event:     f.Event,
			Error:     f.Error,
			Attempts:  f.Attempts,
			Payload:   f.Payload,
			CreatedAt: f.CreatedAt,
			UpdatedAt: f.UpdatedAt,
		}
		if f.BookingID != nil {
			resp.BookingID = f.BookingID.String()
		}
		out = append(out, resp)
	}
	return out
}

// DashboardResponse is the operator dashboard projection.
type DashboardResponse struct {
	Upcoming []service.UpcomingItem `json:"upcoming"`
	Recent   []LogEntryResponse     `json:"recent"`
	Failures []FailureResponse      `json:"failures"`
	Summary  service.Summary        `json:"summary"`
}

// NewDashboardResponse maps the dashboard projection onto the wire shape.
func NewDashboardResponse(d service.Dashboard) DashboardResponse {
	return DashboardResponse{
		Upcoming: d.Upcoming,
		Recent:   NewLogEntryResponses(d.Recent),
		Failures: NewFailureResponses(d.Failures),
		Summary:  d.Summary,
	}
}
