package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskOutreachRun = "outreach.run"

const TaskOutreachLead = "outreach.lead"

type OutreachRunPayload struct {
	RunID string `json:"runId"`
}

// OutreachLeadPayload carries a manual trigger for one lead through the
// queue. Cause records who or what asked for it, for the worker log.
type OutreachLeadPayload struct {
	LeadID string `json:"leadId"`
	Cause  string `json:"cause,omitempty"`
}

func NewOutreachRunTask(payload OutreachRunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOutreachRun, data), nil
}

func ParseOutreachRunPayload(task *asynq.Task) (OutreachRunPayload, error) {
	var payload OutreachRunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return OutreachRunPayload{}, err
	}
	return payload, nil
}

func NewOutreachLeadTask(payload OutreachLeadPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOutreachLead, data), nil
}

func ParseOutreachLeadPayload(task *asynq.Task) (OutreachLeadPayload, error) {
	var payload OutreachLeadPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return OutreachLeadPayload{}, err
	}
	return payload, nil
}
