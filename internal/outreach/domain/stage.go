package domain

// Funnel stages a lead moves through. Stored as plain strings in the CRM
// tables; unknown values are treated as non-actionable.
const (
	StageNew         = "new"
	StageQualified   = "qualified"
	StageQuoteSent   = "quote_sent"
	StageNegotiation = "negotiation"
	StageWon         = "won"
	StageLost        = "lost"
)

var knownStages = map[string]struct{}{
	StageNew:         {},
	StageQualified:   {},
	StageQuoteSent:   {},
	StageNegotiation: {},
	StageWon:         {},
	StageLost:        {},
}

// IsKnownStage reports whether the stage is one of the funnel stages.
func IsKnownStage(stage string) bool {
	_, ok := knownStages[stage]
	return ok
}

// IsClosedStage reports whether the stage excludes a lead from all outreach.
func IsClosedStage(stage string) bool {
	return stage == StageWon || stage == StageLost
}
