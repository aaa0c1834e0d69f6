package domain

import "time"

// StepRule maps one follow-up step to its sequence type and the delay from
// the step's base timestamp (lead updated_at for lead-driven steps, payment
// created_at for payment-driven steps).
type StepRule struct {
	Step  string
	Type  OpportunityType
	Delay time.Duration
}

// Step identifiers. Steps of the same type form a linear drip sequence
// ordered by delay.
const (
	StepQuoteFollowup1   = "quote_followup_1"
	StepQuoteFollowup2   = "quote_followup_2"
	StepQuoteFollowup3   = "quote_followup_3"
	StepReengage1        = "reengage_1"
	StepPaymentReminder1 = "payment_reminder_1"
	StepPaymentReminder2 = "payment_reminder_2"
	StepPaymentReminder3 = "payment_reminder_3"
)

var quoteFollowupSteps = []StepRule{
	{Step: StepQuoteFollowup1, Type: TypeQuoteFollowup, Delay: 2 * time.Hour},
	{Step: StepQuoteFollowup2, Type: TypeQuoteFollowup, Delay: 24 * time.Hour},
	{Step: StepQuoteFollowup3, Type: TypeQuoteFollowup, Delay: 72 * time.Hour},
}

var reengagementSteps = []StepRule{
	{Step: StepReengage1, Type: TypeReengagement, Delay: 168 * time.Hour},
}

var paymentReminderSteps = []StepRule{
	{Step: StepPaymentReminder1, Type: TypePaymentReminder, Delay: 30 * time.Minute},
	{Step: StepPaymentReminder2, Type: TypePaymentReminder, Delay: 6 * time.Hour},
	{Step: StepPaymentReminder3, Type: TypePaymentReminder, Delay: 24 * time.Hour},
}

// StepsForStage returns the lead-driven step rules for a funnel stage.
// Closed stages and stages without a sequence return nil.
func StepsForStage(stage string) []StepRule {
	switch stage {
	case StageQuoteSent:
		return quoteFollowupSteps
	case StageQualified:
		return reengagementSteps
	default:
		return nil
	}
}

// PaymentReminderSteps returns the payment-driven step rules.
func PaymentReminderSteps() []StepRule {
	return paymentReminderSteps
}

// AllSteps returns every step rule across all sequences. Used to validate
// the step -> template configuration at startup.
func AllSteps() []StepRule {
	all := make([]StepRule, 0, len(quoteFollowupSteps)+len(reengagementSteps)+len(paymentReminderSteps))
	all = append(all, quoteFollowupSteps...)
	all = append(all, reengagementSteps...)
	all = append(all, paymentReminderSteps...)
	return all
}
