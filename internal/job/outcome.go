package job

// OutcomeStatus classifies a single delivery attempt.
type OutcomeStatus string

const (
	// OutcomeSuccess means the transport accepted the message.
	OutcomeSuccess OutcomeStatus = "success"
	// OutcomeFailed means the transport reported it did not send.
	OutcomeFailed OutcomeStatus = "failed"
	// OutcomeError means an error occurred while attempting delivery.
	OutcomeError OutcomeStatus = "error"
	// OutcomeCompleted is the top-level status of every bulk outcome.
	OutcomeCompleted OutcomeStatus = "completed"
)

// Details identifies what a delivery attempt was about.
type Details struct {
	To         string `json:"to"`
	Subject    string `json:"subject"`
	Attachment string `json:"attachment,omitempty"`
	Template   string `json:"template,omitempty"`
}

// Outcome is the result record of a single, templated or attachment job, and
// of each recipient inside a bulk job.
type Outcome struct {
	Status  OutcomeStatus `json:"status"`
	Message string        `json:"message"`
	Details Details       `json:"details"`
}

// Succeeded reports whether the outcome is a successful delivery.
func (o Outcome) Succeeded() bool {
	return o.Status == OutcomeSuccess
}

// Summary tallies a bulk job. Total always equals Success + Failed.
type Summary struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// BulkOutcome aggregates per-recipient outcomes in input order.
type BulkOutcome struct {
	Status  OutcomeStatus `json:"status"`
	Summary Summary       `json:"summary"`
	Results []Outcome     `json:"results"`
}

// NewBulkOutcome returns an empty completed bulk outcome sized for n recipients.
func NewBulkOutcome(n int) *BulkOutcome {
	return &BulkOutcome{
		Status:  OutcomeCompleted,
		Results: make([]Outcome, 0, n),
	}
}

// Add appends one recipient's outcome and updates the tally. Anything other
// than success counts as failed.
func (b *BulkOutcome) Add(o Outcome) {
	b.Results = append(b.Results, o)
	b.Summary.Total++
	if o.Succeeded() {
		b.Summary.Success++
	} else {
		b.Summary.Failed++
	}
}
