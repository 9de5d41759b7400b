package harness

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq     int64          `json:"seq"`
	Action  string         `json:"action"`
	Args    map[string]any `json:"args,omitempty"`
	Outcome string         `json:"outcome"` // "ok" or an error code
	Result  map[string]any `json:"result,omitempty"`
	Pending int            `json:"pending"`
	Network string         `json:"network"`
}

// OutcomeOK is the outcome of a step that returned no error.
const OutcomeOK = "ok"

// RemoteCall is a mutation the back-office accepted.
type RemoteCall struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every step in order.
	Trace []TraceEvent `json:"trace"`

	// RemoteCalls are the mutations the back-office applied, in order.
	RemoteCalls []RemoteCall `json:"remote_calls"`

	// Notifications are the user-visible sync messages, in order.
	Notifications []string `json:"notifications"`

	// Pending is the queue depth after the last step.
	Pending int `json:"pending"`

	// Errors contains validation error messages.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:          true,
		Trace:         []TraceEvent{},
		RemoteCalls:   []RemoteCall{},
		Notifications: []string{},
		Errors:        []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step to the trace.
func (r *Result) AddTrace(ev TraceEvent) {
	ev.Seq = int64(len(r.Trace) + 1)
	r.Trace = append(r.Trace, ev)
}
