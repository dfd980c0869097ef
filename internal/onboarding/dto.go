package onboarding

// StartRequest starts a verification run.
type StartRequest struct {
	Phone  string `json:"phone" validate:"required,phone,max=20"`
	Locale string `json:"locale" validate:"locale"`
}

// RestartRequest restarts a finished run, optionally with another number.
type RestartRequest struct {
	Phone string `json:"phone" validate:"omitempty,phone,max=20"`
}

// RejectionResponse is returned when the number fails the precheck.
type RejectionResponse struct {
	Error string   `json:"error"`
	Run   Snapshot `json:"run"`
}
