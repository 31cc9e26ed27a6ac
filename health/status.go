package health

// Health states.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Status is the outcome of one check, or of several combined.
type Status struct {
	// Name identifies the check, e.g. "generator".
	Name string `json:"name,omitempty"`

	// Status is one of the health state constants.
	Status string `json:"status"`

	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func (s Status) IsHealthy() bool {
	return s.Status == StatusHealthy
}

func (s Status) IsDegraded() bool {
	return s.Status == StatusDegraded
}

func (s Status) IsUnhealthy() bool {
	return s.Status == StatusUnhealthy
}

func healthy(name, message string) Status {
	return Status{Name: name, Status: StatusHealthy, Message: message}
}

func degraded(name, message string, details map[string]any) Status {
	return Status{Name: name, Status: StatusDegraded, Message: message, Details: details}
}

func unhealthy(name, message string, details map[string]any) Status {
	return Status{Name: name, Status: StatusUnhealthy, Message: message, Details: details}
}
