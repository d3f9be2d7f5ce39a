package engine

// ServiceError is a failure reported by the reasoning service. Message is
// the service's own text and is shown to the client as-is.
type ServiceError struct {
	Service    string
	StatusCode int
	Message    string
	Cause      error
}

func (e *ServiceError) Error() string {
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}
