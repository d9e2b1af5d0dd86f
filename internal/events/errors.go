package events

// RequestError is a server-reported request failure: the acknowledgment
// arrived with success set to false. Local state is left unchanged and the
// caller may retry.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string {
	if e.Message == "" {
		return "request rejected by server"
	}
	return e.Message
}

// Err converts a failed Ack into a RequestError, or nil on success.
func (a Ack) Err() error {
	if a.Success {
		return nil
	}
	return &RequestError{Message: a.Message}
}
