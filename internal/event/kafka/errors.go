package kafka

import "fmt"

// ParseError сообщение не удалось разобрать; такие сообщения не ретраятся и сразу уходят в DLQ
type ParseError struct {
	Field   string
	Message string
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
