package kafka

import (
	"strconv"

	"github.com/segmentio/kafka-go"
)

const (
	headerAttempt   = "x-attempt"
	headerRequestID = "x-request-id"
	headerError     = "x-error"
)

// attemptFromHeaders returns the delivery attempt recorded on a message, 1 when absent.
func attemptFromHeaders(headers []kafka.Header) int {
	for _, h := range headers {
		if h.Key != headerAttempt {
			continue
		}
		if n, err := strconv.Atoi(string(h.Value)); err == nil && n > 0 {
			return n
		}
	}
	return 1
}

// setHeader returns a copy of headers with key set to value.
func setHeader(headers []kafka.Header, key, value string) []kafka.Header {
	out := make([]kafka.Header, 0, len(headers)+1)
	for _, h := range headers {
		if h.Key != key {
			out = append(out, h)
		}
	}
	return append(out, kafka.Header{Key: key, Value: []byte(value)})
}
