package transport

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedTopic indicates a topic that does not match the device topic
// scheme.
var ErrMalformedTopic = errors.New("malformed topic")

// Topic scheme, rooted at devices/<deviceID>.
func telemetryTopic(deviceID string) string {
	return fmt.Sprintf("devices/%s/telemetry", deviceID)
}

func reportedTopic(deviceID string) string {
	return fmt.Sprintf("devices/%s/properties/reported", deviceID)
}

func desiredTopic(deviceID string) string {
	return fmt.Sprintf("devices/%s/properties/desired", deviceID)
}

func commandRequestFilter(deviceID string) string {
	return fmt.Sprintf("devices/%s/commands/request/+", deviceID)
}

func commandResponseTopic(deviceID, requestID string) string {
	return fmt.Sprintf("devices/%s/commands/response/%s", deviceID, requestID)
}

// requestIDFromTopic extracts the request ID from an inbound command
// request topic: devices/<deviceID>/commands/request/<requestID>.
func requestIDFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 5 || parts[0] != "devices" || parts[2] != "commands" || parts[3] != "request" {
		return "", fmt.Errorf("%w: %q", ErrMalformedTopic, topic)
	}
	if parts[4] == "" {
		return "", fmt.Errorf("%w: empty request ID in %q", ErrMalformedTopic, topic)
	}
	return parts[4], nil
}
