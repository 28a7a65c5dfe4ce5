package boot

import (
	"encoding/json"
	"lms/src/types"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMailerMessageReadsQueueEnvelope(t *testing.T) {
	// Same envelope shape the mailer producer puts on the queue.
	envelope := types.JSONB{
		"from":      "payments@example.com",
		"from-name": "Course Payments",
		"to":        []string{"student@example.com"},
		"reply-to":  "",
		"body":      "We received your payment of 49.99 USD.",
		"html":      false,
		"subject":   "Payment received",
	}
	raw, err := json.Marshal(&envelope)
	assert.NoError(t, err)

	input, err := parseMailerMessage(string(raw))
	assert.NoError(t, err)
	assert.Equal(t, "payments@example.com", input.From)
	assert.Equal(t, "Course Payments", input.FromName)
	assert.Equal(t, []string{"student@example.com"}, input.To)
	assert.Equal(t, "Payment received", input.Subject)
	assert.False(t, input.Html)
}

func TestParseMailerMessageRejectsBadBodies(t *testing.T) {
	_, err := parseMailerMessage("not json")
	assert.Error(t, err)

	_, err = parseMailerMessage(`{"from":"payments@example.com","to":[]}`)
	assert.Error(t, err)
}
