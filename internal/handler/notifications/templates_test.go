package notifications

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderEmail_KnownKey(t *testing.T) {
	subject, text, html := renderEmail("order-shipped", map[string]interface{}{
		"order_id":        "ord-1",
		"tracking_number": "AR20250114153012X7K2QD",
	})

	assert.Equal(t, "Your order is on its way", subject)
	assert.Contains(t, text, "ord-1")
	assert.Contains(t, text, "AR20250114153012X7K2QD")
	assert.Contains(t, html, "<strong>ord-1</strong>")
}

func TestRenderEmail_AmountIsFormatted(t *testing.T) {
	_, text, _ := renderEmail("payment-received", map[string]interface{}{
		"order_id": "ord-1",
		"amount":   120.5,
	})
	assert.Contains(t, text, "120.50")
}

func TestRenderEmail_UnknownKeyFallsBack(t *testing.T) {
	subject, text, html := renderEmail("job-type-nobody-wrote", map[string]interface{}{})

	assert.Equal(t, fallbackTemplate.subject, subject)
	assert.Equal(t, fallbackTemplate.text, text)
	assert.Equal(t, fallbackTemplate.html, html)
}

func TestRenderEmail_ConditionalTitle(t *testing.T) {
	withTitle, _, _ := renderEmail("order-confirmation", map[string]interface{}{
		"order_id": "ord-1",
		"title":    "1:18 GT40",
	})
	assert.Contains(t, withTitle, "1:18 GT40")

	withoutTitle, _, _ := renderEmail("order-confirmation", map[string]interface{}{
		"order_id": "ord-1",
	})
	assert.Equal(t, "We received your order", withoutTitle)
}

func TestRenderEmail_EveryEmailJobTypeHasATemplate(t *testing.T) {
	for jobType := range emailRecipientField {
		_, ok := emailTemplates[jobType]
		assert.True(t, ok, "missing template for %s", jobType)
	}
}
