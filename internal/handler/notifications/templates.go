package notifications

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"text/template"
)

// emailTemplate is one renderable message: subject and body templates fed
// with the event's data bag.
type emailTemplate struct {
	subject string
	text    string
	html    string
}

// Templates are keyed by the email job type. An unknown key falls back to
// the generic template so a bad key delays nothing.
var emailTemplates = map[string]emailTemplate{
	"order-confirmation": {
		subject: "We received your order{{if .title}} for {{.title}}{{end}}",
		text:    "Thanks for your order ({{.order_id}}). We'll let you know as soon as the seller ships it.",
		html:    "<p>Thanks for your order (<strong>{{.order_id}}</strong>).</p><p>We'll let you know as soon as the seller ships it.</p>",
	},
	"payment-received": {
		subject: "Payment received for your order",
		text:    "Your payment of {{printf \"%.2f\" .amount}} for order {{.order_id}} was received. The seller is preparing your shipment.",
		html:    "<p>Your payment of <strong>{{printf \"%.2f\" .amount}}</strong> for order <strong>{{.order_id}}</strong> was received.</p><p>The seller is preparing your shipment.</p>",
	},
	"order-shipped": {
		subject: "Your order is on its way",
		text:    "Order {{.order_id}} has shipped. Track it with {{.tracking_number}}.",
		html:    "<p>Order <strong>{{.order_id}}</strong> has shipped.</p><p>Tracking number: <strong>{{.tracking_number}}</strong></p>",
	},
	"order-delivered": {
		subject: "Your order was delivered",
		text:    "Order {{.order_id}} was delivered. Enjoy your find!",
		html:    "<p>Order <strong>{{.order_id}}</strong> was delivered. Enjoy your find!</p>",
	},
	"offer-received": {
		subject: "You received an offer",
		text:    "A buyer offered {{printf \"%.2f\" .amount}} on your listing {{.listing_id}}.",
		html:    "<p>A buyer offered <strong>{{printf \"%.2f\" .amount}}</strong> on your listing <strong>{{.listing_id}}</strong>.</p>",
	},
	"offer-accepted": {
		subject: "Your offer was accepted",
		text:    "The seller accepted your offer of {{printf \"%.2f\" .amount}}. Complete the checkout to secure it.",
		html:    "<p>The seller accepted your offer of <strong>{{printf \"%.2f\" .amount}}</strong>.</p><p>Complete the checkout to secure it.</p>",
	},
}

var fallbackTemplate = emailTemplate{
	subject: "Update on your marketplace activity",
	text:    "There is news on your marketplace activity. Open the app for details.",
	html:    "<p>There is news on your marketplace activity. Open the app for details.</p>",
}

// renderEmail renders the template for key with the given data bag,
// falling back to the generic template when the key is unknown or a
// template fails to execute: a malformed key must never block delivery of
// some message.
func renderEmail(key string, data map[string]interface{}) (subject, text, html string) {
	tmpl, ok := emailTemplates[key]
	if !ok {
		tmpl = fallbackTemplate
	}

	subject, err := renderText(tmpl.subject, data)
	if err != nil {
		subject, _ = renderText(fallbackTemplate.subject, data)
	}
	text, err = renderText(tmpl.text, data)
	if err != nil {
		text, _ = renderText(fallbackTemplate.text, data)
	}
	html, err = renderHTML(tmpl.html, data)
	if err != nil {
		html, _ = renderHTML(fallbackTemplate.html, data)
	}
	return subject, text, html
}

func renderText(tmpl string, data map[string]interface{}) (string, error) {
	t, err := template.New("email").Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}

func renderHTML(tmpl string, data map[string]interface{}) (string, error) {
	t, err := htmltemplate.New("email").Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}
