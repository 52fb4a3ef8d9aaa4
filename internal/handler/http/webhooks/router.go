package webhooks_http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go.uber.org/zap"
)

func RegisterRoutes(r chi.Router, e Emitter, l *zap.Logger) {
	handler := NewWebhookHandler(e, l.With(zap.String("component", "WebhookHTTPHandler")))

	r.Route("/health", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("Webhook service is healthy!"))
		})
	})

	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/payment", handler.PaymentWebhookHandler)
		r.Post("/shipping", handler.ShippingWebhookHandler)
	})
}
