package domain

import "encoding/json"

// Event payload shapes shared between the emitter's producers (business
// code, webhook endpoint) and the queue handlers.

type OrderEventPayload struct {
	OrderID        string  `json:"order_id"`
	BuyerID        string  `json:"buyer_id"`
	SellerID       string  `json:"seller_id"`
	BuyerEmail     string  `json:"buyer_email,omitempty"`
	SellerEmail    string  `json:"seller_email,omitempty"`
	Title          string  `json:"title"`
	Amount         float64 `json:"amount"`
	TrackingNumber string  `json:"tracking_number,omitempty"`
}

type OfferEventPayload struct {
	OfferID     string  `json:"offer_id"`
	ListingID   string  `json:"listing_id"`
	BuyerID     string  `json:"buyer_id"`
	SellerID    string  `json:"seller_id"`
	BuyerEmail  string  `json:"buyer_email,omitempty"`
	SellerEmail string  `json:"seller_email,omitempty"`
	Amount      float64 `json:"amount"`
}

// PaymentWebhookPayload carries an inbound gateway callback. The raw body
// is kept opaque for audit.
type PaymentWebhookPayload struct {
	ProviderPaymentID string          `json:"provider_payment_id,omitempty"`
	ConversationID    string          `json:"conversation_id,omitempty"`
	Status            string          `json:"status"`
	Raw               json.RawMessage `json:"raw,omitempty"`
}

// ShippingWebhookPayload carries an inbound carrier callback.
type ShippingWebhookPayload struct {
	TrackingNumber string          `json:"tracking_number"`
	CarrierStatus  string          `json:"carrier_status"`
	Location       string          `json:"location,omitempty"`
	Raw            json.RawMessage `json:"raw,omitempty"`
}

type ImageUploadedPayload struct {
	ListingID string `json:"listing_id"`
	ImageKey  string `json:"image_key"`
}
