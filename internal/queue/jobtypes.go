package queue

// Job type keys, part of the stable job contract between the emitter and
// the per-queue handlers.
const (
	// email queue
	TypeOrderConfirmationEmail = "order-confirmation"
	TypePaymentReceivedEmail   = "payment-received"
	TypeOrderShippedEmail      = "order-shipped"
	TypeOrderDeliveredEmail    = "order-delivered"
	TypeOfferReceivedEmail     = "offer-received"
	TypeOfferAcceptedEmail     = "offer-accepted"

	// push queue
	TypeOrderPaidPush      = "order-paid"
	TypeOrderShippedPush   = "order-shipped"
	TypeOrderDeliveredPush = "order-delivered"
	TypeOfferReceivedPush  = "offer-received"
	TypeOfferAcceptedPush  = "offer-accepted"

	// shipping queue
	TypeCreateShipment = "create-shipment"
	TypeTrackUpdate    = "track-update"
	TypeGenerateLabel  = "generate-label"

	// payment queue
	TypeReconcilePayment = "reconcile"
	TypeReleaseEscrow    = "release-escrow"
	TypeRefundPayment    = "refund"

	// search queue
	TypeIndexOrder  = "index-order"
	TypeUpdateOrder = "update-order"
	TypeDeleteOrder = "delete-order"

	// analytics queue
	TypeRecordEvent = "record"

	// image queue
	TypeProcessImage = "process-image"
)
