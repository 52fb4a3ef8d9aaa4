package carrier

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"marketplace/internal/domain"
)

// TrackingInfo is the carrier-reported state of a shipment. Status is the
// carrier's own vocabulary, mapped onto ShipmentStatus by the shipping
// handler.
type TrackingInfo struct {
	Status   string `json:"status"`
	Location string `json:"location"`
}

// Client is the narrow carrier integration surface. Label formats and
// request signing are the implementation's concern, not the pipeline's.
type Client interface {
	CreateShipment(ctx context.Context, order *domain.Order) (string, error)
	CreateLabel(ctx context.Context, shipment *domain.Shipment) (string, error)
	FetchTracking(ctx context.Context, trackingNumber string) (*TrackingInfo, error)
}

const trackingAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewTrackingNumber builds a carrier tracking number: carrier prefix,
// timestamp, six-character random suffix (e.g. AR20250114153012X7K2QD).
func NewTrackingNumber(prefix string) string {
	suffix := make([]byte, 6)
	max := big.NewInt(int64(len(trackingAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the platform source is broken;
			// fall back to a time-derived index rather than abort shipping.
			suffix[i] = trackingAlphabet[time.Now().UnixNano()%int64(len(trackingAlphabet))]
			continue
		}
		suffix[i] = trackingAlphabet[n.Int64()]
	}
	return fmt.Sprintf("%s%s%s", prefix, time.Now().Format("20060102150405"), suffix)
}
