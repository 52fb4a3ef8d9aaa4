package domain

import "errors"

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrShipmentNotFound = errors.New("shipment not found")
	ErrNoDeviceToken    = errors.New("no device token registered")
)
