// Package brokererr defines the canonical error taxonomy every adapter
// maps its vendor's error codes into. It mirrors the exception hierarchy
// of the library this client was modeled on: one base shape carrying a
// retryable flag and the raw vendor error code, with typed leaves for
// each failure category so callers can errors.As to the kind they care
// about.
package brokererr

import "fmt"

// baseError is embedded by every concrete error kind below.
type baseError struct {
	Message    string
	BrokerCode string
	retryable  bool
}

func (e *baseError) Error() string {
	if e.BrokerCode != "" {
		return fmt.Sprintf("%s (broker code %s)", e.Message, e.BrokerCode)
	}
	return e.Message
}

// Retryable reports whether the caller may safely retry the request that
// produced this error. Only RateLimitError is retryable; every other kind
// defaults to false.
func (e *baseError) Retryable() bool { return e.retryable }

// AuthenticationError signals an invalid, expired, or revoked session.
type AuthenticationError struct{ baseError }

func NewAuthenticationError(msg, brokerCode string) *AuthenticationError {
	return &AuthenticationError{baseError{Message: msg, BrokerCode: brokerCode}}
}

// RateLimitError signals the vendor throttled the request; retryable.
type RateLimitError struct{ baseError }

func NewRateLimitError(msg, brokerCode string) *RateLimitError {
	return &RateLimitError{baseError{Message: msg, BrokerCode: brokerCode, retryable: true}}
}

// InsufficientFundsError signals the account lacks margin/cash for the order.
type InsufficientFundsError struct{ baseError }

func NewInsufficientFundsError(msg, brokerCode string) *InsufficientFundsError {
	return &InsufficientFundsError{baseError{Message: msg, BrokerCode: brokerCode}}
}

// InstrumentNotFoundError signals a canonical instrument has no resolvable
// broker token, or the vendor rejected a token as unknown.
type InstrumentNotFoundError struct{ baseError }

func NewInstrumentNotFoundError(msg, brokerCode string) *InstrumentNotFoundError {
	return &InstrumentNotFoundError{baseError{Message: msg, BrokerCode: brokerCode}}
}

// UnsupportedFeatureError signals a capability the requested broker, or its
// selected auth mode, does not offer.
type UnsupportedFeatureError struct{ baseError }

func NewUnsupportedFeatureError(msg string) *UnsupportedFeatureError {
	return &UnsupportedFeatureError{baseError{Message: msg}}
}

// OrderError is the base kind for order-lifecycle failures.
type OrderError struct{ baseError }

func NewOrderError(msg, brokerCode string) *OrderError {
	return &OrderError{baseError{Message: msg, BrokerCode: brokerCode}}
}

// InvalidOrderError signals the vendor rejected order parameters.
type InvalidOrderError struct{ baseError }

func NewInvalidOrderError(msg, brokerCode string) *InvalidOrderError {
	return &InvalidOrderError{baseError{Message: msg, BrokerCode: brokerCode}}
}

// OrderNotFoundError signals the referenced order id does not exist.
type OrderNotFoundError struct{ baseError }

func NewOrderNotFoundError(msg, brokerCode string) *OrderNotFoundError {
	return &OrderNotFoundError{baseError{Message: msg, BrokerCode: brokerCode}}
}

// BrokerError is the catch-all for vendor/transport failures that don't fit
// a more specific kind (5xx after retry budget exhausted, unmapped codes).
type BrokerError struct{ baseError }

func NewBrokerError(msg, brokerCode string) *BrokerError {
	return &BrokerError{baseError{Message: msg, BrokerCode: brokerCode}}
}
