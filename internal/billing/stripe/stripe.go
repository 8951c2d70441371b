// Package stripe implements the Stripe webhook wire contract: signature
// verification over the raw request body and minimal typed representations
// of the event payloads the reconciler consumes.
package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Event types recognized by the reconciler. Anything else is acknowledged
// and dropped.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventSubscriptionCreated      = "customer.subscription.created"
	EventSubscriptionUpdated      = "customer.subscription.updated"
	EventSubscriptionDeleted      = "customer.subscription.deleted"
	EventInvoicePaymentSucceeded  = "invoice.payment_succeeded"
	EventInvoicePaymentFailed     = "invoice.payment_failed"
	EventSubscriptionTrialWillEnd = "customer.subscription.trial_will_end"
)

// Recognized reports whether the reconciler has a handler for the event type.
func Recognized(eventType string) bool {
	switch eventType {
	case EventCheckoutSessionCompleted,
		EventSubscriptionCreated,
		EventSubscriptionUpdated,
		EventSubscriptionDeleted,
		EventInvoicePaymentSucceeded,
		EventInvoicePaymentFailed,
		EventSubscriptionTrialWillEnd:
		return true
	}
	return false
}

var errInvalidSignature = errors.New("invalid_signature")

// VerifySignature recomputes the HMAC-SHA256 over "{timestamp}.{rawBody}"
// and compares it against every v1 digest in the header, constant-time.
// The raw body bytes must be exactly as received; re-serialization breaks
// the digest.
func VerifySignature(payload []byte, header, secret string) error {
	header = strings.TrimSpace(header)
	if header == "" {
		return errInvalidSignature
	}

	timestamp, signatures, err := parseSignatureHeader(header)
	if err != nil {
		return errInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}

	return errInvalidSignature
}

// parseSignatureHeader splits a `t=<ts>,v1=<hex>` header. Unknown pairs are
// skipped; multiple v1 entries are all candidates (key rotation).
func parseSignatureHeader(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errInvalidSignature
	}
	return timestamp, signatures, nil
}

// SignatureHeader builds a valid header for the given payload, the
// counterpart of VerifySignature for tests and local delivery.
func SignatureHeader(payload []byte, secret string, timestamp int64) string {
	signedPayload := fmt.Sprintf("%d.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signedPayload))
	return fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

// Event is the webhook envelope: a type tag plus an opaque payload object.
type Event struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Created int64     `json:"created"`
	Data    EventData `json:"data"`
}

type EventData struct {
	Object json.RawMessage `json:"object"`
}

// CheckoutSession is a minimal representation of a checkout.session object.
type CheckoutSession struct {
	ID                string            `json:"id"`
	Customer          string            `json:"customer"`
	Subscription      string            `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	CustomerEmail     string            `json:"customer_email"`
	Metadata          map[string]string `json:"metadata"`
}

// TenantReference returns the local tenant id carried on the session,
// preferring client_reference_id over metadata.
func (s *CheckoutSession) TenantReference() string {
	if ref := strings.TrimSpace(s.ClientReferenceID); ref != "" {
		return ref
	}
	return strings.TrimSpace(s.Metadata["tenant_id"])
}

// Subscription is a minimal representation of a subscription object.
type Subscription struct {
	ID               string `json:"id"`
	Customer         string `json:"customer"`
	Status           string `json:"status"`
	CurrentPeriodEnd int64  `json:"current_period_end"`
	TrialEnd         int64  `json:"trial_end"`
	CancelAt         *int64 `json:"cancel_at"`
	CanceledAt       *int64 `json:"canceled_at"`
	Items            struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
	Metadata map[string]string `json:"metadata"`
}

// FirstPriceID returns the price ID from the first subscription item.
func (s *Subscription) FirstPriceID() string {
	for _, item := range s.Items.Data {
		if priceID := strings.TrimSpace(item.Price.ID); priceID != "" {
			return priceID
		}
	}
	return ""
}

// PeriodEnd converts the epoch period end to UTC; zero means absent.
func (s *Subscription) PeriodEnd() *time.Time {
	return epochPtr(s.CurrentPeriodEnd)
}

// TrialEndsAt converts the epoch trial end to UTC; zero means absent.
func (s *Subscription) TrialEndsAt() *time.Time {
	return epochPtr(s.TrialEnd)
}

// CancelsAt converts the scheduled cancellation timestamp; nil or zero means
// no cancellation is pending.
func (s *Subscription) CancelsAt() *time.Time {
	if s.CancelAt == nil {
		return nil
	}
	return epochPtr(*s.CancelAt)
}

// Invoice is a minimal representation of an invoice object.
type Invoice struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
	AmountDue    int64  `json:"amount_due"`
	AmountPaid   int64  `json:"amount_paid"`
	Currency     string `json:"currency"`
}

func epochPtr(seconds int64) *time.Time {
	if seconds == 0 {
		return nil
	}
	t := time.Unix(seconds, 0).UTC()
	return &t
}
