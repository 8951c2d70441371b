package stripe_test

import (
	"strings"
	"testing"
	"time"

	"github.com/nutridesk/nutridesk/internal/billing/stripe"
)

func TestVerifySignatureAcceptsValidHeader(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"customer.subscription.updated"}`)
	secret := "whsec_test"
	header := stripe.SignatureHeader(payload, secret, time.Now().Unix())

	if err := stripe.VerifySignature(payload, header, secret); err != nil {
		t.Fatalf("verify signature: %v", err)
	}
}

func TestVerifySignatureRejectsTamperedBody(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"customer.subscription.updated"}`)
	secret := "whsec_test"
	header := stripe.SignatureHeader(payload, secret, time.Now().Unix())

	tampered := make([]byte, len(payload))
	copy(tampered, payload)
	tampered[len(tampered)-2] ^= 0x01

	if err := stripe.VerifySignature(tampered, header, secret); err == nil {
		t.Fatal("expected tampered body to be rejected")
	}
}

func TestVerifySignatureRejectsTamperedTimestamp(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"customer.subscription.updated"}`)
	secret := "whsec_test"
	ts := time.Now().Unix()
	header := stripe.SignatureHeader(payload, secret, ts)

	// The timestamp participates in the signed payload, so shifting it
	// invalidates the digest even with the body unchanged.
	shifted := stripe.SignatureHeader(payload, secret, ts+1)
	if shifted == header {
		t.Fatal("expected distinct headers for distinct timestamps")
	}
	parts := []byte(header)
	parts[2] ^= 0x01 // flip a digit inside t=<ts>
	if err := stripe.VerifySignature(payload, string(parts), secret); err == nil {
		t.Fatal("expected tampered timestamp to be rejected")
	}
}

func TestVerifySignatureRejectsWrongSecret(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"invoice.payment_failed"}`)
	header := stripe.SignatureHeader(payload, "whsec_a", time.Now().Unix())

	if err := stripe.VerifySignature(payload, header, "whsec_b"); err == nil {
		t.Fatal("expected wrong secret to be rejected")
	}
}

func TestVerifySignatureRejectsMalformedHeader(t *testing.T) {
	payload := []byte(`{}`)
	for _, header := range []string{"", "t=123", "v1=deadbeef", "nonsense"} {
		if err := stripe.VerifySignature(payload, header, "whsec_test"); err == nil {
			t.Fatalf("expected header %q to be rejected", header)
		}
	}
}

func TestVerifySignatureAcceptsRotatedKeys(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	secret := "whsec_new"
	ts := time.Now().Unix()

	stale := stripe.SignatureHeader(payload, "whsec_old", ts)
	fresh := stripe.SignatureHeader(payload, secret, ts)

	// Header carries two v1 digests; one matching candidate is enough.
	header := stale + ",v1=" + strings.TrimPrefix(strings.SplitN(fresh, ",", 2)[1], "v1=")
	if err := stripe.VerifySignature(payload, header, secret); err != nil {
		t.Fatalf("expected one matching v1 candidate to verify: %v", err)
	}
}

func TestRecognized(t *testing.T) {
	for _, eventType := range []string{
		stripe.EventCheckoutSessionCompleted,
		stripe.EventSubscriptionCreated,
		stripe.EventSubscriptionUpdated,
		stripe.EventSubscriptionDeleted,
		stripe.EventInvoicePaymentSucceeded,
		stripe.EventInvoicePaymentFailed,
		stripe.EventSubscriptionTrialWillEnd,
	} {
		if !stripe.Recognized(eventType) {
			t.Fatalf("expected %s to be recognized", eventType)
		}
	}

	if stripe.Recognized("charge.refunded") {
		t.Fatal("expected charge.refunded to be unrecognized")
	}
}

func TestCheckoutSessionTenantReference(t *testing.T) {
	session := stripe.CheckoutSession{ClientReferenceID: " 42 "}
	if got := session.TenantReference(); got != "42" {
		t.Fatalf("expected client_reference_id, got %q", got)
	}

	session = stripe.CheckoutSession{Metadata: map[string]string{"tenant_id": "99"}}
	if got := session.TenantReference(); got != "99" {
		t.Fatalf("expected metadata fallback, got %q", got)
	}

	session = stripe.CheckoutSession{}
	if got := session.TenantReference(); got != "" {
		t.Fatalf("expected empty reference, got %q", got)
	}
}

func TestSubscriptionTimestamps(t *testing.T) {
	sub := stripe.Subscription{CurrentPeriodEnd: 1735689600, TrialEnd: 0}

	periodEnd := sub.PeriodEnd()
	if periodEnd == nil || !periodEnd.Equal(time.Unix(1735689600, 0)) {
		t.Fatalf("unexpected period end: %v", periodEnd)
	}
	if sub.TrialEndsAt() != nil {
		t.Fatal("expected nil trial end for zero epoch")
	}
	if sub.CancelsAt() != nil {
		t.Fatal("expected nil cancel for absent cancel_at")
	}

	cancelAt := int64(1738368000)
	sub.CancelAt = &cancelAt
	if got := sub.CancelsAt(); got == nil || !got.Equal(time.Unix(cancelAt, 0)) {
		t.Fatalf("unexpected cancel at: %v", got)
	}
}

func TestSubscriptionFirstPriceID(t *testing.T) {
	var sub stripe.Subscription
	if got := sub.FirstPriceID(); got != "" {
		t.Fatalf("expected empty price id, got %q", got)
	}

	sub.Items.Data = []struct {
		Price struct {
			ID string `json:"id"`
		} `json:"price"`
	}{{}, {}}
	sub.Items.Data[1].Price.ID = "price_x"
	if got := sub.FirstPriceID(); got != "price_x" {
		t.Fatalf("expected first non-empty price id, got %q", got)
	}
}
