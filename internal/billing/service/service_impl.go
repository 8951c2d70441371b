package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/nutridesk/nutridesk/internal/billing/domain"
	"github.com/nutridesk/nutridesk/internal/billing/stripe"
	"github.com/nutridesk/nutridesk/internal/clock"
	"github.com/nutridesk/nutridesk/internal/config"
	obsmetrics "github.com/nutridesk/nutridesk/internal/observability/metrics"
	plandomain "github.com/nutridesk/nutridesk/internal/plan/domain"
	tenantdomain "github.com/nutridesk/nutridesk/internal/tenant/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const provider = "stripe"

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Cfg     config.Config
	Clock   clock.Clock
	Repo    billingdomain.Repository
	Tenants tenantdomain.Repository
	Plans   plandomain.Service
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      billingdomain.Repository
	tenants   tenantdomain.Repository
	plans     plandomain.Service
	secret    string
	trialDays int
	tracer    trace.Tracer
}

func NewService(p Params) billingdomain.Service {
	trialDays := p.Cfg.Billing.TrialDays
	if trialDays <= 0 {
		trialDays = 14
	}

	return &Service{
		db:        p.DB,
		log:       p.Log.Named("billing.webhook"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		tenants:   p.Tenants,
		plans:     p.Plans,
		secret:    strings.TrimSpace(p.Cfg.Billing.WebhookSecret),
		trialDays: trialDays,
		tracer:    otel.Tracer("billing.webhook"),
	}
}

// IngestWebhook verifies the delivery, records it in the idempotency ledger
// and applies exactly one state transition for the addressed tenant.
// Unrecognized event types are acknowledged without any write so the
// processor stops redelivering them.
func (s *Service) IngestWebhook(ctx context.Context, payload []byte, signatureHeader string) (billingdomain.IngestResult, error) {
	result := billingdomain.IngestResult{EventType: "unknown"}

	if s.secret == "" {
		return result, billingdomain.ErrSecretNotConfigured
	}
	if err := stripe.VerifySignature(payload, signatureHeader, s.secret); err != nil {
		return result, billingdomain.ErrInvalidSignature
	}
	if !json.Valid(payload) {
		return result, billingdomain.ErrInvalidPayload
	}

	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return result, billingdomain.ErrInvalidPayload
	}
	event.ID = strings.TrimSpace(event.ID)
	event.Type = strings.TrimSpace(event.Type)
	if event.ID == "" || event.Type == "" {
		return result, billingdomain.ErrInvalidPayload
	}
	result.EventType = event.Type

	if !stripe.Recognized(event.Type) {
		s.log.Info("webhook ignored (unhandled type)",
			zap.String("type", event.Type),
			zap.String("event_id", event.ID))
		result.Ignored = true
		return result, nil
	}

	ctx, span := s.tracer.Start(ctx, "billing.webhook.process")
	defer span.End()

	record := &billingdomain.WebhookEvent{
		ID:              s.genID.Generate(),
		Provider:        provider,
		ProviderEventID: event.ID,
		EventType:       event.Type,
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      s.clock.Now(),
	}
	inserted, err := s.repo.InsertWebhookEvent(ctx, s.db, record)
	if err != nil {
		return result, err
	}
	stored := record
	if !inserted {
		stored, err = s.repo.FindWebhookEvent(ctx, s.db, provider, event.ID)
		if err != nil {
			return result, err
		}
		if stored == nil {
			return result, billingdomain.ErrInvalidPayload
		}
		if stored.ProcessedAt != nil {
			return result, billingdomain.ErrEventAlreadyProcessed
		}
		// A prior delivery of this event failed mid-flight; process it again.
	}

	handled, err := s.dispatch(ctx, &event)
	if err != nil {
		return result, err
	}
	result.Ignored = !handled

	if err := s.repo.MarkProcessed(ctx, s.db, stored.ID, s.clock.Now()); err != nil {
		return result, err
	}
	return result, nil
}

func (s *Service) ListEventLogs(ctx context.Context, tenantID string) ([]billingdomain.SubscriptionEventLog, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(tenantID))
	if err != nil {
		return nil, billingdomain.ErrInvalidTenant
	}
	return s.repo.ListEventLogsByTenant(ctx, s.db, parsed)
}

func (s *Service) dispatch(ctx context.Context, event *stripe.Event) (bool, error) {
	switch event.Type {
	case stripe.EventCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Object, &session); err != nil {
			return false, billingdomain.ErrInvalidPayload
		}
		return s.handleCheckoutCompleted(ctx, event, &session)

	case stripe.EventSubscriptionCreated:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
			return false, billingdomain.ErrInvalidPayload
		}
		return s.handleSubscriptionCreated(ctx, event, &sub)

	case stripe.EventSubscriptionUpdated:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
			return false, billingdomain.ErrInvalidPayload
		}
		return s.handleSubscriptionUpdated(ctx, event, &sub)

	case stripe.EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
			return false, billingdomain.ErrInvalidPayload
		}
		return s.handleSubscriptionDeleted(ctx, event, &sub)

	case stripe.EventInvoicePaymentSucceeded:
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Object, &invoice); err != nil {
			return false, billingdomain.ErrInvalidPayload
		}
		return s.handleInvoicePaymentSucceeded(ctx, event, &invoice)

	case stripe.EventInvoicePaymentFailed:
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Object, &invoice); err != nil {
			return false, billingdomain.ErrInvalidPayload
		}
		return s.handleInvoicePaymentFailed(ctx, event, &invoice)

	case stripe.EventSubscriptionTrialWillEnd:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
			return false, billingdomain.ErrInvalidPayload
		}
		return s.handleTrialWillEnd(ctx, event, &sub)
	}

	return false, nil
}

// handleCheckoutCompleted stamps the subscription reference onto the tenant.
// A tenant mid-trial (or past one) activates immediately; a tenant with no
// trial on record starts its trial window now.
func (s *Service) handleCheckoutCompleted(ctx context.Context, event *stripe.Event, session *stripe.CheckoutSession) (bool, error) {
	ref := session.TenantReference()
	if ref == "" {
		return s.dropEvent(event, "checkout session carries no tenant reference")
	}
	tenantID, err := snowflake.ParseString(ref)
	if err != nil {
		return s.dropEvent(event, "checkout session tenant reference is not a valid id")
	}

	tenant, err := s.tenants.FindByID(ctx, s.db, tenantID)
	if err != nil {
		return false, err
	}
	if tenant == nil {
		return s.dropEvent(event, "no tenant row for checkout session")
	}

	now := s.clock.Now()
	state := currentState(tenant)
	if sub := strings.TrimSpace(session.Subscription); sub != "" {
		state.SubscriptionID = &sub
	}
	if cust := strings.TrimSpace(session.Customer); cust != "" {
		state.StripeCustomerID = &cust
	}
	if plan := strings.TrimSpace(session.Metadata["plan"]); plan != "" {
		state.SubscriptionPlan = &plan
	}
	state.SubscriptionStartedAt = &now

	hasTrial := tenant.SubscriptionStatus == tenantdomain.SubscriptionStatusTrialing && tenant.TrialEndsAt != nil
	if hasTrial || tenant.TrialExpired(now) {
		state.SubscriptionStatus = tenantdomain.SubscriptionStatusActive
		state.TrialEndsAt = nil
	} else {
		state.SubscriptionStatus = tenantdomain.SubscriptionStatusTrialing
		trialEnd := now.Add(time.Duration(s.trialDays) * 24 * time.Hour)
		state.TrialEndsAt = &trialEnd
	}

	return true, s.applyTransition(ctx, tenant, event, state, map[string]any{
		"checkout_session_id": session.ID,
	})
}

// handleSubscriptionCreated matches by processor customer id. An expired
// trial forces activation; otherwise the processor-reported status is
// stored as-is.
func (s *Service) handleSubscriptionCreated(ctx context.Context, event *stripe.Event, sub *stripe.Subscription) (bool, error) {
	customerID := strings.TrimSpace(sub.Customer)
	if customerID == "" {
		return s.dropEvent(event, "subscription carries no customer id")
	}

	tenant, err := s.tenants.FindByStripeCustomerID(ctx, s.db, customerID)
	if err != nil {
		return false, err
	}
	if tenant == nil {
		return s.dropEvent(event, "no tenant row for subscription customer")
	}

	now := s.clock.Now()
	state := currentState(tenant)
	if id := strings.TrimSpace(sub.ID); id != "" {
		state.SubscriptionID = &id
	}
	state.SubscriptionCurrentPeriodEnd = sub.PeriodEnd()
	state.SubscriptionStartedAt = &now

	if tenant.TrialExpired(now) {
		state.SubscriptionStatus = tenantdomain.SubscriptionStatusActive
		state.TrialEndsAt = nil
	} else {
		if status := strings.TrimSpace(sub.Status); status != "" {
			state.SubscriptionStatus = tenantdomain.SubscriptionStatus(status)
		}
		if trialEnd := sub.TrialEndsAt(); trialEnd != nil {
			state.TrialEndsAt = trialEnd
		}
	}

	return true, s.applyTransition(ctx, tenant, event, state, nil)
}

// handleSubscriptionUpdated passes the processor-reported status through and
// resolves the plan name from the price catalog, keeping the existing plan
// on a catalog miss. A pending cancellation timestamp sets the end date;
// its absence clears it.
func (s *Service) handleSubscriptionUpdated(ctx context.Context, event *stripe.Event, sub *stripe.Subscription) (bool, error) {
	tenant, err := s.findBySubscription(ctx, event, sub.ID)
	if err != nil || tenant == nil {
		return false, err
	}

	state := currentState(tenant)
	if status := strings.TrimSpace(sub.Status); status != "" {
		state.SubscriptionStatus = tenantdomain.SubscriptionStatus(status)
	}
	if priceID := sub.FirstPriceID(); priceID != "" {
		name, ok, err := s.plans.ResolvePlanName(ctx, priceID)
		if err != nil {
			return false, err
		}
		if ok {
			state.SubscriptionPlan = &name
		}
	}
	state.SubscriptionCurrentPeriodEnd = sub.PeriodEnd()
	state.SubscriptionEndsAt = sub.CancelsAt()

	return true, s.applyTransition(ctx, tenant, event, state, nil)
}

// handleSubscriptionDeleted is terminal: status goes to canceled and the end
// date is stamped to now, regardless of prior state. Reapplying the
// transition is a semantic no-op.
func (s *Service) handleSubscriptionDeleted(ctx context.Context, event *stripe.Event, sub *stripe.Subscription) (bool, error) {
	tenant, err := s.findBySubscription(ctx, event, sub.ID)
	if err != nil || tenant == nil {
		return false, err
	}

	now := s.clock.Now()
	state := currentState(tenant)
	state.SubscriptionStatus = tenantdomain.SubscriptionStatusCanceled
	state.SubscriptionEndsAt = &now

	return true, s.applyTransition(ctx, tenant, event, state, nil)
}

func (s *Service) handleInvoicePaymentSucceeded(ctx context.Context, event *stripe.Event, invoice *stripe.Invoice) (bool, error) {
	tenant, err := s.findBySubscription(ctx, event, invoice.Subscription)
	if err != nil || tenant == nil {
		return false, err
	}

	s.appendEventLog(ctx, tenant, event, nil, map[string]any{
		"invoice_id":  invoice.ID,
		"amount_paid": invoice.AmountPaid,
		"currency":    strings.ToUpper(strings.TrimSpace(invoice.Currency)),
	})
	return true, nil
}

func (s *Service) handleInvoicePaymentFailed(ctx context.Context, event *stripe.Event, invoice *stripe.Invoice) (bool, error) {
	tenant, err := s.findBySubscription(ctx, event, invoice.Subscription)
	if err != nil || tenant == nil {
		return false, err
	}

	state := currentState(tenant)
	state.SubscriptionStatus = tenantdomain.SubscriptionStatusPastDue

	return true, s.applyTransition(ctx, tenant, event, state, map[string]any{
		"invoice_id": invoice.ID,
		"amount_due": invoice.AmountDue,
	})
}

func (s *Service) handleTrialWillEnd(ctx context.Context, event *stripe.Event, sub *stripe.Subscription) (bool, error) {
	tenant, err := s.findBySubscription(ctx, event, sub.ID)
	if err != nil || tenant == nil {
		return false, err
	}

	// TODO: trigger the trial-ending reminder email once notifications exist.
	s.appendEventLog(ctx, tenant, event, nil, nil)
	return true, nil
}

// findBySubscription resolves the tenant addressed by a subscription id.
// A miss is not an error: the event is acknowledged and dropped so the
// processor does not redeliver it, and a later event that does match will
// still converge the state.
func (s *Service) findBySubscription(ctx context.Context, event *stripe.Event, subscriptionID string) (*tenantdomain.Tenant, error) {
	subscriptionID = strings.TrimSpace(subscriptionID)
	if subscriptionID == "" {
		_, _ = s.dropEvent(event, "event carries no subscription id")
		return nil, nil
	}

	tenant, err := s.tenants.FindBySubscriptionID(ctx, s.db, subscriptionID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		_, _ = s.dropEvent(event, "no tenant row for subscription")
		return nil, nil
	}
	return tenant, nil
}

func (s *Service) dropEvent(event *stripe.Event, reason string) (bool, error) {
	s.log.Warn("webhook event dropped",
		zap.String("reason", reason),
		zap.String("type", event.Type),
		zap.String("event_id", event.ID))
	return false, nil
}

// applyTransition writes the new subscription state and appends the paired
// event-log row. The tenant write is authoritative; a log append failure is
// swallowed.
func (s *Service) applyTransition(ctx context.Context, tenant *tenantdomain.Tenant, event *stripe.Event, state tenantdomain.SubscriptionState, metadata map[string]any) error {
	if err := s.tenants.UpdateSubscriptionState(ctx, s.db, tenant.ID, state); err != nil {
		return err
	}

	if tenant.SubscriptionStatus != state.SubscriptionStatus {
		obsmetrics.SubscriptionTransitionsTotal.WithLabelValues(
			string(tenant.SubscriptionStatus),
			string(state.SubscriptionStatus),
		).Inc()
	}

	s.appendEventLog(ctx, tenant, event, &state, metadata)
	return nil
}

func (s *Service) appendEventLog(ctx context.Context, tenant *tenantdomain.Tenant, event *stripe.Event, state *tenantdomain.SubscriptionState, metadata map[string]any) {
	prevStatus := string(tenant.SubscriptionStatus)
	newStatus := prevStatus
	prevPlan := tenant.SubscriptionPlan
	newPlan := prevPlan
	subscriptionID := tenant.SubscriptionID
	if state != nil {
		newStatus = string(state.SubscriptionStatus)
		newPlan = state.SubscriptionPlan
		if state.SubscriptionID != nil {
			subscriptionID = state.SubscriptionID
		}
	}

	var meta datatypes.JSONMap
	if len(metadata) > 0 {
		meta = datatypes.JSONMap(metadata)
	}

	entry := &billingdomain.SubscriptionEventLog{
		ID:                     s.genID.Generate(),
		TenantID:               tenant.ID,
		EventType:              event.Type,
		ProviderEventID:        &event.ID,
		ProviderSubscriptionID: subscriptionID,
		PreviousStatus:         &prevStatus,
		NewStatus:              &newStatus,
		PreviousPlan:           prevPlan,
		NewPlan:                newPlan,
		Metadata:               meta,
		CreatedAt:              s.clock.Now(),
	}

	if err := s.repo.AppendEventLog(ctx, s.db, entry); err != nil {
		s.log.Warn("failed to append subscription event log",
			zap.String("event_id", event.ID),
			zap.String("type", event.Type),
			zap.Error(err))
	}
}

func currentState(tenant *tenantdomain.Tenant) tenantdomain.SubscriptionState {
	return tenantdomain.SubscriptionState{
		StripeCustomerID:             tenant.StripeCustomerID,
		SubscriptionID:               tenant.SubscriptionID,
		SubscriptionStatus:           tenant.SubscriptionStatus,
		SubscriptionPlan:             tenant.SubscriptionPlan,
		SubscriptionCurrentPeriodEnd: tenant.SubscriptionCurrentPeriodEnd,
		TrialEndsAt:                  tenant.TrialEndsAt,
		SubscriptionStartedAt:        tenant.SubscriptionStartedAt,
		SubscriptionEndsAt:           tenant.SubscriptionEndsAt,
	}
}
