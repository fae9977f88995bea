// Package subscriptions drives the user subscription page: loading the
// available tiers, the free and paid membership dialogs, checkout approval,
// cancellation and sponsor code redemption.
package subscriptions

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"megatrade-web/models"
	"megatrade-web/services/api"
	"megatrade-web/services/paypal"
)

type Phase string

const (
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
)

const (
	PaymentCompletedMessage = "Your payment and subscription completed successfully"
	PaymentCancelledMessage = "Your payment attempt to the membership has been cancelled"
	PaymentLookupFailed     = "We could not confirm your subscription with the payment provider, please try again"
	PaymentFailedMessage    = "Your payment could not be completed, please try again"
)

// View is the state of the subscription page for one user. Dialog flags are
// orthogonal to each other and only meaningful once the phase is ready.
type View struct {
	Phase             Phase
	Subscriptions     []models.Subscription
	Membership        models.Membership
	PaymentDialogOpen bool
	FreeDialogOpen    bool
	Selected          models.SelectedPlan
	Notifications     []models.Notification
}

func (v *View) notify(variant models.NotificationVariant, message string) {
	v.Notifications = append(v.Notifications, models.Notification{Variant: variant, Message: message})
}

// TakeNotifications returns the pending notifications and clears them.
func (v *View) TakeNotifications() []models.Notification {
	pending := v.Notifications
	v.Notifications = nil
	return pending
}

// EventRecorder receives ledger entries for mutating outcomes. Implementations
// must not block the caller for long.
type EventRecorder interface {
	Record(ctx context.Context, event models.PaymentEvent)
}

type Orchestrator struct {
	api      api.UserAPI
	payments paypal.DetailsFetcher
	events   EventRecorder
	now      func() time.Time
}

func NewOrchestrator(userAPI api.UserAPI, payments paypal.DetailsFetcher, events EventRecorder) *Orchestrator {
	return &Orchestrator{
		api:      userAPI,
		payments: payments,
		events:   events,
		now:      time.Now,
	}
}

// Load fetches the tiers and the user's membership. A failure still leaves the
// view ready, with empty data and an error notification.
func (o *Orchestrator) Load(ctx context.Context, userID string, v *View) {
	v.Phase = PhaseLoading

	data, err := o.api.FetchSubscriptions(ctx, userID)
	if err != nil {
		log.WithField("user_id", userID).Printf("Error fetching subscriptions: %v", err)
		v.Subscriptions = []models.Subscription{}
		v.Membership = models.Membership{}
		v.Phase = PhaseReady
		v.notify(models.NotificationError, api.UserMessage(err))
		return
	}

	v.Subscriptions = data.Subscriptions
	v.Membership = data.Membership
	v.Phase = PhaseReady
}

// Select opens the dialog that matches the tier of sub.
func (o *Orchestrator) Select(v *View, sub models.Subscription) {
	if sub.ResolveTier() == models.TierFree {
		v.FreeDialogOpen = true
		return
	}
	v.Selected = models.SelectedPlan{Price: sub.Price, PlanID: sub.PlanID}
	v.PaymentDialogOpen = true
}

// SelectPlan looks planID up among the loaded tiers and selects it.
func (o *Orchestrator) SelectPlan(v *View, planID string) bool {
	for _, sub := range v.Subscriptions {
		if sub.PlanID == planID {
			o.Select(v, sub)
			return true
		}
	}
	return false
}

// SelectIndex selects the tier at position i of the loaded list.
func (o *Orchestrator) SelectIndex(v *View, i int) bool {
	if i < 0 || i >= len(v.Subscriptions) {
		return false
	}
	o.Select(v, v.Subscriptions[i])
	return true
}

func (o *Orchestrator) ClosePaymentDialog(v *View) {
	v.PaymentDialogOpen = false
}

func (o *Orchestrator) CloseFreeDialog(v *View) {
	v.FreeDialogOpen = false
}

func (o *Orchestrator) CloseDialogs(v *View) {
	v.PaymentDialogOpen = false
	v.FreeDialogOpen = false
}

// ConfirmFree moves the user to the free membership, which the platform models
// as cancelling the paid subscription.
func (o *Orchestrator) ConfirmFree(ctx context.Context, userID string, v *View) {
	o.Cancel(ctx, userID, v)
}

// Cancel cancels the user's subscription. On success both dialogs close and the
// list is fetched again; on failure the view keeps its state.
func (o *Orchestrator) Cancel(ctx context.Context, userID string, v *View) {
	res, err := o.api.CancelSubscription(ctx, userID)
	if err != nil {
		log.WithField("user_id", userID).Printf("Error cancelling subscription: %v", err)
		v.notify(models.NotificationError, api.UserMessage(err))
		return
	}

	o.record(ctx, models.PaymentEvent{
		UserID:  userID,
		Kind:    models.EventMembershipCancelled,
		PlanID:  v.Membership.PlanID,
		Message: res.Message,
	})

	o.CloseDialogs(v)
	v.notify(models.NotificationSuccess, res.Message)
	o.Load(ctx, userID, v)
}

// ApprovePayment completes a checkout approved at the payment provider: it
// reads the subscription details there and registers them with the platform.
func (o *Orchestrator) ApprovePayment(ctx context.Context, userID string, v *View, approval models.PaymentApproval) {
	logger := log.WithFields(log.Fields{
		"user_id":         userID,
		"order_id":        approval.OrderID,
		"subscription_id": approval.SubscriptionID,
	})

	details, err := o.payments.GetSubscription(ctx, approval.SubscriptionID)
	if err != nil {
		logger.Printf("Error reading provider subscription: %v", err)
		v.notify(models.NotificationError, PaymentLookupFailed)
		o.record(ctx, models.PaymentEvent{
			UserID:         userID,
			Kind:           models.EventProviderError,
			PlanID:         v.Selected.PlanID,
			OrderID:        approval.OrderID,
			SubscriptionID: approval.SubscriptionID,
			Message:        err.Error(),
		})
		return
	}

	v.notify(models.NotificationSuccess, PaymentCompletedMessage)

	res, err := o.api.CreateSubscription(ctx, api.CreateSubscriptionRequest{
		UserID:         userID,
		PlanID:         details.PlanID,
		OrderID:        approval.OrderID,
		StartTime:      details.StartTime,
		SubscriptionID: approval.SubscriptionID,
		NextBilling:    details.NextBillingTime,
	})
	if err != nil {
		logger.Printf("Error registering subscription with platform: %v", err)
		v.notify(models.NotificationError, api.UserMessage(err))
		o.record(ctx, models.PaymentEvent{
			UserID:         userID,
			Kind:           models.EventPaymentAPIFailed,
			PlanID:         details.PlanID,
			OrderID:        approval.OrderID,
			SubscriptionID: approval.SubscriptionID,
			Message:        api.UserMessage(err),
		})
		return
	}

	o.record(ctx, models.PaymentEvent{
		UserID:         userID,
		Kind:           models.EventPaymentApproved,
		PlanID:         details.PlanID,
		OrderID:        approval.OrderID,
		SubscriptionID: approval.SubscriptionID,
		Message:        res.Message,
	})

	o.ClosePaymentDialog(v)
	v.notify(models.NotificationSuccess, res.Message)
	o.Load(ctx, userID, v)
}

// PaymentFailed reports a checkout error raised by the payment provider.
func (o *Orchestrator) PaymentFailed(ctx context.Context, userID string, v *View, message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		message = PaymentFailedMessage
	}
	v.notify(models.NotificationError, message)
	o.record(ctx, models.PaymentEvent{
		UserID:  userID,
		Kind:    models.EventProviderError,
		PlanID:  v.Selected.PlanID,
		Message: message,
	})
}

// PaymentCancelled reports that the buyer closed the checkout without paying.
func (o *Orchestrator) PaymentCancelled(ctx context.Context, userID string, v *View) {
	v.notify(models.NotificationInfo, PaymentCancelledMessage)
	o.record(ctx, models.PaymentEvent{
		UserID: userID,
		Kind:   models.EventPaymentCancelled,
		PlanID: v.Selected.PlanID,
	})
}

// RedeemSponsor applies a sponsor code. The list is fetched again whatever the
// outcome.
func (o *Orchestrator) RedeemSponsor(ctx context.Context, userID string, v *View, req models.SponsorRequest) {
	res, err := o.api.GetSponsor(ctx, api.GetSponsorRequest{
		UserID:       userID,
		Code:         strings.TrimSpace(req.Code),
		Duration:     strings.TrimSpace(req.Duration),
		DurationPick: strings.TrimSpace(req.DurationPick),
	})

	if err != nil {
		log.WithField("user_id", userID).Printf("Error redeeming sponsor code: %v", err)
		v.notify(models.NotificationError, api.UserMessage(err))
		o.record(ctx, models.PaymentEvent{UserID: userID, Kind: models.EventSponsorFailed, Message: api.UserMessage(err)})
	} else {
		v.notify(models.NotificationSuccess, res.Message)
		o.record(ctx, models.PaymentEvent{UserID: userID, Kind: models.EventSponsorRedeemed, Message: res.Message})
	}

	o.Load(ctx, userID, v)
}

func (o *Orchestrator) record(ctx context.Context, event models.PaymentEvent) {
	if o.events == nil {
		return
	}
	event.ID = uuid.New().String()
	event.CreatedAt = o.now().UTC()
	// the ledger must not be skipped because the browser went away
	o.events.Record(context.WithoutCancel(ctx), event)
}
