package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"community_content_bot/internal/domain/content"
	"community_content_bot/internal/domain/delivery"
	domainTelegram "community_content_bot/internal/domain/telegram"
	"community_content_bot/internal/domain/tenant"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Dispatch is one rendered item headed for a tenant's output channel.
type Dispatch struct {
	TenantID  string
	Feature   tenant.Feature
	ChannelID int64
	Item      *content.Item
	PeriodKey string
	Message   Message
	// MarkDispatched moves the feature's LastDispatchedAt to At after the send.
	MarkDispatched bool
	At             time.Time
}

// recordTimeout bounds the store writes that follow a successful send.
const recordTimeout = 10 * time.Second

// Dispatcher sends rendered content to the sink and records the delivery.
type Dispatcher struct {
	sink          domainTelegram.Client
	history       delivery.Repository
	configs       tenant.Writer
	newID         func() string
	recordTimeout time.Duration
	logger        *logrus.Entry
}

func NewDispatcher(sink domainTelegram.Client, history delivery.Repository, configs tenant.Writer, logger *logrus.Entry) *Dispatcher {
	return &Dispatcher{
		sink:          sink,
		history:       history,
		configs:       configs,
		newID:         func() string { return uuid.NewString() },
		recordTimeout: recordTimeout,
		logger:        logger,
	}
}

// Send delivers d. Nothing is recorded when the send fails, so a later tick
// in the same open window may try again. Once the message is out, the
// records are written even if ctx is cancelled meanwhile.
func (p *Dispatcher) Send(ctx context.Context, d Dispatch) error {
	log := p.logger.WithFields(logrus.Fields{
		"tenant_id":  d.TenantID,
		"feature":    d.Feature,
		"channel_id": d.ChannelID,
		"item_id":    d.Item.ID,
		"period_key": d.PeriodKey,
	})

	if d.ChannelID == 0 {
		return ErrChannelUnbound
	}
	if err := p.sink.SendMessage(d.ChannelID, d.Message.Text, d.Message.Options); err != nil {
		log.WithError(err).Warn("Delivery failed, nothing recorded")
		return fmt.Errorf("%w: chat %d: %w", ErrSinkDeliveryFailed, d.ChannelID, err)
	}
	log.Info("Content delivered")

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.recordTimeout)
	defer cancel()

	if d.MarkDispatched {
		if err := p.configs.UpdateLastDispatched(ctx, d.TenantID, d.Feature, d.At); err != nil {
			log.WithError(err).Error("Delivered but failed to update last dispatch time")
			return fmt.Errorf("%w: update last dispatch for %s/%s: %w", ErrStoreWriteFailed, d.TenantID, d.Feature, err)
		}
	}

	entry := &delivery.Entry{
		ID:            p.newID(),
		TenantID:      d.TenantID,
		Feature:       d.Feature,
		ContentItemID: d.Item.ID,
		ChannelID:     d.ChannelID,
		DispatchedAt:  d.At,
		PeriodKey:     d.PeriodKey,
	}
	if err := p.history.Append(ctx, entry); err != nil {
		if errors.Is(err, delivery.ErrAlreadyClaimed) {
			log.Warn("Delivery log already had an entry for this period")
			return nil
		}
		log.WithError(err).Error("Delivered but failed to write delivery log")
		return fmt.Errorf("%w: append delivery log: %w", ErrStoreWriteFailed, err)
	}
	return nil
}
