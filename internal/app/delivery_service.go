// internal/app/delivery_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"community_content_bot/internal/domain/content"
	"community_content_bot/internal/domain/delivery"
	domainTelegram "community_content_bot/internal/domain/telegram"
	"community_content_bot/internal/domain/tenant"

	"github.com/sirupsen/logrus"
)

// RecencySettings holds the per-feature recency windows in days. Zero disables the filter.
type RecencySettings struct {
	SpotlightDays int
	QuestionDays  int
	PromptDays    int
}

// TickReport summarises one poll tick.
type TickReport struct {
	Tenants    int
	Evaluated  int // tenant/feature units evaluated
	Fired      int // units whose trigger matched
	Delivered  int // messages sent and recorded
	Suppressed int // deliveries skipped because the period was already served
	Failed     int // units that ended with an error
}

// featureOutcome is what one tenant/feature unit contributed to a tick.
type featureOutcome struct {
	fired      bool
	delivered  int
	suppressed int
}

// DeliveryService runs the scheduled content pipeline for every tenant.
type DeliveryService struct {
	configs    tenant.Repository
	contents   content.Repository
	history    delivery.Repository
	evaluator  *TriggerEvaluator
	selector   *Selector
	guard      *IdempotencyGuard
	dispatcher *Dispatcher
	recency    RecencySettings
	logger     *logrus.Entry
}

func NewDeliveryService(
	configs tenant.Repository,
	contents content.Repository,
	history delivery.Repository,
	sink domainTelegram.Client,
	evaluator *TriggerEvaluator,
	selector *Selector,
	recency RecencySettings,
	logger *logrus.Entry,
) *DeliveryService {
	return &DeliveryService{
		configs:    configs,
		contents:   contents,
		history:    history,
		evaluator:  evaluator,
		selector:   selector,
		guard:      NewIdempotencyGuard(history),
		dispatcher: NewDispatcher(sink, history, configs, logger.WithField("component", "dispatcher")),
		recency:    recency,
		logger:     logger,
	}
}

// RunTick evaluates every feature of every tenant against now. Tenants and
// features are processed one at a time; a failure in one unit is logged and
// never reaches the others. When ctx is cancelled the remaining units are
// abandoned before they start.
func (s *DeliveryService) RunTick(ctx context.Context, now time.Time) TickReport {
	var report TickReport
	now = now.UTC()

	tenantIDs, err := s.configs.ListTenantIDs(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Could not list tenants, skipping tick")
		report.Failed++
		return report
	}
	report.Tenants = len(tenantIDs)

	for _, tenantID := range tenantIDs {
		if ctx.Err() != nil {
			s.logger.WithError(ctx.Err()).Warn("Tick abandoned before all tenants were processed")
			return report
		}
		log := s.logger.WithField("tenant_id", tenantID)

		cfg, err := s.configs.Get(ctx, tenantID)
		if err != nil {
			if errors.Is(err, tenant.ErrTenantNotFound) {
				log.Debug("No config for tenant, all features treated as disabled")
				continue
			}
			log.WithError(err).Error("Could not load tenant config")
			report.Failed++
			continue
		}
		loc, err := cfg.Location()
		if err != nil {
			log.WithError(err).Error("Skipping tenant")
			report.Failed++
			continue
		}

		for _, feature := range tenant.AllFeatures {
			if ctx.Err() != nil {
				break
			}
			report.Evaluated++
			outcome, err := s.runFeatureIsolated(ctx, cfg, loc, feature, now)
			if outcome.fired {
				report.Fired++
			}
			report.Delivered += outcome.delivered
			report.Suppressed += outcome.suppressed
			if errors.Is(err, ErrInvalidSchedule) {
				report.Failed++
				continue
			}
			if err != nil {
				report.Failed++
				log.WithField("feature", feature).WithError(err).Error("Scheduled delivery failed, will retry on a later tick")
			}
		}
	}
	return report
}

func (s *DeliveryService) runFeatureIsolated(ctx context.Context, cfg *tenant.ScheduleConfig, loc *time.Location, feature tenant.Feature, now time.Time) (outcome featureOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s delivery: %v\n%s", feature, r, debug.Stack())
		}
	}()
	return s.runFeature(ctx, cfg, loc, feature, now)
}

func (s *DeliveryService) runFeature(ctx context.Context, cfg *tenant.ScheduleConfig, loc *time.Location, feature tenant.Feature, now time.Time) (featureOutcome, error) {
	fs := cfg.Feature(feature)
	decision := s.evaluator.Evaluate(now, loc, fs)
	if !decision.Fire {
		if decision.Reason == ReasonInvalidSchedule {
			err := fmt.Errorf("%w: %w", ErrInvalidSchedule, fs.Schedule.Validate())
			s.logger.WithFields(logrus.Fields{"tenant_id": cfg.TenantID, "feature": feature}).
				WithError(err).Warn("Feature enabled with an invalid schedule, skipping")
			return featureOutcome{}, err
		}
		if decision.Reason == ReasonChannelUnbound {
			s.logger.WithFields(logrus.Fields{"tenant_id": cfg.TenantID, "feature": feature}).
				Debug("Feature enabled but no channel bound, skipping")
		}
		return featureOutcome{}, nil
	}

	job := unit{tenantID: cfg.TenantID, feature: feature, fs: fs, decision: decision, now: now}
	switch feature {
	case tenant.FeatureBirthday:
		return s.deliverBirthdays(ctx, job)
	case tenant.FeatureSpotlight:
		return s.deliverSpotlight(ctx, job)
	case tenant.FeatureQuestion:
		return s.deliverText(ctx, job, content.KindQuestion, s.recency.QuestionDays, renderQuestion)
	case tenant.FeaturePrompt:
		return s.deliverText(ctx, job, content.KindPrompt, s.recency.PromptDays, renderPrompt)
	default:
		return featureOutcome{}, fmt.Errorf("unknown feature %q", feature)
	}
}

// unit is one fired tenant/feature evaluation.
type unit struct {
	tenantID string
	feature  tenant.Feature
	fs       *tenant.FeatureSchedule
	decision Decision
	now      time.Time
}

func (u unit) log(base *logrus.Entry) *logrus.Entry {
	return base.WithFields(logrus.Fields{"tenant_id": u.tenantID, "feature": u.feature})
}

// deliverBirthdays sends one message per profile whose recurring date is
// tenant-local today. Each profile is claimed separately for the year.
func (s *DeliveryService) deliverBirthdays(ctx context.Context, u unit) (featureOutcome, error) {
	out := featureOutcome{fired: true}
	local := u.decision.Local

	matches, err := s.birthdayMatches(ctx, u.tenantID, local)
	if err != nil {
		return out, err
	}
	if len(matches) == 0 {
		u.log(s.logger).Debug("No birthdays today")
		return out, nil
	}

	var errs []error
	for _, item := range matches {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		key := delivery.AnnualKey(local.Year(), item.ID)
		claimed, err := s.guard.TryClaim(ctx, u.tenantID, u.feature, key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !claimed {
			out.suppressed++
			continue
		}
		err = s.dispatcher.Send(ctx, Dispatch{
			TenantID:  u.tenantID,
			Feature:   u.feature,
			ChannelID: u.fs.ChannelID.Int64,
			Item:      item,
			PeriodKey: key,
			Message:   renderBirthday(item, local),
			At:        u.now,
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out.delivered++
	}
	return out, errors.Join(errs...)
}

// birthdayMatches includes Feb 29 profiles on Feb 28 of non-leap years.
func (s *DeliveryService) birthdayMatches(ctx context.Context, tenantID string, local time.Time) ([]*content.Item, error) {
	today := content.MonthDayOf(local)
	matches, err := s.contents.RecurringMatch(ctx, tenantID, today)
	if err != nil {
		return nil, fmt.Errorf("%w: recurring match %s: %w", ErrStoreReadFailed, today, err)
	}
	if today.Month == time.February && today.Day == 28 && !isLeapYear(local.Year()) {
		leap, err := s.contents.RecurringMatch(ctx, tenantID, content.MonthDay{Month: time.February, Day: 29})
		if err != nil {
			return nil, fmt.Errorf("%w: recurring match 02-29: %w", ErrStoreReadFailed, err)
		}
		matches = append(matches, leap...)
	}
	return matches, nil
}

func isLeapYear(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}

// deliverSpotlight picks one profile per local week, avoiding recent picks.
func (s *DeliveryService) deliverSpotlight(ctx context.Context, u unit) (featureOutcome, error) {
	out := featureOutcome{fired: true}
	key := delivery.WeeklyKey(u.decision.Local)

	claimed, err := s.guard.TryClaim(ctx, u.tenantID, u.feature, key)
	if err != nil {
		return out, err
	}
	if !claimed {
		u.log(s.logger).WithField("period_key", key).Debug("Spotlight already posted this week")
		out.suppressed++
		return out, nil
	}

	item, err := s.pick(ctx, u, content.KindProfile, s.recency.SpotlightDays)
	if err != nil || item == nil {
		return out, err
	}

	err = s.dispatcher.Send(ctx, Dispatch{
		TenantID:  u.tenantID,
		Feature:   u.feature,
		ChannelID: u.fs.ChannelID.Int64,
		Item:      item,
		PeriodKey: key,
		Message:   renderSpotlight(item),
		At:        u.now,
	})
	if err != nil {
		return out, err
	}
	out.delivered++
	return out, nil
}

// deliverText handles the question and prompt features, whose guard is the
// feature's LastDispatchedAt rather than a log read.
func (s *DeliveryService) deliverText(ctx context.Context, u unit, kind content.Kind, recencyDays int, render func(*content.Item) Message) (featureOutcome, error) {
	out := featureOutcome{fired: true}
	if AlreadyDispatched(u.fs, u.decision.TriggerAt) {
		u.log(s.logger).Debug("Already dispatched for this trigger")
		out.suppressed++
		return out, nil
	}

	item, err := s.pick(ctx, u, kind, recencyDays)
	if err != nil || item == nil {
		return out, err
	}

	err = s.dispatcher.Send(ctx, Dispatch{
		TenantID:       u.tenantID,
		Feature:        u.feature,
		ChannelID:      u.fs.ChannelID.Int64,
		Item:           item,
		PeriodKey:      delivery.DailyKey(u.decision.Local),
		Message:        render(item),
		MarkDispatched: true,
		At:             u.now,
	})
	if err != nil {
		return out, err
	}
	out.delivered++
	return out, nil
}

// pick loads the pool and recent history and runs the selector. An empty
// pool is not an error: the feature simply has nothing to post yet.
func (s *DeliveryService) pick(ctx context.Context, u unit, kind content.Kind, recencyDays int) (*content.Item, error) {
	pool, err := s.contents.PoolFor(ctx, u.tenantID, kind)
	if err != nil {
		return nil, fmt.Errorf("%w: content pool %s: %w", ErrStoreReadFailed, kind, err)
	}
	if len(pool) == 0 {
		u.log(s.logger).WithField("kind", kind).Info("Content pool is empty, nothing to post")
		return nil, nil
	}

	var history []*delivery.Entry
	if recencyDays > 0 {
		history, err = s.history.EntriesFor(ctx, u.tenantID, u.feature, u.now.AddDate(0, 0, -recencyDays))
		if err != nil {
			return nil, fmt.Errorf("%w: delivery history: %w", ErrStoreReadFailed, err)
		}
	}

	item, err := s.selector.Select(pool, history, recencyDays, u.now)
	if err != nil {
		return nil, err
	}
	return item, nil
}
