package app

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"community_content_bot/internal/domain/content"
	"community_content_bot/internal/domain/delivery"
	"community_content_bot/internal/domain/tenant"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type fakeTenants struct {
	mu      sync.Mutex
	configs map[string]*tenant.ScheduleConfig
	listErr error
	getErr  map[string]error
}

func newFakeTenants(cfgs ...*tenant.ScheduleConfig) *fakeTenants {
	f := &fakeTenants{configs: map[string]*tenant.ScheduleConfig{}, getErr: map[string]error{}}
	for _, c := range cfgs {
		f.configs[c.TenantID] = c
	}
	return f
}

func (f *fakeTenants) ListTenantIDs(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	ids := make([]string, 0, len(f.configs)+len(f.getErr))
	for id := range f.configs {
		ids = append(ids, id)
	}
	for id := range f.getErr {
		if _, ok := f.configs[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeTenants) Get(_ context.Context, id string) (*tenant.ScheduleConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.getErr[id]; err != nil {
		return nil, err
	}
	cfg, ok := f.configs[id]
	if !ok {
		return nil, tenant.ErrTenantNotFound
	}
	// Hand out a copy like a real store would.
	cp := *cfg
	cp.Features = make(map[tenant.Feature]*tenant.FeatureSchedule, len(cfg.Features))
	for k, v := range cfg.Features {
		fs := *v
		cp.Features[k] = &fs
	}
	return &cp, nil
}

func (f *fakeTenants) CreateIfMissing(_ context.Context, cfg *tenant.ScheduleConfig) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.configs[cfg.TenantID]; ok {
		return false, nil
	}
	f.configs[cfg.TenantID] = cfg
	return true, nil
}

func (f *fakeTenants) UpdateLastDispatched(ctx context.Context, id string, feature tenant.Feature, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg, ok := f.configs[id]
	if !ok || cfg.Features[feature] == nil {
		return tenant.ErrTenantNotFound
	}
	cfg.Features[feature].Schedule.LastDispatchedAt = sql.NullTime{Time: at, Valid: true}
	return nil
}

type fakeContent struct {
	items []*content.Item
	err   error
}

func (f *fakeContent) PoolFor(_ context.Context, tenantID string, kind content.Kind) ([]*content.Item, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*content.Item
	for _, it := range f.items {
		if it.TenantID == tenantID && it.Kind == kind {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeContent) RecurringMatch(_ context.Context, tenantID string, md content.MonthDay) ([]*content.Item, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*content.Item
	for _, it := range f.items {
		if it.TenantID == tenantID && it.Kind == content.KindProfile && it.Recurring != nil && *it.Recurring == md {
			out = append(out, it)
		}
	}
	return out, nil
}

// fakeHistory enforces the (tenant, feature, period key) uniqueness like the SQL store.
type fakeHistory struct {
	mu      sync.Mutex
	entries []*delivery.Entry
}

func (f *fakeHistory) EntriesFor(_ context.Context, tenantID string, feature tenant.Feature, since time.Time) ([]*delivery.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*delivery.Entry
	for _, e := range f.entries {
		if e.TenantID == tenantID && e.Feature == feature && (since.IsZero() || !e.DispatchedAt.Before(since)) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeHistory) Exists(_ context.Context, tenantID string, feature tenant.Feature, periodKey string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.TenantID == tenantID && e.Feature == feature && e.PeriodKey == periodKey {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeHistory) Append(ctx context.Context, entry *delivery.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.TenantID == entry.TenantID && e.Feature == entry.Feature && e.PeriodKey == entry.PeriodKey {
			return delivery.ErrAlreadyClaimed
		}
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeHistory) forTenant(tenantID string) []*delivery.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*delivery.Entry
	for _, e := range f.entries {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	return out
}

type sentMessage struct {
	chatID int64
	text   string
}

type fakeSink struct {
	mu      sync.Mutex
	sent    []sentMessage
	failFor map[int64]error
	panicOn map[int64]bool
	// afterSend runs once the message is recorded as sent.
	afterSend func(chatID int64)
}

func (f *fakeSink) SendMessage(chatID int64, text string, _ *telebot.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOn[chatID] {
		panic("sink exploded")
	}
	if err := f.failFor[chatID]; err != nil {
		return err
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	if f.afterSend != nil {
		f.afterSend(chatID)
	}
	return nil
}

func (f *fakeSink) sentTo(chatID int64) []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMessage
	for _, m := range f.sent {
		if m.chatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

var errBoom = errors.New("boom")

// configWith builds a tenant config with a single enabled, bound feature.
func configWith(tenantID, tz string, channel int64, feature tenant.Feature, sched tenant.ScheduleDescriptor) *tenant.ScheduleConfig {
	cfg := tenant.NewDefaultConfig(tenantID, tz)
	fs := cfg.Features[feature]
	fs.Enabled = true
	fs.ChannelID = sql.NullInt64{Int64: channel, Valid: true}
	fs.Schedule = sched
	return cfg
}

func profile(tenantID, id string, md *content.MonthDay) *content.Item {
	return &content.Item{ID: id, TenantID: tenantID, Kind: content.KindProfile, Title: "Member " + id, Recurring: md}
}
