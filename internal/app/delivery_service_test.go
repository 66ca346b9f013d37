package app

import (
	"context"
	"database/sql"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"community_content_bot/internal/domain/content"
	"community_content_bot/internal/domain/delivery"
	"community_content_bot/internal/domain/tenant"
)

type harness struct {
	tenants *fakeTenants
	content *fakeContent
	history *fakeHistory
	sink    *fakeSink
	svc     *DeliveryService
}

func newHarness(cfgs ...*tenant.ScheduleConfig) *harness {
	h := &harness{
		tenants: newFakeTenants(cfgs...),
		content: &fakeContent{},
		history: &fakeHistory{},
		sink:    &fakeSink{failFor: map[int64]error{}, panicOn: map[int64]bool{}},
	}
	h.svc = NewDeliveryService(
		h.tenants, h.content, h.history, h.sink,
		NewTriggerEvaluator(StrictMinuteMatch, time.Hour),
		NewSelector(rand.New(rand.NewPCG(11, 12))),
		RecencySettings{SpotlightDays: 28, QuestionDays: 14},
		quietLogger(),
	)
	return h
}

// 2026-10-12 is a Monday.
var monday = time.Date(2026, 10, 12, 12, 0, 0, 0, time.UTC)

func spotlightTenant(id string, channel int64) *tenant.ScheduleConfig {
	return configWith(id, "UTC", channel, tenant.FeatureSpotlight, tenant.WeeklyAt(time.Monday, tenant.ClockTime{Hour: 12}))
}

func TestRunTickIsIdempotentWithinPeriod(t *testing.T) {
	h := newHarness(spotlightTenant("t1", -1))
	h.content.items = []*content.Item{profile("t1", "p1", nil), profile("t1", "p2", nil)}

	first := h.svc.RunTick(context.Background(), monday)
	if first.Delivered != 1 || first.Failed != 0 {
		t.Fatalf("first tick = %+v", first)
	}
	// Overlapping re-evaluation inside the same minute and the same week.
	second := h.svc.RunTick(context.Background(), monday.Add(30*time.Second))
	if second.Delivered != 0 || second.Suppressed != 1 {
		t.Errorf("second tick = %+v, want suppressed", second)
	}

	if got := len(h.sink.sentTo(-1)); got != 1 {
		t.Errorf("sink got %d messages, want 1", got)
	}
	entries := h.history.forTenant("t1")
	if len(entries) != 1 || entries[0].PeriodKey != "2026-10-12" || entries[0].Feature != tenant.FeatureSpotlight {
		t.Errorf("delivery log = %+v", entries)
	}
}

func TestSpotlightNextWeekAvoidsRepeat(t *testing.T) {
	h := newHarness(spotlightTenant("t1", -1))
	h.content.items = []*content.Item{profile("t1", "p1", nil), profile("t1", "p2", nil)}

	h.svc.RunTick(context.Background(), monday)
	h.svc.RunTick(context.Background(), monday.AddDate(0, 0, 7))

	entries := h.history.forTenant("t1")
	if len(entries) != 2 {
		t.Fatalf("want one entry per week, got %d", len(entries))
	}
	if entries[0].ContentItemID == entries[1].ContentItemID {
		t.Errorf("spotlight repeated %s within the recency window", entries[0].ContentItemID)
	}
	if entries[1].PeriodKey != "2026-10-19" {
		t.Errorf("second period key = %s", entries[1].PeriodKey)
	}
}

func TestPartialFailureIsolation(t *testing.T) {
	h := newHarness(spotlightTenant("t1", -1), spotlightTenant("t2", -2), spotlightTenant("t3", -3))
	for _, id := range []string{"t1", "t2", "t3"} {
		h.content.items = append(h.content.items, profile(id, id+"-p", nil))
	}
	h.sink.failFor[-2] = errBoom

	report := h.svc.RunTick(context.Background(), monday)

	if report.Delivered != 2 || report.Failed != 1 {
		t.Errorf("report = %+v", report)
	}
	for _, tc := range []struct {
		tenant  string
		channel int64
		want    int
	}{{"t1", -1, 1}, {"t2", -2, 0}, {"t3", -3, 1}} {
		if got := len(h.sink.sentTo(tc.channel)); got != tc.want {
			t.Errorf("%s: sink got %d messages, want %d", tc.tenant, got, tc.want)
		}
		if got := len(h.history.forTenant(tc.tenant)); got != tc.want {
			t.Errorf("%s: %d delivery log entries, want %d", tc.tenant, got, tc.want)
		}
	}

	// The failed tenant is retried while the window is still open.
	delete(h.sink.failFor, -2)
	retry := h.svc.RunTick(context.Background(), monday.Add(20*time.Second))
	if retry.Delivered != 1 || len(h.history.forTenant("t2")) != 1 {
		t.Errorf("retry = %+v", retry)
	}
}

func TestPanicInOneTenantDoesNotEscape(t *testing.T) {
	h := newHarness(spotlightTenant("t1", -1), spotlightTenant("t2", -2))
	h.content.items = []*content.Item{profile("t1", "a", nil), profile("t2", "b", nil)}
	h.sink.panicOn[-1] = true

	report := h.svc.RunTick(context.Background(), monday)
	if report.Failed != 1 || report.Delivered != 1 {
		t.Errorf("report = %+v", report)
	}
	if len(h.history.forTenant("t1")) != 0 {
		t.Error("panicking tenant must not get a log entry")
	}
}

func TestStoreFailuresAreScopedToTenant(t *testing.T) {
	h := newHarness(spotlightTenant("t1", -1), spotlightTenant("t3", -3))
	h.tenants.getErr["t2"] = errBoom
	h.content.items = []*content.Item{profile("t1", "a", nil), profile("t3", "c", nil)}

	report := h.svc.RunTick(context.Background(), monday)
	if report.Tenants != 3 || report.Failed != 1 || report.Delivered != 2 {
		t.Errorf("report = %+v", report)
	}

	h.tenants.listErr = errBoom
	if report := h.svc.RunTick(context.Background(), monday); report.Failed != 1 || report.Evaluated != 0 {
		t.Errorf("list failure report = %+v", report)
	}
}

func TestBirthdayMultiMatch(t *testing.T) {
	cfg := configWith("t1", "America/New_York", -1, tenant.FeatureBirthday, tenant.DailyAt(tenant.ClockTime{Hour: 9}))
	h := newHarness(cfg)
	march5 := &content.MonthDay{Month: time.March, Day: 5}
	ada := profile("t1", "ada", march5)
	ada.BirthYear = sql.NullInt32{Int32: 1990, Valid: true}
	h.content.items = []*content.Item{
		ada,
		profile("t1", "grace", march5),
		profile("t1", "linus", &content.MonthDay{Month: time.March, Day: 6}),
	}

	// 09:00 in New York on 2026-03-05 (EST, UTC-5) is 14:00 UTC.
	now := time.Date(2026, 3, 5, 14, 0, 0, 0, time.UTC)
	report := h.svc.RunTick(context.Background(), now)
	if report.Delivered != 2 {
		t.Fatalf("report = %+v, want 2 deliveries", report)
	}

	keys := map[string]bool{}
	for _, e := range h.history.forTenant("t1") {
		keys[e.PeriodKey] = true
	}
	if !keys[delivery.AnnualKey(2026, "ada")] || !keys[delivery.AnnualKey(2026, "grace")] || len(keys) != 2 {
		t.Errorf("period keys = %v", keys)
	}

	msgs := h.sink.sentTo(-1)
	if len(msgs) != 2 || !strings.Contains(msgs[0].text, "turn 36") {
		t.Errorf("messages = %+v", msgs)
	}

	again := h.svc.RunTick(context.Background(), now.Add(10*time.Second))
	if again.Delivered != 0 || again.Suppressed != 2 {
		t.Errorf("repeat tick = %+v", again)
	}
}

func TestBirthdayLeapDayInCommonYear(t *testing.T) {
	cfg := configWith("t1", "UTC", -1, tenant.FeatureBirthday, tenant.DailyAt(tenant.ClockTime{Hour: 9}))
	h := newHarness(cfg)
	h.content.items = []*content.Item{profile("t1", "leap", &content.MonthDay{Month: time.February, Day: 29})}

	report := h.svc.RunTick(context.Background(), time.Date(2027, 2, 28, 9, 0, 0, 0, time.UTC))
	if report.Delivered != 1 {
		t.Errorf("Feb 29 profile should be celebrated on Feb 28 2027, report %+v", report)
	}
}

func TestIntervalPromptUpdatesAnchor(t *testing.T) {
	cfg := configWith("t1", "UTC", -1, tenant.FeaturePrompt, tenant.IntervalAt(3, tenant.ClockTime{Hour: 19}, sql.NullTime{}))
	h := newHarness(cfg)
	h.content.items = []*content.Item{{ID: "q", TenantID: "t1", Kind: content.KindPrompt, Body: "What are you building?"}}

	day0 := time.Date(2026, 10, 10, 19, 0, 0, 0, time.UTC)
	deliveredOn := []int{}
	for day := 0; day <= 6; day++ {
		now := day0.AddDate(0, 0, day)
		r := h.svc.RunTick(context.Background(), now)
		if r.Delivered > 0 {
			deliveredOn = append(deliveredOn, day)
		}
		// A second evaluation in the same minute never double-sends.
		if r2 := h.svc.RunTick(context.Background(), now.Add(15*time.Second)); r2.Delivered != 0 {
			t.Errorf("day %d: duplicate delivery", day)
		}
	}
	if len(deliveredOn) != 3 || deliveredOn[0] != 0 || deliveredOn[1] != 3 || deliveredOn[2] != 6 {
		t.Errorf("delivered on days %v, want [0 3 6]", deliveredOn)
	}

	stored, _ := h.tenants.Get(context.Background(), "t1")
	last := stored.Feature(tenant.FeaturePrompt).Schedule.LastDispatchedAt
	if !last.Valid || !last.Time.Equal(day0.AddDate(0, 0, 6)) {
		t.Errorf("LastDispatchedAt = %+v", last)
	}
}

func TestQuestionFailureLeavesAnchorUntouched(t *testing.T) {
	cfg := configWith("t1", "UTC", -1, tenant.FeatureQuestion, tenant.DailyAt(tenant.ClockTime{Hour: 10}))
	h := newHarness(cfg)
	h.content.items = []*content.Item{{ID: "q1", TenantID: "t1", Kind: content.KindQuestion, Body: "Coffee or tea?"}}
	h.sink.failFor[-1] = errBoom

	now := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)
	report := h.svc.RunTick(context.Background(), now)
	if report.Failed != 1 || report.Delivered != 0 {
		t.Fatalf("report = %+v", report)
	}
	stored, _ := h.tenants.Get(context.Background(), "t1")
	if stored.Feature(tenant.FeatureQuestion).Schedule.LastDispatchedAt.Valid {
		t.Error("LastDispatchedAt must not move when the send fails")
	}
	if len(h.history.forTenant("t1")) != 0 {
		t.Error("no log entry expected after a failed send")
	}
}

func TestDisabledUnboundAndMissingConfig(t *testing.T) {
	unbound := spotlightTenant("t1", -1)
	unbound.Features[tenant.FeatureSpotlight].ChannelID = sql.NullInt64{}
	h := newHarness(unbound, tenant.NewDefaultConfig("t2", "UTC"))
	h.tenants.getErr["t3"] = tenant.ErrTenantNotFound
	h.content.items = []*content.Item{profile("t1", "a", nil)}

	report := h.svc.RunTick(context.Background(), monday)
	if report.Failed != 0 || report.Fired != 0 || len(h.sink.sent) != 0 {
		t.Errorf("report = %+v, sent %d", report, len(h.sink.sent))
	}
}

func TestEmptyPoolIsNotAFailure(t *testing.T) {
	h := newHarness(spotlightTenant("t1", -1))
	report := h.svc.RunTick(context.Background(), monday)
	if report.Fired != 1 || report.Failed != 0 || report.Delivered != 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestContentReadFailureIsReported(t *testing.T) {
	h := newHarness(spotlightTenant("t1", -1))
	h.content.err = errBoom

	report := h.svc.RunTick(context.Background(), monday)
	if report.Failed != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestCancelledTickStopsBeforeNextTenant(t *testing.T) {
	h := newHarness(spotlightTenant("t1", -1), spotlightTenant("t2", -2))
	h.content.items = []*content.Item{profile("t1", "a", nil), profile("t2", "b", nil)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := h.svc.RunTick(ctx, monday)
	if report.Evaluated != 0 || len(h.sink.sent) != 0 {
		t.Errorf("cancelled tick did work: %+v", report)
	}
}

func TestDispatcherRejectsUnboundChannel(t *testing.T) {
	h := newHarness()
	err := h.svc.dispatcher.Send(context.Background(), Dispatch{TenantID: "t1", Item: profile("t1", "a", nil)})
	if !errors.Is(err, ErrChannelUnbound) {
		t.Errorf("err = %v, want ErrChannelUnbound", err)
	}
}

func TestDispatcherToleratesConcurrentClaim(t *testing.T) {
	h := newHarness()
	item := profile("t1", "a", nil)
	d := Dispatch{TenantID: "t1", Feature: tenant.FeatureSpotlight, ChannelID: -1, Item: item,
		PeriodKey: "2026-10-12", Message: renderSpotlight(item), At: monday}

	if err := h.svc.dispatcher.Send(context.Background(), d); err != nil {
		t.Fatalf("first send: %v", err)
	}
	// A racing writer lost the unique key; the send already happened, so no error.
	if err := h.svc.dispatcher.Send(context.Background(), d); err != nil {
		t.Errorf("second send: %v", err)
	}
	if len(h.history.forTenant("t1")) != 1 {
		t.Error("unique key must keep a single entry")
	}
}

func TestCancelDuringSendStillRecords(t *testing.T) {
	tests := []struct {
		name    string
		feature tenant.Feature
		sched   tenant.ScheduleDescriptor
		item    *content.Item
		now     time.Time
	}{
		{
			name:    "spotlight",
			feature: tenant.FeatureSpotlight,
			sched:   tenant.WeeklyAt(time.Monday, tenant.ClockTime{Hour: 12}),
			item:    profile("t1", "p1", nil),
			now:     monday,
		},
		{
			name:    "prompt",
			feature: tenant.FeaturePrompt,
			sched:   tenant.IntervalAt(3, tenant.ClockTime{Hour: 19}, sql.NullTime{}),
			item:    &content.Item{ID: "q", TenantID: "t1", Kind: content.KindPrompt, Body: "What shipped?"},
			now:     time.Date(2026, 10, 12, 19, 0, 0, 0, time.UTC),
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(configWith("t1", "UTC", -1, tc.feature, tc.sched), spotlightTenant("t2", -2))
			h.content.items = []*content.Item{tc.item, profile("t2", "other", nil)}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			h.sink.afterSend = func(int64) { cancel() }

			report := h.svc.RunTick(ctx, tc.now)
			if report.Delivered != 1 || report.Failed != 0 {
				t.Errorf("report = %+v, want one delivery and no failure", report)
			}
			entries := h.history.forTenant("t1")
			if len(entries) != 1 || entries[0].ContentItemID != tc.item.ID {
				t.Fatalf("delivery log = %+v, want the sent item", entries)
			}
			if tc.feature == tenant.FeaturePrompt {
				cfg, _ := h.tenants.Get(context.Background(), "t1")
				if last := cfg.Feature(tc.feature).Schedule.LastDispatchedAt; !last.Valid || !last.Time.Equal(tc.now) {
					t.Errorf("LastDispatchedAt = %+v, want %s", last, tc.now)
				}
			}
			if len(h.sink.sentTo(-2)) != 0 {
				t.Error("tenant after the cancellation must not be processed")
			}
		})
	}
}

func TestInvalidStoredScheduleIsCounted(t *testing.T) {
	cfg := configWith("t1", "UTC", -1, tenant.FeaturePrompt, tenant.IntervalAt(0, tenant.ClockTime{Hour: 19}, sql.NullTime{}))
	h := newHarness(cfg)
	h.content.items = []*content.Item{{ID: "q", TenantID: "t1", Kind: content.KindPrompt, Body: "Hi"}}

	report := h.svc.RunTick(context.Background(), time.Date(2026, 10, 12, 19, 0, 0, 0, time.UTC))
	if report.Failed != 1 || report.Fired != 0 || len(h.sink.sent) != 0 {
		t.Errorf("report = %+v, want one failed unit and nothing sent", report)
	}

	_, err := h.svc.runFeature(context.Background(), cfg, time.UTC, tenant.FeaturePrompt, time.Date(2026, 10, 12, 19, 0, 0, 0, time.UTC))
	if !errors.Is(err, ErrInvalidSchedule) {
		t.Errorf("err = %v, want ErrInvalidSchedule", err)
	}
}
