package app

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"community_content_bot/internal/domain/tenant"
)

// TenantService owns the tenant lifecycle the bot itself drives: creating a
// default config the first time a community is seen, and describing it.
type TenantService struct {
	configs         tenant.Repository
	evaluator       *TriggerEvaluator
	defaultTimezone string
}

func NewTenantService(configs tenant.Repository, evaluator *TriggerEvaluator, defaultTimezone string) *TenantService {
	return &TenantService{
		configs:         configs,
		evaluator:       evaluator,
		defaultTimezone: defaultTimezone,
	}
}

// TenantIDForChat maps a Telegram group to its tenant id.
func TenantIDForChat(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

// EnsureTenant creates the default config for tenantID unless one exists.
// It reports whether a config was created.
func (s *TenantService) EnsureTenant(ctx context.Context, tenantID string) (bool, error) {
	if tenantID == "" {
		return false, fmt.Errorf("empty tenant id")
	}
	if _, err := time.LoadLocation(s.defaultTimezone); err != nil {
		return false, fmt.Errorf("default timezone %q: %w", s.defaultTimezone, err)
	}
	created, err := s.configs.CreateIfMissing(ctx, tenant.NewDefaultConfig(tenantID, s.defaultTimezone))
	if err != nil {
		return false, fmt.Errorf("failed to create tenant config: %w", err)
	}
	return created, nil
}

// FeatureStatus is a read-only view of one feature for the /schedule command.
type FeatureStatus struct {
	Feature      tenant.Feature
	Enabled      bool
	ChannelBound bool
	Schedule     string
	LastSentAt   *time.Time
	FiresNow     bool
	Reason       string
}

// Overview describes each feature of tenantID as evaluated at now.
func (s *TenantService) Overview(ctx context.Context, tenantID string, now time.Time) (*tenant.ScheduleConfig, []FeatureStatus, error) {
	cfg, err := s.configs.Get(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}

	statuses := make([]FeatureStatus, 0, len(tenant.AllFeatures))
	for _, f := range tenant.AllFeatures {
		fs := cfg.Feature(f)
		st := FeatureStatus{Feature: f}
		if fs != nil {
			st.Enabled = fs.Enabled
			st.ChannelBound = fs.ChannelID.Valid
			st.Schedule = fs.Schedule.String()
			if last := fs.Schedule.LastDispatchedAt; last.Valid {
				t := last.Time.In(loc)
				st.LastSentAt = &t
			}
		}
		d := s.evaluator.Evaluate(now, loc, fs)
		st.FiresNow = d.Fire
		st.Reason = d.Reason
		statuses = append(statuses, st)
	}
	return cfg, statuses, nil
}
