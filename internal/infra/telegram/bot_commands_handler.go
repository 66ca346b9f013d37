// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"community_content_bot/internal/app"
	"community_content_bot/internal/domain/tenant"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func isGroup(c *telebot.Chat) bool {
	return c != nil && (c.Type == telebot.ChatGroup || c.Type == telebot.ChatSuperGroup || c.Type == telebot.ChatChannel)
}

// RegisterBotCommands wires /start, /help and /schedule.
func RegisterBotCommands(
	ctx context.Context,
	b *telebot.Bot,
	tenantService *app.TenantService,
	baseLogger *logrus.Entry,
) {
	b.Handle("/start", func(c telebot.Context) error {
		logCtx := baseLogger.WithFields(logrus.Fields{"command": "/start", "chat_id": c.Chat().ID})

		if !isGroup(c.Chat()) {
			logCtx.Info("Private /start")
			return c.Send("Hi! Add me to your community group and send /start there to set it up.")
		}

		tenantID := app.TenantIDForChat(c.Chat().ID)
		created, err := tenantService.EnsureTenant(ctx, tenantID)
		if err != nil {
			logCtx.WithError(err).Error("Could not register tenant")
			return c.Send("Something went wrong while setting up this community. Please try again later.")
		}
		if created {
			logCtx.WithField("tenant_id", tenantID).Info("Tenant registered with default schedule")
			return c.Send("Community registered. All features start disabled; an admin can enable them and bind channels from the dashboard. Use /schedule to see the current setup.")
		}
		return c.Send("This community is already registered. Use /schedule to see the current setup.")
	})

	b.Handle("/help", func(c telebot.Context) error {
		var helpText strings.Builder
		helpText.WriteString("I post scheduled content into your community:\n\n")
		helpText.WriteString("• birthdays of registered members\n")
		helpText.WriteString("• a weekly member spotlight\n")
		helpText.WriteString("• a question of the day\n")
		helpText.WriteString("• a recurring discussion prompt\n\n")
		helpText.WriteString("/start - register this group\n")
		helpText.WriteString("/schedule - show what is enabled and when it posts\n")
		helpText.WriteString("/help - show this message")
		return c.Send(helpText.String())
	})

	b.Handle("/schedule", func(c telebot.Context) error {
		logCtx := baseLogger.WithFields(logrus.Fields{"command": "/schedule", "chat_id": c.Chat().ID})
		tenantID := app.TenantIDForChat(c.Chat().ID)

		cfg, statuses, err := tenantService.Overview(ctx, tenantID, time.Now())
		if err != nil {
			if errors.Is(err, tenant.ErrTenantNotFound) {
				return c.Send("This chat is not registered yet. Send /start in the group first.")
			}
			logCtx.WithError(err).Error("Could not build schedule overview")
			return c.Send("Could not load the schedule. Please try again later.")
		}
		return c.Send(formatOverview(cfg, statuses), &telebot.SendOptions{ParseMode: telebot.ModeHTML})
	})
}

func formatOverview(cfg *tenant.ScheduleConfig, statuses []app.FeatureStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Schedule</b> (timezone %s)\n\n", html.EscapeString(cfg.Timezone))
	for _, st := range statuses {
		state := "off"
		switch {
		case st.Enabled && st.ChannelBound:
			state = "on"
		case st.Enabled:
			state = "on, no channel bound"
		}
		fmt.Fprintf(&b, "<b>%s</b>: %s, %s", st.Feature, state, html.EscapeString(st.Schedule))
		if st.LastSentAt != nil {
			fmt.Fprintf(&b, ", last sent %s", st.LastSentAt.Format("2006-01-02 15:04"))
		}
		b.WriteString("\n")
	}
	return b.String()
}
