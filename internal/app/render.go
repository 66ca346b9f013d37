package app

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"community_content_bot/internal/domain/content"

	"gopkg.in/telebot.v3"
)

// Message is rendered content ready for the sink.
type Message struct {
	Text    string
	Options *telebot.SendOptions
}

func htmlMessage(text string) Message {
	return Message{
		Text:    text,
		Options: &telebot.SendOptions{ParseMode: telebot.ModeHTML, DisableWebPagePreview: true},
	}
}

// mention links the owner's Telegram account when known.
func mention(item *content.Item) string {
	name := html.EscapeString(item.Title)
	if item.OwnerUserID.Valid {
		return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, item.OwnerUserID.Int64, name)
	}
	return "<b>" + name + "</b>"
}

func renderBirthday(item *content.Item, localDate time.Time) Message {
	var b strings.Builder
	b.WriteString("🎂 Happy birthday, ")
	b.WriteString(mention(item))
	b.WriteString("!")
	if age, ok := item.AgeOn(localDate); ok && age > 0 {
		fmt.Fprintf(&b, " Today you turn %d.", age)
	}
	return htmlMessage(b.String())
}

func renderSpotlight(item *content.Item) Message {
	var b strings.Builder
	b.WriteString("🌟 <b>Spotlight of the week</b>\n\n")
	b.WriteString(mention(item))
	b.WriteString("\n")
	if item.Body != "" {
		b.WriteString("\n")
		b.WriteString(html.EscapeString(item.Body))
		b.WriteString("\n")
	}
	if len(item.Fields) > 0 {
		keys := make([]string, 0, len(item.Fields))
		for k := range item.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "<b>%s:</b> %s\n", html.EscapeString(k), html.EscapeString(item.Fields[k]))
		}
	}
	return htmlMessage(strings.TrimRight(b.String(), "\n"))
}

func renderQuestion(item *content.Item) Message {
	return htmlMessage("❓ <b>Question of the day</b>\n\n" + html.EscapeString(textOf(item)))
}

func renderPrompt(item *content.Item) Message {
	return htmlMessage("💬 <b>Discussion prompt</b>\n\n" + html.EscapeString(textOf(item)))
}

func textOf(item *content.Item) string {
	if item.Body != "" {
		return item.Body
	}
	return item.Title
}
