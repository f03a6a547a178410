// Package notify delivers ticket notices to staff channels.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Kind labels a notice.
type Kind string

const (
	KindEscalated  Kind = "escalated"
	KindAutoClosed Kind = "auto_closed"
	KindSLABreach  Kind = "sla_breached"
	KindAssigned   Kind = "assigned"
)

// Field is a labelled value rendered with a notice.
type Field struct {
	Name  string
	Value string
}

// Notice is a single staff-facing notification.
type Notice struct {
	Kind     Kind
	TicketID string
	TraceID  string
	Title    string
	Fields   []Field
	At       time.Time
}

// Notifier delivers notices.
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

// LogNotifier writes notices to the log. It is used when no channel is configured.
type LogNotifier struct {
	Logger *zap.Logger
}

func (l LogNotifier) Notify(_ context.Context, n Notice) error {
	fields := []zap.Field{
		zap.String("kind", string(n.Kind)),
		zap.String("ticket_id", n.TicketID),
		zap.String("trace_id", n.TraceID),
		zap.String("title", n.Title),
	}
	for _, f := range n.Fields {
		fields = append(fields, zap.String(f.Name, f.Value))
	}
	l.Logger.Info("ticket notice", fields...)
	return nil
}

// DiscordNotifier posts notices as embeds to one channel.
type DiscordNotifier struct {
	session   *discordgo.Session
	channelID string
}

// NewDiscordNotifier opens a bot session. No gateway connection is made;
// messages go through the REST API.
func NewDiscordNotifier(botToken, channelID string) (*DiscordNotifier, error) {
	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return &DiscordNotifier{session: session, channelID: channelID}, nil
}

func (d *DiscordNotifier) Notify(ctx context.Context, n Notice) error {
	if _, err := d.session.ChannelMessageSendEmbed(d.channelID, BuildEmbed(n), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send discord notice: %w", err)
	}
	return nil
}

// Close closes the underlying session.
func (d *DiscordNotifier) Close() {
	if d.session != nil {
		_ = d.session.Close()
	}
}

// BuildEmbed renders a notice as a Discord embed.
func BuildEmbed(n Notice) *discordgo.MessageEmbed {
	color := 0x3498DB
	heading := "Ticket update"
	switch n.Kind {
	case KindEscalated:
		color = 0xF39C12
		heading = "Needs a human"
	case KindAutoClosed:
		color = 0x2ECC71
		heading = "Auto-resolved"
	case KindSLABreach:
		color = 0xE74C3C
		heading = "SLA breached"
	case KindAssigned:
		heading = "Assigned"
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Ticket", Value: n.TicketID, Inline: true},
	}
	if n.TraceID != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Trace", Value: n.TraceID, Inline: true})
	}
	for _, f := range n.Fields {
		fields = append(fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: true})
	}

	at := n.At
	if at.IsZero() {
		at = time.Now()
	}
	return &discordgo.MessageEmbed{
		Title:     fmt.Sprintf("%s: %s", heading, n.Title),
		Color:     color,
		Fields:    fields,
		Timestamp: at.UTC().Format(time.RFC3339),
		Footer:    &discordgo.MessageEmbedFooter{Text: "ticket-triage"},
	}
}
