// Package notify posts deposit and withdrawal summaries to a Discord webhook.
// Delivery is best effort: callers never wait and failures are only logged.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"botevents-api/internal/model"
)

// Kind identifies the ledger event a notice describes.
type Kind string

const (
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
)

const (
	colorLarge = 0x00ff99
	colorSmall = 0x808080

	// Notices with more items than this use colorLarge.
	largeBatch = 3
)

// Item is one line of a notice.
type Item struct {
	Name    string
	Value   float64
	Variant model.Variant
}

// Notice summarises one deposit or withdrawal.
type Notice struct {
	Kind     Kind
	BotID    int64
	Username string
	Items    []Item
	At       time.Time
}

// Notifier delivers notices without blocking the caller.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
	Close() error
}

// Nop discards every notice.
type Nop struct{}

func (Nop) Notify(context.Context, Notice) {}
func (Nop) Close() error                   { return nil }

// Embed renders a notice as a Discord embed.
func Embed(n Notice) *discordgo.MessageEmbed {
	color := colorSmall
	if len(n.Items) > largeBatch {
		color = colorLarge
	}

	lines := make([]string, 0, len(n.Items))
	for _, it := range n.Items {
		letters := strings.Join(it.Variant.Letters(), ",")
		switch n.Kind {
		case KindDeposit:
			lines = append(lines, strings.TrimSpace(fmt.Sprintf("**%s** (%g value) %s", it.Name, it.Value, letters)))
		default:
			lines = append(lines, strings.TrimSpace(fmt.Sprintf("**%s**  %s", it.Name, letters)))
		}
	}
	items := strings.Join(lines, "\n")

	at := n.At
	if at.IsZero() {
		at = time.Now()
	}

	embed := &discordgo.MessageEmbed{
		Color:     color,
		Timestamp: at.UTC().Format(time.RFC3339),
	}

	switch n.Kind {
	case KindDeposit:
		embed.Title = "📥 New User Deposit"
		embed.Description = fmt.Sprintf("**From:** %s\n**To Bot:** %d\n**Total Items:** %d\n\n**Items:**\n%s",
			n.Username, n.BotID, len(n.Items), items)
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "Deposit Logger"}
	default:
		embed.Title = "📤 User Withdrawal"
		embed.Description = fmt.Sprintf("**User:** %s\n**Bot:** %d\n**Total Items:** %d\n\n**Withdrawn Items:**\n%s",
			n.Username, n.BotID, len(n.Items), items)
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "Withdrawal Logger"}
	}
	return embed
}
