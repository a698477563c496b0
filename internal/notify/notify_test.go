package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botevents-api/internal/model"
)

type fakeExecutor struct {
	mu     sync.Mutex
	calls  []*discordgo.WebhookParams
	id     string
	token  string
	result error
}

func (f *fakeExecutor) WebhookExecute(webhookID, token string, _ bool, data *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.id, f.token = webhookID, token
	f.calls = append(f.calls, data)
	return nil, f.result
}

func TestEmbed_Deposit(t *testing.T) {
	n := Notice{
		Kind:     KindDeposit,
		BotID:    42,
		Username: "alice",
		Items: []Item{
			{Name: "Dragon", Value: 12.5, Variant: model.NewVariant(true, false, true, true)},
			{Name: "Cat", Value: 1},
		},
		At: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	e := Embed(n)
	assert.Equal(t, "📥 New User Deposit", e.Title)
	assert.Equal(t, colorSmall, e.Color)
	assert.Equal(t, "Deposit Logger", e.Footer.Text)
	assert.Equal(t, "2024-01-02T03:04:05Z", e.Timestamp)
	assert.Contains(t, e.Description, "**From:** alice")
	assert.Contains(t, e.Description, "**To Bot:** 42")
	assert.Contains(t, e.Description, "**Dragon** (12.5 value) M,R,F")
	assert.Contains(t, e.Description, "**Cat** (1 value)")
}

func TestEmbed_WithdrawalColorBySize(t *testing.T) {
	items := make([]Item, 4)
	for i := range items {
		items[i] = Item{Name: "Egg", Variant: model.NewVariant(false, true, false, false)}
	}

	e := Embed(Notice{Kind: KindWithdrawal, BotID: 1, Username: "bob", Items: items})
	assert.Equal(t, "📤 User Withdrawal", e.Title)
	assert.Equal(t, colorLarge, e.Color)
	assert.Equal(t, "Withdrawal Logger", e.Footer.Text)
	assert.Contains(t, e.Description, "**Egg**  N")

	e = Embed(Notice{Kind: KindWithdrawal, Items: items[:3]})
	assert.Equal(t, colorSmall, e.Color)
}

func TestParseWebhookURL(t *testing.T) {
	id, token, err := ParseWebhookURL("https://discord.com/api/webhooks/123456/abc-DEF_ghi")
	require.NoError(t, err)
	assert.Equal(t, "123456", id)
	assert.Equal(t, "abc-DEF_ghi", token)

	_, _, err = ParseWebhookURL("https://discord.com/api/channels/1")
	assert.Error(t, err)

	_, _, err = ParseWebhookURL("://bad")
	assert.Error(t, err)
}

func TestDiscordNotifier_SendsInBackground(t *testing.T) {
	exec := &fakeExecutor{}
	d := newDiscordNotifier(exec, "123", "tok", time.Second)

	d.Notify(context.Background(), Notice{Kind: KindDeposit, Username: "alice", Items: []Item{{Name: "Dragon"}}})
	require.NoError(t, d.Close())

	exec.mu.Lock()
	defer exec.mu.Unlock()
	require.Len(t, exec.calls, 1)
	assert.Equal(t, "123", exec.id)
	assert.Equal(t, "tok", exec.token)
	require.Len(t, exec.calls[0].Embeds, 1)
	assert.Equal(t, "📥 New User Deposit", exec.calls[0].Embeds[0].Title)
}

func TestDiscordNotifier_FailureIsSwallowed(t *testing.T) {
	exec := &fakeExecutor{result: errors.New("rate limited")}
	d := newDiscordNotifier(exec, "123", "tok", time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	d.Notify(ctx, Notice{Kind: KindWithdrawal})
	cancel()

	assert.NoError(t, d.Close())
}
