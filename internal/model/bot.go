package model

// Bot is a game-server trading bot that holds deposited items.
type Bot struct {
	ID      int64 `json:"id"`
	Banned  bool  `json:"banned"`
	Active  bool  `json:"active"`
	CanJoin bool  `json:"can_join"`
}

// Eligible reports whether the bot may serve withdrawals.
func (b Bot) Eligible() bool {
	return b.Active && !b.Banned && b.CanJoin
}

// User is a player account, looked up case-insensitively by username.
type User struct {
	Username string `json:"username"`
}
