package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/FeelPulse/haven/internal/auth"
	"github.com/FeelPulse/haven/internal/chat"
	"github.com/FeelPulse/haven/internal/ratelimit"
	"github.com/FeelPulse/haven/internal/tui"
	"github.com/FeelPulse/haven/pkg/types"
)

// newSession builds a chat session on the stored tokens. Refreshed tokens are
// written back; an expired session clears them.
func (a *app) newSession(tokens types.TokenPair, opts ...chat.Option) *chat.Session {
	base := []chat.Option{
		chat.WithLogger(a.log.WithComponent("chat")),
		chat.WithMetrics(a.metrics),
		chat.WithTokenRefreshed(func(t types.TokenPair) {
			if err := a.auth.SaveTokens(t); err != nil {
				a.log.Warn("Failed to store refreshed token: %v", err)
			}
		}),
	}
	return chat.New(a.client, tokens, append(base, opts...)...)
}

func (a *app) storedTokens() (types.TokenPair, error) {
	tokens, err := a.auth.Tokens()
	if errors.Is(err, auth.ErrNotLoggedIn) {
		fmt.Fprintln(a.out, "❌ Not logged in. Run: haven login")
		return types.TokenPair{}, errSilent
	}
	return tokens, err
}

func (a *app) expire() {
	if err := a.auth.Expire(); err != nil {
		a.log.Warn("Failed to clear expired session: %v", err)
	}
}

func (a *app) cmdChat(ctx context.Context) error {
	tokens, err := a.storedTokens()
	if err != nil {
		return err
	}

	// The chat screen owns the terminal; logs go to the file until it exits
	if a.cfg.Log.File != "" {
		closer, err := a.log.OpenFile(a.cfg.Log.File)
		if err != nil {
			return err
		}
		defer func() {
			a.log.SetOutput(os.Stderr)
			closer.Close()
		}()
	}

	notify, events := tui.NotifyChannel()
	session := a.newSession(tokens,
		chat.WithWelcome(a.cfg.Chat.Welcome),
		chat.WithNotify(notify),
		chat.WithLogout(a.expire),
	)

	res, err := tui.Run(tui.Options{
		Session: session,
		Events:  events,
		Limiter: ratelimit.New(a.cfg.Chat.RateLimit),
		Account: a.auth.Email(),
		Backend: a.client.BaseURL(),
		Metrics: a.metrics,
		Logout:  a.auth.Logout,
	})
	if err != nil {
		return fmt.Errorf("chat screen: %w", err)
	}

	switch {
	case res.Expired:
		fmt.Fprintln(a.out, "⚠️  "+chat.TextSessionExpired)
		fmt.Fprintln(a.out, "🔑 Sign in: haven login")
	case res.LoggedOut:
		fmt.Fprintln(a.out, "✅ Logged out")
	}
	return nil
}

// cmdAsk sends one message and prints the agent's answer with its listings.
// A failed send is printed like a reply and makes the command fail.
func (a *app) cmdAsk(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("usage: haven ask <message>")
	}
	tokens, err := a.storedTokens()
	if err != nil {
		return err
	}

	expired := false
	session := a.newSession(tokens, chat.WithLogout(func() {
		expired = true
		a.expire()
	}))

	if !session.Send(ctx, text) {
		return errors.New("message was not sent")
	}

	msgs := session.Messages()
	reply := msgs[len(msgs)-1]
	fmt.Fprintln(a.out, reply.Text)
	for i, l := range reply.Listings {
		fmt.Fprintln(a.out, formatListingLine(i+1, l))
	}

	if expired || session.State() == chat.StateFailed {
		return errSilent
	}
	return nil
}

// formatListingLine is the plain one-line form of a listing for scripts
func formatListingLine(n int, l types.Listing) string {
	parts := []string{fmt.Sprintf("%d.", n)}
	if l.Title != "" {
		parts = append(parts, l.Title)
	} else {
		parts = append(parts, "Elite Property")
	}
	if l.Location != "" {
		parts = append(parts, "| "+l.Location)
	}
	if l.Price != nil {
		parts = append(parts, "| "+l.Price.String())
	}
	if l.Configuration != nil {
		parts = append(parts, fmt.Sprintf("| %g BHK", *l.Configuration))
	}
	if l.Action != "" {
		parts = append(parts, "| "+string(l.Action))
	}
	if l.ID != "" {
		parts = append(parts, "["+l.ID+"]")
	}
	return strings.Join(parts, " ")
}
