package moderation

import (
	"context"
	"strings"

	"referral-bot/internal/fanout"
)

type DraftState string

const (
	DraftAwaitingMessage DraftState = "awaiting_message"
	DraftAwaitingConfirm DraftState = "awaiting_confirm"
)

// Draft is the operator's broadcast being composed.
type Draft struct {
	State DraftState `json:"state"`
	Text  string     `json:"text,omitempty"`
}

// BeginBroadcast starts composing a broadcast.
func (g *Gateway) BeginBroadcast(ctx context.Context, caller int64) error {
	if err := g.authorize(caller); err != nil {
		return err
	}
	return g.drafts.Put(ctx, caller, Draft{State: DraftAwaitingMessage})
}

// ActiveDraft returns the draft being composed by caller. Non-operators never
// have one.
func (g *Gateway) ActiveDraft(ctx context.Context, caller int64) (Draft, bool, error) {
	if !g.IsOperator(caller) {
		return Draft{}, false, nil
	}
	return g.drafts.Get(ctx, caller)
}

// DraftMessage stores the message and asks for confirmation.
func (g *Gateway) DraftMessage(ctx context.Context, caller int64, text string) (Draft, error) {
	if err := g.authorize(caller); err != nil {
		return Draft{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Draft{}, ErrEmptyMessage
	}

	d := Draft{State: DraftAwaitingConfirm, Text: text}
	if err := g.drafts.Put(ctx, caller, d); err != nil {
		return Draft{}, err
	}
	return d, nil
}

// ConfirmBroadcast sends the drafted message when answer is "yes" and
// discards the draft otherwise. sent reports whether the broadcast ran.
func (g *Gateway) ConfirmBroadcast(ctx context.Context, caller int64, answer string) (tally fanout.Tally, sent bool, err error) {
	if err := g.authorize(caller); err != nil {
		return fanout.Tally{}, false, err
	}

	d, ok, err := g.drafts.Get(ctx, caller)
	if err != nil {
		return fanout.Tally{}, false, err
	}
	if err := g.drafts.Delete(ctx, caller); err != nil {
		return fanout.Tally{}, false, err
	}
	if !ok || d.State != DraftAwaitingConfirm || !strings.EqualFold(strings.TrimSpace(answer), "yes") {
		return fanout.Tally{}, false, nil
	}

	tally, err = g.Broadcast(ctx, caller, d.Text)
	if err != nil {
		return fanout.Tally{}, false, err
	}
	return tally, true, nil
}

func (g *Gateway) CancelDraft(ctx context.Context, caller int64) (bool, error) {
	if !g.IsOperator(caller) {
		return false, nil
	}
	_, ok, err := g.drafts.Get(ctx, caller)
	if err != nil || !ok {
		return false, err
	}
	return true, g.drafts.Delete(ctx, caller)
}
