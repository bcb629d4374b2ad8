package view

import (
	"fmt"
	"strings"

	"github.com/hfcRed/Agent-8s-sub000/internal/discord"
	"github.com/hfcRed/Agent-8s-sub000/internal/lobby"
	internalview "github.com/hfcRed/Agent-8s-sub000/internal/view"
)

const (
	colorOpen     = 0x5865F2
	colorStarting = 0xFEE75C
	colorStarted  = 0x57F287
	colorTerminal = 0x99AAB5
)

// EmbedBuilder renders a lobby snapshot into the anchor embed and its button
// row. It is a pure function of the snapshot; terminal lobbies render with
// no controls at all.
type EmbedBuilder struct{}

func NewEmbedBuilder() internalview.Builder {
	return &EmbedBuilder{}
}

func (b *EmbedBuilder) BuildMessage(snap internalview.Snapshot) discord.MessageContent {
	msg := discord.MessageContent{
		Title:       fmt.Sprintf("8s Lobby (%d/%d)", len(snap.Participants), snap.Capacity),
		Description: b.description(snap),
		Color:       b.color(snap),
		Fields: []discord.EmbedField{
			{Name: "Players", Value: b.participantList(snap), Inline: false},
		},
	}
	if len(snap.Waitlist) > 0 {
		msg.Fields = append(msg.Fields, discord.EmbedField{
			Name:  fmt.Sprintf("Waitlist (%d)", len(snap.Waitlist)),
			Value: mentionList(snap.Waitlist),
		})
	}
	if len(snap.Spectators) > 0 {
		msg.Fields = append(msg.Fields, discord.EmbedField{
			Name:   "Spectators",
			Value:  mentionList(snap.Spectators),
			Inline: true,
		})
	}
	if snap.Terminal {
		return msg
	}
	msg.Buttons = b.buttons(snap)
	return msg
}

func (b *EmbedBuilder) description(snap internalview.Snapshot) string {
	switch snap.State {
	case "open":
		if snap.IsFull() {
			return "Lobby is full and ready to start."
		}
		return fmt.Sprintf("Waiting for players. %d seat(s) open.", snap.Capacity-len(snap.Participants))
	case "starting":
		return fmt.Sprintf("Lobby is full! Match starts <t:%d:R>.", snap.AutoStartAt.Unix())
	case "started":
		return fmt.Sprintf("Match `%s` is running since <t:%d:R>.", snap.MatchID, snap.StartedAt.Unix())
	case "finished":
		return "Match finished. Thanks for playing!"
	case "cancelled":
		return "This lobby was cancelled."
	case "expired":
		return "This lobby expired after sitting open too long."
	case "shutdown":
		return "The bot shut down; please open a new lobby."
	default:
		return ""
	}
}

func (b *EmbedBuilder) color(snap internalview.Snapshot) int {
	switch snap.State {
	case "open":
		return colorOpen
	case "starting":
		return colorStarting
	case "started":
		return colorStarted
	default:
		return colorTerminal
	}
}

func (b *EmbedBuilder) participantList(snap internalview.Snapshot) string {
	if len(snap.Participants) == 0 {
		return "Nobody yet."
	}
	var sb strings.Builder
	for i, p := range snap.Participants {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%d. <@%s>", i+1, p.UserID)
		if p.IsOwner {
			sb.WriteString(" 👑")
		}
	}
	return sb.String()
}

func (b *EmbedBuilder) buttons(snap internalview.Snapshot) []discord.Button {
	full := snap.IsFull()
	return []discord.Button{
		{CustomID: lobby.ButtonJoin, Label: "Join", Style: discord.ButtonStyleSuccess, Disabled: full || snap.Started},
		{CustomID: lobby.ButtonLeave, Label: "Leave", Style: discord.ButtonStyleDanger},
		{CustomID: lobby.ButtonQueue, Label: "Waitlist", Style: discord.ButtonStylePrimary, Disabled: snap.Started},
		{CustomID: lobby.ButtonUnqueue, Label: "Leave Waitlist", Style: discord.ButtonStyleSecondary},
		{CustomID: lobby.ButtonSpectate, Label: "Spectate", Style: discord.ButtonStyleSecondary},
	}
}

func mentionList(userIDs []string) string {
	mentions := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		mentions = append(mentions, "<@"+id+">")
	}
	return strings.Join(mentions, ", ")
}
