package lobby

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hfcRed/Agent-8s-sub000/internal/discord"
)

const (
	commandOpen   = "lobby-open"
	commandStart  = "lobby-start"
	commandFinish = "lobby-finish"
	commandCancel = "lobby-cancel"
	commandReping = "lobby-reping"
	commandStats  = "lobby-stats"
)

const (
	ButtonJoin     = "lobby:join"
	ButtonLeave    = "lobby:leave"
	ButtonQueue    = "lobby:queue"
	ButtonUnqueue  = "lobby:unqueue"
	ButtonSpectate = "lobby:spectate"
)

func SlashCommandDefinitions() []discord.SlashCommandDefinition {
	return []discord.SlashCommandDefinition{
		{Name: commandOpen, Description: "Open an 8s lobby in this channel"},
		{Name: commandStart, Description: "Start the match (owner or admin)"},
		{Name: commandFinish, Description: "Finish the running match (owner or admin)"},
		{Name: commandCancel, Description: "Cancel the lobby (owner or admin)"},
		{Name: commandReping, Description: "Ping the channel for open seats (owner or admin)"},
		{Name: commandStats, Description: "Show how many matches were played on this server"},
	}
}

// HandleSlashCommand is the trigger surface for slash commands. Permission
// resolution happens here (the caller-resolved admin boolean plus the owner
// check inside each operation); the core never talks to Discord permissions.
func (c *Coordinator) HandleSlashCommand(ev discord.SlashCommandEvent) {
	if ev.GuildID != c.cfg.DiscordGuildID {
		slog.Debug("ignoring slash command for different guild", "event_guild_id", ev.GuildID)
		return
	}
	ctx := context.Background()

	if ev.CommandName == commandOpen {
		if _, err := c.OpenLobby(ctx, ev.GuildID, ev.ChannelID, ev.UserID); err != nil {
			c.respond(ev.RespondEphemeral, userMessage(err))
			return
		}
		c.respond(ev.RespondEphemeral, "Lobby opened. Good luck!")
		return
	}

	if ev.CommandName == commandStats {
		count, err := c.history.CountMatchesByGuild(ctx, ev.GuildID)
		if err != nil {
			slog.Warn("failed to count archived matches", "guild_id", ev.GuildID, "error", err)
			c.respond(ev.RespondEphemeral, "Match stats are unavailable right now.")
			return
		}
		c.respond(ev.RespondEphemeral, fmt.Sprintf("Matches played on this server: %d", count))
		return
	}

	sessionID, ok := c.store.SessionIDByChannel(ev.ChannelID)
	if !ok {
		c.respond(ev.RespondEphemeral, "There is no live lobby in this channel.")
		return
	}

	var err error
	switch ev.CommandName {
	case commandStart:
		err = c.StartLobby(ctx, sessionID, ev.UserID, ev.UserIsAdmin)
	case commandFinish:
		err = c.FinishLobby(ctx, sessionID, ev.UserID, ev.UserIsAdmin)
	case commandCancel:
		err = c.CancelLobby(ctx, sessionID, ev.UserID, ev.UserIsAdmin, "cancelled by "+ev.UserID)
	case commandReping:
		err = c.HandleReping(ctx, sessionID, ev.UserID, ev.UserIsAdmin)
	default:
		return
	}
	if err != nil {
		c.respond(ev.RespondEphemeral, userMessage(err))
		return
	}
	c.respond(ev.RespondEphemeral, "Done.")
}

// HandleButton is the trigger surface for the controls attached to the
// anchor message. The message id is the session id.
func (c *Coordinator) HandleButton(ev discord.ButtonEvent) {
	if ev.GuildID != c.cfg.DiscordGuildID {
		return
	}
	ctx := context.Background()

	var err error
	switch ev.CustomID {
	case ButtonJoin:
		err = c.HandleJoin(ctx, ev.MessageID, ev.UserID)
	case ButtonLeave:
		err = c.HandleLeave(ctx, ev.MessageID, ev.UserID)
	case ButtonQueue:
		err = c.HandleQueueJoin(ctx, ev.MessageID, ev.UserID)
	case ButtonUnqueue:
		err = c.HandleQueueLeave(ctx, ev.MessageID, ev.UserID)
	case ButtonSpectate:
		err = c.HandleSpectate(ctx, ev.MessageID, ev.UserID)
	default:
		return
	}
	if err != nil {
		c.respond(ev.RespondEphemeral, userMessage(err))
		return
	}
	if ev.Acknowledge != nil {
		if ackErr := ev.Acknowledge(); ackErr != nil {
			slog.Debug("button acknowledge failed", "custom_id", ev.CustomID, "error", ackErr)
		}
	}
}

func (c *Coordinator) respond(respond func(string) error, content string) {
	if respond == nil {
		return
	}
	if err := respond(content); err != nil {
		slog.Warn("ephemeral response failed", "error", err)
	}
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "This lobby is no longer active."
	case errors.Is(err, ErrTerminal):
		return "This lobby has already ended."
	case errors.Is(err, ErrCapacityFull):
		return "The lobby is full. Try the waitlist!"
	case errors.Is(err, ErrAlreadyParticipant):
		return "You are already in this lobby."
	case errors.Is(err, ErrUserBusy):
		return "You are already playing in another lobby."
	case errors.Is(err, ErrNotParticipant):
		return "You are not in this lobby."
	case errors.Is(err, ErrAlreadyQueued):
		return "You are already on the waitlist."
	case errors.Is(err, ErrNotQueued):
		return "You are not on the waitlist."
	case errors.Is(err, ErrNotSpectator):
		return "You are not spectating this lobby."
	case errors.Is(err, ErrChannelBusy):
		return "This channel already hosts a live lobby."
	case errors.Is(err, ErrAlreadyStarted):
		return "The match has already started."
	case errors.Is(err, ErrNotStarted):
		return "The match has not started yet."
	case errors.Is(err, ErrNotOwner):
		return "Only the lobby owner or an admin can do this."
	case errors.Is(err, ErrNotEnoughPlayers):
		return "Not enough players to start yet."
	case errors.Is(err, ErrRepingCooldown):
		return "Reping is on cooldown. Try again later."
	default:
		return "Something went wrong. Please try again."
	}
}
