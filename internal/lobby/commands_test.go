package lobby

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hfcRed/Agent-8s-sub000/internal/discord"
)

func TestHandleButton_JoinAcknowledges(t *testing.T) {
	c, _, _ := newTestCoordinator(testConfig())
	sessionID := openTestLobby(t, c)

	acked := false
	var ephemeral string
	c.HandleButton(discord.ButtonEvent{
		GuildID:          "guild-1",
		ChannelID:        "chan-1",
		MessageID:        sessionID,
		CustomID:         ButtonJoin,
		UserID:           "second",
		Acknowledge:      func() error { acked = true; return nil },
		RespondEphemeral: func(content string) error { ephemeral = content; return nil },
	})

	if !acked {
		t.Fatal("successful button press should be acknowledged")
	}
	if ephemeral != "" {
		t.Fatalf("no ephemeral response expected on success, got %q", ephemeral)
	}
	if !c.Store().IsUserActive("second") {
		t.Fatal("button join should add the participant")
	}
}

func TestHandleButton_FailureRespondsEphemerally(t *testing.T) {
	c, _, _ := newTestCoordinator(testConfig())
	sessionID := openTestLobby(t, c)

	acked := false
	var ephemeral string
	c.HandleButton(discord.ButtonEvent{
		GuildID:          "guild-1",
		MessageID:        sessionID,
		CustomID:         ButtonJoin,
		UserID:           "owner",
		Acknowledge:      func() error { acked = true; return nil },
		RespondEphemeral: func(content string) error { ephemeral = content; return nil },
	})

	if acked {
		t.Fatal("a failed press must not be acknowledged")
	}
	if !strings.Contains(ephemeral, "already in this lobby") {
		t.Fatalf("unexpected error message: %q", ephemeral)
	}
}

func TestHandleButton_IgnoresOtherGuilds(t *testing.T) {
	c, _, _ := newTestCoordinator(testConfig())
	sessionID := openTestLobby(t, c)

	c.HandleButton(discord.ButtonEvent{
		GuildID:   "some-other-guild",
		MessageID: sessionID,
		CustomID:  ButtonJoin,
		UserID:    "second",
	})
	if c.Store().IsUserActive("second") {
		t.Fatal("events from other guilds must be ignored")
	}
}

func TestHandleButton_WaitlistRoundTrip(t *testing.T) {
	cfg := testConfig()
	cfg.LobbyCapacity = 2
	c, _, _ := newTestCoordinator(cfg)
	sessionID := openTestLobby(t, c)
	fillLobby(t, c, sessionID)

	c.HandleButton(discord.ButtonEvent{
		GuildID:   "guild-1",
		MessageID: sessionID,
		CustomID:  ButtonQueue,
		UserID:    "waiter",
	})
	snap, _ := c.Store().Snapshot(sessionID)
	if len(snap.Waitlist) != 1 || snap.Waitlist[0] != "waiter" {
		t.Fatalf("expected waiter on the waitlist, got %v", snap.Waitlist)
	}

	c.HandleButton(discord.ButtonEvent{
		GuildID:   "guild-1",
		MessageID: sessionID,
		CustomID:  ButtonUnqueue,
		UserID:    "waiter",
	})
	snap, _ = c.Store().Snapshot(sessionID)
	if len(snap.Waitlist) != 0 {
		t.Fatalf("waitlist should be empty again, got %v", snap.Waitlist)
	}
}

func TestHandleSlashCommand_OpenAndCancel(t *testing.T) {
	c, _, _ := newTestCoordinator(testConfig())

	var responses []string
	respond := func(content string) error {
		responses = append(responses, content)
		return nil
	}

	c.HandleSlashCommand(discord.SlashCommandEvent{
		GuildID:          "guild-1",
		ChannelID:        "chan-1",
		CommandName:      "lobby-open",
		UserID:           "owner",
		RespondEphemeral: respond,
	})
	if c.Store().Len() != 1 {
		t.Fatal("open command should register a session")
	}

	c.HandleSlashCommand(discord.SlashCommandEvent{
		GuildID:          "guild-1",
		ChannelID:        "chan-1",
		CommandName:      "lobby-cancel",
		UserID:           "owner",
		RespondEphemeral: respond,
	})
	if c.Store().Len() != 0 {
		t.Fatal("cancel command should tear the session down")
	}
	if len(responses) != 2 {
		t.Fatalf("expected a response per command, got %v", responses)
	}
}

func TestHandleSlashCommand_StatsReportsMatchCount(t *testing.T) {
	c, _, _ := newTestCoordinator(testConfig())
	sessionID := openTestLobby(t, c)
	if err := c.HandleJoin(context.Background(), sessionID, "second"); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if err := c.StartLobby(context.Background(), sessionID, "owner", false); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := c.FinishLobby(context.Background(), sessionID, "owner", false); err != nil {
		t.Fatalf("finish failed: %v", err)
	}

	var ephemeral string
	c.HandleSlashCommand(discord.SlashCommandEvent{
		GuildID:          "guild-1",
		ChannelID:        "chan-1",
		CommandName:      "lobby-stats",
		UserID:           "someone",
		RespondEphemeral: func(content string) error { ephemeral = content; return nil },
	})
	if !strings.Contains(ephemeral, "Matches played on this server: 1") {
		t.Fatalf("expected the archived match count, got %q", ephemeral)
	}
}

func TestHandleSlashCommand_NoLobbyInChannel(t *testing.T) {
	c, _, _ := newTestCoordinator(testConfig())

	var ephemeral string
	c.HandleSlashCommand(discord.SlashCommandEvent{
		GuildID:          "guild-1",
		ChannelID:        "chan-empty",
		CommandName:      "lobby-start",
		UserID:           "someone",
		RespondEphemeral: func(content string) error { ephemeral = content; return nil },
	})
	if !strings.Contains(ephemeral, "no live lobby") {
		t.Fatalf("expected a no-lobby hint, got %q", ephemeral)
	}
}

func TestHandleSlashCommand_NonOwnerCancelRejected(t *testing.T) {
	c, _, _ := newTestCoordinator(testConfig())
	sessionID := openTestLobby(t, c)

	var ephemeral string
	c.HandleSlashCommand(discord.SlashCommandEvent{
		GuildID:          "guild-1",
		ChannelID:        "chan-1",
		CommandName:      "lobby-cancel",
		UserID:           "stranger",
		UserIsAdmin:      false,
		RespondEphemeral: func(content string) error { ephemeral = content; return nil },
	})
	if _, ok := c.Store().Snapshot(sessionID); !ok {
		t.Fatal("lobby must survive a rejected cancel")
	}
	if !strings.Contains(ephemeral, "owner or an admin") {
		t.Fatalf("expected permission message, got %q", ephemeral)
	}
}

func TestUserMessage_CoversKnownErrors(t *testing.T) {
	known := []error{
		ErrNotFound, ErrTerminal, ErrCapacityFull, ErrAlreadyParticipant,
		ErrUserBusy, ErrNotParticipant, ErrAlreadyQueued, ErrNotQueued,
		ErrNotSpectator, ErrChannelBusy, ErrAlreadyStarted, ErrNotStarted,
		ErrNotOwner, ErrNotEnoughPlayers, ErrRepingCooldown,
	}
	fallback := userMessage(errNotMapped)
	for _, err := range known {
		if msg := userMessage(err); msg == fallback {
			t.Errorf("error %v should have a dedicated user message", err)
		}
	}
}

var errNotMapped = errors.New("some internal failure")
