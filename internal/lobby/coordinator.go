package lobby

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hfcRed/Agent-8s-sub000/internal/config"
	"github.com/hfcRed/Agent-8s-sub000/internal/discord"
	"github.com/hfcRed/Agent-8s-sub000/internal/history"
	"github.com/hfcRed/Agent-8s-sub000/internal/retry"
	"github.com/hfcRed/Agent-8s-sub000/internal/telemetry"
	"github.com/hfcRed/Agent-8s-sub000/internal/view"
)

var (
	ErrNotOwner         = errors.New("only the lobby owner or an admin can do this")
	ErrNotEnoughPlayers = errors.New("not enough players to start")
	ErrRepingCooldown   = errors.New("reping is on cooldown")
)

const (
	refreshTimeout   = 15 * time.Second
	telemetryTimeout = 5 * time.Second
	minStartPlayers  = 2
)

// Coordinator drives the lobby lifecycle. External triggers (buttons, slash
// commands, timers, the sweeper) call its public methods; every transition
// that spans gateway I/O runs under the Guard, and every visible mutation
// finishes by queueing a refresh through the Scheduler.
type Coordinator struct {
	cfg       *config.Config
	store     *Store
	guard     *Guard
	scheduler *Scheduler
	discord   discord.Client
	view      view.Builder
	telemetry telemetry.Tracker
	history   history.Repository
	now       func() time.Time
}

func NewCoordinator(cfg *config.Config, dc discord.Client, vb view.Builder, tracker telemetry.Tracker, hist history.Repository) *Coordinator {
	c := &Coordinator{
		cfg:       cfg,
		store:     NewStore(cfg.LobbyCapacity),
		guard:     NewGuard(cfg.GuardSafetyWindow),
		discord:   dc,
		view:      vb,
		telemetry: tracker,
		history:   hist,
		now:       time.Now,
	}
	c.scheduler = NewScheduler(cfg.UpdateDebounce, c.refreshLobbyMessage)
	c.store.SetOwnerChangeNotifier(c.notifyOwnerChange)
	return c
}

// Store exposes the session store for read-only queries from the trigger
// surface.
func (c *Coordinator) Store() *Store {
	return c.store
}

// OpenLobby posts and pins the anchor embed, then registers the session
// under the new message id with ownerID as its first participant.
func (c *Coordinator) OpenLobby(ctx context.Context, guildID, channelID, ownerID string) (string, error) {
	if c.store.IsUserActive(ownerID) {
		return "", ErrUserBusy
	}
	if _, busy := c.store.SessionIDByChannel(channelID); busy {
		return "", ErrChannelBusy
	}

	now := c.now()
	provisional := view.Snapshot{
		GuildID:   guildID,
		ChannelID: channelID,
		OwnerID:   ownerID,
		Capacity:  c.cfg.LobbyCapacity,
		CreatedAt: now,
		State:     "open",
		Participants: []view.ParticipantView{
			{UserID: ownerID, Role: string(RolePlayer), Rank: 1, IsOwner: true, JoinedAt: now},
		},
	}
	msg := c.view.BuildMessage(provisional)

	var messageID string
	err := retry.Lifecycle.Do(ctx, "send lobby anchor", func() error {
		var sendErr error
		messageID, sendErr = c.discord.SendAndPinEmbed(channelID, msg)
		return sendErr
	})
	if err != nil {
		return "", fmt.Errorf("failed to post lobby anchor: %w", err)
	}

	if err := c.store.Create(messageID, guildID, channelID, ownerID, now); err != nil {
		// Lost a race after the message went out; drop the orphan anchor.
		if delErr := retry.Cosmetic.Do(ctx, "delete orphan anchor", func() error {
			return c.discord.DeleteMessage(channelID, messageID)
		}); delErr != nil {
			slog.Warn("failed to delete orphan lobby anchor",
				"channel_id", channelID, "message_id", messageID, "error", delErr)
		}
		return "", err
	}
	slog.Info("lobby opened", "session_id", messageID, "guild_id", guildID, "channel_id", channelID, "owner_id", ownerID)
	c.track("lobby_opened", messageID, ownerID, nil)
	return messageID, nil
}

func (c *Coordinator) HandleJoin(ctx context.Context, sessionID, userID string) error {
	count, err := c.store.Join(sessionID, userID, c.now())
	if err != nil {
		return err
	}
	slog.Info("user joined lobby", "session_id", sessionID, "user_id", userID, "participants", count)
	c.track("lobby_joined", sessionID, userID, nil)
	if count >= c.cfg.LobbyCapacity {
		c.scheduler.QueueUpdate(sessionID, true)
		if c.cfg.AutoStart {
			c.armAutoStart(sessionID)
		}
		return nil
	}
	c.scheduler.QueueUpdate(sessionID, false)
	return nil
}

func (c *Coordinator) HandleLeave(ctx context.Context, sessionID, userID string) error {
	outcome, err := c.store.Leave(sessionID, userID, c.now())
	if err != nil {
		return err
	}
	if outcome.LastLeft {
		slog.Info("last participant left; cancelling lobby", "session_id", sessionID, "user_id", userID)
		return c.terminate(ctx, sessionID, TerminalCancelled, "last participant left", true)
	}
	slog.Info("user left lobby",
		"session_id", sessionID,
		"user_id", userID,
		"remaining", outcome.Remaining,
		"new_owner", outcome.NewOwnerID,
		"promoted", outcome.PromotedUserID)
	c.track("lobby_left", sessionID, userID, nil)
	if outcome.PromotedUserID != "" {
		c.track("queue_promoted", sessionID, outcome.PromotedUserID, nil)
		if outcome.Remaining >= c.cfg.LobbyCapacity && c.cfg.AutoStart && !c.store.HasStarted(sessionID) {
			// The waitlist refilled the seat; restart the countdown.
			c.armAutoStart(sessionID)
		}
	}
	c.scheduler.QueueUpdate(sessionID, false)
	return nil
}

func (c *Coordinator) HandleQueueJoin(ctx context.Context, sessionID, userID string) error {
	position, err := c.store.QueueJoin(sessionID, userID)
	if err != nil {
		return err
	}
	slog.Info("user queued for lobby", "session_id", sessionID, "user_id", userID, "position", position)
	c.track("queue_joined", sessionID, userID, map[string]string{"position": fmt.Sprintf("%d", position)})
	c.scheduler.QueueUpdate(sessionID, false)
	return nil
}

func (c *Coordinator) HandleQueueLeave(ctx context.Context, sessionID, userID string) error {
	if err := c.store.QueueLeave(sessionID, userID); err != nil {
		return err
	}
	c.track("queue_left", sessionID, userID, nil)
	c.scheduler.QueueUpdate(sessionID, false)
	return nil
}

// HandleSpectate toggles spectator membership.
func (c *Coordinator) HandleSpectate(ctx context.Context, sessionID, userID string) error {
	if c.store.IsSpectator(sessionID, userID) {
		if err := c.store.RemoveSpectator(sessionID, userID); err != nil {
			return err
		}
		c.track("spectator_left", sessionID, userID, nil)
	} else {
		if err := c.store.AddSpectator(sessionID, userID); err != nil {
			return err
		}
		c.track("spectator_joined", sessionID, userID, nil)
	}
	c.scheduler.QueueUpdate(sessionID, false)
	return nil
}

func (c *Coordinator) armAutoStart(sessionID string) {
	armed := c.store.ScheduleStart(sessionID, c.cfg.AutoStartDelay, c.now(), func() {
		c.autoStartFired(sessionID)
	})
	if armed {
		slog.Info("auto-start countdown armed", "session_id", sessionID, "delay", c.cfg.AutoStartDelay)
	}
}

func (c *Coordinator) autoStartFired(sessionID string) {
	snap, ok := c.store.Snapshot(sessionID)
	if !ok || snap.Terminal || snap.Started || !snap.IsFull() {
		return
	}
	if err := c.StartLobby(context.Background(), sessionID, "", true); err != nil {
		slog.Error("auto-start failed", "session_id", sessionID, "error", err)
	}
}

// StartLobby transitions an open lobby into a running match: thread, team
// voice channels, access grants. Gateway calls are suspension points, so the
// started state is re-validated after the I/O completes.
func (c *Coordinator) StartLobby(ctx context.Context, sessionID, actorID string, actorIsOwnerOrAdmin bool) error {
	snap, ok := c.store.Snapshot(sessionID)
	if !ok {
		return ErrNotFound
	}
	if snap.Terminal {
		return ErrTerminal
	}
	if snap.Started {
		return ErrAlreadyStarted
	}
	if !actorIsOwnerOrAdmin && actorID != snap.OwnerID {
		return ErrNotOwner
	}
	if len(snap.Participants) < minStartPlayers {
		return ErrNotEnoughPlayers
	}
	if !c.guard.Enter(sessionID, OpStarting) {
		slog.Debug("start already in flight; ignoring trigger", "session_id", sessionID)
		return nil
	}
	defer c.guard.Exit(sessionID, OpStarting)

	c.store.CancelStartTimer(sessionID)
	matchID := uuid.NewString()
	threadID := c.createMatchThread(ctx, snap, matchID)
	voiceIDs := c.createTeamVoiceChannels(ctx, snap, matchID)

	if err := c.store.MarkStarted(sessionID, c.now(), matchID, threadID, voiceIDs); err != nil {
		// The lobby was cancelled or started by another trigger while the
		// channels were being created; release what this attempt made.
		slog.Warn("lobby changed during start; releasing created resources",
			"session_id", sessionID, "match_id", matchID, "error", err)
		c.releaseChannelResources(ctx, threadID, voiceIDs)
		return nil
	}

	slog.Info("lobby started",
		"session_id", sessionID,
		"match_id", matchID,
		"thread_id", threadID,
		"voice_channels", len(voiceIDs),
		"actor_id", actorID)
	c.track("lobby_started", sessionID, actorID, map[string]string{"match_id": matchID})
	c.scheduler.QueueUpdate(sessionID, true)
	return nil
}

func (c *Coordinator) createMatchThread(ctx context.Context, snap view.Snapshot, matchID string) string {
	var threadID string
	err := retry.Lifecycle.Do(ctx, "create match thread", func() error {
		var createErr error
		threadID, createErr = c.discord.CreateThread(snap.ChannelID, snap.SessionID, "8s match "+shortMatchID(matchID))
		return createErr
	})
	if err != nil {
		slog.Error("match thread could not be created; continuing without one",
			"session_id", snap.SessionID, "match_id", matchID, "error", err)
		return ""
	}
	for _, p := range snap.Participants {
		userID := p.UserID
		if addErr := retry.Cosmetic.Do(ctx, "add thread member", func() error {
			return c.discord.AddThreadMember(threadID, userID)
		}); addErr != nil {
			slog.Warn("failed to add participant to match thread",
				"session_id", snap.SessionID, "thread_id", threadID, "user_id", userID, "error", addErr)
		}
	}
	return threadID
}

func (c *Coordinator) createTeamVoiceChannels(ctx context.Context, snap view.Snapshot, matchID string) []string {
	teams := c.cfg.TeamVoiceChannels
	if teams == 0 {
		return nil
	}
	userLimit := (c.cfg.LobbyCapacity + teams - 1) / teams
	voiceIDs := make([]string, 0, teams)
	for i := 0; i < teams; i++ {
		name := fmt.Sprintf("8s %s team %d", shortMatchID(matchID), i+1)
		var channelID string
		err := retry.Lifecycle.Do(ctx, "create team voice channel", func() error {
			var createErr error
			channelID, createErr = c.discord.CreateVoiceChannel(snap.GuildID, name, userLimit)
			return createErr
		})
		if err != nil {
			slog.Error("team voice channel could not be created",
				"session_id", snap.SessionID, "match_id", matchID, "team", i+1, "error", err)
			continue
		}
		voiceIDs = append(voiceIDs, channelID)
		for _, p := range snap.Participants {
			userID := p.UserID
			if grantErr := retry.Cosmetic.Do(ctx, "grant voice access", func() error {
				return c.discord.GrantVoiceAccess(channelID, userID)
			}); grantErr != nil {
				slog.Warn("failed to grant voice access",
					"session_id", snap.SessionID, "channel_id", channelID, "user_id", userID, "error", grantErr)
			}
		}
	}
	return voiceIDs
}

// FinishLobby ends a started match, archives it, and tears the session down.
func (c *Coordinator) FinishLobby(ctx context.Context, sessionID, actorID string, actorIsOwnerOrAdmin bool) error {
	snap, ok := c.store.Snapshot(sessionID)
	if !ok {
		return ErrNotFound
	}
	if !snap.Started {
		return ErrNotStarted
	}
	if !actorIsOwnerOrAdmin && actorID != snap.OwnerID {
		return ErrNotOwner
	}
	if !c.guard.Enter(sessionID, OpFinishing) {
		slog.Debug("finish already in flight; ignoring trigger", "session_id", sessionID)
		return nil
	}
	defer c.guard.Exit(sessionID, OpFinishing)

	if !c.store.ClaimTerminal(sessionID, TerminalFinished) {
		return nil
	}
	final, _ := c.store.Snapshot(sessionID)
	c.recordMatch(ctx, final, history.MatchOutcomeFinished)
	slog.Info("lobby finished", "session_id", sessionID, "match_id", final.MatchID, "actor_id", actorID)
	c.track("lobby_finished", sessionID, actorID, map[string]string{"match_id": final.MatchID})
	c.scheduler.QueueUpdate(sessionID, true)
	c.cleanup(ctx, sessionID)
	return nil
}

func (c *Coordinator) CancelLobby(ctx context.Context, sessionID, actorID string, actorIsOwnerOrAdmin bool, reason string) error {
	snap, ok := c.store.Snapshot(sessionID)
	if !ok {
		return ErrNotFound
	}
	if !actorIsOwnerOrAdmin && actorID != snap.OwnerID {
		return ErrNotOwner
	}
	return c.terminate(ctx, sessionID, TerminalCancelled, reason, true)
}

// HandleAnchorDeleted reacts to upstream deletion of the pinned embed. The
// message is gone, so no refresh is attempted.
func (c *Coordinator) HandleAnchorDeleted(ctx context.Context, ev discord.MessageDeleteEvent) {
	if _, ok := c.store.Snapshot(ev.MessageID); !ok {
		return
	}
	slog.Info("anchor message deleted upstream; cancelling lobby", "session_id", ev.MessageID)
	if err := c.terminate(ctx, ev.MessageID, TerminalCancelled, "anchor message deleted", false); err != nil {
		slog.Error("failed to cancel lobby after anchor deletion", "session_id", ev.MessageID, "error", err)
	}
}

// HandleReping pings the channel for open seats, owner-gated and rate
// limited by the per-session cooldown.
func (c *Coordinator) HandleReping(ctx context.Context, sessionID, actorID string, actorIsOwnerOrAdmin bool) error {
	snap, ok := c.store.Snapshot(sessionID)
	if !ok {
		return ErrNotFound
	}
	if snap.Terminal {
		return ErrTerminal
	}
	if !actorIsOwnerOrAdmin && actorID != snap.OwnerID {
		return ErrNotOwner
	}
	if !c.store.RepingAllowed(sessionID, c.now(), c.cfg.RepingCooldown) {
		return ErrRepingCooldown
	}
	open := snap.Capacity - len(snap.Participants)
	content := fmt.Sprintf("@here %d seat(s) open in the 8s lobby!", open)
	if err := retry.Cosmetic.Do(ctx, "send reping", func() error {
		return c.discord.SendChannelMessage(snap.ChannelID, content)
	}); err != nil {
		slog.Warn("reping message failed", "session_id", sessionID, "error", err)
		return nil
	}
	c.track("lobby_repinged", sessionID, actorID, nil)
	return nil
}

// ExpireStale expires every non-terminal session older than the configured
// max lifetime and returns how many it expired. Sessions mid-transition are
// skipped; the next sweep picks them up.
func (c *Coordinator) ExpireStale(ctx context.Context) int {
	now := c.now()
	expired := 0
	for _, sessionID := range c.store.SessionIDs() {
		snap, ok := c.store.Snapshot(sessionID)
		if !ok || snap.Terminal {
			continue
		}
		if now.Sub(snap.CreatedAt) < c.cfg.MaxLobbyLifetime {
			continue
		}
		if c.guard.AnyActive(sessionID) {
			slog.Debug("sweep skipping session mid-transition", "session_id", sessionID)
			continue
		}
		if err := c.terminate(ctx, sessionID, TerminalExpired, "max lifetime exceeded", true); err != nil {
			slog.Error("failed to expire stale lobby", "session_id", sessionID, "error", err)
			continue
		}
		expired++
	}
	return expired
}

// Shutdown tears down every live session before process exit.
func (c *Coordinator) Shutdown(ctx context.Context) {
	ids := c.store.SessionIDs()
	if len(ids) == 0 {
		return
	}
	slog.Info("shutting down live lobbies", "count", len(ids))
	for _, sessionID := range ids {
		if err := c.terminate(ctx, sessionID, TerminalShutdown, "process shutdown", true); err != nil {
			slog.Error("failed to shut down lobby", "session_id", sessionID, "error", err)
		}
	}
}

// terminate is the single convergence point for the cancelled, expired, and
// shutdown paths. Exactly one caller wins the terminal claim; losers are
// silent no-ops, which is what makes racing triggers safe.
func (c *Coordinator) terminate(ctx context.Context, sessionID string, state TerminalState, reason string, refresh bool) error {
	if !c.guard.Enter(sessionID, OpCancelling) {
		slog.Debug("terminal transition already in flight; ignoring trigger", "session_id", sessionID)
		return nil
	}
	defer c.guard.Exit(sessionID, OpCancelling)

	if !c.store.ClaimTerminal(sessionID, state) {
		return nil
	}
	snap, ok := c.store.Snapshot(sessionID)
	if !ok {
		return nil
	}
	if snap.Started && snap.MatchID != "" {
		c.recordMatch(ctx, snap, outcomeFor(state))
	}
	slog.Info("lobby terminated", "session_id", sessionID, "state", state.String(), "reason", reason)
	c.track("lobby_"+state.String(), sessionID, "", map[string]string{"reason": reason})
	if refresh {
		c.scheduler.QueueUpdate(sessionID, true)
	}
	c.cleanup(ctx, sessionID)
	return nil
}

// cleanup releases channel resources and purges the session. It is
// idempotent: a second invocation finds no session and returns, and the
// cleanup guard keeps two racing invocations from interleaving.
func (c *Coordinator) cleanup(ctx context.Context, sessionID string) {
	if !c.guard.Enter(sessionID, OpCleanup) {
		return
	}
	defer c.guard.Exit(sessionID, OpCleanup)

	snap, ok := c.store.Snapshot(sessionID)
	if !ok {
		return
	}
	c.releaseChannelResources(ctx, snap.ThreadID, c.store.VoiceChannelIDs(sessionID))
	c.scheduler.CancelPending(sessionID)
	c.store.Delete(sessionID)
	c.guard.ReleaseSession(sessionID)
	slog.Info("lobby cleaned up", "session_id", sessionID, "state", snap.State)
}

func (c *Coordinator) releaseChannelResources(ctx context.Context, threadID string, voiceChannelIDs []string) {
	if threadID != "" {
		if err := retry.Cosmetic.Do(ctx, "archive match thread", func() error {
			return c.discord.LockAndArchiveThread(threadID)
		}); err != nil {
			slog.Warn("failed to archive match thread", "thread_id", threadID, "error", err)
		}
	}
	for _, channelID := range voiceChannelIDs {
		id := channelID
		if err := retry.Cosmetic.Do(ctx, "delete team voice channel", func() error {
			return c.discord.DeleteChannel(id)
		}); err != nil {
			slog.Warn("failed to delete team voice channel", "channel_id", id, "error", err)
		}
	}
}

// refreshLobbyMessage rebuilds the embed from a fresh snapshot and pushes it
// through a retry-wrapped edit. A refresh is best-effort; failures are
// reported, never propagated.
func (c *Coordinator) refreshLobbyMessage(sessionID string) {
	snap, ok := c.store.Snapshot(sessionID)
	if !ok {
		return
	}
	msg := c.view.BuildMessage(snap)
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	if err := retry.Cosmetic.Do(ctx, "edit lobby message", func() error {
		return c.discord.EditMessage(snap.ChannelID, sessionID, msg)
	}); err != nil {
		slog.Warn("lobby refresh failed", "session_id", sessionID, "error", err)
	}
}

func (c *Coordinator) notifyOwnerChange(sessionID, previousOwnerID, newOwnerID string) {
	snap, ok := c.store.Snapshot(sessionID)
	if !ok {
		return
	}
	slog.Info("lobby ownership transferred",
		"session_id", sessionID, "previous_owner", previousOwnerID, "new_owner", newOwnerID)
	c.track("ownership_transferred", sessionID, newOwnerID, map[string]string{"previous_owner": previousOwnerID})
	content := fmt.Sprintf("<@%s> is now the lobby owner.", newOwnerID)
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	if err := retry.Cosmetic.Do(ctx, "announce owner change", func() error {
		return c.discord.SendChannelMessage(snap.ChannelID, content)
	}); err != nil {
		slog.Warn("owner change notification failed", "session_id", sessionID, "error", err)
	}
}

func (c *Coordinator) recordMatch(ctx context.Context, snap view.Snapshot, outcome history.MatchOutcome) {
	input := history.RecordMatchInput{
		MatchID:   snap.MatchID,
		SessionID: snap.SessionID,
		GuildID:   snap.GuildID,
		ChannelID: snap.ChannelID,
		OwnerID:   snap.OwnerID,
		Outcome:   outcome,
		OpenedAt:  snap.CreatedAt,
		StartedAt: snap.StartedAt,
		EndedAt:   c.now(),
	}
	for _, p := range snap.Participants {
		input.Participants = append(input.Participants, history.MatchParticipant{
			UserID: p.UserID,
			Role:   p.Role,
			Rank:   p.Rank,
		})
	}
	if err := retry.Lifecycle.Do(ctx, "record match", func() error {
		return c.history.RecordMatch(ctx, input)
	}); err != nil {
		slog.Error("failed to archive match", "match_id", input.MatchID, "session_id", input.SessionID, "error", err)
	}
}

// track dispatches a telemetry event without blocking the caller.
func (c *Coordinator) track(name, sessionID, userID string, attrs map[string]string) {
	ev := telemetry.Event{
		Name:      name,
		SessionID: sessionID,
		GuildID:   c.cfg.DiscordGuildID,
		UserID:    userID,
		At:        c.now(),
		Attrs:     attrs,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryTimeout)
		defer cancel()
		if err := c.telemetry.Track(ctx, ev); err != nil {
			slog.Warn("telemetry dispatch failed", "event", name, "error", err)
		}
	}()
}

func outcomeFor(state TerminalState) history.MatchOutcome {
	switch state {
	case TerminalExpired:
		return history.MatchOutcomeExpired
	case TerminalFinished:
		return history.MatchOutcomeFinished
	default:
		return history.MatchOutcomeCancelled
	}
}

func shortMatchID(matchID string) string {
	if len(matchID) > 8 {
		return matchID[:8]
	}
	return matchID
}
