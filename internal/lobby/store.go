package lobby

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hfcRed/Agent-8s-sub000/internal/view"
)

var (
	ErrNotFound           = errors.New("lobby not found")
	ErrTerminal           = errors.New("lobby already ended")
	ErrCapacityFull       = errors.New("lobby is full")
	ErrAlreadyParticipant = errors.New("user already joined this lobby")
	ErrUserBusy           = errors.New("user is active in another lobby")
	ErrNotParticipant     = errors.New("user is not a participant")
	ErrAlreadyQueued      = errors.New("user already on the waitlist")
	ErrNotQueued          = errors.New("user is not on the waitlist")
	ErrNotSpectator       = errors.New("user is not spectating")
	ErrChannelBusy        = errors.New("channel already hosts a live lobby")
	ErrAlreadyStarted     = errors.New("lobby already started")
	ErrNotStarted         = errors.New("lobby has not started")
)

// LeaveOutcome reports what a compound leave did so the caller can follow up
// (notify a new owner, refresh, reschedule the auto-start countdown).
type LeaveOutcome struct {
	LastLeft            bool
	Remaining           int
	NewOwnerID          string
	PromotedUserID      string
	StartTimerCancelled bool
}

// Store owns every live session plus the userID→sessionID reverse index. It
// is injected, never a package singleton. Participant mutations and reverse
// index updates happen inside one critical section; no I/O runs under the
// lock, so the two can never be observed out of sync.
type Store struct {
	mu            sync.Mutex
	capacity      int
	sessions      map[string]*session
	byChannel     map[string]string
	activeUser    map[string]string
	onOwnerChange func(sessionID, previousOwnerID, newOwnerID string)
}

func NewStore(capacity int) *Store {
	return &Store{
		capacity:   capacity,
		sessions:   make(map[string]*session),
		byChannel:  make(map[string]string),
		activeUser: make(map[string]string),
	}
}

// SetOwnerChangeNotifier installs a best-effort callback invoked after the
// store lock is released whenever ownership moves. Failures inside the
// callback are the callback's problem; the store never propagates them.
func (st *Store) SetOwnerChangeNotifier(fn func(sessionID, previousOwnerID, newOwnerID string)) {
	st.mu.Lock()
	st.onOwnerChange = fn
	st.mu.Unlock()
}

func (st *Store) Capacity() int {
	return st.capacity
}

// Create registers a new session anchored to messageID with ownerID as its
// first participant. A user already playing somewhere, or a channel that
// already hosts a live lobby, is rejected.
func (st *Store) Create(messageID, guildID, channelID, ownerID string, now time.Time) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, exists := st.sessions[messageID]; exists {
		return ErrChannelBusy
	}
	if _, busy := st.activeUser[ownerID]; busy {
		return ErrUserBusy
	}
	if _, busy := st.byChannel[channelID]; busy {
		return ErrChannelBusy
	}
	sess := &session{
		id:         messageID,
		guildID:    guildID,
		channelID:  channelID,
		ownerID:    ownerID,
		createdAt:  now,
		spectators: make(map[string]struct{}),
		waitlist:   newWaitlist(),
		nextRank:   1,
	}
	st.addParticipantLocked(sess, ownerID, now)
	st.sessions[messageID] = sess
	st.byChannel[channelID] = messageID
	return nil
}

// Join adds userID as a participant and returns the new participant count.
func (st *Store) Join(sessionID, userID string, now time.Time) (int, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[sessionID]
	if !ok {
		return 0, ErrNotFound
	}
	if sess.terminal != TerminalNone {
		return 0, ErrTerminal
	}
	if sess.isParticipant(userID) {
		return 0, ErrAlreadyParticipant
	}
	if _, busy := st.activeUser[userID]; busy {
		return 0, ErrUserBusy
	}
	if len(sess.participants) >= st.capacity {
		return 0, ErrCapacityFull
	}
	st.addParticipantLocked(sess, userID, now)
	return len(sess.participants), nil
}

// addParticipantLocked appends a participant, updates the reverse index, and
// drops the user from every waitlist and from this session's spectators.
// Must run with st.mu held and after all precondition checks.
func (st *Store) addParticipantLocked(sess *session, userID string, now time.Time) {
	sess.participants = append(sess.participants, Participant{
		UserID:   userID,
		Role:     RolePlayer,
		Rank:     sess.nextRank,
		JoinedAt: now,
	})
	sess.nextRank++
	st.activeUser[userID] = sess.id
	delete(sess.spectators, userID)
	st.removeFromAllWaitlistsLocked(userID)
}

// Leave removes userID and performs the coupled bookkeeping in one critical
// section: ownership hand-off when the owner leaves, auto-start cancellation
// when the lobby drops below capacity, waitlist promotion when a seat opens
// before start. When the sole participant leaves nothing is mutated and
// LastLeft is set; the caller routes that through the cancel path so the
// owner invariant never breaks.
func (st *Store) Leave(sessionID, userID string, now time.Time) (LeaveOutcome, error) {
	st.mu.Lock()
	sess, ok := st.sessions[sessionID]
	if !ok {
		st.mu.Unlock()
		return LeaveOutcome{}, ErrNotFound
	}
	if sess.terminal != TerminalNone {
		st.mu.Unlock()
		return LeaveOutcome{}, ErrTerminal
	}
	idx := sess.participantIndex(userID)
	if idx < 0 {
		st.mu.Unlock()
		return LeaveOutcome{}, ErrNotParticipant
	}
	if len(sess.participants) == 1 {
		st.mu.Unlock()
		return LeaveOutcome{LastLeft: true}, nil
	}

	var outcome LeaveOutcome
	previousOwner := sess.ownerID
	if sess.ownerID == userID {
		outcome.NewOwnerID = st.transferOwnershipLocked(sess, userID)
	}
	sess.participants = append(sess.participants[:idx], sess.participants[idx+1:]...)
	delete(st.activeUser, userID)
	if sess.timer.phase == TimerScheduled && len(sess.participants) < st.capacity {
		sess.timer.cancelScheduled()
		outcome.StartTimerCancelled = true
	}
	if !sess.hasStarted() {
		outcome.PromotedUserID = st.promoteLocked(sess, now)
	}
	outcome.Remaining = len(sess.participants)
	notify := st.onOwnerChange
	st.mu.Unlock()

	if outcome.NewOwnerID != "" && notify != nil {
		notify(sessionID, previousOwner, outcome.NewOwnerID)
	}
	return outcome, nil
}

// TransferOwnership reassigns the lobby to the earliest-added remaining
// participant other than currentOwnerID. It returns "" when no other
// participant exists, leaving ownership unchanged.
func (st *Store) TransferOwnership(sessionID, currentOwnerID string) (string, error) {
	st.mu.Lock()
	sess, ok := st.sessions[sessionID]
	if !ok {
		st.mu.Unlock()
		return "", ErrNotFound
	}
	newOwner := st.transferOwnershipLocked(sess, currentOwnerID)
	notify := st.onOwnerChange
	st.mu.Unlock()

	if newOwner != "" && notify != nil {
		notify(sessionID, currentOwnerID, newOwner)
	}
	return newOwner, nil
}

func (st *Store) transferOwnershipLocked(sess *session, currentOwnerID string) string {
	for _, p := range sess.participants {
		if p.UserID == currentOwnerID {
			continue
		}
		sess.ownerID = p.UserID
		return p.UserID
	}
	return ""
}

func (st *Store) AddSpectator(sessionID, userID string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if sess.terminal != TerminalNone {
		return ErrTerminal
	}
	if sess.isParticipant(userID) {
		return ErrAlreadyParticipant
	}
	sess.spectators[userID] = struct{}{}
	return nil
}

func (st *Store) RemoveSpectator(sessionID, userID string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := sess.spectators[userID]; !ok {
		return ErrNotSpectator
	}
	delete(sess.spectators, userID)
	return nil
}

func (st *Store) IsSpectator(sessionID, userID string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[sessionID]
	if !ok {
		return false
	}
	_, ok = sess.spectators[userID]
	return ok
}

// QueueJoin enqueues userID on the session waitlist. Waiting and playing are
// mutually exclusive: a user active in any lobby cannot wait anywhere.
func (st *Store) QueueJoin(sessionID, userID string) (int, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[sessionID]
	if !ok {
		return 0, ErrNotFound
	}
	if sess.terminal != TerminalNone {
		return 0, ErrTerminal
	}
	if sess.isParticipant(userID) {
		return 0, ErrAlreadyParticipant
	}
	if _, busy := st.activeUser[userID]; busy {
		return 0, ErrUserBusy
	}
	if !sess.waitlist.add(userID) {
		return 0, ErrAlreadyQueued
	}
	return sess.waitlist.size(), nil
}

func (st *Store) QueueLeave(sessionID, userID string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if !sess.waitlist.remove(userID) {
		return ErrNotQueued
	}
	return nil
}

// PromoteNextFromQueue pops the waitlist head into the participant set with a
// default role and a freshly derived rank, then removes that user from every
// session's waitlist. It returns "" when the queue is empty or the lobby is
// full.
func (st *Store) PromoteNextFromQueue(sessionID string, now time.Time) (string, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[sessionID]
	if !ok {
		return "", ErrNotFound
	}
	if sess.terminal != TerminalNone {
		return "", ErrTerminal
	}
	return st.promoteLocked(sess, now), nil
}

func (st *Store) promoteLocked(sess *session, now time.Time) string {
	if len(sess.participants) >= st.capacity {
		return ""
	}
	userID, ok := sess.waitlist.popFront()
	if !ok {
		return ""
	}
	st.addParticipantLocked(sess, userID, now)
	return userID
}

// RemoveFromAllWaitlists drops userID from every session's waitlist and
// returns how many entries were removed. Joining any lobby as a participant
// cancels all waits.
func (st *Store) RemoveFromAllWaitlists(userID string) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.removeFromAllWaitlistsLocked(userID)
}

func (st *Store) removeFromAllWaitlistsLocked(userID string) int {
	removed := 0
	for _, sess := range st.sessions {
		if sess.waitlist.remove(userID) {
			removed++
		}
	}
	return removed
}

// ClaimTerminal moves the session into state and reports whether this caller
// won the transition. A second terminal claim (a manual cancel racing the
// sweeper, for instance) returns false so only one path runs cleanup
// side effects.
func (st *Store) ClaimTerminal(sessionID string, state TerminalState) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[sessionID]
	if !ok {
		return false
	}
	if sess.terminal != TerminalNone {
		return false
	}
	sess.terminal = state
	sess.timer.cancelScheduled()
	return true
}

func (st *Store) IsUserActive(userID string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	_, ok := st.activeUser[userID]
	return ok
}

func (st *Store) ActiveSession(userID string) (string, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	id, ok := st.activeUser[userID]
	return id, ok
}

func (st *Store) SessionIDByChannel(channelID string) (string, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	id, ok := st.byChannel[channelID]
	return id, ok
}

func (st *Store) SessionIDs() []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	ids := make([]string, 0, len(st.sessions))
	for id := range st.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// ScheduleStart arms the auto-start countdown. The timer record lives on the
// session itself so teardown cancels by lookup instead of chasing captured
// closures. Returns false when a countdown is already armed, the lobby has
// started, or the session is gone or terminal.
func (st *Store) ScheduleStart(sessionID string, delay time.Duration, now time.Time, fire func()) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[sessionID]
	if !ok {
		return false
	}
	if sess.terminal != TerminalNone || sess.timer.phase != TimerNotScheduled {
		return false
	}
	sess.timer = startTimer{
		phase:  TimerScheduled,
		delay:  delay,
		fireAt: now.Add(delay),
		handle: time.AfterFunc(delay, fire),
	}
	return true
}

func (st *Store) CancelStartTimer(sessionID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[sessionID]
	if !ok {
		return
	}
	sess.timer.cancelScheduled()
}

// MarkStarted moves the timer to its Started phase and records the match
// identity and the channel resources created for it.
func (st *Store) MarkStarted(sessionID string, now time.Time, matchID, threadID string, voiceChannelIDs []string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if sess.terminal != TerminalNone {
		return ErrTerminal
	}
	if sess.hasStarted() {
		return ErrAlreadyStarted
	}
	sess.timer.cancelScheduled()
	sess.timer = startTimer{phase: TimerStarted, startedAt: now}
	sess.matchID = matchID
	sess.threadID = threadID
	sess.voiceChannelIDs = append([]string(nil), voiceChannelIDs...)
	return nil
}

func (st *Store) HasStarted(sessionID string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[sessionID]
	return ok && sess.hasStarted()
}

// RepingAllowed reports whether the cooldown has elapsed and, when it has,
// arms the next cooldown in the same critical section so two racing reping
// triggers cannot both pass.
func (st *Store) RepingAllowed(sessionID string, now time.Time, cooldown time.Duration) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[sessionID]
	if !ok {
		return false
	}
	if now.Before(sess.repingReadyAt) {
		return false
	}
	sess.repingReadyAt = now.Add(cooldown)
	return true
}

// Snapshot returns an immutable copy of the session for rendering and
// lifecycle decisions.
func (st *Store) Snapshot(sessionID string) (view.Snapshot, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[sessionID]
	if !ok {
		return view.Snapshot{}, false
	}
	snap := view.Snapshot{
		SessionID:  sess.id,
		GuildID:    sess.guildID,
		ChannelID:  sess.channelID,
		ThreadID:   sess.threadID,
		MatchID:    sess.matchID,
		OwnerID:    sess.ownerID,
		Capacity:   st.capacity,
		CreatedAt:  sess.createdAt,
		Waitlist:   sess.waitlist.entries(),
		Terminal:   sess.terminal != TerminalNone,
		State:      sessionState(sess),
		Spectators: make([]string, 0, len(sess.spectators)),
	}
	for _, p := range sess.participants {
		snap.Participants = append(snap.Participants, view.ParticipantView{
			UserID:   p.UserID,
			Role:     string(p.Role),
			Rank:     p.Rank,
			IsOwner:  p.UserID == sess.ownerID,
			JoinedAt: p.JoinedAt,
		})
	}
	for userID := range sess.spectators {
		snap.Spectators = append(snap.Spectators, userID)
	}
	sort.Strings(snap.Spectators)
	switch sess.timer.phase {
	case TimerScheduled:
		snap.AutoStartAt = sess.timer.fireAt
	case TimerStarted:
		snap.Started = true
		snap.StartedAt = sess.timer.startedAt
	}
	return snap, true
}

func sessionState(sess *session) string {
	if sess.terminal != TerminalNone {
		return sess.terminal.String()
	}
	switch sess.timer.phase {
	case TimerScheduled:
		return "starting"
	case TimerStarted:
		return "started"
	default:
		return "open"
	}
}

// VoiceChannelIDs returns the voice channels created at start, if any.
func (st *Store) VoiceChannelIDs(sessionID string) []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[sessionID]
	if !ok {
		return nil
	}
	return append([]string(nil), sess.voiceChannelIDs...)
}

// Delete purges the session: reverse index entries, channel index, waitlist,
// spectators, and any armed timer. Idempotent; deleting a missing session is
// a no-op.
func (st *Store) Delete(sessionID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[sessionID]
	if !ok {
		return
	}
	sess.timer.cancelScheduled()
	for _, p := range sess.participants {
		if st.activeUser[p.UserID] == sessionID {
			delete(st.activeUser, p.UserID)
		}
	}
	if st.byChannel[sess.channelID] == sessionID {
		delete(st.byChannel, sess.channelID)
	}
	delete(st.sessions, sessionID)
	slog.Debug("session deleted from store", "session_id", sessionID, "remaining", len(st.sessions))
}
