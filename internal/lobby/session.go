package lobby

import (
	"time"
)

// Operation names the guarded lifecycle transitions. At most one instance of
// each may be in flight per session at any time.
type Operation string

const (
	OpStarting   Operation = "starting"
	OpFinishing  Operation = "finishing"
	OpCancelling Operation = "cancelling"
	OpCleanup    Operation = "cleanup"
)

// TerminalState is a tagged variant: once a session leaves TerminalNone it
// only proceeds to cleanup. Interactive capacity mutations are rejected from
// that point on.
type TerminalState int

const (
	TerminalNone TerminalState = iota
	TerminalCancelled
	TerminalFinished
	TerminalExpired
	TerminalShutdown
)

func (t TerminalState) String() string {
	switch t {
	case TerminalNone:
		return "none"
	case TerminalCancelled:
		return "cancelled"
	case TerminalFinished:
		return "finished"
	case TerminalExpired:
		return "expired"
	case TerminalShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

type Role string

const RolePlayer Role = "player"

type Participant struct {
	UserID   string
	Role     Role
	Rank     int
	JoinedAt time.Time
}

// TimerPhase is the start-timer variant tag. Delay is meaningful only in
// TimerScheduled, StartedAt only in TimerStarted; the inconsistent
// combinations a nullable pair would allow cannot be expressed.
type TimerPhase int

const (
	TimerNotScheduled TimerPhase = iota
	TimerScheduled
	TimerStarted
)

type startTimer struct {
	phase     TimerPhase
	delay     time.Duration
	fireAt    time.Time
	startedAt time.Time
	handle    *time.Timer
}

func (t *startTimer) cancelScheduled() {
	if t.phase != TimerScheduled {
		return
	}
	if t.handle != nil {
		t.handle.Stop()
	}
	*t = startTimer{}
}

// session is the in-memory lobby record, anchored to the id of its pinned
// embed message. All access goes through the Store mutex.
type session struct {
	id              string
	guildID         string
	channelID       string
	threadID        string
	voiceChannelIDs []string
	matchID         string
	ownerID         string
	createdAt       time.Time
	participants    []Participant
	spectators      map[string]struct{}
	waitlist        *waitlist
	timer           startTimer
	terminal        TerminalState
	repingReadyAt   time.Time
	nextRank        int
}

func (s *session) participantIndex(userID string) int {
	for i, p := range s.participants {
		if p.UserID == userID {
			return i
		}
	}
	return -1
}

func (s *session) isParticipant(userID string) bool {
	return s.participantIndex(userID) >= 0
}

func (s *session) hasStarted() bool {
	return s.timer.phase == TimerStarted
}
