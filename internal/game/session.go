// Package game implements the client-side state machine for one quiz game:
// a sequence of question/answer/resolution rounds ending in a game-over or
// game-error broadcast.
//
// Round state is authoritative on the server. The local countdown is
// display-only, answers are submitted at most once per question, and the
// first resolution to arrive for a round wins.
package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/animeshcode007/quizerr-go-client/internal/events"
	"github.com/animeshcode007/quizerr-go-client/internal/models"
	"github.com/animeshcode007/quizerr-go-client/internal/transport"
)

// Phase is the per-round phase of the session.
type Phase string

const (
	PhaseAwaitingQuestion Phase = "awaiting_question"
	PhaseAnswering        Phase = "answering"
	PhaseResolved         Phase = "resolved"
)

// WaitStatus distinguishes a connection problem from a slow or absent
// first question. Absence of a question is a displayable state, never
// fabricated content.
type WaitStatus string

const (
	// WaitLoading: the game just started; the first question is expected.
	WaitLoading WaitStatus = "loading"
	// WaitStalled: the watchdog elapsed with a live connection and still no
	// question.
	WaitStalled WaitStatus = "stalled"
	// WaitDisconnected: the transport is down; this is a connection
	// problem, not a slow server.
	WaitDisconnected WaitStatus = "disconnected"
)

const (
	// urgentThreshold marks the last seconds of the countdown for display.
	urgentThreshold = 5
	// firstQuestionWatchdog bounds how long "loading" stays plausible.
	firstQuestionWatchdog = 5 * time.Second
	// errorGraceDelay is how long a game error stays on screen before the
	// session returns to the directory.
	errorGraceDelay = 3 * time.Second
)

var (
	ErrNoQuestion      = errors.New("no active question")
	ErrAlreadyAnswered = errors.New("answer already submitted for this question")
	ErrRoundOver       = errors.New("round already resolved")
)

// Resolution is the outcome of one round for the local player.
type Resolution struct {
	CorrectIndex int
	WasCorrect   bool
	PointsEarned int
}

// Round is the transient state of the current question.
type Round struct {
	Question    models.Question
	Number      int
	Total       int
	TimeLimit   int
	TimeLeft    int
	AnswerIndex *int
	Resolution  *Resolution
}

// Urgent reports whether the countdown is in its final seconds.
func (r *Round) Urgent() bool {
	return r != nil && r.TimeLeft > 0 && r.TimeLeft <= urgentThreshold
}

// ExitReason says why the game session ended.
type ExitReason string

const (
	ExitGameOver  ExitReason = "game_over"
	ExitGameError ExitReason = "game_error"
	// ExitDisconnected: the connection dropped mid-game and the fresh
	// connection id is not a participant, so there is nothing to resume.
	ExitDisconnected ExitReason = "disconnected"
)

// Exit describes a terminal game state. Control always returns to the
// lobby directory; the lobby itself is torn down server-side.
type Exit struct {
	Reason      ExitReason
	Message     string
	FinalScores []models.PlayerScore
}

// Session drives the question/answer/score cycle for one game.
type Session struct {
	bus      transport.Bus
	clock    clockwork.Clock
	lobbyID  string
	onExit   func(Exit)
	onChange func()

	mu            sync.RWMutex
	phase         Phase
	round         *Round
	roundGen      int
	scores        []models.PlayerScore
	errMsg        string
	watchdogFired bool
	connLost      bool
	ended         bool

	subs []transport.Subscription
	done chan struct{}
}

// NewSession creates a game session for the given lobby. onExit fires once
// on the dispatch goroutine when the game reaches a terminal state.
func NewSession(bus transport.Bus, clock clockwork.Clock, lobbyID string, onExit func(Exit), onChange func()) *Session {
	if onChange == nil {
		onChange = func() {}
	}
	return &Session{
		bus:      bus,
		clock:    clock,
		lobbyID:  lobbyID,
		onExit:   onExit,
		onChange: onChange,
		phase:    PhaseAwaitingQuestion,
		done:     make(chan struct{}),
	}
}

// Start subscribes the push handlers and arms the first-question watchdog.
func (s *Session) Start() {
	s.subs = append(s.subs,
		s.bus.On(events.PushNewQuestion, s.handleNewQuestion),
		s.bus.On(events.PushScoreUpdate, s.handleScoreUpdate),
		s.bus.On(events.PushAnswerFeedback, s.handleAnswerFeedback),
		s.bus.On(events.PushRoundEnd, s.handleRoundEnd),
		s.bus.On(events.PushGameOver, s.handleGameOver),
		s.bus.On(events.PushGameError, s.handleGameError),
		s.bus.On(events.Disconnect, s.handleDisconnect),
		s.bus.On(events.Connect, s.handleReconnect),
	)

	go func() {
		select {
		case <-s.clock.After(firstQuestionWatchdog):
			s.mu.Lock()
			if !s.ended && s.round == nil {
				s.watchdogFired = true
				log.Warn().Str("lobby_id", s.lobbyID).Msg("no question received within watchdog window")
			}
			s.mu.Unlock()
			s.onChange()
		case <-s.done:
		}
	}()
}

// Close unsubscribes every handler and stops the countdown. After Close no
// push event for this game is acted upon.
func (s *Session) Close() {
	for _, sub := range s.subs {
		s.bus.Off(sub)
	}
	s.subs = nil

	s.mu.Lock()
	if !s.ended {
		s.ended = true
		close(s.done)
	}
	s.mu.Unlock()
}

// LobbyID returns the lobby this game belongs to.
func (s *Session) LobbyID() string { return s.lobbyID }

// LocalPlayerID returns the connection id identifying the local player in
// the scoreboard. Not stable across reconnects.
func (s *Session) LocalPlayerID() string { return s.bus.ID() }

// Phase returns the current round phase.
func (s *Session) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Round returns a copy of the current round state, nil before the first
// question arrives.
func (s *Session) Round() *Round {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.round == nil {
		return nil
	}
	cp := *s.round
	if s.round.AnswerIndex != nil {
		v := *s.round.AnswerIndex
		cp.AnswerIndex = &v
	}
	if s.round.Resolution != nil {
		v := *s.round.Resolution
		cp.Resolution = &v
	}
	cp.Question.Options = append([]string(nil), s.round.Question.Options...)
	return &cp
}

// Scores returns a copy of the scoreboard, ordered score-descending.
func (s *Session) Scores() []models.PlayerScore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.PlayerScore, len(s.scores))
	copy(out, s.scores)
	return out
}

// ErrorMessage returns the displayed game error, if any.
func (s *Session) ErrorMessage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}

// WaitStatus reports a connection or loading problem. Empty means a
// question is live on a healthy connection.
func (s *Session) WaitStatus() WaitStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.bus.Connected() {
		return WaitDisconnected
	}
	if s.round != nil {
		return ""
	}
	if s.watchdogFired {
		return WaitStalled
	}
	return WaitLoading
}

// SubmitAnswer submits the local player's answer for the current question.
// A second submission before resolution is rejected locally without a
// network call. If the acknowledgment fails, the local selection is rolled
// back so the player may retry; correctness feedback arrives separately.
func (s *Session) SubmitAnswer(answerIndex int, cb func(error)) {
	if cb == nil {
		cb = func(error) {}
	}

	s.mu.Lock()
	if s.ended || s.round == nil {
		s.mu.Unlock()
		cb(ErrNoQuestion)
		return
	}
	if s.round.AnswerIndex != nil {
		s.mu.Unlock()
		cb(ErrAlreadyAnswered)
		return
	}
	if s.round.Resolution != nil {
		s.mu.Unlock()
		cb(ErrRoundOver)
		return
	}
	idx := answerIndex
	s.round.AnswerIndex = &idx
	questionID := s.round.Question.ID
	s.mu.Unlock()
	s.onChange()

	req := events.SubmitAnswerRequest{LobbyID: s.lobbyID, QuestionID: questionID, AnswerIndex: answerIndex}
	err := s.bus.EmitWithAck(events.ReqSubmitAnswer, req, func(data json.RawMessage, err error) {
		if err != nil {
			s.rollbackAnswer(questionID)
			cb(fmt.Errorf("submit answer: %w", err))
			return
		}
		var ack events.Ack
		if err := json.Unmarshal(data, &ack); err != nil {
			s.rollbackAnswer(questionID)
			cb(fmt.Errorf("malformed submit ack: %w", err))
			return
		}
		if err := ack.Err(); err != nil {
			s.rollbackAnswer(questionID)
			cb(err)
			return
		}
		cb(nil)
	})
	if err != nil {
		s.rollbackAnswer(questionID)
		cb(fmt.Errorf("submit answer: %w", err))
	}
}

// rollbackAnswer clears the local answer marker after a failed submission,
// but only if the same question is still live and unresolved. An ack
// outcome for a superseded question must not touch the new round.
func (s *Session) rollbackAnswer(questionID string) {
	s.mu.Lock()
	if s.ended || s.round == nil || s.round.Question.ID != questionID || s.round.Resolution != nil {
		s.mu.Unlock()
		return
	}
	s.round.AnswerIndex = nil
	s.mu.Unlock()
	s.onChange()
}

// handleNewQuestion starts a new round, superseding whatever round state
// came before it.
func (s *Session) handleNewQuestion(data json.RawMessage) {
	var payload events.NewQuestionPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Warn().Err(err).Msg("dropping malformed newQuestion")
		return
	}
	if len(payload.Question.Options) < 2 {
		log.Warn().Str("question_id", payload.Question.ID).Msg("dropping question with too few options")
		return
	}

	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.round = &Round{
		Question:  payload.Question,
		Number:    payload.QuestionNumber,
		Total:     payload.TotalQuestions,
		TimeLimit: payload.TimeLimit,
		TimeLeft:  payload.TimeLimit,
	}
	s.roundGen++
	gen := s.roundGen
	s.phase = PhaseAnswering
	s.watchdogFired = false
	if payload.Players != nil {
		models.SortScores(payload.Players)
		s.scores = payload.Players
	}
	s.mu.Unlock()
	s.onChange()

	log.Info().
		Int("question", payload.QuestionNumber).
		Int("of", payload.TotalQuestions).
		Int("time_limit", payload.TimeLimit).
		Msg("new question")
	s.startCountdown(gen)
}

// startCountdown runs the strictly local per-second timer for one round.
// It stops when the round resolves, is superseded, or reaches zero;
// reaching zero never resolves the round, authority rests with the server.
func (s *Session) startCountdown(gen int) {
	go func() {
		ticker := s.clock.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				if !s.tickCountdown(gen) {
					return
				}
			case <-s.done:
				return
			}
		}
	}()
}

// tickCountdown applies one second of countdown; returns false once the
// timer should stop.
func (s *Session) tickCountdown(gen int) bool {
	s.mu.Lock()
	if s.ended || s.round == nil || s.roundGen != gen {
		s.mu.Unlock()
		return false
	}
	if s.round.Resolution != nil {
		// A stale tick scheduled before resolution must not race it.
		s.mu.Unlock()
		return false
	}
	if s.round.TimeLeft > 0 {
		s.round.TimeLeft--
	}
	stopped := s.round.TimeLeft == 0
	s.mu.Unlock()
	s.onChange()
	return !stopped
}

// handleScoreUpdate replaces the scoreboard wholesale, whatever round state
// is active.
func (s *Session) handleScoreUpdate(data json.RawMessage) {
	var scores []models.PlayerScore
	if err := json.Unmarshal(data, &scores); err != nil {
		log.Warn().Err(err).Msg("dropping malformed scoreUpdate")
		return
	}
	models.SortScores(scores)

	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.scores = scores
	s.mu.Unlock()
	s.onChange()
}

// handleAnswerFeedback resolves the round with the local player's personal
// result.
func (s *Session) handleAnswerFeedback(data json.RawMessage) {
	var payload events.AnswerFeedbackPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Warn().Err(err).Msg("dropping malformed answerFeedback")
		return
	}

	s.mu.Lock()
	if s.ended || s.round == nil {
		s.mu.Unlock()
		return
	}
	s.phase = PhaseResolved
	if s.round.Resolution == nil {
		s.round.Resolution = &Resolution{
			CorrectIndex: payload.CorrectAnswerIndex,
			WasCorrect:   payload.Correct,
			PointsEarned: payload.ScoreEarned,
		}
	}
	s.mu.Unlock()
	s.onChange()
}

// handleRoundEnd resolves the round for players who received no personal
// feedback. If feedback already resolved it, the earlier resolution stands.
func (s *Session) handleRoundEnd(data json.RawMessage) {
	var payload events.RoundEndPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Warn().Err(err).Msg("dropping malformed roundEnd")
		return
	}

	s.mu.Lock()
	if s.ended || s.round == nil {
		s.mu.Unlock()
		return
	}
	s.phase = PhaseResolved
	if s.round.Resolution == nil && payload.CorrectAnswerIndex != nil {
		correct := *payload.CorrectAnswerIndex
		s.round.Resolution = &Resolution{
			CorrectIndex: correct,
			WasCorrect:   s.round.AnswerIndex != nil && *s.round.AnswerIndex == correct,
		}
	}
	s.mu.Unlock()
	s.onChange()
}

func (s *Session) handleGameOver(data json.RawMessage) {
	var payload events.GameOverPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Warn().Err(err).Msg("dropping malformed gameOver")
		return
	}
	models.SortScores(payload.Players)
	s.exit(Exit{Reason: ExitGameOver, Message: "Game over!", FinalScores: payload.Players})
}

// handleGameError surfaces the message and schedules the forced return to
// the directory after a grace period.
func (s *Session) handleGameError(data json.RawMessage) {
	var payload events.GameErrorPayload
	_ = json.Unmarshal(data, &payload)
	msg := payload.Message
	if msg == "" {
		msg = "The game ran into an error."
	}

	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.errMsg = msg
	s.mu.Unlock()
	s.onChange()
	log.Error().Str("lobby_id", s.lobbyID).Str("message", msg).Msg("game error")

	go func() {
		select {
		case <-s.clock.After(errorGraceDelay):
			s.exit(Exit{Reason: ExitGameError, Message: msg})
		case <-s.done:
		}
	}()
}

// handleDisconnect records the gap; whatever round and scoreboard are on
// screen predate it.
func (s *Session) handleDisconnect(json.RawMessage) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.connLost = true
	s.mu.Unlock()
	s.onChange()
	log.Warn().Str("lobby_id", s.lobbyID).Msg("connection lost mid-game")
}

// handleReconnect ends the session after a gap. The fresh connection id is
// not a participant in the running game, so control returns to the
// directory rather than showing stale rounds.
func (s *Session) handleReconnect(json.RawMessage) {
	s.mu.Lock()
	if s.ended || !s.connLost {
		s.mu.Unlock()
		return
	}
	s.connLost = false
	s.mu.Unlock()
	s.exit(Exit{Reason: ExitDisconnected, Message: "Connection lost; the game went on without you."})
}

// exit fires onExit exactly once and marks the session dead so late pushes
// for the torn-down lobby are ignored.
func (s *Session) exit(e Exit) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	close(s.done)
	s.mu.Unlock()

	log.Info().
		Str("lobby_id", s.lobbyID).
		Str("reason", string(e.Reason)).
		Msg("game session ended")
	if s.onExit != nil {
		s.onExit(e)
	}
}
