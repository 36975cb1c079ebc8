package interview

import (
	"slices"
	"strings"
)

// Config carries the tunable thresholds and budgets for the clarification
// dialogue. Values come from service configuration, never from call sites.
type Config struct {
	HighConfidence float64
	LowConfidence  float64
	SoftTurnLimit  int
	HardTurnLimit  int
}

// Question is one generated clarification question with its stated purpose.
// Critical marks questions worth asking even late in the dialogue.
type Question struct {
	Question string `json:"question"`
	Purpose  string `json:"purpose"`
	Critical bool   `json:"critical"`
}

// Controller drives a Session through the clarification state machine.
type Controller struct {
	cfg Config
}

// NewController creates a controller with the given thresholds.
func NewController(cfg Config) *Controller {
	return &Controller{cfg: cfg}
}

// Route applies the confidence thresholds to a session after a
// classification pass. Above the high threshold the session is immediately
// ready; below the low threshold it is ready but flagged for mandatory
// manual review; in between the dialogue continues.
func (c *Controller) Route(s *Session, confidence float64) {
	if s.Terminal() {
		return
	}

	s.LastConfidence = confidence

	switch {
	case confidence > c.cfg.HighConfidence:
		s.Status = StatusReadyToClassify
	case confidence < c.cfg.LowConfidence:
		s.Status = StatusReadyToClassify
		s.ReviewRequired = true
	default:
		s.Status = StatusAsking
	}
}

// QuestionBudget returns the maximum number of questions for the session's
// current round, following the diminishing schedule. A zero budget with
// criticalOnly set means only questions marked critical may be asked.
func (c *Controller) QuestionBudget(s *Session) (budget int, criticalOnly bool) {
	switch round := s.TurnsTaken; {
	case round == 0:
		return 3, false
	case round <= 4:
		return 2, false
	case round <= 7:
		return 1, false
	default:
		return 1, true
	}
}

// CheckGuards runs the loop-detection guards that gate every question round.
// It transitions the session to ForceStopped when a guard fires and reports
// whether the session may continue. The soft turn warning is recorded but
// does not stop the dialogue.
func (c *Controller) CheckGuards(s *Session) bool {
	if s.Terminal() {
		return false
	}

	if s.TurnsTaken >= c.cfg.HardTurnLimit {
		c.forceStop(s, StopTurnLimit)
		return false
	}

	if s.TurnsTaken >= c.cfg.SoftTurnLimit {
		s.SoftWarning = true
	}

	if repetitionDetected(s.AskedQuestions) {
		c.forceStop(s, StopRepetition)
		return false
	}

	if userLacksInformation(s.Answers) {
		c.forceStop(s, StopUserLacksInfo)
		return false
	}

	return true
}

// AcceptQuestions filters generated questions against the dedupe check and
// the round budget, records the survivors, and moves the session to
// WaitingForAnswer. Returns the questions to put to the user; an empty
// result leaves the session in Asking so the caller can re-route.
func (c *Controller) AcceptQuestions(s *Session, generated []Question) []string {
	if s.Status != StatusAsking {
		return nil
	}

	budget, criticalOnly := c.QuestionBudget(s)

	var accepted []string
	for _, q := range generated {
		if len(accepted) >= budget {
			break
		}
		if criticalOnly && !q.Critical {
			continue
		}
		if isDuplicate(q.Question, s.AskedQuestions) {
			continue
		}
		accepted = append(accepted, q.Question)
	}

	if len(accepted) == 0 {
		return nil
	}

	s.AskedQuestions = append(s.AskedQuestions, accepted...)
	s.PendingCount = len(accepted)
	s.Status = StatusWaitingForAnswer
	return accepted
}

// RecordAnswer appends an answer to the session and completes the turn.
// Only valid while waiting for an answer; completing the last pending
// answer returns the session to Asking for re-routing.
func (c *Controller) RecordAnswer(s *Session, answer string) error {
	if s.Status != StatusWaitingForAnswer {
		return ErrNotWaitingForAnswer
	}

	s.Answers = append(s.Answers, answer)
	s.TurnsTaken++

	if s.PendingCount > 0 {
		s.PendingCount--
	}
	if s.PendingCount == 0 {
		s.Status = StatusAsking
	}

	return nil
}

// ForceClassify transitions any non-terminal session directly to
// ReadyToClassify, marking the interview as skipped.
func (c *Controller) ForceClassify(s *Session) error {
	if s.Terminal() {
		return ErrSessionTerminal
	}

	s.Status = StatusReadyToClassify
	s.Skipped = true
	return nil
}

// StopDegraded force-stops a session after the collaborator failed to
// produce a usable classification. The case goes to manual review instead
// of surfacing the failure to the caller.
func (c *Controller) StopDegraded(s *Session) error {
	if s.Terminal() {
		return ErrSessionTerminal
	}

	c.forceStop(s, StopMalformedResponse)
	return nil
}

// StopBarrenRound force-stops a session after a question round where
// nothing survived the dedupe and budget filters. A round rejected for
// duplication counts as detected repetition; otherwise the dialogue has
// nothing left to ask. Either way the case needs a human look.
func (c *Controller) StopBarrenRound(s *Session, generated []Question) error {
	if s.Terminal() {
		return ErrSessionTerminal
	}

	reason := StopNoQuestions
	for _, q := range generated {
		if isDuplicate(q.Question, s.AskedQuestions) {
			reason = StopRepetition
			break
		}
	}

	c.forceStop(s, reason)
	return nil
}

func (c *Controller) forceStop(s *Session, reason StopReason) {
	s.Status = StatusForceStopped
	s.StopReason = reason
	s.ReviewRequired = true
}

// repetitionDetected reports whether the most recent five questions contain
// fewer than three semantically distinct strings.
func repetitionDetected(asked []string) bool {
	if len(asked) < 5 {
		return false
	}

	recent := asked[len(asked)-5:]
	distinct := make(map[string]struct{}, len(recent))
	for _, q := range recent {
		distinct[normalize(q)] = struct{}{}
	}

	return len(distinct) < 3
}

// userLacksInformation reports whether at least two of the last three
// answers match the don't-know lexicon.
func userLacksInformation(answers []string) bool {
	if len(answers) < 3 {
		return false
	}

	recent := answers[len(answers)-3:]
	matches := 0
	for _, a := range recent {
		if isDontKnow(a) {
			matches++
		}
	}

	return matches >= 2
}

var dontKnowPhrases = []string{
	"i dont know",
	"dont know",
	"no idea",
	"no clue",
	"not sure",
	"unsure",
	"idk",
	"dunno",
	"cant say",
	"cant answer",
}

func isDontKnow(answer string) bool {
	n := normalize(answer)
	if n == "" {
		return true
	}
	for _, phrase := range dontKnowPhrases {
		if strings.Contains(n, phrase) {
			return true
		}
	}
	return false
}

// isDuplicate performs the semantic-equality check against prior questions:
// two questions are equal when their normalized token sets coincide.
func isDuplicate(question string, asked []string) bool {
	candidate := tokenKey(question)
	for _, q := range asked {
		if tokenKey(q) == candidate {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '\t' || r == '\n':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func tokenKey(s string) string {
	fields := strings.Fields(normalize(s))
	seen := make(map[string]struct{}, len(fields))
	var unique []string
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		unique = append(unique, f)
	}
	slices.Sort(unique)
	return strings.Join(unique, " ")
}
