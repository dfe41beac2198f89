package coach

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/quailyquaily/wingmate/llm"
)

const defaultModel = "gpt-4.1-mini"

type ServiceOptions struct {
	Model   string
	Persona Persona
	Logger  *slog.Logger
	Now     func() time.Time
	// Rand supplies a deterministic source for tests. The service
	// serializes access to it; nil uses the locked shared source.
	Rand *rand.Rand
}

// Service exposes the engine's public operations. Every mutating
// operation is one atomic read-modify-persist cycle against the user's
// record; the repository provides the per-user serialization.
type Service struct {
	repo    Repository
	client  llm.Client
	model   string
	persona Persona
	logger  *slog.Logger
	now     func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewService(repo Repository, client llm.Client, opts ServiceOptions) *Service {
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.Persona == (Persona{}) {
		opts.Persona = DefaultPersona()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		repo:    repo,
		client:  client,
		model:   opts.Model,
		persona: opts.Persona,
		logger:  opts.Logger,
		now:     opts.Now,
		rng:     opts.Rand,
	}
}

// pickMode serializes access to the injected rand source. A *rand.Rand
// is not safe for concurrent use; the nil fallback inside PickMode
// already locks.
func (s *Service) pickMode(u *User, rel *Relationship) Mode {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return PickMode(u, rel, s.rng)
}

// --- relationship management ---

func (s *Service) ListRelationships(ctx context.Context, userID string) ([]string, string, error) {
	u, err := s.repo.Snapshot(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	names := make([]string, 0, len(u.Relationships))
	for name := range u.Relationships {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, u.ActiveRelationship, nil
}

// SelectRelationship makes name the active relationship, creating it on
// first reference.
func (s *Service) SelectRelationship(ctx context.Context, userID, name string) (string, error) {
	var key string
	err := s.repo.Mutate(ctx, userID, func(u *User) error {
		key, _ = ensureRelationship(u, name)
		return nil
	})
	return key, err
}

// ResetRelationship clears the active relationship's history, thread
// and the cached last interaction. The context note and stats survive.
func (s *Service) ResetRelationship(ctx context.Context, userID string) (string, error) {
	var key string
	err := s.repo.Mutate(ctx, userID, func(u *User) error {
		var rel *Relationship
		key, rel = ensureRelationship(u, u.ActiveRelationship)
		rel.History = nil
		rel.Thread = nil
		u.Last = nil
		return nil
	})
	return key, err
}

// ResetContext restores the default context note and wipes the
// conversation state that was built on it.
func (s *Service) ResetContext(ctx context.Context, userID string) (string, error) {
	var key string
	err := s.repo.Mutate(ctx, userID, func(u *User) error {
		var rel *Relationship
		key, rel = ensureRelationship(u, u.ActiveRelationship)
		rel.ContextNote = defaultContextNote
		rel.History = nil
		rel.Thread = nil
		u.Last = nil
		return nil
	})
	return key, err
}

func (s *Service) GetContext(ctx context.Context, userID string) (string, error) {
	u, err := s.repo.Snapshot(ctx, userID)
	if err != nil {
		return "", err
	}
	_, rel := ensureRelationship(u, u.ActiveRelationship)
	return rel.ContextNote, nil
}

func (s *Service) SetContext(ctx context.Context, userID, text string) error {
	text = CleanText(text)
	if text == "" {
		return ErrEmptyInput
	}
	return s.repo.Mutate(ctx, userID, func(u *User) error {
		_, rel := ensureRelationship(u, u.ActiveRelationship)
		rel.ContextNote = text
		return nil
	})
}

func (s *Service) AddNote(ctx context.Context, userID, text string) error {
	if CleanText(text) == "" {
		return ErrEmptyInput
	}
	return s.repo.Mutate(ctx, userID, func(u *User) error {
		_, rel := ensureRelationship(u, u.ActiveRelationship)
		addNote(rel, text, s.now())
		return nil
	})
}

func (s *Service) ListNotes(ctx context.Context, userID string) (string, []Note, error) {
	u, err := s.repo.Snapshot(ctx, userID)
	if err != nil {
		return "", nil, err
	}
	key, rel := ensureRelationship(u, u.ActiveRelationship)
	return key, rel.Notes, nil
}

// --- settings and weights ---

func (s *Service) SetLearning(ctx context.Context, userID string, enabled bool) error {
	return s.repo.Mutate(ctx, userID, func(u *User) error {
		u.LearningEnabled = enabled
		return nil
	})
}

func (s *Service) SetDebug(ctx context.Context, userID string, enabled bool) error {
	return s.repo.Mutate(ctx, userID, func(u *User) error {
		u.Debug = enabled
		return nil
	})
}

func (s *Service) SetAutopick(ctx context.Context, userID string, enabled bool) error {
	return s.repo.Mutate(ctx, userID, func(u *User) error {
		u.Settings.AutopickEnabled = enabled
		return nil
	})
}

func (s *Service) SetPacing(ctx context.Context, userID, pacing string) (Pacing, error) {
	p, err := ParsePacing(pacing)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	err = s.repo.Mutate(ctx, userID, func(u *User) error {
		u.Settings.Pacing = p
		return nil
	})
	return p, err
}

// SetAutoghost sets the staleness window in hours; 0 disables the
// sweep for this user.
func (s *Service) SetAutoghost(ctx context.Context, userID string, hours int) (int, error) {
	if hours < 0 || hours > maxAutoghostHours {
		return 0, fmt.Errorf("%w: autoghost hours must be within 0..%d", ErrInvalidValue, maxAutoghostHours)
	}
	err := s.repo.Mutate(ctx, userID, func(u *User) error {
		u.Settings.AutoghostHours = hours
		return nil
	})
	return hours, err
}

func (s *Service) TuneWeight(ctx context.Context, userID, dimension string, value float64) (float64, error) {
	var out float64
	err := s.repo.Mutate(ctx, userID, func(u *User) error {
		v, err := TuneWeight(u, dimension, value)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (s *Service) ResetWeights(ctx context.Context, userID string) (Weights, error) {
	var out Weights
	err := s.repo.Mutate(ctx, userID, func(u *User) error {
		ResetWeights(u)
		out = u.Weights
		return nil
	})
	return out, err
}

// --- reporting ---

type StatusInfo struct {
	ActiveRelationship string
	Stage              Stage
	Settings           Settings
	LearningEnabled    bool
	Debug              bool
	Weights            Weights
}

func (s *Service) Status(ctx context.Context, userID string) (StatusInfo, error) {
	u, err := s.repo.Snapshot(ctx, userID)
	if err != nil {
		return StatusInfo{}, err
	}
	key, rel := ensureRelationship(u, u.ActiveRelationship)
	return StatusInfo{
		ActiveRelationship: key,
		Stage:              rel.Stage,
		Settings:           u.Settings,
		LearningEnabled:    u.LearningEnabled,
		Debug:              u.Debug,
		Weights:            u.Weights,
	}, nil
}

type ProfileInfo struct {
	LearningEnabled bool
	Weights         Weights
	TopModes        []ModeScore
}

func (s *Service) Profile(ctx context.Context, userID string) (ProfileInfo, error) {
	u, err := s.repo.Snapshot(ctx, userID)
	if err != nil {
		return ProfileInfo{}, err
	}
	return ProfileInfo{
		LearningEnabled: u.LearningEnabled,
		Weights:         u.Weights,
		TopModes:        TopModes(u, 3),
	}, nil
}

type StatsInfo struct {
	Stats           Stats
	Score           string
	HintSummary     string
	HintInstruction string
}

func (s *Service) StatsReport(ctx context.Context, userID string) (StatsInfo, error) {
	u, err := s.repo.Snapshot(ctx, userID)
	if err != nil {
		return StatsInfo{}, err
	}
	_, rel := ensureRelationship(u, u.ActiveRelationship)
	summary, instruction := learningHint(u, rel)
	return StatsInfo{
		Stats:           u.Stats,
		Score:           ScoreText(u.Conv),
		HintSummary:     summary,
		HintInstruction: instruction,
	}, nil
}

func (s *Service) RelationshipStatsReport(ctx context.Context, userID string) (string, StatsInfo, error) {
	u, err := s.repo.Snapshot(ctx, userID)
	if err != nil {
		return "", StatsInfo{}, err
	}
	key, rel := ensureRelationship(u, u.ActiveRelationship)
	return key, StatsInfo{Stats: rel.Stats, Score: ScoreText(rel.Conv)}, nil
}

func (s *Service) Score(ctx context.Context, userID string) (string, error) {
	u, err := s.repo.Snapshot(ctx, userID)
	if err != nil {
		return "", err
	}
	return ScoreText(u.Conv), nil
}

func (s *Service) RelationshipScore(ctx context.Context, userID string) (string, string, error) {
	u, err := s.repo.Snapshot(ctx, userID)
	if err != nil {
		return "", "", err
	}
	key, rel := ensureRelationship(u, u.ActiveRelationship)
	return key, ScoreText(rel.Conv), nil
}

func (s *Service) ModeUsageReport(ctx context.Context, userID string) (ModeReport, error) {
	u, err := s.repo.Snapshot(ctx, userID)
	if err != nil {
		return ModeReport{}, err
	}
	return BuildModeReport(u.DeliveryStats), nil
}

func (s *Service) RelationshipModeUsageReport(ctx context.Context, userID string) (string, ModeReport, error) {
	u, err := s.repo.Snapshot(ctx, userID)
	if err != nil {
		return "", ModeReport{}, err
	}
	key, rel := ensureRelationship(u, u.ActiveRelationship)
	return key, BuildModeReport(rel.DeliveryStats), nil
}

// --- suggestion generation ---

type SuggestResult struct {
	Suggestions    string
	Mode           Mode
	Stage          Stage
	AutoClassified bool
	AutoOutcome    Outcome
}

// GenerateReplies produces a suggestion batch for an incoming message.
// The expensive LLM call runs against a snapshot, outside any lock, and
// no state is mutated until it succeeds: a failed generation leaves
// counters, history and the thread untouched, and the caller can simply
// retry with the same message.
func (s *Service) GenerateReplies(ctx context.Context, userID, incoming string) (SuggestResult, error) {
	incoming = CleanText(incoming)
	if incoming == "" {
		return SuggestResult{}, ErrEmptyInput
	}

	snapshot, err := s.repo.Snapshot(ctx, userID)
	if err != nil {
		return SuggestResult{}, err
	}
	now := s.now()

	// Rehearse the mutation on the snapshot: classification advances
	// stage and weights, both of which feed the prompt and the mode
	// pick. The same deterministic steps are replayed on the
	// authoritative record after the call returns.
	key, rel := ensureRelationship(snapshot, snapshot.ActiveRelationship)
	classified, autoOutcome := classifyIncoming(snapshot, rel, incoming, now)
	pushHistory(rel, SpeakerThem, incoming)

	mode := ModeBase
	if snapshot.Settings.AutopickEnabled {
		mode = s.pickMode(snapshot, rel)
	}

	prompt := buildSuggestionPrompt(s.persona, snapshot, rel, incoming, mode)
	text, err := s.generate(ctx, prompt, systemPrompt)
	if err != nil {
		return SuggestResult{}, err
	}

	result := SuggestResult{Mode: mode, AutoClassified: classified, AutoOutcome: autoOutcome}
	err = s.repo.Mutate(ctx, userID, func(u *User) error {
		_, liveRel := ensureRelationship(u, key)
		classifyIncoming(u, liveRel, incoming, now)
		pushHistory(liveRel, SpeakerThem, incoming)
		u.Last = &LastInteraction{
			IncomingText:     incoming,
			SuggestionsText:  text,
			RelationshipName: key,
			Mode:             mode,
		}
		result.Suggestions = text + debugFooter(u, liveRel, mode)
		result.Stage = liveRel.Stage
		return nil
	})
	if err != nil {
		return SuggestResult{}, err
	}

	s.logger.Debug("suggestions generated",
		"user", userID, "relationship", key, "mode", mode,
		"stage", result.Stage, "auto_classified", result.AutoClassified)
	return result, nil
}

// TweakReplies regenerates the cached last batch with a modifier. The
// thread and counters are untouched; only the cache is replaced.
func (s *Service) TweakReplies(ctx context.Context, userID string, tweak string) (SuggestResult, error) {
	kind, err := ParseTweakKind(tweak)
	if err != nil {
		return SuggestResult{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	snapshot, err := s.repo.Snapshot(ctx, userID)
	if err != nil {
		return SuggestResult{}, err
	}
	if snapshot.Last == nil || snapshot.Last.IncomingText == "" || snapshot.Last.SuggestionsText == "" {
		return SuggestResult{}, ErrNoActiveThread
	}

	key, rel := ensureRelationship(snapshot, snapshot.Last.RelationshipName)
	instruction, mode := tweakInstruction(kind, snapshot.Last.Mode)
	prompt := buildTweakPrompt(s.persona, snapshot, rel, snapshot.Last, instruction)

	system := systemPrompt
	if kind == TweakWhy {
		system += explainSystemSuffix
	}
	text, err := s.generate(ctx, prompt, system)
	if err != nil {
		return SuggestResult{}, err
	}

	result := SuggestResult{Mode: mode}
	err = s.repo.Mutate(ctx, userID, func(u *User) error {
		if u.Last == nil {
			return ErrNoActiveThread
		}
		u.Last.SuggestionsText = text
		u.Last.Mode = mode
		_, liveRel := ensureRelationship(u, key)
		result.Suggestions = text + debugFooter(u, liveRel, mode)
		result.Stage = liveRel.Stage
		return nil
	})
	if err != nil {
		return SuggestResult{}, err
	}
	return result, nil
}

// AnalyzeLast asks the model to break down the cached incoming message.
// Read-only; nothing is recorded.
func (s *Service) AnalyzeLast(ctx context.Context, userID string) (string, error) {
	snapshot, err := s.repo.Snapshot(ctx, userID)
	if err != nil {
		return "", err
	}
	if snapshot.Last == nil || snapshot.Last.IncomingText == "" {
		return "", ErrNoActiveThread
	}
	_, rel := ensureRelationship(snapshot, snapshot.Last.RelationshipName)
	prompt := buildAnalysisPrompt(s.persona, snapshot, rel, snapshot.Last.IncomingText)
	return s.generate(ctx, prompt, "")
}

func (s *Service) generate(ctx context.Context, prompt, system string) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("%w: no llm client configured", ErrGenerationFailure)
	}
	messages := make([]llm.Message, 0, 2)
	if system != "" {
		messages = append(messages, llm.Message{Role: "system", Content: system})
	}
	messages = append(messages, llm.Message{Role: "user", Content: prompt})

	res, err := s.client.Chat(ctx, llm.Request{Model: s.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailure, err)
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		return "", fmt.Errorf("%w: empty completion", ErrGenerationFailure)
	}
	return text, nil
}

// --- outgoing messages and outcomes ---

type CommitRequest struct {
	// Which selects from the cached suggestions: "best", "alt1".."alt3".
	Which string
	// Text, when set, is committed verbatim instead.
	Text string
}

type CommitResult struct {
	Chosen           string
	Mode             Mode
	RelationshipName string
	SentCount        int
}

// CommitReply records that the user sent a message: it opens (or
// reuses) the thread, bumps the sent counters and registers a bandit
// try for the active mode.
func (s *Service) CommitReply(ctx context.Context, userID string, req CommitRequest) (CommitResult, error) {
	var result CommitResult
	err := s.repo.Mutate(ctx, userID, func(u *User) error {
		chosen := CleanText(req.Text)
		if chosen == "" {
			if u.Last == nil || u.Last.SuggestionsText == "" {
				return ErrNoActiveThread
			}
			parsed, err := ParseSuggestions(u.Last.SuggestionsText)
			if err != nil {
				return err
			}
			switch strings.ToLower(strings.TrimSpace(req.Which)) {
			case "", "best":
				chosen = parsed.Best
			case "alt1":
				chosen = altAt(parsed.Alternatives, 0)
			case "alt2":
				chosen = altAt(parsed.Alternatives, 1)
			case "alt3":
				chosen = altAt(parsed.Alternatives, 2)
			default:
				return fmt.Errorf("%w: unknown choice %q", ErrInvalidValue, req.Which)
			}
			chosen = CleanText(chosen)
		}
		if chosen == "" {
			return ErrEmptyInput
		}

		name := u.ActiveRelationship
		mode := ModeBase
		if u.Last != nil {
			if u.Last.RelationshipName != "" {
				name = u.Last.RelationshipName
			}
			if u.Last.Mode != "" {
				mode = u.Last.Mode
			}
		}
		key, rel := ensureRelationship(u, name)

		pushHistory(rel, SpeakerMe, chosen)
		now := s.now()
		t := EnsureThread(rel, mode, now)
		t.SentCount++
		t.LastSentAt = &now

		u.Stats.Sent++
		rel.Stats.Sent++
		bumpBanditTry(u, mode)
		bumpDelivery(u.DeliveryStats, mode, "", 1)
		bumpDelivery(rel.DeliveryStats, mode, "", 1)

		result = CommitResult{Chosen: chosen, Mode: mode, RelationshipName: key, SentCount: t.SentCount}
		return nil
	})
	return result, err
}

func altAt(alts []string, i int) string {
	if i < 0 || i >= len(alts) {
		return ""
	}
	return alts[i]
}

type OutcomeResult struct {
	RelationshipName string
	Mode             Mode
	Stage            Stage
	Closed           bool
}

// RecordOutcome closes the open thread with an explicitly reported
// outcome, with the same side effects as auto-classification.
func (s *Service) RecordOutcome(ctx context.Context, userID string, outcome Outcome) (OutcomeResult, error) {
	if _, err := ParseOutcome(string(outcome)); err != nil {
		return OutcomeResult{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	var result OutcomeResult
	err := s.repo.Mutate(ctx, userID, func(u *User) error {
		name := u.ActiveRelationship
		if u.Last != nil && u.Last.RelationshipName != "" {
			name = u.Last.RelationshipName
		}
		key, rel := ensureRelationship(u, name)

		t := rel.Thread
		if t == nil || t.Closed {
			return ErrNoActiveThread
		}
		mode := t.Mode
		if mode == "" {
			mode = ModeBase
		}

		switch outcome {
		case OutcomeReplied, OutcomeStrongReplied:
			u.Stats.Replied++
			rel.Stats.Replied++
			if outcome == OutcomeStrongReplied {
				u.Stats.StrongReplied++
				rel.Stats.StrongReplied++
				advanceStageOnStrongReply(rel)
			}
		case OutcomeDate, OutcomeDatePlanned:
			u.Stats.Dates++
			rel.Stats.Dates++
			if outcome == OutcomeDatePlanned {
				u.Stats.DatePlanned++
				rel.Stats.DatePlanned++
			}
			// A meeting means the relationship reached its terminal
			// stage for this model, wherever it was before.
			rel.Stage = StageS4
		case OutcomeGhost:
			u.Stats.Ghosts++
			rel.Stats.Ghosts++
		}

		bumpDelivery(u.DeliveryStats, mode, outcome, 0)
		bumpDelivery(rel.DeliveryStats, mode, outcome, 0)
		bumpBanditOutcome(u, mode, outcome)
		ApplyOutcome(u, outcome, rel.Stage, t.SentCount)

		closed := CloseThread(u, rel, outcome)
		result = OutcomeResult{RelationshipName: key, Mode: mode, Stage: rel.Stage, Closed: closed != nil}
		return nil
	})
	return result, err
}

// AutoghostSweep force-closes stale open threads as ghosts for every
// user with autoghost enabled. Run periodically; it takes the same
// per-user exclusion as request handling, and the idempotent-guarded
// close keeps the race against a manual outcome report safe.
func (s *Service) AutoghostSweep(ctx context.Context) (int, error) {
	ids, err := s.repo.UserIDs(ctx)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, id := range ids {
		err := s.repo.Mutate(ctx, id, func(u *User) error {
			hours := u.Settings.AutoghostHours
			if hours <= 0 {
				return nil
			}
			cutoff := s.now().Add(-time.Duration(hours) * time.Hour)
			for name, rel := range u.Relationships {
				t := rel.Thread
				if t == nil || t.Closed || t.SentCount <= 0 || t.LastSentAt == nil {
					continue
				}
				if !t.LastSentAt.Before(cutoff) {
					continue
				}
				mode := t.Mode
				if mode == "" {
					mode = ModeBase
				}
				u.Stats.Ghosts++
				rel.Stats.Ghosts++
				bumpDelivery(u.DeliveryStats, mode, OutcomeGhost, 0)
				bumpDelivery(rel.DeliveryStats, mode, OutcomeGhost, 0)
				bumpBanditOutcome(u, mode, OutcomeGhost)
				ApplyOutcome(u, OutcomeGhost, rel.Stage, t.SentCount)
				if CloseThread(u, rel, OutcomeGhost) != nil {
					closed++
					s.logger.Info("autoghost closed stale thread",
						"user", id, "relationship", name, "mode", mode)
				}
			}
			return nil
		})
		if err != nil {
			return closed, err
		}
	}
	return closed, nil
}

// --- export ---

func (s *Service) Export(ctx context.Context) ([]byte, error) {
	return s.repo.RawExport(ctx)
}
