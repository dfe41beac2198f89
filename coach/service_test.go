package coach

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/quailyquaily/wingmate/llm"
)

type stubClient struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
	last  llm.Request
}

func (c *stubClient) Chat(_ context.Context, req llm.Request) (llm.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.last = req
	if c.err != nil {
		return llm.Result{}, c.err
	}
	return llm.Result{Text: c.text}, nil
}

const stubBatch = "1) Best reply\n2)\n- alt one\n- alt two"

type serviceFixture struct {
	svc    *Service
	repo   *FileRepository
	client *stubClient
	now    *time.Time
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	repo := newTestRepo(t)
	client := &stubClient{text: stubBatch}
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	f := &serviceFixture{repo: repo, client: client, now: &now}
	f.svc = NewService(repo, client, ServiceOptions{
		Logger: slog.New(slog.DiscardHandler),
		Now:    func() time.Time { return *f.now },
		Rand:   rand.New(rand.NewSource(1)),
	})
	return f
}

func (f *serviceFixture) advance(d time.Duration) {
	*f.now = f.now.Add(d)
}

func TestGenerateRepliesEmptyInput(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	if _, err := f.svc.GenerateReplies(context.Background(), "u1", "   "); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("GenerateReplies() error = %v, want ErrEmptyInput", err)
	}
	if f.client.calls != 0 {
		t.Fatalf("client called %d times for empty input", f.client.calls)
	}
}

func TestGenerateRepliesSuccess(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()

	res, err := f.svc.GenerateReplies(ctx, "u1", "hey, how was your weekend?")
	if err != nil {
		t.Fatalf("GenerateReplies() error = %v", err)
	}
	if res.Suggestions != stubBatch {
		t.Fatalf("Suggestions = %q, want the raw batch without a debug footer", res.Suggestions)
	}
	if res.AutoClassified {
		t.Fatalf("AutoClassified = true with no open thread")
	}
	if res.Mode == "" {
		t.Fatalf("Mode empty, want an autopicked mode")
	}

	u, err := f.repo.Snapshot(ctx, "u1")
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if u.Last == nil || u.Last.SuggestionsText != stubBatch {
		t.Fatalf("Last = %+v, want cached batch", u.Last)
	}
	rel := u.Relationships[u.ActiveRelationship]
	if len(rel.History) != 1 || rel.History[0].Speaker != SpeakerThem {
		t.Fatalf("history = %+v, want one incoming entry", rel.History)
	}
}

func TestGenerateRepliesFailureMutatesNothing(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()
	f.client.err = errors.New("upstream down")

	_, err := f.svc.GenerateReplies(ctx, "u1", "hello there")
	if !errors.Is(err, ErrGenerationFailure) {
		t.Fatalf("GenerateReplies() error = %v, want ErrGenerationFailure", err)
	}

	u, snapErr := f.repo.Snapshot(ctx, "u1")
	if snapErr != nil {
		t.Fatalf("Snapshot() error = %v", snapErr)
	}
	if u.Last != nil {
		t.Fatalf("Last = %+v, want nil after failed generation", u.Last)
	}
	if rel := u.Relationships[u.ActiveRelationship]; len(rel.History) != 0 {
		t.Fatalf("history = %+v, want untouched", rel.History)
	}
	if u.Stats.Replied != 0 {
		t.Fatalf("Stats = %+v, want untouched", u.Stats)
	}
}

func TestGenerateRepliesAutoClassifiesOpenThread(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()

	if _, err := f.svc.GenerateReplies(ctx, "u1", "hi!"); err != nil {
		t.Fatalf("GenerateReplies() error = %v", err)
	}
	if _, err := f.svc.CommitReply(ctx, "u1", CommitRequest{Which: "best"}); err != nil {
		t.Fatalf("CommitReply() error = %v", err)
	}

	f.advance(2 * time.Hour)
	res, err := f.svc.GenerateReplies(ctx, "u1", "haha sounds fun, what about you?")
	if err != nil {
		t.Fatalf("GenerateReplies() error = %v", err)
	}
	if !res.AutoClassified || res.AutoOutcome != OutcomeStrongReplied {
		t.Fatalf("auto classification = (%v, %s), want (true, strongReplied)", res.AutoClassified, res.AutoOutcome)
	}
	if res.Stage != StageS2 {
		t.Fatalf("Stage = %s, want S2 after a strong reply", res.Stage)
	}

	u, _ := f.repo.Snapshot(ctx, "u1")
	rel := u.Relationships[u.ActiveRelationship]
	if rel.Thread == nil || !rel.Thread.Closed {
		t.Fatalf("thread = %+v, want closed by classification", rel.Thread)
	}
	if u.Stats.StrongReplied != 1 {
		t.Fatalf("StrongReplied = %d, want 1", u.Stats.StrongReplied)
	}
}

func TestGenerateRepliesDebugFooter(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()
	if err := f.svc.SetDebug(ctx, "u1", true); err != nil {
		t.Fatalf("SetDebug() error = %v", err)
	}
	res, err := f.svc.GenerateReplies(ctx, "u1", "hello")
	if err != nil {
		t.Fatalf("GenerateReplies() error = %v", err)
	}
	if !strings.Contains(res.Suggestions, "Debug:") {
		t.Fatalf("Suggestions = %q, want a debug footer", res.Suggestions)
	}
}

func TestCommitReplyChoosesAlternative(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()
	if _, err := f.svc.GenerateReplies(ctx, "u1", "hello"); err != nil {
		t.Fatalf("GenerateReplies() error = %v", err)
	}

	res, err := f.svc.CommitReply(ctx, "u1", CommitRequest{Which: "alt2"})
	if err != nil {
		t.Fatalf("CommitReply() error = %v", err)
	}
	if res.Chosen != "alt two" {
		t.Fatalf("Chosen = %q, want %q", res.Chosen, "alt two")
	}
	if res.SentCount != 1 {
		t.Fatalf("SentCount = %d, want 1", res.SentCount)
	}

	u, _ := f.repo.Snapshot(ctx, "u1")
	rel := u.Relationships[res.RelationshipName]
	if rel.Thread == nil || rel.Thread.Closed || rel.Thread.SentCount != 1 {
		t.Fatalf("thread = %+v, want open with one send", rel.Thread)
	}
	if u.Stats.Sent != 1 {
		t.Fatalf("Sent = %d, want 1", u.Stats.Sent)
	}
	if u.ModeStats[res.Mode].Tries != 1 {
		t.Fatalf("bandit tries = %d, want 1", u.ModeStats[res.Mode].Tries)
	}
	if got := rel.History[len(rel.History)-1]; got.Speaker != SpeakerMe || got.Text != "alt two" {
		t.Fatalf("history tail = %+v, want the committed message", got)
	}
}

func TestCommitReplyVerbatimText(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()

	res, err := f.svc.CommitReply(ctx, "u1", CommitRequest{Text: "typed it myself"})
	if err != nil {
		t.Fatalf("CommitReply() error = %v", err)
	}
	if res.Chosen != "typed it myself" {
		t.Fatalf("Chosen = %q", res.Chosen)
	}
	if res.Mode != ModeBase {
		t.Fatalf("Mode = %s, want base with no cached batch", res.Mode)
	}
}

func TestCommitReplyNoCache(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	if _, err := f.svc.CommitReply(context.Background(), "u1", CommitRequest{Which: "best"}); !errors.Is(err, ErrNoActiveThread) {
		t.Fatalf("CommitReply() error = %v, want ErrNoActiveThread", err)
	}
}

func TestCommitReplyUnknownChoice(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()
	if _, err := f.svc.GenerateReplies(ctx, "u1", "hello"); err != nil {
		t.Fatalf("GenerateReplies() error = %v", err)
	}
	if _, err := f.svc.CommitReply(ctx, "u1", CommitRequest{Which: "alt9"}); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("CommitReply(alt9) error = %v, want ErrInvalidValue", err)
	}
}

func TestRecordOutcomeDatePlannedForcesS4(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()
	if _, err := f.svc.CommitReply(ctx, "u1", CommitRequest{Text: "free on friday?"}); err != nil {
		t.Fatalf("CommitReply() error = %v", err)
	}

	res, err := f.svc.RecordOutcome(ctx, "u1", OutcomeDatePlanned)
	if err != nil {
		t.Fatalf("RecordOutcome() error = %v", err)
	}
	if !res.Closed {
		t.Fatalf("Closed = false, want true")
	}
	if res.Stage != StageS4 {
		t.Fatalf("Stage = %s, want S4", res.Stage)
	}

	u, _ := f.repo.Snapshot(ctx, "u1")
	if u.Stats.Dates != 1 || u.Stats.DatePlanned != 1 {
		t.Fatalf("Stats = %+v, want dates and datePlanned bumped", u.Stats)
	}
	if u.Conv.Conversations != 1 || u.Conv.Successes != 1 {
		t.Fatalf("Conv = %+v, want one success", u.Conv)
	}
}

func TestRecordOutcomeInvalid(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	if _, err := f.svc.RecordOutcome(context.Background(), "u1", Outcome("vanished")); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("RecordOutcome() error = %v, want ErrInvalidValue", err)
	}
}

func TestRecordOutcomeNoOpenThread(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	if _, err := f.svc.RecordOutcome(context.Background(), "u1", OutcomeReplied); !errors.Is(err, ErrNoActiveThread) {
		t.Fatalf("RecordOutcome() error = %v, want ErrNoActiveThread", err)
	}
}

func TestRecordOutcomeTwiceFails(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()
	if _, err := f.svc.CommitReply(ctx, "u1", CommitRequest{Text: "hi"}); err != nil {
		t.Fatalf("CommitReply() error = %v", err)
	}
	if _, err := f.svc.RecordOutcome(ctx, "u1", OutcomeGhost); err != nil {
		t.Fatalf("RecordOutcome() error = %v", err)
	}
	if _, err := f.svc.RecordOutcome(ctx, "u1", OutcomeReplied); !errors.Is(err, ErrNoActiveThread) {
		t.Fatalf("second RecordOutcome() error = %v, want ErrNoActiveThread", err)
	}
}

func TestTweakRepliesWithoutBatch(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	if _, err := f.svc.TweakReplies(context.Background(), "u1", "funny"); !errors.Is(err, ErrNoActiveThread) {
		t.Fatalf("TweakReplies() error = %v, want ErrNoActiveThread", err)
	}
}

func TestTweakRepliesReplacesCache(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()
	if _, err := f.svc.GenerateReplies(ctx, "u1", "hello"); err != nil {
		t.Fatalf("GenerateReplies() error = %v", err)
	}

	f.client.text = "1) Shorter best\n2)\n- short alt"
	res, err := f.svc.TweakReplies(ctx, "u1", "short")
	if err != nil {
		t.Fatalf("TweakReplies() error = %v", err)
	}
	if res.Mode != ModeShort {
		t.Fatalf("Mode = %s, want short", res.Mode)
	}

	u, _ := f.repo.Snapshot(ctx, "u1")
	if u.Last.SuggestionsText != "1) Shorter best\n2)\n- short alt" {
		t.Fatalf("cached batch = %q, want the tweaked one", u.Last.SuggestionsText)
	}
	// Tweaking never touches the thread.
	rel := u.Relationships[u.ActiveRelationship]
	if rel.Thread != nil {
		t.Fatalf("thread = %+v, want none", rel.Thread)
	}
}

func TestTweakRepliesInvalidKind(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()
	if _, err := f.svc.GenerateReplies(ctx, "u1", "hello"); err != nil {
		t.Fatalf("GenerateReplies() error = %v", err)
	}
	if _, err := f.svc.TweakReplies(ctx, "u1", "sarcastic"); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("TweakReplies(sarcastic) error = %v, want ErrInvalidValue", err)
	}
}

func TestAutoghostSweep(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()
	if _, err := f.svc.CommitReply(ctx, "u1", CommitRequest{Text: "hello"}); err != nil {
		t.Fatalf("CommitReply() error = %v", err)
	}

	// Default window is 48h; 20h of silence is not stale yet.
	f.advance(20 * time.Hour)
	closed, err := f.svc.AutoghostSweep(ctx)
	if err != nil {
		t.Fatalf("AutoghostSweep() error = %v", err)
	}
	if closed != 0 {
		t.Fatalf("AutoghostSweep() closed = %d, want 0", closed)
	}

	f.advance(30 * time.Hour)
	closed, err = f.svc.AutoghostSweep(ctx)
	if err != nil {
		t.Fatalf("AutoghostSweep() error = %v", err)
	}
	if closed != 1 {
		t.Fatalf("AutoghostSweep() closed = %d, want 1", closed)
	}

	u, _ := f.repo.Snapshot(ctx, "u1")
	rel := u.Relationships[u.ActiveRelationship]
	if rel.Thread == nil || !rel.Thread.Closed || rel.Thread.Outcome != OutcomeGhost {
		t.Fatalf("thread = %+v, want ghost-closed", rel.Thread)
	}
	if u.Stats.Ghosts != 1 {
		t.Fatalf("Ghosts = %d, want 1", u.Stats.Ghosts)
	}

	// A second sweep finds nothing to do.
	closed, err = f.svc.AutoghostSweep(ctx)
	if err != nil {
		t.Fatalf("AutoghostSweep() error = %v", err)
	}
	if closed != 0 {
		t.Fatalf("repeat AutoghostSweep() closed = %d, want 0", closed)
	}
}

func TestAutoghostSweepDisabled(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()
	if _, err := f.svc.SetAutoghost(ctx, "u1", 0); err != nil {
		t.Fatalf("SetAutoghost() error = %v", err)
	}
	if _, err := f.svc.CommitReply(ctx, "u1", CommitRequest{Text: "hello"}); err != nil {
		t.Fatalf("CommitReply() error = %v", err)
	}
	f.advance(1000 * time.Hour)
	closed, err := f.svc.AutoghostSweep(ctx)
	if err != nil {
		t.Fatalf("AutoghostSweep() error = %v", err)
	}
	if closed != 0 {
		t.Fatalf("AutoghostSweep() closed = %d, want 0 when disabled", closed)
	}
}

func TestSetAutoghostBounds(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()
	for _, hours := range []int{-1, maxAutoghostHours + 1} {
		if _, err := f.svc.SetAutoghost(ctx, "u1", hours); !errors.Is(err, ErrInvalidValue) {
			t.Fatalf("SetAutoghost(%d) error = %v, want ErrInvalidValue", hours, err)
		}
	}
	if got, err := f.svc.SetAutoghost(ctx, "u1", maxAutoghostHours); err != nil || got != maxAutoghostHours {
		t.Fatalf("SetAutoghost(max) = (%d, %v)", got, err)
	}
}

func TestSetPacing(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()
	if p, err := f.svc.SetPacing(ctx, "u1", "fast"); err != nil || p != PacingFast {
		t.Fatalf("SetPacing(fast) = (%s, %v)", p, err)
	}
	if _, err := f.svc.SetPacing(ctx, "u1", "sprint"); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("SetPacing(sprint) error = %v, want ErrInvalidValue", err)
	}
}

func TestGenerateRepliesConcurrentSeededRand(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()
	users := []string{"u1", "u2", "u3", "u4", "u5", "u6", "u7", "u8"}

	var wg sync.WaitGroup
	for _, userID := range users {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			if _, err := f.svc.GenerateReplies(ctx, userID, "hey, how was your day?"); err != nil {
				t.Errorf("GenerateReplies(%s) error = %v", userID, err)
			}
		}(userID)
	}
	wg.Wait()

	for _, userID := range users {
		u, err := f.repo.Snapshot(ctx, userID)
		if err != nil {
			t.Fatalf("Snapshot(%s) error = %v", userID, err)
		}
		if u.Last == nil {
			t.Fatalf("Last for %s = nil, want cached batch", userID)
		}
	}
}

func TestResetRelationshipKeepsContextAndStats(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()
	if err := f.svc.SetContext(ctx, "u1", "met at the gym, likes jazz"); err != nil {
		t.Fatalf("SetContext() error = %v", err)
	}
	if _, err := f.svc.GenerateReplies(ctx, "u1", "hello"); err != nil {
		t.Fatalf("GenerateReplies() error = %v", err)
	}
	if _, err := f.svc.CommitReply(ctx, "u1", CommitRequest{Which: "best"}); err != nil {
		t.Fatalf("CommitReply() error = %v", err)
	}

	key, err := f.svc.ResetRelationship(ctx, "u1")
	if err != nil {
		t.Fatalf("ResetRelationship() error = %v", err)
	}
	u, _ := f.repo.Snapshot(ctx, "u1")
	rel := u.Relationships[key]
	if len(rel.History) != 0 || rel.Thread != nil {
		t.Fatalf("relationship not reset: %+v", rel)
	}
	if rel.ContextNote != "met at the gym, likes jazz" {
		t.Fatalf("ContextNote = %q, want the note to survive the reset", rel.ContextNote)
	}
	if u.Last != nil {
		t.Fatalf("Last = %+v, want cleared", u.Last)
	}
	if rel.Stats.Sent != 1 {
		t.Fatalf("Sent = %d, want stats to survive the reset", rel.Stats.Sent)
	}
}

func TestResetContextClearsNoteAndThread(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()
	if err := f.svc.SetContext(ctx, "u1", "met at the gym, likes jazz"); err != nil {
		t.Fatalf("SetContext() error = %v", err)
	}
	if _, err := f.svc.GenerateReplies(ctx, "u1", "hello"); err != nil {
		t.Fatalf("GenerateReplies() error = %v", err)
	}
	if _, err := f.svc.CommitReply(ctx, "u1", CommitRequest{Which: "best"}); err != nil {
		t.Fatalf("CommitReply() error = %v", err)
	}

	key, err := f.svc.ResetContext(ctx, "u1")
	if err != nil {
		t.Fatalf("ResetContext() error = %v", err)
	}
	u, _ := f.repo.Snapshot(ctx, "u1")
	rel := u.Relationships[key]
	if rel.ContextNote != defaultContextNote {
		t.Fatalf("ContextNote = %q, want %q", rel.ContextNote, defaultContextNote)
	}
	if len(rel.History) != 0 || rel.Thread != nil || u.Last != nil {
		t.Fatalf("conversation state not cleared: rel=%+v last=%+v", rel, u.Last)
	}
	if note, err := f.svc.GetContext(ctx, "u1"); err != nil || note != defaultContextNote {
		t.Fatalf("GetContext() = (%q, %v)", note, err)
	}
}

func TestSelectRelationshipCreates(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()
	key, err := f.svc.SelectRelationship(ctx, "u1", "mia")
	if err != nil || key != "mia" {
		t.Fatalf("SelectRelationship() = (%q, %v)", key, err)
	}
	names, active, err := f.svc.ListRelationships(ctx, "u1")
	if err != nil {
		t.Fatalf("ListRelationships() error = %v", err)
	}
	if active != "mia" {
		t.Fatalf("active = %q, want mia", active)
	}
	if len(names) != 2 {
		t.Fatalf("names = %v, want default plus mia", names)
	}
}

func TestAnalyzeLastRequiresCache(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	if _, err := f.svc.AnalyzeLast(context.Background(), "u1"); !errors.Is(err, ErrNoActiveThread) {
		t.Fatalf("AnalyzeLast() error = %v, want ErrNoActiveThread", err)
	}
}

func TestGenerateRepliesEmptyCompletion(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	f.client.text = "   "
	if _, err := f.svc.GenerateReplies(context.Background(), "u1", "hello"); !errors.Is(err, ErrGenerationFailure) {
		t.Fatalf("GenerateReplies() error = %v, want ErrGenerationFailure", err)
	}
}
