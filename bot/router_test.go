package bot

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quailyquaily/wingmate/coach"
	"github.com/quailyquaily/wingmate/llm"
)

type fakeLLM struct {
	text string
	err  error
}

func (f *fakeLLM) Chat(context.Context, llm.Request) (llm.Result, error) {
	if f.err != nil {
		return llm.Result{}, f.err
	}
	return llm.Result{Text: f.text}, nil
}

func newTestRouter(t *testing.T, client llm.Client) *Router {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	repo := coach.NewFileRepository(filepath.Join(t.TempDir(), "users.json"), logger)
	require.NoError(t, repo.Ensure(context.Background()))
	svc := coach.NewService(repo, client, coach.ServiceOptions{Logger: logger})
	return NewRouter(svc, logger)
}

func TestSplitCommand(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in       string
		wantCmd  string
		wantArgs string
	}{
		{"/help", "/help", ""},
		{"/select Anna", "/select", "Anna"},
		{"/SELECT  anna ", "/select", "anna"},
		{"/tune warmth 0.8", "/tune", "warmth 0.8"},
		{"/help@wingmate_bot", "/help", ""},
		{"/ctx met her at a party", "/ctx", "met her at a party"},
	}
	for _, tc := range cases {
		cmd, args := splitCommand(tc.in)
		assert.Equal(t, tc.wantCmd, cmd, "input %q", tc.in)
		assert.Equal(t, tc.wantArgs, args, "input %q", tc.in)
	}
}

func TestHandleHelp(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &fakeLLM{text: "1) hi"})
	ctx := context.Background()
	assert.Contains(t, r.Handle(ctx, "1", "/help"), "/select <name>")
	assert.Contains(t, r.Handle(ctx, "1", "/start"), "Commands:")
}

func TestHandleUnknownCommand(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &fakeLLM{text: "1) hi"})
	assert.Contains(t, r.Handle(context.Background(), "1", "/frobnicate"), "Unknown command")
}

func TestHandleEmpty(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &fakeLLM{text: "1) hi"})
	assert.Equal(t, "Empty message.", r.Handle(context.Background(), "1", "   "))
}

func TestHandleSelectAndList(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &fakeLLM{text: "1) hi"})
	ctx := context.Background()

	assert.Equal(t, "Active relationship: anna", r.Handle(ctx, "1", "/select anna"))
	out := r.Handle(ctx, "1", "/list")
	assert.Contains(t, out, "* anna")
	assert.Contains(t, out, "  default")
	assert.Equal(t, "Usage: /select <name>", r.Handle(ctx, "1", "/select"))
}

func TestHandleContext(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &fakeLLM{text: "1) hi"})
	ctx := context.Background()

	assert.Equal(t, "Context: none", r.Handle(ctx, "1", "/ctx"))
	assert.Equal(t, "Context updated.", r.Handle(ctx, "1", "/ctx met at the gym"))
	assert.Equal(t, "Context: met at the gym", r.Handle(ctx, "1", "/ctx"))

	// /resetrel leaves the note alone; only /resetctx clears it.
	assert.Equal(t, "History and thread cleared for default (context and stats kept).", r.Handle(ctx, "1", "/resetrel"))
	assert.Equal(t, "Context: met at the gym", r.Handle(ctx, "1", "/ctx"))
	assert.Equal(t, "Context reset for default.", r.Handle(ctx, "1", "/resetctx"))
	assert.Equal(t, "Context: none", r.Handle(ctx, "1", "/ctx"))
}

func TestHandleToggles(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &fakeLLM{text: "1) hi"})
	ctx := context.Background()

	assert.Equal(t, "Learning off.", r.Handle(ctx, "1", "/learning off"))
	assert.Equal(t, "Debug on.", r.Handle(ctx, "1", "/debug on"))
	assert.Equal(t, "Autopick off.", r.Handle(ctx, "1", "/autopick 0"))
	assert.Equal(t, "Usage: Learning on|off", r.Handle(ctx, "1", "/learning maybe"))
}

func TestHandleTune(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &fakeLLM{text: "1) hi"})
	ctx := context.Background()

	assert.Equal(t, "warmth = 0.80", r.Handle(ctx, "1", "/tune warmth 0.8"))
	assert.Equal(t, "Usage: /tune <dimension> <0..1>", r.Handle(ctx, "1", "/tune warmth"))
	assert.Contains(t, r.Handle(ctx, "1", "/tune charisma 0.5"), "Unknown weight dimension")
	assert.Contains(t, r.Handle(ctx, "1", "/tune warmth lots"), "Invalid value")
}

func TestHandlePacingAndAutoghost(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &fakeLLM{text: "1) hi"})
	ctx := context.Background()

	assert.Equal(t, "Pacing: fast", r.Handle(ctx, "1", "/pacing fast"))
	assert.Contains(t, r.Handle(ctx, "1", "/pacing sprint"), "Invalid value")
	assert.Equal(t, "Autoghost after 72h of silence.", r.Handle(ctx, "1", "/autoghost 72"))
	assert.Equal(t, "Autoghost disabled.", r.Handle(ctx, "1", "/autoghost off"))
	assert.Equal(t, "Usage: /autoghost <hours>|off", r.Handle(ctx, "1", "/autoghost soon"))
	assert.Contains(t, r.Handle(ctx, "1", "/autoghost 10000"), "Invalid value")
}

func TestHandleSuggestFlow(t *testing.T) {
	t.Parallel()

	client := &fakeLLM{text: "1) Best answer\n2)\n- alt one\n- alt two"}
	r := newTestRouter(t, client)
	ctx := context.Background()

	out := r.Handle(ctx, "1", "hey, how was your day?")
	assert.Contains(t, out, "Best answer")

	sent := r.Handle(ctx, "1", "/sent best")
	assert.Contains(t, sent, "Best answer")
	assert.Contains(t, sent, "message 1 in thread")

	outcome := r.Handle(ctx, "1", "/outcome replied")
	assert.Contains(t, outcome, "Outcome recorded for default")

	// The thread is closed now; a second outcome has nothing to act on.
	assert.Contains(t, r.Handle(ctx, "1", "/outcome ghost"), "No active thread")
}

func TestHandleSuggestGenerationFailure(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &fakeLLM{err: errors.New("upstream down")})
	out := r.Handle(context.Background(), "1", "hello")
	assert.Contains(t, out, "Generation failed, nothing was recorded")
}

func TestHandleOutcomeInvalid(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &fakeLLM{text: "1) hi"})
	assert.Contains(t, r.Handle(context.Background(), "1", "/outcome vanished"), "Invalid value")
}

func TestHandleTweakWithoutBatch(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &fakeLLM{text: "1) hi"})
	assert.Contains(t, r.Handle(context.Background(), "1", "/tweak short"), "No active thread")
}

func TestHandleNotes(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &fakeLLM{text: "1) hi"})
	ctx := context.Background()

	assert.Equal(t, "No notes for default.", r.Handle(ctx, "1", "/notes"))
	assert.Equal(t, "Noted.", r.Handle(ctx, "1", "/note likes jazz"))
	out := r.Handle(ctx, "1", "/notes")
	assert.Contains(t, out, "likes jazz")
	assert.Contains(t, out, "Notes for default:")
	assert.Equal(t, "Empty input.", r.Handle(ctx, "1", "/note"))
}

func TestHandleStatus(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &fakeLLM{text: "1) hi"})
	out := r.Handle(context.Background(), "1", "/status")
	assert.Contains(t, out, "Active: default")
	assert.Contains(t, out, "Stage: S1")
	assert.Contains(t, out, "autoghost: 48h")
}

func TestHandleModes(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &fakeLLM{text: "1) hi"})
	out := r.Handle(context.Background(), "1", "/modes")
	assert.Contains(t, out, "Modes:")
	assert.Contains(t, out, "Best mode:")
}

func TestRenderError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want string
	}{
		{coach.ErrInvalidDimension, "Unknown weight dimension"},
		{coach.ErrInvalidValue, "Invalid value"},
		{coach.ErrNoActiveThread, "No active thread"},
		{coach.ErrEmptyInput, "Empty input."},
		{coach.ErrGenerationFailure, "Generation failed"},
		{errors.New("disk on fire"), "Something went wrong"},
	}
	for _, tc := range cases {
		assert.Contains(t, renderError(tc.err), tc.want)
	}
}
