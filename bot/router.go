// Package bot maps the chat command surface onto the coach engine and
// runs the Telegram long-poll loop.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/quailyquaily/wingmate/coach"
)

// Router turns one inbound command line into one reply. It is
// transport-agnostic so the command surface can be tested without a
// network.
type Router struct {
	svc    *coach.Service
	logger *slog.Logger
}

func NewRouter(svc *coach.Service, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{svc: svc, logger: logger}
}

const helpText = `Commands:
/select <name> — switch (or create) a relationship
/list — list relationships
/resetrel — clear history and thread (keeps context and stats)
/ctx [text] — show or set the context note
/resetctx — reset the context note and clear history and thread
/note <text> — add a note; /notes — list recent notes
/status /profile /stats /rstats /score /rscore /modes /rmodes
/learning on|off  /debug on|off  /autopick on|off
/pacing warm|fast  /autoghost <hours>|off
/tune <dimension> <0..1>  /resetweights
/sent [best|alt1|alt2|alt3|<text>] — record what you sent
/outcome replied|strongReplied|date|datePlanned|ghost
/tweak short|funny|bolder|invite|why|improve
/analyze — break down their last message
Any other text is treated as their incoming message.`

// Handle processes one line of input for userID and returns the reply
// text. All engine errors are rendered as human-readable messages at
// this boundary.
func (r *Router) Handle(ctx context.Context, userID, input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return "Empty message."
	}
	if !strings.HasPrefix(input, "/") {
		return r.suggest(ctx, userID, input)
	}

	cmd, args := splitCommand(input)
	switch cmd {
	case "/start", "/help":
		return helpText

	case "/select":
		if args == "" {
			return "Usage: /select <name>"
		}
		key, err := r.svc.SelectRelationship(ctx, userID, args)
		if err != nil {
			return renderError(err)
		}
		return fmt.Sprintf("Active relationship: %s", key)

	case "/list":
		names, active, err := r.svc.ListRelationships(ctx, userID)
		if err != nil {
			return renderError(err)
		}
		var b strings.Builder
		b.WriteString("Relationships:\n")
		for _, name := range names {
			marker := "  "
			if name == active {
				marker = "* "
			}
			b.WriteString(marker + name + "\n")
		}
		return strings.TrimRight(b.String(), "\n")

	case "/resetrel":
		key, err := r.svc.ResetRelationship(ctx, userID)
		if err != nil {
			return renderError(err)
		}
		return fmt.Sprintf("History and thread cleared for %s (context and stats kept).", key)

	case "/resetctx":
		key, err := r.svc.ResetContext(ctx, userID)
		if err != nil {
			return renderError(err)
		}
		return fmt.Sprintf("Context reset for %s.", key)

	case "/ctx":
		if args == "" {
			note, err := r.svc.GetContext(ctx, userID)
			if err != nil {
				return renderError(err)
			}
			return "Context: " + note
		}
		if err := r.svc.SetContext(ctx, userID, args); err != nil {
			return renderError(err)
		}
		return "Context updated."

	case "/note":
		if err := r.svc.AddNote(ctx, userID, args); err != nil {
			return renderError(err)
		}
		return "Noted."

	case "/notes":
		key, notes, err := r.svc.ListNotes(ctx, userID)
		if err != nil {
			return renderError(err)
		}
		if len(notes) == 0 {
			return fmt.Sprintf("No notes for %s.", key)
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Notes for %s:\n", key)
		for i, n := range notes {
			fmt.Fprintf(&b, "%d) %s — %s\n", i+1, n.At.Format("2006-01-02"), n.Text)
		}
		return strings.TrimRight(b.String(), "\n")

	case "/status":
		st, err := r.svc.Status(ctx, userID)
		if err != nil {
			return renderError(err)
		}
		return fmt.Sprintf("Active: %s\nStage: %s\nPacing: %s, autopick: %t, autoghost: %dh\nLearning: %t, debug: %t\nWeights: %s",
			st.ActiveRelationship, st.Stage.Label(), st.Settings.Pacing, st.Settings.AutopickEnabled,
			st.Settings.AutoghostHours, st.LearningEnabled, st.Debug, coach.WeightsSummary(st.Weights))

	case "/profile":
		p, err := r.svc.Profile(ctx, userID)
		if err != nil {
			return renderError(err)
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Learning: %t\nWeights: %s\nTop modes:\n", p.LearningEnabled, coach.WeightsSummary(p.Weights))
		for _, ms := range p.TopModes {
			fmt.Fprintf(&b, "• %s: %.2f\n", ms.Mode, ms.Score)
		}
		return strings.TrimRight(b.String(), "\n")

	case "/stats":
		info, err := r.svc.StatsReport(ctx, userID)
		if err != nil {
			return renderError(err)
		}
		return fmt.Sprintf("Sent: %d, replied: %d (strong: %d)\nDates: %d (planned: %d), ghosts: %d\nScore: %s\nHint: %s — %s",
			info.Stats.Sent, info.Stats.Replied, info.Stats.StrongReplied,
			info.Stats.Dates, info.Stats.DatePlanned, info.Stats.Ghosts,
			info.Score, info.HintSummary, info.HintInstruction)

	case "/rstats":
		key, info, err := r.svc.RelationshipStatsReport(ctx, userID)
		if err != nil {
			return renderError(err)
		}
		return fmt.Sprintf("%s — sent: %d, replied: %d (strong: %d), dates: %d, ghosts: %d\nScore: %s",
			key, info.Stats.Sent, info.Stats.Replied, info.Stats.StrongReplied,
			info.Stats.Dates, info.Stats.Ghosts, info.Score)

	case "/score":
		score, err := r.svc.Score(ctx, userID)
		if err != nil {
			return renderError(err)
		}
		return "Score: " + score

	case "/rscore":
		key, score, err := r.svc.RelationshipScore(ctx, userID)
		if err != nil {
			return renderError(err)
		}
		return fmt.Sprintf("%s score: %s", key, score)

	case "/modes":
		report, err := r.svc.ModeUsageReport(ctx, userID)
		if err != nil {
			return renderError(err)
		}
		return renderModeReport("Modes", report)

	case "/rmodes":
		key, report, err := r.svc.RelationshipModeUsageReport(ctx, userID)
		if err != nil {
			return renderError(err)
		}
		return renderModeReport("Modes for "+key, report)

	case "/learning":
		return r.toggle(ctx, userID, args, "Learning", r.svc.SetLearning)

	case "/debug":
		return r.toggle(ctx, userID, args, "Debug", r.svc.SetDebug)

	case "/autopick":
		return r.toggle(ctx, userID, args, "Autopick", r.svc.SetAutopick)

	case "/pacing":
		p, err := r.svc.SetPacing(ctx, userID, args)
		if err != nil {
			return renderError(err)
		}
		return fmt.Sprintf("Pacing: %s", p)

	case "/autoghost":
		hours := 0
		if args != "" && !strings.EqualFold(args, "off") {
			n, err := strconv.Atoi(args)
			if err != nil {
				return "Usage: /autoghost <hours>|off"
			}
			hours = n
		}
		set, err := r.svc.SetAutoghost(ctx, userID, hours)
		if err != nil {
			return renderError(err)
		}
		if set == 0 {
			return "Autoghost disabled."
		}
		return fmt.Sprintf("Autoghost after %dh of silence.", set)

	case "/tune":
		fields := strings.Fields(args)
		if len(fields) != 2 {
			return "Usage: /tune <dimension> <0..1>"
		}
		value, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return renderError(fmt.Errorf("%w: %q is not a number", coach.ErrInvalidValue, fields[1]))
		}
		v, err := r.svc.TuneWeight(ctx, userID, fields[0], value)
		if err != nil {
			return renderError(err)
		}
		return fmt.Sprintf("%s = %.2f", fields[0], v)

	case "/resetweights":
		w, err := r.svc.ResetWeights(ctx, userID)
		if err != nil {
			return renderError(err)
		}
		return "Weights reset: " + coach.WeightsSummary(w)

	case "/sent":
		req := coach.CommitRequest{}
		switch strings.ToLower(args) {
		case "", "best", "alt1", "alt2", "alt3":
			req.Which = strings.ToLower(args)
		default:
			req.Text = args
		}
		res, err := r.svc.CommitReply(ctx, userID, req)
		if err != nil {
			return renderError(err)
		}
		return fmt.Sprintf("Recorded for %s (mode %s, message %d in thread):\n%s",
			res.RelationshipName, res.Mode, res.SentCount, res.Chosen)

	case "/outcome":
		res, err := r.svc.RecordOutcome(ctx, userID, coach.Outcome(args))
		if err != nil {
			return renderError(err)
		}
		return fmt.Sprintf("Outcome recorded for %s. Stage: %s.", res.RelationshipName, res.Stage.Label())

	case "/tweak":
		res, err := r.svc.TweakReplies(ctx, userID, args)
		if err != nil {
			return renderError(err)
		}
		return res.Suggestions

	case "/analyze":
		out, err := r.svc.AnalyzeLast(ctx, userID)
		if err != nil {
			return renderError(err)
		}
		return out

	default:
		return "Unknown command. /help for the list."
	}
}

func (r *Router) suggest(ctx context.Context, userID, incoming string) string {
	res, err := r.svc.GenerateReplies(ctx, userID, incoming)
	if err != nil {
		r.logger.Warn("suggestion generation failed", "user", userID, "error", err)
		return renderError(err)
	}
	var prefix string
	if res.AutoClassified {
		prefix = fmt.Sprintf("(previous thread closed as %s)\n\n", res.AutoOutcome)
	}
	return prefix + res.Suggestions
}

func (r *Router) toggle(ctx context.Context, userID, args, label string, set func(context.Context, string, bool) error) string {
	var enabled bool
	switch strings.ToLower(strings.TrimSpace(args)) {
	case "on", "true", "1", "yes":
		enabled = true
	case "off", "false", "0", "no":
		enabled = false
	default:
		return fmt.Sprintf("Usage: %s on|off", label)
	}
	if err := set(ctx, userID, enabled); err != nil {
		return renderError(err)
	}
	state := "off"
	if enabled {
		state = "on"
	}
	return fmt.Sprintf("%s %s.", label, state)
}

func renderModeReport(title string, report coach.ModeReport) string {
	var b strings.Builder
	b.WriteString(title + ":\n")
	for _, line := range report.Lines() {
		b.WriteString(line + "\n")
	}
	fmt.Fprintf(&b, "Best mode: %s", report.Best)
	return b.String()
}

// renderError keeps the chat boundary human-readable; structured error
// kinds exist only inside the engine.
func renderError(err error) string {
	switch {
	case errors.Is(err, coach.ErrInvalidDimension):
		return "Unknown weight dimension. Valid: warmth, brevity, humor, curiosity, flirt, inviteRate."
	case errors.Is(err, coach.ErrInvalidValue):
		return "Invalid value: " + err.Error()
	case errors.Is(err, coach.ErrNoActiveThread):
		return "No active thread. Record a sent message first, or generate suggestions."
	case errors.Is(err, coach.ErrEmptyInput):
		return "Empty input."
	case errors.Is(err, coach.ErrGenerationFailure):
		return "Generation failed, nothing was recorded. Try again."
	default:
		return "Something went wrong: " + err.Error()
	}
}

func splitCommand(input string) (cmd, args string) {
	parts := strings.SplitN(input, " ", 2)
	cmd = strings.ToLower(strings.TrimSpace(parts[0]))
	// Strip a @botname suffix from group-style commands.
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}
	if len(parts) > 1 {
		args = strings.TrimSpace(parts[1])
	}
	return cmd, args
}

// Runner drives the Telegram long-poll loop and the periodic autoghost
// sweep.
type Runner struct {
	api           *telegramAPI
	router        *Router
	svc           *coach.Service
	logger        *slog.Logger
	pollTimeout   int
	sweepInterval time.Duration
}

type RunnerOptions struct {
	Token         string
	BaseURL       string
	PollTimeout   int
	SweepInterval time.Duration
}

func NewRunner(svc *coach.Service, router *Router, logger *slog.Logger, opts RunnerOptions) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 50
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute
	}
	return &Runner{
		api:           newTelegramAPI(nil, opts.BaseURL, opts.Token),
		router:        router,
		svc:           svc,
		logger:        logger,
		pollTimeout:   opts.PollTimeout,
		sweepInterval: opts.SweepInterval,
	}
}

// Run blocks until ctx is canceled. Updates are handled sequentially:
// per-chat ordering matters more than throughput here, and the store
// serializes per user anyway.
func (r *Runner) Run(ctx context.Context) error {
	go r.sweepLoop(ctx)

	var offset int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		updates, err := r.api.getUpdates(ctx, offset, r.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Warn("telegram poll failed", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(3 * time.Second):
			}
			continue
		}
		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			r.handleUpdate(ctx, update)
		}
	}
}

func (r *Runner) handleUpdate(ctx context.Context, update telegramUpdate) {
	msg := update.Message
	if msg == nil || msg.Chat == nil || msg.From == nil || msg.From.IsBot {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	userID := strconv.FormatInt(msg.From.ID, 10)
	reply := r.router.Handle(ctx, userID, text)
	if reply == "" {
		return
	}
	if err := r.api.sendMessage(ctx, msg.Chat.ID, reply); err != nil {
		r.logger.Warn("telegram send failed", "chat_id", msg.Chat.ID, "error", err)
	}
}

func (r *Runner) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			closed, err := r.svc.AutoghostSweep(ctx)
			if err != nil {
				r.logger.Warn("autoghost sweep failed", "error", err)
				continue
			}
			if closed > 0 {
				r.logger.Info("autoghost sweep done", "closed", closed)
			}
		}
	}
}
