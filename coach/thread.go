package coach

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EnsureThread returns the relationship's open thread, creating one if
// none is open. An open thread is reused with its mode refreshed.
func EnsureThread(rel *Relationship, mode Mode, now time.Time) *Thread {
	if mode == "" {
		mode = ModeBase
	}
	if rel.Thread == nil || rel.Thread.Closed {
		rel.Thread = &Thread{
			ID:        uuid.NewString(),
			StartedAt: now,
			Mode:      mode,
		}
		rel.ConsecutiveExchanges = 0
	} else {
		rel.Thread.Mode = mode
	}
	return rel.Thread
}

// CloseThread closes the open thread with the given outcome and bumps
// the completed-conversation counters. Calling it on a missing or
// already-closed thread is a no-op returning nil, which is what makes
// the manual-outcome vs autoghost race safe: conversations can never
// double-increment.
func CloseThread(u *User, rel *Relationship, outcome Outcome) *Thread {
	t := rel.Thread
	if t == nil || t.Closed {
		return nil
	}

	t.Closed = true
	t.Outcome = outcome

	u.Conv.Conversations++
	rel.Conv.Conversations++
	if outcome.IsSuccess() {
		u.Conv.Successes++
		rel.Conv.Successes++
	}
	rel.ConsecutiveExchanges = 0
	return t
}

// advanceStageOnStrongReply moves the stage exactly one step forward.
// S3 and S4 are unaffected by this trigger; only a date outcome can
// force S4. There is no backward transition anywhere in the model.
func advanceStageOnStrongReply(rel *Relationship) {
	switch rel.Stage {
	case StageS1:
		rel.Stage = StageS2
	case StageS2:
		rel.Stage = StageS3
	}
}

var laughterMarkers = []string{"haha", "ahah", "lol", "😂", "😄"}

var reciprocalPhrases = []string{"and you", "what about you", "how about you"}

// IsStrongReply classifies an incoming message as an engaged reply:
// long, questioning, laughing, or asking back.
func IsStrongReply(text string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if len([]rune(normalized)) > 40 {
		return true
	}
	if strings.Contains(normalized, "?") {
		return true
	}
	for _, marker := range laughterMarkers {
		if strings.Contains(normalized, marker) {
			return true
		}
	}
	for _, phrase := range reciprocalPhrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	return false
}

// classifyIncoming applies the auto-classification side effects for an
// incoming message against an open thread with at least one sent
// message: pick the outcome, bump every counter, advance the stage on a
// strong reply, run the learner, track the exchange streak and close
// the thread. It reports whether a classification happened and what it
// was. Callers that have not sent anything yet get {false}.
func classifyIncoming(u *User, rel *Relationship, text string, now time.Time) (classified bool, outcome Outcome) {
	t := rel.Thread
	if t == nil || t.Closed || t.SentCount <= 0 {
		return false, ""
	}

	if t.LastSentAt != nil && now.Sub(*t.LastSentAt) > streakBreakGap {
		rel.ConsecutiveExchanges = 0
	}

	mode := t.Mode
	if mode == "" {
		mode = ModeBase
	}
	outcome = OutcomeReplied
	if IsStrongReply(text) {
		outcome = OutcomeStrongReplied
	}

	u.Stats.Replied++
	rel.Stats.Replied++
	if outcome == OutcomeStrongReplied {
		u.Stats.StrongReplied++
		rel.Stats.StrongReplied++
		advanceStageOnStrongReply(rel)
	}

	bumpDelivery(u.DeliveryStats, mode, outcome, 0)
	bumpDelivery(rel.DeliveryStats, mode, outcome, 0)
	bumpBanditOutcome(u, mode, outcome)
	ApplyOutcome(u, outcome, rel.Stage, t.SentCount)

	// CloseThread below zeroes the counter, so with one classified
	// exchange per thread the bonus fires only from a streak already
	// present in loaded state. Reordering would shift the learned
	// weights of existing stores; keep the sequence as is.
	rel.ConsecutiveExchanges++
	if rel.ConsecutiveExchanges >= 3 {
		ApplyStreakBonus(u)
		rel.ConsecutiveExchanges = 0
	}
	CloseThread(u, rel, outcome)
	return true, outcome
}

// pushHistory appends one entry to the bounded relationship history,
// evicting the oldest beyond the cap.
func pushHistory(rel *Relationship, speaker Speaker, text string) {
	rel.History = append(rel.History, HistoryEntry{Speaker: speaker, Text: CleanText(text)})
	if len(rel.History) > maxHistoryEntries {
		rel.History = rel.History[len(rel.History)-maxHistoryEntries:]
	}
}

func addNote(rel *Relationship, text string, now time.Time) {
	rel.Notes = append(rel.Notes, Note{At: now, Text: CleanText(text)})
	if len(rel.Notes) > maxNotes {
		rel.Notes = rel.Notes[len(rel.Notes)-maxNotes:]
	}
}
