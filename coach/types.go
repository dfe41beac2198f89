package coach

import (
	"fmt"
	"strings"
	"time"
)

const (
	maxHistoryEntries = 16
	maxNotes          = 60
	maxAutoghostHours = 720

	// A silence longer than this breaks a momentum streak even if the
	// eventual reply is positive.
	streakBreakGap = 72 * time.Hour
)

type Mode string

const (
	ModeBase   Mode = "base"
	ModeShort  Mode = "short"
	ModeFunny  Mode = "funny"
	ModeBolder Mode = "bolder"
	ModeInvite Mode = "invite"
)

// AllModes returns every mode in selection order. Ties in the bandit
// are broken by this order.
func AllModes() []Mode {
	return []Mode{ModeBase, ModeShort, ModeFunny, ModeBolder, ModeInvite}
}

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeBase:
		return ModeBase, nil
	case ModeShort:
		return ModeShort, nil
	case ModeFunny:
		return ModeFunny, nil
	case ModeBolder:
		return ModeBolder, nil
	case ModeInvite:
		return ModeInvite, nil
	default:
		return "", fmt.Errorf("unknown mode: %q", s)
	}
}

type Outcome string

const (
	OutcomeReplied       Outcome = "replied"
	OutcomeStrongReplied Outcome = "strongReplied"
	OutcomeDate          Outcome = "date"
	OutcomeDatePlanned   Outcome = "datePlanned"
	OutcomeGhost         Outcome = "ghost"
)

func ParseOutcome(s string) (Outcome, error) {
	switch Outcome(strings.TrimSpace(s)) {
	case OutcomeReplied:
		return OutcomeReplied, nil
	case OutcomeStrongReplied:
		return OutcomeStrongReplied, nil
	case OutcomeDate:
		return OutcomeDate, nil
	case OutcomeDatePlanned:
		return OutcomeDatePlanned, nil
	case OutcomeGhost:
		return OutcomeGhost, nil
	default:
		return "", fmt.Errorf("unknown outcome: %q", s)
	}
}

// IsSuccess reports whether a thread closed with this outcome counts
// toward the conversation success ratio.
func (o Outcome) IsSuccess() bool {
	switch o {
	case OutcomeReplied, OutcomeStrongReplied, OutcomeDate, OutcomeDatePlanned:
		return true
	default:
		return false
	}
}

type Stage string

const (
	StageS1 Stage = "S1"
	StageS2 Stage = "S2"
	StageS3 Stage = "S3"
	StageS4 Stage = "S4"
)

func ParseStage(s string) (Stage, error) {
	switch Stage(strings.ToUpper(strings.TrimSpace(s))) {
	case StageS1:
		return StageS1, nil
	case StageS2:
		return StageS2, nil
	case StageS3:
		return StageS3, nil
	case StageS4:
		return StageS4, nil
	default:
		return "", fmt.Errorf("unknown stage: %q", s)
	}
}

func (s Stage) Label() string {
	switch s {
	case StageS2:
		return "S2 — trust"
	case StageS3:
		return "S3 — light flirtation"
	case StageS4:
		return "S4 — meeting-ready"
	default:
		return "S1 — getting acquainted"
	}
}

type Pacing string

const (
	PacingWarm Pacing = "warm"
	PacingFast Pacing = "fast"
)

func ParsePacing(s string) (Pacing, error) {
	switch Pacing(strings.ToLower(strings.TrimSpace(s))) {
	case PacingWarm:
		return PacingWarm, nil
	case PacingFast:
		return PacingFast, nil
	default:
		return "", fmt.Errorf("unknown pacing: %q", s)
	}
}

type Speaker string

const (
	SpeakerMe   Speaker = "me"
	SpeakerThem Speaker = "them"
)

// Stats are the outcome counters kept both globally per user and per
// relationship. All fields only move forward outside explicit resets.
type Stats struct {
	Sent          int `json:"sent"`
	Replied       int `json:"replied"`
	StrongReplied int `json:"strong_replied"`
	Dates         int `json:"dates"`
	DatePlanned   int `json:"date_planned"`
	Ghosts        int `json:"ghosts"`
}

// ConvStats counts completed conversation threads.
type ConvStats struct {
	Conversations int `json:"conversations"`
	Successes     int `json:"successes"`
}

// BanditCounters feed mode selection. They are global to the user: the
// user's conversational effectiveness is modeled as a stable personal
// trait, while per-relationship adaptation flows through PrefDelta and
// Stage only.
type BanditCounters struct {
	Tries         int `json:"tries"`
	Replied       int `json:"replied"`
	StrongReplied int `json:"strong_replied"`
	Ghost         int `json:"ghost"`
	DatePlanned   int `json:"date_planned"`
}

// DeliveryCounters back the per-mode usage report.
type DeliveryCounters struct {
	Sent          int `json:"sent"`
	Replied       int `json:"replied"`
	StrongReplied int `json:"strong_replied"`
	Dates         int `json:"dates"`
	DatePlanned   int `json:"date_planned"`
	Ghosts        int `json:"ghosts"`
}

type Settings struct {
	AutopickEnabled bool   `json:"autopick_enabled"`
	Pacing          Pacing `json:"pacing"`
	AutoghostHours  int    `json:"autoghost_hours"`
}

// LastInteraction caches the most recent suggestion batch so tweak and
// commit operations can act without re-supplying context. Last write
// wins; it is never part of thread bookkeeping.
type LastInteraction struct {
	IncomingText     string `json:"incoming_text"`
	SuggestionsText  string `json:"suggestions_text"`
	RelationshipName string `json:"relationship_name"`
	Mode             Mode   `json:"mode"`
}

type HistoryEntry struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

type Note struct {
	At   time.Time `json:"at"`
	Text string    `json:"text"`
}

// Thread is one open send->reply session. It is closed exactly once;
// every mutation path checks Closed first.
type Thread struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	Mode       Mode       `json:"mode"`
	SentCount  int        `json:"sent_count"`
	LastSentAt *time.Time `json:"last_sent_at,omitempty"`
	Closed     bool       `json:"closed"`
	Outcome    Outcome    `json:"outcome,omitempty"`
}

// Relationship is the per-counterpart state: context the user supplied,
// a bounded message history, the stage progression and the additive
// weight offset layered on the user's global weights.
type Relationship struct {
	ContextNote          string                     `json:"context_note"`
	History              []HistoryEntry             `json:"history"`
	Notes                []Note                     `json:"notes"`
	Stage                Stage                      `json:"stage"`
	PrefDelta            Weights                    `json:"pref_delta"`
	ConsecutiveExchanges int                        `json:"consecutive_exchanges"`
	Stats                Stats                      `json:"stats"`
	DeliveryStats        map[Mode]*DeliveryCounters `json:"delivery_stats"`
	Conv                 ConvStats                  `json:"conv"`
	Thread               *Thread                    `json:"thread,omitempty"`
}

type User struct {
	ID                 string                   `json:"id"`
	Weights            Weights                  `json:"weights"`
	LearningEnabled    bool                     `json:"learning_enabled"`
	Debug              bool                     `json:"debug"`
	ModeStats          map[Mode]*BanditCounters `json:"mode_stats"`
	DeliveryStats      map[Mode]*DeliveryCounters `json:"delivery_stats"`
	Settings           Settings                 `json:"settings"`
	Stats              Stats                    `json:"stats"`
	Conv               ConvStats                `json:"conv"`
	Relationships      map[string]*Relationship `json:"relationships"`
	ActiveRelationship string                   `json:"active_relationship"`
	Last               *LastInteraction         `json:"last,omitempty"`
}
