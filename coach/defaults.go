package coach

import "strings"

const DefaultRelationshipName = "default"

const defaultContextNote = "none"

// NewUser builds a complete user record with one default relationship
// selected. Constructors always produce valid values; there is no
// runtime backfilling outside NormalizeUser.
func NewUser(id string) *User {
	u := &User{
		ID:              id,
		Weights:         DefaultWeights(),
		LearningEnabled: true,
		Settings: Settings{
			AutopickEnabled: true,
			Pacing:          PacingWarm,
			AutoghostHours:  48,
		},
		ModeStats:          make(map[Mode]*BanditCounters, len(AllModes())),
		DeliveryStats:      make(map[Mode]*DeliveryCounters, len(AllModes())),
		Relationships:      map[string]*Relationship{DefaultRelationshipName: NewRelationship()},
		ActiveRelationship: DefaultRelationshipName,
	}
	for _, m := range AllModes() {
		u.ModeStats[m] = &BanditCounters{}
		u.DeliveryStats[m] = &DeliveryCounters{}
	}
	return u
}

func NewRelationship() *Relationship {
	rel := &Relationship{
		ContextNote:   defaultContextNote,
		Stage:         StageS1,
		DeliveryStats: make(map[Mode]*DeliveryCounters, len(AllModes())),
	}
	for _, m := range AllModes() {
		rel.DeliveryStats[m] = &DeliveryCounters{}
	}
	return rel
}

// NormalizeUser repairs a record loaded from disk: missing maps,
// unknown enum values and out-of-range weights from older versions of
// the store are fixed once here, at load time.
func NormalizeUser(id string, u *User) *User {
	if u == nil {
		return NewUser(id)
	}
	u.ID = id
	u.Weights.clampAll()

	if u.ModeStats == nil {
		u.ModeStats = make(map[Mode]*BanditCounters, len(AllModes()))
	}
	if u.DeliveryStats == nil {
		u.DeliveryStats = make(map[Mode]*DeliveryCounters, len(AllModes()))
	}
	for _, m := range AllModes() {
		if u.ModeStats[m] == nil {
			u.ModeStats[m] = &BanditCounters{}
		}
		if u.DeliveryStats[m] == nil {
			u.DeliveryStats[m] = &DeliveryCounters{}
		}
	}

	if _, err := ParsePacing(string(u.Settings.Pacing)); err != nil {
		u.Settings.Pacing = PacingWarm
	}
	if u.Settings.AutoghostHours < 0 {
		u.Settings.AutoghostHours = 0
	}
	if u.Settings.AutoghostHours > maxAutoghostHours {
		u.Settings.AutoghostHours = maxAutoghostHours
	}

	if u.Relationships == nil {
		u.Relationships = map[string]*Relationship{}
	}
	for name, rel := range u.Relationships {
		u.Relationships[name] = normalizeRelationship(rel)
	}
	if len(u.Relationships) == 0 {
		u.Relationships[DefaultRelationshipName] = NewRelationship()
	}
	if _, ok := u.Relationships[u.ActiveRelationship]; !ok {
		u.ActiveRelationship = firstRelationshipName(u)
	}
	return u
}

func normalizeRelationship(rel *Relationship) *Relationship {
	if rel == nil {
		return NewRelationship()
	}
	if rel.ContextNote == "" {
		rel.ContextNote = defaultContextNote
	}
	if _, err := ParseStage(string(rel.Stage)); err != nil {
		rel.Stage = StageS1
	}
	if rel.ConsecutiveExchanges < 0 {
		rel.ConsecutiveExchanges = 0
	}
	if rel.DeliveryStats == nil {
		rel.DeliveryStats = make(map[Mode]*DeliveryCounters, len(AllModes()))
	}
	for _, m := range AllModes() {
		if rel.DeliveryStats[m] == nil {
			rel.DeliveryStats[m] = &DeliveryCounters{}
		}
	}
	if len(rel.History) > maxHistoryEntries {
		rel.History = rel.History[len(rel.History)-maxHistoryEntries:]
	}
	if len(rel.Notes) > maxNotes {
		rel.Notes = rel.Notes[len(rel.Notes)-maxNotes:]
	}
	return rel
}

func firstRelationshipName(u *User) string {
	if _, ok := u.Relationships[DefaultRelationshipName]; ok {
		return DefaultRelationshipName
	}
	for name := range u.Relationships {
		return name
	}
	return DefaultRelationshipName
}

// ensureRelationship lazily upserts a relationship by name and makes it
// active. An empty name falls back to the current active one.
func ensureRelationship(u *User, name string) (string, *Relationship) {
	key := strings.TrimSpace(name)
	if key == "" {
		key = u.ActiveRelationship
	}
	if key == "" {
		key = DefaultRelationshipName
	}
	rel, ok := u.Relationships[key]
	if !ok {
		rel = NewRelationship()
		u.Relationships[key] = rel
	}
	u.ActiveRelationship = key
	return key, rel
}
