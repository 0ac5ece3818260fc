// Package henk connects the fabric engine to the conversation: it keeps per-session
// preference memory and turns each customer statement into the next thing to show.
package henk

import (
	"encoding/json"

	"github.com/Laisky/henk-fabric/internal/fabric"
)

// ActionKind discriminates NextAction variants on the wire.
type ActionKind string

const (
	KindPresentPair       ActionKind = "present_pair"
	KindNoMatches         ActionKind = "no_matches"
	KindSearchUnavailable ActionKind = "search_unavailable"
)

// User facing texts. They never carry internal error details.
const (
	MessageSearchUnavailable = "Couldn't search fabrics right now, please try again."
	MessageNoMatches         = "No matching fabrics found for these preferences."
	MessageNoLuxury          = "No matching fabric in the luxury tier."
	MessageNoMidTier         = "No matching fabric in the mid tier."
)

// NextAction is what the conversation layer should do after a turn.
// The set of variants is closed: PresentPair, NoMatches and SearchUnavailable.
type NextAction interface {
	Kind() ActionKind
	isNextAction()
}

// PresentPair shows one mid-tier and one luxury fabric. One slot may be empty,
// Message then says so.
type PresentPair struct {
	Pair     fabric.FabricSuggestionPair `json:"pair"`
	Ranked   []fabric.ScoredFabric       `json:"ranked"`
	Criteria fabric.FabricSearchCriteria `json:"criteria"`
	Filters  []string                    `json:"filters"`
	Message  string                      `json:"message,omitempty"`
}

// NoMatches means the search ran but nothing survived the filters.
type NoMatches struct {
	Criteria fabric.FabricSearchCriteria `json:"criteria"`
	Filters  []string                    `json:"filters"`
	Message  string                      `json:"message"`
}

// SearchUnavailable means an upstream dependency failed. The customer sees a generic text.
type SearchUnavailable struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (PresentPair) Kind() ActionKind       { return KindPresentPair }
func (NoMatches) Kind() ActionKind         { return KindNoMatches }
func (SearchUnavailable) Kind() ActionKind { return KindSearchUnavailable }

func (PresentPair) isNextAction()       {}
func (NoMatches) isNextAction()         {}
func (SearchUnavailable) isNextAction() {}

// MarshalJSON adds the kind discriminator.
func (a PresentPair) MarshalJSON() ([]byte, error) {
	type plain PresentPair
	return json.Marshal(struct {
		Kind ActionKind `json:"kind"`
		plain
	}{Kind: KindPresentPair, plain: plain(a)})
}

// MarshalJSON adds the kind discriminator.
func (a NoMatches) MarshalJSON() ([]byte, error) {
	type plain NoMatches
	return json.Marshal(struct {
		Kind ActionKind `json:"kind"`
		plain
	}{Kind: KindNoMatches, plain: plain(a)})
}

// MarshalJSON adds the kind discriminator.
func (a SearchUnavailable) MarshalJSON() ([]byte, error) {
	type plain SearchUnavailable
	return json.Marshal(struct {
		Kind ActionKind `json:"kind"`
		plain
	}{Kind: KindSearchUnavailable, plain: plain(a)})
}

// pairMessage is the honest note for a pair with an empty slot.
func pairMessage(pair fabric.FabricSuggestionPair) string {
	switch {
	case pair.LuxuryTier == nil:
		return MessageNoLuxury
	case pair.MidTier == nil:
		return MessageNoMidTier
	default:
		return ""
	}
}
