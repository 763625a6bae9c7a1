package domain

import (
	"encoding/json"
	"strings"
)

// Prediction is the decoded form of a wager's prediction field. Wagers carry
// either a single prediction or a parlay leg list; the raw field is decoded
// once at ingestion, not re-parsed at each evaluation site.
type Prediction interface {
	isPrediction()
}

// SinglePrediction is one prediction against one event.
type SinglePrediction struct {
	Text      string
	MarketID  string
	OutcomeID string
}

func (SinglePrediction) isPrediction() {}

// ParlayPrediction is a multi-leg combination wager.
type ParlayPrediction struct {
	Legs []ParlayLeg
}

func (ParlayPrediction) isPrediction() {}

// ParlayLeg is one prediction within a parlay, tied to one event.
type ParlayLeg struct {
	EventID    string `json:"event_id"`
	Sport      string `json:"sport,omitempty"`
	Prediction string `json:"prediction"`
	MarketID   string `json:"market_id,omitempty"`
	OutcomeID  string `json:"outcome_id,omitempty"`
}

// legDelimiter separates legs in the delimited text encoding.
const legDelimiter = "|"

// sportSlugs is the recognized sport-slug vocabulary, longest first so
// hyphenated slugs are matched before their prefixes when splitting
// composite event ids.
var sportSlugs = []string{
	"american-football",
	"rugby-league",
	"rugby-union",
	"ice-hockey",
	"basketball",
	"baseball",
	"cricket",
	"esports",
	"soccer",
	"tennis",
	"mma",
}

// KnownSport reports whether slug is in the sport vocabulary.
func KnownSport(slug string) bool {
	for _, s := range sportSlugs {
		if s == slug {
			return true
		}
	}
	return false
}

// DecodePrediction decodes a wager's raw prediction field into the tagged
// union. Parlay encodings are either a JSON array of legs, or a delimited
// text list paired with a composite external event id.
func DecodePrediction(w *Wager) (Prediction, error) {
	raw := strings.TrimSpace(w.Prediction)

	if strings.HasPrefix(raw, "[") {
		var legs []ParlayLeg
		if err := json.Unmarshal([]byte(raw), &legs); err != nil {
			return nil, ErrValidation("malformed parlay leg list: " + err.Error())
		}
		if len(legs) == 0 {
			return nil, ErrValidation("parlay has no legs")
		}
		for i := range legs {
			if legs[i].Sport == "" {
				legs[i].Sport, legs[i].EventID = splitSportPrefix(legs[i].EventID)
			}
		}
		return ParlayPrediction{Legs: legs}, nil
	}

	if strings.Contains(raw, legDelimiter) {
		texts := strings.Split(raw, legDelimiter)
		refs := SplitCompositeEventID(w.ExternalEventID)
		if len(refs) != len(texts) {
			return nil, ErrValidation("parlay leg count does not match composite event id")
		}
		legs := make([]ParlayLeg, len(texts))
		for i, t := range texts {
			legs[i] = ParlayLeg{
				EventID:    refs[i].EventID,
				Sport:      refs[i].Sport,
				Prediction: strings.TrimSpace(t),
			}
		}
		return ParlayPrediction{Legs: legs}, nil
	}

	return SinglePrediction{Text: raw}, nil
}

// LegRef is one (sport, event) reference extracted from a composite id.
type LegRef struct {
	Sport   string
	EventID string
}

// SplitCompositeEventID splits a composite external event id of the form
// "slug-id-slug-id-..." into per-leg references. Splitting scans for slugs
// from the vocabulary (longest match first) so a hyphenated slug such as
// rugby-league never splits mid-slug. Ids between slugs may themselves
// contain hyphens.
func SplitCompositeEventID(composite string) []LegRef {
	composite = strings.TrimSpace(composite)
	if composite == "" {
		return nil
	}

	tokens := strings.Split(composite, "-")
	var refs []LegRef
	i := 0
	for i < len(tokens) {
		slug, width := matchSlugAt(tokens, i)
		if slug == "" {
			// No leading slug: treat the remainder as a bare event id.
			if len(refs) == 0 {
				return []LegRef{{EventID: composite}}
			}
			// Fold stray tokens into the previous leg's id.
			refs[len(refs)-1].EventID += "-" + tokens[i]
			i++
			continue
		}
		i += width
		start := i
		for i < len(tokens) {
			if s, _ := matchSlugAt(tokens, i); s != "" {
				break
			}
			i++
		}
		refs = append(refs, LegRef{
			Sport:   slug,
			EventID: strings.Join(tokens[start:i], "-"),
		})
	}
	return refs
}

// matchSlugAt tries to match a sport slug starting at token position i,
// returning the slug and how many tokens it spans.
func matchSlugAt(tokens []string, i int) (string, int) {
	for _, slug := range sportSlugs {
		parts := strings.Split(slug, "-")
		if i+len(parts) > len(tokens) {
			continue
		}
		ok := true
		for j, p := range parts {
			if tokens[i+j] != p {
				ok = false
				break
			}
		}
		if ok {
			return slug, len(parts)
		}
	}
	return "", 0
}

// splitSportPrefix strips a leading sport slug from an event id, returning
// the slug (or "" if none) and the bare id.
func splitSportPrefix(eventID string) (sport, id string) {
	refs := SplitCompositeEventID(eventID)
	if len(refs) == 1 && refs[0].Sport != "" {
		return refs[0].Sport, refs[0].EventID
	}
	return "", eventID
}

// EventIDMatches reports whether a stored leg or wager event id refers to
// the given finished-match event id, tolerating a sport-slug prefix on
// either side. When both sides carry a slug the sports must agree: provider
// ids are only unique per sport, so soccer-123 must never claim
// basketball-123.
func EventIDMatches(stored, matchEventID string) bool {
	if stored == "" || matchEventID == "" {
		return false
	}
	if stored == matchEventID {
		return true
	}
	storedSport, bareStored := splitSportPrefix(stored)
	matchSport, bareMatch := splitSportPrefix(matchEventID)
	if storedSport != "" && matchSport != "" && storedSport != matchSport {
		return false
	}
	return bareStored == bareMatch
}
