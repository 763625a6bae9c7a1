package settlement

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/oddsline/platform/internal/domain"
)

// Outcome evaluation is deterministic and side-effect-free. Dispatch is
// first-match-wins across the supported market encodings; anything
// unrecognized evaluates to false so an unparseable claim is never paid.

var (
	correctScoreRe = regexp.MustCompile(`^(\d+)\s*-\s*(\d+)$`)
	thresholdRe    = regexp.MustCompile(`(\d+(?:\.\d+)?)`)
)

// commonScores enumerates the scores offered as explicit correct-score
// selections; the "other" selection wins only outside this set.
var commonScores = map[string]bool{
	"0-0": true, "1-0": true, "0-1": true, "1-1": true,
	"2-0": true, "0-2": true, "2-1": true, "1-2": true, "2-2": true,
	"3-0": true, "0-3": true, "3-1": true, "1-3": true, "3-2": true, "2-3": true,
	"3-3": true,
}

// double-chance outcome codes as stored by the market feed.
const (
	dcHomeOrDraw = "1X"
	dcHomeOrAway = "12"
	dcDrawOrAway = "X2"
)

// EvaluateOutcome reports whether a prediction won against a finished match.
// marketID/outcomeID are the structured market codes carried by newer wagers
// and parlay legs; both may be empty for text-only predictions.
func EvaluateOutcome(prediction string, m domain.FinishedMatch, marketID, outcomeID string) bool {
	pred := strings.ToLower(strings.TrimSpace(prediction))
	if pred == "" && outcomeID == "" {
		return false
	}

	// 1. Exact correct score ("2-1").
	if sub := correctScoreRe.FindStringSubmatch(pred); sub != nil {
		home, _ := strconv.Atoi(sub[1])
		away, _ := strconv.Atoi(sub[2])
		return home == m.HomeScore && away == m.AwayScore
	}

	// 2. "other": any score outside the enumerated common set.
	if pred == "other" {
		return !commonScores[fmt.Sprintf("%d-%d", m.HomeScore, m.AwayScore)]
	}

	// 3. Double chance by structured code.
	if marketID != "" || outcomeID != "" {
		switch strings.ToUpper(outcomeID) {
		case dcHomeOrDraw:
			return m.Winner != domain.WinnerAway
		case dcHomeOrAway:
			return m.Winner != domain.WinnerDraw
		case dcDrawOrAway:
			return m.Winner != domain.WinnerHome
		}
		switch pred {
		case "home-or-draw":
			return m.Winner != domain.WinnerAway
		case "home-or-away":
			return m.Winner != domain.WinnerDraw
		case "draw-or-away":
			return m.Winner != domain.WinnerHome
		}
	}

	// 4. Literal home/away/draw tokens.
	switch pred {
	case "home", "1":
		return m.Winner == domain.WinnerHome
	case "away", "2":
		return m.Winner == domain.WinnerAway
	case "draw", "x":
		return m.Winner == domain.WinnerDraw
	}

	// 5. "<team> or draw" — double chance by text. Checked before bare
	// team containment so the team name inside the phrase cannot shadow
	// the draw half of the bet.
	if strings.Contains(pred, "or draw") {
		team := strings.TrimSpace(strings.Replace(pred, "or draw", "", 1))
		if m.Winner == domain.WinnerDraw {
			return true
		}
		if teamMatches(team, m.HomeTeam) {
			return m.Winner == domain.WinnerHome
		}
		if teamMatches(team, m.AwayTeam) {
			return m.Winner == domain.WinnerAway
		}
		return false
	}

	// 4 (cont). Team-name containment.
	if teamMatches(pred, m.HomeTeam) {
		return m.Winner == domain.WinnerHome
	}
	if teamMatches(pred, m.AwayTeam) {
		return m.Winner == domain.WinnerAway
	}

	// 6. Over/under on total score, threshold parsed from the text.
	if strings.Contains(pred, "over") || strings.Contains(pred, "under") {
		threshold := 2.5
		if sub := thresholdRe.FindString(pred); sub != "" {
			if v, err := strconv.ParseFloat(sub, 64); err == nil {
				threshold = v
			}
		}
		total := float64(m.TotalScore())
		if strings.Contains(pred, "over") {
			return total > threshold
		}
		return total < threshold
	}

	// 7. Both teams to score.
	if isBTTS(pred, "yes") {
		return m.HomeScore > 0 && m.AwayScore > 0
	}
	if isBTTS(pred, "no") {
		return m.HomeScore == 0 || m.AwayScore == 0
	}

	return false
}

// teamMatches reports whether a prediction fragment refers to a team,
// case-insensitive containment in either direction. Very short fragments
// are rejected to keep containment from matching on noise.
func teamMatches(fragment, team string) bool {
	fragment = strings.ToLower(strings.TrimSpace(fragment))
	team = strings.ToLower(strings.TrimSpace(team))
	if len(fragment) < 3 || team == "" {
		return false
	}
	return strings.Contains(fragment, team) || strings.Contains(team, fragment)
}

func isBTTS(pred, answer string) bool {
	if pred == answer {
		return true
	}
	if strings.Contains(pred, "btts") || strings.Contains(pred, "both teams to score") {
		return strings.HasSuffix(pred, answer)
	}
	return false
}
