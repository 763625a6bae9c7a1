package domain

import "time"

// MatchWinner is the derived result of a finished match.
type MatchWinner string

const (
	WinnerHome MatchWinner = "home"
	WinnerAway MatchWinner = "away"
	WinnerDraw MatchWinner = "draw"
)

// FinishedMatch is an ephemeral finished-fixture record, reconstructed each
// reconciliation pass from the results provider or the nightly snapshot.
type FinishedMatch struct {
	EventID   string      `json:"event_id"`
	Sport     string      `json:"sport"`
	HomeTeam  string      `json:"home_team"`
	AwayTeam  string      `json:"away_team"`
	HomeScore int         `json:"home_score"`
	AwayScore int         `json:"away_score"`
	Winner    MatchWinner `json:"winner"`
	Status    string      `json:"status"`
}

// DeriveWinner computes the winner from the final score.
func DeriveWinner(homeScore, awayScore int) MatchWinner {
	switch {
	case homeScore > awayScore:
		return WinnerHome
	case awayScore > homeScore:
		return WinnerAway
	default:
		return WinnerDraw
	}
}

// TotalScore is the combined score of both sides, used by over/under markets.
func (m *FinishedMatch) TotalScore() int {
	return m.HomeScore + m.AwayScore
}

// SettledEvent is the durable journal row recorded once per settled event.
// A given external event id appears at most once; repeated settlement passes
// accumulate BetsSettled rather than duplicating the row.
type SettledEvent struct {
	ExternalEventID string    `json:"external_event_id"`
	HomeTeam        string    `json:"home_team"`
	AwayTeam        string    `json:"away_team"`
	Score           string    `json:"score"`
	Winner          string    `json:"winner"`
	BetsSettled     int       `json:"bets_settled"`
	SettledAt       time.Time `json:"settled_at"`
}
