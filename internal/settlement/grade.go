// Package settlement grades settled games against recorded bets and
// aggregates card performance.
package settlement

import (
	"fmt"
	"strings"

	"github.com/sharpline/cardline/internal/domain"
	"github.com/sharpline/cardline/internal/names"
)

// side is the resolved orientation of a bet within its game.
type side int

const (
	sideAway side = iota
	sideHome
	sideOver
	sideUnder
)

// GradeBet grades one bet against a final game.
//
// Spread: the picked team covers iff its score plus the quoted line beats
// the other side; equality is a push. Total: over wins iff the combined
// score exceeds the line, under iff below, push on the number. Moneyline:
// outright winner, tie is a push.
func GradeBet(bet *domain.Bet, game *domain.Game) (domain.BetResult, error) {
	if !game.Final() {
		return domain.BetPending, domain.ErrValidation(fmt.Sprintf("game %s is not final", game.ID))
	}
	res := game.Result

	s, err := resolveSide(bet, game)
	if err != nil {
		return domain.BetPending, err
	}

	switch bet.BetType {
	case domain.BetSpread:
		picked, other := float64(res.AwayScore), float64(res.HomeScore)
		if s == sideHome {
			picked, other = other, picked
		}
		adjusted := picked + bet.Line - other
		switch {
		case adjusted > 0:
			return domain.BetWin, nil
		case adjusted < 0:
			return domain.BetLoss, nil
		default:
			return domain.BetPush, nil
		}

	case domain.BetTotal:
		combined := float64(res.AwayScore + res.HomeScore)
		if combined == bet.Line {
			return domain.BetPush, nil
		}
		overHit := combined > bet.Line
		if (s == sideOver) == overHit {
			return domain.BetWin, nil
		}
		return domain.BetLoss, nil

	case domain.BetMoneyline:
		if res.AwayScore == res.HomeScore {
			return domain.BetPush, nil
		}
		awayWon := res.AwayScore > res.HomeScore
		if (s == sideAway) == awayWon {
			return domain.BetWin, nil
		}
		return domain.BetLoss, nil
	}
	return domain.BetPending, domain.ErrValidation(fmt.Sprintf("unknown bet type %q", bet.BetType))
}

// resolveSide maps the selection text onto a game side. Totals demand an
// explicit over/under token; team bets fuzzy-match the selection against
// both teams.
func resolveSide(bet *domain.Bet, game *domain.Game) (side, error) {
	sel := strings.ToLower(bet.Selection)

	if bet.BetType == domain.BetTotal {
		switch {
		case strings.Contains(sel, domain.SideOver):
			return sideOver, nil
		case strings.Contains(sel, domain.SideUnder):
			return sideUnder, nil
		}
		return 0, domain.ErrValidation(fmt.Sprintf("total selection %q names neither side", bet.Selection))
	}

	team := stripSelectionNoise(bet.Selection)
	awayMatch := names.Match(team, game.AwayTeam)
	homeMatch := names.Match(team, game.HomeTeam)
	switch {
	case awayMatch && !homeMatch:
		return sideAway, nil
	case homeMatch && !awayMatch:
		return sideHome, nil
	case awayMatch && homeMatch:
		return 0, domain.ErrValidation(fmt.Sprintf("selection %q matches both teams of %s", bet.Selection, game.ID))
	}
	return 0, domain.ErrValidation(fmt.Sprintf("selection %q matches neither team of %s", bet.Selection, game.ID))
}

// stripSelectionNoise drops the line/odds tail from a selection like
// "Kansas St -3.5 (-110)" or "Duke ML".
func stripSelectionNoise(selection string) string {
	fields := strings.Fields(selection)
	kept := fields[:0]
	for _, f := range fields {
		upper := strings.ToUpper(f)
		if upper == "ML" || upper == "PK" {
			continue
		}
		trimmed := strings.Trim(f, "()")
		if len(trimmed) > 0 && (trimmed[0] == '+' || trimmed[0] == '-' || (trimmed[0] >= '0' && trimmed[0] <= '9')) {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

// Settle grades the bet and fills the write-once fields.
func Settle(bet *domain.Bet, game *domain.Game) (domain.BetResult, float64, error) {
	result, err := GradeBet(bet, game)
	if err != nil {
		return domain.BetPending, 0, err
	}
	return result, bet.Payout(result), nil
}
