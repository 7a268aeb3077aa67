package settlement

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sharpline/cardline/internal/domain"
)

// TypeBreakdown is the record within one market type.
type TypeBreakdown struct {
	Wins       int     `json:"wins"`
	Losses     int     `json:"losses"`
	Pushes     int     `json:"pushes"`
	ProfitLoss float64 `json:"profit_loss"`
}

// ConfidenceBin is one calibration bucket over confidence scores.
type ConfidenceBin struct {
	Label   string  `json:"label"` // e.g. "7-8"
	Bets    int     `json:"bets"`
	Wins    int     `json:"wins"`
	HitRate float64 `json:"hit_rate"` // pushes excluded
}

// Aggregates summarizes a set of settled bets.
type Aggregates struct {
	Bets        int                      `json:"bets"`
	Wins        int                      `json:"wins"`
	Losses      int                      `json:"losses"`
	Pushes      int                      `json:"pushes"`
	HitRate     float64                  `json:"hit_rate"` // wins / (wins+losses)
	TotalStaked float64                  `json:"total_staked"`
	ProfitLoss  float64                  `json:"profit_loss"`
	UnitsPL     float64                  `json:"units_pl"`
	ROI         float64                  `json:"roi"` // profit / staked
	ByType      map[string]TypeBreakdown `json:"by_type"`
	Calibration []ConfidenceBin          `json:"calibration,omitempty"`
}

// Compute aggregates graded bets. scoreByPick maps pick id to the 1-10
// confidence score; pass nil to skip calibration.
func Compute(bets []domain.Bet, scoreByPick map[string]int) Aggregates {
	agg := Aggregates{ByType: make(map[string]TypeBreakdown)}
	bins := map[string]*ConfidenceBin{}

	for _, b := range bets {
		if b.Result == domain.BetPending {
			continue
		}
		agg.Bets++
		agg.TotalStaked += b.Stake
		agg.ProfitLoss += b.ProfitLoss
		if b.Stake > 0 && b.Units > 0 {
			agg.UnitsPL += b.ProfitLoss / (b.Stake / b.Units)
		}

		bt := agg.ByType[string(b.BetType)]
		switch b.Result {
		case domain.BetWin:
			agg.Wins++
			bt.Wins++
		case domain.BetLoss:
			agg.Losses++
			bt.Losses++
		case domain.BetPush:
			agg.Pushes++
			bt.Pushes++
		}
		bt.ProfitLoss += b.ProfitLoss
		agg.ByType[string(b.BetType)] = bt

		if scoreByPick != nil {
			if score, ok := scoreByPick[b.PickID.String()]; ok && b.Result != domain.BetPush {
				label := binLabel(score)
				bin, ok := bins[label]
				if !ok {
					bin = &ConfidenceBin{Label: label}
					bins[label] = bin
				}
				bin.Bets++
				if b.Result == domain.BetWin {
					bin.Wins++
				}
			}
		}
	}

	if decided := agg.Wins + agg.Losses; decided > 0 {
		agg.HitRate = float64(agg.Wins) / float64(decided)
	}
	if agg.TotalStaked > 0 {
		agg.ROI = agg.ProfitLoss / agg.TotalStaked
	}

	for _, bin := range bins {
		if bin.Bets > 0 {
			bin.HitRate = float64(bin.Wins) / float64(bin.Bets)
		}
		agg.Calibration = append(agg.Calibration, *bin)
	}
	sort.Slice(agg.Calibration, func(i, j int) bool {
		return agg.Calibration[i].Label < agg.Calibration[j].Label
	})
	return agg
}

func binLabel(score int) string {
	switch {
	case score <= 2:
		return "1-2"
	case score <= 4:
		return "3-4"
	case score <= 6:
		return "5-6"
	case score <= 8:
		return "7-8"
	default:
		return "9-10"
	}
}

// FormatPerformance renders the running performance context fed to the
// president and auditor prompts.
func FormatPerformance(latest *domain.Bankroll, initial float64, lifetime Aggregates) string {
	var sb strings.Builder
	balance := initial
	if latest != nil {
		balance = latest.Balance
	}
	fmt.Fprintf(&sb, "bankroll $%.2f (started $%.2f)", balance, initial)
	if lifetime.Bets > 0 {
		fmt.Fprintf(&sb, "; record %d-%d-%d, hit rate %.1f%%, ROI %.1f%%, units %+.1f",
			lifetime.Wins, lifetime.Losses, lifetime.Pushes,
			lifetime.HitRate*100, lifetime.ROI*100, lifetime.UnitsPL)
		keys := make([]string, 0, len(lifetime.ByType))
		for k := range lifetime.ByType {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			bt := lifetime.ByType[k]
			fmt.Fprintf(&sb, "; %s %d-%d-%d (%+.2f)", k, bt.Wins, bt.Losses, bt.Pushes, bt.ProfitLoss)
		}
	} else {
		sb.WriteString("; no settled history yet")
	}
	return sb.String()
}
