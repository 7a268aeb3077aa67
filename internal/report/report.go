// Package report renders the human-readable artifacts of a pipeline run
// under data/reports/.
package report

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sharpline/cardline/internal/agent"
	"github.com/sharpline/cardline/internal/domain"
	"github.com/sharpline/cardline/internal/settlement"
)

// Writer renders report files. Report failures are logged, never fatal:
// the database is the system of record.
type Writer struct {
	baseDir string
	logger  *slog.Logger
}

// NewWriter creates a report writer rooted at baseDir (data/reports).
func NewWriter(baseDir string, logger *slog.Logger) *Writer {
	return &Writer{baseDir: baseDir, logger: logger}
}

func (w *Writer) write(subdir, name, content string) {
	dir := filepath.Join(w.baseDir, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		w.logger.Warn("report dir create failed", "dir", dir, "error", err)
		return
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		w.logger.Warn("report write failed", "path", path, "error", err)
		return
	}
	w.logger.Info("report written", "path", path)
}

// WriteAgentDebug dumps one stage's raw artifacts for a debug run.
func (w *Writer) WriteAgentDebug(agentName, date, content string) {
	w.write(agentName, fmt.Sprintf("%s_%s.txt", agentName, date), content)
}

// WriteBettingCard renders the approved card.
func (w *Writer) WriteBettingCard(date string, picks []domain.ApprovedPick, bankroll float64) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "BETTING CARD — %s\n", date)
	fmt.Fprintf(&sb, "bankroll: $%.2f\n", bankroll)
	fmt.Fprintf(&sb, "generated: %s\n\n", time.Now().Format(time.RFC1123))

	if len(picks) == 0 {
		sb.WriteString("no approved plays today\n")
	}
	for i, p := range picks {
		marker := " "
		if p.BestBet {
			marker = "*"
		}
		fmt.Fprintf(&sb, "%s %2d. %s  %s %s", marker, i+1, p.GameID, p.BetType, p.Selection)
		if p.BetType != domain.BetMoneyline {
			fmt.Fprintf(&sb, " %+.1f", p.Line)
		}
		fmt.Fprintf(&sb, " (%+d) — %.1fu, score %d/10", p.Odds, p.Units, p.ConfidenceScore)
		if p.Book != "" {
			fmt.Fprintf(&sb, " @ %s", p.Book)
		}
		sb.WriteString("\n")
		if p.FinalReasoning != "" {
			fmt.Fprintf(&sb, "      %s\n", p.FinalReasoning)
		}
	}
	sb.WriteString("\n* = best bet\n")
	w.write("", fmt.Sprintf("betting_card_%s.txt", date), sb.String())
}

// WritePresidentReport renders the approval verdict, pass by pass.
func (w *Writer) WritePresidentReport(date string, reviews []domain.CardReviewRecord, final *agent.CardReview) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "PRESIDENT'S REPORT — %s\n\n", date)
	for _, r := range reviews {
		fmt.Fprintf(&sb, "pass %d: %s\n%s\n\n", r.Pass, r.Decision, r.Summary)
	}
	if final != nil {
		fmt.Fprintf(&sb, "approved %d, rejected %d\n", len(final.Approved), len(final.Rejected))
		for _, rej := range final.Rejected {
			fmt.Fprintf(&sb, "  rejected %s: %s\n", rej.GameID, rej.Reason)
		}
	}
	w.write("president", fmt.Sprintf("presidents_report_%s.txt", date), sb.String())
}

// WriteDailyReport renders the run summary: games, picks, token spend.
func (w *Writer) WriteDailyReport(date string, games []domain.Game, picks []domain.ApprovedPick, usage map[string]domain.AgentUsage) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "DAILY REPORT — %s\n\n", date)
	fmt.Fprintf(&sb, "slate: %d games, card: %d plays\n\n", len(games), len(picks))

	for _, g := range games {
		when := "TBD"
		if g.StartTime != nil {
			when = g.StartTime.Format("3:04 PM MST")
		}
		fmt.Fprintf(&sb, "  %s @ %s — %s\n", g.AwayTeam, g.HomeTeam, when)
	}

	if len(usage) > 0 {
		sb.WriteString("\ntoken usage:\n")
		for agentName, u := range usage {
			fmt.Fprintf(&sb, "  %-12s calls=%d prompt=%d completion=%d failures=%d\n",
				agentName, u.Calls, u.PromptTokens, u.CompletionTokens, u.Failures)
		}
	}
	w.write("", fmt.Sprintf("daily_report_%s.txt", date), sb.String())
}

// WriteAuditReport renders the settlement post-mortem.
func (w *Writer) WriteAuditReport(date string, bets []domain.Bet, agg settlement.Aggregates, narrative *agent.AuditReport, bankroll *domain.Bankroll) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "AUDIT — card of %s\n\n", date)
	fmt.Fprintf(&sb, "record %d-%d-%d  hit %.1f%%  staked $%.2f  P/L %+.2f  ROI %+.1f%%  units %+.1f\n\n",
		agg.Wins, agg.Losses, agg.Pushes, agg.HitRate*100, agg.TotalStaked, agg.ProfitLoss, agg.ROI*100, agg.UnitsPL)

	for _, b := range bets {
		fmt.Fprintf(&sb, "  %-5s %s %s (%+d) %.1fu — %+.2f\n",
			strings.ToUpper(string(b.Result)), b.GameID, b.Selection, b.Odds, b.Units, b.ProfitLoss)
	}

	for bt, breakdown := range agg.ByType {
		fmt.Fprintf(&sb, "\n%s: %d-%d-%d (%+.2f)", bt, breakdown.Wins, breakdown.Losses, breakdown.Pushes, breakdown.ProfitLoss)
	}
	sb.WriteString("\n")

	if bankroll != nil {
		fmt.Fprintf(&sb, "\nbankroll after settlement: $%.2f (lifetime %+.2f)\n", bankroll.Balance, bankroll.TotalProfit)
	}

	if narrative != nil {
		fmt.Fprintf(&sb, "\n%s\n", narrative.Summary)
		for _, lesson := range narrative.Lessons {
			fmt.Fprintf(&sb, "  - %s\n", lesson)
		}
		if narrative.ProcessAdjustments != "" {
			fmt.Fprintf(&sb, "\nadjustments: %s\n", narrative.ProcessAdjustments)
		}
	}
	w.write("auditor", fmt.Sprintf("auditor_%s.txt", date), sb.String())
}
