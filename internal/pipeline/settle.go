package pipeline

import (
	"context"
	"fmt"

	"github.com/sharpline/cardline/internal/agent"
	"github.com/sharpline/cardline/internal/domain"
	"github.com/sharpline/cardline/internal/settlement"
)

// SettleCard grades the pending bets of one card date: pull final scores,
// record them, settle each bet write-once, roll the bankroll forward and
// write the audit report. A date with no pending bets is a no-op.
func (c *Coordinator) SettleCard(ctx context.Context, date string) error {
	pending, err := c.repos.Bets.ListPendingByDate(ctx, c.pool, date)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		c.logger.Info("no pending bets to settle", "date", date)
		return nil
	}

	// Re-scrape the date: final games come back with scores.
	scraped, err := c.schedule.ScrapeGames(ctx, date)
	if err != nil {
		return fmt.Errorf("scrape finals: %w", err)
	}
	finals := make(map[string]*domain.Game)
	for i := range scraped {
		g := &scraped[i]
		if g.Final() {
			finals[g.ID] = g
			if err := c.repos.Games.RecordResult(ctx, c.pool, g.ID, *g.Result); err != nil {
				c.logger.Warn("record result failed", "game_id", g.ID, "error", err)
			}
		}
	}

	settled := 0
	totalPL := 0.0
	totalStaked := 0.0
	for i := range pending {
		bet := &pending[i]
		game, ok := finals[bet.GameID]
		if !ok {
			c.logger.Warn("game not final; bet stays pending", "game_id", bet.GameID)
			continue
		}
		result, profitLoss, err := settlement.Settle(bet, game)
		if err != nil {
			c.logger.Error("grading failed; bet stays pending",
				"bet_id", bet.ID, "game_id", bet.GameID, "error", err)
			continue
		}

		tx, err := c.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin settle tx: %w", err)
		}
		if err := c.repos.Bets.Settle(ctx, tx, bet.ID, result, profitLoss); err != nil {
			tx.Rollback(ctx)
			c.logger.Error("settle write failed", "bet_id", bet.ID, "error", err)
			continue
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit settle: %w", err)
		}

		bet.Result = result
		bet.ProfitLoss = profitLoss
		settled++
		totalPL += profitLoss
		totalStaked += bet.Stake
	}
	if settled == 0 {
		c.logger.Info("nothing settled; all games still open", "date", date)
		return nil
	}

	scores, err := c.repos.Picks.ScoresByDate(ctx, c.pool, date)
	if err != nil {
		c.logger.Warn("pick scores unavailable", "error", err)
	}
	agg := settlement.Compute(pending, scores)

	snapshot := &domain.Bankroll{
		Date:         date,
		Balance:      c.currentBalance(ctx) + totalPL,
		TotalWagered: c.lifetimeWagered(ctx),
		TotalProfit:  c.lifetimeProfit(ctx) + totalPL,
		ActiveBets:   len(pending) - settled,
	}
	if err := c.repos.Bankroll.Append(ctx, c.pool, snapshot); err != nil {
		return err
	}

	finalScores := make(map[string]string, len(finals))
	for id, g := range finals {
		finalScores[id] = fmt.Sprintf("%s %d — %s %d", g.AwayTeam, g.Result.AwayScore, g.HomeTeam, g.Result.HomeScore)
	}
	reasoning, err := c.repos.Picks.ReasoningByDate(ctx, c.pool, date)
	if err != nil {
		c.logger.Warn("pick reasoning unavailable", "error", err)
	}

	var audit *agent.AuditReport
	if c.cfg.Agents["auditor"].On() {
		audit = c.auditor.Review(ctx, date, pending, finalScores, reasoning, agg, c.performanceContext(ctx))
	}
	c.reports.WriteAuditReport(date, pending, agg, audit, snapshot)

	c.logger.Info("card settled", "date", date, "settled", settled,
		"staked", totalStaked, "profit_loss", totalPL, "balance", snapshot.Balance)
	return nil
}

// performanceContext builds the running-history summary fed to the
// president and auditor prompts.
func (c *Coordinator) performanceContext(ctx context.Context) string {
	latest, err := c.repos.Bankroll.Latest(ctx, c.pool)
	if err != nil {
		c.logger.Warn("bankroll history unavailable", "error", err)
	}

	settled, err := c.repos.Bets.ListSettled(ctx, c.pool, 500)
	if err != nil {
		c.logger.Warn("settled bet history unavailable", "error", err)
	}
	lifetime := settlement.Compute(settled, nil)

	return settlement.FormatPerformance(latest, c.cfg.Bankroll.Initial, lifetime)
}
