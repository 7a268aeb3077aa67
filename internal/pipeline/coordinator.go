// Package pipeline orchestrates the daily run: settle yesterday's card,
// scrape today's slate, drive the agent chain, persist and report.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sharpline/cardline/internal/agent"
	"github.com/sharpline/cardline/internal/domain"
	"github.com/sharpline/cardline/internal/infra"
	"github.com/sharpline/cardline/internal/llm"
	"github.com/sharpline/cardline/internal/provider"
	"github.com/sharpline/cardline/internal/report"
	"github.com/sharpline/cardline/internal/repository"
)

// maxRevisionPasses bounds the president's revise loop.
const maxRevisionPasses = 2

// unitFraction sizes one unit as a fraction of the current bankroll.
const unitFraction = 0.01

// Options are the per-run knobs from the CLI.
type Options struct {
	TargetDate   string // YYYY-MM-DD in the reference zone
	TestLimit    int    // >0 caps the slate for a cheap test run
	GameID       string // non-empty restricts the run to one game
	ForceRefresh bool
	Debug        bool
}

// Repos bundles the persistence layer.
type Repos struct {
	Games     repository.GameRepository
	Lines     repository.LineRepository
	Insights  repository.InsightRepository
	Preds     repository.PredictionRepository
	Picks     repository.PickRepository
	Bets      repository.BetRepository
	Bankroll  repository.BankrollRepository
	Reviews   repository.ReviewRepository
	AgentLogs repository.AgentLogRepository
}

// NewRepos builds the standard repository set.
func NewRepos() Repos {
	return Repos{
		Games:     repository.NewGameRepository(),
		Lines:     repository.NewLineRepository(),
		Insights:  repository.NewInsightRepository(),
		Preds:     repository.NewPredictionRepository(),
		Picks:     repository.NewPickRepository(),
		Bets:      repository.NewBetRepository(),
		Bankroll:  repository.NewBankrollRepository(),
		Reviews:   repository.NewReviewRepository(),
		AgentLogs: repository.NewAgentLogRepository(),
	}
}

// Coordinator wires providers, agents and persistence into one run.
type Coordinator struct {
	pool   *pgxpool.Pool
	cfg    *infra.Config
	repos  Repos
	logger *slog.Logger

	schedule *provider.ScheduleSource
	odds     *provider.OddsSource

	client     *llm.Client
	researcher *agent.Researcher
	modeler    *agent.Modeler
	picker     *agent.Picker
	president  *agent.President
	auditor    *agent.Auditor

	reports *report.Writer
}

// NewCoordinator assembles the pipeline.
func NewCoordinator(
	pool *pgxpool.Pool,
	cfg *infra.Config,
	repos Repos,
	schedule *provider.ScheduleSource,
	odds *provider.OddsSource,
	client *llm.Client,
	researcher *agent.Researcher,
	modeler *agent.Modeler,
	picker *agent.Picker,
	president *agent.President,
	auditor *agent.Auditor,
	reports *report.Writer,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		pool: pool, cfg: cfg, repos: repos,
		schedule: schedule, odds: odds,
		client: client, researcher: researcher, modeler: modeler,
		picker: picker, president: president, auditor: auditor,
		reports: reports, logger: logger,
	}
}

// Run executes one full pipeline day: settlement of the previous card
// first, then the card for the target date. An empty slate or an empty
// line board ends the run cleanly.
func (c *Coordinator) Run(ctx context.Context, opts Options) error {
	c.client.ResetCounters()
	date := opts.TargetDate

	// Yesterday's card settles regardless of how today goes.
	yesterday, err := previousDate(date)
	if err != nil {
		return err
	}
	if err := c.SettleCard(ctx, yesterday); err != nil {
		c.logger.Error("settlement failed", "date", yesterday, "error", err)
	}

	games, err := c.scrapeSlate(ctx, opts)
	if err != nil {
		return err
	}
	if len(games) == 0 {
		c.logger.Info("no games on the slate; nothing to do", "date", date)
		return nil
	}

	lines, err := c.scrapeLines(ctx, games, opts)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		c.logger.Warn("no lines available; aborting card", "date", date)
		return nil
	}

	var insights []domain.GameInsight
	c.runStage(ctx, date, "researcher", func() int {
		insights = c.researcher.Run(ctx, games, lines, date, opts.ForceRefresh)
		c.persistInsights(ctx, date, insights)
		c.debugDump(opts, "researcher", date, insights)
		return len(insights)
	})

	var predictions []domain.Prediction
	c.runStage(ctx, date, "modeler", func() int {
		predictions = c.modeler.Run(ctx, games, insights, lines, date, opts.ForceRefresh)
		c.persistPredictions(ctx, date, predictions)
		c.debugDump(opts, "modeler", date, predictions)
		return len(predictions)
	})

	var picks []domain.Pick
	c.runStage(ctx, date, "picker", func() int {
		picks = c.picker.Run(ctx, games, insights, predictions, lines, date, "")
		c.debugDump(opts, "picker", date, picks)
		return len(picks)
	})

	review, err := c.approveCard(ctx, date, games, picks, insights, predictions, lines, opts)
	if err != nil {
		return err
	}

	if err := c.placeCard(ctx, date, review.Approved); err != nil {
		return err
	}

	c.writeReports(ctx, date, games, review)
	usage := c.client.UsageSummary()
	c.logger.Info("pipeline complete", "date", date,
		"games", len(games), "approved", len(review.Approved),
		"llm_calls", usage.Calls,
		"prompt_tokens", usage.PromptTokens, "completion_tokens", usage.CompletionTokens)

	if len(review.Approved) == 0 {
		return domain.ErrValidation("card rejected: no picks approved")
	}
	return nil
}

// scrapeSlate fetches, filters and persists the day's games.
func (c *Coordinator) scrapeSlate(ctx context.Context, opts Options) ([]domain.Game, error) {
	games, err := c.schedule.ScrapeGames(ctx, opts.TargetDate)
	if err != nil {
		return nil, fmt.Errorf("scrape schedule: %w", err)
	}

	if opts.GameID != "" {
		filtered := games[:0]
		for _, g := range games {
			if g.ID == opts.GameID {
				filtered = append(filtered, g)
			}
		}
		games = filtered
		if len(games) == 0 {
			return nil, domain.ErrNotFound("game", opts.GameID)
		}
	}
	if opts.TestLimit > 0 && len(games) > opts.TestLimit {
		c.logger.Info("test mode: truncating slate", "games", len(games), "limit", opts.TestLimit)
		games = games[:opts.TestLimit]
	}

	for i := range games {
		if err := c.repos.Games.Upsert(ctx, c.pool, &games[i]); err != nil {
			return nil, err
		}
	}
	c.logger.Info("slate scraped", "date", opts.TargetDate, "games", len(games))
	return games, nil
}

// scrapeLines fetches the odds snapshot and replaces the stored one.
func (c *Coordinator) scrapeLines(ctx context.Context, games []domain.Game, opts Options) ([]domain.BettingLine, error) {
	lines, err := c.odds.ScrapeLines(ctx, games, opts.TargetDate, opts.ForceRefresh)
	if err != nil {
		return nil, fmt.Errorf("scrape lines: %w", err)
	}
	if len(lines) == 0 {
		return nil, nil
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin lines tx: %w", err)
	}
	defer tx.Rollback(ctx)
	if err := c.repos.Lines.ReplaceForDate(ctx, tx, opts.TargetDate, lines); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit lines: %w", err)
	}
	c.logger.Info("lines scraped", "date", opts.TargetDate, "lines", len(lines))
	return lines, nil
}

// approveCard runs the president loop: review, optionally redo the flagged
// picks, review again. The loop is bounded; the last verdict stands.
func (c *Coordinator) approveCard(ctx context.Context, date string, games []domain.Game,
	picks []domain.Pick, insights []domain.GameInsight, predictions []domain.Prediction,
	lines []domain.BettingLine, opts Options) (*agent.CardReview, error) {

	teamsByGame := make(map[string]string, len(games))
	gameByID := make(map[string]domain.Game, len(games))
	for _, g := range games {
		teamsByGame[g.ID] = fmt.Sprintf("%s @ %s", g.AwayTeam, g.HomeTeam)
		gameByID[g.ID] = g
	}

	bankroll := c.currentBalance(ctx)
	performance := c.performanceContext(ctx)

	var review *agent.CardReview
	note := ""
	for pass := 1; ; pass++ {
		var err error
		c.runStage(ctx, date, "president", func() int {
			review, err = c.president.Review(ctx, picks, teamsByGame, bankroll,
				c.cfg.Betting.KellyFraction, performance, date, note)
			if review == nil {
				return 0
			}
			return len(review.Approved)
		})
		if err != nil {
			return nil, err
		}

		payload, _ := json.Marshal(review)
		if err := c.repos.Reviews.Insert(ctx, c.pool, date, pass, review.Decision, review.Summary, payload); err != nil {
			c.logger.Warn("card review persist failed", "error", err)
		}

		if review.Decision != "revise" || review.Revision == nil || pass > maxRevisionPasses {
			if review.Decision == "revise" {
				c.logger.Warn("revision budget exhausted; taking last approved set", "pass", pass)
			}
			break
		}

		// Redo only the flagged games and splice the new picks in.
		note = review.Revision.Instructions
		var redo []domain.Game
		for _, id := range review.Revision.GameIDs {
			if g, ok := gameByID[id]; ok {
				redo = append(redo, g)
			}
		}
		if len(redo) == 0 {
			break
		}
		c.logger.Info("president requested revision", "pass", pass, "games", len(redo))
		revised := c.picker.Run(ctx, redo, insights, predictions, lines, date, note)
		revisedByGame := make(map[string]domain.Pick, len(revised))
		for _, p := range revised {
			revisedByGame[p.GameID] = p
		}
		for i := range picks {
			if p, ok := revisedByGame[picks[i].GameID]; ok {
				picks[i] = p
			}
		}
	}

	if limit := c.cfg.Agents["president"].MaxPicksPerDay; limit > 0 && len(review.Approved) > limit {
		c.logger.Warn("card capped to max picks per day",
			"approved", len(review.Approved), "limit", limit)
		review.Approved = review.Approved[:limit]
	}

	c.debugDump(opts, "president", date, review)
	return review, nil
}

// placeCard persists the approved picks and records one pending bet per
// pick, sized off the current bankroll. Below the floor balance the card
// is recorded but nothing is staked.
func (c *Coordinator) placeCard(ctx context.Context, date string, approved []domain.ApprovedPick) error {
	balance := c.currentBalance(ctx)
	unitSize := balance * unitFraction
	betting := balance >= c.cfg.Bankroll.MinBalance
	if !betting {
		c.logger.Warn("bankroll below floor; recording card without stakes",
			"balance", balance, "floor", c.cfg.Bankroll.MinBalance)
	}

	totalStaked := 0.0
	placed := 0
	for i := range approved {
		pickID, err := c.repos.Picks.Insert(ctx, c.pool, date, &approved[i])
		if err != nil {
			return err
		}
		if !betting {
			continue
		}
		stake := approved[i].Units * unitSize
		bet := &domain.Bet{
			ID:        uuid.New(),
			PickID:    pickID,
			GameID:    approved[i].GameID,
			BetType:   approved[i].BetType,
			Selection: approved[i].Selection,
			Line:      approved[i].Line,
			Odds:      approved[i].Odds,
			Stake:     stake,
			Units:     approved[i].Units,
			PlacedAt:  time.Now().UTC(),
			Result:    domain.BetPending,
		}
		if err := c.repos.Bets.Insert(ctx, c.pool, date, bet); err != nil {
			return err
		}
		totalStaked += stake
		placed++
	}

	snapshot := &domain.Bankroll{
		Date:         date,
		Balance:      balance,
		TotalWagered: c.lifetimeWagered(ctx) + totalStaked,
		TotalProfit:  c.lifetimeProfit(ctx),
		ActiveBets:   placed,
	}
	if err := c.repos.Bankroll.Append(ctx, c.pool, snapshot); err != nil {
		return err
	}
	c.logger.Info("card placed", "date", date, "bets", placed, "staked", totalStaked)
	return nil
}

func (c *Coordinator) writeReports(ctx context.Context, date string, games []domain.Game, review *agent.CardReview) {
	c.reports.WriteBettingCard(date, review.Approved, c.currentBalance(ctx))

	reviews, err := c.repos.Reviews.ListByDate(ctx, c.pool, date)
	if err != nil {
		c.logger.Warn("load card reviews failed", "error", err)
	}
	c.reports.WritePresidentReport(date, reviews, review)

	usage, err := c.repos.AgentLogs.UsageByDate(ctx, c.pool, date)
	if err != nil {
		c.logger.Warn("load agent usage failed", "error", err)
	}
	c.reports.WriteDailyReport(date, games, review.Approved, usage)
}

func (c *Coordinator) persistInsights(ctx context.Context, date string, insights []domain.GameInsight) {
	for i := range insights {
		if err := c.repos.Insights.Upsert(ctx, c.pool, date, &insights[i]); err != nil {
			c.logger.Warn("insight persist failed", "game_id", insights[i].GameID, "error", err)
		}
	}
}

func (c *Coordinator) persistPredictions(ctx context.Context, date string, predictions []domain.Prediction) {
	for i := range predictions {
		if err := c.repos.Preds.Upsert(ctx, c.pool, date, &predictions[i]); err != nil {
			c.logger.Warn("prediction persist failed", "game_id", predictions[i].GameID, "error", err)
		}
	}
}

// runStage wraps one agent stage with timing and the usage ledger row.
func (c *Coordinator) runStage(ctx context.Context, date, name string, fn func() int) int {
	before := c.client.UsageSummary()
	start := time.Now()
	produced := fn()
	after := c.client.UsageSummary()

	entry := &domain.AgentLog{
		Date:             date,
		Agent:            name,
		Model:            c.cfg.ModelFor(name),
		PromptTokens:     after.PromptTokens - before.PromptTokens,
		CompletionTokens: after.CompletionTokens - before.CompletionTokens,
		DurationMS:       time.Since(start).Milliseconds(),
		Success:          produced > 0,
	}
	if err := c.repos.AgentLogs.Insert(ctx, c.pool, entry); err != nil {
		c.logger.Warn("agent log persist failed", "agent", name, "error", err)
	}
	return produced
}

func (c *Coordinator) debugDump(opts Options, agentName, date string, v any) {
	if !opts.Debug && !c.cfg.Debug {
		return
	}
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return
	}
	c.reports.WriteAgentDebug(agentName, date, string(raw))
}

func (c *Coordinator) currentBalance(ctx context.Context) float64 {
	latest, err := c.repos.Bankroll.Latest(ctx, c.pool)
	if err != nil {
		c.logger.Warn("bankroll lookup failed", "error", err)
	}
	if latest == nil {
		return c.cfg.Bankroll.Initial
	}
	return latest.Balance
}

func (c *Coordinator) lifetimeWagered(ctx context.Context) float64 {
	latest, _ := c.repos.Bankroll.Latest(ctx, c.pool)
	if latest == nil {
		return 0
	}
	return latest.TotalWagered
}

func (c *Coordinator) lifetimeProfit(ctx context.Context) float64 {
	latest, _ := c.repos.Bankroll.Latest(ctx, c.pool)
	if latest == nil {
		return 0
	}
	return latest.TotalProfit
}

// previousDate returns the calendar day before a YYYY-MM-DD date.
func previousDate(date string) (string, error) {
	t, err := time.ParseInLocation(provider.DateFormat, date, provider.RefLocation())
	if err != nil {
		return "", domain.ErrValidation(fmt.Sprintf("bad date %q", date))
	}
	return t.AddDate(0, 0, -1).Format(provider.DateFormat), nil
}
