package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/sharpline/cardline/internal/cache"
	"github.com/sharpline/cardline/internal/domain"
	"github.com/sharpline/cardline/internal/fetch"
	"github.com/sharpline/cardline/internal/names"
)

// ── Odds API types ──

type oddsEvent struct {
	ID           string          `json:"id"`
	SportKey     string          `json:"sport_key"`
	CommenceTime string          `json:"commence_time"`
	HomeTeam     string          `json:"home_team"`
	AwayTeam     string          `json:"away_team"`
	Bookmakers   []oddsBookmaker `json:"bookmakers"`
}

type oddsBookmaker struct {
	Key     string       `json:"key"`
	Title   string       `json:"title"`
	Markets []oddsMarket `json:"markets"`
}

type oddsMarket struct {
	Key      string        `json:"key"` // h2h, spreads, totals
	Outcomes []oddsOutcome `json:"outcomes"`
}

type oddsOutcome struct {
	Name  string   `json:"name"`
	Price float64  `json:"price"` // American odds
	Point *float64 `json:"point,omitempty"`
}

const oddsCacheTTL = time.Hour

// OddsSource fetches betting lines from The Odds API, trying books in the
// declared primary-then-fallback order. Responses are batched per
// (book, date) and cached for an hour.
type OddsSource struct {
	client   *fetch.Client
	cache    *cache.Store
	baseURL  string
	apiKey   string
	sportKey string
	books    []string // primary first
	logger   *slog.Logger
}

// NewOddsSource creates the odds connector.
func NewOddsSource(client *fetch.Client, store *cache.Store, apiKey string, books []string, logger *slog.Logger) *OddsSource {
	return &OddsSource{
		client:   client,
		cache:    store,
		baseURL:  "https://api.the-odds-api.com",
		apiKey:   apiKey,
		sportKey: "basketball_ncaab",
		books:    books,
		logger:   logger,
	}
}

// ScrapeLines selects one line per (game, bet type): the primary book
// where it produced any markets for the game, else the first fallback
// that did. Games no book covers simply yield no lines.
func (o *OddsSource) ScrapeLines(ctx context.Context, games []domain.Game, targetDate string, forceRefresh bool) ([]domain.BettingLine, error) {
	if len(games) == 0 {
		return nil, nil
	}

	var lines []domain.BettingLine
	covered := make(map[string]bool, len(games))

	for _, book := range o.books {
		remaining := games[:0:0]
		for _, g := range games {
			if !covered[g.ID] {
				remaining = append(remaining, g)
			}
		}
		if len(remaining) == 0 {
			break
		}

		events, err := o.fetchBookEvents(ctx, book, targetDate, forceRefresh)
		if err != nil {
			// Zero events or a vendor error for one book means partial
			// coverage, not a failed run.
			o.logger.Warn("odds book fetch failed", "book", book, "error", err)
			continue
		}

		for _, g := range remaining {
			gameLines := o.linesForGame(g, book, events)
			if len(gameLines) == 0 {
				continue
			}
			lines = append(lines, gameLines...)
			covered[g.ID] = true
		}
	}

	o.logger.Info("lines scraped", "date", targetDate, "games", len(games),
		"covered", len(covered), "lines", len(lines))
	return lines, nil
}

// fetchBookEvents performs the single per-(book, date) vendor request,
// through the hourly cache.
func (o *OddsSource) fetchBookEvents(ctx context.Context, book, targetDate string, forceRefresh bool) ([]oddsEvent, error) {
	key := fmt.Sprintf("%s_%s", book, targetDate)

	var events []oddsEvent
	if !forceRefresh && o.cache.Get(key, &events, cache.WithinTTL(oddsCacheTTL)) {
		o.logger.Debug("odds cache hit", "book", book, "date", targetDate, "events", len(events))
		return events, nil
	}

	from, to, err := DayBoundsUTC(targetDate)
	if err != nil {
		return nil, domain.ErrValidation(fmt.Sprintf("invalid target date %q", targetDate))
	}

	q := url.Values{}
	q.Set("apiKey", o.apiKey)
	q.Set("regions", "us")
	q.Set("markets", "spreads,totals,h2h")
	q.Set("oddsFormat", "american")
	q.Set("bookmakers", book)
	q.Set("commenceTimeFrom", from.Format("2006-01-02T15:04:05Z"))
	q.Set("commenceTimeTo", to.Format("2006-01-02T15:04:05Z"))

	reqURL := fmt.Sprintf("%s/v4/sports/%s/odds/?%s", o.baseURL, o.sportKey, q.Encode())
	body, err := o.client.Get(ctx, reqURL, nil)
	if err != nil {
		return nil, domain.ErrUpstream("odds", err)
	}
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, domain.ErrUpstream("odds", fmt.Errorf("decode events: %w", err))
	}

	if err := o.cache.Put(key, targetDate, events); err != nil {
		o.logger.Warn("odds cache write failed", "error", err)
	}
	return events, nil
}

// linesForGame finds the matching vendor event and converts its markets.
func (o *OddsSource) linesForGame(g domain.Game, book string, events []oddsEvent) []domain.BettingLine {
	for _, ev := range events {
		if !matchesGame(ev, g.HomeTeam, g.AwayTeam) {
			continue
		}
		return o.convertEvent(g, book, ev)
	}
	return nil
}

// matchesGame succeeds when the event teams match the game teams in either
// orientation. names.Match already falls back to fuzzy at threshold 75.
func matchesGame(ev oddsEvent, team1, team2 string) bool {
	if names.Match(ev.HomeTeam, team1) && names.Match(ev.AwayTeam, team2) {
		return true
	}
	return names.Match(ev.HomeTeam, team2) && names.Match(ev.AwayTeam, team1)
}

func (o *OddsSource) convertEvent(g domain.Game, book string, ev oddsEvent) []domain.BettingLine {
	var bk *oddsBookmaker
	for i := range ev.Bookmakers {
		if ev.Bookmakers[i].Key == book {
			bk = &ev.Bookmakers[i]
			break
		}
	}
	if bk == nil && len(ev.Bookmakers) > 0 {
		bk = &ev.Bookmakers[0]
	}
	if bk == nil {
		return nil
	}

	now := time.Now()
	var lines []domain.BettingLine
	for _, mkt := range bk.Markets {
		switch mkt.Key {
		case "spreads":
			lines = append(lines, o.convertSpread(g, book, mkt, now)...)
		case "totals":
			lines = append(lines, o.convertTotal(g, book, mkt, now)...)
		case "h2h":
			lines = append(lines, o.convertMoneyline(g, book, mkt, now)...)
		}
	}
	return lines
}

// convertSpread reconciles vendor outcome labels to the canonical game
// teams. The market is always two-sided: when exactly one side matched,
// the other is forced to the remaining team; when neither matched, the
// favorite (negative spread) is taken as home.
func (o *OddsSource) convertSpread(g domain.Game, book string, mkt oddsMarket, ts time.Time) []domain.BettingLine {
	type side struct {
		out  oddsOutcome
		team string
	}
	sides := make([]side, 0, 2)
	matched := 0
	for _, out := range mkt.Outcomes {
		s := side{out: out}
		switch {
		case names.Match(out.Name, g.HomeTeam):
			s.team = names.Canonical(g.HomeTeam)
			matched++
		case names.Match(out.Name, g.AwayTeam):
			s.team = names.Canonical(g.AwayTeam)
			matched++
		}
		sides = append(sides, s)
	}

	if matched == 1 && len(sides) == 2 {
		for i := range sides {
			if sides[i].team != "" {
				continue
			}
			if sides[1-i].team == names.Canonical(g.HomeTeam) {
				sides[i].team = names.Canonical(g.AwayTeam)
			} else {
				sides[i].team = names.Canonical(g.HomeTeam)
			}
		}
	}

	var lines []domain.BettingLine
	for _, s := range sides {
		if s.out.Point == nil {
			continue
		}
		team := s.team
		if team == "" {
			// Sign inference: negative spread marks the favorite, taken
			// as home; positive the road underdog.
			if *s.out.Point < 0 {
				team = names.Canonical(g.HomeTeam)
			} else {
				team = names.Canonical(g.AwayTeam)
			}
		}
		lines = append(lines, domain.BettingLine{
			GameID:    g.ID,
			Book:      book,
			BetType:   domain.BetSpread,
			Line:      *s.out.Point,
			Odds:      int(s.out.Price),
			Team:      team,
			Timestamp: ts,
		})
	}
	return lines
}

// convertTotal keeps only outcomes the vendor labelled over/under; a
// missing label is never guessed.
func (o *OddsSource) convertTotal(g domain.Game, book string, mkt oddsMarket, ts time.Time) []domain.BettingLine {
	var lines []domain.BettingLine
	for _, out := range mkt.Outcomes {
		if out.Point == nil {
			continue
		}
		var team string
		switch {
		case strings.EqualFold(out.Name, "over"):
			team = domain.SideOver
		case strings.EqualFold(out.Name, "under"):
			team = domain.SideUnder
		default:
			o.logger.Debug("total outcome without over/under label dropped",
				"game_id", g.ID, "name", out.Name)
			continue
		}
		lines = append(lines, domain.BettingLine{
			GameID:    g.ID,
			Book:      book,
			BetType:   domain.BetTotal,
			Line:      *out.Point,
			Odds:      int(out.Price),
			Team:      team,
			Timestamp: ts,
		})
	}
	return lines
}

func (o *OddsSource) convertMoneyline(g domain.Game, book string, mkt oddsMarket, ts time.Time) []domain.BettingLine {
	var lines []domain.BettingLine
	for _, out := range mkt.Outcomes {
		var team string
		switch {
		case names.Match(out.Name, g.HomeTeam):
			team = names.Canonical(g.HomeTeam)
		case names.Match(out.Name, g.AwayTeam):
			team = names.Canonical(g.AwayTeam)
		case out.Price < 0:
			team = names.Canonical(g.HomeTeam)
		default:
			team = names.Canonical(g.AwayTeam)
		}
		lines = append(lines, domain.BettingLine{
			GameID:    g.ID,
			Book:      book,
			BetType:   domain.BetMoneyline,
			Odds:      int(out.Price),
			Team:      team,
			Timestamp: ts,
		})
	}
	return lines
}
