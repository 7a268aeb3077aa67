package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/sharpline/cardline/internal/domain"
	"github.com/sharpline/cardline/internal/fetch"
)

// ── ESPN scoreboard types ──

type espnScoreboard struct {
	Events []espnEvent `json:"events"`
}

type espnEvent struct {
	ID           string            `json:"id"`
	Date         string            `json:"date"`
	Status       espnEventStatus   `json:"status"`
	Competitions []espnCompetition `json:"competitions"`
}

type espnEventStatus struct {
	Type struct {
		State     string `json:"state"` // pre, in, post
		Completed bool   `json:"completed"`
	} `json:"type"`
}

type espnCompetition struct {
	Venue struct {
		FullName string `json:"fullName"`
	} `json:"venue"`
	Competitors []espnCompetitor `json:"competitors"`
}

type espnCompetitor struct {
	HomeAway string `json:"homeAway"`
	Score    string `json:"score"`
	Team     struct {
		DisplayName      string `json:"displayName"`
		ShortDisplayName string `json:"shortDisplayName"`
	} `json:"team"`
}

// ScheduleSource produces the day's games from the ESPN scoreboard API.
type ScheduleSource struct {
	client  *fetch.Client
	baseURL string
	logger  *slog.Logger
}

// NewScheduleSource creates the schedule connector.
func NewScheduleSource(client *fetch.Client, logger *slog.Logger) *ScheduleSource {
	return &ScheduleSource{
		client:  client,
		baseURL: "https://site.api.espn.com/apis/site/v2/sports/basketball/mens-college-basketball",
		logger:  logger,
	}
}

// ScrapeGames returns all games for the target date. A failure here aborts
// the run; there is no mock fallback in production.
func (s *ScheduleSource) ScrapeGames(ctx context.Context, targetDate string) ([]domain.Game, error) {
	day, err := time.ParseInLocation(DateFormat, targetDate, RefLocation())
	if err != nil {
		return nil, domain.ErrValidation(fmt.Sprintf("invalid target date %q", targetDate))
	}

	url := fmt.Sprintf("%s/scoreboard?dates=%s&groups=50&limit=500", s.baseURL, day.Format("20060102"))
	body, err := s.client.Get(ctx, url, nil)
	if err != nil {
		return nil, domain.ErrUpstream("schedule", err)
	}

	var board espnScoreboard
	if err := json.Unmarshal(body, &board); err != nil {
		return nil, domain.ErrUpstream("schedule", fmt.Errorf("decode scoreboard: %w", err))
	}

	games := make([]domain.Game, 0, len(board.Events))
	for _, ev := range board.Events {
		game, ok := s.parseEvent(ev, targetDate)
		if !ok {
			continue
		}
		games = append(games, game)
	}

	s.logger.Info("schedule fetched", "date", targetDate, "games", len(games))
	return games, nil
}

func (s *ScheduleSource) parseEvent(ev espnEvent, targetDate string) (domain.Game, bool) {
	if len(ev.Competitions) == 0 {
		return domain.Game{}, false
	}
	comp := ev.Competitions[0]

	var home, away espnCompetitor
	for _, c := range comp.Competitors {
		switch c.HomeAway {
		case "home":
			home = c
		case "away":
			away = c
		}
	}
	if home.Team.DisplayName == "" || away.Team.DisplayName == "" {
		s.logger.Warn("schedule event missing team names", "event_id", ev.ID)
		return domain.Game{}, false
	}

	game := domain.Game{
		ID:       domain.GameID(away.Team.DisplayName, home.Team.DisplayName, targetDate),
		HomeTeam: home.Team.DisplayName,
		AwayTeam: away.Team.DisplayName,
		Date:     targetDate,
		Venue:    comp.Venue.FullName,
		Status:   domain.GameScheduled,
	}

	// Vendor timestamps are UTC; convert to the reference wall clock so
	// downstream date-window checks line up.
	if ts, err := time.Parse("2006-01-02T15:04Z", ev.Date); err == nil {
		local := ts.In(RefLocation())
		game.StartTime = &local
	} else if ts, err := time.Parse(time.RFC3339, ev.Date); err == nil {
		local := ts.In(RefLocation())
		game.StartTime = &local
	}

	switch ev.Status.Type.State {
	case "in":
		game.Status = domain.GameLive
	case "post":
		game.Status = domain.GameFinal
		hs, herr := strconv.Atoi(home.Score)
		as, aerr := strconv.Atoi(away.Score)
		if herr == nil && aerr == nil {
			game.Result = &domain.GameResult{HomeScore: hs, AwayScore: as}
		} else {
			// Final without parseable scores cannot be settled.
			game.Status = domain.GameLive
			s.logger.Warn("final game missing scores", "game_id", game.ID)
		}
	}

	return game, true
}
