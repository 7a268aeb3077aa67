package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/sharpline/cardline/internal/cache"
	"github.com/sharpline/cardline/internal/domain"
	"github.com/sharpline/cardline/internal/fetch"
	"github.com/sharpline/cardline/internal/names"
)

// RankingRow is one team's advanced metrics from the rankings table.
type RankingRow struct {
	Team       string  `json:"team"`
	Conference string  `json:"conf"`
	Record     string  `json:"record"`
	Rank       int     `json:"rank"`
	AdjO       float64 `json:"adj_o"`
	AdjD       float64 `json:"adj_d"`
	AdjT       float64 `json:"adj_t"`
	NetRtg     float64 `json:"net_rtg"`
	Luck       float64 `json:"luck"`
	SOS        float64 `json:"sos"`
}

// RankingsTable is the full scraped table, cached per target date.
type RankingsTable struct {
	Date string       `json:"date"`
	Rows []RankingRow `json:"rows"`
}

// KenpomSource scrapes the season rankings table behind a login. Logged in
// once per process; the table is cached keyed by target date. The mutex
// serializes table loads and lookups: the tool dispatcher reaches
// GetTeamStats from up to ten goroutines at once.
type KenpomSource struct {
	client   *fetch.Client
	cache    *cache.Store
	baseURL  string
	email    string
	password string
	logger   *slog.Logger

	mu            sync.Mutex
	authenticated bool
	table         *RankingsTable
	byName        map[string]*RankingRow
	ff            map[string]*fourFactorsRow
	ffDate        string
}

// NewKenpomSource creates the rankings connector.
func NewKenpomSource(client *fetch.Client, store *cache.Store, email, password string, logger *slog.Logger) *KenpomSource {
	return &KenpomSource{
		client:   client,
		cache:    store,
		baseURL:  "https://kenpom.com",
		email:    email,
		password: password,
		logger:   logger,
	}
}

// Login authenticates the shared session. Called once per process.
func (k *KenpomSource) Login(ctx context.Context) error {
	form := url.Values{}
	form.Set("email", k.email)
	form.Set("password", k.password)
	form.Set("submit", "Login!")

	body, err := k.client.PostForm(ctx, k.baseURL+"/handlers/login_handler.php", form)
	if err != nil {
		return domain.ErrUpstream("rankings login", err)
	}
	if strings.Contains(strings.ToLower(string(body)), "invalid") {
		return domain.ErrUpstream("rankings login", fmt.Errorf("credentials rejected"))
	}
	k.authenticated = true
	k.logger.Info("rankings login ok")
	return nil
}

// GetTeamStats looks up one team's advanced metrics for the target date,
// four-factors split included when the stats page has the team. Lookup
// order: canonical name, normalized name, then each variation. Fuzzy
// matching is deliberately absent here: a near match with the wrong rank
// is worse than no data. A miss returns nil and the model widens its
// uncertainty.
func (k *KenpomSource) GetTeamStats(ctx context.Context, team, targetDate string) (*domain.TeamAdvanced, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	teamKey := "team_" + names.Canonical(team)
	var cached domain.TeamAdvanced
	if k.cache.Get(teamKey, &cached, cache.SameDate(targetDate)) {
		return &cached, nil
	}

	if err := k.ensureTable(ctx, targetDate); err != nil {
		return nil, err
	}

	candidates := []string{names.Canonical(team), names.Normalize(team, true)}
	candidates = append(candidates, names.Variations(team)...)
	for _, c := range candidates {
		row, ok := k.byName[c]
		if !ok {
			continue
		}
		adv := rowToAdvanced(row)
		k.attachFourFactors(ctx, adv, candidates, targetDate)
		if err := k.cache.Put(teamKey, targetDate, adv); err != nil {
			k.logger.Warn("team stats cache write failed", "team", team, "error", err)
		}
		return adv, nil
	}

	k.logger.Debug("rankings miss", "team", team)
	return nil, nil
}

// ensureTable loads the table from cache or, when the cached date differs
// and the session is authenticated, re-scrapes.
func (k *KenpomSource) ensureTable(ctx context.Context, targetDate string) error {
	if k.table != nil && k.table.Date == targetDate {
		return nil
	}

	var table RankingsTable
	if k.cache.Get("rankings", &table, cache.SameDate(targetDate)) {
		k.setTable(&table)
		return nil
	}

	if !k.authenticated {
		if err := k.Login(ctx); err != nil {
			return err
		}
	}

	body, err := k.client.Get(ctx, k.baseURL+"/index.php", nil)
	if err != nil {
		return domain.ErrUpstream("rankings", err)
	}

	rows, err := parseRankingsTable(string(body), k.logger)
	if err != nil {
		return domain.ErrUpstream("rankings", err)
	}

	table = RankingsTable{Date: targetDate, Rows: rows}
	if err := k.cache.Put("rankings", targetDate, table); err != nil {
		k.logger.Warn("rankings cache write failed", "error", err)
	}
	k.setTable(&table)
	k.logger.Info("rankings scraped", "date", targetDate, "teams", len(rows))
	return nil
}

func (k *KenpomSource) setTable(t *RankingsTable) {
	k.table = t
	k.byName = make(map[string]*RankingRow, len(t.Rows)*2)
	for i := range t.Rows {
		row := &t.Rows[i]
		k.byName[names.Canonical(row.Team)] = row
		k.byName[names.Normalize(row.Team, true)] = row
	}
}

// fourFactorsRow is one team's shooting/turnover/rebounding/foul-rate
// split from the stats page, offense and defense.
type fourFactorsRow struct {
	Team   string  `json:"team"`
	OffEFG float64 `json:"off_efg"`
	OffTOV float64 `json:"off_tov"`
	OffORB float64 `json:"off_orb"`
	OffFTR float64 `json:"off_ftr"`
	DefEFG float64 `json:"def_efg"`
	DefTOV float64 `json:"def_tov"`
	DefORB float64 `json:"def_orb"`
	DefFTR float64 `json:"def_ftr"`
}

func (r *fourFactorsRow) offense() *domain.FourFactors {
	return &domain.FourFactors{EFG: &r.OffEFG, TOV: &r.OffTOV, ORB: &r.OffORB, FTR: &r.OffFTR}
}

func (r *fourFactorsRow) defense() *domain.FourFactors {
	return &domain.FourFactors{EFG: &r.DefEFG, TOV: &r.DefTOV, ORB: &r.DefORB, FTR: &r.DefFTR}
}

// attachFourFactors merges the stats-page split into one team's metrics.
// A stats-page failure degrades to efficiency-only data, never an error:
// cache writes happen on partial upstream data.
func (k *KenpomSource) attachFourFactors(ctx context.Context, adv *domain.TeamAdvanced, candidates []string, targetDate string) {
	if err := k.ensureFourFactors(ctx, targetDate); err != nil {
		k.logger.Warn("four factors unavailable", "error", err)
		return
	}
	for _, c := range candidates {
		if row, ok := k.ff[c]; ok {
			adv.Offense = row.offense()
			adv.Defense = row.defense()
			return
		}
	}
}

// ensureFourFactors loads the four-factors table from cache or re-scrapes
// when the cached date differs. Caller holds the mutex.
func (k *KenpomSource) ensureFourFactors(ctx context.Context, targetDate string) error {
	if k.ff != nil && k.ffDate == targetDate {
		return nil
	}

	var rows []fourFactorsRow
	if !k.cache.Get("four_factors", &rows, cache.SameDate(targetDate)) {
		if !k.authenticated {
			if err := k.Login(ctx); err != nil {
				return err
			}
		}
		body, err := k.client.Get(ctx, k.baseURL+"/stats.php", nil)
		if err != nil {
			return domain.ErrUpstream("four factors", err)
		}
		rows, err = parseFourFactorsTable(string(body), k.logger)
		if err != nil {
			return domain.ErrUpstream("four factors", err)
		}
		if err := k.cache.Put("four_factors", targetDate, rows); err != nil {
			k.logger.Warn("four factors cache write failed", "error", err)
		}
	}

	k.ff = make(map[string]*fourFactorsRow, len(rows)*2)
	for i := range rows {
		row := &rows[i]
		k.ff[names.Canonical(row.Team)] = row
		k.ff[names.Normalize(row.Team, true)] = row
	}
	k.ffDate = targetDate
	return nil
}

func rowToAdvanced(r *RankingRow) *domain.TeamAdvanced {
	rank := r.Rank
	return &domain.TeamAdvanced{
		AdjO:       &r.AdjO,
		AdjD:       &r.AdjD,
		AdjT:       &r.AdjT,
		NetRtg:     &r.NetRtg,
		Rank:       &rank,
		Conference: r.Conference,
		Record:     r.Record,
		Luck:       &r.Luck,
		SOS:        &r.SOS,
	}
}

// ── HTML table parsing ──

// parseRankingsTable extracts rows from the season rankings page. The
// header row is the first row whose first cell is "Rk" or "Rank"; columns
// are then located by label. The page carries three columns labelled
// "NetRtg": in order they are net rating, adjusted tempo and
// non-conference strength of schedule. When "AdjD" cannot be located by
// label it sits two columns after "AdjO"; "Luck" follows "AdjT" by the
// same offset.
func parseRankingsTable(page string, logger *slog.Logger) ([]RankingRow, error) {
	tableRows, err := collectTableRows(page)
	if err != nil {
		return nil, fmt.Errorf("parse rankings html: %w", err)
	}

	headerIdx := headerRowIndex(tableRows)
	if headerIdx < 0 {
		return nil, fmt.Errorf("rankings header row not found")
	}

	cols := locateColumns(tableRows[headerIdx])
	if cols.team < 0 || cols.adjO < 0 {
		return nil, fmt.Errorf("rankings header missing team/AdjO columns")
	}

	var rows []RankingRow
	for _, cells := range tableRows[headerIdx+1:] {
		if len(cells) <= cols.maxIndex() {
			continue
		}
		if cells[0] == "Rk" || cells[0] == "Rank" {
			continue // repeated headers mid-table
		}
		row, ok := parseRankingRow(cells, cols)
		if !ok {
			logger.Warn("rankings row dropped out of range", "team", cells[cols.team])
			continue
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("rankings table empty after parse")
	}
	return rows, nil
}

type columnIndexes struct {
	rank, team, conf, record       int
	netRtg, adjO, adjD, adjT, luck int
	sos                            int
}

func (c columnIndexes) maxIndex() int {
	m := 0
	for _, i := range []int{c.rank, c.team, c.conf, c.record, c.netRtg, c.adjO, c.adjD, c.adjT, c.luck, c.sos} {
		if i > m {
			m = i
		}
	}
	return m
}

func locateColumns(header []string) columnIndexes {
	cols := columnIndexes{rank: 0, team: -1, conf: -1, record: -1,
		netRtg: -1, adjO: -1, adjD: -1, adjT: -1, luck: -1, sos: -1}
	netRtgSeen := 0
	for i, label := range header {
		switch label {
		case "Team":
			cols.team = i
		case "Conf":
			cols.conf = i
		case "W-L", "Record":
			cols.record = i
		case "NetRtg":
			// Positional semantics: 1st NetRtg is net rating, 2nd is
			// adjusted tempo, 3rd is non-conference SOS.
			switch netRtgSeen {
			case 0:
				cols.netRtg = i
			case 1:
				if cols.adjT < 0 {
					cols.adjT = i
				}
			case 2:
				cols.sos = i
			}
			netRtgSeen++
		case "AdjO", "AdjOE":
			cols.adjO = i
		case "AdjD", "AdjDE":
			cols.adjD = i
		case "AdjT", "AdjTempo":
			cols.adjT = i
		case "Luck":
			cols.luck = i
		}
	}
	// Label-less fallbacks share a +2 offset from their anchors.
	if cols.adjD < 0 && cols.adjO >= 0 {
		cols.adjD = cols.adjO + 2
	}
	if cols.luck < 0 && cols.adjT >= 0 {
		cols.luck = cols.adjT + 2
	}
	return cols
}

// parseRankingRow converts one table row, range-validating every numeric:
// efficiencies 70-130, tempo 50-90, luck within +/-0.5, rank 1-400.
func parseRankingRow(cells []string, cols columnIndexes) (RankingRow, bool) {
	row := RankingRow{Team: cleanTeamCell(cells[cols.team])}
	if row.Team == "" {
		return row, false
	}

	rank, err := strconv.Atoi(strings.TrimSpace(cells[cols.rank]))
	if err != nil || rank < 1 || rank > 400 {
		return row, false
	}
	row.Rank = rank

	if cols.conf >= 0 {
		row.Conference = cells[cols.conf]
	}
	if cols.record >= 0 {
		row.Record = cells[cols.record]
	}

	num := func(i int) (float64, bool) {
		if i < 0 || i >= len(cells) {
			return 0, false
		}
		v, err := strconv.ParseFloat(strings.TrimPrefix(strings.TrimSpace(cells[i]), "+"), 64)
		return v, err == nil
	}

	if v, ok := num(cols.adjO); ok && v >= 70 && v <= 130 {
		row.AdjO = v
	} else {
		return row, false
	}
	if v, ok := num(cols.adjD); ok && v >= 70 && v <= 130 {
		row.AdjD = v
	} else {
		return row, false
	}
	if v, ok := num(cols.adjT); ok && v >= 50 && v <= 90 {
		row.AdjT = v
	}
	if v, ok := num(cols.netRtg); ok && v >= -60 && v <= 60 {
		row.NetRtg = v
	} else {
		row.NetRtg = row.AdjO - row.AdjD
	}
	if v, ok := num(cols.luck); ok && v >= -0.5 && v <= 0.5 {
		row.Luck = v
	}
	if v, ok := num(cols.sos); ok && v >= -60 && v <= 60 {
		row.SOS = v
	}
	return row, true
}

// collectTableRows flattens every <tr> on the page into its cell texts.
func collectTableRows(page string) ([][]string, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, err
	}

	var rows [][]string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
					cells = append(cells, strings.TrimSpace(textContent(c)))
				}
			}
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return rows, nil
}

// headerRowIndex finds the first row whose leading cell is "Rk" or "Rank".
func headerRowIndex(rows [][]string) int {
	for i, row := range rows {
		if len(row) > 0 && (row[0] == "Rk" || row[0] == "Rank") {
			return i
		}
	}
	return -1
}

// parseFourFactorsTable extracts rows from the four-factors stats page.
// Each factor label appears twice in the header: offense first, then
// defense. Percentages are range-checked 0-100.
func parseFourFactorsTable(page string, logger *slog.Logger) ([]fourFactorsRow, error) {
	tableRows, err := collectTableRows(page)
	if err != nil {
		return nil, fmt.Errorf("parse four factors html: %w", err)
	}

	headerIdx := headerRowIndex(tableRows)
	if headerIdx < 0 {
		return nil, fmt.Errorf("four factors header row not found")
	}

	cols := locateFFColumns(tableRows[headerIdx])
	if cols.team < 0 || cols.offEFG < 0 {
		return nil, fmt.Errorf("four factors header missing team/eFG columns")
	}

	var rows []fourFactorsRow
	for _, cells := range tableRows[headerIdx+1:] {
		if len(cells) <= cols.maxIndex() {
			continue
		}
		if cells[0] == "Rk" || cells[0] == "Rank" {
			continue // repeated headers mid-table
		}
		row, ok := parseFourFactorsRow(cells, cols)
		if !ok {
			logger.Warn("four factors row dropped out of range", "team", cells[cols.team])
			continue
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("four factors table empty after parse")
	}
	return rows, nil
}

type ffColumns struct {
	team                           int
	offEFG, offTOV, offORB, offFTR int
	defEFG, defTOV, defORB, defFTR int
}

func (c ffColumns) maxIndex() int {
	m := 0
	for _, i := range []int{c.team, c.offEFG, c.offTOV, c.offORB, c.offFTR,
		c.defEFG, c.defTOV, c.defORB, c.defFTR} {
		if i > m {
			m = i
		}
	}
	return m
}

func locateFFColumns(header []string) ffColumns {
	cols := ffColumns{team: -1,
		offEFG: -1, offTOV: -1, offORB: -1, offFTR: -1,
		defEFG: -1, defTOV: -1, defORB: -1, defFTR: -1}
	pick := func(off, def *int, i int) {
		if *off < 0 {
			*off = i
		} else if *def < 0 {
			*def = i
		}
	}
	for i, label := range header {
		switch label {
		case "Team":
			cols.team = i
		case "eFG%":
			pick(&cols.offEFG, &cols.defEFG, i)
		case "TO%":
			pick(&cols.offTOV, &cols.defTOV, i)
		case "OR%":
			pick(&cols.offORB, &cols.defORB, i)
		case "FTRate", "FT Rate":
			pick(&cols.offFTR, &cols.defFTR, i)
		}
	}
	return cols
}

func parseFourFactorsRow(cells []string, cols ffColumns) (fourFactorsRow, bool) {
	row := fourFactorsRow{Team: cleanTeamCell(cells[cols.team])}
	if row.Team == "" {
		return row, false
	}

	assign := func(i int, dst *float64) bool {
		if i < 0 || i >= len(cells) {
			return false
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(cells[i]), 64)
		if err != nil || v < 0 || v > 100 {
			return false
		}
		*dst = v
		return true
	}

	if !assign(cols.offEFG, &row.OffEFG) {
		return row, false
	}
	assign(cols.offTOV, &row.OffTOV)
	assign(cols.offORB, &row.OffORB)
	assign(cols.offFTR, &row.OffFTR)
	assign(cols.defEFG, &row.DefEFG)
	assign(cols.defTOV, &row.DefTOV)
	assign(cols.defORB, &row.DefORB)
	assign(cols.defFTR, &row.DefFTR)
	return row, true
}

// cleanTeamCell strips the seed number appended during tournament weeks
// ("Duke 1" -> "Duke").
func cleanTeamCell(s string) string {
	fields := strings.Fields(s)
	if len(fields) > 1 {
		if _, err := strconv.Atoi(fields[len(fields)-1]); err == nil {
			fields = fields[:len(fields)-1]
		}
	}
	return strings.Join(fields, " ")
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return b.String()
}
