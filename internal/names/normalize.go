// Package names canonicalizes college team names across the schedule
// vendor, the odds vendor and the rankings site, whose spellings all
// diverge. Canonical names are the join key for every cache and stage
// artifact.
package names

import (
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

// FuzzyThreshold is the minimum partial ratio for a non-exact match.
const FuzzyThreshold = 75

// mascots and descriptors stripped when normalizing for matching. Longest
// first so multi-word mascots go before their suffix words.
var strippedSuffixes = []string{
	"fighting irish", "blue devils", "tar heels", "red raiders", "crimson tide",
	"golden eagles", "golden gophers", "golden bears", "horned frogs",
	"scarlet knights", "demon deacons", "yellow jackets", "ragin cajuns",
	"mean green", "red storm", "green wave", "blue demons", "blue jays",
	"black bears", "golden flashes", "nittany lions", "sun devils",
	"wildcats", "jayhawks", "wolverines", "buckeyes", "spartans", "badgers",
	"hoosiers", "boilermakers", "hawkeyes", "cornhuskers", "terrapins",
	"gators", "bulldogs", "tigers", "volunteers", "razorbacks", "rebels",
	"aggies", "longhorns", "sooners", "cowboys", "bears", "cyclones",
	"mountaineers", "hurricanes", "seminoles", "cavaliers", "hokies",
	"panthers", "cardinals", "orange", "eagles", "huskies", "utes",
	"buffaloes", "trojans", "bruins", "ducks", "beavers", "wolfpack",
	"gamecocks", "commodores", "musketeers", "bluejays", "zags", "gaels",
	"dons", "broncos", "lobos", "aztecs", "rams", "owls", "flyers",
	"billikens", "salukis", "shockers", "hilltoppers", "hoyas", "friars",
	"pirates", "bearcats", "knights", "bulls", "mustangs", "roadrunners",
	"minutemen", "catamounts", "retrievers", "terriers", "crusaders",
	"raiders", "colonels", "governors", "racers", "mocs", "paladins",
	"phoenix", "leathernecks", "mavericks", "jackrabbits", "bison",
	"vikings", "penguins", "norse", "mastodons", "titans", "anteaters",
	"tritons", "highlanders", "matadors", "gauchos", "hornets", "toreros",
	"waves", "lions", "falcons", "hawks", "rockets", "chippewas", "zips",
	"redhawks", "cougars", "lancers", "dolphins", "ospreys", "sharks",
	"seahawks", "spiders", "keydets", "dukes", "tribe", "monarchs",
	"49ers", "blazers", "chanticleers", "camels", "seawolves", "bonnies",
	"explorers", "rainbow warriors", "warriors", "vandals", "bengals",
	"thunderbirds", "wolf pack", "miners", "islanders",
}

// institutional rewrites applied to whole tokens after lowercasing.
var tokenRewrites = map[string]string{
	"st":            "state",
	"st.":           "state",
	"u":             "",
	"univ":          "",
	"univ.":         "",
	"university":    "",
	"college":       "",
	"tech.":         "tech",
	"a&m":           "am",
	"&":             "and",
	"intl":          "international",
	"international": "international",
}

// prefix abbreviations expanded before tokenization. Keys are full-string
// prefixes with a trailing space.
var prefixRewrites = map[string]string{
	"uc ":    "california ",
	"ut ":    "texas ",
	"unc ":   "north carolina ",
	"siu ":   "southern illinois ",
	"vcu":    "virginia commonwealth",
	"smu":    "southern methodist",
	"tcu":    "texas christian",
	"byu":    "brigham young",
	"lsu":    "louisiana state",
	"ucf":    "central florida",
	"usf":    "south florida",
	"fau":    "florida atlantic",
	"fiu":    "florida international",
	"uab":    "alabama birmingham",
	"utep":   "texas el paso",
	"utsa":   "texas san antonio",
	"umbc":   "maryland baltimore county",
	"umass":  "massachusetts",
	"uconn":  "connecticut",
	"unlv":   "nevada las vegas",
	"ole miss": "mississippi",
}

// disambiguation resolves homonym schools to a stable canonical form.
// Keys are normalized (post-strip) names.
var disambiguation = map[string]string{
	"miami oh":             "miami ohio",
	"miami (oh)":           "miami ohio",
	"miami ohio":           "miami ohio",
	"miami fl":             "miami florida",
	"miami (fl)":           "miami florida",
	"miami":                "miami florida",
	"north carolina":       "north carolina",
	"nc a and t":           "north carolina at",
	"north carolina a and t": "north carolina at",
	"north carolina at":    "north carolina at",
	"nc central":           "north carolina central",
	"north carolina central": "north carolina central",
	"nc state":             "north carolina state",
	"north carolina state": "north carolina state",
	"usc":                  "southern california",
	"southern cal":         "southern california",
	"southern california":  "southern california",
	"south carolina":       "south carolina",
	"saint johns":          "st johns",
	"st johns":             "st johns",
	"saint marys":          "saint marys",
	"st marys":             "saint marys",
	"saint josephs":        "saint josephs",
	"st josephs":           "saint josephs",
	"saint louis":          "saint louis",
	"st louis":             "saint louis",
	"loyola il":            "loyola chicago",
	"loyola chicago":       "loyola chicago",
	"loyola md":            "loyola maryland",
	"loyola marymount":     "loyola marymount",
	"texas am":             "texas am",
	"texas am corpus christi": "texas am corpus christi",
}

// Normalize lowercases, strips punctuation, expands abbreviations,
// collapses whitespace, and (when forMatching) drops mascots.
func Normalize(name string, forMatching bool) string {
	s := strings.ToLower(strings.TrimSpace(name))
	if s == "" {
		return ""
	}
	for prefix, full := range prefixRewrites {
		if strings.HasSuffix(prefix, " ") {
			if strings.HasPrefix(s, prefix) {
				s = full + s[len(prefix):]
			}
		} else if s == prefix {
			s = full
		}
	}
	s = strings.NewReplacer("'", "", "’", "", ".", "", ",", "", "-", " ", "(", " ", ")", " ").Replace(s)
	s = strings.ReplaceAll(s, "a&m", "am")
	s = strings.ReplaceAll(s, "&", " and ")

	fields := strings.Fields(s)
	out := fields[:0]
	for i, f := range fields {
		if r, ok := tokenRewrites[f]; ok {
			// "st" leading a name is Saint, trailing is State.
			if f == "st" && i == 0 {
				out = append(out, "saint")
				continue
			}
			if r == "" {
				continue
			}
			out = append(out, r)
			continue
		}
		out = append(out, f)
	}
	s = strings.Join(out, " ")

	if forMatching {
		for _, suffix := range strippedSuffixes {
			if strings.HasSuffix(s, " "+suffix) {
				s = strings.TrimSuffix(s, " "+suffix)
				break
			}
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

// Canonical produces the stable key used across caches and stage
// artifacts: normalized for matching, then resolved through the
// disambiguation table.
func Canonical(name string) string {
	n := Normalize(name, true)
	if c, ok := disambiguation[n]; ok {
		return c
	}
	return n
}

// Variations returns alternate spellings worth trying on exact-lookup
// sources (rankings table), most specific first.
func Variations(name string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(v string) {
		v = strings.Join(strings.Fields(v), " ")
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	add(Canonical(name))
	add(Normalize(name, true))
	add(Normalize(name, false))
	n := Normalize(name, true)
	if strings.HasPrefix(n, "saint ") {
		add("st " + strings.TrimPrefix(n, "saint "))
	}
	if strings.HasSuffix(n, " state") {
		add(strings.TrimSuffix(n, " state") + " st")
	}
	return out
}

// Match reports whether two free-text team names refer to the same team:
// canonical equality first, then fuzzy partial ratio on normalized forms.
func Match(a, b string) bool {
	ca, cb := Canonical(a), Canonical(b)
	if ca == "" || cb == "" {
		return false
	}
	if ca == cb {
		return true
	}
	// Names that both resolve through the disambiguation table to
	// different schools are never the same team, however close the
	// spelling ("Miami (OH)" vs "Miami (FL)").
	na, nb := Normalize(a, true), Normalize(b, true)
	if _, okA := disambiguation[na]; okA {
		if _, okB := disambiguation[nb]; okB {
			return false
		}
	}
	return fuzzy.PartialRatio(na, nb) >= FuzzyThreshold
}
