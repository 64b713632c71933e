package match

import (
	"sort"
	"strings"

	"github.com/civiclens/registry-cli/internal/model"
)

// ruleScore computes the deterministic similarity between a candidate and a
// canonical member in [0,1]. Name similarity dominates; affiliation
// agreement refines it when both sides state one.
func ruleScore(candidate model.CandidateRecord, member model.Member) float64 {
	name := nameScore(Normalize(candidate.RawName), Normalize(member.Name))

	candAff := Normalize(candidate.RawAffiliation)
	memberAff := Normalize(member.Party)
	if candAff == "" || memberAff == "" {
		return name
	}

	return clamp(0.8*name + 0.2*affiliationScore(candAff, memberAff))
}

func nameScore(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1.0
	}
	// Substring containment covers "taro yamada" vs "yamada taro"-style
	// reversals poorly, so check both containment and reordered tokens.
	if len(a) >= 4 && len(b) >= 4 && (strings.Contains(a, b) || strings.Contains(b, a)) {
		return 0.85
	}
	ta, tb := tokens(a), tokens(b)
	if sameTokenSet(ta, tb) {
		return 0.95
	}
	return 0.8 * tokenOverlap(ta, tb)
}

func sameTokenSet(a, b []string) bool {
	if len(a) != len(b) || len(a) == 0 {
		return false
	}
	sa := append([]string(nil), a...)
	sb := append([]string(nil), b...)
	sort.Strings(sa)
	sort.Strings(sb)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

func affiliationScore(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.8
	}
	return 0
}

// scored pairs a shortlist member with its rule score.
type scored struct {
	member model.Member
	score  float64
}

// rankShortlist scores every shortlist entry and returns them best-first.
func rankShortlist(candidate model.CandidateRecord, shortlist []model.Member) []scored {
	ranked := make([]scored, 0, len(shortlist))
	for _, m := range shortlist {
		ranked = append(ranked, scored{member: m, score: ruleScore(candidate, m)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	return ranked
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
