package catalog

import "strings"

// sequelWords are trailing subtitle words that mark a title as part of a
// franchise when stripped ("The Matrix Reloaded" → "The Matrix").
var sequelWords = map[string]bool{
	"reloaded":      true,
	"revolutions":   true,
	"resurrections": true,
	"returns":       true,
	"rises":         true,
	"begins":        true,
	"forever":       true,
	"unleashed":     true,
	"revenge":       true,
	"legacy":        true,
}

// romanValues for validating trailing Roman numerals (II, III, IV, …).
var romanValues = map[byte]int{'i': 1, 'v': 5, 'x': 10, 'l': 50, 'c': 100, 'd': 500, 'm': 1000}

// GroupFranchises clusters movies into franchises by reducing each title to a
// candidate base name and bucketing on it. Heuristics, first match wins:
//
//  1. colon subtitle: "X: Y" → "X"
//  2. trailing sequel word (sequelWords) stripped
//  3. trailing integer ≥ 2 stripped
//  4. trailing Roman numeral (value ≥ 2) stripped
//  5. otherwise the title itself (eligible as a franchise root)
//
// Bases are case-normalized before comparison. Only clusters with at least
// two members are returned, keyed by the lowercased base; members keep input
// order. A movie whose base equals its own title and matches nobody else is
// never reported.
func GroupFranchises(movies []Movie) map[string][]Movie {
	clusters := make(map[string][]Movie)
	for _, m := range movies {
		base := franchiseBase(m.Title)
		if base == "" {
			continue
		}
		clusters[base] = append(clusters[base], m)
	}
	for base, members := range clusters {
		if len(members) < 2 {
			delete(clusters, base)
		}
	}
	return clusters
}

// franchiseBase derives the candidate franchise key for one title.
func franchiseBase(title string) string {
	t := strings.TrimSpace(title)
	if t == "" {
		return ""
	}
	if i := strings.Index(t, ":"); i > 0 {
		return strings.ToLower(strings.TrimSpace(t[:i]))
	}
	words := strings.Fields(t)
	if len(words) >= 2 {
		last := words[len(words)-1]
		rest := strings.Join(words[:len(words)-1], " ")
		if sequelWords[strings.ToLower(last)] {
			return strings.ToLower(rest)
		}
		if n, ok := parseInt(last); ok && n >= 2 {
			return strings.ToLower(rest)
		}
		// Roman numerals only count when written as such (uppercase), so
		// ordinary words built from roman letters ("Mix", "Dim") survive.
		if last == strings.ToUpper(last) {
			// Sequels top out well below L; the cap keeps accidental
			// uppercase words ("MIX", "DC") from triggering.
			if v, ok := romanValue(strings.ToLower(last)); ok && v >= 2 && v <= 30 {
				return strings.ToLower(rest)
			}
		}
	}
	return strings.ToLower(t)
}

func parseInt(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
		if n > 1000 {
			return 0, false
		}
	}
	return n, true
}

// romanValue parses a lowercase Roman numeral, rejecting malformed sequences
// like "iiii" (subtractive notation with at most three repeats).
func romanValue(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	total, repeat := 0, 0
	prev := 0
	for i := 0; i < len(s); i++ {
		v, ok := romanValues[s[i]]
		if !ok {
			return 0, false
		}
		if v == prev {
			repeat++
			if repeat >= 3 {
				return 0, false
			}
		} else {
			repeat = 0
		}
		if prev > 0 && v > prev {
			total += v - 2*prev
		} else {
			total += v
		}
		prev = v
	}
	return total, true
}
