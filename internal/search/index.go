// Package search ranks reply templates against a complaint's text.
//
// Complaints arrive in French, Arabic or a mix of both, typed on phones, so
// matching is forgiving: case, Latin accents and Arabic harakat are folded,
// French plurals and the Arabic article are stripped, and common function
// words of both languages are ignored.
//
// A template scores the share of its weighted terms found in the complaint,
// with title terms counting double:
//
//	score = Σ w(t) for t in Q∩D  /  (Σ w(t) for t in D  +  |Q \ D|)
//
// An Index is immutable and safe for concurrent use.
package search

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Document is one rankable template.
type Document struct {
	ID    string
	Title string
	Body  string
	// Pinned documents win ties, e.g. the default templates.
	Pinned bool
}

// Result is a ranked document.
type Result struct {
	ID    string
	Score float64
}

// Option customises NewIndex.
type Option func(*Index)

// WithStopwords replaces the built-in French and Arabic stop words.
func WithStopwords(words ...string) Option {
	return func(ix *Index) {
		ix.stop = make(map[string]struct{}, len(words))
		for _, w := range words {
			if w = fold(strings.TrimSpace(w)); w != "" {
				ix.stop[w] = struct{}{}
			}
		}
	}
}

// WithTitleWeight sets how much a title term outweighs a body term (default 2).
func WithTitleWeight(w float64) Option {
	return func(ix *Index) {
		if w >= 1 {
			ix.titleWeight = w
		}
	}
}

// FrenchStopwords and ArabicStopwords are the default stop words.
var (
	FrenchStopwords = []string{
		"le", "la", "les", "l", "un", "une", "des", "de", "du", "d", "et", "ou",
		"a", "au", "aux", "en", "dans", "par", "pour", "sur", "avec", "sans",
		"est", "sont", "ce", "cette", "ces", "qui", "que", "qu", "nous", "vous",
		"il", "elle", "ils", "je", "j", "mon", "ma", "mes", "votre", "vos",
		"notre", "nos", "pas", "ne", "n", "se", "s", "y",
	}
	ArabicStopwords = []string{
		"في", "من", "على", "إلى", "الى", "عن", "مع", "هذا", "هذه", "ذلك", "التي",
		"الذي", "و", "أو", "او", "ثم", "لا", "لم", "لن", "قد", "كان", "هو", "هي",
		"نحن", "انا", "أنا", "ما", "كل", "بعد", "قبل", "منذ",
	}
)

type entry struct {
	doc     Document
	weights map[string]float64
	total   float64
	runes   int
}

// Index ranks a fixed set of documents.
type Index struct {
	stop        map[string]struct{}
	titleWeight float64
	entries     []entry
}

// NewIndex indexes docs. Documents without a single usable term are dropped.
func NewIndex(docs []Document, opts ...Option) *Index {
	ix := &Index{titleWeight: 2}
	WithStopwords(append(append([]string{}, FrenchStopwords...), ArabicStopwords...)...)(ix)
	for _, o := range opts {
		o(ix)
	}

	for _, d := range docs {
		weights := make(map[string]float64)
		for t := range ix.terms(d.Body) {
			weights[t] = 1
		}
		for t := range ix.terms(d.Title) {
			weights[t] = ix.titleWeight
		}
		if len(weights) == 0 {
			continue
		}
		var total float64
		for _, w := range weights {
			total += w
		}
		ix.entries = append(ix.entries, entry{
			doc:     d,
			weights: weights,
			total:   total,
			runes:   utf8.RuneCountInString(d.Title) + utf8.RuneCountInString(d.Body),
		})
	}
	return ix
}

// Len reports the number of indexed documents.
func (ix *Index) Len() int { return len(ix.entries) }

// TopK returns up to k documents with a positive score, best first. Ties go
// to pinned documents, then to shorter ones, then by ID. k <= 0 means 3.
func (ix *Index) TopK(query string, k int) []Result {
	if k <= 0 {
		k = 3
	}
	q := ix.terms(query)
	if len(q) == 0 {
		return nil
	}

	type hit struct {
		*entry
		score float64
	}
	var hits []hit
	for i := range ix.entries {
		e := &ix.entries[i]
		var matched float64
		missing := 0
		for t := range q {
			if w, ok := e.weights[t]; ok {
				matched += w
			} else {
				missing++
			}
		}
		if matched == 0 {
			continue
		}
		hits = append(hits, hit{entry: e, score: matched / (e.total + float64(missing))})
	}

	sort.Slice(hits, func(a, b int) bool {
		ha, hb := hits[a], hits[b]
		switch {
		case ha.score != hb.score:
			return ha.score > hb.score
		case ha.doc.Pinned != hb.doc.Pinned:
			return ha.doc.Pinned
		case ha.runes != hb.runes:
			return ha.runes < hb.runes
		}
		return ha.doc.ID < hb.doc.ID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	out := make([]Result, len(hits))
	for i, h := range hits {
		out[i] = Result{ID: h.doc.ID, Score: h.score}
	}
	return out
}

var wordRE = regexp.MustCompile(`[\p{L}\p{N}]+`)

// terms returns the distinct normalised terms of s, stop words removed.
func (ix *Index) terms(s string) map[string]struct{} {
	words := wordRE.FindAllString(fold(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, skip := ix.stop[w]; skip {
			continue
		}
		if w = stem(w); w != "" {
			out[w] = struct{}{}
		}
	}
	return out
}

// fold lower-cases s and strips combining marks: Latin accents and Arabic
// harakat, so "hôpital" matches "hopital" and vowelled Arabic matches plain.
func fold(s string) string {
	// Chains keep state, so each call builds its own.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

var arabicArticles = []string{"وال", "بال", "فال", "ال"}

// stem removes the Arabic definite article and a French plural mark. Words
// too short to survive it are kept as they are.
func stem(w string) string {
	for _, p := range arabicArticles {
		if rest, ok := strings.CutPrefix(w, p); ok && utf8.RuneCountInString(rest) >= 2 {
			return rest
		}
	}
	if utf8.RuneCountInString(w) > 3 && !strings.HasSuffix(w, "ss") {
		if rest, ok := strings.CutSuffix(w, "s"); ok {
			return rest
		}
		if rest, ok := strings.CutSuffix(w, "x"); ok {
			return rest
		}
	}
	return w
}
