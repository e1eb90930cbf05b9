package search

import (
	"math"
	"reflect"
	"testing"
)

func ids(rs []Result) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestFoldAndStem(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Hôpital", "hopital"},
		{"ÉCLAIRAGE", "eclairage"},
		{"مُسْتَشْفَى", "مستشفى"},
		{"إلى", "الى"},
	}
	for _, tc := range cases {
		if got := fold(tc.in); got != tc.want {
			t.Fatalf("fold(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}

	stems := []struct{ in, want string }{
		{"urgences", "urgence"},
		{"travaux", "travau"},
		{"bus", "bus"},
		{"adresse", "adresse"},
		{"express", "express"},
		{"الماء", "ماء"},
		{"والكهرباء", "كهرباء"},
		{"الم", "الم"},
	}
	for _, tc := range stems {
		if got := stem(tc.in); got != tc.want {
			t.Fatalf("stem(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestTerms_DropStopwordsInBothLanguages(t *testing.T) {
	ix := NewIndex(nil)
	got := ix.terms("Le service des Urgences est fermé la nuit, في المستشفى")
	want := map[string]struct{}{
		"service": {}, "urgence": {}, "ferme": {}, "nuit": {}, "مستشفى": {},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("terms = %v; want %v", got, want)
	}
	if n := len(ix.terms("le la les , ; في من")); n != 0 {
		t.Fatalf("only stop words should yield no terms")
	}
}

func TestNewIndex_DropsDocumentsWithoutTerms(t *testing.T) {
	ix := NewIndex([]Document{
		{ID: "blank", Title: "  ", Body: ""},
		{ID: "stop", Body: "le la de"},
		{ID: "ok", Title: "Eau", Body: "Coupure d'eau"},
	})
	if ix.Len() != 1 || ix.entries[0].doc.ID != "ok" {
		t.Fatalf("indexed %d docs", ix.Len())
	}
}

func TestTopK_TitleTermsOutweighBody(t *testing.T) {
	ix := NewIndex([]Document{
		{ID: "body", Title: "Suivi", Body: "Coupure d'eau signalée"},
		{ID: "title", Title: "Eau", Body: "Suivi signalé"},
	})
	got := ix.TopK("plus d'eau depuis hier", 2)
	if len(got) != 2 || got[0].ID != "title" {
		t.Fatalf("title match should rank first: %+v", got)
	}
	if got[0].Score <= got[1].Score {
		t.Fatalf("scores not ordered: %+v", got)
	}
}

func TestTopK_Score(t *testing.T) {
	// Doc terms: eau (title, 2), coupure (1). Query terms: coupure, eau, quartier.
	ix := NewIndex([]Document{{ID: "d", Title: "Eau", Body: "Coupure"}})
	got := ix.TopK("coupure eau quartier", 1)
	want := 3.0 / 4.0 // (2+1) / (3 + 1 missing)
	if len(got) != 1 || math.Abs(got[0].Score-want) > 1e-9 {
		t.Fatalf("score = %+v; want %v", got, want)
	}
}

func TestTopK_TiesPreferPinnedThenShorterThenID(t *testing.T) {
	ix := NewIndex([]Document{
		{ID: "c", Body: "route"},
		{ID: "b", Body: "route"},
		{ID: "long", Body: "route!!!!!!!!"},
		{ID: "pinned", Body: "route!!!!!!!!!!!!", Pinned: true},
	})
	got := ids(ix.TopK("route", 10))
	want := []string{"pinned", "b", "c", "long"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v; want %v", got, want)
	}
}

func TestTopK_MatchesAcrossAccentsAndArabicArticle(t *testing.T) {
	ix := NewIndex([]Document{
		{ID: "sante", Title: "Hôpital", Body: "Nous avons saisi la direction de la santé"},
		{ID: "ma", Title: "انقطاع الماء", Body: "تم إبلاغ مؤسسة الجزائرية للمياه"},
		{ID: "route", Title: "Voirie", Body: "Travaux programmés"},
	})
	if got := ids(ix.TopK("hopital ferme le soir", 3)); !reflect.DeepEqual(got, []string{"sante"}) {
		t.Fatalf("french query: %v", got)
	}
	if got := ids(ix.TopK("لا يوجد ماء في الحي", 3)); !reflect.DeepEqual(got, []string{"ma"}) {
		t.Fatalf("arabic query: %v", got)
	}
}

func TestTopK_EdgeCases(t *testing.T) {
	ix := NewIndex([]Document{
		{ID: "a", Body: "eau"}, {ID: "b", Body: "eau potable"},
		{ID: "c", Body: "eau chaude"}, {ID: "d", Body: "eau froide"},
	})
	if got := ix.TopK("   ", 3); got != nil {
		t.Fatalf("blank query: %v", got)
	}
	if got := ix.TopK("le la", 3); got != nil {
		t.Fatalf("stop-word query: %v", got)
	}
	if got := ix.TopK("electricite", 3); len(got) != 0 {
		t.Fatalf("no overlap: %v", got)
	}
	if got := ix.TopK("eau", 0); len(got) != 3 {
		t.Fatalf("k<=0 should default to 3, got %d", len(got))
	}
	if got := ix.TopK("eau", 2); len(got) != 2 || got[0].ID != "a" {
		t.Fatalf("k=2: %+v", got)
	}
	if got := NewIndex(nil).TopK("eau", 3); len(got) != 0 {
		t.Fatalf("empty index: %v", got)
	}
}

func TestOptions(t *testing.T) {
	ix := NewIndex([]Document{{ID: "d", Title: "Le maire", Body: "maire"}},
		WithStopwords("maire"), WithTitleWeight(5), WithTitleWeight(0.5))
	if ix.titleWeight != 5 {
		t.Fatalf("title weight = %v", ix.titleWeight)
	}
	// "le" is no longer a stop word and "maire" is.
	if _, ok := ix.stop["le"]; ok {
		t.Fatalf("custom stop words should replace the defaults")
	}
	if ix.Len() != 1 || ix.entries[0].weights["le"] != 5 {
		t.Fatalf("entries = %+v", ix.entries)
	}
	if _, ok := ix.entries[0].weights["maire"]; ok {
		t.Fatalf("stop word indexed")
	}
}
