package dedupe

import (
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/ppiankov/gazette/internal/model"
)

func pub(name, jur, content, source string) model.Publication {
	return model.Publication{AttorneyName: name, Jurisdiction: jur, Content: content, Source: source}
}

func TestDedupe_SharedPrefixCollapses(t *testing.T) {
	body := strings.Repeat("x", 200)
	in := []model.Publication{
		pub("Jane Doe", "SP", body+" first tail", "DJE-SP"),
		pub("Jane Doe", "SP", body+" second tail", "DJEN"),
	}

	out := Dedupe(in)
	if len(out) != 1 {
		t.Fatalf("expected 1 record, got %d", len(out))
	}
	if out[0].Source != "DJE-SP" {
		t.Errorf("expected first occurrence to win, got %s", out[0].Source)
	}
}

func TestDedupe_DistinguishingFields(t *testing.T) {
	in := []model.Publication{
		pub("Jane Doe", "SP", "intimação", "a"),
		pub("John Roe", "SP", "intimação", "a"),
		pub("Jane Doe", "RJ", "intimação", "a"),
		pub("Jane Doe", "SP", "citação", "a"),
		pub("Jane Doe", "SP", "intimação", "b"),
	}

	out := Dedupe(in)
	if len(out) != 4 {
		t.Fatalf("expected 4 records, got %d", len(out))
	}
	if !reflect.DeepEqual(out, in[:4]) {
		t.Errorf("expected input order preserved, got %+v", out)
	}
}

func TestDedupe_PrefixCountsRunes(t *testing.T) {
	body := strings.Repeat("ç", 199)
	in := []model.Publication{
		pub("Jane Doe", "SP", body+"ã", "a"),
		pub("Jane Doe", "SP", body+"õ", "b"),
	}

	if out := Dedupe(in); len(out) != 2 {
		t.Errorf("records differing at rune 200 must be kept, got %d", len(out))
	}
}

func TestDedupe_Empty(t *testing.T) {
	if out := Dedupe(nil); len(out) != 0 {
		t.Errorf("expected empty result, got %d", len(out))
	}
}

func TestWithPrefix(t *testing.T) {
	in := []model.Publication{
		pub("Jane Doe", "SP", "abcdef", "a"),
		pub("Jane Doe", "SP", "abcxyz", "b"),
	}

	if out := WithPrefix(in, 3); len(out) != 1 {
		t.Errorf("expected collapse with a 3-rune prefix, got %d", len(out))
	}
	if out := WithPrefix(in, 0); len(out) != 2 {
		t.Errorf("expected default prefix to keep both, got %d", len(out))
	}
}

func genPublications() gopter.Gen {
	// small alphabets so that collisions actually happen
	return gen.SliceOf(gopter.CombineGens(
		gen.OneConstOf("Jane Doe", "John Roe"),
		gen.OneConstOf("SP", "RJ", "BR"),
		gen.OneConstOf("a", "b", strings.Repeat("c", 250), strings.Repeat("c", 200)+"d"),
		gen.OneConstOf("s1", "s2", "s3"),
	).Map(func(v []interface{}) model.Publication {
		return pub(v[0].(string), v[1].(string), v[2].(string), v[3].(string))
	}))
}

func TestDedupe_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("idempotent", prop.ForAll(
		func(in []model.Publication) bool {
			once := Dedupe(in)
			return reflect.DeepEqual(Dedupe(once), once)
		},
		genPublications(),
	))

	properties.Property("first occurrence is retained", prop.ForAll(
		func(in []model.Publication) bool {
			firsts := make(map[string]model.Publication)
			for _, p := range in {
				if _, ok := firsts[Key(p)]; !ok {
					firsts[Key(p)] = p
				}
			}
			out := Dedupe(in)
			if len(out) != len(firsts) {
				return false
			}
			for _, p := range out {
				if firsts[Key(p)] != p {
					return false
				}
			}
			return true
		},
		genPublications(),
	))

	properties.TestingRun(t)
}
