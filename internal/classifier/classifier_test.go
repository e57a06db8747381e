package classifier

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"extrato/internal/cache"
	"extrato/internal/core"
)

func foodRules() Rules {
	return Rules{
		{Name: "Food", Keywords: []string{"ifood", "restaurante"}},
		{Name: "Transport", Keywords: []string{"uber"}},
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		desc string
		want string
	}{
		{"keyword match", "IFOOD *IFOOD", "Food"},
		{"case insensitive", "Uber *Trip", "Transport"},
		{"substring in the middle", "PAG*RESTAURANTE BOM", "Food"},
		{"no match", "Livraria Cultura", core.DefaultCategory},
		{"empty description", "", core.DefaultCategory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.desc, foodRules()); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.desc, got, tt.want)
			}
		})
	}
}

func TestClassify_FirstMatchWins(t *testing.T) {
	rules := Rules{
		{Name: "Subscriptions", Keywords: []string{"amazon prime"}},
		{Name: "Shopping", Keywords: []string{"amazon"}},
	}
	if got := Classify("AMAZON PRIME BR", rules); got != "Subscriptions" {
		t.Fatalf("expected Subscriptions, got %q", got)
	}
	reversed := Rules{rules[1], rules[0]}
	if got := Classify("AMAZON PRIME BR", reversed); got != "Shopping" {
		t.Fatalf("expected Shopping with reversed order, got %q", got)
	}
}

func TestClassifier_Memo(t *testing.T) {
	c := New(Rules{{Name: "Food", Keywords: []string{" IFood "}}}, 16)
	for i := 0; i < 3; i++ {
		if got := c.Classify("IFOOD *IFOOD"); got != "Food" {
			t.Fatalf("expected Food, got %q", got)
		}
	}
	st := c.Stats()
	if st.Hits != 2 || st.Misses != 1 {
		t.Fatalf("unexpected memo stats: %+v", st)
	}

	plain := New(foodRules(), 0)
	if got := plain.Classify("uber"); got != "Transport" {
		t.Fatalf("expected Transport, got %q", got)
	}
	if plain.Stats() != (cache.Stats{}) {
		t.Fatalf("expected empty stats without memo")
	}
}

func TestDefaultRulesAreValid(t *testing.T) {
	rules := DefaultRules()
	if err := rules.Validate(); err != nil {
		t.Fatalf("default rules invalid: %v", err)
	}
	for _, r := range rules {
		for _, k := range r.Keywords {
			if k != strings.ToLower(k) {
				t.Fatalf("keyword %q of %s is not lowercase", k, r.Name)
			}
		}
	}
}

func TestRulesValidate(t *testing.T) {
	dup := Rules{
		{Name: "Food", Keywords: []string{"a"}},
		{Name: "Food", Keywords: []string{"b"}},
	}
	if err := dup.Validate(); err == nil {
		t.Fatalf("expected duplicate name error")
	}
	empty := Rules{{Name: "Food"}}
	if err := empty.Validate(); err == nil {
		t.Fatalf("expected empty keywords error")
	}
}

func TestSaveAndLoadRules_PreservesOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "rules.yaml")
	rules := Rules{
		{Name: "Zeta", Keywords: []string{"z"}},
		{Name: "Alpha", Keywords: []string{"a", "aa"}},
		{Name: "Mid", Keywords: []string{"m"}},
	}
	if err := SaveRules(path, rules); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := LoadRules(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got, rules) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, rules)
	}
}

func TestParseRules(t *testing.T) {
	data := []byte(`categories:
  - name: Food
    keywords: [IFOOD, " Restaurante "]
  - name: Transport
    keywords:
      - uber
`)
	rules, err := ParseRules(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := Rules{
		{Name: "Food", Keywords: []string{"ifood", "restaurante"}},
		{Name: "Transport", Keywords: []string{"uber"}},
	}
	if !reflect.DeepEqual(rules, want) {
		t.Fatalf("got %+v, want %+v", rules, want)
	}

	bad := [][]byte{
		[]byte("categories: []\n"),
		[]byte("categories:\n  - name: Food\n"),
		[]byte("cats:\n  - name: Food\n"),
	}
	for i, b := range bad {
		if _, err := ParseRules(b); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}

	if _, err := LoadRules(filepath.Join(t.TempDir(), "missing.yaml")); err == nil || !os.IsNotExist(unwrapAll(err)) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func unwrapAll(err error) error {
	for {
		u, ok := err.(interface{ Unwrap() error })
		if !ok || u.Unwrap() == nil {
			return err
		}
		err = u.Unwrap()
	}
}
