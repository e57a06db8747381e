// Package mapper turns raw tabular rows into transactions.
//
// Headers are matched against bilingual synonym sets after normalization, so
// "Descrição", "DESCRICAO" and "descricao" all land on the description field.
package mapper

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"extrato/internal/core"
)

// Field is the canonical destination of a column.
type Field string

const (
	FieldDate        Field = "date"
	FieldDescription Field = "description"
	FieldAmount      Field = "amount"
	FieldCategory    Field = "category"
	FieldType        Field = "type"
	FieldOther       Field = "other"
)

// synonyms is checked in declaration order; the first field with a matching
// substring wins.
var synonyms = []struct {
	field Field
	words []string
}{
	{FieldDate, []string{"date", "data"}},
	{FieldDescription, []string{"description", "descricao", "title", "titulo", "estabelecimento", "historico", "memo", "lancamento"}},
	{FieldAmount, []string{"amount", "valor", "value", "price", "preco", "quantia"}},
	{FieldCategory, []string{"category", "categoria"}},
	{FieldType, []string{"type", "tipo"}},
}

var requiredFields = []Field{FieldDate, FieldDescription, FieldAmount}

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeHeader trims, lowercases, hyphenates whitespace runs and folds
// accented letters to ASCII.
func NormalizeHeader(name string) string {
	s := strings.TrimPrefix(name, "\ufeff")
	s = strings.ToLower(strings.TrimSpace(s))
	s = whitespaceRun.ReplaceAllString(s, "-")
	return foldAccents(s)
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// FieldFor maps a raw header to its canonical field.
func FieldFor(name string) Field {
	h := NormalizeHeader(name)
	if h == "" {
		return FieldOther
	}
	for _, syn := range synonyms {
		for _, w := range syn.words {
			if strings.Contains(h, w) {
				return syn.field
			}
		}
	}
	return FieldOther
}

// Column is a pass-through column kept under its normalized name.
type Column struct {
	Name  string
	Index int
}

// Mapping holds the column index of each canonical field.
type Mapping struct {
	fields map[Field]int
	Others []Column
}

// Index returns the column of f, or -1 when the header set lacks it.
func (m Mapping) Index(f Field) int {
	if i, ok := m.fields[f]; ok {
		return i
	}
	return -1
}

// BuildFieldMapping assigns each header to a field. When two headers map to
// the same canonical field the first one wins and the later one is ignored.
func BuildFieldMapping(headers []string) (Mapping, error) {
	m := Mapping{fields: make(map[Field]int)}
	seenOther := make(map[string]bool)
	for i, h := range headers {
		f := FieldFor(h)
		if f == FieldOther {
			name := NormalizeHeader(h)
			if name == "" || seenOther[name] {
				continue
			}
			seenOther[name] = true
			m.Others = append(m.Others, Column{Name: name, Index: i})
			continue
		}
		if _, taken := m.fields[f]; !taken {
			m.fields[f] = i
		}
	}

	var missing []string
	for _, f := range requiredFields {
		if m.Index(f) < 0 {
			missing = append(missing, string(f))
		}
	}
	if len(missing) > 0 {
		return Mapping{}, &core.MissingColumnError{
			Headers: append([]string(nil), headers...),
			Missing: missing,
		}
	}
	return m, nil
}
