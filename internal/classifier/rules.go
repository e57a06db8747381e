package classifier

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"extrato/internal/core"
)

// Rules is an ordered rule list. Order decides which category wins when a
// description matches several rules.
type Rules []core.CategoryRule

type rulesFile struct {
	Categories Rules `yaml:"categories"`
}

// DefaultRules returns the built-in bilingual rule set.
func DefaultRules() Rules {
	return Rules{
		{Name: "Food", Keywords: []string{"ifood", "rappi", "restaurante", "restaurant", "lanchonete", "padaria", "pizzaria", "burger", "mcdonald", "bakery", "cafe"}},
		{Name: "Groceries", Keywords: []string{"mercado", "supermercado", "supermarket", "carrefour", "atacadao", "pao de acucar", "assai", "grocery", "hortifruti"}},
		{Name: "Transport", Keywords: []string{"uber", "99app", "99 pop", "taxi", "cabify", "metro", "onibus", "bus ", "combustivel", "posto", "shell", "ipiranga", "estacionamento", "parking", "pedagio"}},
		{Name: "Subscriptions", Keywords: []string{"netflix", "spotify", "amazon prime", "prime video", "disney", "hbo", "youtube premium", "apple.com", "icloud", "google one", "deezer"}},
		{Name: "Health", Keywords: []string{"farmacia", "drogaria", "droga raia", "drogasil", "pharmacy", "hospital", "clinica", "laboratorio", "unimed", "dentista"}},
		{Name: "Housing", Keywords: []string{"aluguel", "rent", "condominio", "energia", "enel", "cemig", "sabesp", "agua", "internet", "vivo", "claro", "tim "}},
		{Name: "Shopping", Keywords: []string{"amazon", "mercado livre", "mercadolivre", "shopee", "magalu", "magazine", "americanas", "aliexpress", "shein", "renner", "zara"}},
		{Name: "Education", Keywords: []string{"escola", "faculdade", "universidade", "curso", "udemy", "coursera", "alura", "livraria", "school"}},
		{Name: "Leisure", Keywords: []string{"cinema", "ingresso", "teatro", "show", "steam", "playstation", "xbox", "viagem", "hotel", "airbnb", "booking"}},
		{Name: "Transfers", Keywords: []string{"pix", "ted ", "doc ", "transferencia", "transfer"}},
		{Name: "Income", Keywords: []string{"salario", "salary", "payroll", "rendimento", "dividendo", "reembolso", "refund"}},
		{Name: "Fees", Keywords: []string{"tarifa", "anuidade", "juros", "iof", "multa", "fee"}},
	}
}

// Normalize returns a copy with trimmed names and trimmed lowercase keywords.
// Rule and keyword order is kept.
func (r Rules) Normalize() Rules {
	out := make(Rules, 0, len(r))
	for _, rule := range r {
		kws := make([]string, 0, len(rule.Keywords))
		for _, k := range rule.Keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				kws = append(kws, k)
			}
		}
		out = append(out, core.CategoryRule{Name: strings.TrimSpace(rule.Name), Keywords: kws})
	}
	return out
}

// Validate checks every rule and rejects duplicate names.
func (r Rules) Validate() error {
	seen := make(map[string]bool, len(r))
	for i, rule := range r {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
		if seen[rule.Name] {
			return fmt.Errorf("rule %d: duplicate category %q", i, rule.Name)
		}
		seen[rule.Name] = true
	}
	return nil
}

// Names returns the category names in rule order.
func (r Rules) Names() []string {
	names := make([]string, len(r))
	for i, rule := range r {
		names[i] = rule.Name
	}
	return names
}

// LoadRules reads an ordered rule list from a YAML file of the form
//
//	categories:
//	  - name: Food
//	    keywords: [ifood, restaurante]
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes YAML rule data, normalizes it and validates it.
func ParseRules(data []byte) (Rules, error) {
	var f rulesFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	rules := f.Categories.Normalize()
	if len(rules) == 0 {
		return nil, fmt.Errorf("decode rules: no categories defined")
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return rules, nil
}

// SaveRules writes rules to path as YAML, creating the directory if needed.
func SaveRules(path string, rules Rules) error {
	if err := rules.Validate(); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create rules directory: %w", err)
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(rulesFile{Categories: rules}); err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write rules file: %w", err)
	}
	return nil
}
