// Package classifier assigns categories to transactions using ordered
// keyword rules.
package classifier

import (
	"strings"

	"extrato/internal/cache"
	"extrato/internal/core"
)

// Classify returns the name of the first rule with a keyword contained in
// description, or core.DefaultCategory. Keywords are expected in lowercase
// (see Rules.Normalize).
func Classify(description string, rules Rules) string {
	desc := strings.ToLower(description)
	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(desc, kw) {
				return rule.Name
			}
		}
	}
	return core.DefaultCategory
}

// Classifier applies a fixed rule set, memoizing results per description.
type Classifier struct {
	rules Rules
	memo  *cache.LRUCache[string, string]
}

// New creates a classifier. memoSize of zero disables the memo.
func New(rules Rules, memoSize int) *Classifier {
	c := &Classifier{rules: rules.Normalize()}
	if memoSize > 0 {
		c.memo = cache.NewLRUCache[string, string](memoSize, 0)
	}
	return c
}

// Rules returns the normalized rules in evaluation order.
func (c *Classifier) Rules() Rules {
	return append(Rules(nil), c.rules...)
}

// Classify returns the category of description.
func (c *Classifier) Classify(description string) string {
	if c.memo == nil {
		return Classify(description, c.rules)
	}
	key := strings.ToLower(description)
	if name, ok := c.memo.Get(key); ok {
		return name
	}
	name := Classify(key, c.rules)
	c.memo.Set(key, name)
	return name
}

// Stats exposes the memo counters; zero when the memo is disabled.
func (c *Classifier) Stats() cache.Stats {
	if c.memo == nil {
		return cache.Stats{}
	}
	return c.memo.Stats()
}
