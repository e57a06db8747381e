package patterns

import (
	"fmt"
	"sort"

	"extrato/internal/core"
)

// DuplicateGroup is a set of transactions sharing month, amount in cents and
// description prefix.
type DuplicateGroup struct {
	Key          string             `json:"key"`
	MonthKey     string             `json:"month_key"`
	AmountCents  int64              `json:"amount_cents"`
	Prefix       string             `json:"description_prefix"`
	Count        int                `json:"count"`
	Transactions []core.Transaction `json:"transactions"`
}

type dupKey struct {
	month  string
	cents  int64
	prefix string
}

// Duplicates groups txs on (month key, round(amount*100), description
// prefix) and returns every group with more than one member. Groups are
// ordered by month, then prefix, then amount; members keep input order.
func Duplicates(txs []core.Transaction, prefixLen int) []DuplicateGroup {
	groups := make(map[dupKey][]core.Transaction)
	var order []dupKey
	for _, t := range txs {
		month := t.MonthKey
		if month == "" {
			month = core.UnknownMonth
		}
		k := dupKey{month: month, cents: core.Cents(t.Amount), prefix: DescriptionKey(t.Description, prefixLen)}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], t)
	}

	out := []DuplicateGroup{}
	for _, k := range order {
		members := groups[k]
		if len(members) < 2 {
			continue
		}
		out = append(out, DuplicateGroup{
			Key:          fmt.Sprintf("%s|%d|%s", k.month, k.cents, k.prefix),
			MonthKey:     k.month,
			AmountCents:  k.cents,
			Prefix:       k.prefix,
			Count:        len(members),
			Transactions: members,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		mi, mj := sortableMonth(out[i].MonthKey), sortableMonth(out[j].MonthKey)
		if mi != mj {
			return mi < mj
		}
		if out[i].Prefix != out[j].Prefix {
			return out[i].Prefix < out[j].Prefix
		}
		return out[i].AmountCents < out[j].AmountCents
	})
	return out
}

// sortableMonth turns "MM/YYYY" into "YYYY/MM"; other keys sort last.
func sortableMonth(key string) string {
	if len(key) == 7 && key[2] == '/' {
		return key[3:] + "/" + key[:2]
	}
	return "~" + key
}
