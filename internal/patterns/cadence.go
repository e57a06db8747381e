package patterns

import (
	"fmt"
	"sync"
	"time"
)

// Cadence names how often a recurring payment repeats.
type Cadence string

const (
	CadenceWeekly    Cadence = "weekly"
	CadenceMonthly   Cadence = "monthly"
	CadenceYearly    Cadence = "yearly"
	CadenceIrregular Cadence = "irregular"
)

// CadenceChecker recognises one cadence from the average gap between
// payments and projects the next payment date.
type CadenceChecker interface {
	Matches(avgIntervalDays float64) bool
	Next(last time.Time) time.Time
}

// WeeklyChecker matches gaps of roughly seven days.
type WeeklyChecker struct{}

func (WeeklyChecker) Matches(days float64) bool { return days >= 5 && days <= 9 }

func (WeeklyChecker) Next(last time.Time) time.Time { return last.AddDate(0, 0, 7) }

// MonthlyChecker matches gaps of roughly one month. Next keeps the day of
// month, clamped to the last day of shorter months.
type MonthlyChecker struct{}

func (MonthlyChecker) Matches(days float64) bool { return days >= 25 && days <= 35 }

func (MonthlyChecker) Next(last time.Time) time.Time { return addMonthsClamped(last, 1) }

// YearlyChecker matches gaps of roughly one year.
type YearlyChecker struct{}

func (YearlyChecker) Matches(days float64) bool { return days >= 350 && days <= 380 }

func (YearlyChecker) Next(last time.Time) time.Time { return addMonthsClamped(last, 12) }

type registeredCadence struct {
	cadence Cadence
	checker CadenceChecker
}

// CadenceRegistry holds the checkers used to classify recurring patterns.
// Each pipeline owns one; the zero value has no checkers.
type CadenceRegistry struct {
	mu      sync.RWMutex
	entries []registeredCadence
}

// NewCadenceRegistry returns a registry with the weekly, monthly and yearly
// checkers.
func NewCadenceRegistry() *CadenceRegistry {
	return &CadenceRegistry{entries: []registeredCadence{
		{CadenceWeekly, WeeklyChecker{}},
		{CadenceMonthly, MonthlyChecker{}},
		{CadenceYearly, YearlyChecker{}},
	}}
}

// Get returns the checker registered for c.
func (r *CadenceRegistry) Get(c Cadence) (CadenceChecker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rc := range r.entries {
		if rc.cadence == c {
			return rc.checker, nil
		}
	}
	return nil, fmt.Errorf("no checker for cadence %q", c)
}

// Register adds or replaces the checker for c. Checkers are tried in
// registration order, so a new cadence only wins gaps no earlier checker
// matches.
func (r *CadenceRegistry) Register(c Cadence, checker CadenceChecker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, rc := range r.entries {
		if rc.cadence == c {
			r.entries[i].checker = checker
			return
		}
	}
	r.entries = append(r.entries, registeredCadence{c, checker})
}

// Classify returns the first registered cadence matching the gap, or
// CadenceIrregular.
func (r *CadenceRegistry) Classify(avgIntervalDays float64) (Cadence, CadenceChecker) {
	if avgIntervalDays <= 0 {
		return CadenceIrregular, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rc := range r.entries {
		if rc.checker.Matches(avgIntervalDays) {
			return rc.cadence, rc.checker
		}
	}
	return CadenceIrregular, nil
}

// IsDue reports whether the pattern's next expected payment falls on or
// before now. Irregular patterns are never due.
func (p RecurringPattern) IsDue(now time.Time) bool {
	if p.NextExpected == "" {
		return false
	}
	next, err := time.Parse(time.DateOnly, p.NextExpected)
	if err != nil {
		return false
	}
	y, m, d := now.Date()
	return !next.After(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

func applyCadence(p *RecurringPattern, cadences *CadenceRegistry) {
	c, checker := cadences.Classify(p.AvgIntervalDays)
	p.Cadence = c
	if checker == nil {
		return
	}
	last, err := time.Parse(time.DateOnly, p.LastDate)
	if err != nil {
		return
	}
	p.NextExpected = checker.Next(last).Format(time.DateOnly)
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	lastDay := first.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, t.Location())
}
