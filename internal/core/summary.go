package core

// MonthlyTotal is the net amount of a single month, keyed by MM/YYYY.
type MonthlyTotal struct {
	Month string  `json:"month"`
	Total float64 `json:"total"`
}
