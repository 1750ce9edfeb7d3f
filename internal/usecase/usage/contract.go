package usage

// BudgetReader is the read side of the embedding budget tracker: current
// limits and spend for the day and month windows.
type BudgetReader interface {
	DailyLimit() int64
	MonthlyLimit() int64
	DailyUsed() int64
	MonthlyUsed() int64
	RemainingDaily() int64
	RemainingMonthly() int64
}
