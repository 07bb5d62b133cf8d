package jobs

// Posting represents a single job listing.
type Posting struct {
	ID      string
	Title   string
	Company string
	Salary  string
}
