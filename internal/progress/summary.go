package progress

// Summary describes how far scraping has progressed against a work list.
type Summary struct {
	Requested    int `json:"requested"`
	Scraped      int `json:"scraped"`
	Remaining    int `json:"remaining"`
	BatchFiles   int `json:"batch_files"`
	Consolidated int `json:"consolidated"`
	Failures     int `json:"failures"`
	Warnings     int `json:"warnings"`
}

// Summarize reports progress for the requested identifiers. requested may
// be nil when no identifier list exists yet.
func (s *Store) Summarize(requested []string) (*Summary, error) {
	scraped, warnings := s.LoadScraped()

	nums, err := s.BatchNumbers()
	if err != nil {
		return nil, err
	}
	consolidated, err := s.LoadConsolidated()
	if err != nil {
		return nil, err
	}
	failures, err := s.LoadFailures()
	if err != nil {
		return nil, err
	}

	sum := &Summary{
		Requested:  len(requested),
		Scraped:    len(scraped),
		Remaining:  len(WorkList(requested, scraped)),
		BatchFiles: len(nums),
		Failures:   len(failures),
		Warnings:   len(warnings),
	}
	if consolidated != nil {
		sum.Consolidated = consolidated.CharacterCount
	}
	return sum, nil
}
