package domain

// Snapshot is the raw record context a workflow run reads. Any part may be
// absent; absence means "no data", never an error.
type Snapshot struct {
	Transactions []Transaction `json:"transactions,omitempty"`
	Budget       *Budget       `json:"budget,omitempty"`
	Holdings     []Holding     `json:"investments,omitempty"`
	Goals        []Goal        `json:"goals,omitempty"`
}

// HasTransactions reports whether any transactions are loaded.
func (s *Snapshot) HasTransactions() bool {
	return s != nil && len(s.Transactions) > 0
}

// HasBudget reports whether any budget month is loaded.
func (s *Snapshot) HasBudget() bool {
	return s != nil && !s.Budget.Empty()
}

// HasHoldings reports whether any holdings are loaded.
func (s *Snapshot) HasHoldings() bool {
	return s != nil && len(s.Holdings) > 0
}

// HasGoals reports whether any goals are loaded.
func (s *Snapshot) HasGoals() bool {
	return s != nil && len(s.Goals) > 0
}

// Merge fills every empty part of s from other. Parts already present in s win.
func (s *Snapshot) Merge(other *Snapshot) {
	if other == nil {
		return
	}
	if !s.HasTransactions() {
		s.Transactions = other.Transactions
	}
	if !s.HasBudget() {
		s.Budget = other.Budget
	}
	if !s.HasHoldings() {
		s.Holdings = other.Holdings
	}
	if !s.HasGoals() {
		s.Goals = other.Goals
	}
}
