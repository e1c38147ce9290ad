package calculator

import "sort"

// ExpenseForBalance carries the minimal expense information needed for
// balance calculations. Member identifiers must already be canonicalized by
// the caller: aggregating over raw snapshot IDs would double-count people
// whose placeholders were later aliased to an account.
type ExpenseForBalance struct {
	PayerID string
	Amount  float64
	// Shares maps canonical member ID to the amount that member owes.
	Shares map[string]float64
}

// MemberBalance is the aggregated position of one member.
type MemberBalance struct {
	MemberID   string
	NetBalance float64 // Positive = owed money, Negative = owes money
	TotalPaid  float64 // Total amount paid across all expenses
	TotalOwed  float64 // Total amount this member owes
}

// DebtEdge represents a suggested settlement payment.
type DebtEdge struct {
	From   string // Member who owes
	To     string // Member who is owed
	Amount float64
}

// CalculateGroupBalances aggregates who paid what and who owes what across
// the given expenses, returning per-member balances and a simplified debt
// list produced by greedy matching of the largest debts against the largest
// credits. Output order is deterministic (sorted by member ID).
func CalculateGroupBalances(expenses []ExpenseForBalance) ([]MemberBalance, []DebtEdge) {
	balances := map[string]*MemberBalance{}
	get := func(id string) *MemberBalance {
		if b, ok := balances[id]; ok {
			return b
		}
		b := &MemberBalance{MemberID: id}
		balances[id] = b
		return b
	}

	for _, exp := range expenses {
		// Expenses without a payer cannot move balances.
		if exp.PayerID == "" {
			continue
		}
		get(exp.PayerID).TotalPaid += exp.Amount
		for member, share := range exp.Shares {
			get(member).TotalOwed += share
		}
	}

	ids := make([]string, 0, len(balances))
	for id, b := range balances {
		b.NetBalance = b.TotalPaid - b.TotalOwed
		ids = append(ids, id)
	}
	sort.Strings(ids)

	memberBalances := make([]MemberBalance, 0, len(ids))
	var debtors, creditors []MemberBalance
	for _, id := range ids {
		b := *balances[id]
		memberBalances = append(memberBalances, b)
		if b.NetBalance < -0.01 {
			debtors = append(debtors, b)
		} else if b.NetBalance > 0.01 {
			creditors = append(creditors, b)
		}
	}

	// Greedy settlement: walk both lists, matching debt against credit.
	var edges []DebtEdge
	i, j := 0, 0
	owed := map[string]float64{}
	due := map[string]float64{}
	for _, d := range debtors {
		owed[d.MemberID] = -d.NetBalance
	}
	for _, c := range creditors {
		due[c.MemberID] = c.NetBalance
	}

	for i < len(debtors) && j < len(creditors) {
		debtor := debtors[i].MemberID
		creditor := creditors[j].MemberID

		amount := owed[debtor]
		if due[creditor] < amount {
			amount = due[creditor]
		}
		if amount > 0.01 { // Avoid floating point noise
			edges = append(edges, DebtEdge{From: debtor, To: creditor, Amount: amount})
		}

		owed[debtor] -= amount
		due[creditor] -= amount
		if owed[debtor] < 0.01 {
			i++
		}
		if due[creditor] < 0.01 {
			j++
		}
	}

	return memberBalances, edges
}
