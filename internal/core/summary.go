package core

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// SpendByCategory sums expense amounts per category in first-seen order.
// Income records are ignored.
func SpendByCategory(txs []Transaction) []CategoryAmount {
	var out []CategoryAmount
	idx := make(map[string]int)
	for _, tx := range txs {
		if tx.Type != Expense {
			continue
		}
		i, ok := idx[tx.Category]
		if !ok {
			i = len(out)
			idx[tx.Category] = i
			out = append(out, CategoryAmount{Name: tx.Category})
		}
		out[i].Amount = out[i].Amount.Add(tx.Amount)
	}
	return out
}

// CategorySpend returns the total expense recorded in one category.
func CategorySpend(txs []Transaction, category string) Money {
	var total Money
	for _, tx := range txs {
		if tx.Type == Expense && tx.Category == category {
			total = total.Add(tx.Amount)
		}
	}
	return total
}
