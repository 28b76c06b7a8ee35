package domain

import "github.com/shopspring/decimal"

type PricedQuantity struct {
	Price    decimal.Decimal
	Quantity int
}

func LineTotal(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity)))
}

// Total sums price*quantity over all lines.
func Total(lines []PricedQuantity) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(LineTotal(l.Price, l.Quantity))
	}
	return total
}

func CartTotal(lines []CartLine) decimal.Decimal {
	priced := make([]PricedQuantity, 0, len(lines))
	for _, l := range lines {
		priced = append(priced, PricedQuantity{Price: l.Product.Price, Quantity: l.Quantity})
	}
	return Total(priced)
}
