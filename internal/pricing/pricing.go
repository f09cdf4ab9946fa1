package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/apperr"
)

// Line is one cart line plus the catalog facts needed to price and check it.
type Line struct {
	ProductID string
	Name      string
	Quantity  int32

	UnitPrice        decimal.Decimal
	DiscountPercent  decimal.Decimal
	DiscountStartsAt *time.Time
	DiscountEndsAt   *time.Time

	Stock      int32
	Published  bool
	IsPreOrder bool
}

// GlobalDiscount overrides all line-level discounts once the base subtotal
// reaches MinSubtotal. Line discounts and the global discount never stack.
type GlobalDiscount struct {
	Percent     decimal.Decimal
	MinSubtotal decimal.Decimal
}

type SummaryLine struct {
	ProductID     string
	Name          string
	Quantity      int32
	BaseUnitPrice decimal.Decimal
	BaseTotal     decimal.Decimal
	Discount      decimal.Decimal
	Total         decimal.Decimal
	IsPreOrder    bool
}

type Summary struct {
	Lines         []SummaryLine
	BaseSubtotal  decimal.Decimal
	Discount      decimal.Decimal
	Subtotal      decimal.Decimal
	GlobalApplied bool
	HasPreOrder   bool
}

var hundred = decimal.NewFromInt(100)

func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Summarize prices a cart. It is pure: all inputs are passed in, including
// the clock. Lines failing stock or publication checks abort the whole
// summarization with every reason collected.
func Summarize(now time.Time, lines []Line, global *GlobalDiscount) (*Summary, error) {
	if len(lines) == 0 {
		return nil, apperr.Validation("cart is empty")
	}

	var reasons []string
	for _, l := range lines {
		if l.Quantity <= 0 {
			reasons = append(reasons, fmt.Sprintf("%s: quantity must be positive", l.ProductID))
		}
		if !l.Published {
			reasons = append(reasons, fmt.Sprintf("%s: product is not available", l.ProductID))
		}
		// Pre-order stock is allocated at release, not at checkout.
		if !l.IsPreOrder && l.Stock < l.Quantity {
			reasons = append(reasons, fmt.Sprintf("%s: insufficient stock (%d available, %d requested)", l.ProductID, l.Stock, l.Quantity))
		}
	}
	if len(reasons) > 0 {
		return nil, apperr.ValidationReasons(reasons)
	}

	s := &Summary{Lines: make([]SummaryLine, len(lines))}
	for i, l := range lines {
		baseUnit := round2(l.UnitPrice)
		baseTotal := round2(baseUnit.Mul(decimal.NewFromInt32(l.Quantity)))
		s.Lines[i] = SummaryLine{
			ProductID:     l.ProductID,
			Name:          l.Name,
			Quantity:      l.Quantity,
			BaseUnitPrice: baseUnit,
			BaseTotal:     baseTotal,
			IsPreOrder:    l.IsPreOrder,
		}
		s.BaseSubtotal = round2(s.BaseSubtotal.Add(baseTotal))
		if l.IsPreOrder {
			s.HasPreOrder = true
		}
	}

	if global != nil && global.Percent.IsPositive() && s.BaseSubtotal.GreaterThanOrEqual(global.MinSubtotal) {
		applyGlobal(s, global.Percent)
	} else {
		applyLineDiscounts(now, lines, s)
	}

	for i := range s.Lines {
		s.Subtotal = round2(s.Subtotal.Add(s.Lines[i].Total))
	}
	return s, nil
}

// applyGlobal distributes the global discount across lines proportionally to
// each line's base total; any rounding remainder lands on the last line so
// the per-line discounts sum to the global discount exactly.
func applyGlobal(s *Summary, percent decimal.Decimal) {
	s.GlobalApplied = true
	total := round2(s.BaseSubtotal.Mul(percent).Div(hundred))
	allocated := decimal.Zero
	last := len(s.Lines) - 1
	for i := range s.Lines {
		var d decimal.Decimal
		if i == last {
			d = total.Sub(allocated)
		} else {
			d = round2(s.Lines[i].BaseTotal.Mul(total).Div(s.BaseSubtotal))
			allocated = round2(allocated.Add(d))
		}
		s.Lines[i].Discount = d
		s.Lines[i].Total = round2(s.Lines[i].BaseTotal.Sub(d))
	}
	s.Discount = total
}

func applyLineDiscounts(now time.Time, lines []Line, s *Summary) {
	for i, l := range lines {
		sl := &s.Lines[i]
		if l.DiscountPercent.IsPositive() && discountWindowActive(now, l.DiscountStartsAt, l.DiscountEndsAt) {
			discUnit := round2(sl.BaseUnitPrice.Mul(hundred.Sub(l.DiscountPercent)).Div(hundred))
			sl.Total = round2(discUnit.Mul(decimal.NewFromInt32(l.Quantity)))
			sl.Discount = round2(sl.BaseTotal.Sub(sl.Total))
		} else {
			sl.Total = sl.BaseTotal
		}
		s.Discount = round2(s.Discount.Add(sl.Discount))
	}
}

func discountWindowActive(now time.Time, start, end *time.Time) bool {
	if start != nil && now.Before(*start) {
		return false
	}
	if end != nil && now.After(*end) {
		return false
	}
	return true
}
