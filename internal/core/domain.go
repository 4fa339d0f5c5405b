package core

import (
	"errors"
	"regexp"

	"github.com/shopspring/decimal"
)

const (
	CategoryPersonnel Category = "personnel"
	CategoryOperating Category = "operating"
	CategoryMarketing Category = "marketing"
)

type (
	// Category classifies an expense line item.
	Category string

	Expense struct {
		Category Category        `json:"category"`
		Amount   decimal.Decimal `json:"amount"`
	}

	// MonthlyRecord is the raw operating input for one calendar month.
	// Month is the natural key and must be a zero-padded "YYYY-MM" string.
	MonthlyRecord struct {
		ID        string          `json:"id"`
		Month     string          `json:"month"`
		Revenue   decimal.Decimal `json:"revenue"`
		LaborCost decimal.Decimal `json:"laborCost"`
		Headcount int             `json:"headcount"`
		Expenses  []Expense       `json:"expenses"`
	}

	// MonthlyReport is a MonthlyRecord plus its derived figures. It is never
	// stored; see Derive.
	MonthlyReport struct {
		MonthlyRecord
		TotalExpenses decimal.Decimal `json:"totalExpenses"`
		TotalCost     decimal.Decimal `json:"totalCost"`
		Profit        decimal.Decimal `json:"profit"`
		AvgRevenue    decimal.Decimal `json:"avgRevenue"`
		AvgCost       decimal.Decimal `json:"avgCost"`
	}

	// CategoryAmount is an amount aggregated by expense category.
	CategoryAmount struct {
		Category Category
		Amount   decimal.Decimal
	}
)

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrNegativeAmount = errors.New("amount must not be negative")
	ErrInvalidMonth   = errors.New("month must be formatted as YYYY-MM")
)

var monthKeyPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// Categories returns every category in form display order.
func Categories() []Category {
	return []Category{CategoryPersonnel, CategoryOperating, CategoryMarketing}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryPersonnel, CategoryOperating, CategoryMarketing:
		return true
	default:
		return false
	}
}

// Label returns the human readable category name.
func (c Category) Label() string {
	switch c {
	case CategoryPersonnel:
		return "Personnel (non-salary)"
	case CategoryOperating:
		return "Operating"
	case CategoryMarketing:
		return "Marketing"
	default:
		return string(c)
	}
}

// ValidMonth reports whether key is a zero-padded YYYY-MM month key, the only
// format for which lexicographic order equals chronological order.
func ValidMonth(key string) bool {
	return monthKeyPattern.MatchString(key)
}

// Clone returns a deep copy of the record.
func (r MonthlyRecord) Clone() MonthlyRecord {
	out := r
	if r.Expenses != nil {
		out.Expenses = make([]Expense, len(r.Expenses))
		copy(out.Expenses, r.Expenses)
	}
	return out
}
