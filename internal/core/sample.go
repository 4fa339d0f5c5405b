package core

import "github.com/shopspring/decimal"

// SampleRecords returns six months of example figures used to seed an empty
// store.
func SampleRecords() []MonthlyRecord {
	rec := func(id, month string, revenue, labor int64, headcount int, operating, marketing int64) MonthlyRecord {
		return MonthlyRecord{
			ID:        id,
			Month:     month,
			Revenue:   decimal.NewFromInt(revenue),
			LaborCost: decimal.NewFromInt(labor),
			Headcount: headcount,
			Expenses: []Expense{
				{Category: CategoryOperating, Amount: decimal.NewFromInt(operating)},
				{Category: CategoryMarketing, Amount: decimal.NewFromInt(marketing)},
			},
		}
	}
	return []MonthlyRecord{
		rec("1", "2023-08", 1200000, 600000, 10, 50000, 30000),
		rec("2", "2023-09", 1350000, 620000, 11, 55000, 40000),
		rec("3", "2023-10", 1100000, 620000, 11, 50000, 20000),
		rec("4", "2023-11", 1500000, 650000, 12, 60000, 80000),
		rec("5", "2023-12", 1800000, 650000, 12, 70000, 100000),
		rec("6", "2024-01", 1400000, 680000, 13, 55000, 40000),
	}
}
