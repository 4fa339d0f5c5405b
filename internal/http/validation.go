package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"finboard/internal/core"
)

// FieldErrors maps a field path such as "expenses[1].amount" to a message.
type FieldErrors map[string]string

func (fe FieldErrors) add(field, msg string) {
	if _, exists := fe[field]; !exists {
		fe[field] = msg
	}
}

type expenseInput struct {
	Category core.Category   `json:"category" validate:"required,category"`
	Amount   decimal.Decimal `json:"amount" validate:"nonneg"`
}

// recordInput is the unvalidated shape of a save request from either the form or the API.
type recordInput struct {
	ID        string          `json:"id,omitempty"`
	Month     string          `json:"month" validate:"required,monthkey"`
	Revenue   decimal.Decimal `json:"revenue" validate:"nonneg"`
	LaborCost decimal.Decimal `json:"laborCost" validate:"nonneg"`
	Headcount int             `json:"headcount" validate:"gte=1"`
	Expenses  []expenseInput  `json:"expenses" validate:"dive"`
}

func (in recordInput) toRecord() core.MonthlyRecord {
	rec := core.MonthlyRecord{
		ID:        in.ID,
		Month:     in.Month,
		Revenue:   in.Revenue,
		LaborCost: in.LaborCost,
		Headcount: in.Headcount,
		Expenses:  make([]core.Expense, 0, len(in.Expenses)),
	}
	for _, e := range in.Expenses {
		rec.Expenses = append(rec.Expenses, core.Expense{Category: e.Category, Amount: e.Amount})
	}
	return rec
}

// newValidator builds the validator used for record input.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	// decimals validate as their sign; a float conversion rounds tiny negatives to -0
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.Sign()
		}
		return nil
	}, decimal.Decimal{})

	_ = v.RegisterValidation("nonneg", func(fl validator.FieldLevel) bool {
		return fl.Field().Int() >= 0
	})

	_ = v.RegisterValidation("monthkey", func(fl validator.FieldLevel) bool {
		return core.ValidMonth(fl.Field().String())
	})
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return core.Category(fl.Field().String()).Valid()
	})
	return v
}

// validateRecord runs struct validation and folds the result into errs.
func validateRecord(v *validator.Validate, in recordInput, errs FieldErrors) {
	err := v.Struct(in)
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs.add("record", err.Error())
		return
	}
	for _, fe := range verrs {
		errs.add(fieldPath(fe.Namespace()), fieldMessage(fe))
	}
}

// fieldPath drops the struct name prefix from a validator namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "monthkey":
		return core.ErrInvalidMonth.Error()
	case "category":
		names := make([]string, 0, len(core.Categories()))
		for _, c := range core.Categories() {
			names = append(names, string(c))
		}
		return "must be one of " + strings.Join(names, ", ")
	case "nonneg":
		return core.ErrNegativeAmount.Error()
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
