package importer

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// MsgEmailTaken is reported when the workshop already has a participant with the row's email
const MsgEmailTaken = "Email already exists for this workshop."

// RowError is one validation failure of one row
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s: %s", e.Row, e.Field, e.Message)
}

type rowInput struct {
	Name       string `col:"name" validate:"required,max=255"`
	Email      string `col:"email" validate:"required,email,max=255"`
	Phone      string `col:"phone" validate:"omitempty,max=20"`
	Occupation string `col:"occupation" validate:"omitempty,max=255"`
	Address    string `col:"address" validate:"omitempty,max=1000"`
	Company    string `col:"company" validate:"omitempty,max=255"`
	Position   string `col:"position" validate:"omitempty,max=255"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func rowValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			return f.Tag.Get("col")
		})
	})
	return validate
}

// validateRow checks encoding, field syntax and lengths. Uniqueness is checked by the importer.
func validateRow(row Row) []RowError {
	if errs := validateEncoding(row); len(errs) > 0 {
		return errs
	}

	in := rowInput{
		Name:       row.Get(ColName),
		Email:      row.Get(ColEmail),
		Phone:      row.Get(ColPhone),
		Occupation: row.Get(ColOccupation),
		Address:    row.Get(ColAddress),
		Company:    row.Get(ColCompany),
		Position:   row.Get(ColPosition),
	}

	err := rowValidator().Struct(in)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []RowError{{Row: row.Number, Field: "row", Message: err.Error()}}
	}

	out := make([]RowError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, RowError{Row: row.Number, Field: fe.Field(), Message: message(fe)})
	}
	return out
}

func message(fe validator.FieldError) string {
	field := strings.ReplaceAll(fe.Field(), "_", " ")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", field)
	case "email":
		return fmt.Sprintf("The %s field must be a valid email address.", field)
	case "max":
		return fmt.Sprintf("The %s field must not be greater than %s characters.", field, fe.Param())
	default:
		return fmt.Sprintf("The %s field is invalid.", field)
	}
}

// validateEncoding rejects cells that are not UTF-8, e.g. a Latin-1 export
func validateEncoding(row Row) []RowError {
	var out []RowError
	for column, v := range row.Values {
		if !utf8.ValidString(v) {
			out = append(out, RowError{
				Row:     row.Number,
				Field:   column,
				Message: fmt.Sprintf("The %s field contains characters that are not valid UTF-8. Save the file as UTF-8 and try again.", strings.ReplaceAll(column, "_", " ")),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}
