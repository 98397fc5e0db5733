package catalog

import (
	"strings"

	"github.com/google/uuid"

	"github.com/heartmarshall/circulation-backend/internal/domain"
)

// CreateItemInput holds the parameters for adding a title to the catalog.
type CreateItemInput struct {
	Title         string
	Author        string
	ISBN          *string
	Category      *string
	Description   *string
	PublishedYear *int
	TotalCopies   int
}

// Validate checks all fields and collects all errors.
func (i CreateItemInput) Validate() error {
	var errs []domain.FieldError

	errs = append(errs, validateText("title", &i.Title, true, 300)...)
	errs = append(errs, validateText("author", &i.Author, true, 200)...)
	errs = append(errs, validateText("isbn", i.ISBN, false, 20)...)
	errs = append(errs, validateText("category", i.Category, false, 100)...)
	errs = append(errs, validateText("description", i.Description, false, 2000)...)
	if i.PublishedYear != nil && (*i.PublishedYear < 0 || *i.PublishedYear > 9999) {
		errs = append(errs, domain.FieldError{Field: "published_year", Message: "must be between 0 and 9999"})
	}
	if i.TotalCopies < 0 {
		errs = append(errs, domain.FieldError{Field: "total_copies", Message: "must not be negative"})
	}

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// UpdateItemInput holds the descriptive fields to change. nil = don't change;
// ptr("") clears an optional field. Copy counts are changed through
// lending.Service.AdjustStock only.
type UpdateItemInput struct {
	ItemID        uuid.UUID
	Title         *string
	Author        *string
	ISBN          *string
	Category      *string
	Description   *string
	PublishedYear *int
}

// Validate checks all fields and collects all errors.
func (i UpdateItemInput) Validate() error {
	var errs []domain.FieldError

	if i.ItemID == uuid.Nil {
		errs = append(errs, domain.FieldError{Field: "item_id", Message: "required"})
	}
	if i.Title == nil && i.Author == nil && i.ISBN == nil && i.Category == nil &&
		i.Description == nil && i.PublishedYear == nil {
		errs = append(errs, domain.FieldError{Field: "input", Message: "at least one field must be provided"})
	}
	if i.Title != nil {
		errs = append(errs, validateText("title", i.Title, true, 300)...)
	}
	if i.Author != nil {
		errs = append(errs, validateText("author", i.Author, true, 200)...)
	}
	errs = append(errs, validateText("isbn", i.ISBN, false, 20)...)
	errs = append(errs, validateText("category", i.Category, false, 100)...)
	errs = append(errs, validateText("description", i.Description, false, 2000)...)
	if i.PublishedYear != nil && (*i.PublishedYear < 0 || *i.PublishedYear > 9999) {
		errs = append(errs, domain.FieldError{Field: "published_year", Message: "must be between 0 and 9999"})
	}

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// ListItemsInput holds filter and pagination parameters.
type ListItemsInput struct {
	Search   *string
	Category *string
	Limit    int
	Offset   int
}

// Validate checks all fields and collects all errors.
func (i ListItemsInput) Validate() error {
	var errs []domain.FieldError
	if i.Limit < 0 || i.Limit > MaxListLimit {
		errs = append(errs, domain.FieldError{Field: "limit", Message: "must be between 0 and 200"})
	}
	if i.Offset < 0 {
		errs = append(errs, domain.FieldError{Field: "offset", Message: "must not be negative"})
	}
	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

func validateText(field string, v *string, required bool, maxLen int) []domain.FieldError {
	if v == nil {
		if required {
			return []domain.FieldError{{Field: field, Message: "required"}}
		}
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if required && trimmed == "" {
		return []domain.FieldError{{Field: field, Message: "required"}}
	}
	if len(trimmed) > maxLen {
		return []domain.FieldError{{Field: field, Message: "too long"}}
	}
	return nil
}
