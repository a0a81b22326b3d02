package models

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/desertthunder/amply/internal/shared"
)

// Model defines the base interface for all persistent models.
type Model interface {
	Key() string     // Key returns the unique identifier for this model
	Validate() error // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(ctx context.Context, model T) error                      // Create inserts a new model into the database
	Get(ctx context.Context, id string) (T, error)                  // Get retrieves a model by its ID
	Update(ctx context.Context, model T) error                      // Update modifies an existing model in the database
	Delete(ctx context.Context, id string) error                    // Delete removes a model from the database by its ID
	List(ctx context.Context, criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", shared.ErrInvalidInput, fmt.Sprintf(format, args...))
}

// checkLength validates the trimmed rune length of a required text field.
func checkLength(field, value string, minLen, maxLen int) error {
	n := utf8.RuneCountInString(strings.TrimSpace(value))
	if n < minLen {
		if minLen == 1 {
			return invalid("%s is required", field)
		}
		return invalid("%s must be at least %d characters", field, minLen)
	}
	if maxLen > 0 && n > maxLen {
		return invalid("%s must be at most %d characters", field, maxLen)
	}
	return nil
}
