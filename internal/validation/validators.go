package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/benvon/taskboard/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate

	hexColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

func init() {
	Validate = validator.New()

	// Register custom validators for enums
	custom := map[string]validator.Func{
		"task_status":     validateTaskStatus,
		"priority":        validatePriority,
		"theme":           validateTheme,
		"view_mode":       validateViewMode,
		"hex_color":       validateHexColor,
		"recurrence_type": validateRecurrenceType,
	}
	for tag, fn := range custom {
		if err := Validate.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("failed to register %s validator: %v", tag, err))
		}
	}
}

func validateTaskStatus(fl validator.FieldLevel) bool {
	return models.TaskStatus(fl.Field().String()).Valid()
}

func validatePriority(fl validator.FieldLevel) bool {
	return ValidatePriority(fl.Field().String()) == nil
}

func validateTheme(fl validator.FieldLevel) bool {
	switch models.Theme(fl.Field().String()) {
	case models.ThemeLight, models.ThemeDark, models.ThemeSystem:
		return true
	default:
		return false
	}
}

func validateViewMode(fl validator.FieldLevel) bool {
	switch models.ViewMode(fl.Field().String()) {
	case models.ViewModeColumns, models.ViewModeCalendar:
		return true
	default:
		return false
	}
}

// validateHexColor accepts #rrggbb only; the shorthand form is rejected
func validateHexColor(fl validator.FieldLevel) bool {
	return hexColorPattern.MatchString(fl.Field().String())
}

func validateRecurrenceType(fl validator.FieldLevel) bool {
	switch models.RecurrenceType(fl.Field().String()) {
	case models.RecurrenceDaily, models.RecurrenceWeekdays, models.RecurrenceWeekly,
		models.RecurrenceMonthly, models.RecurrenceCustom:
		return true
	default:
		return false
	}
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	// Trim whitespace
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidatePriority validates a Priority string value
func ValidatePriority(value string) error {
	switch models.Priority(value) {
	case models.PriorityLow, models.PriorityMedium, models.PriorityHigh:
		return nil
	default:
		return fmt.Errorf("invalid priority: %s (must be 'low', 'medium', or 'high')", value)
	}
}

// ValidateTaskStatus validates a TaskStatus string value
func ValidateTaskStatus(value string) error {
	if !models.TaskStatus(value).Valid() {
		return fmt.Errorf("invalid status: %s", value)
	}
	return nil
}

// ValidateHexColor validates a #rrggbb color
func ValidateHexColor(value string) error {
	if !hexColorPattern.MatchString(value) {
		return fmt.Errorf("invalid color: %s (must be #rrggbb)", value)
	}
	return nil
}
