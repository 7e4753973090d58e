package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/tutorgrid/memory-api/internal/models"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Register custom validators for enums
	// These should never fail in normal operation, but log if they do
	if err := Validate.RegisterValidation("learning_style", validateLearningStyle); err != nil {
		panic(fmt.Sprintf("failed to register learning_style validator: %v", err))
	}
	if err := Validate.RegisterValidation("difficulty", validateDifficulty); err != nil {
		panic(fmt.Sprintf("failed to register difficulty validator: %v", err))
	}
	if err := Validate.RegisterValidation("response_format", validateResponseFormat); err != nil {
		panic(fmt.Sprintf("failed to register response_format validator: %v", err))
	}
	if err := Validate.RegisterValidation("message_role", validateMessageRole); err != nil {
		panic(fmt.Sprintf("failed to register message_role validator: %v", err))
	}
}

// validateLearningStyle validates that a string is a valid LearningStyle enum value
func validateLearningStyle(fl validator.FieldLevel) bool {
	return ValidateLearningStyle(fl.Field().String()) == nil
}

// validateDifficulty validates that a string is a valid Difficulty enum value
func validateDifficulty(fl validator.FieldLevel) bool {
	return ValidateDifficulty(fl.Field().String()) == nil
}

// validateResponseFormat validates that a string is a valid ResponseFormat enum value
func validateResponseFormat(fl validator.FieldLevel) bool {
	return ValidateResponseFormat(fl.Field().String()) == nil
}

// validateMessageRole validates a conversation role
func validateMessageRole(fl validator.FieldLevel) bool {
	return ValidateMessageRole(fl.Field().String()) == nil
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

// ValidateLearningStyle validates a LearningStyle string value
func ValidateLearningStyle(value string) error {
	switch models.LearningStyle(value) {
	case models.LearningStyleVisual, models.LearningStyleTextual, models.LearningStyleHandsOn, models.LearningStyleCodeFirst:
		return nil
	default:
		return fmt.Errorf("invalid learning_style: %s (must be 'visual', 'textual', 'hands_on', or 'code_first')", value)
	}
}

// ValidateDifficulty validates a Difficulty string value
func ValidateDifficulty(value string) error {
	switch models.Difficulty(value) {
	case models.DifficultyBeginner, models.DifficultyIntermediate, models.DifficultyAdvanced:
		return nil
	default:
		return fmt.Errorf("invalid difficulty: %s (must be 'beginner', 'intermediate', or 'advanced')", value)
	}
}

// ValidateResponseFormat validates a ResponseFormat string value
func ValidateResponseFormat(value string) error {
	switch models.ResponseFormat(value) {
	case models.ResponseFormatText, models.ResponseFormatHTML, models.ResponseFormatMarkdown:
		return nil
	default:
		return fmt.Errorf("invalid response_format: %s (must be 'text', 'html', or 'markdown')", value)
	}
}

// ValidateMessageRole validates a conversation message role
func ValidateMessageRole(value string) error {
	switch value {
	case "user", "assistant", "system":
		return nil
	default:
		return fmt.Errorf("invalid role: %s (must be 'user', 'assistant', or 'system')", value)
	}
}

// ValidateUserID checks the user identifier shape: non-empty, bounded, no
// whitespace or control characters.
func ValidateUserID(value string) error {
	if value == "" {
		return fmt.Errorf("user_id is required")
	}
	if len(value) > 64 {
		return fmt.Errorf("user_id exceeds maximum length of 64 characters")
	}
	for _, r := range value {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("user_id must not contain whitespace or control characters")
		}
	}
	return nil
}

// ValidateSessionID checks the session identifier shape, same rules as user_id
func ValidateSessionID(value string) error {
	if value == "" {
		return fmt.Errorf("session_id is required")
	}
	if len(value) > 128 {
		return fmt.Errorf("session_id exceeds maximum length of 128 characters")
	}
	for _, r := range value {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("session_id must not contain whitespace or control characters")
		}
	}
	return nil
}
