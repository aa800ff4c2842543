package domain

import (
	"strings"

	"github.com/devflow/devflow/internal/platform/errors"
)

// DefaultSystemText constrains every reply to a clear, structured, well-formatted style.
const DefaultSystemText = "You are DevFlow, a professional AI coding assistant. " +
	"Provide clear, concise, structured answers with proper formatting."

// ValidatePrompt rejects prompts that are empty or whitespace-only.
func ValidatePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return errors.NewValidation("Prompt is required")
	}
	return nil
}

// SystemTextOrDefault returns s, or DefaultSystemText when s is blank.
func SystemTextOrDefault(s string) string {
	if strings.TrimSpace(s) == "" {
		return DefaultSystemText
	}
	return s
}
