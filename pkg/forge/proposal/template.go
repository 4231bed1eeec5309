package proposal

import (
	"fmt"
	"os"
	"strings"
)

// Section markers expected in the prompt template file.
const (
	systemMarker = "## System Instruction"
	userMarker   = "## User Template"
)

// Template is a prompt file split into its system instruction and user
// message template. The user part carries {placeholder} slots filled per
// scenario.
type Template struct {
	System string
	User   string
}

// LoadTemplate reads and splits a prompt template file. Both section
// markers must be present, system before user.
func LoadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prompt template: %w", err)
	}
	return ParseTemplate(string(data))
}

// ParseTemplate splits raw template text into its two sections.
func ParseTemplate(text string) (*Template, error) {
	_, rest, found := strings.Cut(text, systemMarker)
	if !found {
		return nil, fmt.Errorf("prompt template missing %q section", systemMarker)
	}
	system, user, found := strings.Cut(rest, userMarker)
	if !found {
		return nil, fmt.Errorf("prompt template missing %q section", userMarker)
	}
	return &Template{
		System: strings.TrimSpace(system),
		User:   strings.TrimSpace(user),
	}, nil
}
