package intake

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"expatdesk/internal/review/models"
)

// LoadAnswersFile reads a YAML document mapping question keys to answers:
//
//	client_type: b2c_eu
//	cae_codes: ["62010", "70220"]
//	accuracy_confirmation: true
func LoadAnswersFile(path string) (models.Answers, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read answers file: %w", err)
	}
	return ParseAnswers(raw)
}

// ParseAnswers decodes a YAML answer document.
func ParseAnswers(raw []byte) (models.Answers, error) {
	values := map[string]any{}
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("failed to parse answers: %w", err)
	}
	return models.AnswersFromValues(values)
}
