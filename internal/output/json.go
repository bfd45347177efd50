package output

import (
	"encoding/json"
	"fmt"

	"github.com/jbweber/winvm/internal/vm"
)

// JSONFormatter formats entries as JSON.
type JSONFormatter struct{}

// FormatEntry formats a single entry as a JSON object.
func (f *JSONFormatter) FormatEntry(e vm.Entry) (string, error) {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal VM to JSON: %w", err)
	}

	return string(data) + "\n", nil
}

// FormatEntryList formats entries as a JSON array.
func (f *JSONFormatter) FormatEntryList(entries []vm.Entry) (string, error) {
	if len(entries) == 0 {
		return "[]\n", nil
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal VMs to JSON: %w", err)
	}

	return string(data) + "\n", nil
}
