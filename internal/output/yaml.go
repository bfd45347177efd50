package output

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/winvm/internal/vm"
)

// YAMLFormatter formats entries as YAML.
type YAMLFormatter struct{}

// FormatEntry formats a single entry as YAML.
func (f *YAMLFormatter) FormatEntry(e vm.Entry) (string, error) {
	data, err := yaml.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("failed to marshal VM to YAML: %w", err)
	}

	return string(data), nil
}

// FormatEntryList formats entries as a YAML stream (multiple documents
// separated by ---).
func (f *YAMLFormatter) FormatEntryList(entries []vm.Entry) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	for i, e := range entries {
		data, err := yaml.Marshal(e)
		if err != nil {
			return "", fmt.Errorf("failed to marshal VM %s to YAML: %w", e.Name, err)
		}

		// Add document separator between VMs (but not before the first one)
		if i > 0 {
			buf.WriteString("---\n")
		}
		buf.Write(data)
	}

	return buf.String(), nil
}
