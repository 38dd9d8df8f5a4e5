package connectors

import (
	"fmt"
	"strings"
)

// ParseTemplateVariables replaces every {name} placeholder in content for
// each expected variable. A missing binding is an error.
func ParseTemplateVariables(content string, expected []string, vars map[string]string) (string, error) {
	for _, name := range expected {
		value, ok := vars[name]
		if !ok {
			return "", fmt.Errorf("missing template variable {%s}", name)
		}
		content = strings.ReplaceAll(content, "{"+name+"}", value)
	}
	return content, nil
}
