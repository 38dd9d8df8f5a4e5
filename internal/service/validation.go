package service

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ValidateExpectedVariables returns an InvalidArgument status naming every
// expected variable missing from templateVariables, in expected order.
// A nil map is missing all of them.
func ValidateExpectedVariables(templateVariables map[string]string, expectedVariables []string) error {
	var missing []string
	for _, name := range expectedVariables {
		if _, ok := templateVariables[name]; !ok {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return status.Errorf(codes.InvalidArgument, "missing template variables: %v", missing)
	}
	return nil
}
