package registry

import (
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// IDLength is the number of hex characters in every registry identifier.
const IDLength = 24

var idPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// NormalizeID checks the identifier format and lowercases it. field names the
// offending input in the error message.
func NormalizeID(field, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", Errorf(CodeMissingField, "%s is required", field)
	}
	if !ValidID(id) {
		return "", Errorf(CodeInvalidIDFormat, "%s<%s> must be %d hex characters", field, id, IDLength)
	}
	return strings.ToLower(id), nil
}

// NewID returns a fresh identifier in the registry format.
func NewID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:IDLength/2])
}
