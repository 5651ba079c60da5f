// Package imports implements the image-import pipeline: filename
// parsing, catalog fan-out updates and run orchestration.
package imports

import (
	"strings"

	"drive_import_server/core/domain"
	"drive_import_server/pkg/apperr"
)

// ParseFilename parses the upload naming convention:
//
//	identifierType,id,imageName,imageLabel[,Main].ext
//
// Exactly one dot separates name and extension; the name carries 4 or 5
// comma-delimited fields. The fifth field marks the main image when it
// equals "Main" case-insensitively. Anything else is malformed and the
// file goes to the Error folder.
func ParseFilename(filename string) (*domain.ParsedFilename, error) {
	dotParts := strings.Split(filename, ".")
	if len(dotParts) != 2 {
		return nil, apperr.MalformedFilename(filename, "expected a single extension separator")
	}

	fields := strings.Split(dotParts[0], ",")
	if len(fields) != 4 && len(fields) != 5 {
		return nil, apperr.MalformedFilename(filename, "expected 4 or 5 comma-delimited fields")
	}

	idType := domain.IdentifierType(fields[0])
	if !idType.Known() {
		return nil, apperr.MalformedFilename(filename, "unknown identifier type "+fields[0])
	}

	parsed := &domain.ParsedFilename{
		IdentifierType:  idType,
		IdentifierValue: fields[1],
		ImageName:       fields[2],
		ImageLabel:      fields[3],
	}
	if len(fields) == 5 {
		parsed.IsMain = strings.EqualFold(fields[4], "Main")
	}
	return parsed, nil
}
