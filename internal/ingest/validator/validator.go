// Package validator provides input validation for ingestion requests. It
// enforces passage count and size bounds and returns per-field error details.
package validator

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/arvind-menon/passage-retrieval-platform/internal/ingest"
	"github.com/arvind-menon/passage-retrieval-platform/pkg/config"
)

const maxSourceIDLength = 255

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	var parts []string
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	return strings.Join(parts, "; ")
}

// ValidateReplaceSource checks a source upload request against the configured
// bounds and returns a ValidationError describing every violated field.
func ValidateReplaceSource(req *ingest.ReplaceSourceRequest, cfg config.IngestConfig) error {
	errs := make(map[string]string)

	sourceID := strings.TrimSpace(req.SourceID)
	if sourceID == "" {
		errs["source_id"] = "source_id is required"
	} else if len(sourceID) > maxSourceIDLength {
		errs["source_id"] = fmt.Sprintf("source_id must be at most %d characters", maxSourceIDLength)
	}

	if len(req.Passages) == 0 {
		errs["passages"] = "at least one passage is required"
	} else if len(req.Passages) > cfg.MaxPassagesPerSource {
		errs["passages"] = fmt.Sprintf("at most %d passages per source", cfg.MaxPassagesPerSource)
	}

	seen := make(map[string]struct{}, len(req.Passages))
	for i, p := range req.Passages {
		field := fmt.Sprintf("passages[%d]", i)
		if strings.TrimSpace(p.ID) == "" {
			errs[field+".id"] = "passage id is required"
		} else if _, dup := seen[p.ID]; dup {
			errs[field+".id"] = fmt.Sprintf("duplicate passage id %q", p.ID)
		} else {
			seen[p.ID] = struct{}{}
		}
		if strings.TrimSpace(p.Text) == "" {
			errs[field+".text"] = "passage text must not be empty"
		} else if len(p.Text) > cfg.MaxPassageBytes {
			errs[field+".text"] = fmt.Sprintf("passage text must be at most %d bytes", cfg.MaxPassageBytes)
		} else if !utf8.ValidString(p.Text) {
			errs[field+".text"] = "passage text must be valid UTF-8"
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
