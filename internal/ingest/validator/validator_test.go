package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/arvind-menon/passage-retrieval-platform/internal/ingest"
	"github.com/arvind-menon/passage-retrieval-platform/pkg/config"
)

func testCfg() config.IngestConfig {
	return config.IngestConfig{
		MaxPassagesPerSource: 3,
		MaxPassageBytes:      64,
	}
}

func validRequest() *ingest.ReplaceSourceRequest {
	return &ingest.ReplaceSourceRequest{
		SourceID: "guidelines-2024",
		Passages: []ingest.PassageInput{
			{ID: "p1", Text: "aspirin reduces polyp recurrence"},
			{ID: "p2", Text: "colonoscopy surveillance interval"},
		},
	}
}

func fieldError(t *testing.T, err error, field string) {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := verr.Fields[field]; !ok {
		t.Errorf("expected error on field %q, got %v", field, verr.Fields)
	}
}

func TestValidRequestPasses(t *testing.T) {
	if err := ValidateReplaceSource(validRequest(), testCfg()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMissingSourceID(t *testing.T) {
	req := validRequest()
	req.SourceID = "   "
	fieldError(t, ValidateReplaceSource(req, testCfg()), "source_id")
}

func TestNoPassages(t *testing.T) {
	req := validRequest()
	req.Passages = nil
	fieldError(t, ValidateReplaceSource(req, testCfg()), "passages")
}

func TestTooManyPassages(t *testing.T) {
	req := validRequest()
	req.Passages = []ingest.PassageInput{
		{ID: "p1", Text: "a"}, {ID: "p2", Text: "b"},
		{ID: "p3", Text: "c"}, {ID: "p4", Text: "d"},
	}
	fieldError(t, ValidateReplaceSource(req, testCfg()), "passages")
}

func TestDuplicatePassageID(t *testing.T) {
	req := validRequest()
	req.Passages[1].ID = "p1"
	fieldError(t, ValidateReplaceSource(req, testCfg()), "passages[1].id")
}

func TestEmptyPassageText(t *testing.T) {
	req := validRequest()
	req.Passages[0].Text = "\t "
	fieldError(t, ValidateReplaceSource(req, testCfg()), "passages[0].text")
}

func TestOversizedPassageText(t *testing.T) {
	req := validRequest()
	req.Passages[0].Text = strings.Repeat("x", 65)
	fieldError(t, ValidateReplaceSource(req, testCfg()), "passages[0].text")
}

func TestInvalidUTF8(t *testing.T) {
	req := validRequest()
	req.Passages[0].Text = string([]byte{0xff, 0xfe})
	fieldError(t, ValidateReplaceSource(req, testCfg()), "passages[0].text")
}
