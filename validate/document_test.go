package validate

import (
	"strings"
	"testing"

	"github.com/yairfalse/tagvet/faults"
)

func TestDocumentAllowsPolicyMetacharacters(t *testing.T) {
	doc := `
version: "1"
required_tags:
  - name: Owner
    validation_regex: '[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$'
  - name: Environment
    allowed_values: [production, staging, development]
`
	if _, err := Document("policy", doc); err != nil {
		t.Errorf("policy document rejected: %v", err)
	}
}

func TestDocumentRejectsNullBytes(t *testing.T) {
	_, err := Document("policy", "version: \"1\"\x00")
	if err == nil {
		t.Fatal("expected rejection")
	}
	if faults.CategoryOf(err) != "null_byte" {
		t.Errorf("category = %s", faults.CategoryOf(err))
	}
}

func TestDocumentRejectsOversize(t *testing.T) {
	_, err := Document("policy", strings.Repeat("a", MaxDocumentLength+1))
	if err == nil || faults.KindOf(err) != faults.KindInvalidInput {
		t.Errorf("oversize document = %v", err)
	}
}
