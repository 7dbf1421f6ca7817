package types

import "testing"

func TestBuildResourceMapKeysFullAndShortID(t *testing.T) {
	resources := []Resource{
		{ID: "arn:aws:ec2:us-east-1:123456789012:instance/i-0abc", Type: "ec2"},
		{ID: "arn:aws:sqs:us-east-1:123456789012:orders-dlq", Type: "sqs"},
		{ID: "i-plain", Type: "ec2"},
	}

	m := BuildResourceMap(resources)
	for _, key := range []string{
		"arn:aws:ec2:us-east-1:123456789012:instance/i-0abc",
		"i-0abc",
		"orders-dlq",
		"i-plain",
	} {
		if _, ok := m[key]; !ok {
			t.Errorf("no entry for %q", key)
		}
	}
	if m["i-0abc"].Type != "ec2" || m["orders-dlq"].Type != "sqs" {
		t.Error("short keys resolve to the wrong resources")
	}
	if _, ok := m["i-missing"]; ok {
		t.Error("unexpected entry for unknown ID")
	}
}

func TestTagCaseInsensitiveLookup(t *testing.T) {
	r := Resource{Tags: map[string]string{"Owner": "a@b.com"}}

	if v, ok := r.Tag("owner", false); !ok || v != "a@b.com" {
		t.Errorf("case-insensitive lookup = %q, %v", v, ok)
	}
	if _, ok := r.Tag("owner", true); ok {
		t.Error("case-sensitive lookup matched a differently cased key")
	}
}
