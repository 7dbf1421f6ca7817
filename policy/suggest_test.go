package policy

import (
	"testing"

	"github.com/yairfalse/tagvet/types"
)

func findSuggestion(s []types.Suggestion, tag, strategy string) *types.Suggestion {
	for i := range s {
		if s[i].TagName == tag && s[i].Strategy == strategy {
			return &s[i]
		}
	}
	return nil
}

func TestSuggestFromKeywords(t *testing.T) {
	e, p := referenceEngine(t)
	r := types.Resource{ID: "i-1", Type: "ec2", Name: "payments-api-prod"}

	got := e.Suggest(&r, nil, p)

	env := findSuggestion(got, "Environment", "keyword")
	if env == nil || env.Value != "production" {
		t.Fatalf("Environment keyword suggestion = %+v", env)
	}
	if env.Confidence <= 0 || env.Confidence > 1 {
		t.Errorf("confidence = %v out of (0,1]", env.Confidence)
	}
	team := findSuggestion(got, "Team", "keyword")
	if team == nil || team.Value != "payments" {
		t.Errorf("Team keyword suggestion = %+v", team)
	}
}

func TestSuggestFromPeersMajority(t *testing.T) {
	e, p := referenceEngine(t)
	r := types.Resource{ID: "i-0", Type: "ec2"}

	peers := []types.Resource{
		{ID: "i-1", Tags: map[string]string{"Environment": "staging"}},
		{ID: "i-2", Tags: map[string]string{"Environment": "staging"}},
		{ID: "i-3", Tags: map[string]string{"Environment": "production"}},
		{ID: "i-4", Tags: map[string]string{"Environment": "staging"}},
	}

	got := e.Suggest(&r, peers, p)
	s := findSuggestion(got, "Environment", "peer_majority")
	if s == nil || s.Value != "staging" {
		t.Fatalf("peer suggestion = %+v", s)
	}
	// 3/4 share, sample weight 4/10.
	want := 0.75 * 0.4
	if diff := s.Confidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("confidence = %v, want %v", s.Confidence, want)
	}
}

func TestSuggestNoPeersYieldsNothingFromThatStrategy(t *testing.T) {
	e, p := referenceEngine(t)
	r := types.Resource{ID: "i-0", Type: "ec2"}

	got := e.Suggest(&r, nil, p)
	if s := findSuggestion(got, "Environment", "peer_majority"); s != nil {
		t.Errorf("no peers should mean no peer suggestion, got %+v", s)
	}
}

func TestSuggestContextApplicationAndOwner(t *testing.T) {
	e, p := referenceEngine(t)
	r := types.Resource{
		ID:   "arn:aws:iam::123456789012:role/payments-checkout-role",
		Type: "iam_role",
		Name: "checkout-service-staging",
	}

	got := e.Suggest(&r, nil, p)

	app := findSuggestion(got, "Application", "context")
	if app == nil || app.Value != "checkout-service" {
		t.Errorf("Application suggestion = %+v", app)
	}
	owner := findSuggestion(got, "Owner", "context")
	if owner == nil || owner.Value != "payments" {
		t.Errorf("Owner suggestion = %+v", owner)
	}
}

func TestSuggestSkipsAlreadyTagged(t *testing.T) {
	e, p := referenceEngine(t)
	r := types.Resource{ID: "i-1", Type: "ec2", Name: "web-prod",
		Tags: map[string]string{"Environment": "production", "Team": "web"}}

	got := e.Suggest(&r, nil, p)
	if s := findSuggestion(got, "Environment", "keyword"); s != nil {
		t.Errorf("tagged resource got Environment suggestion: %+v", s)
	}
}

func TestSuggestDeterministicOrder(t *testing.T) {
	e, p := referenceEngine(t)
	r := types.Resource{ID: "i-1", Type: "ec2", Name: "etl-worker-dev"}

	first := e.Suggest(&r, nil, p)
	second := e.Suggest(&r, nil, p)
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("order unstable at %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}
