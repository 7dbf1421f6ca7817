package policy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yairfalse/tagvet/types"
)

// keywordTables maps tag name -> keyword -> suggested value. Keywords
// are matched against the resource name, role, and identifier.
var keywordTables = map[string]map[string]string{
	"Environment": {
		"prod":    "production",
		"prd":     "production",
		"stag":    "staging",
		"stg":     "staging",
		"dev":     "development",
		"test":    "development",
		"sandbox": "development",
	},
	"Team": {
		"payment":  "payments",
		"billing":  "payments",
		"frontend": "web",
		"web":      "web",
		"data":     "data-platform",
		"etl":      "data-platform",
		"ml":       "data-platform",
		"infra":    "platform",
		"platform": "platform",
	},
}

// environment suffix tokens stripped when deriving an application name.
var envSuffixes = []string{
	"-prod", "-production", "-prd",
	"-staging", "-stage", "-stg",
	"-dev", "-development", "-test", "-sandbox",
}

const (
	keywordConfidence = 0.7
	// peer votes need at least this many tagged peers to say anything.
	minPeerSample = 2
)

// Suggest runs three independent strategies and merges their output.
// Strategies never block each other; a strategy with nothing to say
// simply contributes nothing.
func (e *Engine) Suggest(r *types.Resource, peers []types.Resource, p *TagPolicy) []types.Suggestion {
	var out []types.Suggestion
	out = append(out, suggestFromKeywords(r)...)
	out = append(out, suggestFromPeers(r, peers, p)...)
	out = append(out, suggestFromContext(r)...)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TagName != out[j].TagName {
			return out[i].TagName < out[j].TagName
		}
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// suggestFromKeywords matches fixed keyword tables against the
// resource's name and identifier.
func suggestFromKeywords(r *types.Resource) []types.Suggestion {
	haystack := strings.ToLower(r.Name + " " + r.ID)
	var out []types.Suggestion

	for _, tagName := range sortedKeys(keywordTables) {
		if _, tagged := r.Tag(tagName, false); tagged {
			continue
		}
		table := keywordTables[tagName]
		for _, keyword := range sortedKeys(table) {
			if strings.Contains(haystack, keyword) {
				out = append(out, types.Suggestion{
					TagName:    tagName,
					Value:      table[keyword],
					Confidence: keywordConfidence,
					Strategy:   "keyword",
					Rationale:  fmt.Sprintf("resource name contains %q", keyword),
				})
				break
			}
		}
	}
	return out
}

// suggestFromPeers majority-votes over tagged peers. Confidence scales
// with both the winner's share of the vote and the sample size.
func suggestFromPeers(r *types.Resource, peers []types.Resource, p *TagPolicy) []types.Suggestion {
	var out []types.Suggestion
	for i := range p.RequiredTags {
		rule := &p.RequiredTags[i]
		if _, tagged := r.Tag(rule.Name, p.Naming.CaseSensitiveKeys); tagged {
			continue
		}

		votes := map[string]int{}
		total := 0
		for j := range peers {
			peer := &peers[j]
			if peer.ID == r.ID {
				continue
			}
			if v, ok := peer.Tag(rule.Name, p.Naming.CaseSensitiveKeys); ok && v != "" {
				votes[v]++
				total++
			}
		}
		if total < minPeerSample {
			continue
		}

		winner, count := majority(votes)
		share := float64(count) / float64(total)
		confidence := share * sampleWeight(total)
		out = append(out, types.Suggestion{
			TagName:    rule.Name,
			Value:      winner,
			Confidence: confidence,
			Strategy:   "peer_majority",
			Rationale:  fmt.Sprintf("%d of %d peers carry %q", count, total, winner),
		})
	}
	return out
}

// suggestFromContext derives Application from the name minus its
// environment suffix, and Owner from a role-name convention
// (role/<team>-<service>-role).
func suggestFromContext(r *types.Resource) []types.Suggestion {
	var out []types.Suggestion

	if _, tagged := r.Tag("Application", false); !tagged && r.Name != "" {
		name := strings.ToLower(r.Name)
		for _, suffix := range envSuffixes {
			if strings.HasSuffix(name, suffix) {
				app := strings.TrimSuffix(name, suffix)
				if app != "" {
					out = append(out, types.Suggestion{
						TagName:    "Application",
						Value:      app,
						Confidence: 0.6,
						Strategy:   "context",
						Rationale:  fmt.Sprintf("name %q minus environment suffix %q", r.Name, suffix),
					})
				}
				break
			}
		}
	}

	if _, tagged := r.Tag("Owner", false); !tagged {
		if owner := ownerFromRole(r.ID); owner != "" {
			out = append(out, types.Suggestion{
				TagName:    "Owner",
				Value:      owner,
				Confidence: 0.5,
				Strategy:   "context",
				Rationale:  "derived from IAM role naming convention",
			})
		}
	}
	return out
}

// ownerFromRole extracts the team segment from role/<team>-...-role.
func ownerFromRole(arn string) string {
	idx := strings.Index(arn, ":role/")
	if idx < 0 {
		return ""
	}
	role := arn[idx+len(":role/"):]
	role = strings.TrimSuffix(role, "-role")
	parts := strings.SplitN(role, "-", 2)
	if len(parts) == 0 || parts[0] == "" {
		return ""
	}
	return parts[0]
}

func majority(votes map[string]int) (string, int) {
	var winner string
	var count int
	for _, v := range sortedKeys(votes) {
		if votes[v] > count {
			winner, count = v, votes[v]
		}
	}
	return winner, count
}

// sampleWeight dampens confidence for small peer samples and
// approaches 1 as the sample grows.
func sampleWeight(n int) float64 {
	if n >= 10 {
		return 1.0
	}
	return float64(n) / 10.0
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
