package discovery

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// GroupProfile is the static topical profile a candidate must match. Profiles
// are loaded at startup and never mutated by the pipeline.
type GroupProfile struct {
	Topic              string             `yaml:"topic"`
	CanonicalEntities  []string           `yaml:"canonical_entities"`
	Synonyms           []string           `yaml:"synonyms"`
	KeyPeople          []string           `yaml:"key_people"`
	AllowDomains       []string           `yaml:"allow_domains"`
	BlockDomains       []string           `yaml:"block_domains"`
	RelevanceThreshold float64            `yaml:"relevance_threshold"`
	EmbeddingThreshold float64            `yaml:"embedding_threshold"`
	ImportanceKeywords ImportanceKeywords `yaml:"importance_keywords"`
}

// ImportanceKeywords tune relevance scoring after the hard gate.
type ImportanceKeywords struct {
	High []string `yaml:"high"`
	Low  []string `yaml:"low"`
}

// DomainAllowed reports whether the profile permits the host. Block rules win
// over allow rules; an empty allow list permits every non-blocked host.
func (p GroupProfile) DomainAllowed(host string) bool {
	host = strings.ToLower(strings.TrimPrefix(host, "www."))
	for _, blocked := range p.BlockDomains {
		if hostMatches(host, blocked) {
			return false
		}
	}
	if len(p.AllowDomains) == 0 {
		return true
	}
	for _, allowed := range p.AllowDomains {
		if hostMatches(host, allowed) {
			return true
		}
	}
	return false
}

func hostMatches(host, pattern string) bool {
	pattern = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(pattern), "www."))
	if pattern == "" {
		return false
	}
	return host == pattern || strings.HasSuffix(host, "."+pattern)
}

// LoadProfiles reads group profiles from a YAML file keyed by topic.
func LoadProfiles(path string) (map[string]GroupProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles file: %w", err)
	}
	var raw struct {
		Profiles []GroupProfile `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal profiles: %w", err)
	}
	profiles := make(map[string]GroupProfile, len(raw.Profiles))
	for _, p := range raw.Profiles {
		if p.Topic == "" {
			return nil, fmt.Errorf("profile missing topic")
		}
		if len(p.CanonicalEntities) == 0 {
			return nil, fmt.Errorf("profile %q has no canonical entities", p.Topic)
		}
		if p.RelevanceThreshold <= 0 {
			p.RelevanceThreshold = 0.7
		}
		profiles[p.Topic] = p
	}
	return profiles, nil
}
