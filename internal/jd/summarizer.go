// Package jd turns raw job-description text into a requirement summary.
// The AI provider does the heavy lifting; a malformed response gets one
// strict repair retry, and if the provider is unusable a keyword
// heuristic produces a degraded summary instead of failing the
// workflow. Only empty input is unrecoverable.
package jd

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"resumeforge/internal/ai"
	"resumeforge/internal/errors"
	"resumeforge/internal/gap"
	"resumeforge/internal/types"
)

// Summarizer produces requirement summaries from job descriptions.
type Summarizer struct {
	provider ai.Provider
	logger   *errors.Logger
}

// New creates a Summarizer. A nil provider is allowed and routes every
// call through the heuristic.
func New(provider ai.Provider, logger *errors.Logger) *Summarizer {
	return &Summarizer{provider: provider, logger: logger}
}

// Summarize extracts the requirement summary for the given text.
func (s *Summarizer) Summarize(ctx context.Context, jobText string) (types.RequirementSummary, error) {
	if strings.TrimSpace(jobText) == "" {
		return types.RequirementSummary{}, errors.NewPipelineError(errors.ErrCodeSummarizationFailed,
			"job description is empty", nil)
	}

	if s.provider == nil {
		return s.heuristic(jobText), nil
	}

	summary, _, err := s.provider.SummarizeJob(ctx, jobText, false)
	if err != nil && errors.IsCode(err, ai.ErrCodeResponseInvalid) {
		// One strict repair retry before giving up on the model.
		s.logger.Warn("summary response malformed, retrying strict")
		summary, _, err = s.provider.SummarizeJob(ctx, jobText, true)
	}
	if err != nil {
		if ctx.Err() != nil {
			return types.RequirementSummary{}, errors.NewPipelineError(errors.ErrCodeWorkflowCancelled,
				"summarization cancelled", ctx.Err())
		}
		s.logger.Warn("AI summarization unavailable, using heuristic", "error", err)
		return s.heuristic(jobText), nil
	}

	return normalize(summary), nil
}

// normalize dedupes skills, clamps weights, and defaults missing
// seniority so downstream stages never see an inconsistent summary.
func normalize(summary types.RequirementSummary) types.RequirementSummary {
	summary.MustHaveSkills = dedupe(summary.MustHaveSkills)
	summary.NiceToHaveSkills = dedupe(summary.NiceToHaveSkills)

	// A skill cannot be both; must-have wins.
	must := make(map[string]bool, len(summary.MustHaveSkills))
	for _, skill := range summary.MustHaveSkills {
		must[strings.ToLower(skill)] = true
	}
	var nice []string
	for _, skill := range summary.NiceToHaveSkills {
		if !must[strings.ToLower(skill)] {
			nice = append(nice, skill)
		}
	}
	summary.NiceToHaveSkills = nice

	for k, w := range summary.KeywordWeights {
		if w < 0 {
			summary.KeywordWeights[k] = 0
		}
		if w > 1 {
			summary.KeywordWeights[k] = 1
		}
	}

	switch summary.SeniorityLevel {
	case types.SeniorityJunior, types.SeniorityMid, types.SenioritySenior, types.SeniorityStaffPlus:
	default:
		summary.SeniorityLevel = types.SeniorityMid
	}

	return summary
}

func dedupe(skills []string) []string {
	seen := make(map[string]bool, len(skills))
	var out []string
	for _, skill := range skills {
		skill = types.NormalizeText(skill)
		key := strings.ToLower(skill)
		if skill == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, skill)
	}
	return out
}

// skillVocabulary is the controlled list the heuristic scans for. It is
// deliberately small; the heuristic is a degraded mode, not a parser.
var skillVocabulary = []string{
	"Go", "Python", "Java", "JavaScript", "TypeScript", "Rust", "C++",
	"SQL", "PostgreSQL", "MySQL", "Redis", "Kafka", "Kubernetes",
	"Docker", "Terraform", "AWS", "GCP", "Azure", "Linux", "gRPC",
	"REST", "GraphQL", "React", "CI/CD", "Git", "Spark",
	"Machine Learning",
}

var nicenessMarkers = []string{
	"nice to have", "nice-to-have", "preferred", "a plus", "bonus",
	"desirable", "ideally",
}

var yearsPattern = regexp.MustCompile(`(\d+)\s*\+?\s*years?`)

// heuristic builds a degraded summary from keyword matches alone.
func (s *Summarizer) heuristic(jobText string) types.RequirementSummary {
	summary := types.RequirementSummary{
		KeywordWeights: make(map[string]float64),
		SeniorityLevel: inferSeniority(jobText),
		Degraded:       true,
	}

	counts := make(map[string]int)
	niceSet := make(map[string]bool)

	for _, line := range strings.Split(jobText, "\n") {
		lineLower := strings.ToLower(line)
		nice := false
		for _, marker := range nicenessMarkers {
			if strings.Contains(lineLower, marker) {
				nice = true
				break
			}
		}
		for _, skill := range skillVocabulary {
			if gap.ContainsTerm(lineLower, skill) {
				counts[skill]++
				if nice {
					niceSet[skill] = true
				}
			}
		}
	}

	maxCount := 0
	for _, n := range counts {
		if n > maxCount {
			maxCount = n
		}
	}
	for skill, n := range counts {
		summary.KeywordWeights[skill] = float64(n) / float64(maxCount)
		if niceSet[skill] {
			summary.NiceToHaveSkills = append(summary.NiceToHaveSkills, skill)
		} else {
			summary.MustHaveSkills = append(summary.MustHaveSkills, skill)
		}
	}
	sort.Strings(summary.MustHaveSkills)
	sort.Strings(summary.NiceToHaveSkills)

	s.logger.Info("produced heuristic requirement summary",
		"must_have", len(summary.MustHaveSkills),
		"nice_to_have", len(summary.NiceToHaveSkills),
		"seniority", string(summary.SeniorityLevel))

	return summary
}

// inferSeniority reads explicit level words first, then years of
// experience.
func inferSeniority(jobText string) types.SeniorityLevel {
	lower := strings.ToLower(jobText)
	switch {
	case strings.Contains(lower, "staff engineer"),
		strings.Contains(lower, "principal"),
		strings.Contains(lower, "distinguished"):
		return types.SeniorityStaffPlus
	case strings.Contains(lower, "senior"), strings.Contains(lower, "sr."):
		return types.SenioritySenior
	case strings.Contains(lower, "junior"),
		strings.Contains(lower, "entry level"),
		strings.Contains(lower, "entry-level"),
		strings.Contains(lower, "graduate"):
		return types.SeniorityJunior
	}

	if m := yearsPattern.FindStringSubmatch(lower); m != nil {
		years, _ := strconv.Atoi(m[1])
		switch {
		case years >= 8:
			return types.SeniorityStaffPlus
		case years >= 5:
			return types.SenioritySenior
		case years <= 2:
			return types.SeniorityJunior
		}
	}
	return types.SeniorityMid
}
