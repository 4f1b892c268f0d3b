package usecase

import (
	"context"
	"sort"
	"strings"

	"github.com/m-mizutani/ctxlog"
)

const (
	maxLabelLength = 50
	maxTotalLabels = 25
)

// MergeLabels unions user-supplied labels with platform-reported topics,
// normalizes, deduplicates, and bounds the result. extraTags is the
// deprecated spelling of labels: it substitutes for an empty labels slice
// and is otherwise ignored with a warning. The returned slice is sorted so
// identical inputs always produce identical output.
func MergeLabels(ctx context.Context, labels, extraTags, topics []string) []string {
	logger := ctxlog.From(ctx)

	if len(extraTags) > 0 {
		if len(labels) == 0 {
			logger.Warn("--extra-tags is deprecated, use --extra-labels instead")
			labels = extraTags
		} else {
			logger.Warn("ignoring deprecated --extra-tags since --extra-labels was also provided")
		}
	}

	merged := make(map[string]struct{}, len(labels)+len(topics))
	for _, l := range labels {
		merged[l] = struct{}{}
	}
	for _, t := range topics {
		merged[t] = struct{}{}
	}

	out := make([]string, 0, len(merged))
	for l := range merged {
		out = append(out, l)
	}
	// Sort before truncating so the bound is deterministic.
	sort.Strings(out)
	if len(out) > maxTotalLabels {
		out = out[:maxTotalLabels]
	}

	// Distinct inputs may collapse to the same label once trimmed and
	// lowercased, so dedupe again after normalizing.
	seen := make(map[string]struct{}, len(out))
	normalized := out[:0]
	for _, l := range out {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" || len(l) > maxLabelLength || !isValidLabel(l) {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		normalized = append(normalized, l)
	}

	sort.Strings(normalized)
	return normalized
}

func isValidLabel(label string) bool {
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-':
		default:
			return false
		}
	}
	return true
}
