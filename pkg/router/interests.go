package router

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/entrhq/soulcore/pkg/events"
	"github.com/entrhq/soulcore/pkg/lang"
	"github.com/entrhq/soulcore/pkg/markdown"
	"github.com/entrhq/soulcore/pkg/throttle"
)

// suggestionRe matches a suggestion bullet such as
// "- **Music**: synthwave, jazz (suggested 2024-05-01)".
var suggestionRe = regexp.MustCompile(`^[-*]\s+\*\*(.+?)\*\*:\s*(.*?)\s*\(([^()]*?)\s*(\d{4}-\d{2}-\d{2})\)\s*$`)

// RouteInterests files keyword hits into the interests document. A cluster
// that already has a section gets its last-checked date refreshed; any other
// cluster is suggested under the suggested-interests heading. Clusters edited
// within the interest throttle window are skipped.
func (r *Router) RouteInterests(ctx context.Context, keywords []string) ([]RouteLogEntry, error) {
	hits := r.clusters.Group(keywords)
	if len(hits) == 0 {
		return nil, nil
	}

	target, tbl, ok := r.findInterestsFile(ctx)
	if !ok {
		entries := make([]RouteLogEntry, 0, len(hits))
		for _, h := range hits {
			entries = append(entries, r.entry(RouteInterests, trigger(h), r.language.Table().InterestsFile, ActionFileNotFound))
		}
		r.logger.Infof("interests file not found, skipping %d clusters", len(hits))
		r.record(ctx, entries)
		return entries, nil
	}

	content, err := r.files.Read(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", target, err)
	}
	doc := markdown.Parse(content)
	today := r.gate.Today()

	var (
		entries []RouteLogEntry
		changed []ClusterHit
		actions []Action
	)
	for _, h := range hits {
		throttled, err := r.gate.Throttled(ctx, throttle.InterestKey(h.Cluster), r.interestThrottle)
		if err != nil {
			return nil, err
		}
		if throttled {
			r.logger.Infof("cluster %s routed less than %s ago, skipping", h.Cluster, r.interestThrottle)
			entries = append(entries, r.entry(RouteInterests, trigger(h), target, ActionThrottled))
			continue
		}

		action := applyInterest(doc, tbl, h, today)
		changed = append(changed, h)
		actions = append(actions, action)
		entries = append(entries, r.entry(RouteInterests, trigger(h), target, action))
	}

	if len(changed) > 0 {
		if err := r.files.Write(ctx, target, doc.String()); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", target, err)
		}
		for i, h := range changed {
			if err := r.gate.Mark(ctx, throttle.InterestKey(h.Cluster)); err != nil {
				r.logger.Warnf("%v", err)
			}
			r.logger.Infof("cluster %s %s in %s", h.Cluster, actions[i], target)
			r.bus.Emit(ctx, events.NewInterestRoutedEvent(h.Cluster, string(actions[i]), target, h.Keywords))
		}
	}

	r.record(ctx, entries)
	return entries, nil
}

// findInterestsFile returns the interests document, trying the configured
// language first.
func (r *Router) findInterestsFile(ctx context.Context) (string, lang.Table, bool) {
	for _, l := range r.languages() {
		tbl := l.Table()
		if r.files.Exists(ctx, tbl.InterestsFile) {
			return tbl.InterestsFile, tbl, true
		}
	}
	return "", lang.Table{}, false
}

// applyInterest edits doc for one cluster hit and reports what it did.
func applyInterest(doc *markdown.Document, tbl lang.Table, h ClusterHit, today string) Action {
	if s, ok := doc.FindSectionLevel(h.Cluster, 2, 4); ok {
		if !doc.UpdateField(s, tbl.LastChecked, today) {
			doc.InsertField(s, tbl.LastChecked, today)
		}
		return ActionUpdated
	}

	s := doc.EnsureSection(tbl.SuggestedInterests, tbl.DormantInterests)
	for _, i := range doc.Bullets(s) {
		m := suggestionRe.FindStringSubmatch(doc.Lines()[i])
		if m == nil || !strings.EqualFold(strings.TrimSpace(m[1]), h.Cluster) {
			continue
		}
		merged := mergeKeywords(splitKeywords(m[2]), h.Keywords)
		doc.Replace(i, suggestionLine(h.Cluster, merged, tbl.Suggested, today))
		return ActionUpdated
	}

	doc.InsertAfterPreamble(s, suggestionLine(h.Cluster, h.Keywords, tbl.Suggested, today))
	return ActionSuggested
}

func suggestionLine(cluster string, keywords []string, label, day string) string {
	return fmt.Sprintf("- **%s**: %s (%s %s)", cluster, strings.Join(keywords, ", "), label, day)
}

func splitKeywords(s string) []string {
	var out []string
	for _, kw := range strings.Split(s, ",") {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

func mergeKeywords(existing, added []string) []string {
	seen := make(map[string]bool, len(existing)+len(added))
	out := make([]string, 0, len(existing)+len(added))
	for _, kw := range append(append([]string(nil), existing...), added...) {
		if seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}

func trigger(h ClusterHit) string {
	return strings.Join(h.Keywords, ", ")
}
