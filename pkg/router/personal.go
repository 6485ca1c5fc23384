package router

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/entrhq/soulcore/pkg/events"
	"github.com/entrhq/soulcore/pkg/markdown"
	"github.com/entrhq/soulcore/pkg/throttle"
)

// RoutePersonal writes the self-disclosures found in rawText into the
// relationship file of subject. The subject throttle and the daily quota are
// checked before anything is written, and the router never creates a
// relationship file that does not exist yet.
func (r *Router) RoutePersonal(ctx context.Context, rawText, subject string) ([]RouteLogEntry, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, nil
	}
	facts := ExtractPersonalFacts(rawText, r.maxFactLen)
	if len(facts) == 0 {
		return nil, nil
	}

	slug := Slug(subject)
	if slug == "" {
		r.logger.Infof("subject %q has no usable name, skipping %d facts", subject, len(facts))
		return r.abort(ctx, facts[0], r.language.Table().RelationshipsDir, ActionFileNotFound), nil
	}
	fallback := path.Join(r.language.Table().RelationshipsDir, slug+".md")

	throttled, err := r.gate.Throttled(ctx, throttle.PersonalKey(slug), r.personalThrottle)
	if err != nil {
		return nil, err
	}
	if throttled {
		r.logger.Infof("personal facts for %s written less than %s ago, skipping", subject, r.personalThrottle)
		return r.abort(ctx, facts[0], fallback, ActionThrottled), nil
	}

	used, err := r.gate.Used(ctx, slug)
	if err != nil {
		return nil, err
	}
	if used >= r.dailyCap {
		r.logger.Infof("daily limit of %d facts reached for %s", r.dailyCap, subject)
		return r.abort(ctx, facts[0], fallback, ActionDailyLimit), nil
	}

	target, tbl, ok := r.findRelationshipFile(ctx, slug)
	if !ok {
		r.logger.Infof("no relationship file for %s, skipping %d facts", subject, len(facts))
		return r.abort(ctx, facts[0], fallback, ActionFileNotFound), nil
	}

	content, err := r.files.Read(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", target, err)
	}
	doc := markdown.Parse(content)
	doc.EnsureSection(tbl.PersonalNotes, "", tbl.PersonalPreamble)
	today := r.gate.Today()
	existing := sameDayFacts(doc, tbl.PersonalNotes, today)

	var (
		entries []RouteLogEntry
		written []string
	)
	for _, fact := range facts {
		if r.isDuplicate(fact, existing) {
			r.logger.Debugf("fact already noted for %s today: %q", subject, fact)
			continue
		}
		if used >= r.dailyCap {
			r.logger.Infof("daily limit of %d facts reached for %s", r.dailyCap, subject)
			entries = append(entries, r.entry(RoutePersonal, fact, target, ActionDailyLimit))
			break
		}
		s, _ := doc.FindSection(tbl.PersonalNotes)
		doc.InsertAfterPreamble(s, "- "+today+": "+fact)
		existing = append(existing, fact)
		written = append(written, fact)
		used++
	}

	if len(written) == 0 {
		r.record(ctx, entries)
		return entries, nil
	}

	if err := r.files.Write(ctx, target, doc.String()); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", target, err)
	}

	writtenEntries := make([]RouteLogEntry, 0, len(written)+len(entries))
	for _, fact := range written {
		if _, err := r.gate.Consume(ctx, slug); err != nil {
			r.logger.Warnf("%v", err)
		}
		writtenEntries = append(writtenEntries, r.entry(RoutePersonal, fact, target, ActionWritten))
	}
	if err := r.gate.Mark(ctx, throttle.PersonalKey(slug)); err != nil {
		r.logger.Warnf("%v", err)
	}
	entries = append(writtenEntries, entries...)

	r.logger.Infof("wrote %d facts about %s to %s", len(written), subject, target)
	r.bus.Emit(ctx, events.NewPersonalFactWrittenEvent(subject, target, written))
	r.record(ctx, entries)
	return entries, nil
}

func (r *Router) abort(ctx context.Context, trigger, target string, action Action) []RouteLogEntry {
	entries := []RouteLogEntry{r.entry(RoutePersonal, trigger, target, action)}
	r.record(ctx, entries)
	return entries
}

// sameDayFacts returns the text of the bullets in the section titled heading
// that are dated day.
func sameDayFacts(doc *markdown.Document, heading, day string) []string {
	s, ok := doc.FindSection(heading)
	if !ok {
		return nil
	}
	stamp := day + ":"
	var out []string
	for _, i := range doc.Bullets(s) {
		line := strings.TrimSpace(strings.TrimLeft(doc.Lines()[i], "-* "))
		if rest, ok := strings.CutPrefix(line, stamp); ok && strings.TrimSpace(rest) != "" {
			out = append(out, strings.TrimSpace(rest))
		}
	}
	return out
}

// isDuplicate reports whether fact overlaps an existing entry: the first
// dedupPrefix characters of either one occur in the other.
func (r *Router) isDuplicate(fact string, existing []string) bool {
	f := folded(fact)
	for _, e := range existing {
		e = folded(e)
		if strings.Contains(e, prefix(f, r.dedupPrefix)) || strings.Contains(f, prefix(e, r.dedupPrefix)) {
			return true
		}
	}
	return false
}

func prefix(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}
