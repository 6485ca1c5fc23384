// Package verify checks generated replies for claims about the past and
// grades each claim against the memory store. Replies whose claims look
// fabricated get a short disclaimer appended; the reply itself is never
// rewritten.
package verify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/soulcore/pkg/events"
	"github.com/entrhq/soulcore/pkg/lang"
	"github.com/entrhq/soulcore/pkg/logging"
	"github.com/entrhq/soulcore/pkg/memstore"
)

// Status is the verdict for one claim.
type Status string

const (
	StatusSupported    Status = "SUPPORTED"
	StatusUnsupported  Status = "UNSUPPORTED"
	StatusContradicted Status = "CONTRADICTED"
)

// ClaimVerification is a claim with its verdict. Evidence is the memory text
// the verdict rests on, empty for unsupported claims.
type ClaimVerification struct {
	Claim
	Status   Status `json:"status"`
	Evidence string `json:"evidence,omitempty"`
}

// Result is the outcome of Check.
type Result struct {
	Modified bool                `json:"modified"`
	Text     string              `json:"text"`
	Claims   []ClaimVerification `json:"claims"`
}

// unsupportedThreshold is the number of unsupported claims a reply may carry
// before it gets a disclaimer.
const unsupportedThreshold = 2

const maxEvidenceRunes = 200

// Defaults for the verifier limits.
const (
	DefaultBudget      = 500 * time.Millisecond
	DefaultTagLimit    = 5
	DefaultEntityLimit = 3
)

// Verifier grades claims in generated text against a memory store.
type Verifier struct {
	store       memstore.Store
	enabled     bool
	budget      time.Duration
	tagLimit    int
	entityLimit int
	language    lang.Language
	bus         events.Bus
	logger      *logging.Logger
	now         func() time.Time
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithEnabled turns verification on or off.
func WithEnabled(enabled bool) Option {
	return func(v *Verifier) {
		v.enabled = enabled
	}
}

// WithBudget bounds the wall-clock time spent verifying one reply.
func WithBudget(d time.Duration) Option {
	return func(v *Verifier) {
		if d > 0 {
			v.budget = d
		}
	}
}

// WithLimits sets how many memories and entities are fetched per claim.
func WithLimits(tags, entities int) Option {
	return func(v *Verifier) {
		if tags > 0 {
			v.tagLimit = tags
		}
		if entities > 0 {
			v.entityLimit = entities
		}
	}
}

// WithLanguage selects the disclaimer language.
func WithLanguage(l lang.Language) Option {
	return func(v *Verifier) {
		v.language = l
	}
}

// WithEventBus sets where verification summaries are emitted.
func WithEventBus(b events.Bus) Option {
	return func(v *Verifier) {
		v.bus = b
	}
}

// WithLogger sets the verifier logger.
func WithLogger(l *logging.Logger) Option {
	return func(v *Verifier) {
		v.logger = l
	}
}

// WithClock overrides time.Now for budget accounting.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		v.now = now
	}
}

// New creates a Verifier over store. A nil store grades every claim
// UNSUPPORTED.
func New(store memstore.Store, opts ...Option) *Verifier {
	v := &Verifier{
		store:       store,
		enabled:     true,
		budget:      DefaultBudget,
		tagLimit:    DefaultTagLimit,
		entityLimit: DefaultEntityLimit,
		language:    lang.Default,
		bus:         events.Nop{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.logger == nil {
		v.logger = logging.Nop("verifier")
	}
	return v
}

// Check verifies the claims in generated. query is the user message the
// reply answers; it is only used for diagnostics. Check never fails: lookup
// problems degrade to UNSUPPORTED verdicts.
func (v *Verifier) Check(ctx context.Context, generated, query string) Result {
	res := Result{Text: generated, Claims: []ClaimVerification{}}
	if !v.enabled || !HasMemoryReference(generated) {
		return res
	}

	start := v.now()
	claims := ExtractClaims(generated)
	v.logger.Debugf("verifying %d claims (reply %d chars, query %d chars)", len(claims), len(generated), len(query))

	for i, c := range claims {
		if ctx.Err() != nil {
			v.logger.Debugf("verification canceled after %d of %d claims", i, len(claims))
			break
		}
		if elapsed := v.now().Sub(start); elapsed > v.budget {
			v.logger.Warnf("verification budget %s exhausted after %d of %d claims", v.budget, i, len(claims))
			break
		}
		res.Claims = append(res.Claims, v.verifyClaim(ctx, c))
	}

	var supported, unsupported, contradicted int
	for _, cv := range res.Claims {
		switch cv.Status {
		case StatusSupported:
			supported++
		case StatusUnsupported:
			unsupported++
		case StatusContradicted:
			contradicted++
		}
	}

	if contradicted > 0 || unsupported > unsupportedThreshold {
		res.Text = strings.TrimRight(generated, " \t\n") + "\n\n" + v.language.Table().Disclaimer
		res.Modified = true
	}

	v.bus.Emit(ctx, events.NewClaimsVerifiedEvent(len(res.Claims), supported, unsupported, contradicted, res.Modified))
	return res
}

// verifyClaim grades a single claim. A claim word counts as support only
// where the memory does not negate it; a negated claim word is
// counter-evidence.
func (v *Verifier) verifyClaim(ctx context.Context, c Claim) (cv ClaimVerification) {
	cv = ClaimVerification{Claim: c, Status: StatusUnsupported}
	defer func() {
		if r := recover(); r != nil {
			v.logger.Errorf("memory lookup panicked for claim %q: %v", c.Text, r)
			cv = ClaimVerification{Claim: c, Status: StatusUnsupported}
		}
	}()

	words := contentWords(c.Text, maxClaimWords)
	if v.store == nil || len(words) == 0 {
		return cv
	}

	found, err := v.lookup(ctx, words)
	if err != nil {
		v.logger.Warnf("memory lookup failed for claim %q: %v", c.Text, err)
		return cv
	}

	var against string
	best, bestMatched := "", 0
	matched := make(map[string]bool)
	for _, e := range found {
		lower := strings.ToLower(e.text)
		negated := negatedWords(e.body, words)
		n := 0
		for _, w := range words {
			switch {
			case negated[w]:
				if against == "" {
					against = e.text
				}
			case strings.Contains(lower, w):
				matched[w] = true
				n++
			}
		}
		if n > bestMatched {
			best, bestMatched = e.text, n
		}
	}

	if float64(len(matched))/float64(len(words)) > 0.5 {
		cv.Status = StatusSupported
		cv.Evidence = clip(best, maxEvidenceRunes)
		return cv
	}
	if against != "" {
		cv.Status = StatusContradicted
		cv.Evidence = clip(against, maxEvidenceRunes)
	}
	return cv
}

// evidence is a stored text together with the part of it negations are
// read from. Memory tags are matched but never negated.
type evidence struct {
	text string
	body string
}

// lookup fetches the memory and entity texts related to words.
func (v *Verifier) lookup(ctx context.Context, words []string) ([]evidence, error) {
	memories, err := v.store.SearchStructured(ctx, memstore.Query{Tags: words, Limit: v.tagLimit})
	if err != nil {
		return nil, fmt.Errorf("structured search: %w", err)
	}
	entities, err := v.store.SearchEntities(ctx, strings.Join(words, " "), memstore.EntityOptions{Limit: v.entityLimit})
	if err != nil {
		return nil, fmt.Errorf("entity search: %w", err)
	}

	found := make([]evidence, 0, len(memories)+len(entities))
	for _, m := range memories {
		found = append(found, evidence{text: m.Text(), body: m.Content})
	}
	for _, e := range entities {
		t := e.Text()
		found = append(found, evidence{text: t, body: t})
	}
	return found, nil
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
