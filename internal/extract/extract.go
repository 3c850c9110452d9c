// Package extract turns raw document bytes into plain text through an
// ordered waterfall of strategies: native parsing first, then OCR providers,
// stopping at the first adequate result.
package extract

import (
	"context"
	"errors"
	"log"
	"regexp"
	"time"
)

// Extraction method provenance values.
const (
	MethodNone   = "none"
	MethodNative = "native"
)

// AdequacyThreshold is the minimum plausible-text length an attempt must
// produce to be accepted. Empirically chosen; tunable.
const AdequacyThreshold = 100

// Result is the outcome of running the waterfall over one document.
type Result struct {
	Text     string
	Method   string
	Adequate bool
}

// Strategy is one extraction capability. Attempt returns the extracted text
// or an error; adequacy is judged by the chain, not the strategy.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, data []byte, name string) (string, error)
}

// ErrNoStrategies is fatal: a chain with nothing configured cannot run.
var ErrNoStrategies = errors.New("no extraction strategy configured")

// Chain executes strategies in priority order. The native strategy is always
// first; OCR providers follow in configuration order.
type Chain struct {
	native    Strategy
	providers []Strategy

	// AttemptTimeout boxes each provider call separately so one hung
	// provider cannot block the rest of the waterfall.
	AttemptTimeout time.Duration

	// MaxOCRBytes is the ceiling above which OCR escalation is skipped
	// entirely and extraction is native-only.
	MaxOCRBytes int
}

func NewChain(native Strategy, providers ...Strategy) *Chain {
	return &Chain{
		native:         native,
		providers:      providers,
		AttemptTimeout: 2 * time.Minute,
		MaxOCRBytes:    25 << 20,
	}
}

// Empty reports whether the chain has no usable strategy at all.
func (c *Chain) Empty() bool {
	return c.native == nil && len(c.providers) == 0
}

// Extract runs the waterfall over one document. It never returns an error:
// a fully exhausted waterfall yields Method "none" with Adequate false.
func (c *Chain) Extract(ctx context.Context, data []byte, name string) Result {
	var nativeText string

	if c.native != nil {
		text, err := c.attempt(ctx, c.native, data, name)
		if err != nil {
			log.Printf("extract: native failed for %s: %v", name, err)
		} else if Adequate(text) {
			return Result{Text: text, Method: c.native.Name(), Adequate: true}
		}
		nativeText = text
	}

	// Oversized documents never escalate to OCR: cost and latency control.
	if len(data) > c.MaxOCRBytes {
		log.Printf("extract: %s is %d bytes, skipping OCR escalation", name, len(data))
		if nativeText != "" {
			return Result{Text: nativeText, Method: c.native.Name(), Adequate: false}
		}
		return Result{Method: MethodNone}
	}

	for _, p := range c.providers {
		text, err := c.attempt(ctx, p, data, name)
		if err != nil {
			log.Printf("extract: provider %s failed for %s: %v", p.Name(), name, err)
			continue
		}
		if Adequate(text) {
			log.Printf("extract: provider %s succeeded for %s (%d chars)", p.Name(), name, len(text))
			return Result{Text: text, Method: p.Name(), Adequate: true}
		}
		log.Printf("extract: provider %s output inadequate for %s (%d chars)", p.Name(), name, len(text))
	}

	return Result{Method: MethodNone}
}

func (c *Chain) attempt(ctx context.Context, s Strategy, data []byte, name string) (string, error) {
	if c.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.AttemptTimeout)
		defer cancel()
	}
	return s.Attempt(ctx, data, name)
}

var collapseRe = regexp.MustCompile(`\s+`)

// Adequate reports whether text clears the adequacy threshold after
// whitespace collapse.
func Adequate(text string) bool {
	collapsed := collapseRe.ReplaceAllString(text, " ")
	return len(collapsed) >= AdequacyThreshold
}
