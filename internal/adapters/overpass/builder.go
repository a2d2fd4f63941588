// Package overpass talks to an Overpass API interpreter: it renders domain
// queries as Overpass QL and executes them over HTTP.
package overpass

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/samirrijal/osmdash/internal/core/domain"
)

// tag values are spliced into a regex inside a quoted QL string
var safeTagValue = regexp.MustCompile(`^[A-Za-z0-9_:\-]+$`)

// Builder renders domain.Query values as Overpass QL.
type Builder struct {
	tagKey        string
	serverTimeout int // seconds, sent as [timeout:N]
}

// NewBuilder returns a Builder filtering on tagKey. serverTimeout is the
// evaluation limit requested from the interpreter.
func NewBuilder(tagKey string, serverTimeout time.Duration) *Builder {
	if tagKey == "" {
		tagKey = domain.DefaultTagKey
	}
	secs := int(serverTimeout / time.Second)
	if secs <= 0 {
		secs = 25
	}
	return &Builder{tagKey: tagKey, serverTimeout: secs}
}

// Build returns a query for nodes within q.Radius meters of q.Origin carrying
// the tag key. A non-empty q.TagValues narrows the match to exactly those
// values; an empty one matches every value.
func (b *Builder) Build(q domain.Query) (string, error) {
	if err := q.Origin.Validate(); err != nil {
		return "", err
	}
	if q.Radius <= 0 {
		return "", &domain.BuildError{Field: "radius", Reason: fmt.Sprintf("%d must be positive", q.Radius)}
	}

	filter := fmt.Sprintf(`[%q]`, b.tagKey)
	if len(q.TagValues) > 0 {
		for _, v := range q.TagValues {
			if !safeTagValue.MatchString(v) {
				return "", &domain.BuildError{Field: "tags", Reason: fmt.Sprintf("unsupported tag value %q", v)}
			}
		}
		filter = fmt.Sprintf(`[%q~"^(%s)$"]`, b.tagKey, strings.Join(q.TagValues, "|"))
	}

	return fmt.Sprintf("[out:json][timeout:%d];node(around:%d,%s,%s)%s;out;",
		b.serverTimeout,
		q.Radius,
		strconv.FormatFloat(q.Origin.Lat, 'f', -1, 64),
		strconv.FormatFloat(q.Origin.Lon, 'f', -1, 64),
		filter,
	), nil
}
