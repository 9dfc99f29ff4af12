package protocol

import "strings"

// Dialect names a protocol variant. The set is open: codecs register new
// dialects at runtime.
type Dialect string

const (
	// DialectBaseline is the reference dialect every gateway understands.
	DialectBaseline Dialect = "baseline"
	// DialectExtended builds on the baseline handlers.
	DialectExtended Dialect = "extended"
)

// ParseDialect normalizes a configured dialect name. Empty input resolves to
// the baseline dialect.
func ParseDialect(raw string) Dialect {
	name := strings.TrimSpace(strings.ToLower(raw))
	if name == "" {
		return DialectBaseline
	}
	return Dialect(name)
}

func (d Dialect) String() string {
	return string(d)
}
