package allowlist

import (
	"strings"

	"go.uber.org/zap"
)

// Checker reports whether a caller number is trusted. Entries are full
// numbers or prefixes ending in '*'.
type Checker struct {
	numbers  map[string]struct{}
	prefixes []string
	logger   *zap.Logger
}

// NewChecker creates a new allowlist checker
func NewChecker(entries []string, logger *zap.Logger) *Checker {
	c := &Checker{
		numbers: make(map[string]struct{}),
		logger:  logger,
	}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if prefix, ok := strings.CutSuffix(entry, "*"); ok {
			if p := NormalizeNumber(prefix); p != "" {
				c.prefixes = append(c.prefixes, p)
			}
			continue
		}
		if n := NormalizeNumber(entry); n != "" {
			c.numbers[n] = struct{}{}
		}
	}

	if c.Len() > 0 && logger != nil {
		logger.Info("Initialized caller allowlist",
			zap.Int("numbers", len(c.numbers)),
			zap.Strings("prefixes", c.prefixes))
	}
	return c
}

// Len returns the number of entries in the allowlist
func (c *Checker) Len() int {
	return len(c.numbers) + len(c.prefixes)
}

// IsTrusted checks if the caller number is on the allowlist
func (c *Checker) IsTrusted(number string) bool {
	if c.Len() == 0 {
		return false
	}
	n := NormalizeNumber(number)
	if n == "" {
		return false
	}

	if _, ok := c.numbers[n]; ok {
		c.debug("Caller is allowlisted", n)
		return true
	}
	for _, p := range c.prefixes {
		if strings.HasPrefix(n, p) {
			c.debug("Caller matches allowlisted prefix", n)
			return true
		}
	}
	return false
}

func (c *Checker) debug(msg, number string) {
	if c.logger != nil {
		c.logger.Debug(msg, zap.String("caller", number))
	}
}

// NormalizeNumber strips formatting from a phone number, keeping digits and
// a leading '+'
func NormalizeNumber(number string) string {
	number = strings.TrimSpace(number)
	var b strings.Builder
	for i, r := range number {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	if b.String() == "+" {
		return ""
	}
	return b.String()
}

var tollFreePrefixes = []string{"+1800", "+1888", "+1877"}

// IsTollFree reports whether the number uses a toll-free prefix commonly seen
// on robocalls
func IsTollFree(number string) bool {
	n := NormalizeNumber(number)
	for _, p := range tollFreePrefixes {
		if strings.HasPrefix(n, p) {
			return true
		}
	}
	return false
}
