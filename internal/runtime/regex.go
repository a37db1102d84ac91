// Package runtime holds the compiled regular expressions shared by the
// string built-ins and host type filtering.
package runtime

import (
	"sync"

	"github.com/coregx/coregex"
)

// Regex is a compiled pattern. It is safe for concurrent use.
type Regex struct {
	src string
	re  *coregex.Regexp
}

// Compile parses pattern using leftmost-first semantics.
func Compile(pattern string) (*Regex, error) {
	re, err := coregex.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &Regex{src: pattern, re: re}, nil
}

// MustCompile is like Compile but panics on an invalid pattern.
func MustCompile(pattern string) *Regex {
	re, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return re
}

// String returns the source pattern.
func (r *Regex) String() string { return r.src }

// MatchString reports whether s contains a match.
func (r *Regex) MatchString(s string) bool {
	return r.re.MatchString(s)
}

// FindString returns the leftmost match in s.
func (r *Regex) FindString(s string) (string, bool) {
	loc := r.re.FindStringIndex(s)
	if loc == nil {
		return "", false
	}
	return s[loc[0]:loc[1]], true
}

// ReplaceAllString replaces every match in s with repl.
func (r *Regex) ReplaceAllString(s, repl string) string {
	return r.re.ReplaceAllString(s, repl)
}

// Cache maps pattern text to compiled regexes. When full, the pattern
// used least recently is dropped.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	tick    uint64
	limit   int
}

type cacheEntry struct {
	re   *Regex
	used uint64
}

// NewCache returns a cache holding at most limit patterns
// (64 if limit <= 0).
func NewCache(limit int) *Cache {
	if limit <= 0 {
		limit = 64
	}
	return &Cache{entries: make(map[string]*cacheEntry, limit), limit: limit}
}

// Get returns the compiled form of pattern, compiling it on first use.
// Invalid patterns are not cached.
func (c *Cache) Get(pattern string) (*Regex, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tick++
	if e, ok := c.entries[pattern]; ok {
		e.used = c.tick
		return e.re, nil
	}

	re, err := Compile(pattern)
	if err != nil {
		return nil, err
	}
	if len(c.entries) >= c.limit {
		c.evict()
	}
	c.entries[pattern] = &cacheEntry{re: re, used: c.tick}
	return re, nil
}

// evict drops the least recently used entry. Callers hold c.mu.
func (c *Cache) evict() {
	var oldest string
	var lowest uint64
	first := true
	for p, e := range c.entries {
		if first || e.used < lowest {
			oldest, lowest, first = p, e.used, false
		}
	}
	delete(c.entries, oldest)
}

// Len returns the number of cached patterns.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
