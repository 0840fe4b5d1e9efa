// Package search aggregates results from every provider behind a single
// query: it resolves command aliases, fans out to providers, merges and
// ranks what comes back.
package search

import (
	"errors"
	"sort"
	"strings"
	"unicode"

	"github.com/runger/palette/internal/extension"
)

// ErrParseAmbiguity is returned for queries that name no alias at all.
// It is not fatal: the engine falls back to fan-out.
var ErrParseAmbiguity = errors.New("query has no alias candidate")

// Parsed is a query split into an alias candidate and a search term.
type Parsed struct {
	Alias string
	Term  string
}

type aliasEntry struct {
	alias          string
	selfDelimiting bool
}

// Parse splits query into alias and term. Known aliases are tried as
// case-insensitive prefixes, longest first: a self-delimiting alias matches
// on the prefix alone, any other alias only when followed by whitespace or
// the end of the query. Without a known alias the first whitespace-separated
// field is the alias candidate.
func Parse(query string, commands []extension.Command) (Parsed, error) {
	q := strings.TrimLeftFunc(query, unicode.IsSpace)
	if q == "" {
		return Parsed{}, ErrParseAmbiguity
	}

	for _, e := range aliasesByLength(commands) {
		if len(q) < len(e.alias) || !strings.EqualFold(q[:len(e.alias)], e.alias) {
			continue
		}
		rest := q[len(e.alias):]
		if !e.selfDelimiting && rest != "" && !startsWithSpace(rest) {
			continue
		}
		return Parsed{
			Alias: q[:len(e.alias)],
			Term:  strings.TrimLeftFunc(rest, unicode.IsSpace),
		}, nil
	}

	alias, term := q, ""
	if i := strings.IndexFunc(q, unicode.IsSpace); i >= 0 {
		alias, term = q[:i], q[i:]
	}
	return Parsed{
		Alias: alias,
		Term:  strings.TrimLeftFunc(term, unicode.IsSpace),
	}, nil
}

func aliasesByLength(commands []extension.Command) []aliasEntry {
	var entries []aliasEntry
	for _, c := range commands {
		for _, a := range c.Aliases {
			if a == "" {
				continue
			}
			entries = append(entries, aliasEntry{alias: a, selfDelimiting: c.SelfDelimiting})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return len(entries[i].alias) > len(entries[j].alias)
	})
	return entries
}

func startsWithSpace(s string) bool {
	for _, r := range s {
		return unicode.IsSpace(r)
	}
	return false
}
