package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/palette/internal/extension"
)

var parserCommands = []extension.Command{
	{ID: "core.commands", ProviderID: "core", Kind: extension.KindSearch, Aliases: []string{">"}, SelfDelimiting: true},
	{ID: "tabs.search", ProviderID: "tabs", Kind: extension.KindSearch, Aliases: []string{"t"}},
	{ID: "topsites.search", ProviderID: "topsites", Kind: extension.KindSearch, Aliases: []string{"top"}},
	{ID: "bookmarks.search", ProviderID: "bookmarks", Kind: extension.KindSearch, Aliases: []string{"b", "bm"}},
}

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantAlias string
		wantTerm  string
	}{
		{name: "alias and term", query: "t example", wantAlias: "t", wantTerm: "example"},
		{name: "alias only", query: "t", wantAlias: "t", wantTerm: ""},
		{name: "leading whitespace trimmed", query: "   t  example", wantAlias: "t", wantTerm: "example"},
		{name: "case insensitive alias", query: "T Example", wantAlias: "T", wantTerm: "Example"},
		{name: "longest alias first", query: "top news", wantAlias: "top", wantTerm: "news"},
		{name: "second alias of command", query: "bm recipes", wantAlias: "bm", wantTerm: "recipes"},
		{name: "self delimiting alias", query: ">reload", wantAlias: ">", wantTerm: "reload"},
		{name: "self delimiting alias with space", query: "> reload", wantAlias: ">", wantTerm: "reload"},
		{name: "alias needs separator", query: "tabby cat", wantAlias: "tabby", wantTerm: "cat"},
		{name: "no alias", query: "gmail", wantAlias: "gmail", wantTerm: ""},
		{name: "multi word without alias", query: "go docs net", wantAlias: "go", wantTerm: "docs net"},
		{name: "tab separator", query: "t\texample", wantAlias: "t", wantTerm: "example"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.query, parserCommands)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAlias, got.Alias)
			assert.Equal(t, tt.wantTerm, got.Term)
		})
	}
}

func TestParse_EmptyQuery(t *testing.T) {
	for _, q := range []string{"", "   ", "\t\n"} {
		_, err := Parse(q, parserCommands)
		assert.ErrorIs(t, err, ErrParseAmbiguity, "query %q", q)
	}
}

func TestParse_NoCommands(t *testing.T) {
	got, err := Parse("t example", nil)
	require.NoError(t, err)
	assert.Equal(t, Parsed{Alias: "t", Term: "example"}, got)
}
