package library

import (
	"strconv"
	"strings"
)

// FilterState is the immutable search snapshot: a query string plus the
// pagination cursor. Navigation and new searches build replacement snapshots
// instead of mutating the current one.
type FilterState struct {
	Query     string
	PageIndex int
	PageSize  int
}

func ShowAll() FilterState {
	return FilterState{PageSize: defaultPageSize}
}

func FromQuery(query string) FilterState {
	return FilterState{Query: strings.TrimSpace(query), PageSize: defaultPageSize}
}

func (f FilterState) WithPage(pageIndex int) FilterState {
	f.PageIndex = pageIndex
	return f
}

func (f FilterState) WithPageSize(pageSize int) FilterState {
	if pageSize > 0 {
		f.PageSize = pageSize
	}
	return f
}

func (f FilterState) WithQuery(query string) FilterState {
	f.Query = strings.TrimSpace(query)
	f.PageIndex = 0
	return f
}

type termKind int

const (
	termFreeText termKind = iota
	termTag
	termTagID
	termPath
	termFiletype
	termUntagged
)

type queryTerm struct {
	kind  termKind
	value string
}

// parseQuery splits a search query into terms. Prefixed terms use the
// `kind:value` form; values may be double-quoted to include spaces. Anything
// else is free text matched against paths and tag names.
func parseQuery(query string) []queryTerm {
	var terms []queryTerm
	for _, token := range tokenizeQuery(query) {
		prefix, value, found := strings.Cut(token, ":")
		if !found {
			terms = append(terms, queryTerm{kind: termFreeText, value: strings.ToLower(token)})
			continue
		}
		value = strings.Trim(value, `"`)
		switch strings.ToLower(prefix) {
		case "tag":
			terms = append(terms, queryTerm{kind: termTag, value: strings.ToLower(value)})
		case "tag_id":
			terms = append(terms, queryTerm{kind: termTagID, value: value})
		case "path":
			terms = append(terms, queryTerm{kind: termPath, value: strings.ToLower(value)})
		case "filetype":
			terms = append(terms, queryTerm{kind: termFiletype, value: strings.ToLower(strings.TrimPrefix(value, "."))})
		case "special":
			if strings.EqualFold(value, "untagged") {
				terms = append(terms, queryTerm{kind: termUntagged})
			}
		default:
			terms = append(terms, queryTerm{kind: termFreeText, value: strings.ToLower(token)})
		}
	}
	return terms
}

func tokenizeQuery(query string) []string {
	var tokens []string
	var current strings.Builder
	inQuotes := false
	for _, r := range strings.TrimSpace(query) {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			current.WriteRune(r)
		case r == ' ' && !inQuotes:
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}

// matchEntry reports whether the entry satisfies every term. tagNames maps a
// tag ID to its lowercase name and aliases.
func matchEntry(entry *Entry, terms []queryTerm, tagNames map[int64][]string) bool {
	for _, term := range terms {
		if !matchTerm(entry, term, tagNames) {
			return false
		}
	}
	return true
}

func matchTerm(entry *Entry, term queryTerm, tagNames map[int64][]string) bool {
	lowerPath := strings.ToLower(entry.Path)
	switch term.kind {
	case termUntagged:
		return len(entry.Tags) == 0
	case termPath:
		return strings.Contains(lowerPath, term.value)
	case termFiletype:
		ext := strings.TrimPrefix(strings.ToLower(pathExt(entry.Path)), ".")
		return ext == term.value
	case termTagID:
		id, err := strconv.ParseInt(term.value, 10, 64)
		if err != nil {
			return false
		}
		return entry.HasTag(id)
	case termTag:
		for _, tagID := range entry.Tags {
			for _, name := range tagNames[tagID] {
				if name == term.value {
					return true
				}
			}
		}
		return false
	default: // free text
		if strings.Contains(lowerPath, term.value) {
			return true
		}
		for _, tagID := range entry.Tags {
			for _, name := range tagNames[tagID] {
				if strings.Contains(name, term.value) {
					return true
				}
			}
		}
		return false
	}
}

func pathExt(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		switch path[i] {
		case '.':
			return path[i:]
		case '/', '\\':
			return ""
		}
	}
	return ""
}
