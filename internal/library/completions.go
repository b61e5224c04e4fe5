package library

import (
	"regexp"
	"strconv"
	"strings"
)

var completionTermRe = regexp.MustCompile(`((?:.* )?)(filetype|path|tag|tag_id):("?[A-Za-z0-9 \t]+"?)?`)

var completionSeeds = []string{
	"filetype:",
	"path:",
	"tag:",
	"tag_id:",
	"special:untagged",
}

// Completions suggests search-field continuations for partially typed input.
// Short input gets the seed prefixes; a recognized `kind:` term gets the
// matching tag names, tag IDs, or indexed paths with the preceding text kept.
func (l *Library) Completions(text string) []string {
	if len(text) < 3 {
		return append([]string(nil), completionSeeds...)
	}

	matches := completionTermRe.FindStringSubmatch(text)
	if matches == nil {
		return nil
	}
	prefix, kind, value := matches[1], matches[2], matches[3]
	if value == "" {
		return nil
	}

	var out []string
	switch kind {
	case "tag":
		for _, tag := range l.Tags() {
			out = append(out, prefix+"tag:"+tag.Name)
		}
	case "tag_id":
		for _, tag := range l.Tags() {
			out = append(out, prefix+"tag_id:"+strconv.FormatInt(tag.ID, 10))
		}
	case "path":
		for _, path := range l.Paths() {
			out = append(out, prefix+"path:"+path)
		}
	case "filetype":
		for _, ext := range l.indexedExtensions() {
			out = append(out, prefix+"filetype:"+ext)
		}
	}
	return out
}

func (l *Library) indexedExtensions() []string {
	seen := map[string]bool{}
	var exts []string
	for _, path := range l.Paths() {
		ext := strings.TrimPrefix(strings.ToLower(pathExt(path)), ".")
		if ext == "" || seen[ext] {
			continue
		}
		seen[ext] = true
		exts = append(exts, ext)
	}
	return exts
}
