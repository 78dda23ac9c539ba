// Package git manages git configuration keys.
package git

import (
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
)

// Scopes understood by ScopePath.
const (
	ScopeGlobal = "global"
	ScopeSystem = "system"
)

// ScopePath maps a scope to the config file it edits. Anything other than
// global or system is taken as a file path.
func ScopePath(scope, home string) string {
	switch strings.ToLower(scope) {
	case "", ScopeGlobal:
		return filepath.Join(home, ".gitconfig")
	case ScopeSystem:
		return "/etc/gitconfig"
	default:
		return scope
	}
}

// SplitKey splits "section.sub.section.name" into its git parts. The
// subsection may contain dots.
func SplitKey(key string) (section, subsection, name string, err error) {
	first := strings.Index(key, ".")
	last := strings.LastIndex(key, ".")
	if first <= 0 || last == len(key)-1 {
		return "", "", "", fmt.Errorf("invalid git config key %q", key)
	}
	section = key[:first]
	name = key[last+1:]
	if first != last {
		subsection = key[first+1 : last]
	}
	return section, subsection, name, nil
}

// Lookup returns the value of key in a git config file. Section and key
// names compare case-insensitively, subsections exactly. The last value wins
// for multi-valued keys.
func Lookup(content []byte, key string) (string, bool, error) {
	section, subsection, name, err := SplitKey(key)
	if err != nil {
		return "", false, err
	}
	name = strings.ToLower(name)

	cfg, err := ini.LoadSources(ini.LoadOptions{
		InsensitiveKeys:           true,
		AllowBooleanKeys:          true,
		AllowShadows:              true,
		UnescapeValueDoubleQuotes: true,
		SkipUnrecognizableLines:   true,
	}, content)
	if err != nil {
		return "", false, fmt.Errorf("parse git config: %w", err)
	}

	var (
		value string
		found bool
	)
	for _, sec := range cfg.Sections() {
		if !sectionMatches(sec.Name(), section, subsection) || !sec.HasKey(name) {
			continue
		}
		values := sec.Key(name).ValueWithShadows()
		if len(values) == 0 {
			continue
		}
		value, found = values[len(values)-1], true
	}
	return value, found, nil
}

// sectionMatches compares an ini section header such as `url "git@host:"`
// against a git section and subsection.
func sectionMatches(header, section, subsection string) bool {
	name, sub, hasSub := strings.Cut(header, " ")
	if !strings.EqualFold(name, section) {
		return false
	}
	if !hasSub {
		return subsection == ""
	}
	sub = strings.TrimSpace(sub)
	sub = strings.TrimSuffix(strings.TrimPrefix(sub, `"`), `"`)
	return sub == subsection
}
