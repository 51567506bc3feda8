// Package models contains the data structures shared by the crawler pipeline
package models

import (
	"fmt"
	"strings"
)

// SourceID identifies a cover source
type SourceID string

const (
	SourceBilibili    SourceID = "bilibili"
	SourceAniList     SourceID = "anilist"
	SourceBangumi     SourceID = "bangumi"
	SourceMyAnimeList SourceID = "myanimelist"
	SourceAniDB       SourceID = "anidb"
)

// portalPrefix marks a user-configured video portal source
const portalPrefix = "portal:"

// BuiltinSources lists the built-in sources in their default query order
var BuiltinSources = []SourceID{
	SourceBilibili,
	SourceAniList,
	SourceBangumi,
	SourceMyAnimeList,
	SourceAniDB,
}

// PortalSource returns the SourceID of a configured portal
func PortalSource(name string) SourceID {
	return SourceID(portalPrefix + strings.ToLower(strings.TrimSpace(name)))
}

// IsPortal reports whether the id names a configured portal
func (s SourceID) IsPortal() bool {
	return strings.HasPrefix(string(s), portalPrefix) && len(s) > len(portalPrefix)
}

// IsBuiltin reports whether the id names one of the built-in sources
func (s SourceID) IsBuiltin() bool {
	for _, b := range BuiltinSources {
		if s == b {
			return true
		}
	}
	return false
}

func (s SourceID) String() string {
	return string(s)
}

// DisplayName returns a human readable name for the source
func (s SourceID) DisplayName() string {
	switch s {
	case SourceBilibili:
		return "Bilibili"
	case SourceAniList:
		return "AniList"
	case SourceBangumi:
		return "Bangumi"
	case SourceMyAnimeList:
		return "MyAnimeList"
	case SourceAniDB:
		return "AniDB"
	}
	if s.IsPortal() {
		return strings.TrimPrefix(string(s), portalPrefix)
	}
	return string(s)
}

// TieBreak selects how a source's surviving candidates are ranked
type TieBreak string

const (
	// TieBreakSimilarity prefers the closest title, then the better image
	TieBreakSimilarity TieBreak = "similarity"
	// TieBreakQuality prefers the better image among matching titles
	TieBreakQuality TieBreak = "quality"
)

// Valid reports whether the policy is known
func (t TieBreak) Valid() bool {
	return t == TieBreakSimilarity || t == TieBreakQuality
}

var sourceAliases = map[string]SourceID{
	"bili":  SourceBilibili,
	"b站":    SourceBilibili,
	"al":    SourceAniList,
	"bgm":   SourceBangumi,
	"mal":   SourceMyAnimeList,
	"jikan": SourceMyAnimeList,
}

// ParseSourceID turns user input such as "mal" or "portal:Foo" into a
// SourceID. It does not check that the source is registered.
func ParseSourceID(s string) (SourceID, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return "", fmt.Errorf("empty source name")
	}
	if strings.HasPrefix(name, portalPrefix) {
		id := PortalSource(strings.TrimPrefix(name, portalPrefix))
		if !id.IsPortal() {
			return "", fmt.Errorf("portal source needs a name: %q", s)
		}
		return id, nil
	}
	if id := SourceID(name); id.IsBuiltin() {
		return id, nil
	}
	if id, ok := sourceAliases[name]; ok {
		return id, nil
	}
	return "", fmt.Errorf("unknown source: %s", s)
}

// ParseSourceList parses a comma separated list, dropping duplicates
func ParseSourceList(list string) ([]SourceID, error) {
	var ids []SourceID
	seen := make(map[SourceID]bool)
	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		id, err := ParseSourceID(part)
		if err != nil {
			return nil, err
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}
