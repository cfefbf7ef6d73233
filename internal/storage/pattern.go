package storage

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// matcher matches thing ids against a pattern. A nil matcher matches
// everything.
type matcher struct {
	re *regexp.Regexp
}

// compilePattern compiles a FindIDs pattern. Blank patterns match all.
func compilePattern(pattern string) (matcher, error) {
	if strings.TrimSpace(pattern) == "" {
		return matcher{}, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return matcher{}, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	return matcher{re: re}, nil
}

func (m matcher) Match(id string) bool {
	return m.re == nil || m.re.MatchString(id)
}

// collector accumulates FindIDs results and synthesizes storage entries.
type collector struct {
	withStorages bool
	things       []IDInDb
	storages     map[string]IDInDb
}

func newCollector(withStorages bool) *collector {
	return &collector{withStorages: withStorages, storages: make(map[string]IDInDb)}
}

func (c *collector) addThing(storageKey, thingID string) {
	c.things = append(c.things, IDInDb{StorageKey: storageKey, Kind: KindThing, ID: thingID})
	if !c.withStorages {
		return
	}
	if _, ok := c.storages[storageKey]; ok {
		return
	}
	repositoryID, storageID, _ := strings.Cut(storageKey, scopeSeparator)
	c.storages[storageKey] = IDInDb{StorageKey: repositoryID, Kind: KindStorage, ID: storageID}
}

// result returns storage entries first, then things, sorted.
func (c *collector) result() []IDInDb {
	out := make([]IDInDb, 0, len(c.storages)+len(c.things))
	for _, s := range c.storages {
		out = append(out, s)
	}
	out = append(out, c.things...)
	sortIDs(out)
	return out
}

func sortIDs(ids []IDInDb) {
	sort.Slice(ids, func(i, j int) bool {
		a, b := ids[i], ids[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.StorageKey != b.StorageKey {
			return a.StorageKey < b.StorageKey
		}
		return a.ID < b.ID
	})
}
