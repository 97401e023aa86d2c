// Package discovery maintains a searchable index of advertised globals.
//
// An Index implements registry.Sink, so it plugs into an environment as
// an observer (env.WithObserver) and tracks every advertisement and
// retraction the server sends, declared or not. Applications query it
// to find out what a server offers without declaring slots up front.
package discovery

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/vinayprograms/envkit/registry"
)

// Advertisement is one indexed global announcement.
type Advertisement struct {
	ID          uint32    `json:"id"`
	Interface   string    `json:"interface"`
	Version     uint32    `json:"version"`
	AnnouncedAt time.Time `json:"announced_at"`
}

// Index is a full-text index over the live advertisements of a server.
type Index struct {
	mu    sync.RWMutex
	index bleve.Index
	live  map[uint32]Advertisement
}

var _ registry.Sink = (*Index)(nil)

// NewIndex creates an in-memory advertisement index.
func NewIndex() (*Index, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}

	return &Index{
		index: index,
		live:  make(map[uint32]Advertisement),
	}, nil
}

// buildIndexMapping creates the Bleve index mapping.
func buildIndexMapping() mapping.IndexMapping {
	advMapping := bleve.NewDocumentMapping()

	// Interface names like "wl_compositor" should match on fragments.
	// The simple analyzer splits on non-letters, so "compositor" finds
	// the advertisement; the standard analyzer would keep the name as
	// one token.
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = simple.Name

	numericFieldMapping := bleve.NewNumericFieldMapping()
	dateFieldMapping := bleve.NewDateTimeFieldMapping()

	advMapping.AddFieldMappingsAt("interface", textFieldMapping)
	advMapping.AddFieldMappingsAt("id", numericFieldMapping)
	advMapping.AddFieldMappingsAt("version", numericFieldMapping)
	advMapping.AddFieldMappingsAt("announced_at", dateFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = advMapping
	indexMapping.DefaultAnalyzer = standard.Name

	return indexMapping
}

// GlobalAdded indexes an advertisement. A re-announcement of a live id
// replaces its document.
func (x *Index) GlobalAdded(g registry.Global) {
	x.mu.Lock()
	defer x.mu.Unlock()

	adv := Advertisement{
		ID:          g.ID,
		Interface:   g.Interface,
		Version:     g.Version,
		AnnouncedAt: time.Now(),
	}
	if err := x.index.Index(docID(g.ID), adv); err != nil {
		// The live map stays authoritative; a failed index write only
		// degrades search.
		return
	}
	x.live[g.ID] = adv
}

// GlobalRemoved drops the advertisement with the given id. Unknown ids
// are ignored.
func (x *Index) GlobalRemoved(id uint32, iface string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, ok := x.live[id]; !ok {
		return
	}
	if err := x.index.Delete(docID(id)); err != nil {
		return
	}
	delete(x.live, id)
}

// Search returns the live advertisements matching a full-text query
// over the interface names, best match first.
func (x *Index) Search(queryText string, limit int) ([]Advertisement, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	matchQuery := bleve.NewMatchQuery(queryText)
	matchQuery.SetField("interface")

	searchReq := bleve.NewSearchRequest(matchQuery)
	searchReq.Size = limit

	searchResult, err := x.index.Search(searchReq)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	var results []Advertisement
	for _, hit := range searchResult.Hits {
		id, err := strconv.ParseUint(hit.ID, 10, 32)
		if err != nil {
			continue
		}
		if adv, ok := x.live[uint32(id)]; ok {
			results = append(results, adv)
		}
	}
	return results, nil
}

// Lookup returns the live advertisements for an exact interface name,
// in announcement order by id.
func (x *Index) Lookup(iface string) []Advertisement {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var out []Advertisement
	for _, adv := range x.live {
		if adv.Interface == iface {
			out = append(out, adv)
		}
	}
	sortAdvertisements(out)
	return out
}

// All returns every live advertisement, sorted by id.
func (x *Index) All() []Advertisement {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make([]Advertisement, 0, len(x.live))
	for _, adv := range x.live {
		out = append(out, adv)
	}
	sortAdvertisements(out)
	return out
}

// Len returns the number of live advertisements.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.live)
}

// Close releases the index.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.index.Close()
}

func docID(id uint32) string {
	return strconv.FormatUint(uint64(id), 10)
}

func sortAdvertisements(advs []Advertisement) {
	sort.Slice(advs, func(i, j int) bool { return advs[i].ID < advs[j].ID })
}
