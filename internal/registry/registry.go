// Package registry implements the document registry (spec.md §4.2,
// C2): a content-addressed, durable store of ingested documents and
// their agent-metadata summaries, with tiered duplicate detection.
package registry

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/finsight/analyst/internal/fingerprint"
	"github.com/finsight/analyst/internal/model"
)

// Store is the durable persistence backend a Registry sits on top of.
// BadgerStore (badger_store.go) is the production implementation;
// memStore (memory_store.go) backs tests and any deployment that accepts
// losing the registry across restarts.
type Store interface {
	Put(fingerprint string, entry *model.RegistryEntry) error
	Get(fingerprint string) (*model.RegistryEntry, bool, error)
	All() ([]*model.RegistryEntry, error)
	Delete(fingerprint string) error
	Close() error
}

// DuplicateReason names which tier of §4.2's duplicate policy matched.
type DuplicateReason string

const (
	DuplicateExactFingerprint DuplicateReason = "exact fingerprint"
	DuplicateSimilarTriple    DuplicateReason = "similar triple"
)

// InsertResult is the outcome of InsertIfNew.
type InsertResult struct {
	OK          bool
	Fingerprint string
	Duplicate   bool
	Reason      DuplicateReason
	Existing    *model.RegistryEntry
}

// Registry is the in-memory, lock-guarded view of the document store.
// Writes serialize on mu so that two racing ingestions of the same
// document deduplicate correctly (spec.md §5).
type Registry struct {
	mu     sync.RWMutex
	store  Store
	logger *slog.Logger

	// triples indexes SimilarityTriple -> fingerprint for tier-2 lookup
	// without a full scan on every insert.
	triples map[string]string
}

// New loads an existing store into memory (non-fatal on load error —
// spec.md §4.2 "Load errors are non-fatal: start with an empty
// registry and log").
func New(store Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		store:   store,
		logger:  logger,
		triples: make(map[string]string),
	}
	r.load()
	return r
}

func (r *Registry) load() {
	entries, err := r.store.All()
	if err != nil {
		r.logger.Warn("registry: starting empty after load failure", slog.String("err", err.Error()))
		return
	}
	for _, e := range entries {
		r.triples[fingerprint.SimilarityTriple(e.Metadata)] = e.Fingerprint
	}
	r.logger.Info("registry: loaded", slog.Int("count", len(entries)))
}

// InsertIfNew applies the tiered duplicate policy (spec.md §4.2) and,
// absent a duplicate, creates a new entry. It does not set Summary;
// that is attached later via AttachSummary once C4 finishes.
func (r *Registry) InsertIfNew(content string, meta model.DocumentMetadata) (*InsertResult, error) {
	fp, err := fingerprint.Fingerprint(content, meta)
	if err != nil {
		return nil, fmt.Errorf("registry: compute fingerprint: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok, err := r.store.Get(fp); err != nil {
		return nil, fmt.Errorf("registry: lookup fingerprint: %w", err)
	} else if ok {
		return &InsertResult{Duplicate: true, Reason: DuplicateExactFingerprint, Existing: existing, Fingerprint: fp}, nil
	}

	triple := fingerprint.SimilarityTriple(meta)
	if existingFP, ok := r.triples[triple]; ok {
		existing, ok, err := r.store.Get(existingFP)
		if err != nil {
			return nil, fmt.Errorf("registry: lookup triple match: %w", err)
		}
		if ok {
			return &InsertResult{Duplicate: true, Reason: DuplicateSimilarTriple, Existing: existing, Fingerprint: fp}, nil
		}
	}

	preview := content
	if len(preview) > model.ContentPreviewLimit {
		preview = preview[:model.ContentPreviewLimit]
	}

	entry := &model.RegistryEntry{
		Fingerprint:    fp,
		Metadata:       meta,
		ContentHash:    fingerprint.ContentHash(content),
		FullContent:    content,
		ContentPreview: preview,
		ContentLength:  len(content),
		StoredAt:       time.Now(),
	}

	if err := r.store.Put(fp, entry); err != nil {
		r.logger.Warn("registry: save failed, keeping in-memory entry live", slog.String("err", err.Error()))
	}
	r.triples[triple] = fp

	return &InsertResult{OK: true, Fingerprint: fp}, nil
}

// AttachSummary writes the generated Summary onto an existing entry.
// Entries are otherwise immutable post-creation (spec.md §3 Ownership).
func (r *Registry) AttachSummary(fp string, summary *model.Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok, err := r.store.Get(fp)
	if err != nil {
		return fmt.Errorf("registry: lookup for summary attach: %w", err)
	}
	if !ok {
		return fmt.Errorf("registry: no entry for fingerprint %s", fp)
	}
	entry.Summary = summary
	now := time.Now()
	entry.SummaryGeneratedAt = &now

	if err := r.store.Put(fp, entry); err != nil {
		r.logger.Warn("registry: save failed after summary attach", slog.String("err", err.Error()))
	}
	return nil
}

// LookupByAccession returns the entry whose metadata carries the given
// accession number, if any.
func (r *Registry) LookupByAccession(accession string) (*model.RegistryEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := r.store.All()
	if err != nil {
		return nil, false
	}
	for _, e := range entries {
		if e.Metadata.AccessionNumber == accession {
			return e, true
		}
	}
	return nil, false
}

// Filter narrows ListAll results. CompanyFilter matches substring
// either direction (so "Apple" matches "Apple Inc." and vice versa) —
// the deliberately asymmetric rule spec.md §9 Open Question 2 calls
// out to preserve.
type Filter struct {
	CompanyFilter string
}

func matchesCompany(filter, company string) bool {
	if filter == "" {
		return true
	}
	f := strings.ToLower(filter)
	c := strings.ToLower(company)
	return strings.Contains(c, f) || strings.Contains(f, c)
}

// ListAll returns entries ordered by FilingDate descending, optionally
// narrowed by Filter.
func (r *Registry) ListAll(filter *Filter) ([]*model.RegistryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := r.store.All()
	if err != nil {
		return nil, fmt.Errorf("registry: list: %w", err)
	}

	if filter != nil && filter.CompanyFilter != "" {
		entries = lo.Filter(entries, func(e *model.RegistryEntry, _ int) bool {
			return matchesCompany(filter.CompanyFilter, e.Metadata.CompanyName)
		})
	}

	sortByFilingDateDesc(entries)
	return entries, nil
}

func sortByFilingDateDesc(entries []*model.RegistryEntry) {
	for i := 1; i < len(entries); i++ {
		j := i
		for j > 0 && entries[j-1].Metadata.FilingDate < entries[j].Metadata.FilingDate {
			entries[j-1], entries[j] = entries[j], entries[j-1]
			j--
		}
	}
}

// Stats computes the derived counts and sets spec.md §4.2 stats()
// requires: total count, distinct companies, form-type histogram, and
// filing date range (supplemented per SPEC_FULL.md "Registry stats'
// derived sets").
func (r *Registry) Stats() (*model.RegistryStats, error) {
	entries, err := r.ListAll(nil)
	if err != nil {
		return nil, err
	}

	stats := &model.RegistryStats{
		TotalDocuments: len(entries),
		FormTypes:      map[string]int{},
	}
	companySet := map[string]struct{}{}
	for _, e := range entries {
		companySet[e.Metadata.CompanyName] = struct{}{}
		stats.FormTypes[e.Metadata.FormType]++
		if stats.EarliestFiling == "" || e.Metadata.FilingDate < stats.EarliestFiling {
			stats.EarliestFiling = e.Metadata.FilingDate
		}
		if stats.LatestFiling == "" || e.Metadata.FilingDate > stats.LatestFiling {
			stats.LatestFiling = e.Metadata.FilingDate
		}
	}
	stats.Companies = lo.Keys(companySet)
	return stats, nil
}

// ResetAll clears the in-memory index and the underlying store,
// supporting the RAG gateway's destructive resetAll maintenance
// operation (spec.md §4.3).
func (r *Registry) ResetAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.store.All()
	if err != nil {
		return fmt.Errorf("registry: reset: list: %w", err)
	}
	for _, e := range entries {
		if err := r.store.Delete(e.Fingerprint); err != nil {
			r.logger.Warn("registry: reset: delete failed", slog.String("fingerprint", e.Fingerprint), slog.String("err", err.Error()))
		}
	}
	r.triples = make(map[string]string)
	return nil
}

// Close releases the underlying store's resources.
func (r *Registry) Close() error {
	return r.store.Close()
}
