package registry

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/finsight/analyst/internal/model"
)

// badgerRecord is the on-disk shape badgerhold stores. It holds the
// registry entry plus a copy of the fingerprint tagged as the record
// key; records are keyed by the fingerprint string passed to Upsert,
// and no secondary indexes are declared.
type badgerRecord struct {
	Fingerprint string `boltholdKey:"Fingerprint"`
	Entry       *model.RegistryEntry
}

// BadgerStore is the production Store backing the registry: an
// embedded, transactional KV store so the registry survives process
// restarts without an external database (spec.md §3 invariant 5),
// grounded on ternarybob-quaero's badgerhold-backed document storage.
type BadgerStore struct {
	store *badgerhold.Store
}

// NewBadgerStore opens (creating if absent) a badger database rooted
// at dir.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badgerhold.DefaultOptions
	opts.Dir = dir
	opts.ValueDir = dir
	opts.Options = opts.Options.WithLogger(nopBadgerLogger{})

	store, err := badgerhold.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("registry: open badger store at %s: %w", dir, err)
	}
	return &BadgerStore{store: store}, nil
}

func (b *BadgerStore) Put(fp string, entry *model.RegistryEntry) error {
	rec := &badgerRecord{Fingerprint: fp, Entry: entry}
	err := b.store.Upsert(fp, rec)
	if err != nil {
		return fmt.Errorf("registry: upsert %s: %w", fp, err)
	}
	return nil
}

func (b *BadgerStore) Get(fp string) (*model.RegistryEntry, bool, error) {
	var rec badgerRecord
	err := b.store.Get(fp, &rec)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("registry: get %s: %w", fp, err)
	}
	return rec.Entry, true, nil
}

func (b *BadgerStore) All() ([]*model.RegistryEntry, error) {
	var recs []badgerRecord
	if err := b.store.Find(&recs, nil); err != nil {
		return nil, fmt.Errorf("registry: scan all: %w", err)
	}
	entries := make([]*model.RegistryEntry, 0, len(recs))
	for _, r := range recs {
		entries = append(entries, r.Entry)
	}
	return entries, nil
}

func (b *BadgerStore) Delete(fp string) error {
	err := b.store.Delete(fp, &badgerRecord{})
	if err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("registry: delete %s: %w", fp, err)
	}
	return nil
}

func (b *BadgerStore) Close() error {
	return b.store.Close()
}

var _ badger.Logger = (*nopBadgerLogger)(nil)

// nopBadgerLogger silences badger's own verbose internal logging; this
// module logs at the registry layer via slog instead (spec.md's
// ambient logging choice, see SPEC_FULL.md).
type nopBadgerLogger struct{}

func (nopBadgerLogger) Errorf(string, ...interface{})   {}
func (nopBadgerLogger) Warningf(string, ...interface{}) {}
func (nopBadgerLogger) Infof(string, ...interface{})    {}
func (nopBadgerLogger) Debugf(string, ...interface{})   {}
