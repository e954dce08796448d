package vectorstore

import (
	"context"
	"errors"
	"io"
	"maps"
	"sync"

	"github.com/inflect-gtm/inflect/pkg/adapter"
	"github.com/inflect-gtm/inflect/pkg/model"
	"github.com/inflect-gtm/inflect/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

const (
	// Dimension is the fixed embedding size of every index
	Dimension = 384

	IndexFile    = "index.vec"
	MetadataFile = "metadata.json"

	// TextKey is the metadata key holding the source text
	TextKey = "text"
)

var (
	ErrStorageCorruption      = goerr.New("vector store storage is corrupted")
	ErrDimensionMismatch      = goerr.New("embedding dimension mismatch")
	ErrEmbeddingModelMismatch = goerr.New("embedding model differs from persisted index")
)

// Store is an append-only nearest-neighbor index over documents, persisted as
// an index file and a metadata file whose positions correspond 1:1.
//
// Writes go index first, then metadata. A crash between the two leaves a
// count mismatch that the next Load reports as ErrStorageCorruption.
// The file pair assumes a single writer process.
type Store struct {
	mu       sync.RWMutex
	embedder adapter.Embedder
	storage  adapter.Storage
	index    *flatIndex
	metadata []map[string]any
}

// New creates a store without touching storage. Call Load before use.
func New(embedder adapter.Embedder, storage adapter.Storage) (*Store, error) {
	if embedder.Dimensions() != Dimension {
		return nil, goerr.Wrap(ErrDimensionMismatch, "embedder does not produce store-sized vectors",
			goerr.V("expected", Dimension),
			goerr.V("actual", embedder.Dimensions()),
			goerr.V("model", embedder.Model()))
	}

	return &Store{
		embedder: embedder,
		storage:  storage,
		index:    newFlatIndex(Dimension, embedder.Model()),
	}, nil
}

// Open creates a store and loads any persisted state
func Open(ctx context.Context, embedder adapter.Embedder, storage adapter.Storage) (*Store, error) {
	s, err := New(embedder, storage)
	if err != nil {
		return nil, err
	}
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Load reads the persisted pair when both artifacts exist, and starts empty when
// neither does. Exactly one artifact, or a count mismatch, is corruption.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idxR, idxErr := s.storage.Get(ctx, IndexFile)
	if idxErr == nil {
		defer idxR.Close()
	}
	metaR, metaErr := s.storage.Get(ctx, MetadataFile)
	if metaErr == nil {
		defer metaR.Close()
	}

	idxMissing := errors.Is(idxErr, adapter.ErrObjectNotFound)
	metaMissing := errors.Is(metaErr, adapter.ErrObjectNotFound)

	if idxErr != nil && !idxMissing {
		return goerr.Wrap(idxErr, "failed to open index")
	}
	if metaErr != nil && !metaMissing {
		return goerr.Wrap(metaErr, "failed to open metadata")
	}

	switch {
	case idxMissing && metaMissing:
		logging.From(ctx).Debug("no persisted vector store, starting empty")
		s.index = newFlatIndex(Dimension, s.embedder.Model())
		s.metadata = nil
		return nil
	case idxMissing:
		return goerr.Wrap(ErrStorageCorruption, "metadata exists without index", goerr.V("missing", IndexFile))
	case metaMissing:
		return goerr.Wrap(ErrStorageCorruption, "index exists without metadata", goerr.V("missing", MetadataFile))
	}

	index, err := decodeIndex(idxR, Dimension)
	if err != nil {
		return err
	}
	metadata, err := decodeMetadata(metaR)
	if err != nil {
		return err
	}

	if index.model != s.embedder.Model() {
		return goerr.Wrap(ErrEmbeddingModelMismatch, "re-index documents or switch embedding model",
			goerr.V("persisted", index.model),
			goerr.V("configured", s.embedder.Model()))
	}
	if index.Len() != len(metadata) {
		return goerr.Wrap(ErrStorageCorruption, "index and metadata sizes differ",
			goerr.V("vectors", index.Len()),
			goerr.V("metadata", len(metadata)))
	}

	s.index = index
	s.metadata = metadata

	logging.From(ctx).Debug("vector store loaded", "documents", len(metadata), "model", index.model)
	return nil
}

// AddDocuments embeds and appends docs in order, then persists the pair.
// The source text is stored in metadata under TextKey, replacing any value there.
func (s *Store) AddDocuments(ctx context.Context, docs []model.Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return goerr.Wrap(err, "failed to embed documents", goerr.V("count", len(docs)))
	}
	if len(vectors) != len(texts) {
		return goerr.New("embedder returned wrong number of vectors",
			goerr.V("expected", len(texts)),
			goerr.V("actual", len(vectors)))
	}

	metas := make([]map[string]any, len(docs))
	for i, d := range docs {
		meta := make(map[string]any, len(d.Metadata)+1)
		maps.Copy(meta, d.Metadata)
		meta[TextKey] = d.Text
		metas[i] = meta
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.index.Len()
	if err := s.index.add(vectors); err != nil {
		return err
	}
	s.metadata = append(s.metadata, metas...)

	if err := s.persist(ctx); err != nil {
		s.index.truncate(before)
		s.metadata = s.metadata[:before]
		return err
	}

	logging.From(ctx).Info("documents added to vector store", "added", len(docs), "total", len(s.metadata))
	return nil
}

// Query returns up to topK documents by ascending distance. Distance is the
// squared Euclidean distance between embeddings.
func (s *Store) Query(ctx context.Context, text string, topK int) ([]*model.RetrievedDocument, error) {
	s.mu.RLock()
	empty := s.index.Len() == 0
	s.mu.RUnlock()

	if topK <= 0 || empty {
		return []*model.RetrievedDocument{}, nil
	}

	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query")
	}
	if len(vectors) != 1 || len(vectors[0]) != Dimension {
		return nil, goerr.Wrap(ErrDimensionMismatch, "query embedding has unexpected shape")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := s.index.search(vectors[0], topK)
	results := make([]*model.RetrievedDocument, 0, len(hits))
	for _, h := range hits {
		if h.id >= len(s.metadata) {
			continue
		}
		meta := maps.Clone(s.metadata[h.id])
		text, _ := meta[TextKey].(string)
		results = append(results, &model.RetrievedDocument{
			Text:     text,
			Metadata: meta,
			Distance: h.distance,
		})
	}

	return results, nil
}

// Clear removes every document and persists the empty pair
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.index = newFlatIndex(Dimension, s.embedder.Model())
	s.metadata = nil

	if err := s.persist(ctx); err != nil {
		return err
	}

	logging.From(ctx).Info("vector store cleared")
	return nil
}

// Len returns the number of stored documents
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Len()
}

// Model returns the embedding model the index is bound to
func (s *Store) Model() string {
	return s.embedder.Model()
}

func (s *Store) persist(ctx context.Context) error {
	if err := s.write(ctx, IndexFile, func(w io.Writer) error {
		return encodeIndex(w, s.index)
	}); err != nil {
		return err
	}

	return s.write(ctx, MetadataFile, func(w io.Writer) error {
		return encodeMetadata(w, s.metadata)
	})
}

func (s *Store) write(ctx context.Context, key string, encode func(io.Writer) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := s.storage.Put(ctx, key)
	if err != nil {
		return goerr.Wrap(err, "failed to open storage writer", goerr.V("key", key))
	}

	if err := encode(w); err != nil {
		cancel()
		adapter.Abort(w)
		return goerr.Wrap(err, "failed to write vector store", goerr.V("key", key))
	}

	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to commit vector store", goerr.V("key", key))
	}
	return nil
}
