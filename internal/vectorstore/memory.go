package vectorstore

import (
	"bufio"
	"cmp"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/hyperjump/yomu/internal/models"
	"github.com/hyperjump/yomu/pkg/utils"
)

// MemoryBackend keeps rows in memory and scores them by brute-force cosine similarity.
// With a path set, every insert is flushed to disk and the file is loaded on open.
type MemoryBackend struct {
	dimensions int
	path       string
	rows       []models.Row
	mu         sync.RWMutex
}

// NewMemoryBackend returns an empty backend. dimensions of 0 accepts any vector length.
// If path names an existing file, its rows are loaded.
func NewMemoryBackend(dimensions int, path string) (*MemoryBackend, error) {
	if dimensions < 0 {
		return nil, fmt.Errorf("dimensions must not be negative")
	}
	m := &MemoryBackend{dimensions: dimensions, path: path}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MemoryBackend) Name() string { return BackendMemory }

// Insert appends rows. A dimension mismatch rejects the whole batch.
func (m *MemoryBackend) Insert(ctx context.Context, rows []models.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkRows(rows, m.dimensions); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := len(m.rows)
	for _, r := range rows {
		r.Embedding = slices.Clone(r.Embedding)
		r.Metadata = r.Metadata.Clone()
		m.rows = append(m.rows, r)
	}
	if err := m.save(); err != nil {
		m.rows = m.rows[:prev]
		return err
	}
	return nil
}

// SimilaritySearch scores every row against embedding.
func (m *MemoryBackend) SimilaritySearch(ctx context.Context, embedding []float32, threshold float64, limit int) ([]*models.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkQuery(embedding, m.dimensions); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := make([]*models.SearchResult, 0)
	for _, r := range m.rows {
		sim := utils.Cosine(embedding, r.Embedding)
		if sim < threshold {
			continue
		}
		results = append(results, &models.SearchResult{
			DocumentID: r.DocumentID,
			Content:    r.Content,
			Metadata:   r.Metadata.Clone(),
			Similarity: sim,
		})
	}
	slices.SortStableFunc(results, func(a, b *models.SearchResult) int {
		return cmp.Compare(b.Similarity, a.Similarity)
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *MemoryBackend) Count(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.rows)), nil
}

// Close is a no-op; rows are flushed on every insert.
func (m *MemoryBackend) Close() error {
	return nil
}

// save writes all rows to a temp file and renames it over path. Caller holds mu.
// Format: dimensions (4), n (4), then per row: document id, content and
// metadata JSON as length-prefixed strings, vector length (4), vector.
func (m *MemoryBackend) save() error {
	if m.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create store file: %w", err)
	}
	w := bufio.NewWriter(f)
	err = m.encode(w)
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, m.path)
}

func (m *MemoryBackend) encode(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(m.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(m.rows))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for _, r := range m.rows {
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		for _, s := range [][]byte{[]byte(r.DocumentID), []byte(r.Content), meta} {
			if err := writeBytes(w, s); err != nil {
				return err
			}
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(r.Embedding))); err != nil {
			return fmt.Errorf("write vector len: %w", err)
		}
		if _, err := w.Write(float32SliceToBytes(r.Embedding)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// load replaces the in-memory rows with the file contents. A missing file leaves the backend empty.
func (m *MemoryBackend) load() error {
	if m.path == "" {
		return nil
	}
	f, err := os.Open(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open store file: %w", err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var dim, n uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if m.dimensions > 0 && int(dim) != m.dimensions {
		return fmt.Errorf("dimension mismatch: file has %d, store expects %d", dim, m.dimensions)
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	rows := make([]models.Row, 0, n)
	for i := uint32(0); i < n; i++ {
		var row models.Row
		docID, err := readBytes(r)
		if err != nil {
			return err
		}
		content, err := readBytes(r)
		if err != nil {
			return err
		}
		meta, err := readBytes(r)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(meta, &row.Metadata); err != nil {
			return fmt.Errorf("unmarshal metadata: %w", err)
		}
		var vlen uint32
		if err := binary.Read(r, binary.LittleEndian, &vlen); err != nil {
			return fmt.Errorf("read vector len: %w", err)
		}
		buf := make([]byte, int(vlen)*4)
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		row.DocumentID = string(docID)
		row.Content = string(content)
		row.Embedding = bytesToFloat32Slice(buf)
		rows = append(rows, row)
	}
	m.rows = rows
	return nil
}

func writeBytes(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return fmt.Errorf("write len: %w", err)
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("write bytes: %w", err)
	}
	return nil
}

func readBytes(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("read len: %w", err)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("read bytes: %w", err)
	}
	return b, nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
