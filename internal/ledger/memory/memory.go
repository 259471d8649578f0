package memory

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"rapport/internal/ledger"
)

// Store is an in-process ledger. It copies rows on the way in and out so
// callers can't mutate its state.
type Store struct {
	mu   sync.Mutex
	rows [][]string
}

var _ ledger.Ledger = (*Store)(nil)

// New returns a store holding headers as row 0 followed by rows.
func New(headers []string, rows ...[]string) *Store {
	s := &Store{}
	if len(headers) > 0 {
		s.rows = append(s.rows, copyRow(headers))
	}
	for _, r := range rows {
		s.rows = append(s.rows, copyRow(r))
	}
	return s
}

// NewFromFiles seeds the store from <base>/seed_ledger.csv when present.
// Without a seed file the ledger holds only the default header row.
func NewFromFiles(base string) *Store {
	rows := readCSV(filepath.Join(base, "seed_ledger.csv"))
	if len(rows) == 0 {
		return New(ledger.DefaultHeaders)
	}
	return New(rows[0], rows[1:]...)
}

func (s *Store) AllRows(_ context.Context) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.rows))
	for i, r := range s.rows {
		out[i] = copyRow(r)
	}
	return out, nil
}

func (s *Store) AppendRow(_ context.Context, cells []string) error {
	if len(cells) == 0 {
		return errors.New("empty row")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, copyRow(cells))
	return nil
}

// Len returns the number of rows including the header row.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func copyRow(r []string) []string {
	return append([]string(nil), r...)
}

// readCSV reads a semicolon separated seed file, skipping "#" comment lines.
func readCSV(path string) [][]string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var b strings.Builder
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "#") || strings.TrimSpace(line) == "" {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	r := csv.NewReader(strings.NewReader(b.String()))
	r.Comma = ';'
	r.FieldsPerRecord = -1
	var out [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out
		}
		out = append(out, rec)
	}
	return out
}
