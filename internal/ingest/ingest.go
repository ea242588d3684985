package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"lyra-care/internal/logger"
)

// processedSuffix replaces the extension of an uploaded file to form the
// path of its normalized JSON sibling.
const processedSuffix = "_processed.json"

var (
	// ErrTrailingData is returned when a JSON upload holds more than one value.
	ErrTrailingData = errors.New("unexpected data after top-level JSON value")
	// ErrInvalidUTF8 is returned for uploads that are not UTF-8 text.
	ErrInvalidUTF8 = errors.New("file is not valid UTF-8")
)

// Ingestor writes uploaded patient files to a local directory and turns them
// into canonical JSON documents that can be pushed to the knowledge index.
type Ingestor struct {
	Dir string

	// Tabular converts .csv and .xlsx uploads into row objects.  When unset
	// every upload, whatever its extension, must be JSON.
	Tabular bool

	log *logrus.Entry
}

// NewIngestor returns an Ingestor writing into dir.  The directory is created
// on first Save.
func NewIngestor(dir string) *Ingestor {
	return &Ingestor{Dir: dir, log: logger.For("ingest")}
}

// Ingest saves the upload and normalizes it, returning the normalized path.
func (in *Ingestor) Ingest(name string, r io.Reader) (string, error) {
	saved, err := in.Save(name, r)
	if err != nil {
		return "", err
	}
	return in.Normalize(saved)
}

// Save copies r verbatim to Dir using the base name of the client-supplied
// filename.  An existing file with the same name is overwritten.
func (in *Ingestor) Save(name string, r io.Reader) (string, error) {
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." {
		return "", fmt.Errorf("invalid upload filename %q", name)
	}
	if err := os.MkdirAll(in.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	path := filepath.Join(in.Dir, base)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	in.log.WithFields(logrus.Fields{"path": path, "bytes": n}).Info("upload saved")
	return path, nil
}

// Normalize decodes the file at path and writes it back out as indented
// JSON next to the uploaded file.  The file must be UTF-8 JSON unless Tabular
// is set, in which case .csv and .xlsx files are converted to row objects.
func (in *Ingestor) Normalize(path string) (string, error) {
	var (
		doc interface{}
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); {
	case in.Tabular && ext == ".csv":
		doc, err = decodeCSV(path)
	case in.Tabular && ext == ".xlsx":
		doc, err = decodeXLSX(path)
	default:
		doc, err = decodeJSON(path)
	}
	if err != nil {
		return "", err
	}

	out, err := encode(doc)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", path, err)
	}
	dst := NormalizedPath(path)
	if err := os.WriteFile(dst, out, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", dst, err)
	}
	in.log.WithFields(logrus.Fields{"source": path, "path": dst}).Info("document normalized")
	return dst, nil
}

// NormalizedPath returns the sibling path Normalize writes to.
func NormalizedPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + processedSuffix
}

func decodeJSON(path string) (interface{}, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("decode %s: %w", path, ErrInvalidUTF8)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("decode %s: %w", path, ErrTrailingData)
	}
	return doc, nil
}

// encode produces the canonical form: 4-space indent, no HTML escaping,
// map keys sorted, trailing newline.
func encode(doc interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
