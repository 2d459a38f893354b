package roiset

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Sentinel outline names delimiting the hemispheres
const (
	LeftName  = "Left"
	RightName = "Right"
)

// ErrNoOutlines is returned when an archive holds no decodable outline
var ErrNoOutlines = errors.New("archive contains no roi outlines")

// Reader opens outline archives
type Reader struct {
	logger *slog.Logger
}

// NewReader creates an archive reader. A nil logger uses slog.Default().
func NewReader(logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{logger: logger}
}

// Open decodes every ".roi" entry of the archive at path, in archive order.
// Records of a type that encloses no area are skipped with a warning; any
// other decode failure aborts. An archive without outlines yields ErrNoOutlines.
func (r *Reader) Open(path string) ([]Outline, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open roi archive: %w", err)
	}
	defer zr.Close()

	var outlines []Outline
	for _, f := range zr.File {
		if !strings.HasSuffix(f.Name, ".roi") {
			continue
		}
		data, err := readEntry(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		o, err := Decode(f.Name, data)
		if errors.Is(err, ErrUnsupportedType) {
			r.logger.Warn("Skipping roi without area", slog.String("entry", f.Name), slog.String("archive", path))
			continue
		}
		if err != nil {
			return nil, err
		}
		outlines = append(outlines, o)
	}

	if len(outlines) == 0 {
		r.logger.Error("This ZIP archive does not contain '.roi' files", slog.String("path", path))
		return nil, fmt.Errorf("%w: %s", ErrNoOutlines, path)
	}
	r.logger.Debug("Decoded roi archive", slog.String("path", path), slog.Int("outlines", len(outlines)))
	return outlines, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// WriteArchive writes outlines as a roi archive, one polygon record per outline
func WriteArchive(path string, outlines []Outline) (retErr error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create roi archive: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && retErr == nil {
			retErr = cerr
		}
	}()

	zw := zip.NewWriter(f)
	for i, o := range outlines {
		data, err := Encode(o)
		if err != nil {
			return err
		}
		w, err := zw.Create(fmt.Sprintf("%04d-%s.roi", i, o.Name))
		if err != nil {
			return fmt.Errorf("create entry %s: %w", o.Name, err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("write entry %s: %w", o.Name, err)
		}
	}
	return zw.Close()
}
