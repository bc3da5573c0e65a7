package grid

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// readZIP extracts the single file of a ZIP archive and reads it with the declared
// format, or with the format of its extension when none is declared.
func readZIP(ctx context.Context, path string, opts Options) (*Result, error) {
	if opts.TempDir != "" {
		if err := os.MkdirAll(opts.TempDir, 0o755); err != nil {
			return nil, eris.Wrap(err, "zip: create temp root")
		}
	}
	destDir, err := os.MkdirTemp(opts.TempDir, "grid-*")
	if err != nil {
		return nil, eris.Wrap(err, "zip: create temp dir")
	}
	defer os.RemoveAll(destDir) //nolint:errcheck

	extracted, err := extractZIPSingle(path, destDir)
	if err != nil {
		return nil, err
	}

	inner := opts.Format
	if inner == FormatAuto || inner == FormatZIP {
		inner = DetectFormat(extracted)
	}
	if inner == FormatZIP {
		return nil, eris.Errorf("zip: nested archive %q not supported", filepath.Base(extracted))
	}
	opts.Format = inner
	if inner == FormatXLSX {
		return readXLSX(extracted, opts)
	}
	return readDelimitedFile(ctx, extracted, opts)
}

// extractZIPSingle extracts the single file from a ZIP that contains exactly one file.
func extractZIPSingle(zipPath, destDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var files []*zip.File
	for _, f := range r.File {
		if !f.FileInfo().IsDir() {
			files = append(files, f)
		}
	}

	if len(files) != 1 {
		return "", eris.Errorf("zip: expected exactly 1 file, got %d", len(files))
	}

	return extractZIPEntry(files[0], destDir)
}

func extractZIPEntry(f *zip.File, destDir string) (string, error) {
	destPath := filepath.Join(destDir, filepath.Base(f.Name))
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("zip: illegal path %q", f.Name)
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrap(err, "zip: open entry")
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(destPath) //nolint:gosec
	if err != nil {
		return "", eris.Wrap(err, "zip: create file")
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, rc); err != nil { //nolint:gosec
		return "", eris.Wrap(err, "zip: write file")
	}

	return destPath, nil
}
