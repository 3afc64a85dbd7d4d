// Package pdf provides ranked text-extraction backends for text-based PDF
// invoices. The native backend parses the file in-process; the poppler
// backend shells out to pdftotext. Scanned documents are out of scope, so
// there is no OCR fallback here.
package pdf

import (
	"context"
	"fmt"
	"strings"

	ledongthuc "github.com/ledongthuc/pdf"
)

// Backend extracts per-page text from a PDF, capped at maxPages.
// Implementations return one string per page, in page order.
type Backend interface {
	Name() string
	ExtractText(ctx context.Context, path string, maxPages int) ([]string, error)
}

// NativeBackend reads the PDF in-process via github.com/ledongthuc/pdf.
type NativeBackend struct{}

func (NativeBackend) Name() string { return "native" }

func (NativeBackend) ExtractText(_ context.Context, path string, maxPages int) ([]string, error) {
	f, r, err := ledongthuc.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	total := r.NumPage()
	if maxPages > 0 && total > maxPages {
		total = maxPages
	}

	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, strings.TrimSpace(text))
	}
	return pages, nil
}

// PopplerBackend shells out to pdftotext (poppler-utils).
type PopplerBackend struct {
	Binary string // defaults to "pdftotext"
	runner Runner
}

// NewPopplerBackend builds a poppler backend around the given binary.
func NewPopplerBackend(binary string) *PopplerBackend {
	if binary == "" {
		binary = "pdftotext"
	}
	return &PopplerBackend{Binary: binary, runner: execRunner{}}
}

func (b *PopplerBackend) Name() string { return "poppler" }

func (b *PopplerBackend) ExtractText(ctx context.Context, path string, maxPages int) ([]string, error) {
	// pdftotext -layout -enc UTF-8 -eol unix [-l maxPages] <path> -
	args := []string{"-layout", "-enc", "UTF-8", "-eol", "unix"}
	if maxPages > 0 {
		args = append(args, "-l", fmt.Sprintf("%d", maxPages))
	}
	args = append(args, path, "-")

	out, errb, err := b.runner.Run(ctx, b.Binary, args...)
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w: %s", err, truncate(string(errb), 512))
	}

	// A form-feed \f separates pages in pdftotext output.
	raw := strings.Split(string(out), "\f")
	pages := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p == "" && len(pages) == len(raw)-1 {
			// trailing empty chunk after the final form feed
			continue
		}
		pages = append(pages, p)
	}
	return pages, nil
}

// Inspect opens the document natively and reports its page count. An error
// means the file is not a structurally valid PDF.
func Inspect(path string) (pages int, err error) {
	f, r, err := ledongthuc.Open(path)
	if err != nil {
		return 0, fmt.Errorf("corrupt or invalid pdf: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	n := r.NumPage()
	if n == 0 {
		return 0, fmt.Errorf("pdf contains no pages")
	}
	return n, nil
}
