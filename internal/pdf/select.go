package pdf

import (
	"context"
	"fmt"
	"unicode"
)

// MinTextLength is the minimum number of alphanumeric characters the first
// page must yield for a backend to count as usable. Filters out PDFs whose
// "text" is only positioning noise.
const MinTextLength = 10

// Select probes the ranked backends against the document's first page and
// returns the first one that yields meaningful text. Backends are tried in
// order of reliability; a probe failure just moves on to the next.
func Select(ctx context.Context, backends []Backend, path string) (Backend, error) {
	if len(backends) == 0 {
		return nil, fmt.Errorf("no extraction backends configured")
	}
	var lastErr error
	for _, b := range backends {
		pages, err := b.ExtractText(ctx, path, 1)
		if err != nil {
			lastErr = err
			continue
		}
		if len(pages) > 0 && meaningfulChars(pages[0]) > MinTextLength {
			return b, nil
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("no backend extracted text: %w", lastErr)
	}
	return nil, fmt.Errorf("no backend extracted text")
}

// ByName returns the backend with the given name, if present.
func ByName(backends []Backend, name string) (Backend, bool) {
	for _, b := range backends {
		if b.Name() == name {
			return b, true
		}
	}
	return nil, false
}

func meaningfulChars(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
