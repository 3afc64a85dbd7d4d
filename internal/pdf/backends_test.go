package pdf

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	stdout []byte
	stderr []byte
	err    error

	gotName string
	gotArgs []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.gotName = name
	f.gotArgs = args
	return f.stdout, f.stderr, f.err
}

func TestPopplerBackendSplitsPages(t *testing.T) {
	runner := &fakeRunner{stdout: []byte("PAGINA UNO\fPAGINA DOS\f")}
	b := NewPopplerBackend("pdftotext")
	b.runner = runner

	pages, err := b.ExtractText(context.Background(), "/tmp/f.pdf", 2)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "PAGINA UNO", pages[0])
	assert.Equal(t, "PAGINA DOS", pages[1])

	assert.Equal(t, "pdftotext", runner.gotName)
	assert.Contains(t, runner.gotArgs, "-layout")
	assert.Contains(t, runner.gotArgs, "-l")
	assert.Contains(t, runner.gotArgs, "2")
	// Output goes to stdout, not a temp file.
	assert.Equal(t, "-", runner.gotArgs[len(runner.gotArgs)-1])
}

func TestPopplerBackendOmitsPageCapWhenUnset(t *testing.T) {
	runner := &fakeRunner{stdout: []byte("SOLO UNA PAGINA")}
	b := NewPopplerBackend("")
	b.runner = runner

	pages, err := b.ExtractText(context.Background(), "/tmp/f.pdf", 0)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.NotContains(t, runner.gotArgs, "-l")
	assert.Equal(t, "pdftotext", b.Binary)
}

func TestPopplerBackendCommandFailure(t *testing.T) {
	runner := &fakeRunner{stderr: []byte("Syntax Error: bad xref"), err: fmt.Errorf("exit status 1")}
	b := NewPopplerBackend("pdftotext")
	b.runner = runner

	_, err := b.ExtractText(context.Background(), "/tmp/f.pdf", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad xref")
}
