package extract

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testExtractor() *Extractor {
	return New(zerolog.New(os.Stdout).Level(zerolog.Disabled))
}

func TestExtract_PlainText(t *testing.T) {
	e := testExtractor()

	result, err := e.Extract(strings.NewReader("meeting notes from tuesday"), "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "meeting notes from tuesday", result.Text)
	assert.Equal(t, 1.0, result.Confidence)
	assert.Equal(t, 0, result.Pages)
}

func TestExtract_Markdown(t *testing.T) {
	e := testExtractor()

	result, err := e.Extract(strings.NewReader("# Title\n\nbody"), "readme.md")
	require.NoError(t, err)
	assert.Equal(t, "# Title\n\nbody", result.Text)
}

func TestExtract_UnnamedTextPassesThrough(t *testing.T) {
	e := testExtractor()

	result, err := e.Extract(strings.NewReader("pasted snippet"), "")
	require.NoError(t, err)
	assert.Equal(t, "pasted snippet", result.Text)
}

func TestExtract_BinaryRejected(t *testing.T) {
	e := testExtractor()

	_, err := e.Extract(bytes.NewReader([]byte{0x7f, 'E', 'L', 'F', 0x00, 0x01, 0x02}), "program.bin")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	// Null bytes disqualify even a .txt name
	_, err = e.Extract(bytes.NewReader([]byte("text\x00more")), "weird.txt")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestExtract_CorruptPDF(t *testing.T) {
	e := testExtractor()

	_, err := e.Extract(strings.NewReader("not actually a pdf"), "report.pdf")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnsupportedFormat)
}

func TestHarvestText(t *testing.T) {
	content := `BT /F1 12 Tf (Hello) Tj ( World) Tj ET
BT [(spaced) -250 (array)] TJ ET`

	assert.Equal(t, "Hello World spaced array", harvestText(content))
	assert.Equal(t, "", harvestText("q 1 0 0 1 0 0 cm /Im0 Do Q"))

	// Escaped parentheses and backslashes survive unescaping
	assert.Equal(t, `f(x) a\b`, harvestText(`(f\(x\)) Tj (a\\b) Tj`))
}

func TestLooksBinary(t *testing.T) {
	assert.False(t, looksBinary([]byte("ordinary text with\nnewlines\tand tabs")))
	assert.True(t, looksBinary([]byte("has\x00null")))
	assert.True(t, looksBinary([]byte{0x01, 0x02, 0x03, 0x04, 'a'}))
	assert.False(t, looksBinary(nil))
}
