package extract

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// pdfTextShowing matches literal strings fed to the PDF text-showing
// operators (Tj, ', ", and TJ arrays).
var pdfTextShowing = regexp.MustCompile(`\(((?:\\.|[^\\()])*)\)`)

var pdfEscapes = strings.NewReplacer(
	`\(`, "(",
	`\)`, ")",
	`\\`, `\`,
	`\n`, "\n",
	`\r`, "",
	`\t`, " ",
)

// extractPDF pulls text from each page's content stream. Confidence is the
// fraction of pages that yielded any text: scanned or image-only pages lower
// it.
func (e *Extractor) extractPDF(rs io.ReadSeeker) (*Result, error) {
	ctx, err := api.ReadValidateAndOptimize(rs, model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("failed to parse pdf: %w", err)
	}

	pages := ctx.PageCount
	var b strings.Builder
	pagesWithText := 0

	for page := 1; page <= pages; page++ {
		r, err := pdfcpu.ExtractPageContent(ctx, page)
		if err != nil {
			e.logger.Warn().Err(err).Int("page", page).Msg("failed to extract pdf page content")
			continue
		}
		if r == nil {
			continue
		}

		content, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read pdf page %d: %w", page, err)
		}

		text := harvestText(string(content))
		if text == "" {
			continue
		}
		pagesWithText++
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}

	confidence := 0.0
	if pages > 0 {
		confidence = float64(pagesWithText) / float64(pages)
	}

	return &Result{
		Text:       b.String(),
		Confidence: confidence,
		Pages:      pages,
	}, nil
}

// harvestText collects the literal strings a content stream shows. Encoded
// (hex or CID-mapped) text is not decoded; such pages simply contribute
// nothing and lower the confidence score.
func harvestText(content string) string {
	matches := pdfTextShowing.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return ""
	}

	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		s := strings.TrimSpace(pdfEscapes.Replace(m[1]))
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
