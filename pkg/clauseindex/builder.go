// Package clauseindex derives a clause -> page map from a PDF's page content
// streams. It is best effort: documents without extractable text simply give
// an empty index.
package clauseindex

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"compliance-navigator-be/internal/pkg/logger"
	"compliance-navigator-be/pkg/navigation"

	"github.com/patrickmn/go-cache"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var pageFileRegex = regexp.MustCompile(`Content_page_(\d+)`)

type Builder struct {
	logger logger.ILogger
	cache  *cache.Cache
}

func NewBuilder(log logger.ILogger, ttl time.Duration) *Builder {
	return &Builder{
		logger: log,
		cache:  cache.New(ttl, 2*ttl),
	}
}

// Build returns the clause index for a PDF. Results are cached by content hash.
func (b *Builder) Build(ctx context.Context, pdf []byte) (navigation.Index, error) {
	key := contentKey(pdf)
	if cached, found := b.cache.Get(key); found {
		return cached.(navigation.Index), nil
	}

	pages, err := b.extractPages(ctx, pdf)
	if err != nil {
		return nil, err
	}
	index := ScanPages(pages)

	b.cache.Set(key, index, cache.DefaultExpiration)
	b.logger.Debug("ClauseIndex", "Index built", map[string]interface{}{"pages": len(pages), "clauses": len(index)})
	return index, nil
}

func (b *Builder) extractPages(ctx context.Context, pdf []byte) (map[int]string, error) {
	workDir, err := os.MkdirTemp("", "clauseindex-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	tempFile := filepath.Join(workDir, "document.pdf")
	if err := os.WriteFile(tempFile, pdf, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write temp PDF file: %w", err)
	}

	if _, err := api.ReadContextFile(tempFile); err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outDir := filepath.Join(workDir, "pages")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	if err := api.ExtractContentFile(tempFile, outDir, nil, model.NewDefaultConfiguration()); err != nil {
		b.logger.Warn("ClauseIndex", "Content extraction failed", map[string]interface{}{"error": err.Error()})
		return map[int]string{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	files, err := os.ReadDir(outDir)
	if err != nil {
		return nil, err
	}
	pages := make(map[int]string, len(files))
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		m := pageFileRegex.FindStringSubmatch(file.Name())
		if m == nil {
			continue
		}
		pageNum, _ := strconv.Atoi(m[1])
		content, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err == nil {
			pages[pageNum] = ContentText(content)
		}
	}
	return pages, nil
}

func contentKey(pdf []byte) string {
	sum := sha256.Sum256(pdf)
	return hex.EncodeToString(sum[:])
}
