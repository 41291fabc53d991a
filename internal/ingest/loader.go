// Package ingest turns source documents into topic-tagged passages that are
// handed to the external question generator.
package ingest

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	log "github.com/sirupsen/logrus"

	"qbank/internal/domain"
)

// LoadDocuments reads every .txt and .pdf file named by paths. Entries may be glob patterns.
// Files with other extensions are skipped.
func LoadDocuments(paths []string) ([]domain.Document, error) {
	var documents []domain.Document
	for _, p := range paths {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", p, err)
		}
		if matches == nil {
			if strings.ContainsAny(p, "*?[") {
				log.WithField("pattern", p).Debug("pattern matched no files")
				continue
			}
			matches = []string{p}
		}
		for _, m := range matches {
			var content string
			switch strings.ToLower(filepath.Ext(m)) {
			case ".txt":
				data, err := os.ReadFile(m)
				if err != nil {
					return nil, err
				}
				content = string(data)
			case ".pdf":
				content, err = readPDF(m)
				if err != nil {
					return nil, fmt.Errorf("read %s: %w", m, err)
				}
			default:
				log.WithField("path", m).Debug("skipping unsupported file")
				continue
			}
			if strings.TrimSpace(content) == "" {
				log.WithField("path", m).Warn("document has no text layer")
				continue
			}
			documents = append(documents, domain.Document{ID: hashString(m), Path: m, Content: content})
		}
	}
	if len(documents) == 0 {
		return nil, domain.ErrNoDocuments
	}
	return documents, nil
}

func readPDF(path string) (string, error) {
	f, rdr, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	b, err := rdr.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, b); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
