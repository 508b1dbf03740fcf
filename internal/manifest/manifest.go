// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package manifest reads and writes the resolution artifacts: the found
// list ("pmid,uri" per line) and the missing list (one PMID per line).
// The found list is the hand-off between the resolve and fetch stages and
// can be re-fed to fetch from a previous run.
package manifest

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/pmid-mirror/internal/bucket"
	"github.com/pdiddy/pmid-mirror/pkg/types"
)

// WriteFound writes the found list to path, one "pmid,uri" record per line.
func WriteFound(path string, found []types.Location) error {
	var sb strings.Builder
	for _, loc := range found {
		fmt.Fprintf(&sb, "%s,%s\n", loc.PMID, loc.URI)
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("writing found list: %w", err)
	}
	return nil
}

// WriteMissing writes the missing list to path, one PMID per line.
func WriteMissing(path string, missing []string) error {
	var sb strings.Builder
	for _, pmid := range missing {
		sb.WriteString(pmid)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("writing missing list: %w", err)
	}
	return nil
}

// ReadFound parses a found list back into locations. Blank lines are
// ignored; malformed lines are logged and skipped so one bad record does
// not block a re-run.
func ReadFound(path string, log zerolog.Logger) ([]types.Location, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening found list: %w", err)
	}
	defer f.Close()

	var locations []types.Location
	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		pmid, uri, ok := strings.Cut(text, ",")
		if !ok || pmid == "" || uri == "" {
			log.Warn().Int("line", line).Str("text", text).Msg("malformed found record, skipping")
			continue
		}
		_, key, err := bucket.ParseURI(uri)
		if err != nil {
			log.Warn().Int("line", line).Err(err).Msg("malformed object URI, skipping")
			continue
		}
		locations = append(locations, types.Location{PMID: pmid, Key: key, URI: uri})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading found list: %w", err)
	}
	return locations, nil
}
