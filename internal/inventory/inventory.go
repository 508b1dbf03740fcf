// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package inventory reads PMID lists from tabular input files. The input
// CSV is the source of truth for which publications a run covers; bad rows
// are reported and skipped, never silently included.
package inventory

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// pmidPattern matches a bare PubMed identifier: one or more digits.
var pmidPattern = regexp.MustCompile(`^[0-9]+$`)

// SkipReport counts input rows dropped during parsing.
type SkipReport struct {
	Empty     int
	Malformed int
	Duplicate int
}

// Total returns the number of rows skipped.
func (r SkipReport) Total() int {
	return r.Empty + r.Malformed + r.Duplicate
}

// Item is one row of an acquisition list: a PMID plus the publisher URLs
// to try when the object store does not hold its PDF.
type Item struct {
	PMID      string
	URL       string
	BackupURL string
}

// ReadPMIDs parses the CSV at path and returns the unique PMIDs from its
// "PMID" column, in first-occurrence order. Empty, non-numeric, and
// duplicate values are logged and counted but do not abort the read. A
// missing file or a header without a PMID column is an error.
func ReadPMIDs(path string, log zerolog.Logger) ([]string, SkipReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, SkipReport{}, fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, SkipReport{}, fmt.Errorf("reading header: %w", err)
	}
	col, err := columnIndex(header, "PMID")
	if err != nil {
		return nil, SkipReport{}, err
	}

	var (
		pmids  []string
		report SkipReport
		seen   = make(map[string]int)
	)
	for row := 2; ; row++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, report, fmt.Errorf("reading row %d: %w", row, err)
		}
		if col >= len(record) {
			report.Empty++
			log.Warn().Int("row", row).Msg("row has no PMID field, skipping")
			continue
		}

		pmid := strings.TrimSpace(record[col])
		switch {
		case pmid == "":
			report.Empty++
			log.Warn().Int("row", row).Msg("empty PMID, skipping")
		case !pmidPattern.MatchString(pmid):
			report.Malformed++
			log.Warn().Int("row", row).Str("pmid", pmid).Msg("malformed PMID, skipping")
		case seen[pmid] != 0:
			report.Duplicate++
			log.Warn().Int("row", row).Int("first_row", seen[pmid]).Str("pmid", pmid).
				Msg("duplicate PMID, skipping")
		default:
			seen[pmid] = row
			pmids = append(pmids, pmid)
		}
	}

	log.Info().Int("pmids", len(pmids)).Int("skipped", report.Total()).
		Str("path", path).Msg("read PMID inventory")
	return pmids, report, nil
}

// ReadItems parses an acquisition list CSV with PMID, URL, and "Backup URL"
// columns. PMID validation matches ReadPMIDs; the URL columns may be empty
// (the acquisition stage skips blank URLs per item).
func ReadItems(path string, log zerolog.Logger) ([]Item, SkipReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, SkipReport{}, fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, SkipReport{}, fmt.Errorf("reading header: %w", err)
	}
	pmidCol, err := columnIndex(header, "PMID")
	if err != nil {
		return nil, SkipReport{}, err
	}
	urlCol, err := columnIndex(header, "URL")
	if err != nil {
		return nil, SkipReport{}, err
	}
	// The backup column is optional.
	backupCol, err := columnIndex(header, "Backup URL")
	if err != nil {
		backupCol = -1
	}

	var (
		items  []Item
		report SkipReport
		seen   = make(map[string]int)
	)
	for row := 2; ; row++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, report, fmt.Errorf("reading row %d: %w", row, err)
		}

		pmid := strings.TrimSpace(field(record, pmidCol))
		switch {
		case pmid == "":
			report.Empty++
			log.Warn().Int("row", row).Msg("empty PMID, skipping")
			continue
		case !pmidPattern.MatchString(pmid):
			report.Malformed++
			log.Warn().Int("row", row).Str("pmid", pmid).Msg("malformed PMID, skipping")
			continue
		case seen[pmid] != 0:
			report.Duplicate++
			log.Warn().Int("row", row).Int("first_row", seen[pmid]).Str("pmid", pmid).
				Msg("duplicate PMID, skipping")
			continue
		}
		seen[pmid] = row

		items = append(items, Item{
			PMID:      pmid,
			URL:       strings.TrimSpace(field(record, urlCol)),
			BackupURL: strings.TrimSpace(field(record, backupCol)),
		})
	}

	log.Info().Int("items", len(items)).Int("skipped", report.Total()).
		Str("path", path).Msg("read acquisition list")
	return items, report, nil
}

// columnIndex finds name in the header row, tolerating whitespace and a
// UTF-8 BOM on the first cell.
func columnIndex(header []string, name string) (int, error) {
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
		if h == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("input file does not contain a %q column", name)
}

func field(record []string, col int) string {
	if col < 0 || col >= len(record) {
		return ""
	}
	return record[col]
}
