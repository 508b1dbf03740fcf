// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package inventory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadPMIDs(t *testing.T) {
	tests := []struct {
		name     string
		csv      string
		want     []string
		wantSkip SkipReport
	}{
		{
			name: "clean input",
			csv:  "PMID,Title\n123456,A\n123457,B\n999999,C\n",
			want: []string{"123456", "123457", "999999"},
		},
		{
			name:     "duplicates dropped keeping first occurrence",
			csv:      "PMID\n123456\n123457\n123456\n",
			want:     []string{"123456", "123457"},
			wantSkip: SkipReport{Duplicate: 1},
		},
		{
			name:     "empty and malformed rows skipped",
			csv:      "PMID,Title\n123456,A\n,B\nnot-a-pmid,C\n123457,D\n",
			want:     []string{"123456", "123457"},
			wantSkip: SkipReport{Empty: 1, Malformed: 1},
		},
		{
			name:     "short rows skipped",
			csv:      "Title,PMID\nA,123456\nB\n",
			want:     []string{"123456"},
			wantSkip: SkipReport{Empty: 1},
		},
		{
			name: "whitespace trimmed",
			csv:  "PMID\n 123456 \n",
			want: []string{"123456"},
		},
		{
			name: "PMID column not first",
			csv:  "Title,Year,PMID\nA,2024,123456\n",
			want: []string{"123456"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, report, err := ReadPMIDs(writeCSV(t, tt.csv), zerolog.Nop())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantSkip, report)
		})
	}
}

func TestReadPMIDsMissingColumn(t *testing.T) {
	_, _, err := ReadPMIDs(writeCSV(t, "Id,Title\n1,A\n"), zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PMID")
}

func TestReadPMIDsMissingFile(t *testing.T) {
	_, _, err := ReadPMIDs(filepath.Join(t.TempDir(), "nope.csv"), zerolog.Nop())
	require.Error(t, err)
}

func TestReadItems(t *testing.T) {
	csv := "PMID,URL,Backup URL\n" +
		"123456,https://pub.example/a.pdf,https://mirror.example/a.pdf\n" +
		"123457,https://pub.example/b.pdf,\n" +
		"123456,https://dup.example/a.pdf,\n"
	items, report, err := ReadItems(writeCSV(t, csv), zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, []Item{
		{PMID: "123456", URL: "https://pub.example/a.pdf", BackupURL: "https://mirror.example/a.pdf"},
		{PMID: "123457", URL: "https://pub.example/b.pdf"},
	}, items)
	assert.Equal(t, SkipReport{Duplicate: 1}, report)
}

func TestReadItemsNoBackupColumn(t *testing.T) {
	items, _, err := ReadItems(writeCSV(t, "PMID,URL\n123456,https://pub.example/a.pdf\n"), zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Empty(t, items[0].BackupURL)
}
