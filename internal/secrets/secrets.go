// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key
// name and the file contents (trimmed) are the value.
//
// Supported key files: aws-access-key-id, aws-secret-access-key,
// aws-session-token, aws-region.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// awsEnv maps secret file names to the environment variables the S3
// bucket driver reads.
var awsEnv = map[string]string{
	"aws-access-key-id":     "AWS_ACCESS_KEY_ID",
	"aws-secret-access-key": "AWS_SECRET_ACCESS_KEY",
	"aws-session-token":     "AWS_SESSION_TOKEN",
	"aws-region":            "AWS_REGION",
}

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// ExportAWS sets the AWS environment variables from loaded secrets so the
// S3 bucket driver can pick them up. Variables already set in the
// environment win over secret files. It returns the number of variables set.
func ExportAWS(secrets map[string]string) int {
	set := 0
	for name, envVar := range awsEnv {
		value, ok := secrets[name]
		if !ok || os.Getenv(envVar) != "" {
			continue
		}
		os.Setenv(envVar, value)
		set++
	}
	return set
}

// HaveAWSCredentials reports whether the environment carries the minimum
// credentials the S3 driver needs. Callers treat a missing set as a fatal
// startup error for s3:// buckets, before any per-item work begins.
func HaveAWSCredentials() bool {
	return os.Getenv("AWS_ACCESS_KEY_ID") != "" && os.Getenv("AWS_SECRET_ACCESS_KEY") != ""
}
