package store

import (
	"bufio"
	"bytes"
	"context"
	"os"

	"github.com/pathpilot/fhirserve/fhir"
)

// maxLineBytes bounds a single NDJSON line. MIMIC chartevents lines run well
// past bufio's 64K default.
const maxLineBytes = 16 * 1024 * 1024

// ctxCheckInterval is how many lines pass between context checks.
const ctxCheckInterval = 1024

// scanResources streams a file line by line, parsing each non-blank line and
// passing it to fn. fn returning false stops the scan early. Blank and
// unparseable lines are skipped, never an error. A file missing from disk is
// not an error either; it simply yields nothing.
func scanResources(ctx context.Context, path string, fn func(fhir.Resource) bool) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lines := 0
	for scanner.Scan() {
		lines++
		if lines%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		resource, err := fhir.ParseResource(line)
		if err != nil {
			continue
		}
		if !fn(resource) {
			return nil
		}
	}
	return scanner.Err()
}

// scanLines streams raw lines without parsing. Used by the text pre-filter
// counting strategy. Blank lines are skipped.
func scanLines(ctx context.Context, path string, fn func(line []byte) bool) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lines := 0
	for scanner.Scan() {
		lines++
		if lines%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if !fn(line) {
			return nil
		}
	}
	return scanner.Err()
}
