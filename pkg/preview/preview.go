// Package preview reads the head of an uploaded file for display before it
// is submitted.
package preview

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultLines is how many lines a file preview shows.
const DefaultLines = 5

// Lines returns at most n lines from r with line terminators removed.
func Lines(r io.Reader, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	reader := bufio.NewReader(r)
	lines := make([]string, 0, n)
	for len(lines) < n {
		line, err := reader.ReadString('\n')
		if line != "" {
			lines = append(lines, strings.TrimRight(line, "\r\n"))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return lines, err
		}
	}
	return lines, nil
}

// File is Lines over the file at path.
func File(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return Lines(f, n)
}

// Header returns the column names from the first CSV record of the file.
func Header(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	return header, nil
}

// Contains reports whether the file content contains needle anywhere, the
// check the upload form uses to enable its submit button.
func Contains(path, needle string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return strings.Contains(string(data), needle), nil
}
