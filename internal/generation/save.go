package generation

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// SaveResult writes a job's result image next to the document file.
// Existing files are never overwritten; the name gets a numeric suffix
// instead.
func (m *Model) SaveResult(jobID string, index int) error {
	job := m.Jobs.Find(jobID)
	if job == nil || index >= len(job.Results) {
		return ErrInvalidResult
	}
	filename := m.doc.Filename()
	if filename == "" {
		return ErrDocumentNotSaved
	}

	timestamp := job.Timestamp.Format("20060102-150405")
	prompt := sanitizePrompt(job.Params.Prompt)
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	name := fmt.Sprintf("%s-generated-%s-%d-%s.webp", stem, timestamp, index, prompt)
	path := findUnusedPath(filepath.Join(filepath.Dir(filename), name))

	// regional results are written as generated; composing them over the
	// full canvas is the host's concern
	result := job.Results[index]
	if err := result.Save(path); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	m.log.Infof("saved result %d of job %s to %s", index, jobID, path)
	return nil
}

var unsafeChars = regexp.MustCompile(`[^\w ]`)

func sanitizePrompt(prompt string) string {
	if prompt == "" {
		return "no-prompt"
	}
	sane := unsafeChars.ReplaceAllString(prompt, "")
	sane = strings.ReplaceAll(strings.TrimSpace(sane), " ", "-")
	if len(sane) > 40 {
		sane = sane[:40]
	}
	if sane == "" {
		return "no-prompt"
	}
	return sane
}

func findUnusedPath(path string) string {
	if _, err := os.Stat(path); err != nil {
		return path
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", base, i, ext)
		if _, err := os.Stat(candidate); err != nil {
			return candidate
		}
	}
}
