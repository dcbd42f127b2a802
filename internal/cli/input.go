package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ReadDescriptions reads one work-item description per line. Blank lines and
// lines starting with '#' are skipped. A line may carry a section hint after
// a tab: "description<TAB>section".
func ReadDescriptions(r io.Reader) ([]Description, error) {
	var out []Description
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		d := Description{Line: line, Text: text}
		if before, after, ok := strings.Cut(text, "\t"); ok {
			d.Text = strings.TrimSpace(before)
			d.SectionHint = strings.TrimSpace(after)
		}
		out = append(out, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read descriptions: %w", err)
	}
	return out, nil
}

// Description is one input line of a batch.
type Description struct {
	Text        string
	SectionHint string
	Line        int
}
