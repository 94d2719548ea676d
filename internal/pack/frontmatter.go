package pack

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const frontmatterDelimiter = "---"

// frontmatter is the recognized header of a content file. Unrecognized
// keys are kept as string metadata.
type frontmatter struct {
	Title      string   `yaml:"title"`
	Type       string   `yaml:"type"`
	EntityID   string   `yaml:"entity_id"`
	Tags       []string `yaml:"tags"`
	EntityRefs []string `yaml:"entity_refs"`

	rest map[string]string
}

// splitFrontmatter separates a markdown document into its YAML header and
// body. A document without a leading delimiter line has no frontmatter.
func splitFrontmatter(raw string) (header, body string) {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	if !strings.HasPrefix(normalized, frontmatterDelimiter+"\n") {
		return "", normalized
	}

	remainder := normalized[len(frontmatterDelimiter)+1:]
	idx := strings.Index(remainder, "\n"+frontmatterDelimiter)
	if idx < 0 {
		return "", normalized
	}

	header = remainder[:idx]
	body = remainder[idx+len(frontmatterDelimiter)+1:]
	body = strings.TrimPrefix(body, "\n")
	return header, body
}

// parseFrontmatter decodes the YAML header, collecting unrecognized
// scalar keys into rest.
func parseFrontmatter(header string) (*frontmatter, error) {
	fm := &frontmatter{rest: map[string]string{}}
	if strings.TrimSpace(header) == "" {
		return fm, nil
	}

	if err := yaml.Unmarshal([]byte(header), fm); err != nil {
		return nil, err
	}

	var all map[string]any
	if err := yaml.Unmarshal([]byte(header), &all); err != nil {
		return nil, err
	}
	for k, v := range all {
		switch k {
		case "title", "type", "entity_id", "tags", "entity_refs":
			continue
		}
		switch val := v.(type) {
		case string:
			fm.rest[k] = val
		case int, int64, float64, bool:
			fm.rest[k] = fmt.Sprintf("%v", val)
		}
	}
	return fm, nil
}

// firstHeading returns the text of the first level-1 heading in body, or
// empty when there is none.
func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
		}
	}
	return ""
}
