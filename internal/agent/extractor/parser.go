package extractor

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	errx "github.com/fitcoach-core/server/internal/core/error"
	logx "github.com/fitcoach-core/server/pkg/logger"
)

// basic safety limits to avoid pathological model output
const (
	maxContentLen = 64 * 1024
	maxErrSnippet = 200
)

// Parsed is the tolerant reading of one extractor answer.
type Parsed struct {
	Fields        map[string]any
	ParsingErrors []string
}

// ParseFields reads the JSON object in content and keeps only the requested
// names. Blank strings and "null"/"unknown" literals count as null. Every
// requested name is present in the result.
func ParseFields(content string, names []string) (out *Parsed, err error) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "extractor_parser").Msgf("panic recovered: %v", r)
			err = errx.New(fmt.Errorf("extractor parser panic"), http.StatusInternalServerError, errx.SystemErrorMessage)
			out = nil
		}
	}()

	out = &Parsed{Fields: make(map[string]any, len(names))}
	for _, n := range names {
		out.Fields[n] = nil
	}
	addErr := func(msg string) {
		out.ParsingErrors = append(out.ParsingErrors, msg)
	}

	if len(content) > maxContentLen {
		logx.Warn().
			Str("component", "extractor_parser").
			Int("max_len", maxContentLen).
			Int("orig_len", len(content)).
			Msg("content truncated due to size limit")
		content = content[:maxContentLen]
		addErr("truncated")
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no json object in extractor output: %s", safeSnippet(content))
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("extractor output is not valid json: %w", err)
	}

	for k, v := range raw {
		if _, ok := out.Fields[k]; !ok {
			addErr(fmt.Sprintf("unexpected_key: %s", safeSnippet(k)))
			continue
		}
		out.Fields[k] = clean(v)
	}
	return out, nil
}

func clean(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "null", "none", "unknown", "n/a":
		return nil
	}
	return s
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}
