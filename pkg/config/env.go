package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

// ReadDotEnv parses a KEY=VALUE file as written by the desktop shell. Blank
// lines, comments and an "export " prefix are accepted; values may be
// quoted. A missing file yields an empty map.
func ReadDotEnv(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	vals := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		vals[strings.TrimSpace(key)] = unquote(strings.TrimSpace(value))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return vals, nil
}

func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

func environMap(environ []string) map[string]string {
	m := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			m[k] = v
		}
	}
	return m
}

// applyEnv overlays the recognised variables in vals onto c.
func (c *Config) applyEnv(vals map[string]string) error {
	set := func(key string, dst *string) {
		if v, ok := vals[key]; ok && v != "" {
			*dst = v
		}
	}

	set("SOUL_PATH", &c.SoulPath)
	set("SOUL_LANGUAGE", &c.Language)
	set("OPENAI_API_KEY", &c.Embedding.OpenAIAPIKey)
	set("OPENAI_BASE_URL", &c.Embedding.OpenAIBaseURL)
	set("GEMINI_API_KEY", &c.Embedding.GeminiAPIKey)
	if c.Embedding.GeminiAPIKey == "" {
		set("GOOGLE_API_KEY", &c.Embedding.GeminiAPIKey)
	}
	set("SOULCORE_LOG_LEVEL", &c.Logging.Level)
	set("SOULCORE_ADDR", &c.Server.Addr)
	set("SOULCORE_STATE_BACKEND", &c.State.Backend)

	if v, ok := vals["SOUL_VERIFY_CLAIMS"]; ok && v != "" {
		enabled, err := parseToggle(v)
		if err != nil {
			return fmt.Errorf("%w: SOUL_VERIFY_CLAIMS: %v", ErrInvalid, err)
		}
		c.Verifier.Enabled = enabled
	}
	return nil
}

func parseToggle(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	return strconv.ParseBool(v)
}
