package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// envReader reads typed settings from the environment. A value that is set
// but does not parse is recorded and reported by err, never silently
// replaced by the default.
type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func newEnvReader() *envReader {
	return &envReader{lookup: os.LookupEnv}
}

func (e *envReader) value(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *envReader) invalid(key, raw string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%s=%q: %w", key, raw, err))
}

func (e *envReader) str(key, def string) string {
	if v, ok := e.lookup(key); ok {
		return v
	}
	return def
}

func (e *envReader) integer(key string, def int) int {
	raw, ok := e.value(key)
	if !ok {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		e.invalid(key, raw, errors.New("not an integer"))
		return def
	}
	return v
}

func (e *envReader) boolean(key string, def bool) bool {
	raw, ok := e.value(key)
	if !ok {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		e.invalid(key, raw, errors.New("not a boolean"))
		return def
	}
	return v
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	raw, ok := e.value(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		e.invalid(key, raw, errors.New("not a duration (try 10s, 5m, 8h)"))
		return def
	}
	return d
}

// list splits a comma separated value, dropping blanks. An unset or blank
// variable yields def.
func (e *envReader) list(key string, def []string) []string {
	raw, ok := e.value(key)
	if !ok {
		return def
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func (e *envReader) err() error {
	return errors.Join(e.errs...)
}
