package adapters

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/devflow/devflow/internal/domains/relay/ports"
	"github.com/devflow/devflow/internal/platform/errors"
)

// FSEnvLoader loads dotenv-style KEY=VALUE pairs from a file.
//
// Parsing rules:
//   - '#' starts a comment line; blank lines are ignored
//   - an optional "export " prefix is accepted
//   - surrounding single or double quotes are stripped from the value
//   - no variable expansion
//   - invalid lines are skipped with a warning
type FSEnvLoader struct{}

func NewFSEnvLoader() FSEnvLoader { return FSEnvLoader{} }

func (FSEnvLoader) Load(req ports.LoadEnvRequest) (ports.LoadEnvResult, error) {
	path := strings.TrimSpace(req.Path)
	if path == "" {
		return ports.LoadEnvResult{Loaded: false}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ports.LoadEnvResult{Loaded: false}, nil
		}
		return ports.LoadEnvResult{}, errors.NewIO("env: failed to open "+path, err)
	}
	defer f.Close()

	res := ports.LoadEnvResult{Loaded: true}

	sc := bufio.NewScanner(f)
	lineN := 0
	for sc.Scan() {
		lineN++
		key, val, ok, warn := parseDotenvLine(sc.Text())
		if warn != "" {
			res.Warnings = append(res.Warnings, path+":"+strconv.Itoa(lineN)+": "+warn)
		}
		if !ok {
			continue
		}

		if !req.Overwrite {
			if _, exists := os.LookupEnv(key); exists {
				continue
			}
		}
		if err := os.Setenv(key, val); err != nil {
			res.Warnings = append(res.Warnings, path+":"+strconv.Itoa(lineN)+": failed to set env var "+key)
			continue
		}
		res.KeysSet = append(res.KeysSet, key)
	}

	if err := sc.Err(); err != nil {
		return ports.LoadEnvResult{}, errors.NewIO("env: failed reading "+path, err)
	}
	return res, nil
}

// parseDotenvLine returns ok=false for comments, blanks and invalid lines.
func parseDotenvLine(raw string) (key, val string, ok bool, warning string) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.HasPrefix(s, "#") {
		return "", "", false, ""
	}
	s = strings.TrimSpace(strings.TrimPrefix(s, "export "))

	idx := strings.Index(s, "=")
	if idx <= 0 {
		return "", "", false, "ignoring invalid line (expected KEY=VALUE)"
	}
	key = strings.TrimSpace(s[:idx])
	if key == "" {
		return "", "", false, "ignoring empty key"
	}

	val = strings.TrimSpace(s[idx+1:])
	if len(val) >= 2 {
		if (val[0] == '"' && val[len(val)-1] == '"') || (val[0] == '\'' && val[len(val)-1] == '\'') {
			val = val[1 : len(val)-1]
		}
	}
	return key, val, true, ""
}
