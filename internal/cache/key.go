package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
)

// keyTokenRegex matches ${...} tokens inside cache key templates.
var keyTokenRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// ExpandKey expands a cache key template for one job instance. Supported
// tokens:
//
//	${matrix.<axis>}  the instance's value for that axis
//	${os}             the host operating system identifier
//	${hash:<file>}    sha256 of the named file, relative to baseDir
//
// Keys for platform-dependent artifacts must embed ${os} or a matrix axis
// carrying the platform; the resolver does not enforce this.
func ExpandKey(template string, assignment map[string]string, baseDir string) (string, error) {
	var expandErr error
	expanded := keyTokenRegex.ReplaceAllStringFunc(template, func(token string) string {
		inner := token[2 : len(token)-1]
		value, err := expandToken(inner, assignment, baseDir)
		if err != nil && expandErr == nil {
			expandErr = err
		}
		return value
	})
	if expandErr != nil {
		return "", expandErr
	}
	return expanded, nil
}

func expandToken(token string, assignment map[string]string, baseDir string) (string, error) {
	switch {
	case token == "os":
		return runtime.GOOS, nil
	case strings.HasPrefix(token, "matrix."):
		axis := strings.TrimPrefix(token, "matrix.")
		value, ok := assignment[axis]
		if !ok {
			return "", fmt.Errorf("cache key references unknown matrix axis %q", axis)
		}
		return value, nil
	case strings.HasPrefix(token, "hash:"):
		return hashFile(filepath.Join(baseDir, strings.TrimPrefix(token, "hash:")))
	default:
		return "", fmt.Errorf("unknown cache key token %q", token)
	}
}

// hashFile returns a truncated sha256 of the file contents. A missing file
// hashes to the empty string so that keys degrade to a coarser form instead
// of failing the job.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil))[:16], nil
}
