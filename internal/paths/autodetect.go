package paths

import (
	"os"
	"path/filepath"
)

// Candidates returns the root candidates in preference order: the stored
// root, the working directory and the directory of the running binary.
func Candidates(stored string) []string {
	out := []string{stored}
	if wd, err := os.Getwd(); err == nil {
		out = append(out, wd)
	}
	if exe, err := os.Executable(); err == nil {
		out = append(out, filepath.Dir(exe))
	}
	return out
}

// Autodetect picks the root under which the most samples resolve to
// existing files. Ties go to the earlier candidate. When no candidate
// resolves anything, stored is returned if set, else the first non-empty
// candidate.
func Autodetect(stored string, samples []string) string {
	return AutodetectFrom(Candidates(stored), samples, exists)
}

// AutodetectFrom is Autodetect over explicit candidates and an existence
// check.
func AutodetectFrom(candidates, samples []string, exists func(string) bool) string {
	best, bestScore := "", 0
	fallback := ""
	for _, c := range candidates {
		c = Normalize(c)
		if c == "" {
			continue
		}
		if fallback == "" {
			fallback = c
		}

		r := &Resolver{root: c, LookupEnv: os.LookupEnv}
		score := 0
		for _, s := range samples {
			if p := r.Resolve(s); p != "" && exists(p) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = c, score
		}
	}

	if best != "" {
		return best
	}
	return fallback
}

func exists(p string) bool {
	_, err := os.Stat(filepath.FromSlash(p))
	return err == nil
}
