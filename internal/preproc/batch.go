package preproc

import (
	"github.com/ZhangSihui999/PsPM/internal/channel"
	"github.com/ZhangSihui999/PsPM/internal/store"
)

// FileOutcome is one item of a multi-file batch run.
type FileOutcome struct {
	Path string
	Err  error
}

// Failed reports how many items of the batch failed.
func Failed(outcomes []FileOutcome) int {
	n := 0
	for _, oc := range outcomes {
		if oc.Err != nil {
			n++
		}
	}
	return n
}

// BatchFiles runs the same pipeline against several session files. One
// file's failure is recorded and that file skipped; the batch continues
// and reports the aggregate outcome.
func BatchFiles(paths []string, reg *channel.Registry, run func(store.Backend) error) []FileOutcome {
	outcomes := make([]FileOutcome, 0, len(paths))
	for _, path := range paths {
		outcomes = append(outcomes, FileOutcome{Path: path, Err: runOne(path, reg, run)})
	}
	return outcomes
}

func runOne(path string, reg *channel.Registry, run func(store.Backend) error) error {
	b, err := store.Open(path, reg)
	if err != nil {
		return err
	}
	defer b.Close()
	return run(b)
}
