// Package merger concatenates completed chunk part files into the
// final artifact, in ascending chunk id order, then cleans them up.
package merger

import (
	"fmt"
	"io"
	"os"

	"github.com/tanq16/rangepull/internal/fetcher"
	"github.com/tanq16/rangepull/internal/rangeutil"
)

// ErrIncompleteChunks is returned when Merge is asked to assemble a
// set of results that includes a failure.
type ErrIncompleteChunks struct {
	FailedIDs []int
}

func (e *ErrIncompleteChunks) Error() string {
	return fmt.Sprintf("cannot merge: %d chunk(s) did not complete: %v", len(e.FailedIDs), e.FailedIDs)
}

// Merge appends part files named by results, in ascending chunk id
// order, into outputPath, then deletes each part file it consumed. All
// results must be Ok; results need not already be sorted by ID. On any
// IO error partway through, the partially written output file and any
// remaining part files are best-effort removed.
func Merge(outputPath string, expectedTotal int64, results []fetcher.Result) error {
	log := rangeutil.GetLogger("merger")

	var failedIDs []int
	ordered := make([]fetcher.Result, len(results))
	copy(ordered, results)
	for _, r := range ordered {
		if !r.Ok() {
			failedIDs = append(failedIDs, r.ID)
		}
	}
	if len(failedIDs) > 0 {
		return &ErrIncompleteChunks{FailedIDs: failedIDs}
	}

	sortByID(ordered)

	dest, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}

	var totalWritten int64
	mergeErr := func() error {
		defer dest.Close()
		for _, r := range ordered {
			if err := appendPart(dest, r.PartPath, &totalWritten); err != nil {
				return err
			}
		}
		if totalWritten != expectedTotal {
			return fmt.Errorf("merged size %d does not match expected %d", totalWritten, expectedTotal)
		}
		return nil
	}()

	if mergeErr != nil {
		log.Error().Err(mergeErr).Msg("merge failed, cleaning up partial artifact")
		os.Remove(outputPath)
		cleanupParts(ordered)
		return fmt.Errorf("merge failed: %w", mergeErr)
	}

	cleanupParts(ordered)
	log.Debug().Int64("bytes", totalWritten).Str("output", outputPath).Msg("merge completed")
	return nil
}

func appendPart(dest *os.File, partPath string, totalWritten *int64) error {
	part, err := os.Open(partPath)
	if err != nil {
		return fmt.Errorf("open part %s: %w", partPath, err)
	}
	defer part.Close()

	info, err := part.Stat()
	if err != nil {
		return fmt.Errorf("stat part %s: %w", partPath, err)
	}
	written, err := io.Copy(dest, part)
	if err != nil {
		return fmt.Errorf("copy part %s: %w", partPath, err)
	}
	if written != info.Size() {
		return fmt.Errorf("short copy on %s: wrote %d of %d bytes", partPath, written, info.Size())
	}
	*totalWritten += written
	return nil
}

// CleanupParts removes every part file named by results, ignoring
// errors — cleanup failures are logged, not raised, per the engine's
// error handling design.
func CleanupParts(results []fetcher.Result) {
	cleanupParts(results)
}

func cleanupParts(results []fetcher.Result) {
	log := rangeutil.GetLogger("merger")
	for _, r := range results {
		if r.PartPath == "" {
			continue
		}
		if err := os.Remove(r.PartPath); err != nil && !os.IsNotExist(err) {
			log.Debug().Err(err).Str("part", r.PartPath).Msg("failed to remove part file")
		}
	}
}

func sortByID(results []fetcher.Result) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].ID < results[j-1].ID; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}
