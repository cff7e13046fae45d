package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tanq16/rangepull/internal/engine"
	"github.com/tanq16/rangepull/internal/output"
	"github.com/tanq16/rangepull/internal/pool"
	"github.com/tanq16/rangepull/internal/rangeutil"
)

// BatchEntry is one line of a batch YAML file.
type BatchEntry struct {
	URL    string `yaml:"url"`
	Output string `yaml:"output,omitempty"`
}

type batchJob struct {
	entry   BatchEntry
	boardID int
}

func newBatchCmd() *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "batch <file.yaml>",
		Short: "run one engine per entry in a YAML list of downloads",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			entries, err := readBatchFile(args[0])
			if err != nil {
				fail(err.Error())
			}
			if len(entries) == 0 {
				fail("no entries found in batch file")
			}
			resolveProxy()

			perJobConnections := connections
			const maxTotalConnections = 64
			if len(entries)*perJobConnections > maxTotalConnections {
				perJobConnections = max(maxTotalConnections/len(entries), 1)
			}

			board := output.NewBoard()
			jobs := make([]batchJob, len(entries))
			for i, e := range entries {
				jobs[i] = batchJob{entry: e, boardID: board.RegisterJob(e.URL)}
			}
			board.StartDisplay()

			results := pool.Run(context.Background(), jobs, workers,
				func(ctx context.Context, j batchJob) bool {
					return runBatchEntry(ctx, j.entry, perJobConnections, board.Observer(j.boardID))
				},
				nil,
			)
			board.StopDisplay()

			failures := 0
			for _, ok := range results {
				if !ok {
					failures++
				}
			}
			if failures > 0 {
				os.Exit(1)
			}
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 4, "number of downloads to run in parallel")
	return cmd
}

func readBatchFile(path string) ([]BatchEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}
	var entries []BatchEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse batch file: %w", err)
	}
	var valid []BatchEntry
	for _, e := range entries {
		if e.URL == "" {
			continue
		}
		valid = append(valid, e)
	}
	return valid, nil
}

func runBatchEntry(ctx context.Context, e BatchEntry, conns int, observer engine.Observer) bool {
	dest := resolveOutputPath(e.URL, e.Output)
	req := engine.DownloadRequest{
		URL:              e.URL,
		OutputPath:       dest,
		ThreadCount:      conns,
		UserAgent:        resolveUserAgent(),
		Headers:          rangeutil.ParseHeaderArgs(headers),
		ConnectTimeout:   connectTimeout,
		RequestTimeout:   timeout,
		KeepAliveTimeout: kaTimeout,
		ProxyURL:         proxyURL,
		ProxyUsername:    proxyUsername,
		ProxyPassword:    proxyPassword,
		Insecure:         insecure,
		MaxRetries:       retries,
	}
	ob := newWaitObserver(observer)
	eng := engine.New()
	if err := eng.Start(req, ob); err != nil {
		ob.Finished(false, err.Error())
		return false
	}
	select {
	case <-ob.done:
	case <-ctx.Done():
		eng.Cancel()
		<-ob.done
	}
	return ob.success
}
