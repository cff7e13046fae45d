package main

import (
	"net/url"
	"os"
	"path"

	"github.com/spf13/cobra"

	"github.com/tanq16/rangepull/internal/engine"
	"github.com/tanq16/rangepull/internal/output"
	"github.com/tanq16/rangepull/internal/progress"
	"github.com/tanq16/rangepull/internal/rangeutil"
)

func newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <url>",
		Short: "download one URL, splitting it into concurrent byte-range chunks when possible",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			rawURL := args[0]
			if _, err := url.Parse(rawURL); err != nil {
				fail("invalid URL")
			}
			resolveProxy()

			dest := resolveOutputPath(rawURL, outputPath)

			req := engine.DownloadRequest{
				URL:              rawURL,
				OutputPath:       dest,
				ThreadCount:      connections,
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

			ob := newWaitObserver(output.NewConsoleObserver(debug))
			eng := engine.New()
			if err := eng.Start(req, ob); err != nil {
				fail(err.Error())
			}
			<-ob.done
			if !ob.success {
				os.Exit(1)
			}
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file path (inferred from URL if not provided)")
	return cmd
}

func filenameFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "download.bin"
	}
	base := path.Base(parsed.Path)
	if base == "" || base == "." || base == "/" {
		return "download.bin"
	}
	return base
}

// waitObserver forwards every event to an inner Observer and closes
// done once the transfer reaches a terminal state, so the CLI's
// otherwise-async Start() call can block until completion.
type waitObserver struct {
	inner   engine.Observer
	done    chan struct{}
	success bool
}

func newWaitObserver(inner engine.Observer) *waitObserver {
	return &waitObserver{inner: inner, done: make(chan struct{})}
}

func (w *waitObserver) Progress(s progress.Snapshot) { w.inner.Progress(s) }
func (w *waitObserver) Log(message string)           { w.inner.Log(message) }
func (w *waitObserver) Finished(success bool, message string) {
	w.success = success
	w.inner.Finished(success, message)
	close(w.done)
}
