package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tanq16/rangepull/internal/httpclient"
	"github.com/tanq16/rangepull/internal/output"
	"github.com/tanq16/rangepull/internal/probe"
	"github.com/tanq16/rangepull/internal/rangeutil"
)

// RangepullVersion is set at build time via -ldflags.
var RangepullVersion = "dev"

var (
	outputPath     string
	connections    int
	connectTimeout time.Duration
	timeout        time.Duration
	kaTimeout      time.Duration
	userAgent      string
	proxyURL       string
	proxyUsername  string
	proxyPassword  string
	insecure       bool
	retries        int
	debug          bool
	headers        []string
)

var rootCmd = &cobra.Command{
	Use:     "rangepull",
	Short:   "rangepull splits a download into byte-range chunks and fetches them concurrently",
	Version: RangepullVersion,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		rangeutil.InitLogger(debug)
	},
}

func Execute() {
	rootCmd.AddCommand(newGetCmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newCleanCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().IntVarP(&connections, "connections", "c", 8, "number of concurrent chunk connections (above 8 enables high-thread-mode)")
	rootCmd.PersistentFlags().DurationVar(&connectTimeout, "connect-timeout", 0, "dial timeout for new connections (defaults to the engine's own 30s)")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 300*time.Second, "per-request timeout (e.g. 5s, 10m)")
	rootCmd.PersistentFlags().DurationVarP(&kaTimeout, "keep-alive-timeout", "k", 90*time.Second, "keep-alive timeout")
	rootCmd.PersistentFlags().StringVarP(&userAgent, "user-agent", "a", rangeutil.ToolUserAgent, "User-Agent header, or 'randomize'")
	rootCmd.PersistentFlags().StringVarP(&proxyURL, "proxy", "p", "", "HTTP/HTTPS proxy URL")
	rootCmd.PersistentFlags().StringVar(&proxyUsername, "proxy-username", "", "proxy username, if not embedded in --proxy")
	rootCmd.PersistentFlags().StringVar(&proxyPassword, "proxy-password", "", "proxy password, if not embedded in --proxy")
	rootCmd.PersistentFlags().StringArrayVarP(&headers, "header", "H", nil, "custom header 'Key: Value', repeatable")
	rootCmd.PersistentFlags().BoolVar(&insecure, "insecure", false, "disable TLS peer verification (default is to verify)")
	rootCmd.PersistentFlags().IntVar(&retries, "retries", 3, "max retry attempts per chunk")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func resolveProxy() {
	if proxyURL == "" {
		return
	}
	parsed, err := url.Parse(proxyURL)
	if err != nil || parsed.User == nil || proxyUsername != "" {
		return
	}
	proxyUsername = parsed.User.Username()
	if password, set := parsed.User.Password(); set {
		proxyPassword = password
	}
	parsed.User = nil
	proxyURL = parsed.String()
}

func resolveUserAgent() string {
	if userAgent == "randomize" {
		return rangeutil.GetRandomUserAgent()
	}
	return userAgent
}

func fail(message string) {
	output.PrintError(message)
	os.Exit(1)
}

// resolveOutputPath decides the destination for a URL: the explicit
// path if given, otherwise the origin's suggested name (from
// Content-Disposition, falling back to the URL basename), renewed if
// a file already sits at that path.
func resolveOutputPath(rawURL, explicit string) string {
	dest := explicit
	if dest == "" {
		dest = suggestOutputName(rawURL)
	}
	if _, err := os.Stat(dest); err == nil {
		dest = rangeutil.RenewOutputPath(dest)
	}
	return dest
}

func suggestOutputName(rawURL string) string {
	client := httpclient.New(httpclient.Config{
		ConnectTimeout:   connectTimeout,
		RequestTimeout:   timeout,
		KeepAliveTimeout: kaTimeout,
		ProxyURL:         proxyURL,
		ProxyUsername:    proxyUsername,
		ProxyPassword:    proxyPassword,
		UserAgent:        resolveUserAgent(),
		Headers:          rangeutil.ParseHeaderArgs(headers),
		Insecure:         insecure,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if name, err := probe.SuggestFilename(ctx, client, rawURL); err == nil && name != "" {
		return name
	}
	return filenameFromURL(rawURL)
}
