package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperjump/yomu/internal/cli"
	"github.com/hyperjump/yomu/internal/config"
	"github.com/hyperjump/yomu/internal/extract"
	"github.com/hyperjump/yomu/internal/ingest"
	"github.com/hyperjump/yomu/internal/models"
	"github.com/hyperjump/yomu/internal/server"
	"github.com/hyperjump/yomu/internal/vectorstore"
	"github.com/hyperjump/yomu/internal/watcher"
)

type rootOptions struct {
	configPath string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "yomu",
		Short:         "Ingest documents and search them by meaning",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file path (default ./config.yaml, then ~/.yomu/config.yaml)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(opts),
		newIngestCmd(opts),
		newSearchCmd(opts),
		newWatchCmd(opts),
		newStatusCmd(opts),
		newInitCmd(opts),
	)
	return root
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the directory watcher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, opts.configPath, opts.debug)
			if err != nil {
				return err
			}
			defer a.Close()

			w, err := a.startWatcher(ctx)
			if err != nil {
				return err
			}
			defer w.Stop()

			srv := server.NewServer(a.cfg, a.ingester, a.store, a.logger,
				server.WithCatalog(a.catalog),
				server.WithWatch(w, a.configPath))
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}
			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	}
}

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var (
		preview   bool
		recursive bool
		output    string
	)
	cmd := &cobra.Command{
		Use:   "ingest <path>",
		Short: "Ingest a file, or every supported file in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := openApp(ctx, opts.configPath, opts.debug)
			if err != nil {
				return err
			}
			defer a.Close()

			path := args[0]
			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			if info.IsDir() {
				if preview {
					return errors.New("--preview takes a single file")
				}
				report, walkErr := a.ingester.IngestDirectory(ctx, path, nil, recursive)
				if report != nil {
					for _, res := range report.Ingested {
						if err := cli.WriteIngestResult(cmd.OutOrStdout(), res.Response(), res.Chunks, format); err != nil {
							return err
						}
					}
					for p, reason := range report.Skipped {
						fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %v\n", p, reason)
					}
				}
				return walkErr
			}

			var res *ingest.Result
			if preview {
				content, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				res, err = a.ingester.Ingest(ctx, extract.File{Name: filepath.Base(path), Content: content}, ingest.ModePreview)
				if err != nil {
					return err
				}
			} else if res, err = a.ingester.IngestFile(ctx, path, nil); err != nil {
				return err
			}
			return cli.WriteIngestResult(cmd.OutOrStdout(), res.Response(), res.Chunks, format)
		},
	}
	cmd.Flags().BoolVar(&preview, "preview", false, "extract and print without storing")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "descend into subdirectories")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	return cmd
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var (
		limit     int
		threshold float64
		output    string
		serverURL string
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search stored documents",
		Long: `Search stored documents by meaning.

The query is all arguments joined by spaces, so quoting is optional.
With --server the query is sent to a running yomu server, which avoids
opening the same stores from two processes.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			query := models.SearchQuery{Query: buildSearchQuery(args), Limit: limit}
			if cmd.Flags().Changed("threshold") {
				query.Threshold = &threshold
			}

			var resp *models.SearchResponse
			if serverURL != "" {
				resp, err = searchViaHTTP(cmd.Context(), serverURL, query)
			} else {
				resp, err = searchDirect(cmd.Context(), opts, query)
			}
			if err != nil {
				return err
			}
			return cli.WriteSearchResults(cmd.OutOrStdout(), resp, format)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", models.DefaultSearchLimit, "maximum number of results")
	cmd.Flags().Float64Var(&threshold, "threshold", models.DefaultSearchThreshold, "minimum similarity, from -1 to 1")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	cmd.Flags().StringVar(&serverURL, "server", "", "search through a running server at this URL")
	return cmd
}

// buildSearchQuery joins positional args so multi-word queries work with or without quotes.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func searchDirect(ctx context.Context, opts *rootOptions, query models.SearchQuery) (*models.SearchResponse, error) {
	a, err := openApp(ctx, opts.configPath, opts.debug)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	start := time.Now()
	results, err := a.store.Search(ctx, query.Query, vectorstore.SearchOptions{Limit: query.Limit, Threshold: query.Threshold})
	if err != nil {
		return nil, err
	}
	return &models.SearchResponse{
		Query:     query.Query,
		Results:   results,
		Total:     len(results),
		QueryTime: time.Since(start).Milliseconds(),
	}, nil
}

func searchViaHTTP(ctx context.Context, serverURL string, query models.SearchQuery) (*models.SearchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	u := strings.TrimSuffix(serverURL, "/") + "/api/v1/search"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var e models.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err == nil && e.Error != "" {
			return nil, fmt.Errorf("%s: %s", e.Error, e.Message)
		}
		return nil, fmt.Errorf("server returned %s", resp.Status)
	}
	var out models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Ingest files dropped into the configured directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, opts.configPath, opts.debug)
			if err != nil {
				return err
			}
			defer a.Close()
			if len(a.cfg.Watch.Directories) == 0 {
				return errors.New("no watch directories configured (watch.directories)")
			}
			w, err := a.startWatcher(ctx)
			if err != nil {
				return err
			}
			defer w.Stop()
			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (Ctrl+C to stop)\n", strings.Join(w.Directories(), ", "))
			<-ctx.Done()
			return nil
		},
	}
}

// startWatcher starts watching the configured directories and ingests what is already there.
func (a *app) startWatcher(ctx context.Context) (*watcher.Watcher, error) {
	wc := a.cfg.Watch
	ing := a.watchIngester()
	exts := wc.Extensions
	w := watcher.New(wc.Directories, exts, wc.RecursiveOrDefault(),
		func(ctx context.Context, path string) error {
			_, err := ing.IngestFile(ctx, path, exts)
			return err
		},
		watcher.WithLogger(a.logger),
		watcher.WithDebounce(time.Duration(wc.DebounceMS)*time.Millisecond))
	if err := w.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start watcher: %w", err)
	}
	go w.SyncExisting()
	return w, nil
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show store and catalog statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, opts.configPath, opts.debug)
			if err != nil {
				return err
			}
			defer a.Close()
			rows, err := a.store.Count(ctx)
			if err != nil {
				return err
			}
			docs, err := a.catalog.CountDocuments(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config:     %s\n", a.configPath)
			fmt.Fprintf(out, "Backend:    %s\n", a.store.Backend().Name())
			fmt.Fprintf(out, "Embeddings: %s (%d dims)\n", a.cfg.Embedding.Provider, a.cfg.Embedding.Dimensions)
			fmt.Fprintf(out, "Documents:  %d\n", docs)
			fmt.Fprintf(out, "Chunks:     %d\n", rows)
			return nil
		},
	}
}

func newInitCmd(opts *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := opts.configPath
			if path == "" {
				path = config.DefaultPath()
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			cfg, err := config.Default()
			if err != nil {
				return err
			}
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}
