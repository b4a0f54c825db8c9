package tasks

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/desertthunder/aehx/internal/formatter"
	"github.com/desertthunder/aehx/internal/models"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ExportOpts contains configuration for feed exports.
type ExportOpts struct {
	Format    string  // Export format: json, csv, markdown, txt
	OutputDir string  // Base output directory (default: aehx_export_{epoch})
	PageSize  int     // Items per request (default: 24)
	MaxPages  int     // Page cap per feed (default: 10)
	RateLimit float64 // Page requests per second across all feeds (default: 2)
	Depth     int     // Recommend depth to export at (default: 1)
}

func (o ExportOpts) withDefaults() ExportOpts {
	if o.Format == "" {
		o.Format = "json"
	}
	if o.OutputDir == "" {
		o.OutputDir = fmt.Sprintf("aehx_export_%d", time.Now().Unix())
	}
	if o.PageSize <= 0 {
		o.PageSize = 24
	}
	if o.MaxPages <= 0 {
		o.MaxPages = 10
	}
	if o.RateLimit <= 0 {
		o.RateLimit = 2
	}
	if o.Depth <= 0 {
		o.Depth = 1
	}
	return o
}

// FeedExportResult describes one exported feed.
type FeedExportResult struct {
	Kind       string
	Pages      int
	Items      int
	Duplicates int  // Items dropped because an earlier page already had them
	Cached     int  // Items written to the local cache
	Truncated  bool // The page cap was hit while the feed still had more
	File       string
	Error      error
}

// ExportRunResult aggregates a multi-feed export.
type ExportRunResult struct {
	Feeds        []FeedExportResult
	OutputDir    string
	ManifestPath string
}

// ExportFeeds walks each feed in kinds and writes one file per feed plus a manifest.
//
// Feeds are walked concurrently but share a single rate limiter, so the total
// request rate stays at opts.RateLimit. A feed that fails is recorded in the
// manifest without stopping the others; cancelling ctx stops all of them.
func (e *Engine) ExportFeeds(ctx context.Context, prog chan<- ProgressUpdate, kinds []string, opts ExportOpts) (*ExportRunResult, error) {
	opts = opts.withDefaults()

	format, err := formatter.ParseFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	opts.Format = format

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	results := make([]FeedExportResult, len(kinds))

	var g errgroup.Group
	for i, kind := range kinds {
		g.Go(func() error {
			results[i] = e.exportFeed(ctx, prog, limiter, kind, opts)
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	manifest := &formatter.ExportManifest{Format: opts.Format, ExportedAt: time.Now().UTC()}
	for _, res := range results {
		var files []string
		if res.File != "" {
			files = []string{res.File}
		}
		manifest.Add(res.Kind, res.Kind, res.Items, files, res.Error)
	}

	run := &ExportRunResult{Feeds: results, OutputDir: opts.OutputDir}
	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteManifest(manifest, manifestPath); err != nil {
		return run, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	run.ManifestPath = manifestPath
	return run, nil
}

func (e *Engine) exportFeed(ctx context.Context, prog chan<- ProgressUpdate, limiter *rate.Limiter, kind string, opts ExportOpts) FeedExportResult {
	res := FeedExportResult{Kind: kind}

	export, err := e.walk(ctx, prog, limiter, kind, opts, &res)
	if err != nil {
		res.Error = err
		return res
	}

	sendProgress(prog, writingUpdate(opts.Format, len(export.Items)))
	path, err := formatter.WriteFeedExport(export, opts.Format, opts.OutputDir)
	if err != nil {
		res.Error = err
		return res
	}
	res.File = path
	return res
}

// walk follows the feed cursor until has_more is false or the page cap is reached.
func (e *Engine) walk(ctx context.Context, prog chan<- ProgressUpdate, limiter *rate.Limiter, kind string, opts ExportOpts, res *FeedExportResult) (*formatter.FeedExport, error) {
	export := &formatter.FeedExport{Kind: kind, ExportedAt: time.Now().UTC(), Items: []models.FeedItem{}}
	if kind == "recommend" {
		export.Depth = opts.Depth
	}

	seen := make(map[string]struct{})
	cursor := ""

	for page := 1; page <= opts.MaxPages; page++ {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}

		sendProgress(prog, fetchPageUpdate(page, opts.MaxPages, kind))

		q := models.FeedQuery{Limit: opts.PageSize, Cursor: cursor}
		if kind == "recommend" {
			q.Depth = opts.Depth
		}
		p, err := e.fetch(ctx, kind, q)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s page %d: %w", kind, page, err)
		}

		fresh := make([]models.FeedItem, 0, len(p.Items))
		for _, it := range p.Items {
			key := it.Key()
			if it.GID <= 0 {
				key = "id:" + it.ID
			}
			if _, dup := seen[key]; dup {
				res.Duplicates++
				continue
			}
			seen[key] = struct{}{}
			fresh = append(fresh, it)
		}
		export.Items = append(export.Items, fresh...)
		export.Pages = page
		res.Pages, res.Items = page, len(export.Items)

		sendProgress(prog, pageFetchedUpdate(page, opts.MaxPages, len(fresh), len(export.Items)))
		e.cacheItems(prog, page, kind, fresh, res)

		if !p.HasMore || p.NextCursor == "" {
			return export, nil
		}
		cursor = p.NextCursor
	}

	res.Truncated = true
	return export, nil
}

func (e *Engine) cacheItems(prog chan<- ProgressUpdate, page int, kind string, items []models.FeedItem, res *FeedExportResult) {
	if e.cache == nil || len(items) == 0 {
		return
	}
	stored, err := e.cache.CacheItems(kind, items)
	if err != nil {
		e.logger.Warn("failed to cache feed page", "feed", kind, "page", page, "error", err)
		return
	}
	res.Cached += stored
	sendProgress(prog, cachedUpdate(page, stored))
}

// TranscriptOpts contains configuration for bulk transcript exports.
type TranscriptOpts struct {
	Format     string // Export format: json, csv, markdown, txt
	OutputDir  string // Output directory (default: aehx_chats_{epoch})
	NumWorkers int    // Concurrent workers (default: 4, max: 8)
}

// ExportTranscripts writes one file per session id using a bounded worker pool.
//
// Sessions that fail to load or write are recorded in the manifest; the error
// returned is reserved for cancellation and manifest failures.
func (e *Engine) ExportTranscripts(ctx context.Context, prog chan<- ProgressUpdate, src TranscriptSource, ids []string, opts TranscriptOpts) (*formatter.ExportManifest, string, error) {
	format, err := formatter.ParseFormat(opts.Format)
	if err != nil {
		return nil, "", err
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("aehx_chats_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}
	if opts.NumWorkers > 8 {
		opts.NumWorkers = 8
	}

	manifest := &formatter.ExportManifest{Format: format, ExportedAt: time.Now().UTC()}

	var (
		mu        sync.Mutex
		completed int
	)
	record := func(id, title string, items int, path string, err error) {
		mu.Lock()
		defer mu.Unlock()
		completed++
		var files []string
		if path != "" {
			files = []string{path}
		}
		manifest.Add(id, title, items, files, err)
		if err != nil {
			sendProgress(prog, transcriptFailedUpdate(completed, len(ids), id, err))
		} else {
			sendProgress(prog, transcriptCompletedUpdate(completed, len(ids), title, path))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.NumWorkers)
	for _, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			session, err := src.Transcript(gctx, id)
			if err != nil {
				record(id, id, 0, "", err)
				return nil
			}
			path := filepath.Join(opts.OutputDir, id+formatter.Extension(format))
			written, err := formatter.WriteTranscript(session, format, path)
			record(id, session.Title, len(session.Messages), written, err)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return manifest, "", err
	}
	if err := ctx.Err(); err != nil {
		return manifest, "", err
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteManifest(manifest, manifestPath); err != nil {
		return manifest, "", fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	return manifest, manifestPath, nil
}
