package tasks

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/swiper/internal/formatter"
	"github.com/desertthunder/swiper/internal/models"
	"github.com/desertthunder/swiper/internal/shared"
	"golang.org/x/time/rate"
)

// ManifestFile is written into the output directory after every bulk export.
const ManifestFile = "export_manifest.json"

// BulkExportOpts contains configuration for bulk playlist exports.
type BulkExportOpts struct {
	Format     string  // Export format, see [formatter.Formats]
	OutputDir  string  // Base output directory (default: swiper_export_{epoch})
	NumWorkers int     // Concurrent writers (default: 5, max: 10)
	RateLimit  float64 // Playlist fetches per second (default: 5)
}

// Exporter writes playlists read from a [PlaylistSource] to disk.
type Exporter struct {
	source PlaylistSource
	logger *log.Logger
	now    func() time.Time
}

// NewExporter creates an exporter reading from source.
func NewExporter(source PlaylistSource, logger *log.Logger) *Exporter {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Exporter{source: source, logger: logger, now: time.Now}
}

type exportJob struct {
	index    int
	playlist *models.Playlist
}

type indexedResult struct {
	index int
	PlaylistExportResult
}

// BulkExport exports the playlists in ids, or every playlist of the user when ids is empty.
//
// Fetches are rate limited and file writes run on a worker pool. Results keep the order of ids.
// When ctx is cancelled the playlists exported so far are returned with ctx's error.
func (e *Exporter) BulkExport(ctx context.Context, prog chan<- ProgressUpdate, ids []string, opts BulkExportOpts) (*BulkExportResult, error) {
	if e.source == nil {
		return nil, fmt.Errorf("%w: playlist source not initialized", shared.ErrServiceUnavailable)
	}

	format, err := formatter.Normalize(opts.Format)
	if err != nil {
		return nil, err
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("swiper_export_%d", e.now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	if len(ids) == 0 {
		sendProgress(prog, fetchingPlaylistsUpdate())
		playlists, err := e.source.Playlists(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list playlists: %w", err)
		}
		for _, p := range playlists {
			ids = append(ids, p.ID)
		}
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &BulkExportResult{
		Format:          format,
		TotalPlaylists:  len(ids),
		OutputDirectory: opts.OutputDir,
		Results:         make([]PlaylistExportResult, 0, len(ids)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan exportJob, len(ids))
	results := make(chan indexedResult, len(ids))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.exportWorker(&wg, jobs, results, format, opts.OutputDir)
	}

	go func() {
		defer close(jobs)
		for i, id := range ids {
			if err := limiter.Wait(ctx); err != nil {
				return
			}

			sendProgress(prog, fetchingPlaylistUpdate(i+1, len(ids), id))
			playlist, err := e.source.Playlist(ctx, id)
			if err != nil {
				results <- indexedResult{index: i, PlaylistExportResult: failed(id, fmt.Sprintf("Unknown (%s)", id), fmt.Errorf("failed to fetch playlist: %w", err))}
				continue
			}
			jobs <- exportJob{index: i, playlist: playlist}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	collected := make([]indexedResult, 0, len(ids))
	for res := range results {
		collected = append(collected, res)
		completed := len(collected)

		if res.Success {
			result.SuccessfulExports++
			sendProgress(prog, exportCompletedUpdate(completed, len(ids), res.PlaylistName, len(res.Files)))
		} else {
			result.FailedExports++
			e.logger.Warn("playlist export failed", "id", res.PlaylistID, "error", res.Error)
			sendProgress(prog, exportFailedUpdate(completed, len(ids), res.PlaylistName, res.Error))
		}
	}

	slices.SortFunc(collected, func(a, b indexedResult) int { return a.index - b.index })
	for _, res := range collected {
		result.Results = append(result.Results, res.PlaylistExportResult)
	}

	manifestPath := filepath.Join(opts.OutputDir, ManifestFile)
	if err := writeManifest(result, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// exportWorker writes playlists from the jobs channel until it is closed.
func (e *Exporter) exportWorker(wg *sync.WaitGroup, jobs <-chan exportJob, results chan<- indexedResult, format, dir string) {
	defer wg.Done()

	for job := range jobs {
		results <- indexedResult{index: job.index, PlaylistExportResult: e.exportSinglePlaylist(job.playlist, format, dir)}
	}
}

// exportSinglePlaylist writes one playlist. Markdown gets its own directory with a README and cover.
func (e *Exporter) exportSinglePlaylist(playlist *models.Playlist, format, dir string) PlaylistExportResult {
	if format == formatter.FormatMarkdown {
		md, err := formatter.WriteMarkdownExport(playlist, filepath.Join(dir, playlist.ID))
		if err != nil {
			return failed(playlist.ID, playlist.Name, fmt.Errorf("markdown export failed: %w", err))
		}
		return succeeded(playlist, md.Files)
	}

	path := filepath.Join(dir, playlist.ID+"."+formatter.Extension(format))
	path, err := formatter.WriteExport(playlist, format, path)
	if err != nil {
		return failed(playlist.ID, playlist.Name, fmt.Errorf("%s export failed: %w", format, err))
	}
	e.logger.Debug("playlist exported", "id", playlist.ID, "path", path)
	return succeeded(playlist, []string{path})
}

func succeeded(playlist *models.Playlist, files []string) PlaylistExportResult {
	return PlaylistExportResult{
		PlaylistID:   playlist.ID,
		PlaylistName: playlist.Name,
		Success:      true,
		Files:        files,
	}
}

func failed(id, name string, err error) PlaylistExportResult {
	return PlaylistExportResult{
		PlaylistID:   id,
		PlaylistName: name,
		Error:        err,
		ErrorMessage: err.Error(),
	}
}

func writeManifest(result *BulkExportResult, path string) error {
	data, err := shared.MarshalJSON(result, true)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
