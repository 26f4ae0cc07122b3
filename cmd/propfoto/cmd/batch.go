package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/propfoto/propfoto/internal/enhance"
	"github.com/propfoto/propfoto/internal/orchestrator"
	"github.com/propfoto/propfoto/internal/report"
	"github.com/propfoto/propfoto/internal/storage"
)

var batchCmd = &cobra.Command{
	Use:   "batch [files or directories...]",
	Short: "Enhance a whole shoot with bounded concurrency and retries",
	Long: `Batch discovers the listing photos in the given files or directories,
runs them through the enhancement pipeline concurrently and prints a quality
report once every image settles. Rejections are reported per image; the batch
succeeds partially rather than all-or-nothing.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().String("listing", "", "listing id the batch belongs to (generated when omitted)")
	batchCmd.Flags().String("region", "default", "regional profile (default, thailand, uae, cambodia)")
	batchCmd.Flags().String("scene", "interior", "scene type applied to every image in the batch")
	batchCmd.Flags().String("format", "text", "report format (text, json, yaml)")
	batchCmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	batchCmd.Flags().Int("workers", 0, "override max concurrent pipeline runs")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	listingID, _ := cmd.Flags().GetString("listing")
	if listingID == "" {
		listingID = uuid.NewString()
	}
	region, _ := cmd.Flags().GetString("region")
	scene, _ := cmd.Flags().GetString("scene")
	format, _ := cmd.Flags().GetString("format")
	recursive, _ := cmd.Flags().GetBool("recursive")
	workers, _ := cmd.Flags().GetInt("workers")

	params, ok := cfg.EnhanceProfiles().Lookup(enhance.Region(region), enhance.SceneType(scene))
	if !ok {
		return fmt.Errorf("no profile for region %q scene %q", region, scene)
	}

	paths, err := discoverImageFiles(args, recursive)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no image files found in %s", strings.Join(args, ", "))
	}

	pipeline, err := enhance.NewPipeline(cfg.Pipeline)
	if err != nil {
		return err
	}

	blobs, err := storage.NewFSBlobStore(cfg.OutputDir)
	if err != nil {
		return err
	}
	meta := storage.NewMemoryMetadataStore()

	orchConfig := cfg.Orchestrator
	if workers > 0 {
		orchConfig.MaxConcurrent = workers
	}
	orch, err := orchestrator.New(orchConfig, pipeline, blobs, meta, nil, slog.Default())
	if err != nil {
		return err
	}

	images := make([]orchestrator.Image, len(paths))
	for i, path := range paths {
		p := path
		images[i] = orchestrator.Image{
			Name: filepath.Base(p),
			Fetch: func(context.Context) ([]byte, error) {
				return os.ReadFile(p)
			},
		}
	}

	ctx := cmd.Context()
	batchID, err := orch.Submit(ctx, listingID, images, params)
	if err != nil {
		return err
	}
	slog.Info("batch submitted", "batch_id", batchID, "listing_id", listingID, "images", len(images))

	if _, err := orch.Wait(ctx, batchID); err != nil {
		return err
	}

	sum, _ := meta.Batch(batchID)
	rep := report.Build(sum, meta.Images(batchID))
	rendered, err := report.Format(rep, format)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return nil
}

// discoverImageFiles expands files and directories into the list of
// supported image paths.
func discoverImageFiles(args []string, recursive bool) ([]string, error) {
	var imageFiles []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			files, err := discoverInDirectory(arg, recursive)
			if err != nil {
				return nil, err
			}
			imageFiles = append(imageFiles, files...)
		} else if isSupportedImage(arg) {
			imageFiles = append(imageFiles, arg)
		}
	}

	return imageFiles, nil
}

func discoverInDirectory(dir string, recursive bool) ([]string, error) {
	var files []string

	walkFn := func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if !recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if isSupportedImage(path) {
			files = append(files, path)
		}
		return nil
	}

	return files, filepath.Walk(dir, walkFn)
}

func isSupportedImage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".webp":
		return true
	default:
		return false
	}
}
