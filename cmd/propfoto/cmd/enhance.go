package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/propfoto/propfoto/internal/enhance"
)

var enhanceCmd = &cobra.Command{
	Use:   "enhance [image]",
	Short: "Enhance a single listing photo and report its quality verdict",
	Long: `Enhance runs one photo through the full pipeline: white balance,
exposure correction, architecture and scene optimization, then the quality
gate. Accepted images are written to the output directory; rejected images
are reported with the gate's reasons.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnhance,
}

func init() {
	enhanceCmd.Flags().String("region", "default", "regional profile (default, thailand, uae, cambodia)")
	enhanceCmd.Flags().String("scene", "interior", "scene type (interior, exterior, twilight, kitchen, bathroom, floorplan)")
	enhanceCmd.Flags().String("format", "text", "output format (text, json)")
	rootCmd.AddCommand(enhanceCmd)
}

func runEnhance(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	region, _ := cmd.Flags().GetString("region")
	scene, _ := cmd.Flags().GetString("scene")
	format, _ := cmd.Flags().GetString("format")

	params, ok := cfg.EnhanceProfiles().Lookup(enhance.Region(region), enhance.SceneType(scene))
	if !ok {
		return fmt.Errorf("no profile for region %q scene %q", region, scene)
	}

	pipeline, err := enhance.NewPipeline(cfg.Pipeline)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	result, err := pipeline.Run(data, params)
	if err != nil {
		return err
	}

	var outPath string
	if result.Accepted() {
		base := filepath.Base(args[0])
		name := strings.TrimSuffix(base, filepath.Ext(base)) + "_enhanced.jpg"
		outPath = filepath.Join(cfg.OutputDir, name)
		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		if err := os.WriteFile(outPath, result.Bytes, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", outPath, err)
		}
	}

	return printEnhanceResult(cmd, result, outPath, format)
}

func printEnhanceResult(cmd *cobra.Command, result *enhance.Result, outPath, format string) error {
	if format == "json" {
		payload := struct {
			*enhance.Result
			Output string `json:"output,omitempty"`
		}{Result: result, Output: outPath}
		bts, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(bts))
		return nil
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "state:  %s\n", result.FinalState)
	_, _ = fmt.Fprintf(out, "score:  %.2f (%s)\n", result.Verdict.Score, result.Verdict.Level)
	_, _ = fmt.Fprintf(out, "size:   %dx%d\n", result.Width, result.Height)
	if len(result.Verdict.Reasons) > 0 {
		_, _ = fmt.Fprintf(out, "reasons: %s\n", strings.Join(result.Verdict.Reasons, "; "))
	}
	if outPath != "" {
		_, _ = fmt.Fprintf(out, "output: %s\n", outPath)
	}
	return nil
}
