package cmd

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/spf13/cobra"

	"github.com/mj1618/user-routine/internal/screenshot"
)

var screenshotCmd = &cobra.Command{
	Use:   "screenshot",
	Short: "Capture a screenshot of the page",
	Long:  "Capture the visible page as PNG, scaled down for token efficiency. Needs a browser driver.",
	RunE:  runScreenshot,
}

func init() {
	rootCmd.AddCommand(screenshotCmd)
	addTargetFlags(screenshotCmd)
	screenshotCmd.Flags().String("output", "", "Output file path (default: stdout as base64)")
	screenshotCmd.Flags().Float64("scale", 0.5, "Scale factor 0.1-1.0")
	screenshotCmd.Flags().String("caption", "", "Text drawn in a strip under the image")
}

func runScreenshot(cmd *cobra.Command, args []string) error {
	out, _ := cmd.Flags().GetString("output")
	scale, _ := cmd.Flags().GetFloat64("scale")
	caption, _ := cmd.Flags().GetString("caption")
	if scale <= 0 || scale > 1 {
		return fmt.Errorf("--scale must be in (0, 1], got %v", scale)
	}

	ctx := cmd.Context()
	provider, err := openTarget(ctx, appConfig.Browser)
	if err != nil {
		return err
	}
	defer provider.Close()
	if provider.Screenshotter == nil {
		return fmt.Errorf("driver %s cannot take screenshots", provider.Driver)
	}

	data, err := provider.Screenshotter.CaptureScreenshot(ctx)
	if err != nil {
		return err
	}
	data, err = reencode(data, scale, caption)
	if err != nil {
		return err
	}

	if out != "" {
		return os.WriteFile(out, data, 0644)
	}

	// Default: base64 on stdout for easy agent consumption
	w := cmd.OutOrStdout()
	encoder := base64.NewEncoder(base64.StdEncoding, w)
	if _, err := encoder.Write(data); err != nil {
		return err
	}
	if err := encoder.Close(); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return nil
}

// reencode scales and captions a PNG. It returns data untouched when
// there is nothing to do.
func reencode(data []byte, scale float64, caption string) ([]byte, error) {
	if scale == 1 && caption == "" {
		return data, nil
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	var result image.Image = screenshot.Scale(img, scale)
	if caption != "" {
		result = screenshot.Caption(result, caption)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, result); err != nil {
		return nil, fmt.Errorf("encode screenshot: %w", err)
	}
	return buf.Bytes(), nil
}
