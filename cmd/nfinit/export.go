package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yungbote/nfinit-engine/internal/app"
	"github.com/yungbote/nfinit-engine/internal/config"
	"github.com/yungbote/nfinit-engine/internal/export"
	"github.com/yungbote/nfinit-engine/internal/kernel"
	"github.com/yungbote/nfinit-engine/internal/platform/logger"
	"github.com/yungbote/nfinit-engine/internal/platform/shutdown"
	"github.com/yungbote/nfinit-engine/internal/preview"
)

type runOptions struct {
	kernel string
	out    string
}

func newExportCmd() *cobra.Command {
	var (
		opts   runOptions
		format string
	)
	cmd := &cobra.Command{
		Use:   "export <script|->",
		Short: "Execute a script and write the exported part",
		Long: `Executes a geometry script (or stdin when the argument is "-") and writes
the resolved part in the requested format. Formats: glb, step, brep, stl.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseCLIFormat(format)
			if err != nil {
				return err
			}
			return runExport(cmd.Context(), cmd, args[0], f, opts)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "stl", "output format: glb, step, brep or stl")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "output path (default: the format's file name in the current directory)")
	cmd.Flags().StringVar(&opts.kernel, "kernel", "", "kernel override (default: NFINIT_KERNEL or config)")
	return cmd
}

func newPreviewCmd() *cobra.Command {
	var (
		opts runOptions
		size int
	)
	cmd := &cobra.Command{
		Use:   "preview <script|->",
		Short: "Execute a script and render a PNG preview",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreview(cmd.Context(), cmd, args[0], preview.Options{Width: size, Height: size}, opts)
		},
	}
	cmd.Flags().IntVar(&size, "size", preview.DefaultSize, "image width and height in pixels")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "preview.png", "output path")
	cmd.Flags().StringVar(&opts.kernel, "kernel", "", "kernel override (default: NFINIT_KERNEL or config)")
	return cmd
}

func newKernelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kernels",
		Short: "List registered geometry kernels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range kernel.Libraries() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

// parseCLIFormat accepts every keyword of both endpoints.
func parseCLIFormat(s string) (export.Format, error) {
	if f, err := export.ParseMeshFormat(s); err == nil && strings.TrimSpace(s) != "" {
		return f, nil
	}
	return export.ParseExportFormat(s)
}

func runExport(ctx context.Context, cmd *cobra.Command, src string, f export.Format, opts runOptions) error {
	ctx, stop := shutdown.NotifyContext(orBackground(ctx))
	defer stop()

	svc, log, err := buildServices(opts.kernel)
	if err != nil {
		return err
	}
	defer log.Sync()

	code, err := readScript(cmd, src)
	if err != nil {
		return err
	}
	art, err := svc.Geometry.Export(ctx, code, f)
	if err != nil {
		return err
	}
	defer art.Cleanup()

	out := opts.out
	if out == "" {
		out = f.Filename
	}
	if err := copyFile(art.Path, out); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, art.Size)
	return nil
}

func runPreview(ctx context.Context, cmd *cobra.Command, src string, popts preview.Options, opts runOptions) error {
	ctx, stop := shutdown.NotifyContext(orBackground(ctx))
	defer stop()

	svc, log, err := buildServices(opts.kernel)
	if err != nil {
		return err
	}
	defer log.Sync()

	code, err := readScript(cmd, src)
	if err != nil {
		return err
	}
	png, err := svc.Geometry.Preview(ctx, code, popts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(opts.out, png, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", opts.out, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", opts.out, len(png))
	return nil
}

func buildServices(kernelOverride string) (app.Services, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return app.Services{}, nil, fmt.Errorf("load config: %w", err)
	}
	if k := strings.ToLower(strings.TrimSpace(kernelOverride)); k != "" {
		cfg.Engine.Kernel = k
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		return app.Services{}, nil, fmt.Errorf("init logger: %w", err)
	}
	svc := app.WireServices(log, cfg)
	if err := svc.Geometry.Ready(); err != nil {
		return app.Services{}, nil, err
	}
	return svc, log, nil
}

func readScript(cmd *cobra.Command, src string) (string, error) {
	if src == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(src)
	if err != nil {
		return "", fmt.Errorf("read script: %w", err)
	}
	return string(b), nil
}

func copyFile(src, dst string) error {
	if dir := filepath.Dir(dst); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func orBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
