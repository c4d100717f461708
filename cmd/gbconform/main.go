// Command gbconform runs blargg-style conformance ROMs headlessly,
// reporting pass/fail from the serial debug stream.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kestrelsys/dmgcore/internal/emu"
)

const version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gbconform",
		Short: "Run DMG conformance test ROMs headlessly",
	}
	root.AddCommand(runCmd(), suiteCmd(), versionCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the gbconform version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	var maxFrames int
	var bootPath string

	cmd := &cobra.Command{
		Use:   "run <rom>",
		Short: "Run a single conformance ROM until it reports Passed/Failed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			romPath := args[0]

			m := emu.New(emu.Config{Headless: true})
			var boot []byte
			if bootPath != "" {
				b, err := os.ReadFile(bootPath)
				if err != nil {
					return fmt.Errorf("read boot rom: %w", err)
				}
				boot = b
			}
			rom, err := os.ReadFile(romPath)
			if err != nil {
				return fmt.Errorf("read rom: %w", err)
			}
			if err := m.LoadCartridge(rom, boot); err != nil {
				return fmt.Errorf("load cart: %w", err)
			}

			var sb strings.Builder
			m.SetSerialWriter(&sb)

			for i := 0; i < maxFrames; i++ {
				m.StepFrameNoRender()
				out := strings.ToLower(sb.String())
				if strings.Contains(out, "passed") {
					fmt.Fprintf(cmd.OutOrStdout(), "PASS %s (frame %d)\n%s\n", filepath.Base(romPath), i, sb.String())
					return nil
				}
				if strings.Contains(out, "failed") {
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s (frame %d)\n%s\n", filepath.Base(romPath), i, sb.String())
					return fmt.Errorf("%s failed", filepath.Base(romPath))
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "TIMEOUT %s after %d frames\n%s\n", filepath.Base(romPath), maxFrames, sb.String())
			return fmt.Errorf("%s timed out", filepath.Base(romPath))
		},
	}
	cmd.Flags().IntVar(&maxFrames, "max-frames", 1800, "frame budget before declaring a timeout")
	cmd.Flags().StringVar(&bootPath, "bootrom", "", "optional DMG boot ROM")
	return cmd
}

func suiteCmd() *cobra.Command {
	var maxFrames int
	var concurrency int

	cmd := &cobra.Command{
		Use:   "suite <dir>",
		Short: "Run every .gb/.gbc ROM under a directory concurrently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roms, err := findROMs(args[0])
			if err != nil {
				return fmt.Errorf("scan roms: %w", err)
			}
			if len(roms) == 0 {
				return fmt.Errorf("no .gb/.gbc ROMs found under %s", args[0])
			}

			results, err := emu.RunConformanceSuite(roms, maxFrames, concurrency)
			if err != nil {
				return err
			}

			failures := 0
			for _, r := range results {
				status := "PASS"
				if !r.Passed {
					status = "FAIL"
					failures++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", status, filepath.Base(r.ROMPath))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d/%d passed\n", len(results)-failures, len(results))
			if failures > 0 {
				return fmt.Errorf("%d ROM(s) failed", failures)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxFrames, "max-frames", 1800, "per-ROM frame budget before declaring a timeout")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "max ROMs run in parallel")
	return cmd
}

func findROMs(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		low := strings.ToLower(d.Name())
		if strings.HasSuffix(low, ".gb") || strings.HasSuffix(low, ".gbc") {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}
