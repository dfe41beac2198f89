package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/spf13/cobra"

	"github.com/quailyquaily/wingmate/internal/fsstore"
	"github.com/quailyquaily/wingmate/internal/statepaths"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print the user store as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := buildService(cmd.Context())
			if err != nil {
				return err
			}
			data, err := svc.Export(cmd.Context())
			if err != nil {
				return err
			}
			out := strings.TrimSpace(flagOrViperString(cmd, "out", ""))
			if out == "" {
				_, _ = cmd.OutOrStdout().Write(data)
				return nil
			}
			if err := os.WriteFile(statepaths.ExpandHomePath(out), data, 0o600); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "exported to %s\n", out)
			return nil
		},
	}
	cmd.Flags().String("out", "", "Write to this file instead of stdout.")
	return cmd
}

func newBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the user store into the backups directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, logger, err := buildService(cmd.Context())
			if err != nil {
				return err
			}
			data, err := svc.Export(cmd.Context())
			if err != nil {
				return err
			}

			dir := statepaths.BackupDir()
			if err := fsstore.EnsureDir(dir, 0o700); err != nil {
				return err
			}

			// Suffix disambiguates backups taken within the same second.
			suffix, err := gonanoid.New(8)
			if err != nil {
				return fmt.Errorf("generate backup suffix: %w", err)
			}
			name := fmt.Sprintf("users-%s-%s.json", time.Now().UTC().Format("20060102T150405Z"), suffix)
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, data, 0o600); err != nil {
				return fmt.Errorf("write backup: %w", err)
			}

			logger.Info("backup written", "path", path, "bytes", len(data))
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}
