package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Index plain-text documents",
	Long: `Split plain-text documents into chunks and add them to the document index.

Re-ingesting a file replaces its previous chunks. Text must be extracted
beforehand; binary formats such as PDF are not parsed.

Examples:
  ragmesh ingest letters/2023.txt
  ragmesh ingest --store ./data/index docs/*.md`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

type ingester interface {
	Ingest(ctx context.Context, source, text string) (int, error)
}

func runIngest(cmd *cobra.Command, args []string) error {
	mesh, err := openMesh()
	if err != nil {
		return err
	}
	defer mesh.Close()
	return ingestFiles(cmd.Context(), mesh, args, cmd.OutOrStdout())
}

// ingestFiles indexes every path and reports per-file chunk counts. It stops
// at the first failure.
func ingestFiles(ctx context.Context, ing ingester, paths []string, out io.Writer) error {
	total := 0
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		text := string(data)
		if strings.TrimSpace(text) == "" {
			fmt.Fprintf(out, "skipped %s: empty\n", path)
			continue
		}
		source := filepath.ToSlash(filepath.Clean(path))
		n, err := ing.Ingest(ctx, source, text)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}
		total += n
		fmt.Fprintf(out, "indexed %s: %d chunks\n", source, n)
	}
	fmt.Fprintf(out, "done: %d chunks from %d files\n", total, len(paths))
	return nil
}
