package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Beastly713/mutafuzz/pkg/corpus"
	"github.com/Beastly713/mutafuzz/pkg/format"
	"github.com/Beastly713/mutafuzz/pkg/input"
	"github.com/Beastly713/mutafuzz/pkg/pipeline"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	lsSQLite  string
	showQuote bool
)

var lsHeaderStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var lsCellStyle = lipgloss.NewStyle().Padding(0, 1)

var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Inspect stored testcases",
}

var corpusLsCmd = &cobra.Command{
	Use:   "ls [directory]",
	Short: "List the testcases in a corpus directory",
	Long: `Ls reads the header of every .testcase file in the directory (or the
current directory if not provided) and prints one line per testcase.
With --sqlite it lists a SQLite corpus instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if lsSQLite != "" {
			rows, err := listSQLite(lsSQLite)
			if err != nil {
				return err
			}
			return printTable(cmd.OutOrStdout(), rows)
		}

		// 1. Determine Source Directory
		sourceDir := "."
		if len(args) > 0 {
			sourceDir = args[0]
		}

		// 2. Gather files
		files, err := os.ReadDir(sourceDir)
		if err != nil {
			return fmt.Errorf("failed to read directory: %w", err)
		}

		// 3. Parse headers
		var rows [][]string
		for _, f := range files {
			if f.IsDir() || !pipeline.IsTestcaseFile(f.Name()) {
				continue
			}
			header, err := readHeader(filepath.Join(sourceDir, f.Name()))
			if err != nil {
				logger.Warn("skipping unreadable testcase", zap.String("file", f.Name()), zap.Error(err))
				continue
			}
			rows = append(rows, headerRow(header))
		}

		if len(rows) == 0 {
			return fmt.Errorf("no testcases found in %s", sourceDir)
		}
		return printTable(cmd.OutOrStdout(), rows)
	},
}

var corpusShowCmd = &cobra.Command{
	Use:   "show [file]",
	Short: "Print the input stored in a testcase file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, header, err := pipeline.ReadFile[*input.Bytes](args[0], codec)
		if err != nil {
			return err
		}
		logger.Debug("testcase", zap.String("id", header.ID), zap.Int("size", header.Size))

		out := cmd.OutOrStdout()
		if showQuote {
			_, err = fmt.Fprintln(out, in.String())
			return err
		}
		_, err = out.Write(in.Bytes())
		return err
	},
}

func readHeader(path string) (*format.Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := format.NewReader(f)
	if err != nil {
		return nil, err
	}
	return r.Header, nil
}

func headerRow(h *format.Header) []string {
	parent := h.ParentID
	if parent == "" {
		parent = "-"
	}
	return []string{
		h.ID, parent, fmt.Sprint(h.Depth), fmt.Sprint(h.Size), h.ExitKind, h.Instance,
		time.Unix(h.Timestamp, 0).UTC().Format(time.RFC3339),
	}
}

func printTable(w io.Writer, rows [][]string) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "PARENT", "DEPTH", "SIZE", "EXIT", "INSTANCE", "FOUND").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lsHeaderStyle
			}
			return lsCellStyle
		})
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func listSQLite(path string) ([][]string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open corpus: %w", err)
	}
	c, err := corpus.NewSQLite[*input.Bytes](path, codec, false)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	var rows [][]string
	for i := 0; i < c.Count(); i++ {
		tc, err := c.Get(i)
		if err != nil {
			return nil, err
		}
		in, err := tc.LoadInput()
		if err != nil {
			return nil, err
		}
		h := pipeline.HeaderFor(tc, "")
		h.Size = in.Len()
		rows = append(rows, headerRow(&h))
	}
	return rows, nil
}

func init() {
	rootCmd.AddCommand(corpusCmd)
	corpusCmd.AddCommand(corpusLsCmd)
	corpusCmd.AddCommand(corpusShowCmd)

	corpusLsCmd.Flags().StringVar(&lsSQLite, "sqlite", "", "List a SQLite corpus database instead of a directory")
	corpusShowCmd.Flags().BoolVarP(&showQuote, "quote", "q", false, "Print the input as a quoted Go string")
}
