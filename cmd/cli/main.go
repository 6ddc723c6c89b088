package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"curiesuite/app"
	"curiesuite/domain/pixel"
	"curiesuite/domain/run"
	"curiesuite/domain/sequence"
	"curiesuite/internal"
	"curiesuite/internal/config"
	"curiesuite/internal/container"
	"curiesuite/internal/hitfilter"
	"curiesuite/internal/tabular"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	outDir  string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "curie-cli",
		Short: "Curie tool suite from the command line",
		Long: `Run the dashboard tools without a browser. Every command records a run
like the dashboard does and writes its downloadable files to --out.

Configuration comes from the environment (and .env), as for the server.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&outDir, "out", "o", ".", "Directory for output files")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log progress to stderr")

	rootCmd.AddCommand(
		newBlastCmd(),
		newAlignCmd(),
		newFitCmd(),
		newDescribeCmd(),
		newPixelsCmd(),
		newRunsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the container for one command
func setup(ctx context.Context) (*container.Container, error) {
	_ = godotenv.Load()
	opts := internal.LogOptionsFromEnv()
	if !verbose && opts.Level == "" {
		opts.Level = "warn"
	}
	log := internal.NewLogger(opts)

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return container.New(ctx, cfg, log)
}

func newBlastCmd() *cobra.Command {
	criteria := hitfilter.DefaultCriteria()
	var name, alignment string
	var trim bool

	cmd := &cobra.Command{
		Use:   "blast [sequence | fasta-file]",
		Short: "Search NCBI BLAST, filter the hits and optionally align them",
		Long: `Search a protein against NCBI nr, keep hits inside the identity and
coverage window and write <name>_BLAST.fasta. With --align the accepted
hits are aligned on EBI and written to <name>_align.fasta.

Example: curie-cli blast lysozyme.fasta --min-identity 40 --max-identity 95 --align clustalo --trim`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			req := app.BlastRequest{Name: name, Criteria: criteria, Alignment: alignment, Trim: trim}
			if data, err := os.ReadFile(args[0]); err == nil {
				req.FASTA = string(data)
			} else {
				req.Sequence = args[0]
			}

			res, err := c.Blast.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			f := res.Filter
			fmt.Printf("%d hits accepted of %d examined (%d out of range, %d redundant, %d malformed)\n",
				f.Accepted(), f.Examined, f.OutOfRange, f.Redundant, f.Malformed)
			return writeArtifacts(res.Run)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Name for the query and the output files")
	cmd.Flags().IntVar(&criteria.MaxHits, "max-hits", criteria.MaxHits, "Maximum number of BLAST results")
	cmd.Flags().Float64Var(&criteria.MinIdentity, "min-identity", criteria.MinIdentity, "Minimum percent identity")
	cmd.Flags().Float64Var(&criteria.MaxIdentity, "max-identity", criteria.MaxIdentity, "Maximum percent identity")
	cmd.Flags().Float64Var(&criteria.MinCoverage, "min-coverage", criteria.MinCoverage, "Minimum percent query coverage")
	cmd.Flags().StringVar(&alignment, "align", app.AlignNone, "Alignment tool: none|clustalo|muscle")
	cmd.Flags().BoolVar(&trim, "trim", false, "Trim the alignment to the query")
	return cmd
}

func newAlignCmd() *cobra.Command {
	var tool, query string
	var trim bool

	cmd := &cobra.Command{
		Use:   "align [fasta-file]",
		Short: "Align the records of a FASTA file on EBI",
		Long: `Submit a multi-record FASTA file to Clustal Omega or MUSCLE and print the
aligned FASTA. With --trim the alignment is cut to the record named by --query.

Example: curie-cli align hits.fasta --tool muscle --trim --query query > aligned.fasta`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			records, err := sequence.ParseFASTA(f)
			f.Close()
			if err != nil {
				return err
			}
			if len(records) < 2 {
				return fmt.Errorf("%s: need at least two sequences to align", args[0])
			}

			for _, a := range c.Aligners {
				if a.Name() != tool {
					continue
				}
				raw, err := a.Align(cmd.Context(), records.String(), filepath.Base(args[0]))
				if err != nil {
					return err
				}
				aligned, err := sequence.ParseFASTA(strings.NewReader(raw))
				if err != nil {
					return err
				}
				if trim {
					if aligned, err = sequence.TrimToQuery(aligned, query); err != nil {
						return err
					}
				}
				_, err = aligned.WriteTo(os.Stdout)
				return err
			}
			return fmt.Errorf("unknown alignment tool %q", tool)
		},
	}

	cmd.Flags().StringVar(&tool, "tool", "clustalo", "Alignment tool: clustalo|muscle")
	cmd.Flags().BoolVar(&trim, "trim", false, "Trim the alignment to the query record")
	cmd.Flags().StringVar(&query, "query", "query", "Header of the record to trim to")
	return cmd
}

func newFitCmd() *cobra.Command {
	var req app.CurveRequest
	var minValue float64

	cmd := &cobra.Command{
		Use:   "fit [table-file]",
		Short: "Fit the Hill equation to columns of a table",
		Long: `Read a spreadsheet or delimited text table and fit the Hill equation to
each Y column against the X column. Prints the midpoint and Hill coefficient
per column and writes <title>_fits.csv and <title>_fits.xlsx.

Example: curie-cli fit melt.xlsx --x Temp --y A1 --y A2 --min 140000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			frame, err := readTable(c, args[0])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("min") {
				req.MinValue = &minValue
			}
			if req.XColumn == "" || len(req.YColumns) == 0 {
				cols, err := app.Columns(frame, req.Transpose)
				if err != nil {
					return err
				}
				if req.XColumn == "" && len(cols) > 0 {
					req.XColumn = cols[0]
				}
				if len(req.YColumns) == 0 {
					for _, col := range cols {
						if col != req.XColumn {
							req.YColumns = append(req.YColumns, col)
						}
					}
				}
			}
			req.Frame = frame

			res, err := c.Curve.Fit(cmd.Context(), req)
			if err != nil {
				return err
			}
			for _, fit := range res.Fits {
				fmt.Println(fit.Line())
			}
			return writeArtifacts(res.Run)
		},
	}

	cmd.Flags().StringVar(&req.Title, "title", "", "Title for the run and the output files")
	cmd.Flags().StringVar(&req.XColumn, "x", "", "X column (default: first column)")
	cmd.Flags().StringArrayVar(&req.YColumns, "y", nil, "Y column, repeatable (default: every other column)")
	cmd.Flags().BoolVar(&req.Transpose, "transpose", false, "Samples are laid out in rows")
	cmd.Flags().Float64Var(&minValue, "min", 0, "Minimum value used to scale readings (default from configuration)")
	return cmd
}

func newDescribeCmd() *cobra.Command {
	var req app.StatsRequest

	cmd := &cobra.Command{
		Use:   "describe [table-file]",
		Short: "Summarise numeric columns and optionally compare two",
		Long: `Print count, mean, standard deviation, median, range and quartiles of
numeric columns. With --a and --b a Welch t-test compares the two columns.

Example: curie-cli describe plate.csv --a control --b treated`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			if req.Frame, err = readTable(c, args[0]); err != nil {
				return err
			}
			res, err := c.Stats.Analyze(cmd.Context(), req)
			if err != nil {
				return err
			}
			for _, s := range res.Summaries {
				fmt.Printf("%-20s n=%-4d mean=%-10.4g sd=%-10.4g median=%-10.4g min=%-10.4g max=%.4g\n",
					s.Column, s.N, s.Mean, s.StdDev, s.Median, s.Min, s.Max)
			}
			if t := res.TTest; t != nil {
				fmt.Printf("Welch t-test %s vs %s: t=%.4g df=%.4g p=%.4g (%s)\n", t.A, t.B, t.T, t.DF, t.PValue, t.Summary)
			}
			return writeArtifacts(res.Run)
		},
	}

	cmd.Flags().StringVar(&req.Title, "title", "", "Title for the run and the output files")
	cmd.Flags().StringSliceVar(&req.Columns, "columns", nil, "Columns to summarise (default: every numeric column)")
	cmd.Flags().StringVar(&req.A, "a", "", "First column of the t-test")
	cmd.Flags().StringVar(&req.B, "b", "", "Second column of the t-test")
	return cmd
}

func newPixelsCmd() *cobra.Command {
	req := app.PixelRequest{Range: pixel.FullRange()}

	cmd := &cobra.Command{
		Use:   "pixels [image-file...]",
		Short: "Count pixels whose gray level is inside a range",
		Long: `Convert each image to grayscale and count pixels whose level lies within
--lower and --upper inclusive. Writes pixel_counts.csv and a processed preview
of the first image (or --preview).

Example: curie-cli pixels gels/*.png --lower 0 --upper 100 --highlight`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				req.Images = append(req.Images, app.Upload{Name: filepath.Base(path), Data: data})
			}
			res, err := c.Pixels.Count(cmd.Context(), req)
			if err != nil {
				return err
			}
			for _, n := range res.Counts {
				fmt.Printf("%-30s %10d / %-10d %6.2f%%\n", n.FileName, n.InRange, n.Total, n.Percentage())
			}
			return writeArtifacts(res.Run)
		},
	}

	cmd.Flags().StringVar(&req.Title, "title", "", "Title for the run and the output files")
	cmd.Flags().IntVar(&req.Range.Lower, "lower", 0, "Lower grayscale value")
	cmd.Flags().IntVar(&req.Range.Upper, "upper", 255, "Upper grayscale value")
	cmd.Flags().BoolVar(&req.Highlight, "highlight", false, "Highlight in-range pixels in the preview")
	cmd.Flags().StringVar(&req.Preview, "preview", "", "File name of the image to preview")
	cmd.Flags().IntVar(&req.PreviewWidth, "preview-width", 800, "Preview width in pixels")
	return cmd
}

func newRunsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List recorded runs, or write the files of one run",
		Long: `Without an argument, list the most recent runs in the configured database.
With a run id, write that run's files to --out.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			if len(args) == 1 {
				r, err := c.Runs.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeArtifacts(r)
			}
			runs, err := c.Runs.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, r := range runs {
				fmt.Printf("%s  %-7s %-30s %s\n", r.ID, r.Kind, r.Title, r.CreatedAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to list")
	return cmd
}

// readTable reads a spreadsheet or delimited file with the upload reader
func readTable(c *container.Container, path string) (*tabular.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return c.Reader.Read(filepath.Base(path), f)
}

// writeArtifacts saves every file of a run into outDir
func writeArtifacts(r *run.Run) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	for _, a := range r.Artifacts {
		path := filepath.Join(outDir, a.Name)
		if err := os.WriteFile(path, a.Data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Fprintf(os.Stderr, "wrote %s (%d bytes)\n", path, a.Size())
	}
	return nil
}
