package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"curiesuite/adapters/excel"
	"curiesuite/adapters/memory"
	"curiesuite/adapters/postgres"
	"curiesuite/app"
	"curiesuite/domain/pixel"
	"curiesuite/internal"
	"curiesuite/internal/config"
	"curiesuite/internal/hill"
	"curiesuite/internal/migration"
	"curiesuite/internal/tabular"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "curie-dev",
		Short: "Curie tool suite development tools",
	}

	rootCmd.AddCommand(
		newSeedCmd(),
		newSmokeTestCmd(),
		newMigrateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newSeedCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write sample inputs for every tool",
		RunE: func(cmd *cobra.Command, args []string) error {
			return generateSeedData(dir)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "testdata", "Directory for the sample files")
	return cmd
}

func newSmokeTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Run the offline tools against generated inputs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSmokeTests(cmd.Context())
		},
	}
	return cmd
}

func newMigrateCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the run history tables in a local SQLite file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), path)
		},
	}
	cmd.Flags().StringVar(&path, "db", "./dev_runs.db", "SQLite database file")
	return cmd
}

// meltCurve samples a descending Hill curve per well, as a thermal shift
// plate reader exports it
func meltCurve() excel.Sheet {
	wells := []struct {
		name      string
		midpoint  float64
		steepness float64
	}{
		{"A1", 45, -6}, {"A2", 48, -8}, {"A3", 52, -5},
	}
	sheet := excel.Sheet{Name: "Melt", Headers: []string{"Temp"}}
	for _, w := range wells {
		sheet.Headers = append(sheet.Headers, w.name)
	}
	for x := 20.0; x <= 80; x += 2.5 {
		row := []string{strconv.FormatFloat(x, 'f', -1, 64)}
		for _, w := range wells {
			y := 140000 + 60000*hill.Response(x, w.midpoint, w.steepness)
			row = append(row, strconv.FormatFloat(math.Round(y), 'f', 0, 64))
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet
}

func pairedSamples() string {
	var sb strings.Builder
	sb.WriteString("control,treated\n")
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&sb, "%.2f,%.2f\n", 10+math.Sin(float64(i)), 12+math.Cos(float64(i)))
	}
	return sb.String()
}

// gelImage is a dark band on a light background
func gelImage() ([]byte, error) {
	img := image.NewGray(image.Rect(0, 0, 64, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 64; x++ {
			level := uint8(220)
			if y >= 12 && y < 20 && x >= 8 && x < 56 {
				level = 40
			}
			img.SetGray(x, y, color.Gray{Y: level})
		}
	}
	var buf bytes.Buffer
	err := png.Encode(&buf, img)
	return buf.Bytes(), err
}

const lysozyme = `>lysozyme
KVFGRCELAAAMKRHGLDNYRGYSLGNWVCAAKFESNFNTQATNRNTDGSTDYGILQINSRWWCNDGRTPGSRNLCNIPCSALLSSDITASVNCAKKIVSDGNGMNAWVAWRNRCKGTDVQAWIRGCRL
`

func generateSeedData(dir string) error {
	fmt.Println("Generating seed data...")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	book, err := excel.WriteWorkbook(meltCurve())
	if err != nil {
		return fmt.Errorf("failed to build melt curve workbook: %w", err)
	}
	gel, err := gelImage()
	if err != nil {
		return fmt.Errorf("failed to encode gel image: %w", err)
	}

	files := map[string][]byte{
		"melt_curve.xlsx": book,
		"samples.csv":     []byte(pairedSamples()),
		"gel.png":         gel,
		"lysozyme.fasta":  []byte(lysozyme),
	}
	for name, data := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		fmt.Printf("Wrote %s\n", path)
	}

	fmt.Println("Seed data generation completed successfully")
	return nil
}

func runSmokeTests(ctx context.Context) error {
	fmt.Println("Running smoke tests...")

	log := zerolog.Nop()
	runs := memory.NewRunRepository(0)
	curves := app.NewCurveService(hill.NewFitter(log), runs, 140000, log)
	stats := app.NewStatsService(runs, log)
	pixels := app.NewPixelService(runs, log)
	reader := excel.NewDataReader(8 << 20)

	tests := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"curve_fit", func(ctx context.Context) error {
			book, err := excel.WriteWorkbook(meltCurve())
			if err != nil {
				return err
			}
			frame, err := reader.Read("melt_curve.xlsx", bytes.NewReader(book))
			if err != nil {
				return err
			}
			res, err := curves.Fit(ctx, app.CurveRequest{Frame: frame, XColumn: "Temp", YColumns: []string{"A1", "A2", "A3"}})
			if err != nil {
				return err
			}
			for _, fit := range res.Fits {
				if !fit.Converged {
					return fmt.Errorf("%s did not converge: %s", fit.Sample, fit.Message)
				}
			}
			return nil
		}},
		{"statistics", func(ctx context.Context) error {
			frame, err := tabular.ParsePaste(pairedSamples())
			if err != nil {
				return err
			}
			res, err := stats.Analyze(ctx, app.StatsRequest{Frame: frame, A: "control", B: "treated"})
			if err != nil {
				return err
			}
			if res.TTest == nil || res.TTest.PValue >= 0.05 {
				return fmt.Errorf("expected a significant difference, got %+v", res.TTest)
			}
			return nil
		}},
		{"pixel_count", func(ctx context.Context) error {
			gel, err := gelImage()
			if err != nil {
				return err
			}
			res, err := pixels.Count(ctx, app.PixelRequest{
				Images:    []app.Upload{{Name: "gel.png", Data: gel}},
				Range:     pixel.Range{Lower: 0, Upper: 100},
				Highlight: true,
			})
			if err != nil {
				return err
			}
			if got := res.Counts[0].InRange; got != 48*8 {
				return fmt.Errorf("counted %d band pixels, want %d", got, 48*8)
			}
			return nil
		}},
	}

	passed := 0
	for _, test := range tests {
		fmt.Printf("  Running %s...", test.name)
		if err := test.fn(ctx); err != nil {
			fmt.Printf(" FAILED: %v\n", err)
		} else {
			fmt.Println(" PASSED")
			passed++
		}
	}

	fmt.Printf("\nSmoke tests: %d/%d passed\n", passed, len(tests))
	if passed < len(tests) {
		return fmt.Errorf("some smoke tests failed")
	}
	return nil
}

func runMigrations(ctx context.Context, path string) error {
	log := internal.NewDefaultLogger()
	db, err := postgres.Open(ctx, config.DatabaseConfig{Driver: "sqlite3", URL: path}, log)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	runner := migration.NewRunner(log)
	if err := runner.Run(ctx, db); err != nil {
		return err
	}
	fmt.Printf("Migrated %s to version %s\n", path, runner.Version())
	return nil
}
