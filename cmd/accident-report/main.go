package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/banshee-data/accident.report/internal/api"
	"github.com/banshee-data/accident.report/internal/config"
	"github.com/banshee-data/accident.report/internal/db"
	"github.com/banshee-data/accident.report/internal/fsutil"
	"github.com/banshee-data/accident.report/internal/monitoring"
	"github.com/banshee-data/accident.report/internal/report"
	"github.com/banshee-data/accident.report/internal/version"
)

var (
	input       = flag.String("input", "data/accidentes_transito.csv", "Accident CSV file")
	configPath  = flag.String("config", "", "JSON or YAML config file")
	outDir      = flag.String("out", "reports", "Output directory for charts")
	chartFormat = flag.String("format", "png", "Chart format: png or svg")
	cutoff      = flag.Int("cutoff", 2024, "Exclusive cutoff year for the consolidated and bar charts")
	dbPath      = flag.String("db", "", "Record the run in this SQLite file")
	xlsxPath    = flag.String("xlsx", "", "Export the run to this .xlsx workbook")
	serve       = flag.Bool("serve", false, "Serve the report locally after the run")
	listen      = flag.String("listen", "localhost:0", "Viewer listen address")
	openPage    = flag.Bool("open", false, "Open the report in the browser (implies -serve)")
	quiet       = flag.Bool("quiet", false, "Mute diagnostic logging")
)

const welcome = "Bienvenidos al sistema de Análisis de Accidentes de Tránsito"

func openBrowser(url string) {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "linux":
		cmd = "xdg-open"
		args = []string{url}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", url}
	default:
		log.Printf("Unsupported platform: %s", runtime.GOOS)
		return
	}

	if err := exec.Command(cmd, args...).Start(); err != nil {
		log.Printf("Failed to open browser: %v", err)
	}
}

// explicitFlags returns the names of the flags given on the command line.
func explicitFlags() map[string]bool {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// loadConfig layers the configuration: defaults < file < .env/environment <
// explicit flags.
func loadConfig(path, dotenv string, set map[string]bool) (*config.ReportConfig, error) {
	cfg := config.EmptyReportConfig()
	if path != "" {
		fileCfg, err := config.LoadReportConfig(path)
		if err != nil {
			return nil, err
		}
		cfg.Merge(fileCfg)
	}

	if err := config.LoadDotEnv(dotenv); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	applyFlags(cfg, set)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyFlags(cfg *config.ReportConfig, set map[string]bool) {
	if set["input"] {
		cfg.SetInput(*input)
	}
	if set["out"] {
		cfg.SetOutputDir(*outDir)
	}
	if set["format"] {
		cfg.SetChartFormat(*chartFormat)
	}
	if set["cutoff"] {
		cfg.SetCutoffYear(*cutoff)
	}
	if set["db"] {
		cfg.SetDBPath(*dbPath)
	}
	if set["xlsx"] {
		cfg.SetWorkbookPath(*xlsxPath)
	}
	if set["listen"] {
		cfg.SetListenAddr(*listen)
	}
}

// serveReport runs the viewer for res until ctx is cancelled.
func serveReport(ctx context.Context, cfg *config.ReportConfig, res *report.Result) error {
	var store *db.DB
	if path := cfg.GetDBPath(); path != "" {
		var err error
		if store, err = db.NewDB(path); err != nil {
			return fmt.Errorf("failed to open run store: %w", err)
		}
		defer store.Close()
	}

	h, err := api.NewServer(api.Snapshot{
		RunID:    res.RunID,
		Dir:      res.RunDir,
		Monthly:  res.Monthly,
		CrossTab: res.CrossTab,
	}, store).Router()
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.GetListenAddr())
	if err != nil {
		return fmt.Errorf("failed to create listener for HTTP server: %w", err)
	}
	url := "http://" + ln.Addr().String() + "/"
	fmt.Printf("Reporte disponible en %s (Ctrl+C para salir)\n", url)
	if *openPage {
		openBrowser(url)
	}
	return api.Serve(ctx, ln, h)
}

func main() {
	flag.Parse()

	if flag.Arg(0) == "version" {
		fmt.Println(version.String())
		return
	}
	if *quiet {
		monitoring.SetLogger(nil)
	}

	cfg, err := loadConfig(*configPath, ".env", explicitFlags())
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch flag.Arg(0) {
	case "migrate":
		if err := runMigrate(os.Stdout, cfg.GetDBPath(), flag.Args()[1:]); err != nil {
			log.Fatalf("migrate failed: %v", err)
		}
		return
	case "runs":
		if err := runRuns(ctx, os.Stdout, cfg.GetDBPath(), flag.Args()[1:]); err != nil {
			log.Fatalf("runs failed: %v", err)
		}
		return
	}

	fmt.Println(welcome)

	p := &report.Pipeline{
		Config: cfg,
		FS:     fsutil.OSFileSystem{},
		Out:    os.Stdout,
	}
	res, err := p.Run(ctx)
	if err != nil {
		log.Fatalf("report failed: %v", err)
	}
	if err := p.Export(ctx, res); err != nil {
		log.Fatalf("export failed: %v", err)
	}

	if *serve || *openPage {
		if err := serveReport(ctx, cfg, res); err != nil {
			log.Fatalf("viewer failed: %v", err)
		}
	}
}
