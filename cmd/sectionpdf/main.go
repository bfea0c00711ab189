package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/gompdf/sectionpdf"
	"github.com/gompdf/sectionpdf/internal/capture"
	"github.com/gompdf/sectionpdf/internal/config"
	"github.com/gompdf/sectionpdf/internal/entitlement"
	"github.com/gompdf/sectionpdf/internal/logger"
	"github.com/gompdf/sectionpdf/internal/storage"
)

func main() {
	var (
		configFile string
		inputFile  string
		images     string
		outputFile string
		subject    string
		title      string
		verbose    bool
	)

	flag.StringVar(&configFile, "config", "", "Config file path (default: config.toml in ., ./config, /etc/sectionpdf)")
	flag.StringVar(&inputFile, "input", "", "Input HTML view whose marked sections are exported")
	flag.StringVar(&images, "images", "", "Comma-separated section images (PNG, JPEG, GIF, BMP, TIFF, WebP, SVG)")
	flag.StringVar(&outputFile, "output", "", "Output PDF file path (default: store through the configured storage backend)")
	flag.StringVar(&subject, "subject", "", "Visitor id checked against the export entitlement")
	flag.StringVar(&title, "title", "", "Document title and header label")
	flag.BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	flag.Parse()

	if inputFile == "" && images == "" {
		fmt.Println("Error: -input or -images is required")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Printf("Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, request{
		input:   inputFile,
		images:  splitList(images),
		output:  outputFile,
		subject: subject,
		title:   title,
	}); err != nil {
		log.Error("export failed", zap.Error(err))
		fmt.Printf("Error exporting: %v\n", err)
		os.Exit(1)
	}
}

type request struct {
	input   string
	images  []string
	output  string
	subject string
	title   string
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger, req request) error {
	deps := []sectionpdf.Dependency{}

	checker, closeChecker, err := newChecker(cfg, log)
	if err != nil {
		return err
	}
	defer closeChecker()
	deps = append(deps, sectionpdf.WithEntitlement(checker))

	if req.output == "" {
		store, err := newStore(cfg, log)
		if err != nil {
			return err
		}
		if store == nil {
			req.output = defaultOutput(req)
		} else {
			deps = append(deps, sectionpdf.WithStore(store))
		}
	}

	exportReq := &sectionpdf.ExportRequest{
		Subject:  req.subject,
		FileName: fileName(req),
		Title:    req.title,
	}
	for _, path := range req.images {
		exportReq.Sources = append(exportReq.Sources, sectionpdf.Source{
			Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			Path: path,
		})
	}

	if len(exportReq.Sources) == 0 {
		html, err := os.ReadFile(req.input)
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		exportReq.HTML = string(html)

		chrome, err := capture.NewChromeRenderer(cfg.PageConfig(), &capture.ChromeConfig{
			Timeout:   cfg.Render.Timeout,
			RemoteURL: cfg.Render.ChromeURL,
			NoSandbox: cfg.Render.NoSandbox,
			Logger:    log,
		})
		if err != nil {
			return err
		}
		defer chrome.Close()
		deps = append(deps, sectionpdf.WithViewRenderer(chrome))
	}

	exporter, err := sectionpdf.NewExporter(buildOptions(cfg, log, req), deps...)
	if err != nil {
		return err
	}

	var result *sectionpdf.ExportResult
	if req.output != "" {
		result, err = exporter.ExportToFile(ctx, exportReq, req.output)
	} else {
		result, err = exporter.ExportToStore(ctx, exportReq)
	}
	if err != nil {
		return err
	}

	log.Info("export written",
		zap.String("location", result.Location),
		zap.Int("pages", result.Pages),
		zap.Int("sections", result.Sections))
	fmt.Println(result.Location)
	return nil
}

// buildOptions maps configuration onto exporter options
func buildOptions(cfg *config.Config, log *zap.Logger, req request) sectionpdf.Options {
	mode := sectionpdf.RenderLazy
	if cfg.Render.Mode == "eager" {
		mode = sectionpdf.RenderEager
	}

	opts := []sectionpdf.Option{
		sectionpdf.WithPageSize(cfg.Page.WidthMM, cfg.Page.HeightMM),
		sectionpdf.WithMargin(cfg.Page.MarginMM),
		sectionpdf.WithBands(cfg.Page.HeaderHeightMM, cfg.Page.FooterHeightMM),
		sectionpdf.WithSectionGap(cfg.Page.SectionGapMM),
		sectionpdf.WithRenderScale(cfg.Page.RenderScale),
		sectionpdf.WithTailPolicy(cfg.TailPolicy()),
		sectionpdf.WithRenderMode(mode),
		sectionpdf.WithHeaderMark(cfg.Header.Mark),
		sectionpdf.WithHeaderLabel(cfg.Header.Destination),
		sectionpdf.WithFooterBrand(cfg.Header.Brand),
		sectionpdf.WithSectionMarker(cfg.Render.Marker),
		sectionpdf.WithContainerID(cfg.Render.ContainerID),
		sectionpdf.WithTitle(req.title),
		sectionpdf.WithLogger(log),
	}
	if cfg.Header.AccentColor != "" {
		opts = append(opts, sectionpdf.WithAccentColor(cfg.Header.AccentColor))
	}
	if req.input != "" {
		opts = append(opts, sectionpdf.WithResourcePath(filepath.Dir(req.input)))
	}
	// keep a landscape page from config as configured
	if cfg.Page.WidthMM > cfg.Page.HeightMM {
		opts = append(opts, sectionpdf.WithPageOrientation(sectionpdf.PageOrientationLandscape))
	}
	return sectionpdf.NewOptions(opts...)
}

// newChecker builds the export gate. The returned func releases its resources.
func newChecker(cfg *config.Config, log *zap.Logger) (entitlement.Checker, func(), error) {
	noop := func() {}
	switch cfg.Entitlement.Backend {
	case "deny":
		return entitlement.Static(false), noop, nil
	case "memory":
		return entitlement.NewFlagChecker(entitlement.NewMemoryFlagStore(),
			entitlement.WithLogger(log),
			entitlement.WithDefault(cfg.Entitlement.Default)), noop, nil
	case "redis":
		store, err := entitlement.NewRedisFlagStore(entitlement.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, log)
		if err != nil {
			return nil, noop, err
		}
		return entitlement.NewFlagChecker(store,
				entitlement.WithLogger(log),
				entitlement.WithDefault(cfg.Entitlement.Default)),
			func() { _ = store.Close() }, nil
	default:
		return entitlement.Always(), noop, nil
	}
}

// newStore builds the configured storage backend; nil means none
func newStore(cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case "s3":
		return storage.NewS3Store(&storage.S3Config{
			Endpoint:          cfg.S3.Endpoint,
			Region:            cfg.S3.Region,
			Bucket:            cfg.S3.Bucket,
			AccessKey:         cfg.S3.AccessKey,
			SecretKey:         cfg.S3.SecretKey,
			UseSSL:            cfg.S3.UseSSL,
			UsePathStyle:      cfg.S3.UsePathStyle,
			Prefix:            cfg.S3.Prefix,
			PresignExpiration: cfg.S3.PresignExpiration,
		}, storage.WithLogger(log))
	case "filesystem":
		return storage.NewFileSystemStore(&storage.FileSystemConfig{
			BasePath: cfg.Storage.BasePath,
			Logger:   log,
		})
	default:
		return nil, nil
	}
}

func fileName(req request) string {
	if req.title != "" {
		return req.title
	}
	if req.input != "" {
		return strings.TrimSuffix(filepath.Base(req.input), filepath.Ext(req.input))
	}
	return "export"
}

func defaultOutput(req request) string {
	if req.input != "" {
		ext := filepath.Ext(req.input)
		return req.input[:len(req.input)-len(ext)] + ".pdf"
	}
	return storage.SanitizeName(fileName(req)) + ".pdf"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
