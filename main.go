package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"listing-publisher/config"
	"listing-publisher/copygen"
	"listing-publisher/images"
	"listing-publisher/models"
	"listing-publisher/pipeline"
	"listing-publisher/publisher"
	"listing-publisher/scraper/trademe"
	"listing-publisher/server"
	"listing-publisher/services"
	"listing-publisher/storage"
	"listing-publisher/utils"
)

func main() {
	serve := flag.Bool("serve", false, "run the HTTP backend instead of the interactive CLI")
	platforms := flag.String("platforms", "facebook,instagram", "comma-separated publish targets")
	yes := flag.Bool("yes", false, "publish without asking for confirmation")
	flag.Parse()

	cfg := config.Load()
	logger := utils.NewLoggerWith(utils.LoggerOptions{
		Writer: os.Stderr,
		Level:  cfg.LogLevel,
		JSON:   cfg.LogFormat == "json",
	})

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	host, localDir, err := buildHost(cfg)
	if err != nil {
		logger.Error("Failed to set up image hosting: %v", err)
		os.Exit(1)
	}

	receipts, reader := buildReceipts(cfg, logger)
	defer receipts.Close()

	captions := services.NewCaptionService(logger)
	fetcher := images.NewFetcher(cfg.MaxConcurrency, cfg.RateLimitMs, cfg.ImageTimeout, logger)
	coord := pipeline.New(pipeline.Deps{
		Scraper:   trademe.New(cfg, logger),
		Images:    images.NewPreparer(fetcher, host, cfg.MaxConcurrency, logger),
		Copy:      copygen.NewClaude(cfg.AnthropicAPIKey, cfg.CopyModel, cfg.CopyMaxTokens, logger),
		Captions:  captions,
		Publisher: publisher.New(cfg, logger),
		Host:      host,
		Receipts:  receipts,
	}, cfg, logger)

	if *serve {
		if lh, ok := host.(*storage.LocalHost); ok {
			if n, err := lh.Sweep(24 * time.Hour); err != nil {
				logger.Warn("Stale image sweep failed: %v", err)
			} else if n > 0 {
				logger.Info("Removed %d stale image directories", n)
			}
		}
		runServer(ctx, coord, cfg, localDir, reader, logger)
		return
	}

	targets, err := parsePlatforms(*platforms)
	if err != nil {
		logger.Error("%v", err)
		os.Exit(2)
	}
	if err := runCLI(ctx, coord, captions, targets, *yes, logger); err != nil {
		os.Exit(1)
	}
}

func runCLI(ctx context.Context, coord *pipeline.Coordinator, captions *services.CaptionService, targets []models.Platform, yes bool, logger *utils.Logger) error {
	in := bufio.NewReader(os.Stdin)

	url := strings.TrimSpace(flag.Arg(0))
	if url == "" {
		fmt.Print("TradeMe listing URL: ")
		line, _ := in.ReadString('\n')
		url = strings.TrimSpace(line)
	}

	logger.Info("=== Listing publisher starting ===")
	st, err := coord.Prepare(ctx, url, func(e pipeline.Event) {
		if e.Kind == pipeline.EventProgress {
			logger.Info("[%s] %s", e.Stage, e.Message)
		}
	})
	if err != nil {
		logger.Error("Run failed at %s: %v", st.FailedAt, err)
		return err
	}

	captions.Print(st.Captions, st.Report)
	fmt.Printf("  %d image(s) selected for %s\n\n", st.SelectedCount(), joinPlatforms(targets))

	if !yes {
		fmt.Print("Publish now? [y/N]: ")
		answer, _ := in.ReadString('\n')
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			coord.Abandon(ctx, st)
			logger.Info("Not published. Hosted images removed.")
			return nil
		}
	}

	st, err = coord.Publish(ctx, st, targets, nil)
	if err != nil {
		logger.Error("Publish failed: %v", err)
		return err
	}

	for _, p := range models.Platforms {
		o, ok := st.Result[p]
		switch {
		case !ok:
			continue
		case o.Success:
			fmt.Printf("  \033[1;32m✓\033[0m %-10s post %s\n", p, o.PostID)
		default:
			fmt.Printf("  \033[1;31m✗\033[0m %-10s %s\n", p, o.Error)
		}
	}

	if st.Result.AllFailed() {
		fmt.Println("\nPublishing failed, but here's the generated copy:")
		fmt.Printf("\n--- FACEBOOK ---\n%s\n\n--- INSTAGRAM ---\n%s\n\n", st.Captions.Facebook, st.Captions.Instagram)
		return fmt.Errorf("all platforms failed")
	}
	return nil
}

func runServer(ctx context.Context, coord *pipeline.Coordinator, cfg *config.Config, localDir string, reader storage.ReceiptReader, logger *utils.Logger) {
	srv := server.New(coord, server.Options{
		Addr:        cfg.HTTPAddr,
		CORSOrigin:  cfg.CORSOrigin,
		ListingsDir: localDir,
		Receipts:    reader,
	}, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("%v", err)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("Shutdown: %v", err)
	}
}

// buildHost returns the configured image host and, for the local host, the
// directory the backend should serve.
func buildHost(cfg *config.Config) (storage.ImageHost, string, error) {
	switch cfg.ImageHost {
	case "s3":
		h, err := storage.NewS3Host(cfg)
		return h, "", err
	case "local", "":
		h, err := storage.NewLocalHost(cfg.ImageLocalDir, cfg.ImagePublicBase)
		if err != nil {
			return nil, "", err
		}
		return h, h.Dir(), nil
	default:
		return nil, "", fmt.Errorf("unknown IMAGE_HOST %q (want local or s3)", cfg.ImageHost)
	}
}

// buildReceipts opens every configured ledger. A ledger that cannot be
// opened is skipped with a warning; receipts never block publishing.
func buildReceipts(cfg *config.Config, logger *utils.Logger) (storage.MultiWriter, storage.ReceiptReader) {
	var writers storage.MultiWriter
	var reader storage.ReceiptReader

	if cfg.ReceiptsCSVPath != "" {
		w, err := storage.NewCSVWriter(cfg.ReceiptsCSVPath)
		if err != nil {
			logger.Warn("Receipts CSV disabled: %v", err)
		} else {
			writers = append(writers, w)
		}
	}
	if cfg.ReceiptsDB {
		pw, err := storage.NewPostgresWriter(cfg.DSN())
		if err != nil {
			logger.Warn("Receipts database disabled: %v", err)
			logger.Warn("Make sure Docker is running: docker compose up -d")
		} else {
			writers = append(writers, pw)
			reader = pw
		}
	}
	return writers, reader
}

func parsePlatforms(s string) ([]models.Platform, error) {
	var out []models.Platform
	seen := map[models.Platform]bool{}
	for _, part := range strings.Split(s, ",") {
		p := models.Platform(strings.ToLower(strings.TrimSpace(part)))
		if p == "" || seen[p] {
			continue
		}
		if p != models.Facebook && p != models.Instagram {
			return nil, fmt.Errorf("unknown platform %q", p)
		}
		seen[p] = true
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no platforms selected")
	}
	return out, nil
}

func joinPlatforms(ps []models.Platform) string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = string(p)
	}
	return strings.Join(names, " + ")
}
