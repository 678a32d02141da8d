package main

import (
	"fmt"
	"os"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"go.uber.org/zap"

	"boqimport/collections"
	"boqimport/commands"
	"boqimport/config"
	"boqimport/handlers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer zap.L().Sync()

	app := pocketbase.New()
	app.RootCmd.AddCommand(commands.NewParseCommand(cfg))

	// Create collections on startup
	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		collections.Setup(app)
		return se.Next()
	})

	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		// ── BOQ imports ──────────────────────────────────────────
		se.Router.POST("/boq-imports", handlers.HandleBOQImportCreate(app, cfg))
		se.Router.GET("/boq-imports", handlers.HandleBOQImportList(app))
		se.Router.GET("/boq-imports/{id}", handlers.HandleBOQImportView(app))
		se.Router.DELETE("/boq-imports/{id}", handlers.HandleBOQImportDelete(app))

		// ── Export ───────────────────────────────────────────────
		se.Router.GET("/boq-imports/{id}/export/excel", handlers.HandleBOQImportExportExcel(app))

		return se.Next()
	})

	zap.L().Info("boqimport: starting",
		zap.Int("header_scan_limit", cfg.Parser.HeaderScanLimit),
		zap.String("default_currency", cfg.Parser.DefaultCurrency),
		zap.Int("max_upload_mb", cfg.Import.MaxUploadMB),
	)
	if err := app.Start(); err != nil {
		zap.L().Fatal("boqimport: app stopped", zap.Error(err))
	}
}
