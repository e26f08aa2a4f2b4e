package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nurpe/lease-contracts/internal/auth"
	"github.com/nurpe/lease-contracts/internal/clock"
	"github.com/nurpe/lease-contracts/internal/config"
	"github.com/nurpe/lease-contracts/internal/db"
	"github.com/nurpe/lease-contracts/internal/excel"
	httphandler "github.com/nurpe/lease-contracts/internal/http"
	"github.com/nurpe/lease-contracts/internal/http/middleware"
	"github.com/nurpe/lease-contracts/internal/logger"
	"github.com/nurpe/lease-contracts/internal/notify"
	"github.com/nurpe/lease-contracts/internal/pdf"
	"github.com/nurpe/lease-contracts/internal/repository"
	"github.com/nurpe/lease-contracts/internal/rules"
	"github.com/nurpe/lease-contracts/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	contractRepo := repository.NewContractRepository(database)
	eventRepo := repository.NewEventRepository(database)
	invoiceRepo := repository.NewInvoiceRepository(database)
	notificationRepo := repository.NewNotificationRepository(database)
	linkRepo := repository.NewSignatureLinkRepository(database)
	documentRepo := repository.NewDocumentRepository(database)

	engine, err := rules.NewEngine()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to compile legal rules")
	}

	clk := clock.Real{}
	pdfGenerator := pdf.NewGenerator(cfg.Contracts.Currency)
	excelGenerator := excel.NewGenerator()
	dispatcher := notify.NewDispatcher(notificationRepo, clk, log)

	services := httphandler.Services{
		Contracts: service.NewContractService(contractRepo, eventRepo, documentRepo, clk, cfg.Contracts, log),
		Signing:   service.NewSignatureService(contractRepo, eventRepo, linkRepo, documentRepo, pdfGenerator, dispatcher, clk, cfg.Contracts, log),
		Lifecycle: service.NewLifecycleService(contractRepo, eventRepo, clk, log),
		Rules:     service.NewRulesService(contractRepo, eventRepo, engine, clk, log),
		Legal:     service.NewLegalService(contractRepo, eventRepo, invoiceRepo, notificationRepo, pdfGenerator, excelGenerator, clk, cfg.Contracts, log),
	}

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(services, log)
	router := httphandler.NewRouter(handler, middleware.Auth(tokenParser), cfg, log)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("starting lease contracts service")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
		os.Exit(1)
	}
	log.Info().Msg("server exited")
}
