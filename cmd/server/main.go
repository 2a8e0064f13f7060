// Copyright 2025 The fawa Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fawa-io/katalog/pkg/blob"
	"github.com/fawa-io/katalog/pkg/config"
	"github.com/fawa-io/katalog/pkg/cors"
	"github.com/fawa-io/katalog/pkg/fwlog"
	"github.com/fawa-io/katalog/pkg/identity"
	"github.com/fawa-io/katalog/pkg/kv"
	"github.com/fawa-io/katalog/pkg/metrics"
	"github.com/fawa-io/katalog/pkg/util"
	"github.com/fawa-io/katalog/pkg/web"
	"github.com/fawa-io/katalog/service/auth"
	"github.com/fawa-io/katalog/service/product"
	"github.com/fawa-io/katalog/service/sweeper"
)

func main() {
	if err := config.InitConfig(); err != nil {
		fwlog.Fatalf("Failed to initialize configuration: %v", err)
	}
	cfg := config.Get()
	if err := cfg.Validate(); err != nil {
		fwlog.Fatalf("Invalid configuration: %v", err)
	}

	level, err := fwlog.ParseLevel(cfg.LogLevel)
	if err != nil {
		fwlog.Warnf("Invalid log level %q, using info: %v", cfg.LogLevel, err)
		level = fwlog.LevelInfo
	}
	fwlog.SetLevel(level)
	if cfg.LogFile != "" {
		fwlog.EnableFile(cfg.LogFile)
	}

	ctx := context.Background()

	table, err := kv.Open(ctx, cfg.KV)
	if err != nil {
		fwlog.Fatalf("Failed to open key/value table: %v", err)
	}

	store, err := blob.NewMinioStore(cfg.Blob)
	if err != nil {
		fwlog.Fatalf("Failed to create blob store: %v", err)
	}
	ensureCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = store.EnsureContainer(ensureCtx)
	cancel()
	if err != nil {
		fwlog.Fatalf("Failed to ensure bucket %s: %v", store.Bucket(), err)
	}

	provider, err := identity.New(cfg.Identity, table)
	if err != nil {
		fwlog.Fatalf("Failed to create identity provider: %v", err)
	}

	productSvc := product.NewService(table, store, cfg.Blob.SignedURLTTL)

	e := web.NewEcho(cfg.BodyLimit)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	limiter := auth.NewIPLimiter(cfg.Auth.RateLimit, cfg.Auth.RateBurst)
	auth.NewHandler(provider).Register(e.Group("/auth", limiter.Middleware()))
	product.NewHandler(productSvc).Register(e.Group("/products", auth.RequireBearer(provider)))

	stopSweeper := func() {}
	if cfg.Sweeper.Schedule != "" {
		sched, err := sweeper.New(productSvc, store, cfg.Sweeper.Grace).Start(cfg.Sweeper.Schedule)
		if err != nil {
			fwlog.Fatalf("Failed to schedule sweeper: %v", err)
		}
		stopSweeper = func() { <-sched.Stop().Done() }
	}

	katalogSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           cors.NewCORS(cfg.CORSOrigins...).Handler(e),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Setup graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		fwlog.Info("Shutting down server...")

		stopSweeper()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := katalogSrv.Shutdown(ctx); err != nil {
			fwlog.Errorf("Server shutdown error: %v", err)
		}
		if err := table.Close(); err != nil {
			fwlog.Errorf("Error closing key/value table: %v", err)
		}

		fwlog.Info("Server shutdown complete")
	}()

	fwlog.Infof("Server starting on %v", cfg.Addr)

	if cfg.CertFile != "" && cfg.KeyFile != "" {
		for _, f := range []string{cfg.CertFile, cfg.KeyFile} {
			if !util.Exist(f) {
				fwlog.Fatalf("TLS file %s does not exist", f)
			}
		}
		err = katalogSrv.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
	} else {
		fwlog.Warn("No TLS certificate configured, serving plain HTTP")
		err = katalogSrv.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		fwlog.Fatalf("Failed to start server: %v", err)
	}
	<-done
}
