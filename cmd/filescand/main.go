// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command filescand is the worker process bootstrap (§6): it loads the
// engine's JSON configuration, wires every C1-C13 component together,
// and drives the worker loop (C9) until told to stop.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/gops/agent"

	"github.com/scanforge/filescand/internal/adminsrv"
	"github.com/scanforge/filescand/internal/assign"
	"github.com/scanforge/filescand/internal/audit"
	"github.com/scanforge/filescand/internal/blobstore"
	"github.com/scanforge/filescand/internal/config"
	"github.com/scanforge/filescand/internal/dispatch"
	"github.com/scanforge/filescand/internal/eventsink"
	"github.com/scanforge/filescand/internal/harness"
	"github.com/scanforge/filescand/internal/maintenance"
	"github.com/scanforge/filescand/internal/metrics"
	"github.com/scanforge/filescand/internal/queue"
	"github.com/scanforge/filescand/internal/registry"
	"github.com/scanforge/filescand/internal/scanners"
	"github.com/scanforge/filescand/internal/taste"
	"github.com/scanforge/filescand/internal/worker"
	"github.com/scanforge/filescand/pkg/log"
)

func main() {
	var (
		flagConfigFile string
		flagGops       bool
		flagLogLevel   string
		flagLogDate    bool
		flagAdminAddr  string
		flagDevSwagger bool
	)
	flag.StringVar(&flagConfigFile, "config", "./config.json", "Path to the engine's JSON configuration document")
	flag.BoolVar(&flagGops, "gops", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.StringVar(&flagLogLevel, "loglevel", "info", "debug|info|notice|warn|err|crit")
	flag.BoolVar(&flagLogDate, "logdate", false, "Prefix log lines with date/time (otherwise left to systemd)")
	flag.StringVar(&flagAdminAddr, "admin-addr", ":8090", "Address the read-only admin status surface listens on")
	flag.BoolVar(&flagDevSwagger, "swagger", false, "Serve /swagger/ on the admin surface")
	flag.Parse()

	log.SetLogLevel(flagLogLevel)
	log.SetLogDateTime(flagLogDate)

	// See https://github.com/google/gops (runtime overhead is almost zero).
	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Fatalf("gops/agent.Listen failed: %s", err.Error())
		}
	}

	keys, err := config.Load(flagConfigFile)
	if err != nil {
		log.Fatalf("loading config %q failed: %s", flagConfigFile, err.Error())
	}

	blobs, err := blobstore.Init(rawOf(keys.Blob))
	if err != nil {
		log.Fatalf("initializing blob store failed: %s", err.Error())
	}
	q, err := queue.Init(rawOf(keys.Queue))
	if err != nil {
		log.Fatalf("initializing queue failed: %s", err.Error())
	}
	sink, err := eventsink.Init(rawOf(keys.Sink))
	if err != nil {
		log.Fatalf("initializing event sink failed: %s", err.Error())
	}

	// Taster rule set compile failure is fatal to the worker, per §4.4.
	taster, err := taste.New(keys.Tasting.Rules, "*.json")
	if err != nil {
		log.Fatalf("loading taster rules failed: %s", err.Error())
	}
	stopWatch, err := taster.WatchForChanges()
	if err != nil {
		log.Warnf("taster: rule directory watch disabled: %s", err.Error())
		stopWatch = func() {}
	}
	defer stopWatch()

	assigner, err := assign.New(keys.Scanners)
	if err != nil {
		log.Fatalf("compiling scanner assignment rules failed: %s", err.Error())
	}

	reg := registry.New(sink)
	reg.MustRegister("ScanStrings", scanners.NewStrings, optionsFor(keys, "ScanStrings"))
	reg.MustRegister("ScanBase64", scanners.NewBase64, optionsFor(keys, "ScanBase64"))

	metricsReg := metrics.New()

	h := harness.New(blobs, time.Duration(keys.Limits.Scanner)*time.Second, 0)
	h.SetMetrics(metricsReg)

	d := dispatch.New(blobs, sink, taster, assigner, reg, h,
		keys.Limits.MaxDepth, time.Duration(keys.Limits.Distribution)*time.Second)
	d.SetMetrics(metricsReg)

	w := worker.New(q, sink, d, keys.Limits.MaxFiles, time.Duration(keys.Limits.TimeToLive)*time.Second)
	w.SetMetrics(metricsReg)

	if dbPath, ok := stringField(keys.Audit, "db_path"); ok && dbPath != "" {
		if db, err := audit.Connect(dbPath); err != nil {
			log.Errorf("audit: connecting to ledger at %s failed: %s (continuing without it)", dbPath, err.Error())
		} else {
			w.SetAuditLedger(audit.NewLedger(db))
			log.Infof("audit: recording request completions to %s", dbPath)
		}
	}

	sweepInterval := 30 * time.Second
	if v, ok := stringField(keys.Admin, "sweep_interval"); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			sweepInterval = parsed
		}
	}
	sched, err := maintenance.New(maintenance.Config{
		RuleRescanInterval: 5 * time.Minute,
		SweepInterval:      sweepInterval,
	}, taster, blobs, sink)
	if err != nil {
		log.Fatalf("starting maintenance scheduler failed: %s", err.Error())
	}
	defer sched.Shutdown()

	admin := adminsrv.New(flagAdminAddr, reg, metricsReg, flagDevSwagger)

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := admin.Serve(); err != nil {
			log.Errorf("admin server stopped: %s", err.Error())
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Run(ctx)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	log.Infof("filescand: shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := admin.Shutdown(shutdownCtx); err != nil {
		log.Warnf("admin server shutdown: %s", err.Error())
	}

	wg.Wait()
	log.Infof("filescand: graceful shutdown complete")
}

// rawOf re-marshals a parsed config.Keys sub-map back into the
// json.RawMessage each backend's Init expects, since config.Keys
// stores these as map[string]any to stay schema-agnostic across
// backend kinds.
func rawOf(m map[string]any) json.RawMessage {
	if len(m) == 0 {
		return nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		log.Warnf("config: re-marshaling backend config failed: %s", err.Error())
		return nil
	}
	return raw
}

// optionsFor returns the backend configuration options a built-in
// scanner's factory receives: the "options" of the first rule for name
// in keys.Scanners that carries any, or nil if none does.
func optionsFor(keys *config.Keys, name string) map[string]any {
	rules, _ := keys.Scanners.Lookup(name)
	for _, r := range rules {
		if r.Options != nil {
			return r.Options
		}
	}
	return nil
}

func stringField(m map[string]any, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
