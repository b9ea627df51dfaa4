// Copyright 2025 AxonFlow
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

// Package main is the entry point for the MPC Security Gateway.
//
// The gateway authenticates, screens, and routes client <-> LLM traffic
// per request, emitting a structured AIEvent into the monitoring pipeline
// for every attempt. On-wire framing is deliberately thin here: this
// binary exists to demonstrate the wiring boundary, not to be a full HTTP
// ingress (transport framing is out of scope, see spec.md §1).
//
// Usage:
//
//	./gateway
//
// Environment Variables:
//
//	PORT - HTTP server port (default: 8082)
//	DATABASE_URL - PostgreSQL connection string for event/anomaly/audit storage
//	REDIS_ADDR - Redis address for the idempotency cache (optional; falls
//	             back to the in-memory cache when unset)
//	TOKEN_SECRET - HMAC-SHA-256 signing secret for bearer tokens
//	SIGNATURE_SECRET - HMAC-SHA-256 secret for optional payload-signature
//	                   verification (optional; unset disables the check)
//	REGISTRY_SEED_FILE - path to a YAML backend registry seed (optional)
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/axonflow-gateway/mpc-gateway/audit"
	"github.com/axonflow-gateway/mpc-gateway/auth"
	"github.com/axonflow-gateway/mpc-gateway/backend"
	"github.com/axonflow-gateway/mpc-gateway/events"
	"github.com/axonflow-gateway/mpc-gateway/gateway"
	"github.com/axonflow-gateway/mpc-gateway/mpcgw"
	"github.com/axonflow-gateway/mpc-gateway/registry"
	"github.com/axonflow-gateway/mpc-gateway/shared/logger"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// buildBackends registers the deterministic stub catalog used when no
// real cloud adapter is configured: a zero-cost rule engine first hop plus
// small/large/private stub LLMs spanning the sensitivity and PII-allowed
// combinations spec.md's scenarios exercise. Concrete OpenAI/Anthropic/
// Ollama adapters are out of scope per spec.md §1 and would register here
// in their place.
func buildBackends(gw *gateway.Gateway) {
	_ = gw.RegisterBackend(backend.NewRuleEngineBackend("rule:faq", []backend.Rule{
		{Match: "what is api security", Response: "API security is the practice of protecting APIs from abuse and unauthorized access."},
	}))

	_ = gw.RegisterBackend(backend.NewStubLLMBackend("model:small", mpcgw.BackendLLMSmall, "stub-small",
		backend.WithLatency(80*time.Millisecond),
		backend.WithConfidence(0.80),
	))

	_ = gw.RegisterBackend(backend.NewStubLLMBackend("model:large", mpcgw.BackendLLMLarge, "stub-large",
		backend.WithLatency(400*time.Millisecond),
		backend.WithConfidence(0.92),
		backend.WithSensitivityAllowed(map[mpcgw.Sensitivity]bool{
			mpcgw.SensitivityPublic:    true,
			mpcgw.SensitivityInternal:  true,
			mpcgw.SensitivitySensitive: true,
			mpcgw.SensitivityPII:       true,
		}),
	))

	_ = gw.RegisterBackend(backend.NewStubLLMBackend("model:private", mpcgw.BackendLLMPrivate, "stub-private",
		backend.WithLatency(150*time.Millisecond),
		backend.WithConfidence(0.88),
		backend.WithPIIAllowed(true),
		backend.WithSensitivityAllowed(map[mpcgw.Sensitivity]bool{
			mpcgw.SensitivityPublic:    true,
			mpcgw.SensitivityInternal:  true,
			mpcgw.SensitivitySensitive: true,
			mpcgw.SensitivityPII:       true,
		}),
	))
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// processHandler adapts the gateway's byte-in/byte-out contract to HTTP,
// following the teacher's processRequestHandler shape (orchestrator/run.go)
// but delegating every decision to gateway.Gateway.Handle.
func processHandler(gw *gateway.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, 8<<20))
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
		defer cancel()

		resp := gw.Handle(ctx, body)

		w.Header().Set("Content-Type", "application/json")
		if resp.Status == mpcgw.StatusError {
			w.WriteHeader(http.StatusBadRequest)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func main() {
	log.Println("Starting MPC Security Gateway...")

	appLogger := logger.New("gateway")

	reg := registry.New(registry.WithLogger(appLogger))

	var storage events.Storage
	var auditSink audit.Sink
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		pgStorage, err := events.NewPostgresStorage(db)
		if err != nil {
			log.Fatalf("failed to initialize event storage: %v", err)
		}
		storage = pgStorage
		pgAudit, err := audit.NewPostgresSink(db)
		if err != nil {
			log.Fatalf("failed to initialize audit sink: %v", err)
		}
		auditSink = pgAudit
	} else {
		log.Println("DATABASE_URL not set, using in-memory event storage and audit sink")
		storage = events.NewMemoryStorage()
		auditSink = audit.NewMemorySink()
	}

	pipeline := events.NewPipeline(storage,
		events.WithAlertEmitter(events.NewStderrAlertEmitter()),
		events.WithLogger(appLogger),
	)
	defer pipeline.Close()

	tokens := auth.NewTokenService(getEnv("TOKEN_SECRET", "dev-insecure-secret"))

	opts := []gateway.Option{gateway.WithLogger(appLogger)}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: redisAddr})
		opts = append(opts, gateway.WithIdempotencyCache(gateway.NewRedisIdempotencyCache(client)))
	}
	if sigSecret := os.Getenv("SIGNATURE_SECRET"); sigSecret != "" {
		opts = append(opts, gateway.WithSignatureVerifier(auth.NewSignatureVerifier(sigSecret)))
	}

	gw := gateway.New(reg, tokens, pipeline, auditSink, opts...)

	if seedPath := os.Getenv("REGISTRY_SEED_FILE"); seedPath != "" {
		seed, err := gateway.LoadRegistrySeedYAML(seedPath)
		if err != nil {
			log.Fatalf("failed to load registry seed: %v", err)
		}
		log.Printf("loaded registry seed %s version=%s backends=%d (descriptor-only; adapters still come from buildBackends)", seedPath, seed.Version, len(seed.Backends))
	}

	buildBackends(gw)

	r := mux.NewRouter()
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	r.HandleFunc("/health", healthHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/api/v1/process", processHandler(gw)).Methods("POST")

	port := getEnv("PORT", "8082")
	handler := c.Handler(r)
	log.Printf("MPC Security Gateway listening on port %s", port)
	log.Fatal(http.ListenAndServe(":"+port, handler))
}
