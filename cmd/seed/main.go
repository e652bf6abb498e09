package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"captive-portal/internal/config"
	"captive-portal/internal/domain/model"
	"captive-portal/internal/infra/adapters/network"
	pg "captive-portal/internal/infra/db/postgres"
	"captive-portal/internal/infra/logging"
	"captive-portal/internal/usecase"
)

// seed prints a batch of fresh access codes for one plan, e.g. for a printed voucher run.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	planID := flag.String("plan", "1", "package id the codes grant")
	quantity := flag.Int("n", 10, "number of codes (1-100)")
	flag.Parse()

	// ---- Config ----
	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Connect Postgres
	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	catalog, err := model.NewCatalog(model.DefaultPackages())
	if len(cfg.Packages) > 0 {
		pkgs := make([]model.Package, 0, len(cfg.Packages))
		for _, p := range cfg.Packages {
			name := p.Name
			if name == "" {
				name = p.ID
			}
			pkgs = append(pkgs, model.Package{ID: p.ID, Name: name, DurationHours: p.DurationHours, Price: p.Price})
		}
		catalog, err = model.NewCatalog(pkgs)
	}
	if err != nil {
		log.Fatalf("catalog: %v", err)
	}
	gen, err := usecase.NewCodeGenerator(cfg.Codes.Alphabet, cfg.Codes.Length)
	if err != nil {
		log.Fatalf("code generator: %v", err)
	}

	codes := usecase.NewAccessCodeUseCase(pg.NewAccessCodeRepo(pool), network.NewNoopDisconnector(logger),
		gen, pg.NewTxManager(pool), catalog, logger, false)

	res, err := codes.GenerateBatch(ctx, usecase.Requester{ID: "seed", Privileged: true}, *planID, *quantity)
	if res != nil {
		for _, c := range res.Codes {
			fmt.Println(c.Code)
		}
		fmt.Printf("%d codes generated for plan %s; %d remain in the code space.\n", len(res.Codes), *planID, res.Remaining)
	}
	if err != nil {
		log.Fatalf("generate: %v", err)
	}
}
