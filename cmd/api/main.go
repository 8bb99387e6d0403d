package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"rentflow/agreement"
	"rentflow/api"
	"rentflow/auth"
	"rentflow/db"
	"rentflow/dispute"
	"rentflow/outbox"
	"rentflow/payment"
	"rentflow/profile"
	"rentflow/protocol"
	"rentflow/transfer"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connString := os.Getenv("DATABASE_URL")
	pool, err := db.NewPool(ctx, connString)
	if err != nil {
		log.Fatalf("bootstrap database pool: %v", err)
	}
	defer pool.Close()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	authSvc := auth.NewService(auth.NewRepository(pool), jwtSecret)
	protocolSvc := protocol.NewService(protocol.NewRepository(pool))

	agreementRepo := agreement.NewRepository(pool)
	outboxWriter := outbox.NewWriter()
	tally := protocol.Tally{}

	agreementSvc := agreement.NewService(pool, agreementRepo, outboxWriter, tally)
	paymentSvc := payment.NewService(
		pool,
		payment.NewRepository(pool),
		agreementRepo,
		transfer.NewRecorder(),
		authSvc,
		outboxWriter,
		tally,
	)
	disputeSvc := dispute.NewService(pool, dispute.NewRepository(pool), agreementRepo, outboxWriter, tally)
	profileSvc := profile.NewService(profile.NewRepository(pool))

	worker := outbox.NewWorker(pool, nil)
	go func() {
		if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("outbox worker stopped: %v", err)
		}
	}()

	router := api.NewRouter(authSvc, protocolSvc, agreementSvc, paymentSvc, disputeSvc, profileSvc)

	server := &http.Server{Addr: ":" + port, Handler: router}
	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	log.Printf("rentflow %s listening on :%s", protocolSvc.Version(), port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server failed: %v", err)
	}
}
