package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/mewannirundakaperera/SkillNet-sub001/config"
	"github.com/mewannirundakaperera/SkillNet-sub001/routes"
	"github.com/mewannirundakaperera/SkillNet-sub001/services"
	"github.com/mewannirundakaperera/SkillNet-sub001/socket"
	"github.com/mewannirundakaperera/SkillNet-sub001/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// AWS config is shared by DynamoDB and the S3 roster archive
	var awsCfg aws.Config
	if cfg.StoreBackend == config.BackendDynamo || cfg.S3Bucket != "" {
		if awsCfg, err = store.LoadAWSConfig(ctx, cfg.AWSRegion); err != nil {
			log.Fatalf("❌ Failed to load AWS config: %v", err)
		}
	}

	db, closeStore := openStore(ctx, cfg, awsCfg)
	defer closeStore()

	clock := services.SystemClock{}
	meetings := &services.MeetingService{Store: db, BaseURL: cfg.MeetingBaseURL, Clock: clock}
	if cfg.S3Bucket != "" {
		meetings.Archive = services.NewS3RosterArchive(awsCfg, cfg.S3Bucket)
		log.Printf("✅ Roster archive enabled (bucket %s)", cfg.S3Bucket)
	}

	var directory services.Directory = services.OpenDirectory{}
	if cfg.DirectoryMode == config.DirectoryStore {
		directory = &services.StoreDirectory{Store: db}
	}

	requestService := &services.RequestService{
		Store:            db,
		Gateway:          &services.ResponseGateway{Store: db, Clock: clock},
		Meetings:         meetings,
		Notifier:         services.LogNotifier{},
		Clock:            clock,
		MinPaymentAmount: cfg.MinPaymentAmount,
	}
	groupService := &services.GroupRequestService{
		Store:     db,
		Meetings:  meetings,
		Directory: directory,
		Notifier:  services.LogNotifier{},
		Clock:     clock,
	}
	monitor := &services.DeadlineMonitor{
		Store:        db,
		Groups:       groupService,
		Requests:     requestService,
		Clock:        clock,
		Interval:     cfg.DeadlineInterval,
		ClaimTimeout: cfg.ClaimTimeout,
	}
	go monitor.Run(ctx)

	// Socket.IO for live request views
	socketServer := socket.NewSocketServer()
	go func() {
		if err := socketServer.Serve(); err != nil {
			log.Printf("❌ Socket server stopped: %v", err)
		}
	}()
	defer socketServer.Close()
	stopRelay := (&socket.Relay{Store: db, Out: socketServer}).Start()
	defer stopRelay()

	r := mux.NewRouter()
	routes.RegisterRoutes(r)
	routes.RegisterRequestRoutes(r, requestService)
	routes.RegisterGroupRequestRoutes(r, groupService)
	routes.RegisterMeetingRoutes(r, meetings)
	routes.RegisterMembershipRoutes(r, &services.MembershipService{Store: db, Clock: clock})
	r.PathPrefix("/socket.io/").Handler(socketServer)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(r)

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("⚠️ Shutdown: %v", err)
		}
	}()

	log.Printf("Starting server on port %d (store: %s)...", cfg.Port, cfg.StoreBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("❌ Server failed: %v", err)
	}
	log.Println("✅ Server stopped")
}

// openStore builds the configured backend and starts its change feed
func openStore(ctx context.Context, cfg config.Config, awsCfg aws.Config) (store.Store, func()) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		ps, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("❌ Failed to open Postgres store: %v", err)
		}
		go func() {
			if err := ps.Listen(ctx); err != nil && ctx.Err() == nil {
				log.Printf("❌ Postgres change feed stopped: %v", err)
			}
		}()
		log.Println("✅ Postgres store ready")
		return ps, ps.Close

	case config.BackendMemory:
		log.Println("⚠️ Using the in-memory store; data is lost on restart")
		return store.NewMemoryStore(), func() {}
	}

	log.Println("Initializing DynamoDB client...")
	client := store.InitializeDynamoDBClient(awsCfg, cfg.DynamoEndpoint)
	ds := store.NewDynamoStore(client, cfg.TablePrefix, !cfg.EnableStreams)
	if cfg.DynamoEndpoint != "" {
		if err := ds.EnsureTables(ctx, cfg.EnableStreams); err != nil {
			log.Fatalf("❌ Failed to create tables: %v", err)
		}
	}
	if cfg.EnableStreams {
		streams := dynamodbstreams.NewFromConfig(awsCfg, func(o *dynamodbstreams.Options) {
			if cfg.DynamoEndpoint != "" {
				o.BaseEndpoint = aws.String(cfg.DynamoEndpoint)
			}
		})
		tailer := store.NewStreamTailer(streams, ds)
		go func() {
			if err := tailer.Run(ctx); err != nil && ctx.Err() == nil {
				log.Printf("❌ DynamoDB stream tailer stopped: %v", err)
			}
		}()
	}
	log.Println("DynamoDB client initialized.")
	return ds, func() {}
}
