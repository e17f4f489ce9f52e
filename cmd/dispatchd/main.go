package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/zyansaber/dispatching-3-sub000/internal/auth"
	"github.com/zyansaber/dispatching-3-sub000/internal/db"
	"github.com/zyansaber/dispatching-3-sub000/internal/dispatch"
	"github.com/zyansaber/dispatching-3-sub000/internal/handlers"
	"github.com/zyansaber/dispatching-3-sub000/internal/middleware"
	"github.com/zyansaber/dispatching-3-sub000/internal/models"
	"github.com/zyansaber/dispatching-3-sub000/internal/store"
)

// refreshSpec re-pulls all three collections periodically so clients
// converge even if a change notification was missed.
const refreshSpec = "@every 5m"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using environment variables")
	}

	if os.Getenv("LOG_LEVEL") == "debug" {
		log.SetLevel(log.DebugLevel)
	}
	log.SetFormatter(&log.JSONFormatter{})

	client, err := db.ConnectMongo()
	if err != nil {
		log.WithField("error", err.Error()).Fatal("Failed to connect to MongoDB")
	}
	defer client.Disconnect(context.Background())
	log.Info("Connected to MongoDB")

	database := db.Database(client)

	var publisher store.Publisher
	if broker := os.Getenv("MQTT_BROKER"); broker != "" {
		mqttPub, err := store.NewMQTTPublisher(broker, "dispatchd", store.DefaultSnapshotTopic)
		if err != nil {
			log.WithField("error", err.Error()).Fatal("Failed to connect to MQTT broker")
		}
		defer mqttPub.Close()
		publisher = mqttPub
		log.WithField("broker", broker).Info("Publishing vehicle snapshots over MQTT")
	}

	st := store.NewMongoStore(database, publisher)
	defer st.Close()

	engine := dispatch.NewEngine(st, dispatch.NewFlagMachine(""))
	live := handlers.NewLiveHandler(engine)
	defer live.Close()
	engine.SetOnChange(live.Broadcast)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := engine.Start(ctx); err != nil {
		log.WithField("error", err.Error()).Fatal("Failed to start dispatch engine")
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(refreshSpec, func() { st.Refresh(ctx) }); err != nil {
		log.WithField("error", err.Error()).Fatal("Failed to schedule store refresh")
	}
	scheduler.Start()
	defer scheduler.Stop()

	authService, err := auth.NewService()
	if err != nil {
		log.WithField("error", err.Error()).Fatal("Failed to initialize auth service")
	}
	users := db.NewUserStore(database)
	authHandler := handlers.NewAuthHandler(authService, users)
	authMiddleware := middleware.NewAuthMiddleware(authService)
	rateLimiter := middleware.NewRateLimitMiddleware()

	dispatchHandler := handlers.NewDispatchHandler(engine)
	feedHandler := handlers.NewFeedHandler(st)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", authHandler.Login)
	mux.HandleFunc("/api/auth/register", authHandler.Register)
	mux.HandleFunc("/api/auth/profile", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			authHandler.GetProfile(w, r)
			return
		}
		authHandler.UpdateProfile(w, r)
	})
	mux.HandleFunc("/api/auth/password", authHandler.ChangePassword)

	mux.HandleFunc("/api/dispatch/records", dispatchHandler.Records)
	mux.HandleFunc("/api/dispatch/records/", dispatchHandler.Record)
	mux.HandleFunc("/api/dispatch/stats", dispatchHandler.Stats)
	mux.HandleFunc("/api/dispatch/live", live.Serve)

	// Feed ingestion is restricted to dispatchers (and admins).
	requireDispatcher := authMiddleware.RequireRole(models.RoleDispatcher)
	mux.Handle("/api/feed/vehicles", requireDispatcher(http.HandlerFunc(feedHandler.Vehicles)))
	mux.Handle("/api/feed/reallocations", requireDispatcher(http.HandlerFunc(feedHandler.Reallocations)))
	mux.Handle("/api/feed/schedule", requireDispatcher(http.HandlerFunc(feedHandler.Schedule)))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	handler := rateLimiter.RateLimit(300, 60)(authMiddleware.Authenticate(mux))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.WithField("port", port).Info("HTTP server listening")
	log.Fatal(http.ListenAndServe(":"+port, handler))
}
