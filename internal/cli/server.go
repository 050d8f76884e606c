package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cbt-exam-service/internal/app"
	"cbt-exam-service/internal/config"
	"cbt-exam-service/internal/domain"
	"cbt-exam-service/internal/infra/memory"
	pgloader "cbt-exam-service/internal/infra/postgres"
	redisinfra "cbt-exam-service/internal/infra/redis"
	transport "cbt-exam-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the exam server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.TestLoader = memory.NewStaticTestLoader(seedTests())
	if pool != nil {
		loader = pgloader.NewTestLoader(pool)
	}

	bankTTL := config.Duration(cfg.TestBank.TTL, 10*time.Minute)
	var tests app.TestRepository
	if redisClient != nil {
		tests = redisinfra.NewTestRepository(redisClient, loader, bankTTL)
	} else {
		tests = memory.NewTestRepository(loader, bankTTL)
	}

	var store app.AttemptStore
	if redisClient != nil {
		store = redisinfra.NewAttemptStore(redisClient)
	} else {
		store = memory.NewAttemptStore()
	}

	gradeDelay := config.Duration(cfg.Grading.Delay, time.Second)
	service := app.NewExamService(store, tests, app.WithGradeDelay(gradeDelay))
	wsHandler := transport.NewWSHandler(service)
	dashboard := transport.NewDashboardHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.HandleFunc("/api/tests", dashboard.ServeOverview)
	mux.HandleFunc("/api/result", dashboard.ServeResult)
	mux.HandleFunc("/api/retake", dashboard.ServeRetake)
	mux.HandleFunc("/api/certificate", dashboard.ServeCertificate)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting exam service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// seedTests provides a minimal catalog for running without a database; swap
// the loader with the Postgres-backed one in production. Passing thresholds
// are percentages; the legacy point-scale cutoffs live on as rating bands.
func seedTests() []domain.Test {
	return []domain.Test{
		{
			ID:              "1",
			Title:           "Real Estate Agent Competency Quiz",
			Description:     "Sales fundamentals, land evaluation, and client handling.",
			PassingScore:    70,
			DurationMinutes: 45,
			Questions: []domain.Question{
				{
					ID:   "1",
					Text: "What is the first step in any successful real estate sales process?",
					Options: []string{
						"Offer a discount",
						"Conduct a property tour",
						"Understand the buyer's needs",
						"Post on social media",
					},
					CorrectAnswer: 2,
					Explanation:   "Understanding the buyer's needs is the foundation of any successful sales process.",
				},
				{
					ID:   "2",
					Text: "Which of the following is the most effective way to handle buyer objections?",
					Options: []string{
						"Avoid answering directly",
						"Get emotional",
						"Ask questions to understand the real concern",
						"Offer to reduce your commission",
					},
					CorrectAnswer: 2,
					Explanation:   "Asking questions identifies the underlying concern behind the surface objection.",
				},
				{
					ID:   "3",
					Text: "Which of these factors most significantly drives up land value?",
					Options: []string{
						"Streetlights",
						"Proximity to a major road or expressway",
						"The color of the perimeter fence",
						"Billboard advertising",
					},
					CorrectAnswer: 1,
					Explanation:   "Accessibility through major roads increases land value via connectivity and development potential.",
				},
				{
					ID:   "4",
					Text: "Why is it important to pre-qualify a buyer before a site visit?",
					Options: []string{
						"To reduce transportation costs",
						"To ensure they're financially ready",
						"To know their family background",
						"To make a social media post",
					},
					CorrectAnswer: 1,
					Explanation:   "Pre-qualifying ensures the buyer has the financial capacity to purchase.",
				},
			},
			// Band cutoffs sit at 90/70/50 percent of the question count.
			RatingBands: []domain.RatingBand{
				{MinPoints: 4, Label: "Expert", Recommendation: "Eligible for certificate, recognition, priority listings"},
				{MinPoints: 3, Label: "Competent", Recommendation: "Pass - recommend further field mentorship"},
				{MinPoints: 2, Label: "Basic", Recommendation: "Suggest agent refresher training"},
				{MinPoints: 0, Label: "Not Ready", Recommendation: "Recommend enrolling in beginner real estate bootcamp"},
			},
		},
		{
			ID:              "2",
			Title:           "Real Estate Math & Feasibility Test",
			Description:     "Pricing, yield, and feasibility arithmetic.",
			PassingScore:    70,
			DurationMinutes: 45,
			Questions: []domain.Question{
				{
					ID:            "1",
					Text:          "A plot costs 2,000,000 and sells a year later for 2,300,000. What is the gross return?",
					Options:       []string{"10%", "12%", "15%", "20%"},
					CorrectAnswer: 2,
					Explanation:   "300,000 gain on 2,000,000 is a 15% gross return.",
				},
				{
					ID:            "2",
					Text:          "An agent earns 5% commission on a 4,500,000 sale. How much is the commission?",
					Options:       []string{"200,000", "225,000", "250,000", "450,000"},
					CorrectAnswer: 1,
					Explanation:   "5% of 4,500,000 is 225,000.",
				},
			},
		},
		{
			ID:              "3",
			Title:           "Environmental & Lifestyle Awareness Test",
			Description:     "Estate environment, amenities, and lifestyle factors.",
			PassingScore:    70,
			DurationMinutes: 45,
			FeedbackMode:    domain.FeedbackImmediate,
			Questions: []domain.Question{
				{
					ID:   "1",
					Text: "Why do real estate developers invest in trees, walkways, and parks?",
					Options: []string{
						"For aesthetics only",
						"To make drone footage look better",
						"To enhance value and attract a quality market",
						"Because the government demands it",
					},
					CorrectAnswer: 2,
					Explanation:   "Amenities enhance the value proposition and attract buyers willing to pay premium prices.",
				},
				{
					ID:   "2",
					Text: "Which of the following has little or no impact on land value?",
					Options: []string{
						"Accessibility",
						"Government infrastructure plans",
						"Historical rent growth in the area",
						"Social media influencer living nearby",
					},
					CorrectAnswer: 3,
					Explanation:   "Social media hype does not fundamentally change long-term land value.",
				},
			},
		},
	}
}
