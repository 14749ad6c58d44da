package main

import (
	"flag"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/mcclellann/fredWallet/pkg/catalog"
	"github.com/mcclellann/fredWallet/pkg/config"
	"github.com/mcclellann/fredWallet/pkg/ledger"
	"github.com/mcclellann/fredWallet/pkg/loan"
	"github.com/mcclellann/fredWallet/pkg/metrics"
	"github.com/mcclellann/fredWallet/pkg/notify"
	"github.com/mcclellann/fredWallet/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Server holds the services behind the HTTP API.
type Server struct {
	loans   *loan.Service
	wallet  *ledger.Wallet
	debts   *ledger.Debts
	storage store.Storage // Keep a reference to the storage to close it
	logger  *zap.Logger
	now     func() time.Time
}

func NewServer(s store.Storage, openingBalance, declaredSalary decimal.Decimal, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	wallet := ledger.NewWallet(s, openingBalance, logger)
	debts := ledger.NewDebts(s, wallet, logger)
	dispatcher := notify.NewDispatcher(logger, notify.NewLogNotifier(logger))

	return &Server{
		loans: loan.NewService(catalog.Default(), s, wallet, debts,
			loan.WithLogger(logger),
			loan.WithNotifier(dispatcher),
			loan.WithDeclaredSalary(declaredSalary),
		),
		wallet:  wallet,
		debts:   debts,
		storage: s,
		logger:  logger,
		now:     time.Now,
	}
}

// Router registers every route on a new mux router.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.instrument)

	router.HandleFunc("/health", s.healthHandler).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	router.HandleFunc("/products", s.listProductsHandler).Methods("GET")
	router.HandleFunc("/products/{id}", s.getProductHandler).Methods("GET")
	router.HandleFunc("/products/{id}/quote", s.quoteHandler).Methods("POST")
	router.HandleFunc("/products/{id}/eligibility", s.productEligibilityHandler).Methods("GET")
	router.HandleFunc("/eligibility", s.eligibilityHandler).Methods("GET")

	router.HandleFunc("/applications", s.listApplicationsHandler).Methods("GET")
	router.HandleFunc("/applications", s.createApplicationHandler).Methods("POST")
	router.HandleFunc("/applications/{id}", s.getApplicationHandler).Methods("GET")
	router.HandleFunc("/applications/{id}/approve", s.transitionHandler(s.loans.Approve)).Methods("POST")
	router.HandleFunc("/applications/{id}/reject", s.transitionHandler(s.loans.Reject)).Methods("POST")
	router.HandleFunc("/applications/{id}/disburse", s.transitionHandler(s.loans.Disburse)).Methods("POST")

	router.HandleFunc("/debts", s.listDebtsHandler).Methods("GET")
	router.HandleFunc("/debts", s.createDebtHandler).Methods("POST")
	router.HandleFunc("/debts/{id}", s.getDebtHandler).Methods("GET")
	router.HandleFunc("/debts/{id}/payments", s.recordPaymentHandler).Methods("POST")
	router.HandleFunc("/debts/{id}/plan", s.planHandler).Methods("GET")
	router.HandleFunc("/debts/{id}/plan", s.setPlanHandler).Methods("PUT")
	router.HandleFunc("/debts/{id}/quick-payments", s.quickPaymentsHandler).Methods("GET")

	router.HandleFunc("/wallet", s.walletHandler).Methods("GET")
	router.HandleFunc("/wallet/transactions", s.walletTransactionsHandler).Methods("GET")
	router.HandleFunc("/wallet/deposits", s.depositHandler).Methods("POST")
	router.HandleFunc("/wallet/withdrawals", s.withdrawalHandler).Methods("POST")

	return router
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument records request counts and latency per route template.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		timer := prometheus.NewTimer(metrics.HTTPLatency.WithLabelValues(r.Method, route))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		timer.ObserveDuration()

		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
	})
}

func openStorage(conf *config.Configuration, logger *zap.Logger) (store.Storage, error) {
	switch conf.Database.Driver {
	case config.DriverMemory:
		return store.NewMemoryStore(), nil
	case config.DriverSQLite:
		s, err := store.NewSQLiteStore(conf.Database.Path, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("invalid database driver: %s", conf.Database.Driver)
}

func main() {
	configLocation := flag.String("config", "", "path to configuration file")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	flag.Parse()

	if err := config.LoadEnvFile(); err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"warn\", \"msg\": \"ignoring .env file\", \"error\": \"%v\"}\n", err)
	}

	conf, err := config.LoadConfiguration(*configLocation)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		return
	}

	logger, err := config.NewLogger(conf.Logging, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	storage, err := openStorage(conf, logger)
	if err != nil {
		logger.Fatal("failed to initialize store",
			zap.String("op", "main"),
			zap.String("driver", conf.Database.Driver),
			zap.Error(err),
		)
	}
	defer storage.Close()

	// Validate has already parsed both amounts.
	salary, _ := conf.MonthlySalary()
	opening, _ := conf.OpeningBalance()

	server := NewServer(storage, opening, salary, logger)

	logger.Info("server starting",
		zap.String("op", "main"),
		zap.String("address", conf.Server.Address),
		zap.String("driver", conf.Database.Driver),
	)
	httpServer := &http.Server{
		Addr:              conf.Server.Address,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := httpServer.ListenAndServe(); err != nil {
		logger.Fatal("server stopped",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}
}
