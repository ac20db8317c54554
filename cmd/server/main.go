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

	"bank_panel_backend/internal/config"
	"bank_panel_backend/internal/database"
	"bank_panel_backend/internal/router"
	"bank_panel_backend/internal/services"
	"bank_panel_backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

// bootstrap loads configuration and opens the configured store.
// The returned closer is never nil.
func bootstrap(ctx context.Context, envFile string) (*config.Config, router.Repositories, func(), error) {
	noop := func() {}

	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, router.Repositories{}, noop, err
	}
	utils.InitLogger(cfg.LogLevel, cfg.LogPretty)
	utils.ConfigureJWT(cfg.JWTSecret, cfg.JWTTTL)

	if cfg.StoreDriver == config.StoreDriverMemory {
		log.Warn().Msg("Using in-memory store; data is lost on exit")
		return cfg, router.NewMemoryRepositories(), noop, nil
	}

	db, err := database.InitDB(ctx, cfg.DB.Options())
	if err != nil {
		return nil, router.Repositories{}, noop, err
	}
	closer := func() {
		if cerr := db.Close(); cerr != nil {
			utils.LogError(cerr, "Failed to close database")
		}
	}
	if cfg.DB.SchemaPath != "" {
		if err := database.ApplySchema(ctx, db, cfg.DB.SchemaPath); err != nil {
			closer()
			return nil, router.Repositories{}, noop, err
		}
	}
	return cfg, router.NewPostgresRepositories(db), closer, nil
}

func serve(ctx context.Context, envFile string) error {
	cfg, repos, closeStore, err := bootstrap(ctx, envFile)
	if err != nil {
		return err
	}
	defer closeStore()

	gin.SetMode(cfg.GinMode)

	metricsHandler, err := utils.RegisterMetrics(nil)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	engine := router.New(repos, router.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		MetricsHandler: metricsHandler,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		utils.LogInfo("Server starting", map[string]interface{}{"port": cfg.Port, "store": cfg.StoreDriver})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	utils.LogInfo("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func createAdmin(ctx context.Context, envFile string, req services.RegisterUserRequest) error {
	cfg, repos, closeStore, err := bootstrap(ctx, envFile)
	if err != nil {
		return err
	}
	defer closeStore()
	if cfg.StoreDriver == config.StoreDriverMemory {
		return errors.New("create-admin needs a persistent store (STORE_DRIVER=postgres)")
	}

	user, err := services.NewAuthService(repos.Auth).RegisterAdmin(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("created admin %s (%s)\n", user.Username, user.ID)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var envFile string

	root := &cobra.Command{
		Use:           "bank-panel",
		Short:         "Bank control panel back-office API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before reading the environment")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), envFile)
		},
	}

	var adminReq services.RegisterUserRequest
	createAdminCmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account directly in the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return createAdmin(cmd.Context(), envFile, adminReq)
		},
	}
	createAdminCmd.Flags().StringVar(&adminReq.Username, "username", "", "Admin username")
	createAdminCmd.Flags().StringVar(&adminReq.Email, "email", "", "Admin email")
	createAdminCmd.Flags().StringVar(&adminReq.Password, "password", "", "Admin password (min 8 characters)")
	_ = createAdminCmd.MarkFlagRequired("username")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("password")

	root.AddCommand(serveCmd, createAdminCmd)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
