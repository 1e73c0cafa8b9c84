package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solefab/rndtrack/internal/config"
	"github.com/solefab/rndtrack/internal/rnd/code"
	"github.com/solefab/rndtrack/internal/rnd/repository"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

var (
	codeAt string

	rootCmd = &cobra.Command{
		Use:   "rnd",
		Short: "R&D project tracker for footwear development",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// 加载 .env 文件
			envFile := config.GetEnvOrDefault("ENV_FILE", ".env")
			if err := godotenv.Load(envFile); err != nil {
				log.Printf("Warning: %s not found, using environment variables", envFile)
			}
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE:  runServe,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE:  runMigrate,
	}

	codeCmd = &cobra.Command{
		Use:   "code",
		Short: "Project code utilities",
	}

	codeNextCmd = &cobra.Command{
		Use:   "next",
		Short: "Print the next project code without reserving it",
		RunE:  runCodeNext,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rnd %s (built %s)\n", Version, BuildTime)
		},
	}
)

func init() {
	codeNextCmd.Flags().StringVar(&codeAt, "at", "", "month to allocate for, as YYYY-MM (default: now)")
	codeCmd.AddCommand(codeNextCmd)
	rootCmd.AddCommand(serveCmd, migrateCmd, codeCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// bootstrap 加载配置、日志与数据库
func bootstrap() (*config.Config, *zap.Logger, *app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}

	db, err := initDatabase(cfg.Database)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, zapLogger, &app{db: db}, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	_, zapLogger, a, err := bootstrap()
	if err != nil {
		return err
	}
	defer zapLogger.Sync()

	if err := repository.AutoMigrate(a.db); err != nil {
		zapLogger.Error("Migration failed", zap.Error(err))
		return err
	}
	zapLogger.Info("Migration completed")
	return nil
}

func runCodeNext(cmd *cobra.Command, args []string) error {
	cfg, zapLogger, a, err := bootstrap()
	if err != nil {
		return err
	}
	defer zapLogger.Sync()

	loc, err := cfg.Code.Location()
	if err != nil {
		return err
	}
	at := time.Now().In(loc)
	if codeAt != "" {
		at, err = time.ParseInLocation("2006-01", codeAt, loc)
		if err != nil {
			return fmt.Errorf("invalid --at %q: %w", codeAt, err)
		}
	}

	codes, err := repository.NewProjectRepository(a.db).ListCodes(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), code.Allocate(codes, at))
	return nil
}
