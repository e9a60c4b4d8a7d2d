package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/WeMakeGood/mg-asset-download/config"
	"github.com/WeMakeGood/mg-asset-download/repositories"
	"github.com/WeMakeGood/mg-asset-download/services"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "asset-localizer",
		Short: "Localizes external document assets",
		Long: `asset-localizer scans tracked documents for references to externally
hosted images and linked files, downloads each distinct asset once into
local storage, and rewrites the document bodies to point at the local
copies.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(runCmd(), drainCmd(), statusCmd(), clearLockCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildLocalizer wires the full dependency graph from config. Callers get
// the orchestrator plus the loaded config for driver-level settings.
func buildLocalizer(ctx context.Context) (*services.LocalizerService, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to db: %w", err)
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx,
		awsConfig.WithRegion(cfg.AWSRegion),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	docRepo := repositories.NewDocumentRepository(db)
	assetRepo := repositories.NewAssetRepository(db)
	s3Repo := repositories.NewS3Repository(awsCfg)
	httpRepo := repositories.NewHTTPRepository(
		time.Duration(cfg.FetchTimeoutSeconds)*time.Second,
		cfg.FetchInsecureSkipVerify,
	)
	sqsClient := repositories.NewSQSClient(sqs.NewFromConfig(awsCfg))
	dynamoClient := repositories.NewDynamoDBClient(dynamodb.NewFromConfig(awsCfg), cfg.ProgressTable)
	runLock := repositories.NewRunLockRepository(cfg.RedisHost, cfg.RedisPort)

	resolver := services.NewResolverService(
		services.WithAssetRecords(assetRepo),
		services.WithAssetStore(s3Repo),
		services.WithAssetFetcher(httpRepo),
		services.WithAssetLocation(cfg.AssetsBucket, cfg.AssetsBaseURL),
		services.WithResolverEvents(sqsClient, cfg.EventsQueueURL),
	)

	localizer := services.NewLocalizerService(
		services.WithDocumentStore(docRepo),
		services.WithScanner(services.NewScannerService(cfg.SiteBaseURL, cfg.AssetsBaseURL)),
		services.WithResolver(resolver),
		services.WithRunLock(runLock),
		services.WithProgressMirror(dynamoClient),
		services.WithLocalizerEvents(sqsClient, cfg.EventsQueueURL),
		services.WithBatchSize(cfg.BatchSize),
	)

	return localizer, cfg, nil
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Process batches on an interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			localizer, cfg, err := buildLocalizer(ctx)
			if err != nil {
				return err
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			interval := time.Duration(cfg.RunIntervalSeconds) * time.Second
			log.Printf("Asset localizer started (batch size %d, interval %s)", cfg.BatchSize, interval)

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			if err := localizer.ProcessBatch(ctx); err != nil {
				log.Printf("failed to process batch: %v", err)
			}

			for {
				select {
				case <-ticker.C:
					if err := localizer.ProcessBatch(ctx); err != nil {
						log.Printf("failed to process batch: %v", err)
					}
				case sig := <-sigChan:
					log.Printf("Received %v, shutting down", sig)
					cancel()
					return nil
				}
			}
		},
	}
}

func drainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Process documents one at a time until the backlog is empty",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			localizer, _, err := buildLocalizer(ctx)
			if err != nil {
				return err
			}

			for {
				result, err := localizer.ProcessOne(ctx)
				if err != nil {
					return err
				}
				if result.Complete {
					fmt.Printf("All %d documents processed.\n", result.Total)
					return nil
				}

				done := result.Total - result.Remaining
				line := fmt.Sprintf("[%d/%d] document %d (%s)", done, result.Total, result.DocumentID, result.Title)
				if result.HadWarnings {
					line += " - completed with warnings"
				}
				fmt.Println(line)
			}
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show localization progress and lock state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			localizer, _, err := buildLocalizer(ctx)
			if err != nil {
				return err
			}

			total, completed, err := localizer.Counts(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Progress:  %d/%d documents (%d%%)\n", completed, total, services.Percentage(total, completed))

			lastRun, err := localizer.LastRun(ctx)
			if err != nil {
				return err
			}
			if lastRun == "" {
				lastRun = "never"
			}
			fmt.Printf("Last run:  %s\n", lastRun)

			info, err := localizer.LockInfo(ctx)
			if err != nil {
				return err
			}
			switch {
			case !info.Held:
				fmt.Println("Lock:      free")
			case info.Stale:
				fmt.Printf("Lock:      held by %s since %s (STALE, consider clear-lock)\n",
					info.Holder, info.AcquiredAt.Format(time.RFC3339))
			default:
				fmt.Printf("Lock:      held by %s since %s\n",
					info.Holder, info.AcquiredAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func clearLockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-lock",
		Short: "Forcibly release the processing lock",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			localizer, _, err := buildLocalizer(ctx)
			if err != nil {
				return err
			}

			info, err := localizer.LockInfo(ctx)
			if err != nil {
				return err
			}
			if !info.Held {
				fmt.Println("No lock held.")
				return nil
			}

			if err := localizer.ClearLock(ctx); err != nil {
				return err
			}
			fmt.Printf("Cleared lock held by %s since %s.\n",
				info.Holder, info.AcquiredAt.Format(time.RFC3339))
			return nil
		},
	}
}
