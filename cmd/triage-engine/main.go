// Command triage-engine runs one collection against a manifest file and
// writes its result to the configured destination.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/triagekit/engine/pkg/collector"
	"github.com/triagekit/engine/pkg/environment"
	"github.com/triagekit/engine/pkg/humansize"
	"github.com/triagekit/engine/pkg/logging"
	"github.com/triagekit/engine/pkg/manifest"
	"github.com/triagekit/engine/pkg/progress"
)

var collectConfiguration struct {
	manifestPath      string
	destination       string
	stagingParent     string
	sftpKeyPath       string
	envFilePath       string
	concurrency       int
	computeWorkers    int
	stream            bool
	skipUpload        bool
	force             bool
	noVolatileData    bool
	memoryEnabled     bool
	memoryPIDs        []int
	memoryMaxTotalMB  uint64
	progressWindowMS  int
}

var collectCommand = &cobra.Command{
	Use:   "collect",
	Short: "Run one triage collection against a manifest",
	RunE:  runCollect,
}

var rootCommand = &cobra.Command{
	Use:   "triage-engine",
	Short: "A single-host forensic triage collection engine",
}

func init() {
	logging.RootLogger.SetSanitizer(logging.RedactingSanitizer{})

	flags := collectCommand.Flags()
	flags.StringVar(&collectConfiguration.manifestPath, "manifest", "", "path to the collection manifest (required)")
	flags.StringVar(&collectConfiguration.destination, "destination", "", "output destination: local path, s3://bucket/key, or user@host:port/path")
	flags.StringVar(&collectConfiguration.stagingParent, "staging-dir", "", "parent directory for the run's staging root (defaults to the OS temp directory)")
	flags.StringVar(&collectConfiguration.sftpKeyPath, "sftp-key", "", "path to a private key PEM file, required for an SFTP destination")
	flags.StringVar(&collectConfiguration.envFilePath, "env-file", "", "path to a VAR=value environment block overlaid on the process environment for source_path expansion")
	flags.IntVar(&collectConfiguration.concurrency, "concurrency", 4, "number of concurrent acquisition tasks")
	flags.IntVar(&collectConfiguration.computeWorkers, "compute-workers", 2, "number of concurrent hashing/compression workers")
	flags.BoolVar(&collectConfiguration.stream, "stream", false, "stream the archive directly to the destination instead of staging it locally first")
	flags.BoolVar(&collectConfiguration.skipUpload, "skip-upload", false, "stage (and archive, if enabled) locally without contacting the destination")
	flags.BoolVar(&collectConfiguration.force, "force", false, "overwrite an existing file at a local destination")
	flags.BoolVar(&collectConfiguration.noVolatileData, "no-volatile-data", false, "skip the volatile (process/network/memory facts) collection phase")
	flags.BoolVar(&collectConfiguration.memoryEnabled, "memory", false, "acquire process memory")
	flags.IntSliceVar(&collectConfiguration.memoryPIDs, "memory-pid", nil, "restrict memory acquisition to these PIDs (default: every process in the volatile snapshot)")
	flags.Uint64Var(&collectConfiguration.memoryMaxTotalMB, "memory-max-total-mb", 0, "cap on bytes acquired per process (0 means unlimited)")
	flags.IntVar(&collectConfiguration.progressWindowMS, "progress-interval-ms", 500, "progress snapshot coalescing window, in milliseconds")

	cobra.EnableCommandSorting = false
	rootCommand.AddCommand(collectCommand)
}

func runCollect(command *cobra.Command, arguments []string) error {
	if collectConfiguration.manifestPath == "" {
		return fmt.Errorf("--manifest is required")
	}

	m, err := loadManifest(collectConfiguration.manifestPath)
	if err != nil {
		return fmt.Errorf("unable to load manifest: %w", err)
	}

	env, err := environmentOverrides(collectConfiguration.envFilePath)
	if err != nil {
		return fmt.Errorf("unable to load --env-file: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		logging.RootLogger.Warnf("received interrupt, cancelling collection")
		cancel()
	}()

	cfg := collector.Configuration{
		Manifest:       m,
		Host:           currentHostFamily(),
		Destination:    collectConfiguration.destination,
		StagingParent:  collectConfiguration.stagingParent,
		Concurrency:    collectConfiguration.concurrency,
		ComputeWorkers: collectConfiguration.computeWorkers,
		Stream:         collectConfiguration.stream,
		SkipUpload:     collectConfiguration.skipUpload,
		Force:          collectConfiguration.force,
		NoVolatileData: collectConfiguration.noVolatileData,
		Environment:    env,
		Logger:         logging.RootLogger,
		Memory: collector.MemoryOptions{
			Enabled:                 collectConfiguration.memoryEnabled,
			TargetPIDs:              collectConfiguration.memoryPIDs,
			MaxTotalBytesPerProcess: collectConfiguration.memoryMaxTotalMB * uint64(humansize.MiB),
		},
	}

	reporter := progress.NewReporter(time.Duration(collectConfiguration.progressWindowMS) * time.Millisecond)
	defer reporter.Close()
	cfg.Progress = reporter
	go logProgress(reporter)

	if err := attachDestinationClients(ctx, &cfg); err != nil {
		return err
	}

	summary, err := collector.Run(ctx, cfg)
	if summary != nil {
		fmt.Printf("collection %s finished with status %s (%d acquired, %d failed)\n",
			summary.RunID, summary.OverallStatus, len(summary.Acquired), len(summary.Failed))
	}
	return err
}

// currentHostFamily maps the build's GOOS to the manifest host family the
// platform adapter compiled in for this binary actually implements.
func currentHostFamily() manifest.HostFamily {
	switch runtime.GOOS {
	case "windows":
		return manifest.FamilyL
	case "darwin":
		return manifest.FamilyD
	default:
		return manifest.FamilyP
	}
}

func loadManifest(path string) (*manifest.Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m manifest.Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// attachDestinationClients dials the S3 client or reads the SFTP private key
// the destination coordinate needs, leaving cfg untouched for a local
// destination or when uploading is skipped entirely.
func attachDestinationClients(ctx context.Context, cfg *collector.Configuration) error {
	if cfg.SkipUpload || cfg.Destination == "" {
		return nil
	}

	if isObjectStoreDestination(cfg.Destination) {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return fmt.Errorf("unable to load AWS configuration: %w", err)
		}
		cfg.S3Client = s3.NewFromConfig(awsCfg)
		return nil
	}

	if collectConfiguration.sftpKeyPath != "" {
		key, err := os.ReadFile(collectConfiguration.sftpKeyPath)
		if err != nil {
			return fmt.Errorf("unable to read SFTP private key: %w", err)
		}
		cfg.SFTPPrivateKeyPEM = key
	}
	return nil
}

// environmentOverrides returns nil when no --env-file was given, so the
// collector falls back to the live process environment on its own. When
// given, the file's VAR=value block is parsed and overlaid on top of a copy
// of the process environment, so source_path expansion sees both.
func environmentOverrides(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	merged := environment.CopyCurrent()
	for k, v := range environment.ToMap(environment.ParseBlock(string(raw))) {
		merged[k] = v
	}
	return merged, nil
}

func isObjectStoreDestination(destination string) bool {
	return len(destination) > 5 && destination[:5] == "s3://"
}

func logProgress(reporter *progress.Reporter) {
	for snapshot := range reporter.Events() {
		logging.RootLogger.Printf("progress: %d/%d tasks, %s transferred",
			snapshot.TasksCompleted, snapshot.TasksTotal, humansize.ByteSize(snapshot.BytesTransferred).String())
	}
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
