// Command streamtos3 streams a file or standard input into an S3 bucket as a
// chunked multipart upload with end-to-end integrity verification.
//
//	some-producer | streamtos3 -k creds.key -b backups -o dump.tar.zst
//	streamtos3 -k creds.key -b backups -o image.raw /dev/sda1
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docker/go-units"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	streamtos3 "github.com/jgru/stream-to-s3"
	uperrors "github.com/jgru/stream-to-s3/errors"
	"github.com/jgru/stream-to-s3/streamtypes"
)

// Exit codes. Scripts driving this tool branch on them, so they are stable.
const (
	exitUploadFailed = 1
	exitUsage        = 2
	exitKeyfile      = 3
	exitInput        = 4
	exitPrecheck     = 5
	exitIntegrity    = 6
)

func main() {
	app := &cli.App{
		Name:      "streamtos3",
		Usage:     "stream data of unknown length into S3 with integrity verification",
		ArgsUsage: "[infile]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "keyfile",
				Aliases:  []string{"k"},
				Usage:    "path to credential file containing <access_key_id>:<secret_access_key>",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "bucket",
				Aliases:  []string{"b"},
				Usage:    "target bucket",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "object",
				Aliases:  []string{"o"},
				Usage:    "target object key",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "chunksize",
				Aliases: []string{"c"},
				Usage:   "part size, e.g. 8MiB or 64m (minimum 5MiB)",
				Value:   "8MiB",
			},
			&cli.IntFlag{
				Name:    "retry",
				Aliases: []string{"r"},
				Usage:   "upload attempts per part before giving up",
				Value:   streamtypes.DefaultRetryLimit,
			},
			&cli.IntFlag{
				Name:    "secs-wait",
				Aliases: []string{"s"},
				Usage:   "seconds to wait between attempts of the same part",
				Value:   5,
			},
			&cli.IntFlag{
				Name:    "concurrency",
				Aliases: []string{"n"},
				Usage:   "number of parts uploading at once",
				Value:   1,
			},
			&cli.StringFlag{
				Name:    "region",
				Usage:   "AWS region",
				EnvVars: []string{"AWS_REGION"},
			},
			&cli.StringFlag{
				Name:    "endpoint",
				Usage:   "custom endpoint URL for S3-compatible services",
				EnvVars: []string{"S3_ENDPOINT"},
			},
			&cli.BoolFlag{
				Name:  "path-style",
				Usage: "use path-style addressing (MinIO, LocalStack)",
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "enable debug logging",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		if exitErr, ok := err.(cli.ExitCoder); ok {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitErr.ExitCode())
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsage)
	}
}

func run(c *cli.Context) error {
	log := newLogger(c.Bool("debug"))

	chunkSize, err := units.RAMInBytes(c.String("chunksize"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid chunksize %q: %v", c.String("chunksize"), err), exitUsage)
	}

	if c.NArg() > 1 {
		return cli.Exit("at most one input file may be given", exitUsage)
	}

	accessKeyID, secretAccessKey, err := readKeyfile(c.String("keyfile"))
	if err != nil {
		return cli.Exit(err.Error(), exitKeyfile)
	}

	in, cleanup, err := openInput(c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), exitInput)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []streamtypes.Option{
		streamtos3.WithStaticCredentials(accessKeyID, secretAccessKey),
	}
	if region := c.String("region"); region != "" {
		opts = append(opts, streamtos3.WithRegion(region))
	}
	if endpoint := c.String("endpoint"); endpoint != "" {
		opts = append(opts, streamtos3.WithEndpoint(endpoint))
	}
	if c.Bool("path-style") {
		opts = append(opts, streamtos3.WithForcePathStyle(true))
	}

	client, err := streamtos3.New(opts...)
	if err != nil {
		return cli.Exit(fmt.Sprintf("client init failed: %v", err), exitUploadFailed)
	}

	bucket := c.String("bucket")
	key := c.String("object")

	if err := precheck(ctx, client, bucket, key); err != nil {
		return cli.Exit(err.Error(), exitPrecheck)
	}

	result, err := client.Stream(ctx, bucket, key, in,
		streamtos3.WithChunkSize(chunkSize),
		streamtos3.WithRetryLimit(c.Int("retry")),
		streamtos3.WithRetryWait(time.Duration(c.Int("secs-wait"))*time.Second),
		streamtos3.WithConcurrency(c.Int("concurrency")),
		streamtos3.WithLogger(log),
	)
	if err != nil {
		if uperrors.KindOf(err) == uperrors.KindObjectIntegrity && result != nil {
			log.Error().
				Str("expected", result.CompositeETag).
				Str("observed", result.ETag).
				Msg("object stored but failed final verification")
			return cli.Exit("upload finished but the stored object failed verification", exitIntegrity)
		}
		if uperrors.KindOf(err) == uperrors.KindInvalidInput {
			return cli.Exit(err.Error(), exitUsage)
		}
		return cli.Exit(fmt.Sprintf("upload failed: %v", err), exitUploadFailed)
	}

	log.Info().
		Str("object", fmt.Sprintf("s3://%s/%s", result.Bucket, result.Key)).
		Str("size", units.BytesSize(float64(result.Bytes))).
		Str("md5", result.StreamMD5).
		Msg("done")
	return nil
}

// precheck fails fast before any byte is read: the bucket must exist and the
// target key must not, since the stream cannot be replayed after a late abort.
func precheck(ctx context.Context, client *streamtos3.Client, bucket, key string) error {
	ok, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("bucket check failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("bucket %s does not exist or is not accessible", bucket)
	}

	exists, err := client.ObjectExists(ctx, bucket, key)
	if err != nil {
		return fmt.Errorf("object check failed: %w", err)
	}
	if exists {
		return fmt.Errorf("object %s already exists in bucket %s, refusing to overwrite", key, bucket)
	}
	return nil
}

// openInput returns the stream to upload. An empty path or "-" selects
// standard input, which must actually be piped in.
func openInput(path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		stat, err := os.Stdin.Stat()
		if err != nil {
			return nil, nil, fmt.Errorf("cannot stat stdin: %w", err)
		}
		if stat.Mode()&os.ModeCharDevice != 0 {
			return nil, nil, fmt.Errorf("no input: pipe data to stdin or pass a file")
		}
		return os.Stdin, func() {}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open %s: %w", path, err)
	}
	return f, func() { _ = f.Close() }, nil
}

func newLogger(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).Level(level).With().Timestamp().Logger()
}
