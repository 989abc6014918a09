// keyfs is a command-line front end for the keyfs filesystem: ls, du, rm
// and friends over s3:// URIs.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/keyfs/keyfs/internal/config"
	"github.com/keyfs/keyfs/internal/fs"
)

func newConfigFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Usage:   "Path to a keyfs YAML configuration file",
		EnvVars: []string{"KEYFS_CONFIG"},
	}
}

func loadConfig(c *cli.Context) (*config.Configuration, error) {
	cfg := config.NewDefault()
	if path := c.String("config"); path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	}
	if v := c.String("endpoint"); v != "" {
		cfg.S3.Endpoint = v
	}
	if v := c.String("region"); v != "" {
		cfg.S3.Region = v
	}
	if v := c.String("log-level"); v != "" {
		cfg.Logging.Level = strings.ToUpper(v)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func logLevel(name string) slog.Level {
	switch name {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newFilesystem(c *cli.Context) (*fs.Filesystem, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.Logging.Level),
	}))
	return fs.New(cfg, fs.WithLogger(logger)), nil
}

func main() {
	app := &cli.App{
		Name:  "keyfs",
		Usage: "Filesystem-style operations over S3 object storage",
		Flags: []cli.Flag{
			newConfigFlag(),
			&cli.StringFlag{
				Name:    "endpoint",
				Usage:   "S3 endpoint, bypassing region discovery",
				EnvVars: []string{"KEYFS_ENDPOINT"},
			},
			&cli.StringFlag{
				Name:    "region",
				Usage:   "Region matching --endpoint",
				EnvVars: []string{"KEYFS_REGION"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (DEBUG, INFO, WARN, ERROR)",
				EnvVars: []string{"KEYFS_LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "ls",
				Usage:     "List object URIs matching a glob",
				ArgsUsage: "PATTERN",
				Action:    runLs,
			},
			{
				Name:      "du",
				Usage:     "Total size in bytes of objects matching a glob",
				ArgsUsage: "PATTERN",
				Action:    runDu,
			},
			{
				Name:      "exists",
				Usage:     "Exit 0 if the glob matches at least one object, 1 otherwise",
				ArgsUsage: "PATTERN",
				Action:    runExists,
			},
			{
				Name:      "rm",
				Usage:     "Delete all objects matching a glob",
				ArgsUsage: "PATTERN",
				Action:    runRm,
			},
			{
				Name:      "touchz",
				Usage:     "Create a zero-byte object",
				ArgsUsage: "URI",
				Action:    runTouchz,
			},
			{
				Name:      "mkdir",
				Usage:     "Accepted for compatibility; object storage has no directories",
				ArgsUsage: "URI",
				Action:    runMkdir,
			},
			{
				Name:      "md5sum",
				Usage:     "Print the object's ETag-derived MD5 digest",
				ArgsUsage: "URI",
				Action:    runMD5Sum,
			},
			{
				Name:      "cat",
				Usage:     "Write the object's content to stdout",
				ArgsUsage: "URI",
				Action:    runCat,
			},
			{
				Name:   "buckets",
				Usage:  "List the names of all buckets owned by the account",
				Action: runBuckets,
			},
			{
				Name:      "mkbucket",
				Usage:     "Create a bucket",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "bucket-region",
						Usage: "Region to create the bucket in",
					},
				},
				Action: runMkbucket,
			},
			{
				Name:  "metrics",
				Usage: "Serve operation metrics over HTTP",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address",
						Value: ":9090",
					},
				},
				Action: runMetrics,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "keyfs:", err)
		os.Exit(1)
	}
}

func oneArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("expected exactly one argument, got %d", c.NArg())
	}
	return c.Args().First(), nil
}

func runLs(c *cli.Context) error {
	pattern, err := oneArg(c)
	if err != nil {
		return err
	}
	f, err := newFilesystem(c)
	if err != nil {
		return err
	}
	for uri, lerr := range f.Ls(c.Context, pattern) {
		if lerr != nil {
			return lerr
		}
		fmt.Println(uri)
	}
	return nil
}

func runDu(c *cli.Context) error {
	pattern, err := oneArg(c)
	if err != nil {
		return err
	}
	f, err := newFilesystem(c)
	if err != nil {
		return err
	}
	total, err := f.Du(c.Context, pattern)
	if err != nil {
		return err
	}
	fmt.Println(total)
	return nil
}

func runExists(c *cli.Context) error {
	pattern, err := oneArg(c)
	if err != nil {
		return err
	}
	f, err := newFilesystem(c)
	if err != nil {
		return err
	}
	ok, err := f.Exists(c.Context, pattern)
	if err != nil {
		return err
	}
	if !ok {
		return cli.Exit("", 1)
	}
	return nil
}

func runRm(c *cli.Context) error {
	pattern, err := oneArg(c)
	if err != nil {
		return err
	}
	f, err := newFilesystem(c)
	if err != nil {
		return err
	}
	return f.Rm(c.Context, pattern)
}

func runTouchz(c *cli.Context) error {
	uri, err := oneArg(c)
	if err != nil {
		return err
	}
	f, err := newFilesystem(c)
	if err != nil {
		return err
	}
	return f.Touchz(c.Context, uri)
}

func runMkdir(c *cli.Context) error {
	uri, err := oneArg(c)
	if err != nil {
		return err
	}
	f, err := newFilesystem(c)
	if err != nil {
		return err
	}
	return f.Mkdir(c.Context, uri)
}

func runMD5Sum(c *cli.Context) error {
	uri, err := oneArg(c)
	if err != nil {
		return err
	}
	f, err := newFilesystem(c)
	if err != nil {
		return err
	}
	sum, err := f.MD5Sum(c.Context, uri)
	if err != nil {
		return err
	}
	fmt.Println(sum)
	return nil
}

func runCat(c *cli.Context) error {
	uri, err := oneArg(c)
	if err != nil {
		return err
	}
	f, err := newFilesystem(c)
	if err != nil {
		return err
	}
	body, err := f.Cat(c.Context, uri)
	if err != nil {
		return err
	}
	defer body.Close()
	_, err = io.Copy(os.Stdout, body)
	return err
}

func runBuckets(c *cli.Context) error {
	f, err := newFilesystem(c)
	if err != nil {
		return err
	}
	names, err := f.ListBucketNames(c.Context)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func runMkbucket(c *cli.Context) error {
	name, err := oneArg(c)
	if err != nil {
		return err
	}
	f, err := newFilesystem(c)
	if err != nil {
		return err
	}
	return f.CreateBucket(c.Context, name, c.String("bucket-region"))
}

func runMetrics(c *cli.Context) error {
	f, err := newFilesystem(c)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", f.MetricsHandler())
	return http.ListenAndServe(c.String("addr"), mux)
}
