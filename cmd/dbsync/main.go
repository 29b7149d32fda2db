// Command dbsync runs a single synchronization job described by a JSON
// configuration document, then exits. It binds the config path, log
// level, and timing flags, builds the job from the plugin registry, and
// reports a summary of the run to stdout.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/dbsync/dbsync/internal/config"
	"github.com/dbsync/dbsync/internal/dbsyncerr"
	"github.com/dbsync/dbsync/internal/job"
	_ "github.com/dbsync/dbsync/internal/plugins"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := pflag.NewFlagSet("dbsync", pflag.ContinueOnError)

	var configPath string
	var logLevel string
	var timing bool
	flags.StringVarP(&configPath, "config", "c", "config.json", "path to the job configuration document")
	flags.StringVarP(&logLevel, "log-level", "l", "info", "log level: trace, debug, info, warn, error")
	flags.BoolVarP(&timing, "timing", "t", false, "print a job-wide elapsed-time summary")

	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return dbsyncerr.ExitCode(dbsyncerr.New(dbsyncerr.Config, "parsing flags: %v", err))
	}

	if envLevel := os.Getenv("DBSYNC_LOG_LEVEL"); envLevel != "" {
		logLevel = envLevel
	}
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: unknown log level %q\n", logLevel)
		return dbsyncerr.ExitCode(dbsyncerr.New(dbsyncerr.Config, "unknown log level %q", logLevel))
	}
	log.SetLevel(level)
	log.SetFormatter(&log.JSONFormatter{})

	start := time.Now()
	j, err := build(configPath)
	if err != nil {
		reportFailure(err, timing, start)
		return dbsyncerr.ExitCode(err)
	}

	jc, err := j.Run(context.Background())
	if jc != nil {
		jc.Metrics.PrintSummary(os.Stdout)
	}
	if timing {
		fmt.Printf("Duration: %s\n", time.Since(start))
	}
	if err != nil {
		reportFailure(err, false, start)
		return dbsyncerr.ExitCode(err)
	}
	return 0
}

func build(configPath string) (*job.Job, error) {
	doc, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return job.Build(doc)
}

func reportFailure(err error, timing bool, start time.Time) {
	if timing {
		fmt.Printf("Duration: %s\n", time.Since(start))
	}
	fmt.Fprintf(os.Stderr, "%s: %v\n", dbsyncerr.KindOf(err), err)
}
