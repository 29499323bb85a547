package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "embed"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"go.uber.org/fx"

	"github.com/tigerroll/hourglass/internal/app"
	model "github.com/tigerroll/hourglass/pkg/batch/core/domain/model"
	"github.com/tigerroll/hourglass/pkg/batch/support/util/logger"
)

// embeddedConfig embeds the application's YAML configuration file.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

// embeddedPlan embeds the execution plan definition describing the job and
// its stages.
//
//go:embed resources/plan.yaml
var embeddedPlan []byte

// paramFlags collects repeated -param key=value flags.
type paramFlags []string

func (p *paramFlags) String() string {
	return strings.Join(*p, ",")
}

func (p *paramFlags) Set(value string) error {
	*p = append(*p, value)
	return nil
}

// parseJobParameters converts the -param flags into JobParameters. Values
// stay strings; the pipeline configuration coerces recognized keys when it
// resolves them.
func parseJobParameters(params paramFlags) (model.JobParameters, error) {
	jobParams := model.NewJobParameters()
	for _, raw := range params {
		key, value, ok := strings.Cut(raw, "=")
		if !ok || key == "" {
			return jobParams, fmt.Errorf("invalid -param %q: expected key=value", raw)
		}
		jobParams.Put(key, value)
	}
	return jobParams, nil
}

// getDBProviderOptions selects the DB providers to register based on the
// DB_ADAPTERS environment variable (comma-separated). Postgres, MySQL and
// SQLite are registered by default.
func getDBProviderOptions() []fx.Option {
	adapters := os.Getenv("DB_ADAPTERS")
	if adapters == "" {
		adapters = "postgres,mysql,sqlite"
	}

	options := make([]fx.Option, 0)
	for _, adapterName := range strings.Split(adapters, ",") {
		adapterName = strings.TrimSpace(adapterName)
		if adapterName == "" {
			continue
		}

		if module, ok := app.DBProviderModules[adapterName]; ok {
			options = append(options, module)
			logger.Debugf("DB Provider '%s' selected and registered.", adapterName)
		} else {
			logger.Warnf("DB Provider '%s' is configured but not recognized/supported. Skipping.", adapterName)
		}
	}
	return options
}

func main() {
	var params paramFlags
	flag.Var(&params, "param", "job parameter as key=value (repeatable)")
	flag.Parse()

	jobParams, err := parseJobParameters(params)
	if err != nil {
		logger.Fatalf("%v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signal handling for graceful shutdown (e.g., Ctrl+C).
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Attempting to stop the job...", sig)
		cancel()
	}()

	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	dbProviderOptions := getDBProviderOptions()

	app.RunApplication(ctx, envFilePath, embeddedConfig, embeddedPlan, dbProviderOptions, jobParams)
}
