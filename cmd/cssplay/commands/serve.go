package commands

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/livetemplate/cssplay/internal/config"
	"github.com/livetemplate/cssplay/pkg/embedded"
)

// serveOptions are the parsed serve flags.
type serveOptions struct {
	configPath string
	overrides  config.Overrides
}

func parseServeArgs(args []string) (serveOptions, error) {
	var opts serveOptions

	value := func(i int, name string) (string, error) {
		if i+1 >= len(args) {
			return "", fmt.Errorf("%s requires a value", name)
		}
		return args[i+1], nil
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "--config", "-c":
			v, err := value(i, arg)
			if err != nil {
				return opts, err
			}
			opts.configPath = v
			i++
		case "--port", "-p":
			v, err := value(i, arg)
			if err != nil {
				return opts, err
			}
			port, err := strconv.Atoi(v)
			if err != nil {
				return opts, fmt.Errorf("invalid port: %s", v)
			}
			opts.overrides.Port = port
			i++
		case "--host":
			v, err := value(i, arg)
			if err != nil {
				return opts, err
			}
			opts.overrides.Host = v
			i++
		case "--watch", "-w":
			v, err := value(i, arg)
			if err != nil {
				return opts, err
			}
			opts.overrides.SourceFile = v
			opts.overrides.Watch = true
			i++
		case "--storage":
			v, err := value(i, arg)
			if err != nil {
				return opts, err
			}
			opts.overrides.Storage = v
			i++
		case "--debug":
			opts.overrides.Debug = true
		default:
			if strings.HasPrefix(arg, "-") {
				return opts, fmt.Errorf("unknown flag: %s", arg)
			}
			return opts, fmt.Errorf("unexpected argument: %s", arg)
		}
	}
	return opts, nil
}

// loadServeConfig reads the config file (or ./cssplay.yaml) and applies the
// command-line overrides.
func loadServeConfig(opts serveOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		if _, statErr := os.Stat(opts.configPath); statErr != nil {
			return nil, fmt.Errorf("config file does not exist: %s", opts.configPath)
		}
		cfg, err = config.Load(opts.configPath)
	} else {
		cfg, err = config.LoadFromDir(".")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := opts.overrides.Apply(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ServeCommand implements the serve command.
func ServeCommand(args []string) error {
	opts, err := parseServeArgs(args)
	if err != nil {
		return err
	}
	cfg, err := loadServeConfig(opts)
	if err != nil {
		return err
	}
	if opts.configPath != "" {
		fmt.Printf("📝 Using config: %s\n", opts.configPath)
	}

	return embedded.Serve(context.Background(), embedded.Options{Config: cfg})
}

func init() {
	log.SetFlags(0) // Remove timestamp from logs
}
