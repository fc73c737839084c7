package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/spf13/pflag"

	"github.com/nedaZarei/Cloud_TranslationService/TranslationClient/config"
	"github.com/nedaZarei/Cloud_TranslationService/TranslationClient/pkg/models"
	"github.com/nedaZarei/Cloud_TranslationService/TranslationClient/service"
)

const usage = `usage: translator <command> [flags]

commands:
  translate       upload a file, follow progress and download the results
  languages       list the languages an examples file has examples for
  preview         print the first lines of the input and examples files
  push-languages  upload a language config (JSON) to the server

flags:
`

func main() {
	log.SetHandler(cli.New(os.Stderr))

	flags := pflag.NewFlagSet("translator", pflag.ContinueOnError)
	config.RegisterFlags(flags)
	configFile := flags.String("config", "./config/config.yaml", "path to the YAML config file")
	input := flags.String("input", "", "CSV file to translate")
	examples := flags.String("examples", "", "CSV file with example translations")
	languages := flags.StringSlice("lang", nil, "target language, repeatable (default: every language with examples)")
	action := flags.String("action", "titles", "titles or descriptions")
	prompt := flags.String("prompt", "", "extra instructions for description translation")
	languageConfig := flags.String("language-config", "", "JSON language config for push-languages")
	verbose := flags.BoolP("verbose", "v", false, "debug logging")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatalf("%v", err)
	}
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	if flags.NArg() != 1 {
		flags.Usage()
		os.Exit(2)
	}
	command := flags.Arg(0)

	cfg, err := config.InitConfig(*configFile, flags)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	//preview needs no server
	if command == "preview" {
		c := service.NewController(service.NewTerminalRenderer(os.Stdout), nil)
		if err := service.PreviewFiles(c, *input, *examples); err != nil {
			log.WithError(err).Fatal("preview failed")
		}
		return
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := service.NewService(cfg, service.NewTerminalRenderer(os.Stdout))
	if err != nil {
		log.Fatalf("failed to create service: %v", err)
	}

	switch command {
	case "translate":
		err = translate(ctx, svc, *input, *examples, *languages, *action, *prompt)
	case "languages":
		_, err = svc.Languages(ctx, *examples)
	case "push-languages":
		err = svc.PushLanguageConfig(ctx, *languageConfig)
	default:
		flags.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.WithError(err).Error(command + " failed")
		os.Exit(1)
	}
}

func translate(ctx context.Context, svc *service.Service, input, examples string, languages []string, action, prompt string) error {
	a, err := models.ParseAction(action)
	if err != nil {
		return err
	}

	svc.StartService()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		svc.StopService(shutdownCtx)
	}()

	for i, l := range languages {
		languages[i] = strings.TrimSpace(l)
	}
	report, err := svc.Translate(ctx, models.UploadRequest{
		InputFile:    input,
		ExamplesFile: examples,
		Languages:    languages,
		UserPrompt:   prompt,
		Action:       a,
	})
	if report != nil {
		service.PrintReport(os.Stdout, report)
	}
	if err != nil {
		return err
	}
	if report.CombinedFile == "" {
		return errors.New("session ended before the combined file was ready")
	}
	return nil
}
