package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/loqalabs/loqa-rhvoice/internal/config"
	"github.com/loqalabs/loqa-rhvoice/internal/options"
	"github.com/loqalabs/loqa-rhvoice/internal/tts"
	"github.com/loqalabs/loqa-rhvoice/internal/voices"
)

var version = "0.1.0-dev"

var errSynthesisFailed = errors.New("synthesis failed, see log for details")

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "expected 'say', 'voices' or 'version'")
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "say":
		err = runSay(os.Args[2:], afero.NewOsFs(), os.Stdout, os.Stderr)
	case "voices":
		err = runVoices(os.Args[2:], os.Stdout)
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runSay(args []string, fs afero.Fs, stdout, stderr io.Writer) error {
	cmd := flag.NewFlagSet("say", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var (
		configPath string
		envFile    string
		text       string
		language   string
		out        string
		verbose    bool
	)
	cmd.StringVar(&configPath, "config", "", "Path to configuration file (defaults and environment when empty)")
	cmd.StringVar(&envFile, "env-file", ".env", "Optional dotenv file")
	cmd.StringVar(&text, "text", "", "Text to synthesize")
	cmd.StringVar(&language, "language", "", "Language tag, informational")
	cmd.StringVar(&out, "out", "", "Output file, - for stdout (default speech.<format>)")
	cmd.BoolVar(&verbose, "v", false, "Log at debug level")
	optionFlags := make(map[string]*string)
	for _, name := range options.Names() {
		optionFlags[name] = cmd.String(name, "", "Override the configured "+name)
	}
	if err := cmd.Parse(args); err != nil {
		return err
	}
	if text == "" && cmd.NArg() > 0 {
		text = strings.Join(cmd.Args(), " ")
	}

	// Only flags given on the command line override the configured defaults.
	overrides := make(map[string]any)
	cmd.Visit(func(f *flag.Flag) {
		if v, ok := optionFlags[f.Name]; ok {
			overrides[f.Name] = *v
		}
	})

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	synth, err := tts.New(cfg, nil, logger)
	if err != nil {
		return err
	}

	encoding, audio, err := synth.GetAudio(context.Background(), text, language, overrides)
	if err != nil {
		return err
	}
	if encoding == "" && audio == nil {
		return errSynthesisFailed
	}

	if out == "" {
		ext := encoding
		if f, ok := overrides[options.Format].(string); ok {
			ext = f
		}
		out = "speech." + ext
	}
	if err := writeAudio(fs, out, audio, stdout); err != nil {
		return err
	}
	if out != "-" {
		logger.Info("audio written", slog.String("path", out), slog.Int("bytes", len(audio)))
	}
	return nil
}

// writeAudio stores data at path on fs, or on stdout when path is "-".
func writeAudio(fs afero.Fs, path string, data []byte, stdout io.Writer) error {
	if path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("write audio: %w", err)
	}
	return nil
}

func runVoices(args []string, stdout io.Writer) error {
	cmd := flag.NewFlagSet("voices", flag.ContinueOnError)
	var language string
	cmd.StringVar(&language, "language", "", "Only list voices for this language tag")
	if err := cmd.Parse(args); err != nil {
		return err
	}

	catalog := voices.Default()
	if language != "" {
		list := catalog.Voices(language)
		if len(list) == 0 {
			return fmt.Errorf("unknown language %q", language)
		}
		fmt.Fprintf(stdout, "%s: %s\n", language, strings.Join(list, ", "))
		return nil
	}
	for _, lang := range catalog.Entries() {
		fmt.Fprintf(stdout, "%s: %s\n", lang.Tag, strings.Join(lang.Voices, ", "))
	}
	return nil
}
