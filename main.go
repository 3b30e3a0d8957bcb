// autoi18n translates JSON, JavaScript and TypeScript localization
// catalogs with machine translation, one batch at a time.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/minios-linux/autoi18n/config"
	"github.com/minios-linux/autoi18n/i18n"
	"github.com/minios-linux/autoi18n/langmeta"
	"github.com/minios-linux/autoi18n/lockfile"
	"github.com/minios-linux/autoi18n/logging"
	"github.com/minios-linux/autoi18n/reconcile"
	"github.com/minios-linux/autoi18n/settings"
	"github.com/minios-linux/autoi18n/translate"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func logInfo(format string, args ...any) {
	logging.Default().Info().Msgf(format, args...)
}

func logSuccess(format string, args ...any) {
	logging.Default().Info().Msg("✓ " + fmt.Sprintf(format, args...))
}

func logWarning(format string, args ...any) {
	logging.Default().Warn().Msgf(format, args...)
}

func logError(format string, args ...any) {
	logging.Default().Error().Msgf(format, args...)
}

func logDebug(format string, args ...any) {
	logging.Default().Debug().Msgf(format, args...)
}

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

var (
	configPath string
	toolsLang  string
	verbose    bool
)

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "autoi18n",
		Short: "Incremental machine translation for localization catalogs",
		Long: `autoi18n translates the string leaves of a localization catalog (a JSON
file or the object literal exported by a .js/.ts module) into other
languages, writing each finished batch into the target file.

Commands:
  translate   Translate catalogs once
  watch       Translate again whenever a source catalog changes
  status      Show how many keys each target language is missing
  auth        Manage stored provider API keys

Providers:
  openai         OpenAI chat completions
  google         Gemini REST API
  genai          Gemini through the Google Gen AI SDK
  groq           Groq Cloud
  anthropic      Anthropic messages API
  ollama         Local Ollama server
  custom-openai  Any OpenAI-compatible endpoint`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setup()
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ./"+config.FileName+")")
	root.PersistentFlags().StringVar(&toolsLang, "tools-lang", "", "Language of autoi18n's own messages")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every translated leaf")

	root.AddCommand(
		newTranslateCmd(),
		newWatchCmd(),
		newStatusCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)
	return root
}

// setup loads .env, the logger and the message catalog.
func setup() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "loading .env: %v\n", err)
	}
	logging.SetDefault(logging.New(os.Stderr, verbose))

	lang := toolsLang
	if lang == "" {
		if f, err := loadConfig(); err == nil && f != nil {
			lang = f.ToolsLang
		}
	}
	i18n.Init(lang)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("autoi18n version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// Shared translate flags
// ---------------------------------------------------------------------------

type translateFlags struct {
	// Single-target mode (no config file)
	input, output, from, to string

	mode, strategy string
	delay          string
	chunkSize      int
	mergeBudget    int
	copyThrough    []string
	exclude        []string
	reserve        []string

	provider, model, apiKey, baseURL, proxy string
	prompt                                  string
	timeout                                 time.Duration
	maxRetries                              int
	maxConcurrent                           int

	noLock bool
	dryRun bool
}

func addTranslateFlags(fs *pflag.FlagSet, f *translateFlags) {
	fs.StringVarP(&f.input, "input", "i", "", "Source catalog (skips the config file)")
	fs.StringVarP(&f.output, "output", "o", "", "Output path, {lang} is replaced by each target language")
	fs.StringVar(&f.from, "from", "", "Source language (default: en)")
	fs.StringVar(&f.to, "to", "", "Target languages, comma-separated")

	fs.StringVar(&f.mode, "mode", "", "fast (only missing or changed keys) or full")
	fs.StringVar(&f.strategy, "strategy", "", "merge (one request per batch) or chunk (one request per key)")
	fs.StringVar(&f.delay, "delay", "", "Pause after each key in chunk strategy (e.g. 500ms)")
	fs.IntVar(&f.chunkSize, "chunk-size", 0, "Top-level entries per group in chunk strategy")
	fs.IntVar(&f.mergeBudget, "merge-budget", 0, "Size budget of a merged request")
	fs.StringSliceVar(&f.copyThrough, "copy", nil, "Values copied without translation (/regexp/ or exact)")
	fs.StringSliceVar(&f.exclude, "exclude", nil, "Segments left untranslated (/regexp/ or exact)")
	fs.StringSliceVar(&f.reserve, "reserve", nil, "Substrings protected from the translator (/regexp/ or exact)")

	fs.StringVar(&f.provider, "provider", "", "Provider: "+strings.Join(translate.ProviderIDs(), ", "))
	fs.StringVar(&f.model, "model", "", "Model name")
	fs.StringVar(&f.apiKey, "api-key", "", "API key (or AUTOI18N_API_KEY)")
	fs.StringVar(&f.baseURL, "base-url", "", "Custom API base URL")
	fs.StringVar(&f.proxy, "proxy", "", "HTTP/HTTPS proxy URL")
	fs.StringVar(&f.prompt, "prompt", "", "Custom system prompt ({{sourceLang}}, {{targetLang}}, {{joiner}})")
	fs.DurationVar(&f.timeout, "timeout", 0, "Request timeout (0 = provider default)")
	fs.IntVar(&f.maxRetries, "max-retries", 0, "Retries on rate limits and server errors (default 3)")
	fs.IntVar(&f.maxConcurrent, "max-concurrent", 0, "Languages translated at the same time")

	fs.BoolVar(&f.noLock, "no-lock", false, "Do not read or write "+lockfile.LockFileName)
	fs.BoolVar(&f.dryRun, "dry-run", false, "Show the batches without calling the provider")
}

func registerCompletions(cmd *cobra.Command) {
	_ = cmd.RegisterFlagCompletionFunc("provider", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		provs := translate.DefaultProviders()
		var out []string
		for _, id := range translate.ProviderIDs() {
			out = append(out, id+"\t"+provs[id].Name)
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("mode", cobra.FixedCompletions([]string{"fast", "full"}, cobra.ShellCompDirectiveNoFileComp))
	_ = cmd.RegisterFlagCompletionFunc("strategy", cobra.FixedCompletions([]string{"merge", "chunk"}, cobra.ShellCompDirectiveNoFileComp))
}

// ---------------------------------------------------------------------------
// Plan: config + flags
// ---------------------------------------------------------------------------

// plan is everything one translate pass needs.
type plan struct {
	file    *config.File
	baseDir string
	targets []config.ResolvedTarget
	lock    *lockfile.LockFile
}

func loadConfig() (*config.File, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load(".")
}

// buildPlan reads the config file, or builds a single target from the
// flags when --input is given, and applies flag overrides.
func buildPlan(fs *pflag.FlagSet, f *translateFlags) (*plan, error) {
	p := &plan{baseDir: "."}

	if f.input != "" {
		if f.output == "" {
			return nil, errors.New(i18n.T("--output is required with --input"))
		}
		p.file = &config.File{
			SourceLang: f.from,
			Languages:  splitList(f.to),
			Targets:    []config.Target{{Input: f.input, Output: f.output}},
		}
		applyFileFlags(fs, f, p.file)
		if err := p.file.Validate("command line"); err != nil {
			return nil, err
		}
	} else {
		file, err := loadConfig()
		if err != nil {
			return nil, err
		}
		if file == nil {
			return nil, fmt.Errorf(i18n.T("no %s found; pass --input and --output or create one"), config.FileName)
		}
		if configPath != "" {
			p.baseDir = filepath.Dir(configPath)
		}
		applyFileFlags(fs, f, file)
		applyTargetFlags(fs, f, file)
		p.file = file
	}

	targets, err := p.file.Resolve(p.baseDir)
	if err != nil {
		return nil, err
	}
	if f.input == "" && f.to != "" {
		for i := range targets {
			targets[i].Languages = intersectLanguages(targets[i].Languages, splitList(f.to))
		}
	}
	p.targets = targets

	if !f.noLock && p.file.LockEnabled() {
		lf, err := lockfile.Load(p.baseDir)
		if err != nil {
			return nil, err
		}
		p.lock = lf
	}
	return p, nil
}

// applyFileFlags copies explicitly set flags into the top level of file.
func applyFileFlags(fs *pflag.FlagSet, f *translateFlags, file *config.File) {
	if fs.Changed("mode") {
		file.Mode = f.mode
	}
	if fs.Changed("strategy") {
		file.Strategy = f.strategy
	}
	if fs.Changed("chunk-size") {
		file.ChunkSize = f.chunkSize
	}
	if fs.Changed("merge-budget") {
		file.MergeBudget = f.mergeBudget
	}
	if fs.Changed("max-concurrent") {
		file.MaxConcurrent = f.maxConcurrent
	}
	if fs.Changed("copy") {
		file.CopyThrough = f.copyThrough
	}
	if fs.Changed("exclude") {
		file.Exclude = f.exclude
	}
	if fs.Changed("reserve") {
		file.Reserve = f.reserve
	}
	if fs.Changed("delay") {
		if d, err := config.ParseDuration(f.delay); err == nil {
			file.Delay = config.Duration(d)
		} else {
			logWarning("--delay: %v", err)
		}
	}
	if fs.Changed("prompt") {
		file.Provider.Prompt = f.prompt
	}
}

// applyTargetFlags overrides per-target settings of an already validated
// config file.
func applyTargetFlags(fs *pflag.FlagSet, f *translateFlags, file *config.File) {
	for i := range file.Targets {
		t := &file.Targets[i]
		if fs.Changed("from") {
			t.SourceLang = f.from
		}
		if fs.Changed("mode") {
			t.Mode = f.mode
		}
		if fs.Changed("strategy") {
			t.Strategy = f.strategy
		}
		if fs.Changed("chunk-size") {
			t.ChunkSize = f.chunkSize
		}
		if fs.Changed("merge-budget") {
			t.MergeBudget = f.mergeBudget
		}
		if fs.Changed("copy") {
			t.CopyThrough = f.copyThrough
		}
		if fs.Changed("exclude") {
			t.Exclude = f.exclude
		}
		if fs.Changed("reserve") {
			t.Reserve = f.reserve
		}
		if fs.Changed("delay") {
			t.Delay = file.Delay
		}
		if fs.Changed("prompt") {
			t.Prompt = f.prompt
		}
	}
}

// resolveProvider merges flags, config and stored settings into a
// provider definition.
func resolveProvider(pc config.Provider, f *translateFlags) (translate.Provider, error) {
	id := firstNonEmpty(f.provider, pc.ID, translate.ProviderOpenAI)
	prov, ok := translate.DefaultProviders()[id]
	if !ok {
		return prov, fmt.Errorf(i18n.T("unknown provider %q (valid: %s)"), id, strings.Join(translate.ProviderIDs(), ", "))
	}
	prov.Model = firstNonEmpty(f.model, pc.Model, prov.Model)
	prov.BaseURL = firstNonEmpty(f.baseURL, pc.BaseURL, settings.GetBaseURL(id), prov.BaseURL)
	prov.Proxy = firstNonEmpty(f.proxy, pc.Proxy)
	if f.timeout > 0 {
		prov.Timeout = f.timeout
	} else if pc.Timeout > 0 {
		prov.Timeout = time.Duration(pc.Timeout)
	}
	prov.APIKey = resolveAPIKey(prov, f.apiKey)
	return prov, nil
}

// resolveAPIKey: flag, AUTOI18N_API_KEY, the provider's variable, the
// settings store.
func resolveAPIKey(prov translate.Provider, flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv("AUTOI18N_API_KEY"); env != "" {
		return env
	}
	if prov.EnvKey != "" {
		if env := os.Getenv(prov.EnvKey); env != "" {
			return env
		}
	}
	return settings.GetAPIKey(prov.ID)
}

// jobs builds one engine job per target and language.
func (p *plan) jobs(ctx context.Context, f *translateFlags, prov translate.Provider) ([]reconcile.Job, error) {
	var jobs []reconcile.Job
	for i := range p.targets {
		rt := &p.targets[i]
		for _, lang := range rt.Languages {
			opts, err := rt.Options(lang)
			if err != nil {
				return nil, err
			}
			opts.Lock = p.lock
			opts.DryRun = f.dryRun
			opts.Verbose = verbose
			opts.OnLog = logInfo
			opts.OnError = logError
			opts.OnProgress = func(lang string, done, total int) {
				logInfo("  %s: %d/%d", lang, done, total)
			}

			var tr translate.Translator
			if f.dryRun {
				tr = translate.Func(func(context.Context, string) (string, error) {
					return "", errors.New("dry run")
				})
			} else {
				tr, err = translate.New(ctx, translate.Options{
					Provider:     prov,
					From:         opts.From,
					To:           lang,
					FromName:     langmeta.Resolve(opts.From).English,
					ToName:       langmeta.Resolve(lang).English,
					Joiner:       opts.Codec.Joiner.Sep,
					SystemPrompt: rt.Prompt,
					Timeout:      prov.Timeout,
					MaxRetries:   firstPositive(f.maxRetries, p.file.Provider.MaxRetries),
					Verbose:      verbose,
					OnLog:        logging.Printf(logging.Default(), zerolog.InfoLevel),
				})
				if err != nil {
					return nil, err
				}
				tr = translate.Cached(tr, translate.DefaultCacheSize)
			}
			jobs = append(jobs, reconcile.Job{Translator: tr, Options: opts})
		}
	}
	return jobs, nil
}

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

func newTranslateCmd() *cobra.Command {
	var f translateFlags

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate catalogs",
		Long: `Translate the targets of ` + config.FileName + `, or a single catalog given
with --input and --output.

In fast mode (the default) only keys missing from the output, and keys
whose source text changed since the last run, are translated. Every batch
is written as soon as it is translated, so an interrupted run keeps its
progress.

Examples:
  # Translate every target of .autoi18n.yaml
  autoi18n translate

  # One catalog into German and French with OpenAI
  autoi18n translate -i src/locales/en.ts -o 'src/locales/{lang}.ts' --to de,fr

  # Gemini through the Gen AI SDK, one key per request
  autoi18n translate --provider genai --strategy chunk --delay 500ms

  # Show what would be translated
  autoi18n translate --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			return runTranslate(ctx, cmd.Flags(), &f)
		},
	}
	addTranslateFlags(cmd.Flags(), &f)
	registerCompletions(cmd)
	return cmd
}

func runTranslate(ctx context.Context, fs *pflag.FlagSet, f *translateFlags) error {
	p, err := buildPlan(fs, f)
	if err != nil {
		return err
	}
	return p.run(ctx, f)
}

// run executes every job of the plan and reports the results.
func (p *plan) run(ctx context.Context, f *translateFlags) error {
	prov, err := resolveProvider(p.file.Provider, f)
	if err != nil {
		return err
	}
	jobs, err := p.jobs(ctx, f, prov)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		logWarning("%s", i18n.T("Nothing to translate"))
		return nil
	}
	if !f.dryRun {
		logInfo(i18n.T("Provider: %s, model: %s"), prov.Name, prov.Model)
	}

	results, err := reconcile.RunAll(ctx, jobs, p.file.MaxConcurrent)
	for i, res := range results {
		reportResult(jobs[i].Options, res)
	}
	if err != nil {
		if ctx.Err() != nil {
			logWarning("%s", i18n.T("Translation interrupted, partial progress saved"))
			return nil
		}
		return err
	}
	if !f.dryRun {
		logSuccess("%s", i18n.T("Translation complete!"))
	}
	return nil
}

func reportResult(opts reconcile.Options, res reconcile.Result) {
	label := langmeta.Label(opts.To)
	switch res.Status {
	case reconcile.StatusCreated, reconcile.StatusPatched:
		if res.Leaves == 0 {
			return
		}
		logSuccess(i18n.N("%s: %d key translated (%d copied, %d requests)", "%s: %d keys translated (%d copied, %d requests)", res.Leaves),
			label, res.Leaves, res.Copied, res.Calls)
	case reconcile.StatusUpToDate:
		logDebug(i18n.T("%s: up to date"), label)
	case reconcile.StatusEmptySource:
		logWarning(i18n.T("%s: source has no translatable keys"), label)
	case reconcile.StatusDryRun:
		logInfo(i18n.N("%s: %d key to translate in %d batches", "%s: %d keys to translate in %d batches", res.Leaves),
			label, res.Leaves, res.Batches)
	}
}

// signalContext returns a context cancelled by Ctrl-C.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		select {
		case <-sigCh:
			logWarning("%s", i18n.T("Interrupted, saving progress..."))
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// intersectLanguages keeps the entries of available named in filter, in
// filter order.
func intersectLanguages(available, filter []string) []string {
	set := make(map[string]bool, len(available))
	for _, lang := range available {
		set[lang] = true
	}
	var out []string
	for _, lang := range filter {
		lang = strings.TrimSpace(lang)
		if set[lang] {
			out = append(out, lang)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
