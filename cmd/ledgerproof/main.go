package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/davidahmann/ledgerproof/internal/batch"
	"github.com/davidahmann/ledgerproof/internal/config"
	"github.com/davidahmann/ledgerproof/internal/ledger"
	"github.com/davidahmann/ledgerproof/internal/logging"
	"github.com/davidahmann/ledgerproof/internal/report"
)

const maxReceiptBytes = 4 << 20

func main() {
	exitFn(run(os.Args, os.Stdin, os.Stdout, os.Stderr))
}

var exitFn = os.Exit

var httpClient = &http.Client{Timeout: 30 * time.Second}

func run(args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) int {
	if len(args) < 2 {
		usage(stderr)
		return 2
	}

	switch args[1] {
	case "verify":
		return handleVerify(args[2:], stdin, stdout, stderr)
	case "batch":
		return handleBatch(args[2:], stdout, stderr)
	default:
		usage(stderr)
		return 2
	}
}

type commonFlags struct {
	configPath *string
	jsonOut    *bool
	verbose    *bool
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		configPath: fs.String("config", os.Getenv("LEDGERPROOF_CONFIG"), "path to ledgerproof config file"),
		jsonOut:    fs.Bool("json", false, "print a canonical JSON report"),
		verbose:    fs.Bool("verbose", false, "log verification steps to stderr"),
	}
}

func (c commonFlags) load(stderr io.Writer) (config.Config, *zap.Logger, error) {
	var cfg config.Config
	if *c.configPath != "" {
		loaded, err := config.Load(*c.configPath)
		if err != nil {
			return config.Config{}, nil, err
		}
		cfg = loaded
	}

	if !*c.verbose {
		return cfg, logging.Nop(), nil
	}
	level := cfg.Log.Level
	if level == "" {
		level = "debug"
	}
	logger, err := logging.New(stderr, level, cfg.Log.JSON)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func handleVerify(args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	common := addCommonFlags(fs)
	checkValidity := fs.Bool("check-validity", false, "reject certificates outside their validity window")
	url := fs.String("url", "", "fetch the receipt from a ledger node URL instead of a file")
	token := fs.String("token", envOrDefault("LEDGERPROOF_TOKEN", ""), "bearer token for --url")
	if err := fs.Parse(args); err != nil {
		fs.Usage()
		return 2
	}
	if fs.NArg() > 1 || (*url != "" && fs.NArg() > 0) {
		fmt.Fprintln(stderr, "verify takes at most one receipt source")
		fs.Usage()
		return 2
	}

	cfg, logger, err := common.load(stderr)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	defer func() { _ = logger.Sync() }()
	if *checkValidity {
		cfg.Verify.CheckValidity = true
	}

	var body []byte
	source := fs.Arg(0)
	if *url != "" {
		source = *url
		var status int
		body, status, err = httpGet(httpClient, *url, *token)
		if err == nil && status != http.StatusOK {
			err = fmt.Errorf("fetch receipt: status %d: %s", status, strings.TrimSpace(string(body)))
		}
	} else {
		body, err = readSource(source, stdin)
	}
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	logger.Debug("receipt loaded", zap.String("source", sourceName(source)), zap.Int("bytes", len(body)))

	var res ledger.Result
	receipt, err := ledger.DecodeJSON(body)
	if err != nil {
		res = ledger.Rejected(err)
	} else {
		res = ledger.VerifyReceipt(receipt, cfg.LedgerOptions())
	}
	logResult(logger, sourceName(source), res)

	if *common.jsonOut {
		out, err := report.Encode(sourceName(source), res)
		if err != nil {
			fmt.Fprintln(stderr, "encode report:", err)
			return 1
		}
		fmt.Fprintln(stdout, string(out))
		return exitCode(res)
	}

	if res.Verified() {
		fmt.Fprintln(stdout, "OK")
		return 0
	}
	fmt.Fprintf(stderr, "Verify failed: %s\n", res.Failure.Error())
	return 1
}

func handleBatch(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	common := addCommonFlags(fs)
	concurrency := fs.Int("concurrency", 0, "parallel verifications (default from config, then GOMAXPROCS)")
	timeout := fs.Duration("timeout", 0, "deadline for the whole batch (default from config)")
	if err := fs.Parse(args); err != nil {
		fs.Usage()
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "batch requires at least one receipt file")
		fs.Usage()
		return 2
	}

	cfg, logger, err := common.load(stderr)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	defer func() { _ = logger.Sync() }()

	items := make([]batch.Item, 0, fs.NArg())
	for _, path := range fs.Args() {
		item := batch.Item{Name: path}
		body, err := readSource(path, nil)
		if err == nil {
			item.Receipt, err = ledger.DecodeJSON(body)
		}
		item.Err = err
		items = append(items, item)
	}

	verifier := &batch.Verifier{
		Concurrency: firstPositive(*concurrency, cfg.Batch.Concurrency),
		Options:     cfg.LedgerOptions(),
	}

	ctx := context.Background()
	if d := firstPositiveDuration(*timeout, cfg.BatchTimeout()); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	outcomes, err := verifier.Run(ctx, items)
	if err != nil {
		logger.Warn("batch interrupted", zap.Error(err))
	}
	for _, o := range outcomes {
		logResult(logger, o.Name, o.Result)
	}

	if *common.jsonOut {
		out, err := report.EncodeBatch(outcomes)
		if err != nil {
			fmt.Fprintln(stderr, "encode report:", err)
			return 1
		}
		fmt.Fprintln(stdout, string(out))
	} else {
		for _, o := range outcomes {
			if o.Result.Verified() {
				fmt.Fprintf(stdout, "OK %s\n", o.Name)
				continue
			}
			fmt.Fprintf(stdout, "FAIL %s %s\n", o.Name, o.Result.Failure.Error())
		}
	}

	if !batch.AllVerified(outcomes) {
		return 1
	}
	return 0
}

func readSource(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		if stdin == nil {
			return nil, fmt.Errorf("stdin not available")
		}
		return io.ReadAll(io.LimitReader(stdin, maxReceiptBytes))
	}
	// #nosec G304 -- path is operator-provided receipt file.
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxReceiptBytes))
}

func httpGet(client *http.Client, url string, token string) ([]byte, int, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReceiptBytes))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func logResult(logger *zap.Logger, name string, res ledger.Result) {
	if res.Verified() {
		logger.Info("receipt verified",
			zap.String("source", name),
			zap.String("leaf", res.Leaf.Hex()),
			zap.String("root", res.Root.Hex()),
			zap.String("algorithm", res.Algorithm),
		)
		return
	}
	logger.Info("receipt rejected",
		zap.String("source", name),
		zap.String("stage", string(res.Stage)),
		zap.Error(res.Err()),
	)
}

func exitCode(res ledger.Result) int {
	if res.Verified() {
		return 0
	}
	return 1
}

func sourceName(source string) string {
	if source == "" {
		return "-"
	}
	return source
}

func envOrDefault(key string, fallback string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return fallback
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func firstPositiveDuration(values ...time.Duration) time.Duration {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprint(w, `ledgerproof

Usage:
  ledgerproof verify [--config FILE] [--json] [--check-validity] [--verbose] [FILE|-]
  ledgerproof verify --url URL [--token TOKEN] [--json] [--check-validity]
  ledgerproof batch [--config FILE] [--json] [--concurrency N] [--timeout DURATION] FILE...

Reads a ledger receipt (stdin by default), prints OK when it verifies and
exits 1 with "Verify failed: <kind>: <detail>" otherwise.
`)
}
