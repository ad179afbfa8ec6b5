package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Mindburn-Labs/aegis/pkg/audit"
	"github.com/Mindburn-Labs/aegis/pkg/config"
	"github.com/Mindburn-Labs/aegis/pkg/detect"
	"github.com/Mindburn-Labs/aegis/pkg/gate"
	"github.com/Mindburn-Labs/aegis/pkg/repair"
)

// candidateInput is the stdin wire form of one candidate.
type candidateInput struct {
	ID           string             `json:"id"`
	Text         string             `json:"text"`
	Lang         string             `json:"lang,omitempty"`
	Rationale    string             `json:"rationale,omitempty"`
	Goals        []string           `json:"goals,omitempty"`
	Pressure     map[string]float64 `json:"pressure,omitempty"`
	StateSummary map[string]float64 `json:"state_summary,omitempty"`
}

// verdictOutput is the stdout wire form of one result.
type verdictOutput struct {
	CandidateID  string           `json:"candidate_id"`
	CheckID      string           `json:"check_id"`
	Decision     string           `json:"decision"`
	Codes        []string         `json:"codes,omitempty"`
	Repaired     bool             `json:"repaired,omitempty"`
	RepairedText string           `json:"repaired_text,omitempty"`
	RepairLog    []repair.Attempt `json:"repair_log,omitempty"`
	DriftScore   *float64         `json:"drift_score,omitempty"`
	Explanation  string           `json:"explanation,omitempty"`
	Receipt      string           `json:"receipt,omitempty"`
}

// intentInput is the stdin wire form of one intent declaration.
type intentInput struct {
	Description  string             `json:"description"`
	Lang         string             `json:"lang,omitempty"`
	Goals        []string           `json:"goals,omitempty"`
	StateSummary map[string]float64 `json:"state_summary,omitempty"`
}

type intentOutput struct {
	CheckID  string   `json:"check_id"`
	Approved bool     `json:"approved"`
	Decision string   `json:"decision"`
	Reason   string   `json:"reason,omitempty"`
	Codes    []string `json:"codes,omitempty"`
}

// runtime bundles the constructed gate with everything that needs
// closing on exit.
type runtime struct {
	gate     *gate.Gate
	store    *audit.Store
	exporter *audit.Exporter
	receipts *audit.ReceiptIssuer
	logger   *slog.Logger
	closers  []func() error
}

func (r *runtime) Close() {
	for _, c := range r.closers {
		if err := c(); err != nil {
			r.logger.Warn("close failed", "error", err)
		}
	}
}

func buildRuntime(configPath string, stderr io.Writer) (*runtime, error) {
	bootLogger := slog.New(slog.NewTextHandler(stderr, nil))
	settings := config.Load(configPath, bootLogger)

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: settings.SlogLevel(),
	}))
	slog.SetDefault(logger)

	lex := detect.DefaultLexicon()
	if settings.LexiconPath != "" {
		loaded, err := detect.LoadLexicon(settings.LexiconPath)
		if err != nil {
			logger.Warn("lexicon rejected, using built-in default",
				"path", settings.LexiconPath, "error", err)
		} else {
			lex = loaded
		}
	}

	full, err := detect.FullSet(lex)
	if err != nil {
		return nil, fmt.Errorf("build full detector set: %w", err)
	}
	intent, err := detect.IntentSet(lex)
	if err != nil {
		return nil, fmt.Errorf("build intent detector set: %w", err)
	}

	rt := &runtime{logger: logger}

	store := audit.NewStore()
	rt.store = store
	switch settings.Audit.Backend {
	case "sqlite":
		db, err := sql.Open("sqlite", settings.Audit.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite audit db: %w", err)
		}
		sqliteStore, err := audit.NewSQLiteStore(db)
		if err != nil {
			return nil, fmt.Errorf("init sqlite audit store: %w", err)
		}
		store.OnAppend(func(e *audit.Entry) {
			if err := sqliteStore.Store(context.Background(), e); err != nil {
				logger.Error("sqlite audit write failed", "entry_id", e.EntryID, "error", err)
			}
		})
		rt.closers = append(rt.closers, db.Close)
	case "postgres":
		db, err := sql.Open("postgres", settings.Audit.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres audit db: %w", err)
		}
		pgStore, err := audit.NewPostgresStore(db)
		if err != nil {
			return nil, fmt.Errorf("init postgres audit store: %w", err)
		}
		store.OnAppend(func(e *audit.Entry) {
			if err := pgStore.Store(context.Background(), e); err != nil {
				logger.Error("postgres audit write failed", "entry_id", e.EntryID, "error", err)
			}
		})
		rt.closers = append(rt.closers, db.Close)
	}

	g, err := gate.New(settings.Gate, full,
		gate.WithIntentSet(intent),
		gate.WithRecorder(store),
		gate.WithLogger(logger.With("component", "gate")),
	)
	if err != nil {
		return nil, err
	}
	rt.gate = g

	if settings.Archive.Bucket != "" {
		sink, err := audit.NewS3Archive(context.Background(), audit.S3ArchiveConfig{
			Bucket:   settings.Archive.Bucket,
			Region:   settings.Archive.Region,
			Endpoint: settings.Archive.Endpoint,
			Prefix:   settings.Archive.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("init audit archive: %w", err)
		}
		exporter := audit.NewExporter(store, sink,
			settings.Archive.BatchesPerMinute, settings.Archive.BatchSize)
		rt.exporter = exporter
		rt.closers = append(rt.closers, func() error {
			if _, err := exporter.Flush(context.Background()); err != nil {
				return fmt.Errorf("archive flush: %w", err)
			}
			return nil
		})
	}

	if settings.Receipt.Secret != "" {
		issuer, err := audit.NewReceiptIssuer([]byte(settings.Receipt.Secret),
			settings.Receipt.Issuer,
			time.Duration(settings.Receipt.TTLMinutes)*time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init receipt issuer: %w", err)
		}
		rt.receipts = issuer
	}

	if settings.Stats.RedisAddr != "" {
		key := settings.Stats.Key
		if key == "" {
			key = "aegis:stats"
		}
		sink := gate.NewRedisStatsSink(
			settings.Stats.RedisAddr, settings.Stats.RedisPassword,
			settings.Stats.RedisDB, key)
		rt.closers = append(rt.closers, func() error {
			if err := sink.Publish(context.Background(), g.Statistics().Snapshot()); err != nil {
				logger.Warn("stats publish failed", "error", err)
			}
			return sink.Close()
		})
	}

	return rt, nil
}

func runCheck(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "YAML settings file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	rt, err := buildRuntime(*configPath, stderr)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	defer rt.Close()

	ctx := context.Background()
	enc := json.NewEncoder(stdout)
	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	seq := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		seq++

		var in candidateInput
		if err := json.Unmarshal(line, &in); err != nil {
			_, _ = fmt.Fprintf(stderr, "line %d: bad candidate JSON: %v\n", seq, err)
			return 1
		}
		if in.ID == "" {
			in.ID = fmt.Sprintf("stdin-%d", seq)
		}

		res := rt.gate.Check(ctx, gate.Candidate{
			ID:           in.ID,
			Text:         in.Text,
			Lang:         in.Lang,
			Rationale:    in.Rationale,
			Goals:        in.Goals,
			Pressure:     in.Pressure,
			StateSummary: in.StateSummary,
		})
		out := toVerdict(res)
		if token, ok := rt.receiptFor(in.Text, res); ok {
			out.Receipt = token
		}
		if err := enc.Encode(out); err != nil {
			_, _ = fmt.Fprintln(stderr, "error:", err)
			return 1
		}
	}
	if err := scanner.Err(); err != nil {
		_, _ = fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

func runIntent(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("intent", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "YAML settings file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	rt, err := buildRuntime(*configPath, stderr)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	defer rt.Close()

	ctx := context.Background()
	enc := json.NewEncoder(stdout)
	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var in intentInput
		if err := json.Unmarshal(line, &in); err != nil {
			_, _ = fmt.Fprintln(stderr, "bad intent JSON:", err)
			return 1
		}
		v := rt.gate.CheckIntent(ctx, gate.IntentInput{
			Description:  in.Description,
			Lang:         in.Lang,
			Goals:        in.Goals,
			StateSummary: in.StateSummary,
		})
		out := intentOutput{
			CheckID:  v.CheckID,
			Approved: v.Approved,
			Decision: string(v.Decision),
			Reason:   v.Reason,
			Codes:    codeStrings(v.Codes()),
		}
		if err := enc.Encode(out); err != nil {
			_, _ = fmt.Fprintln(stderr, "error:", err)
			return 1
		}
	}
	if err := scanner.Err(); err != nil {
		_, _ = fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

// runStats checks every candidate on stdin, discards the individual
// verdicts and prints the aggregate counters.
func runStats(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "YAML settings file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	rt, err := buildRuntime(*configPath, stderr)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	defer rt.Close()

	ctx := context.Background()
	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	seq := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		seq++
		var in candidateInput
		if err := json.Unmarshal(line, &in); err != nil {
			_, _ = fmt.Fprintf(stderr, "line %d: bad candidate JSON: %v\n", seq, err)
			return 1
		}
		if in.ID == "" {
			in.ID = fmt.Sprintf("stdin-%d", seq)
		}
		rt.gate.Check(ctx, gate.Candidate{
			ID: in.ID, Text: in.Text, Lang: in.Lang, Rationale: in.Rationale,
			Goals: in.Goals, Pressure: in.Pressure, StateSummary: in.StateSummary,
		})
	}
	if err := scanner.Err(); err != nil {
		_, _ = fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rt.gate.Statistics().Snapshot()); err != nil {
		_, _ = fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

// receiptFor signs a portable verdict receipt when an issuer is
// configured. The record carries the text as length and fingerprint
// only; a failed signature degrades the output, never the verdict.
func (r *runtime) receiptFor(text string, res gate.Result) (string, bool) {
	if r.receipts == nil {
		return "", false
	}
	rec := audit.NewRecord(audit.RecordParams{
		Stage:        gate.StageAction,
		CheckID:      res.CheckID,
		CandidateID:  res.CandidateID,
		Decision:     string(res.Decision),
		Codes:        codeStrings(res.Codes()),
		Changes:      len(res.RepairLog),
		DriftScore:   res.DriftScore,
		OriginalText: text,
		RepairedText: res.RepairedText,
	})
	token, err := r.receipts.Issue(rec)
	if err != nil {
		r.logger.Warn("receipt issue failed", "check_id", res.CheckID, "error", err)
		return "", false
	}
	return token, true
}

func toVerdict(res gate.Result) verdictOutput {
	return verdictOutput{
		CandidateID:  res.CandidateID,
		CheckID:      res.CheckID,
		Decision:     string(res.Decision),
		Codes:        codeStrings(res.Codes()),
		Repaired:     res.Repaired,
		RepairedText: res.RepairedText,
		RepairLog:    res.RepairLog,
		DriftScore:   res.DriftScore,
		Explanation:  res.Explanation,
	}
}

func codeStrings[T ~string](codes []T) []string {
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = string(c)
	}
	return out
}
