package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"

	"qbank/internal/config"
	"qbank/internal/domain"
	"qbank/internal/ingest"
	"qbank/internal/retrieval"
	"qbank/internal/server"
	"qbank/internal/service"
	"qbank/internal/subtopic"
	"qbank/internal/tui"
)

func newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	cfgPath := fs.String("config", "", "Path to YAML config file (optional; uses ./qbank.yaml or ~/.config/qbank/config.yaml if not provided)")
	return fs, cfgPath
}

// setup loads the config and applies its log settings.
func setup(cfgPath string) (*config.AppConfig, error) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := config.ConfigureLogging(cfg.Log, os.Stderr); err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	return cfg, nil
}

func runNormalize(args []string, stdout io.Writer) error {
	fs, cfgPath := newFlagSet("normalize")
	in := fs.String("in", "", "Question bank JSON file")
	out := fs.String("out", "", "Output file (defaults to overwriting -in)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return errors.New("normalize: -in is required")
	}
	if _, err := setup(*cfgPath); err != nil {
		return err
	}

	var bank domain.Bank
	if err := readJSON(*in, &bank); err != nil {
		return err
	}
	changed := subtopic.NormalizeBank(bank)
	dst := *out
	if dst == "" {
		dst = *in
	}
	if err := writeJSON(dst, bank); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "normalized %d questions (%d labels changed) -> %s\n", bank.Len(), changed, dst)
	return nil
}

func runIndex(ctx context.Context, args []string, stdout io.Writer) error {
	fs, cfgPath := newFlagSet("index")
	in := fs.String("in", "", "Question bank JSON file")
	overwrite := fs.Bool("overwrite", false, "Replace an existing index")
	normalize := fs.Bool("normalize", false, "Normalize subtopic labels before indexing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return errors.New("index: -in is required")
	}
	cfg, err := setup(*cfgPath)
	if err != nil {
		return err
	}

	var bank domain.Bank
	if err := readJSON(*in, &bank); err != nil {
		return err
	}
	svc, st, err := buildService(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if *normalize {
		svc.Normalize(bank)
	}
	n, err := svc.BuildIndex(ctx, bank, *overwrite)
	if errors.Is(err, domain.ErrIndexExists) {
		return fmt.Errorf("%w (use -overwrite to replace it)", err)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "indexed %d questions\n", n)
	return nil
}

func runSearch(ctx context.Context, args []string, stdout io.Writer) error {
	fs, cfgPath := newFlagSet("search")
	query := fs.String("q", "", "Topic or query text")
	marks := fs.Int("marks", 0, "Target marks (default from config)")
	difficulty := fs.String("difficulty", "", "Target difficulty: easy, medium, hard (default from config)")
	cognitive := fs.String("cognitive", "", "Target cognitive level (default from config)")
	k := fs.Int("k", 0, "Number of nearest questions to filter (default from config)")
	fallbackCap := fs.Int("fallback-cap", -1, "Limit fallback results to this many; 0 returns all (default from config)")
	out := fs.String("out", "", "Export selected questions to this JSON file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := setup(*cfgPath)
	if err != nil {
		return err
	}
	if *fallbackCap >= 0 {
		cfg.Retrieval.FallbackCap = *fallbackCap
	}

	p := defaultProfile(cfg.Retrieval)
	p.Query = *query
	if *marks != 0 {
		p.Marks = domain.Marks(*marks)
	}
	if *difficulty != "" {
		p.Difficulty = domain.Difficulty(*difficulty)
	}
	if *cognitive != "" {
		p.Cognitive = domain.CognitiveLevel(*cognitive)
	}

	svc, st, err := buildService(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	res, err := svc.Search(ctx, p, *k)
	if err != nil {
		return err
	}
	printResult(stdout, res)
	if *out != "" {
		selected := make([]domain.Question, len(res.Candidates))
		for i, c := range res.Candidates {
			selected[i] = c.Question
		}
		if err := writeJSON(*out, selected); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "exported %d questions -> %s\n", len(selected), *out)
	}
	return nil
}

func printResult(w io.Writer, res retrieval.Result) {
	fmt.Fprintf(w, "tier: %s, %d questions\n", res.Tier, len(res.Candidates))
	for i, c := range res.Candidates {
		q := c.Question
		fmt.Fprintf(w, "%2d. [%s marks | %s | %s] %s\n", i+1, q.Marks, q.Difficulty, q.CognitiveLevel, q.Text)
		if q.Topic != "" || q.Subtopic != "" {
			fmt.Fprintf(w, "    %s / %s\n", q.Topic, q.Subtopic)
		}
	}
}

func runExtract(args []string, stdout io.Writer) error {
	fs, cfgPath := newFlagSet("extract")
	keywords := fs.String("keywords", "", "JSON file mapping topic -> keywords")
	out := fs.String("out", "", "Write passages to this JSON file instead of stdout")
	sentences := fs.Int("sentences", 5, "Sentences per passage")
	overlap := fs.Int("overlap", 1, "Sentences shared by consecutive passages")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("extract: no input files")
	}
	if _, err := setup(*cfgPath); err != nil {
		return err
	}

	topics := map[string][]string{}
	if *keywords != "" {
		if err := readJSON(*keywords, &topics); err != nil {
			return err
		}
	}
	docs, err := ingest.LoadDocuments(fs.Args())
	if err != nil {
		return err
	}
	passages := ingest.Passages(docs, ingest.NewSentenceChunker(*sentences, *overlap), ingest.NewTopicDetector(topics))
	log.WithFields(log.Fields{"documents": len(docs), "passages": len(passages)}).Info("extracted passages")

	if *out == "" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(passages)
	}
	if err := writeJSON(*out, passages); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %d passages from %d documents -> %s\n", len(passages), len(docs), *out)
	return nil
}

func runServe(ctx context.Context, args []string) error {
	fs, cfgPath := newFlagSet("serve")
	addr := fs.String("addr", "", "Listen address (default from config)")
	in := fs.String("in", "", "Question bank to index on startup, replacing the stored index")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := setup(*cfgPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Address = *addr
	}

	svc, st, err := buildService(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := prepareIndex(ctx, svc, *in); err != nil {
		if !errors.Is(err, domain.ErrNotIndexed) {
			return err
		}
		log.Warn("index is empty; searches fail until a bank is indexed")
	}
	srv := server.New(svc, server.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Defaults:       defaultProfile(cfg.Retrieval),
		TopK:           cfg.Retrieval.TopK,
	})
	return srv.ListenAndServe(ctx, cfg.Server.Address)
}

func runBrowse(ctx context.Context, args []string) error {
	fs, cfgPath := newFlagSet("browse")
	in := fs.String("in", "", "Question bank to index before browsing, replacing the stored index")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := setup(*cfgPath)
	if err != nil {
		return err
	}
	// Keep log lines from drawing over the terminal UI.
	log.SetOutput(io.Discard)

	svc, st, err := buildService(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := prepareIndex(ctx, svc, *in); err != nil {
		return err
	}
	count, err := st.Count(ctx)
	if err != nil {
		return err
	}
	info := fmt.Sprintf("%d questions indexed (%s, %s)", count, cfg.Embedder.Type, cfg.VectorStore.Type)
	m := tui.New(svc, defaultProfile(cfg.Retrieval), cfg.Retrieval.TopK, info)
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

// prepareIndex builds the index from bankPath when given, otherwise loads the stored one.
func prepareIndex(ctx context.Context, svc *service.QuestionService, bankPath string) error {
	if bankPath == "" {
		_, err := svc.Load(ctx)
		return err
	}
	var bank domain.Bank
	if err := readJSON(bankPath, &bank); err != nil {
		return err
	}
	_, err := svc.BuildIndex(ctx, bank, true)
	return err
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
