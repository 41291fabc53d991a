package main

import (
	"fmt"
	"time"

	"qbank/internal/config"
	"qbank/internal/domain"
	"qbank/internal/embedding"
	"qbank/internal/embedding/ollama"
	"qbank/internal/embedding/openai"
	"qbank/internal/embedding/tfidf"
	"qbank/internal/service"
	"qbank/internal/vectorstore"
	"qbank/internal/vectorstore/memory"
	"qbank/internal/vectorstore/qdrant"
	"qbank/internal/vectorstore/sqlite"
)

func loadConfig(path string) (*config.AppConfig, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if path == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func buildEmbedder(cfg config.EmbedderConfig) (embedding.Embedder, error) {
	var emb embedding.Embedder
	switch cfg.Type {
	case "tfidf", "":
		return tfidf.NewEmbedder(), nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:    cfg.OpenAI.BaseURL,
			APIKeyEnv:  cfg.OpenAI.APIKeyEnv,
			Model:      cfg.OpenAI.Model,
			Dimensions: cfg.OpenAI.Dimensions,
			Timeout:    time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
			MaxRetries: cfg.OpenAI.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		emb = client
	case "ollama":
		if cfg.Ollama == nil {
			return nil, fmt.Errorf("ollama embedder config missing")
		}
		emb = ollama.NewClient(ollama.Config{
			BaseURL: cfg.Ollama.BaseURL,
			Model:   cfg.Ollama.Model,
			Timeout: time.Duration(cfg.Ollama.TimeoutSecs) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
	return embedding.WithRateLimit(emb, cfg.RequestsPerSecond), nil
}

func buildStore(cfg config.VectorStoreConfig) (vectorstore.Storage, error) {
	switch cfg.Type {
	case "memory":
		return memory.NewStorage(), nil
	case "sqlite", "":
		path := "qbank.db"
		if cfg.SQLite != nil && cfg.SQLite.Path != "" {
			path = cfg.SQLite.Path
		}
		st, err := sqlite.New(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		return st, nil
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, fmt.Errorf("qdrant config missing")
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     cfg.Qdrant.APIKey,
			Collection: cfg.Qdrant.Collection,
			Distance:   cfg.Qdrant.Distance,
			Timeout:    time.Duration(cfg.Qdrant.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.Type)
	}
}

// buildService assembles the question service. The caller closes the returned store.
func buildService(cfg *config.AppConfig) (*service.QuestionService, vectorstore.Storage, error) {
	emb, err := buildEmbedder(cfg.Embedder)
	if err != nil {
		return nil, nil, err
	}
	st, err := buildStore(cfg.VectorStore)
	if err != nil {
		return nil, nil, err
	}
	svc := service.NewQuestionService(emb, st, service.Options{
		TopK:        cfg.Retrieval.TopK,
		FallbackCap: cfg.Retrieval.FallbackCap,
		Concurrency: cfg.Embedder.Concurrency,
	})
	return svc, st, nil
}

func defaultProfile(cfg config.RetrievalConfig) domain.Profile {
	return domain.Profile{
		Marks:      domain.Marks(cfg.DefaultMarks),
		Difficulty: domain.Difficulty(cfg.DefaultDifficulty),
		Cognitive:  domain.CognitiveLevel(cfg.DefaultCognitive),
	}
}
