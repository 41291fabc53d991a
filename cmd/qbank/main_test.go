package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qbank/internal/domain"
)

const bankJSON = `{
  "1_mark": [
    {"question": "Define a binary search tree.", "topic": "Data Structures", "subtopic": "The subtopic is: Trees", "marks": 1, "difficulty_level": "easy", "cognitive_level": "remembering"}
  ],
  "3_mark": [
    {"question": "Explain gradient descent for training neural networks.", "topic": "Machine Learning", "subtopic": "**Optimisation**", "marks": "3", "difficulty": "medium", "cognitive_level": "applying"},
    {"question": "Apply gradient descent to linear regression.", "topic": "Machine Learning", "subtopic": "Regression", "marks": 3, "difficulty": "hard", "cognitive_level": "applying"}
  ]
}`

func workspace(t *testing.T) (dir, cfgPath, bankPath string) {
	t.Helper()
	dir = t.TempDir()
	cfgPath = filepath.Join(dir, "qbank.yaml")
	cfg := "vector_store:\n  type: sqlite\n  sqlite:\n    path: " + filepath.Join(dir, "index.db") + "\nlog:\n  level: warn\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	bankPath = filepath.Join(dir, "bank.json")
	require.NoError(t, os.WriteFile(bankPath, []byte(bankJSON), 0o644))
	return dir, cfgPath, bankPath
}

func TestRun_Usage(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), nil, &out))
	assert.Contains(t, out.String(), "Usage:")

	err := run(context.Background(), []string{"frobnicate"}, &out)
	assert.ErrorContains(t, err, "unknown command: frobnicate")
}

func TestRun_Normalize(t *testing.T) {
	dir, cfgPath, bankPath := workspace(t)
	dst := filepath.Join(dir, "clean", "bank.json")
	var out bytes.Buffer

	require.NoError(t, run(context.Background(), []string{"normalize", "-config", cfgPath, "-in", bankPath, "-out", dst}, &out))
	assert.Contains(t, out.String(), "2 labels changed")

	var bank domain.Bank
	require.NoError(t, readJSON(dst, &bank))
	assert.Equal(t, "Trees", bank["1_mark"][0].Subtopic)
	assert.Equal(t, "Optimisation", bank["3_mark"][0].Subtopic)
	assert.Equal(t, "Regression", bank["3_mark"][1].Subtopic)
	assert.Equal(t, domain.DifficultyEasy, bank["1_mark"][0].Difficulty)
}

func TestRun_IndexAndSearch(t *testing.T) {
	dir, cfgPath, bankPath := workspace(t)
	ctx := context.Background()
	var out bytes.Buffer

	require.NoError(t, run(ctx, []string{"index", "-config", cfgPath, "-in", bankPath}, &out))
	assert.Contains(t, out.String(), "indexed 3 questions")

	err := run(ctx, []string{"index", "-config", cfgPath, "-in", bankPath}, &out)
	assert.ErrorIs(t, err, domain.ErrIndexExists)
	require.NoError(t, run(ctx, []string{"index", "-config", cfgPath, "-in", bankPath, "-overwrite"}, &out))

	out.Reset()
	export := filepath.Join(dir, "selected_questions.json")
	require.NoError(t, run(ctx, []string{"search", "-config", cfgPath, "-q", "gradient descent", "-difficulty", "easy", "-out", export}, &out))
	assert.Contains(t, out.String(), "tier: relax-difficulty, 2 questions")

	var selected []domain.Question
	require.NoError(t, readJSON(export, &selected))
	require.Len(t, selected, 2)
	for _, q := range selected {
		assert.Equal(t, domain.Marks(3), q.Marks)
	}

	out.Reset()
	require.NoError(t, run(ctx, []string{"search", "-config", cfgPath, "-q", "trees", "-marks", "2", "-fallback-cap", "1"}, &out))
	assert.Contains(t, out.String(), "tier: fallback, 1 questions")
}

func TestRun_SearchRejectsBadProfile(t *testing.T) {
	_, cfgPath, bankPath := workspace(t)
	ctx := context.Background()
	var out bytes.Buffer
	require.NoError(t, run(ctx, []string{"index", "-config", cfgPath, "-in", bankPath}, &out))

	err := run(ctx, []string{"search", "-config", cfgPath, "-q", "trees", "-cognitive", "memorising"}, &out)
	assert.ErrorIs(t, err, domain.ErrInvalidProfile)
}

func TestRun_SearchWithoutIndex(t *testing.T) {
	_, cfgPath, _ := workspace(t)
	err := run(context.Background(), []string{"search", "-config", cfgPath, "-q", "trees"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, domain.ErrNotIndexed)
}

func TestRun_Extract(t *testing.T) {
	dir, cfgPath, _ := workspace(t)
	doc := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(doc, []byte("Gradient descent minimises loss. Trees store keys in order. Heaps are trees too."), 0o644))
	kw := filepath.Join(dir, "topics.json")
	require.NoError(t, os.WriteFile(kw, []byte(`{"Machine Learning": ["gradient"], "Data Structures": ["tree", "heap"]}`), 0o644))

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"extract", "-config", cfgPath, "-keywords", kw, "-sentences", "1", "-overlap", "0", doc}, &out))

	var passages []domain.Passage
	require.NoError(t, json.Unmarshal(out.Bytes(), &passages))
	require.Len(t, passages, 3)
	assert.Equal(t, "Machine Learning", passages[0].Topic)
	assert.Equal(t, "Data Structures", passages[1].Topic)
	assert.Equal(t, "Data Structures", passages[2].Topic)

	err := run(context.Background(), []string{"extract", "-config", cfgPath}, &out)
	assert.Error(t, err)
}

func TestBuildStoreAndEmbedder_Unknown(t *testing.T) {
	_, cfgPath, _ := workspace(t)
	cfg, err := loadConfig(cfgPath)
	require.NoError(t, err)

	cfg.Embedder.Type = "word2vec"
	_, err = buildEmbedder(cfg.Embedder)
	assert.Error(t, err)

	cfg.VectorStore.Type = "redis"
	_, err = buildStore(cfg.VectorStore)
	assert.Error(t, err)

	cfg.VectorStore.Type = "memory"
	st, err := buildStore(cfg.VectorStore)
	require.NoError(t, err)
	assert.NoError(t, st.Close())
}
