package store

import "fmt"

// schemaSQL returns the DDL for the journal tables.
func schemaSQL() string {
	return `
-- Every question answered by the engine
CREATE TABLE IF NOT EXISTS query_log (
    seq INTEGER PRIMARY KEY,
    id TEXT NOT NULL UNIQUE,
    question TEXT NOT NULL,
    answer TEXT,
    confidence REAL,
    question_type TEXT,
    sources JSON,
    collected INTEGER DEFAULT 0,
    process_ms INTEGER DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Every learn cycle that wrote into the knowledge graph
CREATE TABLE IF NOT EXISTS learn_log (
    seq INTEGER PRIMARY KEY,
    id TEXT NOT NULL UNIQUE,
    context TEXT,
    records INTEGER DEFAULT 0,
    entities INTEGER DEFAULT 0,
    relations INTEGER DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`
}

// vectorSQL returns the DDL of the question embedding index. embeddingDim
// controls the vec0 virtual table dimension.
func vectorSQL(embeddingDim int) string {
	return fmt.Sprintf(`
CREATE VIRTUAL TABLE IF NOT EXISTS vec_questions USING vec0(
    query_seq INTEGER PRIMARY KEY,
    embedding float[%d]
);
`, embeddingDim)
}
