package store

// coreSchema creates the node, edge, tag-index, and engine-metadata tables
// for this engine's node/edge/relationship-type model.
const coreSchema = `
CREATE TABLE IF NOT EXISTS memories (
	id               TEXT PRIMARY KEY,
	content          TEXT NOT NULL,
	embedding        BLOB,
	model_identifier TEXT NOT NULL DEFAULT '',
	timestamp        DATETIME NOT NULL,
	created_at       DATETIME NOT NULL,
	last_accessed    DATETIME NOT NULL,
	access_count     INTEGER NOT NULL DEFAULT 0,
	confidence       REAL NOT NULL DEFAULT 1.0,
	importance       REAL NOT NULL DEFAULT 0.5,
	is_static        BOOLEAN NOT NULL DEFAULT 0,
	is_latest        BOOLEAN NOT NULL DEFAULT 1,
	source           TEXT NOT NULL DEFAULT 'user_input',
	entities         TEXT NOT NULL DEFAULT '[]',
	topics           TEXT NOT NULL DEFAULT '[]',
	container_tags   TEXT NOT NULL DEFAULT '[]',
	user_id          TEXT NOT NULL DEFAULT '',
	insertion_seq    INTEGER,
	CHECK (confidence >= 0.0 AND confidence <= 1.0),
	CHECK (importance >= 0.0 AND importance <= 1.0)
);

CREATE INDEX IF NOT EXISTS idx_memories_user_id ON memories(user_id);
CREATE INDEX IF NOT EXISTS idx_memories_is_static ON memories(is_static);
CREATE INDEX IF NOT EXISTS idx_memories_is_latest ON memories(is_latest);
CREATE INDEX IF NOT EXISTS idx_memories_confidence ON memories(confidence);
CREATE INDEX IF NOT EXISTS idx_memories_insertion_seq ON memories(insertion_seq);

CREATE TABLE IF NOT EXISTS memory_tags (
	memory_id TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
	tag       TEXT NOT NULL,
	PRIMARY KEY (memory_id, tag)
);

CREATE INDEX IF NOT EXISTS idx_memory_tags_tag ON memory_tags(tag);

CREATE TABLE IF NOT EXISTS edges (
	from_id    TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
	to_id      TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
	type       TEXT NOT NULL,
	confidence REAL NOT NULL DEFAULT 0.0,
	PRIMARY KEY (from_id, to_id, type),
	CHECK (confidence >= 0.0 AND confidence <= 1.0)
);

CREATE INDEX IF NOT EXISTS idx_edges_from ON edges(from_id);
CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(to_id);

CREATE TABLE IF NOT EXISTS engine_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// fts5Schema mirrors memory content into an FTS5 virtual table for the
// sparse/keyword membership test used by the retrieval pipeline's scoring
// step.
const fts5Schema = `
CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
	id UNINDEXED,
	content,
	content='memories',
	content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS memories_fts_insert AFTER INSERT ON memories BEGIN
	INSERT INTO memories_fts(rowid, id, content) VALUES (new.rowid, new.id, new.content);
END;

CREATE TRIGGER IF NOT EXISTS memories_fts_delete AFTER DELETE ON memories BEGIN
	INSERT INTO memories_fts(memories_fts, rowid, id, content) VALUES ('delete', old.rowid, old.id, old.content);
END;

CREATE TRIGGER IF NOT EXISTS memories_fts_update AFTER UPDATE ON memories BEGIN
	INSERT INTO memories_fts(memories_fts, rowid, id, content) VALUES ('delete', old.rowid, old.id, old.content);
	INSERT INTO memories_fts(rowid, id, content) VALUES (new.rowid, new.id, new.content);
END;
`
