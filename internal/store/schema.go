// SPDX-License-Identifier: MIT

package store

// migrations holds one DDL script per schema version. Scripts run inside a
// transaction; append only, never edit a shipped version.
var migrations = []string{
	// v1: full initial schema
	`
CREATE TABLE tenants (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	is_active  INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE api_keys (
	id               TEXT PRIMARY KEY,
	tenant_id        TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	key_hash         TEXT NOT NULL UNIQUE,
	key_prefix       TEXT NOT NULL,
	label            TEXT NOT NULL DEFAULT '',
	scopes           TEXT NOT NULL DEFAULT '[]',
	rate_limit_prep  INTEGER NOT NULL DEFAULT 0,
	rate_limit_check INTEGER NOT NULL DEFAULT 0,
	is_active        INTEGER NOT NULL DEFAULT 1,
	last_used_at     TIMESTAMP,
	created_at       TIMESTAMP NOT NULL
);
CREATE INDEX idx_api_keys_tenant ON api_keys(tenant_id);

CREATE TABLE courses (
	id          TEXT PRIMARY KEY,
	tenant_id   TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL
);
CREATE INDEX idx_courses_tenant ON courses(tenant_id);

CREATE TABLE material_nodes (
	id               TEXT PRIMARY KEY,
	course_id        TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
	tenant_id        TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	parent_id        TEXT REFERENCES material_nodes(id) ON DELETE CASCADE,
	title            TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	position         INTEGER NOT NULL DEFAULT 0,
	node_fingerprint TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMP NOT NULL,
	updated_at       TIMESTAMP NOT NULL
);
CREATE INDEX idx_material_nodes_parent ON material_nodes(course_id, parent_id);

CREATE TABLE material_entries (
	id                  TEXT PRIMARY KEY,
	node_id             TEXT NOT NULL REFERENCES material_nodes(id) ON DELETE CASCADE,
	course_id           TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
	tenant_id           TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	filename            TEXT NOT NULL,
	source_type         TEXT NOT NULL,
	source_url          TEXT NOT NULL DEFAULT '',
	storage_key         TEXT NOT NULL DEFAULT '',
	state               TEXT NOT NULL,
	processed_content   TEXT NOT NULL DEFAULT '',
	content_fingerprint TEXT NOT NULL DEFAULT '',
	error_message       TEXT NOT NULL DEFAULT '',
	processed_at        TIMESTAMP,
	created_at          TIMESTAMP NOT NULL
);
CREATE INDEX idx_material_entries_node ON material_entries(node_id);
CREATE INDEX idx_material_entries_state ON material_entries(course_id, state);

CREATE TABLE jobs (
	id                 TEXT PRIMARY KEY,
	tenant_id          TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	course_id          TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
	node_id            TEXT NOT NULL DEFAULT '',
	type               TEXT NOT NULL,
	priority           TEXT NOT NULL,
	status             TEXT NOT NULL,
	arq_job_id         TEXT NOT NULL DEFAULT '',
	input_params       BLOB,
	result_material_id TEXT NOT NULL DEFAULT '',
	result_snapshot_id TEXT NOT NULL DEFAULT '',
	depends_on         TEXT NOT NULL DEFAULT '[]',
	error_message      TEXT NOT NULL DEFAULT '',
	queued_at          TIMESTAMP NOT NULL,
	started_at         TIMESTAMP,
	completed_at       TIMESTAMP,
	estimated_at       TIMESTAMP,
	CONSTRAINT chk_job_result_exclusive CHECK (result_material_id = '' OR result_snapshot_id = '')
);
CREATE INDEX idx_jobs_course_status ON jobs(course_id, status);
CREATE INDEX idx_jobs_tenant ON jobs(tenant_id, status);

CREATE TABLE llm_calls (
	id            TEXT PRIMARY KEY,
	tenant_id     TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	course_id     TEXT NOT NULL DEFAULT '',
	action        TEXT NOT NULL,
	strategy      TEXT NOT NULL,
	provider      TEXT NOT NULL,
	model         TEXT NOT NULL,
	tokens_in     INTEGER NOT NULL DEFAULT 0,
	tokens_out    INTEGER NOT NULL DEFAULT 0,
	latency_ms    INTEGER NOT NULL DEFAULT 0,
	cost_usd      REAL NOT NULL DEFAULT 0,
	success       INTEGER NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMP NOT NULL
);
CREATE INDEX idx_llm_calls_course ON llm_calls(tenant_id, course_id, created_at);

CREATE TABLE structure_snapshots (
	id               TEXT PRIMARY KEY,
	tenant_id        TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	course_id        TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
	node_id          TEXT NOT NULL,
	node_fingerprint TEXT NOT NULL,
	mode             TEXT NOT NULL,
	structure        BLOB NOT NULL,
	prompt_version   TEXT NOT NULL DEFAULT '',
	model            TEXT NOT NULL DEFAULT '',
	tokens_in        INTEGER NOT NULL DEFAULT 0,
	tokens_out       INTEGER NOT NULL DEFAULT 0,
	cost_usd         REAL NOT NULL DEFAULT 0,
	created_at       TIMESTAMP NOT NULL,
	UNIQUE (course_id, node_id, node_fingerprint, mode)
);

CREATE TABLE slide_video_mappings (
	id                    TEXT PRIMARY KEY,
	tenant_id             TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
	node_id               TEXT NOT NULL REFERENCES material_nodes(id) ON DELETE CASCADE,
	presentation_entry_id TEXT NOT NULL REFERENCES material_entries(id) ON DELETE CASCADE,
	video_entry_id        TEXT NOT NULL REFERENCES material_entries(id) ON DELETE CASCADE,
	slide_number          INTEGER NOT NULL,
	video_timecode_start  REAL NOT NULL,
	video_timecode_end    REAL,
	position              INTEGER NOT NULL DEFAULT 0,
	validation_state      TEXT NOT NULL,
	blocking_factors      TEXT NOT NULL DEFAULT '',
	validation_errors     TEXT NOT NULL DEFAULT '',
	validated_at          TIMESTAMP,
	created_at            TIMESTAMP NOT NULL,
	UNIQUE (presentation_entry_id, slide_number)
);
CREATE INDEX idx_mappings_node ON slide_video_mappings(node_id);
`,
}
