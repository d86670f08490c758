package db

import (
	"github.com/modfin/migra/internal/migrate"
)

const (
	InitialSchema     = "f9581994c712"
	Utf8mb4MediumText = "7f3a2b7f3a8b"
)

// Revisions returns every revision of the application schema.
func Revisions() []migrate.Revision {
	return []migrate.Revision{
		initialSchema(),
		utf8mb4MediumText(),
	}
}

// Graph builds the revision graph of the application schema.
func Graph() (*migrate.Graph, error) {
	return migrate.Build(Revisions()...)
}

func initialSchema() migrate.Revision {
	var up, down []migrate.Statement

	mysql := func(sql string) { up = append(up, migrate.ForDialect(migrate.MySQL, sql)) }
	sqlite := func(sql string) { up = append(up, migrate.ForDialect(migrate.SQLite, sql)) }
	postgres := func(sql string) { up = append(up, migrate.ForDialect(migrate.Postgres, sql)) }

	mysql(`CREATE TABLE users (
    id            BIGINT NOT NULL AUTO_INCREMENT,
    email         VARCHAR(255) NOT NULL,
    username      VARCHAR(100) NULL,
    password_hash VARCHAR(255) NULL,
    created_at    TIMESTAMP NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (id),
    UNIQUE (email),
    UNIQUE (username)
) ENGINE=InnoDB`)
	mysql(`CREATE TABLE documents (
    id                BIGINT NOT NULL AUTO_INCREMENT,
    user_id           BIGINT NOT NULL,
    title             VARCHAR(255) NULL,
    original_filename VARCHAR(255) NULL,
    file_path         VARCHAR(500) NULL,
    language          VARCHAR(20) NULL DEFAULT 'en',
    page_count        INTEGER NULL,
    sha256            VARCHAR(64) NULL,
    uploaded_at       TIMESTAMP NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (id),
    UNIQUE (sha256),
    FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
) ENGINE=InnoDB`)
	mysql(`CREATE TABLE chunks (
    id                BIGINT NOT NULL AUTO_INCREMENT,
    document_id       BIGINT NOT NULL,
    chunk_index       INTEGER NOT NULL,
    page_index        INTEGER NULL,
    content           TEXT NOT NULL,
    content_preview   VARCHAR(512) NULL,
    token_count       INTEGER NULL,
    milvus_collection VARCHAR(128) NOT NULL,
    milvus_id         BIGINT NOT NULL,
    content_hash      VARCHAR(64) NOT NULL,
    created_at        TIMESTAMP NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (id),
    FOREIGN KEY (document_id) REFERENCES documents (id) ON DELETE CASCADE
) ENGINE=InnoDB`)
	mysql(`CREATE TABLE messages (
    id          BIGINT NOT NULL AUTO_INCREMENT,
    user_id     BIGINT NOT NULL,
    role        ENUM('user','assistant') NOT NULL,
    content     TEXT NOT NULL,
    document_id BIGINT NULL,
    created_at  TIMESTAMP NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (id),
    FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE,
    FOREIGN KEY (document_id) REFERENCES documents (id) ON DELETE SET NULL
) ENGINE=InnoDB`)

	sqlite(`CREATE TABLE users (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    email         VARCHAR(255) NOT NULL UNIQUE,
    username      VARCHAR(100) UNIQUE,
    password_hash VARCHAR(255),
    created_at    TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`)
	sqlite(`CREATE TABLE documents (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id           BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    title             VARCHAR(255),
    original_filename VARCHAR(255),
    file_path         VARCHAR(500),
    language          VARCHAR(20) DEFAULT 'en',
    page_count        INTEGER,
    sha256            VARCHAR(64) UNIQUE,
    uploaded_at       TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`)
	sqlite(`CREATE TABLE chunks (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    document_id       BIGINT NOT NULL REFERENCES documents (id) ON DELETE CASCADE,
    chunk_index       INTEGER NOT NULL,
    page_index        INTEGER,
    content           TEXT NOT NULL,
    content_preview   VARCHAR(512),
    token_count       INTEGER,
    milvus_collection VARCHAR(128) NOT NULL,
    milvus_id         BIGINT NOT NULL,
    content_hash      VARCHAR(64) NOT NULL,
    created_at        TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`)
	sqlite(`CREATE TABLE messages (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id     BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    role        VARCHAR(9) NOT NULL CHECK (role IN ('user', 'assistant')),
    content     TEXT NOT NULL,
    document_id BIGINT REFERENCES documents (id) ON DELETE SET NULL,
    created_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`)

	postgres(`CREATE TYPE role_enum AS ENUM ('user', 'assistant')`)
	postgres(`CREATE TABLE users (
    id            BIGSERIAL PRIMARY KEY,
    email         VARCHAR(255) NOT NULL UNIQUE,
    username      VARCHAR(100) UNIQUE,
    password_hash VARCHAR(255),
    created_at    TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`)
	postgres(`CREATE TABLE documents (
    id                BIGSERIAL PRIMARY KEY,
    user_id           BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    title             VARCHAR(255),
    original_filename VARCHAR(255),
    file_path         VARCHAR(500),
    language          VARCHAR(20) DEFAULT 'en',
    page_count        INTEGER,
    sha256            VARCHAR(64) UNIQUE,
    uploaded_at       TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`)
	postgres(`CREATE TABLE chunks (
    id                BIGSERIAL PRIMARY KEY,
    document_id       BIGINT NOT NULL REFERENCES documents (id) ON DELETE CASCADE,
    chunk_index       INTEGER NOT NULL,
    page_index        INTEGER,
    content           TEXT NOT NULL,
    content_preview   VARCHAR(512),
    token_count       INTEGER,
    milvus_collection VARCHAR(128) NOT NULL,
    milvus_id         BIGINT NOT NULL,
    content_hash      VARCHAR(64) NOT NULL,
    created_at        TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`)
	postgres(`CREATE TABLE messages (
    id          BIGSERIAL PRIMARY KEY,
    user_id     BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    role        role_enum NOT NULL,
    content     TEXT NOT NULL,
    document_id BIGINT REFERENCES documents (id) ON DELETE SET NULL,
    created_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`)

	for _, table := range []string{"messages", "chunks", "documents", "users"} {
		down = append(down, migrate.Exec(`DROP TABLE `+table))
	}
	down = append(down, migrate.ForDialect(migrate.Postgres, `DROP TYPE role_enum`))

	return migrate.Revision{
		ID:      InitialSchema,
		Message: "create users, documents, chunks and messages",
		Up:      up,
		Down:    down,
	}
}

// utf8mb4MediumText moves every table to utf8mb4 and widens chunks.content.
// Other engines store text as UTF-8 already, so the revision is a no-op there.
func utf8mb4MediumText() migrate.Revision {
	mysql := func(sql string) migrate.Statement { return migrate.ForDialect(migrate.MySQL, sql) }

	return migrate.Revision{
		ID:      Utf8mb4MediumText,
		Parent:  InitialSchema,
		Message: "utf8mb4 charset and MEDIUMTEXT for chunks.content",
		Up: []migrate.Statement{
			mysql(`ALTER TABLE users CONVERT TO CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci`),
			mysql(`ALTER TABLE documents CONVERT TO CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci`),
			mysql(`ALTER TABLE messages CONVERT TO CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci`),
			mysql(`ALTER TABLE chunks CONVERT TO CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci`),
			mysql(`ALTER TABLE chunks MODIFY content MEDIUMTEXT CHARACTER SET utf8mb4 NOT NULL`),
			mysql(`ALTER TABLE chunks MODIFY content_preview VARCHAR(512) CHARACTER SET utf8mb4`),
			mysql(`ALTER TABLE chunks MODIFY milvus_collection VARCHAR(128) CHARACTER SET utf8mb4 NOT NULL`),
			mysql(`ALTER TABLE chunks MODIFY content_hash CHAR(64) CHARACTER SET ascii NOT NULL`),
		},
		// The table charset conversion is kept on downgrade; converting back
		// could lose data.
		Down: []migrate.Statement{
			mysql(`ALTER TABLE chunks MODIFY content TEXT CHARACTER SET utf8mb4 NOT NULL`),
			mysql(`ALTER TABLE chunks MODIFY content_preview VARCHAR(512) CHARACTER SET utf8mb4`),
			mysql(`ALTER TABLE chunks MODIFY milvus_collection VARCHAR(128) CHARACTER SET utf8mb4 NOT NULL`),
			mysql(`ALTER TABLE chunks MODIFY content_hash VARCHAR(64) CHARACTER SET utf8mb4 NOT NULL`),
		},
	}
}
