package db

// Table is the declared end state of one application table. Revisions carry
// the DDL that reaches it; the runner never reads these declarations.
type Table struct {
	Name    string
	Columns []Column
}

type Column struct {
	Name string
	// Type is the portable column type; MySQL specific refinements such as
	// MEDIUMTEXT live in the revisions.
	Type          string
	Nullable      bool
	Unique        bool
	PrimaryKey    bool
	AutoIncrement bool
	Default       string
	References    *ForeignKey
}

type ForeignKey struct {
	Table    string
	Column   string
	OnDelete string
}

func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func primaryKey() Column {
	return Column{Name: "id", Type: "BIGINT", PrimaryKey: true, AutoIncrement: true}
}

func createdAt(name string) Column {
	return Column{Name: name, Type: "TIMESTAMP", Nullable: true, Default: "CURRENT_TIMESTAMP"}
}

// Entities is the schema at head, in dependency order.
var Entities = []Table{
	{
		Name: "users",
		Columns: []Column{
			primaryKey(),
			{Name: "email", Type: "VARCHAR(255)", Unique: true},
			{Name: "username", Type: "VARCHAR(100)", Nullable: true, Unique: true},
			{Name: "password_hash", Type: "VARCHAR(255)", Nullable: true},
			createdAt("created_at"),
		},
	},
	{
		Name: "documents",
		Columns: []Column{
			primaryKey(),
			{Name: "user_id", Type: "BIGINT", References: &ForeignKey{Table: "users", Column: "id", OnDelete: "CASCADE"}},
			{Name: "title", Type: "VARCHAR(255)", Nullable: true},
			{Name: "original_filename", Type: "VARCHAR(255)", Nullable: true},
			{Name: "file_path", Type: "VARCHAR(500)", Nullable: true},
			{Name: "language", Type: "VARCHAR(20)", Nullable: true, Default: "'en'"},
			{Name: "page_count", Type: "INTEGER", Nullable: true},
			{Name: "sha256", Type: "VARCHAR(64)", Nullable: true, Unique: true},
			createdAt("uploaded_at"),
		},
	},
	{
		Name: "chunks",
		Columns: []Column{
			primaryKey(),
			{Name: "document_id", Type: "BIGINT", References: &ForeignKey{Table: "documents", Column: "id", OnDelete: "CASCADE"}},
			{Name: "chunk_index", Type: "INTEGER"},
			{Name: "page_index", Type: "INTEGER", Nullable: true},
			{Name: "content", Type: "TEXT"},
			{Name: "content_preview", Type: "VARCHAR(512)", Nullable: true},
			{Name: "token_count", Type: "INTEGER", Nullable: true},
			{Name: "milvus_collection", Type: "VARCHAR(128)"},
			{Name: "milvus_id", Type: "BIGINT"},
			{Name: "content_hash", Type: "VARCHAR(64)"},
			createdAt("created_at"),
		},
	},
	{
		Name: "messages",
		Columns: []Column{
			primaryKey(),
			{Name: "user_id", Type: "BIGINT", References: &ForeignKey{Table: "users", Column: "id", OnDelete: "CASCADE"}},
			{Name: "role", Type: "ENUM('user','assistant')"},
			{Name: "content", Type: "TEXT"},
			{Name: "document_id", Type: "BIGINT", Nullable: true, References: &ForeignKey{Table: "documents", Column: "id", OnDelete: "SET NULL"}},
			createdAt("created_at"),
		},
	},
}

func Entity(name string) (Table, bool) {
	for _, t := range Entities {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}
