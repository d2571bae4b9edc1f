package store

// Config holds configuration for the Store.
type Config struct {
	// TablePrefix is prepended to every table name, entity and system tables alike.
	// Default: "" (no prefix)
	TablePrefix string

	// RelationshipTable is the name of the relationship table.
	// Default: "syllabus_relationships"
	RelationshipTable string

	// UniqueTable is the name of the unique constraints table.
	// Default: "syllabus_unique_constraints"
	UniqueTable string

	// NumShards is the number of shards for the relationship table.
	// Higher values increase write throughput but require more parallel queries.
	// Default: 1 (no sharding, single query)
	// Max: 256
	NumShards int

	// IndexSuffix names the GSI that indexes a parent attribute: "<attr><suffix>".
	// Default: "-index"
	IndexSuffix string
}

// DefaultConfig returns sensible defaults for small datasets.
func DefaultConfig() Config {
	return Config{
		RelationshipTable: "syllabus_relationships",
		UniqueTable:       "syllabus_unique_constraints",
		NumShards:         1,
		IndexSuffix:       "-index",
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	def := DefaultConfig()
	if c.RelationshipTable == "" {
		c.RelationshipTable = def.RelationshipTable
	}
	if c.UniqueTable == "" {
		c.UniqueTable = def.UniqueTable
	}
	if c.IndexSuffix == "" {
		c.IndexSuffix = def.IndexSuffix
	}
	if c.NumShards < 1 {
		c.NumShards = 1
	}
	if c.NumShards > 256 {
		c.NumShards = 256
	}
}

// Table returns the physical name of a table.
func (c Config) Table(name string) string {
	return c.TablePrefix + name
}

// ParentIndex returns the GSI name indexing attr.
func (c Config) ParentIndex(attr string) string {
	return attr + c.IndexSuffix
}
