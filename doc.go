// File: config/doc.go

// Package config provides schema-guided, multi-source configuration
// management for Go applications with full value provenance: every merged
// value knows which file, environment variable or transform produced it.
//
// Features:
//   - Multiple configuration sources (JSON, YAML, TOML files, environment
//     variables, custom sources) merged in caller-controlled order
//   - A mounting-point schema built by reflecting over annotated structs,
//     with aliases and deprecation support
//   - Flat environment keys matched against nested schema paths, including
//     object and array params spelled as suffixed variables
//   - Unit-aware durations and byte sizes ("30 secs", "128 MiB")
//   - Secret values that never render in errors or debug output
//   - Exhaustive error reporting: one scan surfaces every problem, each
//     with its path and origin
//   - Post-parse validation via struct tags and the Validatable interface
//
// Quick Start:
//
//	type ServerConfig struct {
//	    Host      string        `config:"host"`
//	    Port      uint16        `config:"port" validate:"min=1"`
//	    Timeout   time.Duration `config:"timeout"`
//	    CacheSize config.ByteSize `config:"cache_size"`
//	}
//
//	cfg := ServerConfig{Host: "localhost", Port: 8080, Timeout: time.Minute}
//	if err := config.Quick(&cfg, "MYAPP_", "config.yaml"); err != nil {
//	    log.Fatal(err)
//	}
//
// Precedence is determined purely by merge order: later sources override
// earlier ones, and param values always replace each other wholesale
// rather than merging piecemeal. Defaults apply only where no source
// provided a value.
//
// For full control, build the schema and repository explicitly:
//
//	schema := config.NewSchema()
//	schema.MustInsert(config.MustDescribe(ServerConfig{Port: 8080}), "server")
//	repo := config.NewRepository(schema).
//	    With(mustLoad(config.LoadFile("base.yaml"))).
//	    With(config.OSEnvironment("MYAPP_"))
//	var cfg ServerConfig
//	if err := repo.Scan(&cfg); err != nil { ... }
//
// Concurrency: a schema is immutable once registration finishes and may be
// shared; a repository is a single-owner accumulator and is not safe for
// concurrent use.
package config
